package webhook

import "errors"

// ErrInvalidInput is returned when a billing event payload fails
// structural validation (missing userId or eventType); ProcessBillingEvent
// fails fast with no writes.
var ErrInvalidInput = errors.New("webhook: invalid billing event payload")
