package usage

import "errors"

// ErrInvalidInput is returned when userId, requestId, or action is empty;
// Reserve fails fast with no writes.
var ErrInvalidInput = errors.New("usage: invalid reserve input")
