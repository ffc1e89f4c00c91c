package quser

import "errors"

// ErrInvalidInput is returned when Ensure is called without a user id.
var ErrInvalidInput = errors.New("quser: user id is required")
