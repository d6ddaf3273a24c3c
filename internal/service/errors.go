package service

import "errors"

// ErrValidation marks input rejected before any write. Wrapped errors carry the detail.
var ErrValidation = errors.New("validation failed")
