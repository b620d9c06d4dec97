package storage

import "errors"

// ErrRunNotFound is returned when no run record exists for the requested id.
var ErrRunNotFound = errors.New("validation run not found")
