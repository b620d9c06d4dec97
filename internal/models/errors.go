package models

import "errors"

// ErrLegMismatch is returned when exit premiums do not line up one-to-one with
// the position's legs.
var ErrLegMismatch = errors.New("exit premium count does not match leg count")

// ErrPositionClosed is returned when closing a position that is already closed.
var ErrPositionClosed = errors.New("position already closed")

// ErrNoLegs is returned when constructing a position without any legs.
var ErrNoLegs = errors.New("position requires at least one leg")

// ErrZeroQuantity is returned when a leg carries a zero quantity.
var ErrZeroQuantity = errors.New("leg quantity must be non-zero")
