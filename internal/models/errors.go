package models

import "errors"

// ErrInvariant marks a broken single-writer invariant. Processing must stop.
var ErrInvariant = errors.New("invariant violation")
