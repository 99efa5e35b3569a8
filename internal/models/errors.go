package models

import "errors"

// ErrInvalidInput marks malformed inputs such as bad chunking parameters
// or an embedding whose dimension disagrees with the store. It is fatal
// to the single operation only and never corrupts accumulated state.
var ErrInvalidInput = errors.New("invalid input")
