package model

import "github.com/rotisserie/eris"

var (
	ErrNilInput              = eris.New("nil input")
	ErrInvalidConfig         = eris.New("invalid configuration")
	ErrUnrecognizedSheetType = eris.New("unrecognized sheet type")
	ErrAmbiguousMapping      = eris.New("ambiguous mapping")
	ErrCapabilityUnavailable = eris.New("capability unavailable")
	ErrFieldCoercionFailure  = eris.New("field coercion failure")
	ErrOutOfRangeValue       = eris.New("out of range value")
	ErrMalformedSheet        = eris.New("malformed sheet")
	ErrRunNotFound           = eris.New("run not found")
)
