package network

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidFormat    = errors.New("invalid file format: expected .inp")
	ErrNotLoaded        = errors.New("no network loaded")
	ErrNotSimulated     = errors.New("simulation has not been run")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrUnsupported      = errors.New("not supported by engine")
)

// Error records a failed wrapper operation. It unwraps to one of the
// sentinels above or to the underlying engine error.
type Error struct {
	Op   string // load, simulate, plot, attribute
	Path string // network file, if any
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("network: %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("network: %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
