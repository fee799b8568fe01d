package applet

import (
	"errors"
	"fmt"

	"github.com/gregLibert/isosceles/pkg/cardfs"
	"github.com/gregLibert/isosceles/pkg/iso7816"
	"github.com/gregLibert/isosceles/pkg/tlv"
)

// ErrInvalidParams is returned by Install for malformed installation parameters.
var ErrInvalidParams = errors.New("invalid installation parameters")

// StatusError is a command failure carrying the status word to answer with.
type StatusError struct {
	SW  iso7816.StatusWord
	Err error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return e.SW.Verbose()
	}
	return fmt.Sprintf("%s: %v", e.SW.Verbose(), e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func statusErrorf(sw iso7816.StatusWord, format string, args ...any) error {
	return &StatusError{SW: sw, Err: fmt.Errorf(format, args...)}
}

// statusOf maps a command error to the status word returned to the terminal.
func statusOf(err error) iso7816.StatusWord {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return se.SW
	case errors.Is(err, cardfs.ErrFileFull):
		return iso7816.SW_ERR_FILE_FULL
	case errors.Is(err, tlv.ErrMalformed):
		return iso7816.SW_ERR_WRONG_DATA
	default:
		return iso7816.SW_ERR_UNKNOWN
	}
}
