package models

import (
	"errors"
	"fmt"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrInvalidValue  = errors.New("invalid value")
	ErrUnsorted      = errors.New("series not sorted ascending by date")
	ErrDuplicateDate = errors.New("duplicate date in series")
	ErrNonFinite     = errors.New("non-finite netflow")
	ErrMixedSeries   = errors.New("series mixes exchange labels")
	ErrInvalidParams = errors.New("invalid detector parameters")
)

// InputError is a structural input problem. It is fatal for the current run.
type InputError struct {
	Row   int // 0-based data row; -1 when not row specific
	Field string
	Value string
	Err   error
}

func (e *InputError) Error() string {
	switch {
	case e.Row < 0 && e.Field == "":
		return e.Err.Error()
	case e.Row < 0:
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	case e.Value != "":
		return fmt.Sprintf("row %d: %s=%q: %v", e.Row, e.Field, e.Value, e.Err)
	default:
		return fmt.Sprintf("row %d: %s: %v", e.Row, e.Field, e.Err)
	}
}

func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err carries an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
