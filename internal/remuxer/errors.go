package remuxer

import "fmt"

// ErrorKind is the kind of an Error.
type ErrorKind int

// error kinds.
const (
	// bad arguments or track options.
	ErrorKindConfiguration ErrorKind = iota

	// unreadable or invalid inputs.
	ErrorKindSource

	// failures while moving samples into the output.
	ErrorKindTransfer
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindConfiguration:
		return "configuration"

	case ErrorKindSource:
		return "source"

	case ErrorKindTransfer:
		return "transfer"
	}
	return fmt.Sprintf("unknown (%d)", int(k))
}

// Error is a terminal error of a run.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Kind.String() + " error: " + e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError allocates an Error.
func NewError(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}
