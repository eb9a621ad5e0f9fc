package fault

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure by who is to blame for it.
//
// Kind implements error so it can be used as a target for errors.Is:
//
//	if errors.Is(err, fault.KindFormatInconsistency) { … }
type Kind int

const (
	kindInvalid Kind = iota
	KindFormatInconsistency
	KindInvariantViolation
	KindUnsupportedFeature
)

func (k Kind) String() string {
	switch k {
	case KindFormatInconsistency:
		return "format inconsistency"
	case KindInvariantViolation:
		return "invariant violation"
	case KindUnsupportedFeature:
		return "unsupported feature"
	default:
		return fmt.Sprintf("kind-unknown(%d)", int(k))
	}
}

func (k Kind) Error() string {
	return k.String()
}

// Error is a classified reconstruction failure.
type Error struct {
	Code Code

	// Offset is the byte offset the failure relates to, when HasOffset is set.
	Offset    uint32
	HasOffset bool

	Detail string
}

func (e *Error) Error() string {
	switch {
	case e.HasOffset && e.Detail != "":
		return fmt.Sprintf("%s at 0x%04x: %s", e.Code, e.Offset, e.Detail)
	case e.HasOffset:
		return fmt.Sprintf("%s at 0x%04x", e.Code, e.Offset)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	default:
		return e.Code.String()
	}
}

// Is reports whether target is the Kind of this error or an *Error with the same Code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Code.Kind() == t
	case *Error:
		return t.Code == e.Code
	default:
		return false
	}
}

// New creates a failure of the given code.
func New(code Code, format string, a ...any) error {
	return errors.WithStack(&Error{
		Code:   code,
		Detail: fmt.Sprintf(format, a...),
	})
}

// At creates a failure of the given code bound to a byte offset.
func At(code Code, offset uint32, format string, a ...any) error {
	return errors.WithStack(&Error{
		Code:      code,
		Offset:    offset,
		HasOffset: true,
		Detail:    fmt.Sprintf(format, a...),
	})
}

// CodeOf extracts the failure code of err.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return codeInvalid, false
	}

	return e.Code, true
}

// KindOf extracts the failure kind of err. Errors not produced by this package
// have no kind.
func KindOf(err error) (Kind, bool) {
	code, ok := CodeOf(err)
	if !ok {
		return kindInvalid, false
	}

	return code.Kind(), true
}
