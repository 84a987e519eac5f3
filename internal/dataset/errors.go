package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode matches any *DecodeError via errors.Is.
	ErrDecode = errors.New("dataset: decode failed")
	// ErrShapeMismatch matches any *ShapeMismatchError via errors.Is.
	ErrShapeMismatch = errors.New("dataset: shape mismatch")
	// ErrInvalidConfig matches any *InvalidConfigError via errors.Is.
	ErrInvalidConfig = errors.New("dataset: invalid config")
)

// DecodeError reports a class-directory entry that is not a readable image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("dataset: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ShapeMismatchError reports an image whose dimensions differ from the
// configured width and height.
type ShapeMismatchError struct {
	Path                  string
	WantWidth, WantHeight int
	GotWidth, GotHeight   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("dataset: %s is %dx%d, want %dx%d",
		e.Path, e.GotWidth, e.GotHeight, e.WantWidth, e.WantHeight)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// InvalidConfigError reports a parameter that makes the requested operation
// impossible. It is raised before any pixels are touched.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("dataset: invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidConfigError) Is(target error) bool { return target == ErrInvalidConfig }

func invalidConfig(field, format string, args ...any) error {
	return &InvalidConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
