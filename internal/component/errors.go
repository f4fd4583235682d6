package component

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMethodUnimplemented marks a capability a driver does not provide.
var ErrMethodUnimplemented = errors.New("method unimplemented")

// Error is a failure reported by a driver capability call. Category names the
// driver kind the failure belongs to (analog, board, encoder, motor, sensor,
// servo, ...), which can be finer than the resource's component type.
type Error struct {
	Category string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Category, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

const AnalogCategory = "analog"

func NewError(category, op string, err error) error {
	return &Error{Category: category, Op: op, Err: err}
}

// Unimplemented reports op as unsupported by a driver of the given category.
func Unimplemented(category, op string) error {
	return &Error{Category: category, Op: op, Err: ErrMethodUnimplemented}
}

// CategoryOf returns the category of a capability error, if err is one.
func CategoryOf(err error) (string, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category, true
	}
	return "", false
}
