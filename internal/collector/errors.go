package collector

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoSupportedMethods          = errors.New("no collection methods supported for component")
	ErrUnsupportedCaptureFrequency = errors.New("capture frequency cannot be 0.0")
)

type UnsupportedMethodError struct {
	Method        CollectionMethod
	ComponentType string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("method %s unsupported for %s", e.Method, e.ComponentType)
}
