// Package attr extracts typed values from a component's dynamic attribute map.
//
// Attributes arrive from YAML or JSON documents, so numbers may be any Go
// numeric type and nested objects are map[string]any.
package attr

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrConversionImpossible is returned when a value exists but has the wrong kind.
var ErrConversionImpossible = errors.New("conversion impossible")

type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %q not found", e.Key)
}

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Reason
}

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

type Attributes map[string]any

// Get returns the raw value stored under key.
func (a Attributes) Get(key string) (any, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (a Attributes) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

func (a Attributes) String(key string) (string, error) {
	v, ok := a.Get(key)
	if !ok {
		return "", &KeyNotFoundError{Key: key}
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Wrapf(ErrConversionImpossible, "%s: expected string, got %T", key, v)
	}
	return s, nil
}

func (a Attributes) Float64(key string) (float64, error) {
	v, ok := a.Get(key)
	if !ok {
		return 0, &KeyNotFoundError{Key: key}
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, errors.Wrapf(ErrConversionImpossible, "%s: expected number, got %T", key, v)
	}
	return f, nil
}

// Float64Or returns def when key is absent. A present value of the wrong kind
// is still an error.
func (a Attributes) Float64Or(key string, def float64) (float64, error) {
	if !a.Has(key) {
		return def, nil
	}
	return a.Float64(key)
}

func (a Attributes) Int(key string) (int, error) {
	f, err := a.Float64(key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, errors.Wrapf(ErrConversionImpossible, "%s: %v is not an integer", key, f)
	}
	return int(f), nil
}

func (a Attributes) Bool(key string) (bool, error) {
	v, ok := a.Get(key)
	if !ok {
		return false, &KeyNotFoundError{Key: key}
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Wrapf(ErrConversionImpossible, "%s: expected bool, got %T", key, v)
	}
	return b, nil
}

// BoolOr returns def when key is absent or not a bool.
func (a Attributes) BoolOr(key string, def bool) bool {
	b, err := a.Bool(key)
	if err != nil {
		return def
	}
	return b
}

func (a Attributes) Struct(key string) (Attributes, error) {
	v, ok := a.Get(key)
	if !ok {
		return nil, &KeyNotFoundError{Key: key}
	}
	s, ok := toAttributes(v)
	if !ok {
		return nil, errors.Wrapf(ErrConversionImpossible, "%s: expected struct, got %T", key, v)
	}
	return s, nil
}

func (a Attributes) List(key string) ([]any, error) {
	v, ok := a.Get(key)
	if !ok {
		return nil, &KeyNotFoundError{Key: key}
	}
	l, ok := v.([]any)
	if !ok {
		return nil, errors.Wrapf(ErrConversionImpossible, "%s: expected list, got %T", key, v)
	}
	return l, nil
}

// StructList returns key as a list of structs.
func (a Attributes) StructList(key string) ([]Attributes, error) {
	l, err := a.List(key)
	if err != nil {
		return nil, err
	}
	out := make([]Attributes, 0, len(l))
	for i, item := range l {
		s, ok := toAttributes(item)
		if !ok {
			return nil, errors.Wrapf(ErrConversionImpossible, "%s[%d]: expected struct, got %T", key, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}

// IsKeyNotFound reports whether err is a missing-key error.
func IsKeyNotFound(err error) bool {
	var knf *KeyNotFoundError
	return errors.As(err, &knf)
}

func toAttributes(v any) (Attributes, bool) {
	switch m := v.(type) {
	case Attributes:
		return m, true
	case map[string]any:
		return Attributes(m), true
	default:
		return nil, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
