package collector

import (
	"math"

	"github.com/mattjperez/micro-rdk/internal/attr"
)

const DefaultCacheSizeKB = 8.0

// DataCollectorConfig is one entry of a component's capture_methods attribute.
type DataCollectorConfig struct {
	Method             CollectionMethod
	CaptureFrequencyHz float32
	// Capacity in bytes.
	Capacity int
	Disabled bool
}

// ParseConfig reads a capture method entry. Missing method or frequency is a
// KeyNotFoundError, an unknown method name is ErrConversionImpossible, and a
// cache below 1KB on an enabled collector is a ValidationError.
func ParseConfig(a attr.Attributes) (DataCollectorConfig, error) {
	disabled := a.BoolOr("disabled", false)

	methodName, err := a.String("method")
	if err != nil {
		return DataCollectorConfig{}, err
	}
	freq, err := a.Float64("capture_frequency_hz")
	if err != nil {
		return DataCollectorConfig{}, err
	}
	capacityKB, err := a.Float64Or("cache_size_kb", DefaultCacheSizeKB)
	if err != nil {
		return DataCollectorConfig{}, err
	}
	capacity := int(capacityKB * 1000)
	if capacity < 1000 && !disabled {
		return DataCollectorConfig{}, attr.NewValidationError("cache size must be at least 1KB")
	}

	method, err := parseMethod(methodName, a)
	if err != nil {
		return DataCollectorConfig{}, err
	}

	return DataCollectorConfig{
		Method:             method,
		CaptureFrequencyHz: float32(freq),
		Capacity:           capacity,
		Disabled:           disabled,
	}, nil
}

func parseMethod(name string, a attr.Attributes) (CollectionMethod, error) {
	switch name {
	case "Readings":
		return Method(Readings), nil
	case "AngularVelocity":
		return Method(AngularVelocity), nil
	case "LinearAcceleration":
		return Method(LinearAcceleration), nil
	case "LinearVelocity":
		return Method(LinearVelocity), nil
	case "Position":
		return Method(Position), nil
	case "CompassHeading":
		return Method(CompassHeading), nil
	case "TicksCount":
		return Method(TicksCount), nil
	case "Analogs":
		params, err := a.Struct("additional_params")
		if err != nil {
			return CollectionMethod{}, err
		}
		reader, err := params.String("reader_name")
		if err != nil {
			return CollectionMethod{}, err
		}
		return AnalogsMethod(reader), nil
	case "Gpios":
		params, err := a.Struct("additional_params")
		if err != nil {
			return CollectionMethod{}, err
		}
		pin, err := params.Float64("pin_name")
		if err != nil {
			return CollectionMethod{}, err
		}
		return GpiosMethod(pinNumber(pin)), nil
	default:
		return CollectionMethod{}, attr.ErrConversionImpossible
	}
}

// pinNumber truncates toward zero and saturates at the int32 range, the way
// pin numbers are narrowed on the device.
func pinNumber(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	default:
		return int(math.Trunc(f))
	}
}
