package collector

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mattjperez/micro-rdk/internal/component"
	"github.com/mattjperez/micro-rdk/internal/model"
)

// DataCollector binds one collection method to one resource. It is never
// mutated after construction; a config reload builds new collectors.
type DataCollector struct {
	name          string
	componentType string
	resource      component.Resource
	method        CollectionMethod
	timeInterval  time.Duration
	capacity      int
}

// New validates the method against the resource category and derives the
// polling interval as floor(1000/hz) milliseconds.
func New(name string, res component.Resource, method CollectionMethod, captureFrequencyHz float32, capacity int) (*DataCollector, error) {
	if captureFrequencyHz <= 0 || math.IsNaN(float64(captureFrequencyHz)) {
		return nil, ErrUnsupportedCaptureFrequency
	}
	componentType := res.ComponentType()
	if !methodSupported(componentType, method) {
		return nil, &UnsupportedMethodError{Method: method, ComponentType: componentType}
	}
	// Divide in float32: widening first turns 0.1Hz into 9999ms.
	ms := math.Floor(float64(float32(1000) / captureFrequencyHz))
	return &DataCollector{
		name:          name,
		componentType: componentType,
		resource:      res,
		method:        method,
		timeInterval:  time.Duration(ms) * time.Millisecond,
		capacity:      capacity,
	}, nil
}

func FromConfig(name string, res component.Resource, cfg DataCollectorConfig) (*DataCollector, error) {
	return New(name, res, cfg.Method, cfg.CaptureFrequencyHz, cfg.Capacity)
}

func (c *DataCollector) Name() string                { return c.name }
func (c *DataCollector) ComponentType() string       { return c.componentType }
func (c *DataCollector) TimeInterval() time.Duration { return c.timeInterval }
func (c *DataCollector) MethodString() string        { return c.method.String() }
func (c *DataCollector) Capacity() int               { return c.capacity }

func (c *DataCollector) ResourceMethodKey() ResourceMethodKey {
	return ResourceMethodKey{
		ResourceName:  c.name,
		ComponentType: c.componentType,
		Method:        c.method,
	}
}

// CallMethod performs the bound capability call and returns one record.
// Capture times are offsets from robotStart. Driver failures are returned as
// *component.Error and are neither retried nor swallowed.
func (c *DataCollector) CallMethod(robotStart time.Time) ([]*model.SensorData, error) {
	requested := time.Since(robotStart)

	var (
		payload *structpb.Struct
		err     error
	)
	if c.method.Kind == Readings {
		payload, err = c.readings()
	} else {
		payload, err = c.single()
	}
	if err != nil {
		return nil, err
	}

	received := time.Since(robotStart)
	return []*model.SensorData{model.NewStructData(requested, received, payload)}, nil
}

func (c *DataCollector) readings() (*structpb.Struct, error) {
	var (
		r   component.Readings
		err error
	)
	switch res := c.resource.(type) {
	case component.SensorResource:
		r, err = component.Call(res.Locked, func(s component.Sensor) (component.Readings, error) {
			return s.Readings()
		})
	case component.MovementSensorResource:
		r, err = component.Call(res.Locked, func(s component.MovementSensor) (component.Readings, error) {
			return s.Readings()
		})
	default:
		return nil, &UnsupportedMethodError{Method: c.method, ComponentType: component.SensorType}
	}
	if err != nil {
		return nil, capabilityError(component.SensorType, "readings", err)
	}
	return newPayload(map[string]any{"readings": plain(r)})
}

func (c *DataCollector) single() (*structpb.Struct, error) {
	unsupported := &UnsupportedMethodError{Method: c.method, ComponentType: c.componentType}

	switch res := c.resource.(type) {
	case component.BoardResource:
		return c.board(res)

	case component.EncoderResource:
		if c.method.Kind != TicksCount {
			return nil, unsupported
		}
		pos, err := component.Call(res.Locked, func(e component.Encoder) (component.EncoderPosition, error) {
			return e.Position(component.PositionTypeTicks)
		})
		if err != nil {
			return nil, capabilityError(component.EncoderType, "position", err)
		}
		return newPayload(map[string]any{
			"value":         pos.Value,
			"position_type": int(pos.Type),
		})

	case component.ServoResource:
		if c.method.Kind != Position {
			return nil, unsupported
		}
		deg, err := component.Call(res.Locked, func(s component.Servo) (uint32, error) {
			return s.Position()
		})
		if err != nil {
			return nil, capabilityError(component.ServoType, "position", err)
		}
		return newPayload(map[string]any{"position_deg": float64(deg)})

	case component.MotorResource:
		if c.method.Kind != Position {
			return nil, unsupported
		}
		pos, err := component.Call(res.Locked, func(m component.Motor) (float64, error) {
			return m.Position()
		})
		if err != nil {
			return nil, capabilityError(component.MotorType, "position", err)
		}
		return newPayload(map[string]any{"position": pos})

	case component.MovementSensorResource:
		return c.movementSensor(res)

	default:
		return nil, ErrNoSupportedMethods
	}
}

func (c *DataCollector) board(res component.BoardResource) (*structpb.Struct, error) {
	switch c.method.Kind {
	case Analogs:
		// The reader belongs to the board; its read happens under the board lock.
		v, err := component.Call(res.Locked, func(b component.Board) (int, error) {
			reader, err := b.AnalogReader(c.method.ReaderName)
			if err != nil {
				return 0, capabilityError(component.BoardType, "analog_reader", err)
			}
			v, err := reader.Read()
			if err != nil {
				return 0, capabilityError(component.AnalogCategory, "read", err)
			}
			return v, nil
		})
		if err != nil {
			return nil, err
		}
		return newPayload(map[string]any{"value": float64(v)})
	case Gpios:
		high, err := component.Call(res.Locked, func(b component.Board) (bool, error) {
			return b.GPIOLevel(c.method.Pin)
		})
		if err != nil {
			return nil, capabilityError(component.BoardType, "gpio_level", err)
		}
		return newPayload(map[string]any{"high": high})
	default:
		return nil, &UnsupportedMethodError{Method: c.method, ComponentType: component.BoardType}
	}
}

func (c *DataCollector) movementSensor(res component.MovementSensorResource) (*structpb.Struct, error) {
	vector := func(field, op string, fn func(component.MovementSensor) (component.Vector3, error)) (*structpb.Struct, error) {
		v, err := component.Call(res.Locked, fn)
		if err != nil {
			return nil, capabilityError(component.MovementSensorType, op, err)
		}
		return newPayload(map[string]any{field: vectorFields(v)})
	}

	switch c.method.Kind {
	case AngularVelocity:
		return vector("angular_velocity", "angular_velocity", component.MovementSensor.AngularVelocity)
	case LinearAcceleration:
		return vector("linear_acceleration", "linear_acceleration", component.MovementSensor.LinearAcceleration)
	case LinearVelocity:
		return vector("linear_velocity", "linear_velocity", component.MovementSensor.LinearVelocity)
	case Position:
		p, err := component.Call(res.Locked, component.MovementSensor.Position)
		if err != nil {
			return nil, capabilityError(component.MovementSensorType, "position", err)
		}
		return newPayload(map[string]any{
			"coordinate": map[string]any{
				"latitude":  p.Latitude,
				"longitude": p.Longitude,
			},
			"altitude_m": p.AltitudeM,
		})
	case CompassHeading:
		h, err := component.Call(res.Locked, component.MovementSensor.CompassHeading)
		if err != nil {
			return nil, capabilityError(component.MovementSensorType, "compass_heading", err)
		}
		return newPayload(map[string]any{"value": h})
	default:
		return nil, &UnsupportedMethodError{Method: c.method, ComponentType: component.MovementSensorType}
	}
}

func vectorFields(v component.Vector3) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

// capabilityError leaves errors already attributed by a driver untouched.
func capabilityError(category, op string, err error) error {
	if _, ok := component.CategoryOf(err); ok {
		return err
	}
	return component.NewError(category, op, err)
}

func newPayload(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode payload")
	}
	return s, nil
}

// plain strips named map types so structpb can encode nested readings.
func plain(v any) any {
	switch t := v.(type) {
	case component.Readings:
		return plain(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}
