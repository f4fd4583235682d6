package fake

import (
	"github.com/pkg/errors"

	"github.com/mattjperez/micro-rdk/internal/component"
	"github.com/mattjperez/micro-rdk/internal/registry"
	"github.com/mattjperez/micro-rdk/internal/robotconfig"
)

type MovementSensor struct {
	pos component.GeoPosition
}

func NewMovementSensor(cfg robotconfig.DynamicComponentConfig, _ []registry.Dependency) (component.MovementSensor, error) {
	lat, err := cfg.Attributes.Float64Or("latitude", 40.7)
	if err != nil {
		return nil, err
	}
	lng, err := cfg.Attributes.Float64Or("longitude", -73.98)
	if err != nil {
		return nil, err
	}
	alt, err := cfg.Attributes.Float64Or("altitude_m", 50.5)
	if err != nil {
		return nil, err
	}
	return &MovementSensor{pos: component.GeoPosition{Latitude: lat, Longitude: lng, AltitudeM: alt}}, nil
}

func (s *MovementSensor) Readings() (component.Readings, error) {
	av, _ := s.AngularVelocity()
	la, _ := s.LinearAcceleration()
	heading, _ := s.CompassHeading()
	return component.Readings{
		"angular_velocity":    map[string]any{"x": av.X, "y": av.Y, "z": av.Z},
		"linear_acceleration": map[string]any{"x": la.X, "y": la.Y, "z": la.Z},
		"compass":             heading,
		"position": map[string]any{
			"latitude":  s.pos.Latitude,
			"longitude": s.pos.Longitude,
		},
		"altitude": s.pos.AltitudeM,
	}, nil
}

func (*MovementSensor) AngularVelocity() (component.Vector3, error) {
	return component.Vector3{X: 10.5, Y: 20.5, Z: 30.5}, nil
}

func (*MovementSensor) LinearAcceleration() (component.Vector3, error) {
	return component.Vector3{X: 5.5, Y: 10.5, Z: 15.5}, nil
}

func (*MovementSensor) LinearVelocity() (component.Vector3, error) {
	return component.Vector3{}, component.Unimplemented(component.MovementSensorType, "linear_velocity")
}

func (s *MovementSensor) Position() (component.GeoPosition, error) { return s.pos, nil }
func (*MovementSensor) CompassHeading() (float64, error)           { return 90, nil }

type Encoder struct {
	ticks            float64
	ticksPerRotation float64
}

func NewEncoder(cfg robotconfig.DynamicComponentConfig, _ []registry.Dependency) (component.Encoder, error) {
	ticks, err := cfg.Attributes.Float64Or("fake_ticks", 0)
	if err != nil {
		return nil, err
	}
	tpr, err := cfg.Attributes.Float64Or("ticks_per_rotation", 1)
	if err != nil {
		return nil, err
	}
	if tpr <= 0 {
		return nil, errors.New("ticks_per_rotation must be positive")
	}
	return &Encoder{ticks: ticks, ticksPerRotation: tpr}, nil
}

func (e *Encoder) Position(kind component.EncoderPositionType) (component.EncoderPosition, error) {
	switch kind {
	case component.PositionTypeDegrees:
		return component.EncoderPosition{Value: e.ticks / e.ticksPerRotation * 360, Type: kind}, nil
	default:
		return component.EncoderPosition{Value: e.ticks, Type: component.PositionTypeTicks}, nil
	}
}

func (e *Encoder) ResetPosition() error {
	e.ticks = 0
	return nil
}

type Base struct {
	linear, angular component.Vector3
}

func NewBase(robotconfig.DynamicComponentConfig, []registry.Dependency) (component.Base, error) {
	return &Base{}, nil
}

func (b *Base) SetPower(linear, angular component.Vector3) error {
	b.linear, b.angular = linear, angular
	return nil
}

func (b *Base) Stop() error {
	b.linear, b.angular = component.Vector3{}, component.Vector3{}
	return nil
}

type Servo struct {
	angle uint32
}

func NewServo(cfg robotconfig.DynamicComponentConfig, _ []registry.Dependency) (component.Servo, error) {
	angle, err := cfg.Attributes.Float64Or("fake_position", 10)
	if err != nil {
		return nil, err
	}
	return &Servo{angle: uint32(angle)}, nil
}

func (s *Servo) Move(angleDeg uint32) error {
	if angleDeg > 180 {
		return component.NewError(component.ServoType, "move", errors.Errorf("angle %d out of range", angleDeg))
	}
	s.angle = angleDeg
	return nil
}

func (s *Servo) Position() (uint32, error) { return s.angle, nil }
func (*Servo) Stop() error                 { return nil }

type Switch struct {
	position, positions uint32
}

func NewSwitch(cfg robotconfig.DynamicComponentConfig, _ []registry.Dependency) (component.Switch, error) {
	n, err := cfg.Attributes.Float64Or("position_count", 2)
	if err != nil {
		return nil, err
	}
	return &Switch{positions: uint32(n)}, nil
}

func (s *Switch) SetPosition(pos uint32) error {
	if pos >= s.positions {
		return component.NewError(component.SwitchType, "set_position", errors.Errorf("position %d out of range", pos))
	}
	s.position = pos
	return nil
}

func (s *Switch) Position() (uint32, error)     { return s.position, nil }
func (s *Switch) NumPositions() (uint32, error) { return s.positions, nil }

type PowerSensor struct {
	volts, amps float64
}

func NewPowerSensor(cfg robotconfig.DynamicComponentConfig, _ []registry.Dependency) (component.PowerSensor, error) {
	v, err := cfg.Attributes.Float64Or("voltage", 12)
	if err != nil {
		return nil, err
	}
	a, err := cfg.Attributes.Float64Or("current", 0.5)
	if err != nil {
		return nil, err
	}
	return &PowerSensor{volts: v, amps: a}, nil
}

func (p *PowerSensor) Voltage() (float64, error) { return p.volts, nil }
func (p *PowerSensor) Current() (float64, error) { return p.amps, nil }
func (p *PowerSensor) Power() (float64, error)   { return p.volts * p.amps, nil }

// Generic echoes commands back.
type Generic struct{}

func NewGeneric(robotconfig.DynamicComponentConfig, []registry.Dependency) (component.Generic, error) {
	return Generic{}, nil
}

func (Generic) DoCommand(cmd map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(cmd))
	for k, v := range cmd {
		out[k] = v
	}
	return out, nil
}

type Button struct {
	pushes int
}

func NewButton(robotconfig.DynamicComponentConfig, []registry.Dependency) (component.Button, error) {
	return &Button{}, nil
}

func (b *Button) Push() error {
	b.pushes++
	return nil
}

// Camera serves a fixed frame.
type Camera struct {
	frame []byte
}

// SOI and EOI markers of an empty JPEG stream.
var emptyJPEG = []byte{0xFF, 0xD8, 0xFF, 0xD9}

func NewCamera(robotconfig.DynamicComponentConfig, []registry.Dependency) (component.Camera, error) {
	return &Camera{frame: emptyJPEG}, nil
}

func (c *Camera) Image() ([]byte, error) {
	return append([]byte(nil), c.frame...), nil
}
