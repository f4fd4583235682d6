package component

// Readings is the multi-field output of a sensor. Values must be
// representable as JSON: numbers, strings, bools, nested maps and lists.
type Readings map[string]any

type Vector3 struct {
	X, Y, Z float64
}

type GeoPosition struct {
	Latitude  float64
	Longitude float64
	AltitudeM float64
}

type EncoderPositionType int

const (
	PositionTypeUnspecified EncoderPositionType = iota
	PositionTypeTicks
	PositionTypeDegrees
)

type EncoderPosition struct {
	Value float64
	Type  EncoderPositionType
}

type AnalogReader interface {
	Name() string
	Read() (int, error)
}

type Board interface {
	GPIOLevel(pin int) (bool, error)
	SetGPIOLevel(pin int, high bool) error
	AnalogReader(name string) (AnalogReader, error)
}

type Button interface {
	Push() error
}

type Motor interface {
	SetPower(pct float64) error
	Position() (float64, error)
	IsMoving() (bool, error)
	Stop() error
}

type Sensor interface {
	Readings() (Readings, error)
}

type MovementSensor interface {
	Sensor
	AngularVelocity() (Vector3, error)
	LinearAcceleration() (Vector3, error)
	LinearVelocity() (Vector3, error)
	Position() (GeoPosition, error)
	CompassHeading() (float64, error)
}

type Encoder interface {
	Position(kind EncoderPositionType) (EncoderPosition, error)
	ResetPosition() error
}

type Base interface {
	SetPower(linear, angular Vector3) error
	Stop() error
}

type Servo interface {
	Move(angleDeg uint32) error
	Position() (uint32, error)
	Stop() error
}

type Switch interface {
	SetPosition(pos uint32) error
	Position() (uint32, error)
	NumPositions() (uint32, error)
}

type PowerSensor interface {
	Voltage() (float64, error)
	Current() (float64, error)
	Power() (float64, error)
}

type Generic interface {
	DoCommand(cmd map[string]any) (map[string]any, error)
}

type Camera interface {
	Image() ([]byte, error)
}
