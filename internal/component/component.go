// Package component defines the hardware categories a robot can be built
// from, the driver interface each category exposes, and the shared handles
// through which resources are reached once constructed.
//
// A handle wraps its driver in a Locked value. Every capability call takes
// the lock for exactly the duration of that call and never across a blocking
// wait, so collectors and graph edges sharing one resource interleave per call.
package component

import "sync"

// Internal category identifiers.
const (
	BoardType          = "board"
	ButtonType         = "button"
	MotorType          = "motor"
	SensorType         = "sensor"
	MovementSensorType = "movement_sensor"
	EncoderType        = "encoder"
	BaseType           = "base"
	ServoType          = "servo"
	SwitchType         = "switch"
	PowerSensorType    = "power_sensor"
	GenericType        = "generic"
	CameraType         = "camera"
)

// Locked guards a driver shared between collectors and dependents.
type Locked[T any] struct {
	mu sync.Mutex
	v  T
}

func NewLocked[T any](v T) *Locked[T] {
	return &Locked[T]{v: v}
}

// Do runs fn with the lock held.
func (l *Locked[T]) Do(fn func(T) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.v)
}

// Call runs one capability call with the lock held and returns its result.
func Call[T, R any](l *Locked[T], fn func(T) (R, error)) (R, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.v)
}

// Resource is a live handle to one configured component. The set of
// implementations is closed: one per category.
type Resource interface {
	ComponentType() string
	resource()
}

type BoardResource struct{ *Locked[Board] }
type ButtonResource struct{ *Locked[Button] }
type MotorResource struct{ *Locked[Motor] }
type SensorResource struct{ *Locked[Sensor] }
type MovementSensorResource struct{ *Locked[MovementSensor] }
type EncoderResource struct{ *Locked[Encoder] }
type BaseResource struct{ *Locked[Base] }
type ServoResource struct{ *Locked[Servo] }
type SwitchResource struct{ *Locked[Switch] }
type PowerSensorResource struct{ *Locked[PowerSensor] }
type GenericResource struct{ *Locked[Generic] }
type CameraResource struct{ *Locked[Camera] }

func NewBoardResource(b Board) BoardResource    { return BoardResource{NewLocked(b)} }
func NewButtonResource(b Button) ButtonResource { return ButtonResource{NewLocked(b)} }
func NewMotorResource(m Motor) MotorResource    { return MotorResource{NewLocked(m)} }
func NewSensorResource(s Sensor) SensorResource { return SensorResource{NewLocked(s)} }
func NewMovementSensorResource(m MovementSensor) MovementSensorResource {
	return MovementSensorResource{NewLocked(m)}
}
func NewEncoderResource(e Encoder) EncoderResource { return EncoderResource{NewLocked(e)} }
func NewBaseResource(b Base) BaseResource          { return BaseResource{NewLocked(b)} }
func NewServoResource(s Servo) ServoResource       { return ServoResource{NewLocked(s)} }
func NewSwitchResource(s Switch) SwitchResource    { return SwitchResource{NewLocked(s)} }
func NewPowerSensorResource(p PowerSensor) PowerSensorResource {
	return PowerSensorResource{NewLocked(p)}
}
func NewGenericResource(g Generic) GenericResource { return GenericResource{NewLocked(g)} }
func NewCameraResource(c Camera) CameraResource    { return CameraResource{NewLocked(c)} }

func (BoardResource) ComponentType() string          { return BoardType }
func (ButtonResource) ComponentType() string         { return ButtonType }
func (MotorResource) ComponentType() string          { return MotorType }
func (SensorResource) ComponentType() string         { return SensorType }
func (MovementSensorResource) ComponentType() string { return MovementSensorType }
func (EncoderResource) ComponentType() string        { return EncoderType }
func (BaseResource) ComponentType() string           { return BaseType }
func (ServoResource) ComponentType() string          { return ServoType }
func (SwitchResource) ComponentType() string         { return SwitchType }
func (PowerSensorResource) ComponentType() string    { return PowerSensorType }
func (GenericResource) ComponentType() string        { return GenericType }
func (CameraResource) ComponentType() string         { return CameraType }

func (BoardResource) resource()          {}
func (ButtonResource) resource()         {}
func (MotorResource) resource()          {}
func (SensorResource) resource()         {}
func (MovementSensorResource) resource() {}
func (EncoderResource) resource()        {}
func (BaseResource) resource()           {}
func (ServoResource) resource()          {}
func (SwitchResource) resource()         {}
func (PowerSensorResource) resource()    {}
func (GenericResource) resource()        {}
func (CameraResource) resource()         {}
