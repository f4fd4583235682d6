// Package registry maps component categories and model names to driver
// constructors, and records which models need peers resolved before they can
// be built.
//
// A Registry is populated once at startup by an explicit list of Register
// calls (see internal/drivers/builtin) and only read afterwards, so it does
// no locking.
package registry

import (
	"fmt"
	"sort"

	"github.com/mattjperez/micro-rdk/internal/component"
	"github.com/mattjperez/micro-rdk/internal/robotconfig"
)

// ResourceKey identifies a configured resource by category and name.
type ResourceKey struct {
	ComponentType string
	Name          string
}

func NewResourceKey(componentType, name string) ResourceKey {
	return ResourceKey{ComponentType: componentType, Name: name}
}

func (k ResourceKey) String() string {
	return fmt.Sprintf("%s/%s", k.ComponentType, k.Name)
}

// wireSubtypes maps wire-level subtypes to internal categories.
var wireSubtypes = map[string]string{
	"board":           component.BoardType,
	"button":          component.ButtonType,
	"motor":           component.MotorType,
	"sensor":          component.SensorType,
	"camera":          component.CameraType,
	"movement_sensor": component.MovementSensorType,
	"encoder":         component.EncoderType,
	"base":            component.BaseType,
	"servo":           component.ServoType,
	"switch":          component.SwitchType,
	"power_sensor":    component.PowerSensorType,
	"generic":         component.GenericType,
}

// ResourceKeyFromName converts a wire resource name into a ResourceKey.
func ResourceKeyFromName(n robotconfig.ResourceName) (ResourceKey, error) {
	ct, ok := wireSubtypes[n.Subtype]
	if !ok {
		return ResourceKey{}, &ModelNotFoundError{Model: n.Subtype}
	}
	return ResourceKey{ComponentType: ct, Name: n.Name}, nil
}

// Dependency is a resolved peer handed to a constructor.
type Dependency struct {
	Key      ResourceKey
	Resource component.Resource
}

// BoardFromDependencies returns the first board among deps.
func BoardFromDependencies(deps []Dependency) (component.BoardResource, bool) {
	for _, d := range deps {
		if b, ok := d.Resource.(component.BoardResource); ok {
			return b, true
		}
	}
	return component.BoardResource{}, false
}

type (
	BoardConstructor          func(cfg robotconfig.DynamicComponentConfig) (component.Board, error)
	ButtonConstructor         func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.Button, error)
	MotorConstructor          func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.Motor, error)
	SensorConstructor         func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.Sensor, error)
	MovementSensorConstructor func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.MovementSensor, error)
	EncoderConstructor        func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.Encoder, error)
	BaseConstructor           func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.Base, error)
	ServoConstructor          func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.Servo, error)
	SwitchConstructor         func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.Switch, error)
	PowerSensorConstructor    func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.PowerSensor, error)
	GenericConstructor        func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.Generic, error)
	CameraConstructor         func(cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.Camera, error)
)

// DependencyResolver lists the resources a model needs built before it.
type DependencyResolver func(cfg robotconfig.DynamicComponentConfig) []ResourceKey

// models is one category's constructor table.
type models[C any] map[string]C

func (m models[C]) register(model string, ctor C) error {
	if _, exists := m[model]; exists {
		return &ModelAlreadyRegisteredError{Model: model}
	}
	m[model] = ctor
	return nil
}

func (m models[C]) get(model string) (C, error) {
	ctor, ok := m[model]
	if !ok {
		var zero C
		return zero, &ModelNotFoundError{Model: model}
	}
	return ctor, nil
}

func (m models[C]) names() []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// dependencyCapable lists categories whose models may declare peers.
var dependencyCapable = []string{
	component.MotorType,
	component.MovementSensorType,
	component.EncoderType,
	component.SensorType,
	component.BaseType,
	component.CameraType,
	component.ServoType,
	component.PowerSensorType,
	component.GenericType,
}

type Registry struct {
	boards          models[BoardConstructor]
	buttons         models[ButtonConstructor]
	motors          models[MotorConstructor]
	sensors         models[SensorConstructor]
	movementSensors models[MovementSensorConstructor]
	encoders        models[EncoderConstructor]
	bases           models[BaseConstructor]
	servos          models[ServoConstructor]
	switches        models[SwitchConstructor]
	powerSensors    models[PowerSensorConstructor]
	generics        models[GenericConstructor]
	cameras         models[CameraConstructor]

	dependencies map[string]models[DependencyResolver]
}

// New returns an empty registry.
func New() *Registry {
	deps := make(map[string]models[DependencyResolver], len(dependencyCapable))
	for _, ct := range dependencyCapable {
		deps[ct] = models[DependencyResolver]{}
	}
	return &Registry{
		boards:          models[BoardConstructor]{},
		buttons:         models[ButtonConstructor]{},
		motors:          models[MotorConstructor]{},
		sensors:         models[SensorConstructor]{},
		movementSensors: models[MovementSensorConstructor]{},
		encoders:        models[EncoderConstructor]{},
		bases:           models[BaseConstructor]{},
		servos:          models[ServoConstructor]{},
		switches:        models[SwitchConstructor]{},
		powerSensors:    models[PowerSensorConstructor]{},
		generics:        models[GenericConstructor]{},
		cameras:         models[CameraConstructor]{},
		dependencies:    deps,
	}
}

func (r *Registry) RegisterBoard(model string, ctor BoardConstructor) error {
	return r.boards.register(model, ctor)
}

func (r *Registry) RegisterButton(model string, ctor ButtonConstructor) error {
	return r.buttons.register(model, ctor)
}

func (r *Registry) RegisterMotor(model string, ctor MotorConstructor) error {
	return r.motors.register(model, ctor)
}

func (r *Registry) RegisterSensor(model string, ctor SensorConstructor) error {
	return r.sensors.register(model, ctor)
}

func (r *Registry) RegisterMovementSensor(model string, ctor MovementSensorConstructor) error {
	return r.movementSensors.register(model, ctor)
}

func (r *Registry) RegisterEncoder(model string, ctor EncoderConstructor) error {
	return r.encoders.register(model, ctor)
}

func (r *Registry) RegisterBase(model string, ctor BaseConstructor) error {
	return r.bases.register(model, ctor)
}

func (r *Registry) RegisterServo(model string, ctor ServoConstructor) error {
	return r.servos.register(model, ctor)
}

func (r *Registry) RegisterSwitch(model string, ctor SwitchConstructor) error {
	return r.switches.register(model, ctor)
}

func (r *Registry) RegisterPowerSensor(model string, ctor PowerSensorConstructor) error {
	return r.powerSensors.register(model, ctor)
}

func (r *Registry) RegisterGeneric(model string, ctor GenericConstructor) error {
	return r.generics.register(model, ctor)
}

func (r *Registry) RegisterCamera(model string, ctor CameraConstructor) error {
	return r.cameras.register(model, ctor)
}

func (r *Registry) BoardConstructor(model string) (BoardConstructor, error) {
	return r.boards.get(model)
}

func (r *Registry) ButtonConstructor(model string) (ButtonConstructor, error) {
	return r.buttons.get(model)
}

func (r *Registry) MotorConstructor(model string) (MotorConstructor, error) {
	return r.motors.get(model)
}

func (r *Registry) SensorConstructor(model string) (SensorConstructor, error) {
	return r.sensors.get(model)
}

func (r *Registry) MovementSensorConstructor(model string) (MovementSensorConstructor, error) {
	return r.movementSensors.get(model)
}

func (r *Registry) EncoderConstructor(model string) (EncoderConstructor, error) {
	return r.encoders.get(model)
}

func (r *Registry) BaseConstructor(model string) (BaseConstructor, error) {
	return r.bases.get(model)
}

func (r *Registry) ServoConstructor(model string) (ServoConstructor, error) {
	return r.servos.get(model)
}

func (r *Registry) SwitchConstructor(model string) (SwitchConstructor, error) {
	return r.switches.get(model)
}

func (r *Registry) PowerSensorConstructor(model string) (PowerSensorConstructor, error) {
	return r.powerSensors.get(model)
}

func (r *Registry) GenericConstructor(model string) (GenericConstructor, error) {
	return r.generics.get(model)
}

func (r *Registry) CameraConstructor(model string) (CameraConstructor, error) {
	return r.cameras.get(model)
}

// RegisterDependencyResolver records which peers model needs. componentType
// must be one of the dependency-capable categories.
func (r *Registry) RegisterDependencyResolver(componentType, model string, resolver DependencyResolver) error {
	deps, ok := r.dependencies[componentType]
	if !ok {
		return &ComponentTypeNotInDependenciesError{ComponentType: componentType}
	}
	if _, exists := deps[model]; exists {
		return &ModelDependencyFuncRegisteredError{Model: model}
	}
	deps[model] = resolver
	return nil
}

func (r *Registry) DependencyResolver(componentType, model string) (DependencyResolver, error) {
	deps, ok := r.dependencies[componentType]
	if !ok {
		return nil, &ComponentTypeNotInDependenciesError{ComponentType: componentType}
	}
	resolver, ok := deps[model]
	if !ok {
		return nil, &ModelNotFoundInDependenciesError{Model: model, ComponentType: componentType}
	}
	return resolver, nil
}

// Models lists the registered model names of a category, sorted.
func (r *Registry) Models(componentType string) []string {
	switch componentType {
	case component.BoardType:
		return r.boards.names()
	case component.ButtonType:
		return r.buttons.names()
	case component.MotorType:
		return r.motors.names()
	case component.SensorType:
		return r.sensors.names()
	case component.MovementSensorType:
		return r.movementSensors.names()
	case component.EncoderType:
		return r.encoders.names()
	case component.BaseType:
		return r.bases.names()
	case component.ServoType:
		return r.servos.names()
	case component.SwitchType:
		return r.switches.names()
	case component.PowerSensorType:
		return r.powerSensors.names()
	case component.GenericType:
		return r.generics.names()
	case component.CameraType:
		return r.cameras.names()
	default:
		return nil
	}
}
