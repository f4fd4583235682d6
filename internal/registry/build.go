package registry

import (
	"github.com/mattjperez/micro-rdk/internal/component"
	"github.com/mattjperez/micro-rdk/internal/robotconfig"
)

// Build looks up the constructor for cfg's category and model, runs it and
// wraps the driver in its shared handle. Boards ignore deps.
func (r *Registry) Build(componentType string, cfg robotconfig.DynamicComponentConfig, deps []Dependency) (component.Resource, error) {
	model := cfg.Model.Name

	switch componentType {
	case component.BoardType:
		return build(r.boards, model, func(c BoardConstructor) (component.Resource, error) {
			b, err := c(cfg)
			return component.NewBoardResource(b), err
		})
	case component.ButtonType:
		return build(r.buttons, model, func(c ButtonConstructor) (component.Resource, error) {
			b, err := c(cfg, deps)
			return component.NewButtonResource(b), err
		})
	case component.MotorType:
		return build(r.motors, model, func(c MotorConstructor) (component.Resource, error) {
			m, err := c(cfg, deps)
			return component.NewMotorResource(m), err
		})
	case component.SensorType:
		return build(r.sensors, model, func(c SensorConstructor) (component.Resource, error) {
			s, err := c(cfg, deps)
			return component.NewSensorResource(s), err
		})
	case component.MovementSensorType:
		return build(r.movementSensors, model, func(c MovementSensorConstructor) (component.Resource, error) {
			m, err := c(cfg, deps)
			return component.NewMovementSensorResource(m), err
		})
	case component.EncoderType:
		return build(r.encoders, model, func(c EncoderConstructor) (component.Resource, error) {
			e, err := c(cfg, deps)
			return component.NewEncoderResource(e), err
		})
	case component.BaseType:
		return build(r.bases, model, func(c BaseConstructor) (component.Resource, error) {
			b, err := c(cfg, deps)
			return component.NewBaseResource(b), err
		})
	case component.ServoType:
		return build(r.servos, model, func(c ServoConstructor) (component.Resource, error) {
			s, err := c(cfg, deps)
			return component.NewServoResource(s), err
		})
	case component.SwitchType:
		return build(r.switches, model, func(c SwitchConstructor) (component.Resource, error) {
			s, err := c(cfg, deps)
			return component.NewSwitchResource(s), err
		})
	case component.PowerSensorType:
		return build(r.powerSensors, model, func(c PowerSensorConstructor) (component.Resource, error) {
			p, err := c(cfg, deps)
			return component.NewPowerSensorResource(p), err
		})
	case component.GenericType:
		return build(r.generics, model, func(c GenericConstructor) (component.Resource, error) {
			g, err := c(cfg, deps)
			return component.NewGenericResource(g), err
		})
	case component.CameraType:
		return build(r.cameras, model, func(c CameraConstructor) (component.Resource, error) {
			cam, err := c(cfg, deps)
			return component.NewCameraResource(cam), err
		})
	default:
		return nil, &ModelNotFoundError{Model: componentType}
	}
}

func build[C any](m models[C], model string, run func(C) (component.Resource, error)) (component.Resource, error) {
	ctor, err := m.get(model)
	if err != nil {
		return nil, err
	}
	res, err := run(ctor)
	if err != nil {
		return nil, err
	}
	return res, nil
}
