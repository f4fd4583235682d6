//go:build !nobuiltin

package builtin

import (
	"github.com/mattjperez/micro-rdk/internal/component"
	"github.com/mattjperez/micro-rdk/internal/drivers/fake"
	"github.com/mattjperez/micro-rdk/internal/registry"
)

func registerDrivers(r *registry.Registry) error {
	steps := []func() error{
		func() error { return r.RegisterMotor(fake.Model, fake.NewMotor) },
		func() error {
			return r.RegisterDependencyResolver(component.MotorType, fake.Model, fake.MotorDependencies)
		},
		func() error { return r.RegisterSensor(fake.Model, fake.NewSensor) },
		func() error { return r.RegisterMovementSensor(fake.Model, fake.NewMovementSensor) },
		func() error { return r.RegisterEncoder(fake.Model, fake.NewEncoder) },
		func() error { return r.RegisterBase(fake.Model, fake.NewBase) },
		func() error { return r.RegisterServo(fake.Model, fake.NewServo) },
		func() error { return r.RegisterSwitch(fake.Model, fake.NewSwitch) },
		func() error { return r.RegisterPowerSensor(fake.Model, fake.NewPowerSensor) },
		func() error { return r.RegisterGeneric(fake.Model, fake.NewGeneric) },
		func() error { return r.RegisterButton(fake.Model, fake.NewButton) },
		func() error { return r.RegisterCamera(fake.Model, fake.NewCamera) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
