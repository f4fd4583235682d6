// Package builtin holds the default set of driver models. Register is the
// only way they reach a registry; there is no package-level registry.
package builtin

import (
	"github.com/mattjperez/micro-rdk/internal/drivers/fake"
	"github.com/mattjperez/micro-rdk/internal/registry"
)

// Register adds the built-in models to r, in a fixed order. Running it on a
// fresh registry always produces the same registry; running it twice on the
// same one fails with ModelAlreadyRegisteredError.
func Register(r *registry.Registry) error {
	if err := r.RegisterBoard(fake.Model, fake.NewBoard); err != nil {
		return err
	}
	return registerDrivers(r)
}
