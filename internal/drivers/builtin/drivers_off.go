//go:build nobuiltin

package builtin

import "github.com/mattjperez/micro-rdk/internal/registry"

func registerDrivers(*registry.Registry) error { return nil }
