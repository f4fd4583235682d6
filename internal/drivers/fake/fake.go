// Package fake provides in-memory drivers for every component category. They
// are registered under the model name "fake" and let a robot run end to end
// without hardware.
package fake

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/mattjperez/micro-rdk/internal/attr"
	"github.com/mattjperez/micro-rdk/internal/component"
	"github.com/mattjperez/micro-rdk/internal/registry"
	"github.com/mattjperez/micro-rdk/internal/robotconfig"
)

const Model = "fake"

var ErrNotFound = errors.New("not found")

// Board

type analogReader struct {
	name  string
	value int
}

func (r *analogReader) Name() string       { return r.name }
func (r *analogReader) Read() (int, error) { return r.value, nil }

type Board struct {
	mu      sync.Mutex
	analogs map[string]*analogReader
	pins    map[int]bool
}

// NewBoard reads "analogs" (reader name to fixed value) and "pins" (pin
// numbers initially high).
func NewBoard(cfg robotconfig.DynamicComponentConfig) (component.Board, error) {
	b := &Board{
		analogs: map[string]*analogReader{},
		pins:    map[int]bool{},
	}
	if cfg.Attributes.Has("analogs") {
		analogs, err := cfg.Attributes.Struct("analogs")
		if err != nil {
			return nil, err
		}
		for name := range analogs {
			v, err := analogs.Int(name)
			if err != nil {
				return nil, err
			}
			b.analogs[name] = &analogReader{name: name, value: v}
		}
	}
	if cfg.Attributes.Has("pins") {
		pins, err := cfg.Attributes.List("pins")
		if err != nil {
			return nil, err
		}
		for _, p := range pins {
			pin, err := attr.Attributes{"pin": p}.Int("pin")
			if err != nil {
				return nil, err
			}
			b.pins[pin] = true
		}
	}
	return b, nil
}

func (b *Board) GPIOLevel(pin int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pins[pin], nil
}

func (b *Board) SetGPIOLevel(pin int, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pins[pin] = high
	return nil
}

func (b *Board) AnalogReader(name string) (component.AnalogReader, error) {
	r, ok := b.analogs[name]
	if !ok {
		return nil, component.NewError(component.BoardType, "analog_reader", errors.Wrapf(ErrNotFound, "analog reader %q", name))
	}
	return r, nil
}

// Motor

type Motor struct {
	board    component.BoardResource
	hasBoard bool
	power    float64
	position float64
}

// MotorDependencies resolves the "board" attribute, if any.
func MotorDependencies(cfg robotconfig.DynamicComponentConfig) []registry.ResourceKey {
	name, err := cfg.Attributes.String("board")
	if err != nil {
		return nil
	}
	return []registry.ResourceKey{registry.NewResourceKey(component.BoardType, name)}
}

func NewMotor(cfg robotconfig.DynamicComponentConfig, deps []registry.Dependency) (component.Motor, error) {
	pos, err := cfg.Attributes.Float64Or("fake_position", 0)
	if err != nil {
		return nil, err
	}
	m := &Motor{position: pos}
	if cfg.Attributes.Has("board") {
		b, ok := registry.BoardFromDependencies(deps)
		if !ok {
			return nil, errors.Errorf("motor %q: board dependency not resolved", cfg.Name.Name)
		}
		m.board, m.hasBoard = b, true
	}
	return m, nil
}

func (m *Motor) SetPower(pct float64) error {
	if pct < -1 || pct > 1 {
		return component.NewError(component.MotorType, "set_power", errors.Errorf("power %v out of range", pct))
	}
	m.power = pct
	return nil
}

func (m *Motor) Position() (float64, error) { return m.position, nil }
func (m *Motor) IsMoving() (bool, error)    { return m.power != 0, nil }

func (m *Motor) Stop() error {
	m.power = 0
	return nil
}

// Board returns the board the motor drives through, if configured.
func (m *Motor) Board() (component.BoardResource, bool) { return m.board, m.hasBoard }

// Sensor

type Sensor struct {
	value float64
}

func NewSensor(cfg robotconfig.DynamicComponentConfig, _ []registry.Dependency) (component.Sensor, error) {
	v, err := cfg.Attributes.Float64Or("fake_value", 42.42)
	if err != nil {
		return nil, err
	}
	return &Sensor{value: v}, nil
}

func (s *Sensor) Readings() (component.Readings, error) {
	return component.Readings{"fake_sensor": s.value}, nil
}
