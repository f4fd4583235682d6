package collector

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjperez/micro-rdk/internal/attr"
	"github.com/mattjperez/micro-rdk/internal/component"
)

type stubReader struct {
	name string
	val  int
	err  error
}

func (r *stubReader) Name() string       { return r.name }
func (r *stubReader) Read() (int, error) { return r.val, r.err }

type stubBoard struct {
	readers map[string]*stubReader
	levels  map[int]bool
}

func (b *stubBoard) GPIOLevel(pin int) (bool, error) {
	high, ok := b.levels[pin]
	if !ok {
		return false, errors.Errorf("pin %d not configured", pin)
	}
	return high, nil
}

func (b *stubBoard) SetGPIOLevel(pin int, high bool) error {
	b.levels[pin] = high
	return nil
}

func (b *stubBoard) AnalogReader(name string) (component.AnalogReader, error) {
	r, ok := b.readers[name]
	if !ok {
		return nil, errors.Errorf("no analog reader %q", name)
	}
	return r, nil
}

type stubSensor struct {
	readings component.Readings
	err      error
}

func (s *stubSensor) Readings() (component.Readings, error) { return s.readings, s.err }

type stubMovementSensor struct {
	stubSensor
}

func (*stubMovementSensor) AngularVelocity() (component.Vector3, error) {
	return component.Vector3{X: 1, Y: 2, Z: 3}, nil
}

func (*stubMovementSensor) LinearAcceleration() (component.Vector3, error) {
	return component.Vector3{X: 4, Y: 5, Z: 6}, nil
}

func (*stubMovementSensor) LinearVelocity() (component.Vector3, error) {
	return component.Vector3{X: 7, Y: 8, Z: 9}, nil
}

func (*stubMovementSensor) Position() (component.GeoPosition, error) {
	return component.GeoPosition{Latitude: 40.7, Longitude: -74.0, AltitudeM: 12.5}, nil
}

func (*stubMovementSensor) CompassHeading() (float64, error) { return 270, nil }

type stubMotor struct {
	pos float64
	err error
}

func (*stubMotor) SetPower(float64) error       { return nil }
func (m *stubMotor) Position() (float64, error) { return m.pos, m.err }
func (*stubMotor) IsMoving() (bool, error)      { return false, nil }
func (*stubMotor) Stop() error                  { return nil }

type stubServo struct{ deg uint32 }

func (*stubServo) Move(uint32) error           { return nil }
func (s *stubServo) Position() (uint32, error) { return s.deg, nil }
func (*stubServo) Stop() error                 { return nil }

type stubEncoder struct{ ticks float64 }

func (e *stubEncoder) Position(kind component.EncoderPositionType) (component.EncoderPosition, error) {
	return component.EncoderPosition{Value: e.ticks, Type: kind}, nil
}

func (*stubEncoder) ResetPosition() error { return nil }

func newStubBoard() *stubBoard {
	return &stubBoard{
		readers: map[string]*stubReader{"a1": {name: "a1", val: 512}},
		levels:  map[int]bool{4: true},
	}
}

// resourcesByType returns one resource per category.
func resourcesByType() map[string]component.Resource {
	return map[string]component.Resource{
		component.BoardType:          component.NewBoardResource(newStubBoard()),
		component.ButtonType:         component.NewButtonResource(nil),
		component.MotorType:          component.NewMotorResource(&stubMotor{pos: 1.5}),
		component.SensorType:         component.NewSensorResource(&stubSensor{}),
		component.MovementSensorType: component.NewMovementSensorResource(&stubMovementSensor{}),
		component.EncoderType:        component.NewEncoderResource(&stubEncoder{}),
		component.BaseType:           component.NewBaseResource(nil),
		component.ServoType:          component.NewServoResource(&stubServo{}),
		component.SwitchType:         component.NewSwitchResource(nil),
		component.PowerSensorType:    component.NewPowerSensorResource(nil),
		component.GenericType:        component.NewGenericResource(nil),
		component.CameraType:         component.NewCameraResource(nil),
	}
}

var allMethods = []CollectionMethod{
	Method(Readings),
	Method(AngularVelocity),
	Method(LinearAcceleration),
	Method(LinearVelocity),
	Method(Position),
	Method(CompassHeading),
	AnalogsMethod("a1"),
	GpiosMethod(4),
	Method(TicksCount),
}

func TestNewCompatibilityMatrix(t *testing.T) {
	valid := map[string][]MethodKind{
		component.BoardType:   {Analogs, Gpios},
		component.EncoderType: {TicksCount},
		component.MotorType:   {Position},
		component.MovementSensorType: {
			Readings, AngularVelocity, LinearAcceleration, LinearVelocity, Position, CompassHeading,
		},
		component.SensorType: {Readings},
		component.ServoType:  {Position},
	}

	for componentType, res := range resourcesByType() {
		for _, m := range allMethods {
			_, err := New("c", res, m, 10, 8000)
			if containsKind(valid[componentType], m.Kind) {
				assert.NoError(t, err, "%s/%s", componentType, m)
				continue
			}
			var unsupported *UnsupportedMethodError
			require.ErrorAs(t, err, &unsupported, "%s/%s", componentType, m)
			assert.Equal(t, componentType, unsupported.ComponentType)
			assert.Equal(t, m, unsupported.Method)
		}
	}
}

func containsKind(kinds []MethodKind, k MethodKind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}

func TestNewRejectsZeroFrequency(t *testing.T) {
	for componentType, res := range resourcesByType() {
		for _, m := range allMethods {
			_, err := New("c", res, m, 0, 8000)
			assert.ErrorIs(t, err, ErrUnsupportedCaptureFrequency, "%s/%s", componentType, m)
		}
	}
}

func TestNewRejectsNegativeFrequency(t *testing.T) {
	res := component.NewSensorResource(&stubSensor{})
	_, err := New("c", res, Method(Readings), -5, 8000)
	assert.ErrorIs(t, err, ErrUnsupportedCaptureFrequency)
}

func TestTimeInterval(t *testing.T) {
	res := component.NewSensorResource(&stubSensor{})
	cases := []struct {
		hz   float32
		want time.Duration
	}{
		{100, 10 * time.Millisecond},
		{3, 333 * time.Millisecond},
		{1, time.Second},
		{0.5, 2 * time.Second},
		{0.1, 10 * time.Second},
		{0.2, 5 * time.Second},
		{0.4, 2500 * time.Millisecond},
		{3000, 0},
	}
	for _, tc := range cases {
		c, err := New("s1", res, Method(Readings), tc.hz, 8000)
		require.NoError(t, err)
		assert.Equal(t, tc.want, c.TimeInterval(), "hz=%v", tc.hz)
	}
}

func TestAccessors(t *testing.T) {
	res := component.NewBoardResource(newStubBoard())
	c, err := New("b1", res, GpiosMethod(4), 2, 4000)
	require.NoError(t, err)

	assert.Equal(t, "b1", c.Name())
	assert.Equal(t, component.BoardType, c.ComponentType())
	assert.Equal(t, "Gpios", c.MethodString())
	assert.Equal(t, 4000, c.Capacity())
	assert.Equal(t, "ResourceMethodKey (board:b1, Gpios)", c.ResourceMethodKey().String())
}

func TestScenarioSensorReadings(t *testing.T) {
	cfg, err := ParseConfig(attr.Attributes{
		"method":               "Readings",
		"capture_frequency_hz": 100,
	})
	require.NoError(t, err)

	res := component.NewSensorResource(&stubSensor{readings: component.Readings{
		"temperature": 21.5,
		"nested":      component.Readings{"ok": true},
	}})
	c, err := FromConfig("s1", res, cfg)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, c.TimeInterval())

	start := time.Now().Add(-time.Second)
	data, err := c.CallMethod(start)
	require.NoError(t, err)
	require.Len(t, data, 1)

	got := data[0].Struct.AsMap()
	assert.Equal(t, map[string]any{
		"readings": map[string]any{
			"temperature": 21.5,
			"nested":      map[string]any{"ok": true},
		},
	}, got)

	md := data[0].Metadata
	assert.GreaterOrEqual(t, md.TimeRequested.AsTime().Sub(time.Unix(0, 0)), time.Second)
	assert.GreaterOrEqual(t, md.TimeReceived.AsTime().Sub(time.Unix(0, 0)), md.TimeRequested.AsTime().Sub(time.Unix(0, 0)))
}

func TestCallMethodPayloads(t *testing.T) {
	resources := resourcesByType()
	cases := []struct {
		componentType string
		method        CollectionMethod
		want          map[string]any
	}{
		{component.BoardType, AnalogsMethod("a1"), map[string]any{"value": 512.0}},
		{component.BoardType, GpiosMethod(4), map[string]any{"high": true}},
		{component.MotorType, Method(Position), map[string]any{"position": 1.5}},
		{component.ServoType, Method(Position), map[string]any{"position_deg": 0.0}},
		{component.EncoderType, Method(TicksCount), map[string]any{"value": 0.0, "position_type": 1.0}},
		{component.MovementSensorType, Method(AngularVelocity), map[string]any{
			"angular_velocity": map[string]any{"x": 1.0, "y": 2.0, "z": 3.0},
		}},
		{component.MovementSensorType, Method(LinearAcceleration), map[string]any{
			"linear_acceleration": map[string]any{"x": 4.0, "y": 5.0, "z": 6.0},
		}},
		{component.MovementSensorType, Method(LinearVelocity), map[string]any{
			"linear_velocity": map[string]any{"x": 7.0, "y": 8.0, "z": 9.0},
		}},
		{component.MovementSensorType, Method(Position), map[string]any{
			"coordinate": map[string]any{"latitude": 40.7, "longitude": -74.0},
			"altitude_m": 12.5,
		}},
		{component.MovementSensorType, Method(CompassHeading), map[string]any{"value": 270.0}},
	}

	for _, tc := range cases {
		t.Run(tc.componentType+"/"+tc.method.String(), func(t *testing.T) {
			c, err := New("r", resources[tc.componentType], tc.method, 10, 8000)
			require.NoError(t, err)

			data, err := c.CallMethod(time.Now())
			require.NoError(t, err)
			require.Len(t, data, 1)
			assert.Equal(t, tc.want, data[0].Struct.AsMap())
			assert.Nil(t, data[0].Binary)
		})
	}
}

func TestCallMethodPropagatesCapabilityErrors(t *testing.T) {
	cases := []struct {
		name     string
		res      component.Resource
		method   CollectionMethod
		category string
	}{
		{"motor", component.NewMotorResource(&stubMotor{err: errors.New("stalled")}), Method(Position), component.MotorType},
		{"sensor", component.NewSensorResource(&stubSensor{err: errors.New("i2c")}), Method(Readings), component.SensorType},
		{"missing reader", component.NewBoardResource(newStubBoard()), AnalogsMethod("nope"), component.BoardType},
		{"gpio", component.NewBoardResource(newStubBoard()), GpiosMethod(9), component.BoardType},
		{
			"analog read",
			component.NewBoardResource(&stubBoard{readers: map[string]*stubReader{"a1": {name: "a1", err: errors.New("adc")}}}),
			AnalogsMethod("a1"),
			component.AnalogCategory,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New("r", tc.res, tc.method, 10, 8000)
			require.NoError(t, err)

			_, err = c.CallMethod(time.Now())
			require.Error(t, err)
			category, ok := component.CategoryOf(err)
			require.True(t, ok)
			assert.Equal(t, tc.category, category)
		})
	}
}

func TestCallMethodKeepsDriverAttribution(t *testing.T) {
	driverErr := component.Unimplemented(component.AnalogCategory, "read")
	res := component.NewMotorResource(&stubMotor{err: driverErr})
	c, err := New("m", res, Method(Position), 10, 8000)
	require.NoError(t, err)

	_, err = c.CallMethod(time.Now())
	assert.Same(t, driverErr, err)
	assert.ErrorIs(t, err, component.ErrMethodUnimplemented)
}
