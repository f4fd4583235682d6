package collector

import (
	"fmt"
	"strconv"

	"github.com/mattjperez/micro-rdk/internal/component"
)

type MethodKind int

const (
	Readings MethodKind = iota
	AngularVelocity
	LinearAcceleration
	LinearVelocity
	Position
	CompassHeading
	Analogs
	Gpios
	TicksCount
)

// Names are part of the data pipeline contract downstream: new methods must
// keep the UpperCamelCase form.
var methodNames = map[MethodKind]string{
	Readings:           "Readings",
	AngularVelocity:    "AngularVelocity",
	LinearAcceleration: "LinearAcceleration",
	LinearVelocity:     "LinearVelocity",
	Position:           "Position",
	CompassHeading:     "CompassHeading",
	Analogs:            "Analogs",
	Gpios:              "Gpios",
	TicksCount:         "TicksCount",
}

func (k MethodKind) String() string {
	if n, ok := methodNames[k]; ok {
		return n
	}
	return fmt.Sprintf("MethodKind(%d)", int(k))
}

// CollectionMethod is a capability call a collector performs. Analogs carries
// the analog reader name and Gpios the pin number; other kinds carry nothing.
type CollectionMethod struct {
	Kind       MethodKind
	ReaderName string
	Pin        int
}

func Method(kind MethodKind) CollectionMethod {
	return CollectionMethod{Kind: kind}
}

func AnalogsMethod(readerName string) CollectionMethod {
	return CollectionMethod{Kind: Analogs, ReaderName: readerName}
}

func GpiosMethod(pin int) CollectionMethod {
	return CollectionMethod{Kind: Gpios, Pin: pin}
}

func (m CollectionMethod) String() string {
	return m.Kind.String()
}

// Param renders the method parameter: the reader name for Analogs, the pin
// for Gpios, empty for the rest.
func (m CollectionMethod) Param() string {
	switch m.Kind {
	case Analogs:
		return m.ReaderName
	case Gpios:
		return strconv.Itoa(m.Pin)
	default:
		return ""
	}
}

// supportedMethods is the resource category / method compatibility matrix.
var supportedMethods = map[string][]MethodKind{
	component.BoardType:   {Analogs, Gpios},
	component.EncoderType: {TicksCount},
	component.MotorType:   {Position},
	component.MovementSensorType: {
		Readings, AngularVelocity, LinearAcceleration, LinearVelocity, Position, CompassHeading,
	},
	component.SensorType: {Readings},
	component.ServoType:  {Position},
}

func methodSupported(componentType string, m CollectionMethod) bool {
	for _, k := range supportedMethods[componentType] {
		if k == m.Kind {
			return true
		}
	}
	return false
}

// ResourceMethodKey identifies one telemetry stream. It must be unique across
// all collectors of a robot.
type ResourceMethodKey struct {
	ResourceName  string
	ComponentType string
	Method        CollectionMethod
}

func (k ResourceMethodKey) String() string {
	return fmt.Sprintf("ResourceMethodKey (%s:%s, %s)", k.ComponentType, k.ResourceName, k.Method)
}

// Stream is the buffer key of the stream. Unlike String it keeps the method
// parameter, so two Gpios collectors on one board stay apart.
func (k ResourceMethodKey) Stream() string {
	s := k.ComponentType + ":" + k.ResourceName + "/" + k.Method.String()
	if p := k.Method.Param(); p != "" {
		s += "/" + p
	}
	return s
}
