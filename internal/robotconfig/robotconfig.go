// Package robotconfig holds the robot configuration as delivered by the
// control plane and the conversions the rest of the agent needs from it.
package robotconfig

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/mattjperez/micro-rdk/internal/attr"
)

// Model is a namespace:family:name triplet identifying a driver or service model.
type Model struct {
	Namespace string
	Family    string
	Name      string
}

const (
	builtinNamespace = "rdk"
	builtinFamily    = "builtin"
)

func NewBuiltinModel(name string) Model {
	return Model{Namespace: builtinNamespace, Family: builtinFamily, Name: name}
}

// ParseModel accepts either a full triplet or a bare builtin model name.
func ParseModel(s string) (Model, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return Model{}, errors.New("empty model")
		}
		return NewBuiltinModel(parts[0]), nil
	case 3:
		for _, p := range parts {
			if p == "" {
				return Model{}, errors.Errorf("invalid model %q", s)
			}
		}
		return Model{Namespace: parts[0], Family: parts[1], Name: parts[2]}, nil
	default:
		return Model{}, errors.Errorf("invalid model %q", s)
	}
}

func (m Model) String() string {
	return fmt.Sprintf("%s:%s:%s", m.Namespace, m.Family, m.Name)
}

// ResourceName is the wire-level identity of a resource.
type ResourceName struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Type      string `yaml:"type" json:"type"`
	Subtype   string `yaml:"subtype" json:"subtype"`
	Name      string `yaml:"name" json:"name"`
}

func NewBuiltinResourceName(subtype, name string) ResourceName {
	return ResourceName{Namespace: builtinNamespace, Type: "component", Subtype: subtype, Name: name}
}

// ParseAPI splits "rdk:component:motor" into a ResourceName without a name.
// A bare subtype is accepted as a builtin component API.
func ParseAPI(api string) (ResourceName, error) {
	parts := strings.Split(api, ":")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return ResourceName{}, errors.New("empty api")
		}
		return NewBuiltinResourceName(parts[0], ""), nil
	case 3:
		return ResourceName{Namespace: parts[0], Type: parts[1], Subtype: parts[2]}, nil
	default:
		return ResourceName{}, errors.Errorf("invalid api %q", api)
	}
}

type ComponentConfig struct {
	Name       string          `yaml:"name" json:"name"`
	API        string          `yaml:"api" json:"api"`
	Model      string          `yaml:"model" json:"model"`
	Attributes attr.Attributes `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	DependsOn  []string        `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

type ServiceConfig struct {
	Name       string          `yaml:"name" json:"name"`
	API        string          `yaml:"api" json:"api"`
	Model      string          `yaml:"model" json:"model"`
	Attributes attr.Attributes `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// ModelTriplet parses the service model, returning the zero Model on error.
func (s ServiceConfig) ModelTriplet() Model {
	m, err := ParseModel(s.Model)
	if err != nil {
		return Model{}
	}
	return m
}

type RobotConfig struct {
	Revision   string            `yaml:"revision" json:"revision"`
	Components []ComponentConfig `yaml:"components" json:"components"`
	Services   []ServiceConfig   `yaml:"services,omitempty" json:"services,omitempty"`
}

// ConfigResponse is the control plane's answer to a config request. Config is
// nil when the control plane has nothing for this robot.
type ConfigResponse struct {
	Config *RobotConfig `yaml:"config" json:"config"`
}

// DynamicComponentConfig is a component config resolved for construction.
type DynamicComponentConfig struct {
	Name       ResourceName
	Model      Model
	Attributes attr.Attributes
	DependsOn  []ResourceName
}

// Dynamic resolves the API and model strings of c.
func (c ComponentConfig) Dynamic() (DynamicComponentConfig, error) {
	name, err := ParseAPI(c.API)
	if err != nil {
		return DynamicComponentConfig{}, errors.Wrapf(err, "component %q", c.Name)
	}
	name.Name = c.Name

	model, err := ParseModel(c.Model)
	if err != nil {
		return DynamicComponentConfig{}, errors.Wrapf(err, "component %q", c.Name)
	}

	deps := make([]ResourceName, 0, len(c.DependsOn))
	for _, d := range c.DependsOn {
		rn, err := parseDependsOn(d)
		if err != nil {
			return DynamicComponentConfig{}, errors.Wrapf(err, "component %q", c.Name)
		}
		deps = append(deps, rn)
	}

	return DynamicComponentConfig{
		Name:       name,
		Model:      model,
		Attributes: c.Attributes,
		DependsOn:  deps,
	}, nil
}

// parseDependsOn reads "subtype/name" entries.
func parseDependsOn(s string) (ResourceName, error) {
	subtype, name, ok := strings.Cut(s, "/")
	if !ok || subtype == "" || name == "" {
		return ResourceName{}, errors.Errorf("invalid depends_on entry %q, want subtype/name", s)
	}
	return NewBuiltinResourceName(subtype, name), nil
}
