package registry

import "fmt"

type ModelNotFoundError struct {
	Model string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("registry: model %q not found", e.Model)
}

type ModelAlreadyRegisteredError struct {
	Model string
}

func (e *ModelAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("registry: model %q already exists", e.Model)
}

type ModelDependencyFuncRegisteredError struct {
	Model string
}

func (e *ModelDependencyFuncRegisteredError) Error() string {
	return fmt.Sprintf("registry: model %q dependency getter already registered", e.Model)
}

type ComponentTypeNotInDependenciesError struct {
	ComponentType string
}

func (e *ComponentTypeNotInDependenciesError) Error() string {
	return fmt.Sprintf("registry: dependencies unsupported for component type %q", e.ComponentType)
}

type ModelNotFoundInDependenciesError struct {
	Model         string
	ComponentType string
}

func (e *ModelNotFoundInDependenciesError) Error() string {
	return fmt.Sprintf("registry: model %q not found in dependencies under component type %q",
		e.Model, e.ComponentType)
}
