package flowmesh

import "fmt"

// Schema is a named validator for a node's declared input or
// output model (Design Notes §9: "validation is a schema-interpreter pass,
// not reflection"). Grounded on the event registry's EventSchema/Validate
// shape from the pack, generalized from event payloads to node payloads.
type Schema struct {
	Name        string
	Description string
	Validator   func(payload any) error
}

// Validate runs the schema's validator, if any. A Schema with a nil
// Validator accepts every payload — useful as a named placeholder before
// real validation logic is wired in.
func (s *Schema) Validate(payload any) error {
	if s.Validator == nil {
		return nil
	}
	if err := s.Validator(payload); err != nil {
		return fmt.Errorf("schema %s: %w", s.Name, err)
	}
	return nil
}

// ModelRegistry maps declared model names (Node.InputModel/OutputModel) to
// Schemas. One ModelRegistry is shared by every node in a Runtime.
type ModelRegistry struct {
	schemas *Registry[string, *Schema]
}

// NewModelRegistry creates an empty ModelRegistry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{schemas: NewRegistry[string, *Schema]()}
}

// Register adds or replaces the schema for a model name.
func (m *ModelRegistry) Register(schema *Schema) {
	m.schemas.set(schema.Name, schema)
}

// Validate looks up the named model and validates payload against it. A
// model name with no registered schema is treated as always-valid: nodes
// are free to declare InputModel/OutputModel names without registering
// schemas for them, e.g. during incremental development.
func (m *ModelRegistry) Validate(modelName string, payload any) error {
	if modelName == "" {
		return nil
	}
	schema, ok := m.schemas.get(modelName)
	if !ok {
		return nil
	}
	return schema.Validate(payload)
}
