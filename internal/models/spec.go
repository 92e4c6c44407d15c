package models

import "sort"

// Schema is a JSON Schema document with references inlined
type Schema struct {
	// Name identifies the schema in errors and caches, e.g. "#/components/schemas/Pet"
	Name string
	Doc  map[string]any
}

// Type returns the first declared JSON type, or "" when untyped
func (s *Schema) Type() string {
	if s == nil || s.Doc == nil {
		return ""
	}
	switch t := s.Doc["type"].(type) {
	case string:
		return t
	case []any:
		for _, v := range t {
			if str, ok := v.(string); ok && str != "null" {
				return str
			}
		}
	}
	return ""
}

// Spec is the read-only model of a loaded API description
type Spec struct {
	Title   string
	Version string
	Servers []string
	// Security is the spec-wide default used by operations without their own list
	Security        []SecurityAlternative
	SecuritySchemes map[string]*SecurityScheme
	operations      map[string]*Operation
	order           []string
}

// NewSpec creates an empty spec
func NewSpec() *Spec {
	return &Spec{
		SecuritySchemes: make(map[string]*SecurityScheme),
		operations:      make(map[string]*Operation),
	}
}

// AddOperation registers an operation; it reports false when the ID is taken
func (s *Spec) AddOperation(op *Operation) bool {
	if _, exists := s.operations[op.ID]; exists {
		return false
	}
	s.operations[op.ID] = op
	s.order = append(s.order, op.ID)
	return true
}

// Operation returns the operation with the given operationId
func (s *Spec) Operation(id string) (*Operation, bool) {
	op, ok := s.operations[id]
	return op, ok
}

// Operations returns all operations in document order
func (s *Spec) Operations() []*Operation {
	ops := make([]*Operation, 0, len(s.order))
	for _, id := range s.order {
		ops = append(ops, s.operations[id])
	}
	return ops
}

// SchemeNames returns the defined security scheme names in sorted order
func (s *Spec) SchemeNames() []string {
	names := make([]string, 0, len(s.SecuritySchemes))
	for name := range s.SecuritySchemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
