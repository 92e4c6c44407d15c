package models

import (
	"fmt"
	"sort"

	"github.com/pb33f/libopenapi/orderedmap"
)

// Location is where a parameter travels on the wire
type Location int

const (
	LocationPath Location = iota
	LocationQuery
	LocationHeader
	LocationCookie
)

func (l Location) String() string {
	switch l {
	case LocationPath:
		return "path"
	case LocationQuery:
		return "query"
	case LocationHeader:
		return "header"
	case LocationCookie:
		return "cookie"
	}
	return fmt.Sprintf("location(%d)", int(l))
}

// ParseLocation maps an OpenAPI "in" value to a Location
func ParseLocation(in string) (Location, bool) {
	switch in {
	case "path":
		return LocationPath, true
	case "query":
		return LocationQuery, true
	case "header":
		return LocationHeader, true
	case "cookie":
		return LocationCookie, true
	}
	return 0, false
}

// Parameter represents a single operation parameter
type Parameter struct {
	Name     string
	In       Location
	Required bool
	Schema   *Schema
	Style    string
	Explode  *bool
}

// Exploded reports whether array values are sent as repeated entries.
// OpenAPI defaults explode to true for the form style (query and cookie).
func (p Parameter) Exploded() bool {
	if p.Explode != nil {
		return *p.Explode
	}
	return p.In == LocationQuery || p.In == LocationCookie
}

// MediaType holds the schema for one content type
type MediaType struct {
	Schema *Schema
}

// RequestBodySpec describes the accepted request body
type RequestBodySpec struct {
	Required bool
	Content  map[string]*MediaType
}

// ContentTypes returns the declared content types in sorted order
func (b *RequestBodySpec) ContentTypes() []string {
	return sortedKeys(b.Content)
}

// ResponseSpec describes one entry of an operation's responses map
type ResponseSpec struct {
	Status      string
	Description string
	Content     map[string]*MediaType
}

// MediaTypes returns the declared media types in sorted order
func (r *ResponseSpec) MediaTypes() []string {
	return sortedKeys(r.Content)
}

// Operation represents an invocable OpenAPI operation
type Operation struct {
	ID         string
	Method     string
	Path       string
	Summary    string
	Tags       []string
	Deprecated bool
	Parameters []Parameter
	// PathParameters are shared by every operation of the path item
	PathParameters []Parameter
	RequestBody    *RequestBodySpec
	Responses      map[string]*ResponseSpec
	Security       []SecurityAlternative
	// SecurityDeclared is true when the operation carries its own security
	// list, including an explicitly empty one
	SecurityDeclared bool
}

// AcceptedParameters merges path-level and operation-level parameters.
// Operation parameters replace path-level ones with the same name.
func (o *Operation) AcceptedParameters() *orderedmap.Map[string, Parameter] {
	accepted := orderedmap.New[string, Parameter]()
	for _, p := range o.PathParameters {
		accepted.Set(p.Name, p)
	}
	for _, p := range o.Parameters {
		accepted.Set(p.Name, p)
	}
	return accepted
}

// EffectiveSecurity returns the alternatives that apply to the operation.
// An explicitly empty operation list disables the spec-wide defaults.
func (o *Operation) EffectiveSecurity(spec *Spec) []SecurityAlternative {
	if o.SecurityDeclared || spec == nil {
		return o.Security
	}
	return spec.Security
}

// StatusCodes returns the declared response keys in sorted order
func (o *Operation) StatusCodes() []string {
	return sortedKeys(o.Responses)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
