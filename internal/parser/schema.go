package parser

import (
	"fmt"
	"maps"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
)

// defsPrefix is where recursive components live inside a built schema
const defsPrefix = "#/$defs/"

// schemaAt builds a self-contained schema from the raw node found at keys.
// fallback names the schema when it is not a reference.
func (d rawDoc) schemaAt(fallback string, keys ...string) (*models.Schema, error) {
	parent := d.object(keys[:len(keys)-1]...)
	if parent == nil {
		return nil, nil
	}
	return d.schemaOf(parent[keys[len(keys)-1]], fallback)
}

// schemaOf inlines the local references of node. A component that refers
// back to itself is kept once under "$defs" and referenced from there, so the
// validator follows the recursion to any depth.
func (d rawDoc) schemaOf(node any, fallback string) (*models.Schema, error) {
	m, ok := node.(map[string]any)
	if !ok {
		return nil, nil
	}
	name := fallback
	if ref, ok := m["$ref"].(string); ok {
		name = ref
	}

	b := &schemaBuilder{
		doc:       d,
		visiting:  map[string]bool{},
		recursive: map[string]bool{},
		defs:      map[string]any{},
	}
	out, err := b.inline(m)
	if err != nil {
		return nil, &SpecError{Code: CodeUnresolvedReference, Location: fallback, Message: "cannot build schema", Err: err}
	}
	doc, _ := out.(map[string]any)
	if doc == nil {
		return nil, nil
	}

	if len(b.defs) > 0 {
		defs := map[string]any{}
		if declared, ok := doc["$defs"].(map[string]any); ok {
			maps.Copy(defs, declared)
		}
		maps.Copy(defs, b.defs)
		root := maps.Clone(doc)
		root["$defs"] = defs
		doc = root
	}
	return &models.Schema{Name: name, Doc: doc}, nil
}

type schemaBuilder struct {
	doc       rawDoc
	visiting  map[string]bool
	recursive map[string]bool
	defs      map[string]any
}

func (b *schemaBuilder) inline(node any) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		if ref, ok := n["$ref"].(string); ok {
			return b.reference(ref)
		}
		out := make(map[string]any, len(n))
		for k, v := range n {
			switch k {
			case "example", "examples", "default", "enum", "const":
				out[k] = v
			case "properties", "patternProperties", "$defs", "definitions":
				// keys are names, values are schemas
				named, _ := v.(map[string]any)
				inlined := make(map[string]any, len(named))
				for name, child := range named {
					c, err := b.inline(child)
					if err != nil {
						return nil, err
					}
					inlined[name] = c
				}
				out[k] = inlined
			default:
				c, err := b.inline(v)
				if err != nil {
					return nil, err
				}
				out[k] = c
			}
		}
		return out, nil
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			c, err := b.inline(v)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return node, nil
}

func (b *schemaBuilder) reference(ref string) (any, error) {
	local := map[string]any{"$ref": defsPrefix + defName(ref)}
	if b.visiting[ref] {
		b.recursive[ref] = true
		return local, nil
	}
	if _, done := b.defs[defName(ref)]; done {
		return local, nil
	}

	target, found := b.doc.pointer(ref)
	if !found {
		return nil, fmt.Errorf("unresolved reference %q", ref)
	}

	b.visiting[ref] = true
	out, err := b.inline(target)
	delete(b.visiting, ref)
	if err != nil {
		return nil, err
	}
	if b.recursive[ref] {
		b.defs[defName(ref)] = out
	}
	return out, nil
}

// defName turns "#/components/schemas/Node" into "components.schemas.Node"
func defName(ref string) string {
	return strings.NewReplacer("/", ".", "~", "_").Replace(strings.TrimPrefix(ref, "#/"))
}
