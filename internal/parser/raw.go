package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.yaml.in/yaml/v4"
)

// rawDoc is the untyped document tree; it backs schema extraction and the
// few fields the typed model does not expose
type rawDoc map[string]any

func decodeRaw(data []byte) (rawDoc, error) {
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	doc, ok := stringKeys(out).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root is not an object")
	}
	return doc, nil
}

// stringKeys converts YAML mappings with non-string keys, such as
// unquoted status codes, into map[string]any
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = stringKeys(child)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[cast.ToString(k)] = stringKeys(child)
		}
		return out
	case []any:
		for i, child := range t {
			t[i] = stringKeys(child)
		}
		return t
	}
	return v
}

// get walks the tree by object keys and array indexes
func (d rawDoc) get(keys ...string) any {
	var node any = map[string]any(d)
	for _, key := range keys {
		node = d.deref(node)
		switch n := node.(type) {
		case map[string]any:
			node = n[key]
		case []any:
			i, err := cast.ToIntE(key)
			if err != nil || i < 0 || i >= len(n) {
				return nil
			}
			node = n[i]
		default:
			return nil
		}
	}
	return d.deref(node)
}

func (d rawDoc) object(keys ...string) map[string]any {
	m, _ := d.get(keys...).(map[string]any)
	return m
}

func (d rawDoc) has(keys ...string) bool {
	parent := d.object(keys[:len(keys)-1]...)
	if parent == nil {
		return false
	}
	_, ok := parent[keys[len(keys)-1]]
	return ok
}

// deref follows local references until a non-reference node is reached
func (d rawDoc) deref(node any) any {
	for range 32 {
		m, ok := node.(map[string]any)
		if !ok {
			return node
		}
		ref, ok := m["$ref"].(string)
		if !ok {
			return node
		}
		target, ok := d.pointer(ref)
		if !ok {
			return node
		}
		node = target
	}
	return node
}

// pointer resolves a local "#/a/b" reference
func (d rawDoc) pointer(ref string) (any, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, false
	}
	var node any = map[string]any(d)
	for _, token := range strings.Split(ref[2:], "/") {
		token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[token]; !ok {
			return nil, false
		}
	}
	return node, true
}

// findParameter locates the raw parameter object with the given name and location
func (d rawDoc) findParameter(list any, name, in string) map[string]any {
	items, _ := d.deref(list).([]any)
	for _, item := range items {
		p, ok := d.deref(item).(map[string]any)
		if !ok {
			continue
		}
		if p["name"] == name && p["in"] == in {
			return p
		}
	}
	return nil
}

// securityRequirements reads a security list. The second result reports
// whether the list is present at all, so an explicit [] can be told apart.
func (d rawDoc) securityRequirements(keys ...string) ([]map[string]any, bool) {
	if !d.has(keys...) {
		return nil, false
	}
	items, _ := d.get(keys...).([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, true
}

func sortedNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
