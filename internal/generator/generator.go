package generator

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/moamenhredeen/oascall/internal/binding"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/spf13/cast"
)

// maxDepth bounds nesting for recursive schemas
const maxDepth = 8

// Generator generates test data from JSON schemas
type Generator struct {
	rng *rand.Rand
	// defs holds the "$defs" of the schema being generated
	defs map[string]any
	// Optional controls whether optional properties and parameters are filled
	Optional bool
}

// NewGenerator creates a new generator instance
func NewGenerator() *Generator {
	return NewSeededGenerator(time.Now().UnixNano())
}

// NewSeededGenerator creates a generator with reproducible output
func NewSeededGenerator(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GenerateValue generates a test value based on a schema
func (g *Generator) GenerateValue(schema *models.Schema) (any, error) {
	if schema == nil {
		return nil, fmt.Errorf("schema is nil")
	}
	g.defs, _ = schema.Doc["$defs"].(map[string]any)
	return g.generate(schema.Doc, 0), nil
}

func (g *Generator) generate(doc map[string]any, depth int) any {
	if doc == nil {
		return "test-value"
	}

	if ref, ok := doc["$ref"].(string); ok {
		target, _ := g.defs[strings.TrimPrefix(ref, "#/$defs/")].(map[string]any)
		// optional branches stop at maxDepth; this only ends required cycles
		if target == nil || depth > 2*maxDepth {
			return nil
		}
		return g.generate(target, depth)
	}

	// Check for example value first
	if example, ok := doc["example"]; ok {
		return example
	}
	if examples, ok := doc["examples"].([]any); ok && len(examples) > 0 {
		return examples[0]
	}

	// Check for default value
	if def, ok := doc["default"]; ok {
		return def
	}

	if enum, ok := doc["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}
	if c, ok := doc["const"]; ok {
		return c
	}

	for _, key := range []string{"allOf", "oneOf", "anyOf"} {
		if list, ok := doc[key].([]any); ok && len(list) > 0 {
			if key == "allOf" {
				return g.generateAllOf(list, depth)
			}
			sub, _ := list[0].(map[string]any)
			return g.generate(sub, depth+1)
		}
	}

	switch schemaType(doc) {
	case "string":
		return g.generateString(doc)
	case "integer":
		return g.generateInteger(doc)
	case "number":
		return g.generateNumber(doc)
	case "boolean":
		return true
	case "array":
		return g.generateArray(doc, depth)
	case "object":
		return g.generateObject(doc, depth)
	case "null":
		return nil
	}

	// If no type specified, try to infer from format
	if format, ok := doc["format"].(string); ok {
		return g.generateFromFormat(format)
	}

	// Default to empty string
	return ""
}

// schemaType returns the first non-null type, inferring object from properties
func schemaType(doc map[string]any) string {
	switch t := doc["type"].(type) {
	case string:
		return t
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s != "null" {
				return s
			}
		}
	}
	if _, ok := doc["properties"]; ok {
		return "object"
	}
	if _, ok := doc["items"]; ok {
		return "array"
	}
	return ""
}

// generateString generates a string value based on schema constraints
func (g *Generator) generateString(doc map[string]any) string {
	// Check format
	if format, ok := doc["format"].(string); ok && format != "" {
		return cast.ToString(g.generateFromFormat(format))
	}

	// Check pattern (simplified - just return a basic string)
	if pattern, ok := doc["pattern"].(string); ok && pattern != "" {
		return "test-string"
	}

	// Check min/max length
	minLength := cast.ToInt(doc["minLength"])
	maxLength := 10
	if v, ok := doc["maxLength"]; ok {
		maxLength = cast.ToInt(v)
	}

	length := minLength
	if maxLength > minLength {
		length = minLength + g.rng.Intn(maxLength-minLength+1)
	}
	if length == 0 && maxLength != 0 {
		length = min(5, maxLength)
	}

	return strings.Repeat("a", length)
}

// bounds returns the numeric range of doc, honouring exclusive bounds
func bounds(doc map[string]any, lo, hi float64) (float64, float64, bool, bool) {
	var exclLo, exclHi bool
	if v, ok := doc["minimum"]; ok {
		lo = cast.ToFloat64(v)
	}
	if v, ok := doc["maximum"]; ok {
		hi = cast.ToFloat64(v)
	}
	switch v := doc["exclusiveMinimum"].(type) {
	case bool:
		exclLo = v
	case nil:
	default:
		lo, exclLo = cast.ToFloat64(v), true
	}
	switch v := doc["exclusiveMaximum"].(type) {
	case bool:
		exclHi = v
	case nil:
	default:
		hi, exclHi = cast.ToFloat64(v), true
	}
	if hi < lo {
		hi = lo + 100
	}
	return lo, hi, exclLo, exclHi
}

// generateInteger generates an integer within the schema bounds
func (g *Generator) generateInteger(doc map[string]any) int64 {
	lo, hi, exclLo, exclHi := bounds(doc, 0, 100)
	low, high := int64(lo), int64(hi)
	if exclLo || float64(low) < lo {
		low++
	}
	if exclHi {
		high--
	}
	if high < low {
		return low
	}
	return low + g.rng.Int63n(high-low+1)
}

// generateNumber generates a number value based on schema constraints
func (g *Generator) generateNumber(doc map[string]any) float64 {
	lo, hi, _, _ := bounds(doc, 0, 100)
	// the midpoint range avoids both exclusive bounds
	return lo + (0.25+g.rng.Float64()*0.5)*(hi-lo)
}

// generateArray generates an array value
func (g *Generator) generateArray(doc map[string]any, depth int) []any {
	minItems := cast.ToInt(doc["minItems"])
	maxItems := 3
	if v, ok := doc["maxItems"]; ok {
		maxItems = cast.ToInt(v)
	}

	count := minItems
	if maxItems > minItems {
		count = minItems + g.rng.Intn(maxItems-minItems+1)
	}
	if count == 0 && maxItems != 0 {
		count = 1
	}
	if depth >= maxDepth {
		count = minItems
	}

	items, _ := doc["items"].(map[string]any)
	result := make([]any, count)
	for i := range result {
		if items == nil {
			// Default to string array
			result[i] = "item"
			continue
		}
		result[i] = g.generate(items, depth+1)
	}
	return result
}

// generateObject generates an object value with every required property
func (g *Generator) generateObject(doc map[string]any, depth int) map[string]any {
	result := make(map[string]any)

	required := map[string]bool{}
	for _, name := range cast.ToStringSlice(doc["required"]) {
		required[name] = true
	}

	props, _ := doc["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !required[name] && (!g.Optional || depth >= maxDepth) {
			continue
		}
		prop, _ := props[name].(map[string]any)
		result[name] = g.generate(prop, depth+1)
	}
	return result
}

func (g *Generator) generateAllOf(list []any, depth int) any {
	merged := make(map[string]any)
	for _, item := range list {
		sub, _ := item.(map[string]any)
		if obj, ok := g.generate(sub, depth+1).(map[string]any); ok {
			for k, v := range obj {
				merged[k] = v
			}
		}
	}
	return merged
}

// generateFromFormat generates a value based on format
func (g *Generator) generateFromFormat(format string) any {
	switch format {
	case "date":
		return time.Now().Format("2006-01-02")
	case "date-time":
		return time.Now().Format(time.RFC3339)
	case "email":
		return "test@example.com"
	case "uri", "url":
		return "https://example.com"
	case "uuid":
		return "123e4567-e89b-12d3-a456-426614174000"
	case "ipv4":
		return "192.0.2.1"
	case "hostname":
		return "example.com"
	case "int32", "int64":
		return g.rng.Int31n(100)
	case "float", "double":
		return g.rng.Float64() * 100
	default:
		return "test-value"
	}
}

// GenerateParameter generates a value for a parameter
func (g *Generator) GenerateParameter(param models.Parameter) (any, error) {
	if param.Schema == nil {
		// Default to string
		return "test", nil
	}
	return g.GenerateValue(param.Schema)
}

// GenerateRequestBody generates a JSON request body for the operation.
// It returns nil when the operation has no JSON body schema.
func (g *Generator) GenerateRequestBody(body *models.RequestBodySpec) (any, string, error) {
	if body == nil {
		return nil, "", fmt.Errorf("request body is nil")
	}
	for _, ct := range body.ContentTypes() {
		if !strings.Contains(ct, "json") {
			continue
		}
		media := body.Content[ct]
		if media == nil || media.Schema == nil {
			return map[string]any{}, binding.MediaTypeJSON, nil
		}
		val, err := g.GenerateValue(media.Schema)
		if err != nil {
			return nil, "", err
		}
		return val, binding.MediaTypeJSON, nil
	}
	return nil, "", fmt.Errorf("no JSON content defined in request body")
}

// GenerateCall builds call arguments for op: every required parameter, and
// optional ones when Optional is set, plus a body when one is declared
func (g *Generator) GenerateCall(op *models.Operation) (binding.Call, error) {
	call := binding.Call{Parameters: make(map[string]any)}

	accepted := op.AcceptedParameters()
	for pair := accepted.First(); pair != nil; pair = pair.Next() {
		param := pair.Value()
		if !param.Required && !g.Optional {
			continue
		}
		val, err := g.GenerateParameter(param)
		if err != nil {
			return call, fmt.Errorf("parameter %q: %w", param.Name, err)
		}
		call.Parameters[param.Name] = val
	}

	if op.RequestBody != nil {
		body, contentType, err := g.GenerateRequestBody(op.RequestBody)
		if err != nil {
			if op.RequestBody.Required {
				return call, err
			}
			return call, nil
		}
		call.Body = body
		call.ContentType = contentType
	}
	return call, nil
}
