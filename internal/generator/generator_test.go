package generator

import (
	"testing"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	g := NewGenerator()
	if g == nil {
		t.Fatal("Generator is nil")
	}
}

func TestGenerateValue(t *testing.T) {
	g := NewSeededGenerator(1)

	tests := []struct {
		name  string
		doc   map[string]any
		check func(t *testing.T, v any)
	}{
		{"string", map[string]any{"type": "string"}, func(t *testing.T, v any) {
			assert.IsType(t, "", v)
		}},
		{"integer", map[string]any{"type": "integer", "minimum": 5, "maximum": 7}, func(t *testing.T, v any) {
			n, ok := v.(int64)
			require.True(t, ok, "got %T", v)
			assert.GreaterOrEqual(t, n, int64(5))
			assert.LessOrEqual(t, n, int64(7))
		}},
		{"exclusive bounds", map[string]any{"type": "integer", "exclusiveMinimum": 0, "exclusiveMaximum": 2}, func(t *testing.T, v any) {
			assert.Equal(t, int64(1), v)
		}},
		{"boolean", map[string]any{"type": "boolean"}, func(t *testing.T, v any) {
			assert.Equal(t, true, v)
		}},
		{"example wins", map[string]any{"type": "string", "example": "doggie"}, func(t *testing.T, v any) {
			assert.Equal(t, "doggie", v)
		}},
		{"enum", map[string]any{"type": "string", "enum": []any{"available", "sold"}}, func(t *testing.T, v any) {
			assert.Equal(t, "available", v)
		}},
		{"uuid format", map[string]any{"type": "string", "format": "uuid"}, func(t *testing.T, v any) {
			assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", v)
		}},
		{"nullable type list", map[string]any{"type": []any{"null", "integer"}}, func(t *testing.T, v any) {
			assert.IsType(t, int64(0), v)
		}},
		{"array", map[string]any{"type": "array", "minItems": 2, "maxItems": 2, "items": map[string]any{"type": "string"}}, func(t *testing.T, v any) {
			arr, ok := v.([]any)
			require.True(t, ok)
			assert.Len(t, arr, 2)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := g.GenerateValue(&models.Schema{Doc: tt.doc})
			require.NoError(t, err)
			tt.check(t, v)
		})
	}
}

func TestGenerateValue_NilSchema(t *testing.T) {
	_, err := NewGenerator().GenerateValue(nil)
	assert.Error(t, err)
}

func TestGenerateObject_SatisfiesSchema(t *testing.T) {
	pet := &models.Schema{Name: "Pet", Doc: map[string]any{
		"type":     "object",
		"required": []any{"id", "name"},
		"properties": map[string]any{
			"id":   map[string]any{"type": "integer", "format": "int64"},
			"name": map[string]any{"type": "string", "maxLength": 3},
			"tag":  map[string]any{"type": "string"},
		},
	}}

	g := NewSeededGenerator(42)
	v, err := g.GenerateValue(pet)
	require.NoError(t, err)

	obj := v.(map[string]any)
	assert.Contains(t, obj, "id")
	assert.Contains(t, obj, "name")
	assert.NotContains(t, obj, "tag", "optional properties are skipped by default")
	assert.NoError(t, schema.NewValidator().Validate(pet, v))

	g.Optional = true
	v, err = g.GenerateValue(pet)
	require.NoError(t, err)
	assert.Contains(t, v.(map[string]any), "tag")
}

func TestGenerateValue_RecursiveSchema(t *testing.T) {
	node := map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name":     map[string]any{"type": "string"},
			"children": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/$defs/components.schemas.Node"}},
		},
	}
	doc := map[string]any{
		"type":       node["type"],
		"required":   node["required"],
		"properties": node["properties"],
		"$defs":      map[string]any{"components.schemas.Node": node},
	}
	s := &models.Schema{Name: "#/components/schemas/Node", Doc: doc}

	g := NewSeededGenerator(3)
	g.Optional = true
	value, err := g.GenerateValue(s)
	require.NoError(t, err)

	tree, ok := value.(map[string]any)
	require.True(t, ok, "got %T", value)
	assert.Contains(t, tree, "children")
	assert.NoError(t, schema.NewValidator().Validate(s, value))
}

func TestGenerateCall(t *testing.T) {
	op := &models.Operation{
		ID:     "showPetById",
		Method: "GET",
		Path:   "/pets/{petId}",
		PathParameters: []models.Parameter{
			{Name: "petId", In: models.LocationPath, Required: true, Schema: &models.Schema{Doc: map[string]any{"type": "integer"}}},
		},
		Parameters: []models.Parameter{
			{Name: "verbose", In: models.LocationQuery},
		},
		RequestBody: &models.RequestBodySpec{
			Required: true,
			Content: map[string]*models.MediaType{
				"application/json": {Schema: &models.Schema{Doc: map[string]any{"type": "object"}}},
			},
		},
	}

	call, err := NewSeededGenerator(7).GenerateCall(op)
	require.NoError(t, err)
	assert.Contains(t, call.Parameters, "petId")
	assert.NotContains(t, call.Parameters, "verbose")
	assert.Equal(t, map[string]any{}, call.Body)
	assert.Equal(t, "application/json", call.ContentType)
}

func TestGenerateRequestBody_NoJSON(t *testing.T) {
	_, _, err := NewGenerator().GenerateRequestBody(&models.RequestBodySpec{
		Content: map[string]*models.MediaType{"application/xml": {}},
	})
	assert.Error(t, err)
}
