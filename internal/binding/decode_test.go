package binding

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var petsSchema = &models.Schema{
	Name: "#/components/schemas/Pets",
	Doc:  map[string]any{"type": "array", "items": petSchema.Doc},
}

func jsonMatch(s *models.Schema) *match {
	return &match{status: "200", mediaType: MediaTypeJSON, media: &models.MediaType{Schema: s}}
}

func TestDecodeBody(t *testing.T) {
	e := NewExecutor(nil, nil)
	op := &models.Operation{ID: "listPets"}

	value, err := e.decodeBody(op, jsonMatch(petsSchema), []byte(`[{"id":1,"name":"Rex"}]`))
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": json.Number("1"), "name": "Rex"}}, value)
}

func TestDecodeBodySchemaViolationPath(t *testing.T) {
	e := NewExecutor(nil, nil)
	op := &models.Operation{ID: "listPets"}

	_, err := e.decodeBody(op, jsonMatch(petsSchema), []byte(`[{"id":1,"name":"Rex"},{"id":"two","name":"Tom"}]`))
	require.ErrorIs(t, err, ErrSchemaViolation)

	var violation *SchemaViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "/1/id", violation.Path)
	assert.Equal(t, petsSchema.Name, violation.Schema)

	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
}

func TestDecodeBodyMissingProperty(t *testing.T) {
	e := NewExecutor(nil, nil)

	_, err := e.decodeBody(&models.Operation{ID: "showPetById"}, jsonMatch(petSchema), []byte(`{"id":1}`))

	var violation *SchemaViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "/name", violation.Path)
}

func TestDecodeBodyMalformedJSON(t *testing.T) {
	e := NewExecutor(nil, nil)

	_, err := e.decodeBody(&models.Operation{ID: "op"}, jsonMatch(petSchema), []byte(`{"id":`))
	require.ErrorIs(t, err, ErrSchemaViolation)

	var violation *SchemaViolationError
	require.ErrorAs(t, err, &violation)
	assert.Empty(t, violation.Path)
}

func TestDecodeBodyNonJSON(t *testing.T) {
	e := NewExecutor(nil, nil)
	m := &match{status: "200", mediaType: "text/plain", media: &models.MediaType{Schema: schemaC}}

	_, err := e.decodeBody(&models.Operation{ID: "op"}, m, []byte("hello"))
	require.ErrorIs(t, err, ErrUnsupportedContentType)
}

func TestDecodeBodyWithoutSchema(t *testing.T) {
	e := NewExecutor(nil, nil)

	value, err := e.decodeBody(&models.Operation{ID: "op"}, jsonMatch(nil), []byte(`{"free":"form"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"free": "form"}, value)
}

func TestDecodeBodyCustomConstructor(t *testing.T) {
	type typedPet struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	constructor := ConstructorFunc(func(s *models.Schema, value any) (any, error) {
		return schema.Decode[typedPet](value)
	})
	e := NewExecutor(nil, nil, WithConstructor(constructor))

	value, err := e.decodeBody(&models.Operation{ID: "op"}, jsonMatch(petSchema), []byte(`{"id":3,"name":"Rex"}`))
	require.NoError(t, err)
	assert.Equal(t, typedPet{ID: 3, Name: "Rex"}, value)
}

func TestDecodeBodyConstructorError(t *testing.T) {
	constructor := ConstructorFunc(func(*models.Schema, any) (any, error) {
		return nil, errors.New("cannot build")
	})
	e := NewExecutor(nil, nil, WithConstructor(constructor))

	_, err := e.decodeBody(&models.Operation{ID: "op"}, jsonMatch(petSchema), []byte(`{}`))
	require.ErrorIs(t, err, ErrSchemaViolation)
	assert.Contains(t, err.Error(), "cannot build")
}

func TestDecodeBodyPipeline(t *testing.T) {
	var stages []Stage
	p := NewPipeline().
		Received(func(id string, b []byte) ([]byte, error) {
			stages = append(stages, StageReceived)
			// unwrap an envelope the server adds
			return b[len(`{"data":`) : len(b)-1], nil
		}).
		Parsed(func(id string, v any) (any, error) {
			stages = append(stages, StageParsed)
			return v, nil
		}).
		Unmarshalled(func(id string, v any) (any, error) {
			stages = append(stages, StageUnmarshalled)
			return v.(map[string]any)["name"], nil
		})
	e := NewExecutor(nil, nil, WithPipeline(p))

	value, err := e.decodeBody(&models.Operation{ID: "op"}, jsonMatch(petSchema), []byte(`{"data":{"id":1,"name":"Rex"}}`))
	require.NoError(t, err)
	assert.Equal(t, "Rex", value)
	assert.Equal(t, []Stage{StageReceived, StageParsed, StageUnmarshalled}, stages)
}
