package binding

import (
	"strings"
	"testing"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool {
	return &b
}

func paramOperation() *models.Operation {
	return &models.Operation{
		ID:     "showPetById",
		Method: "get",
		Path:   "/owners/{ownerId}/pets/{petId}",
		PathParameters: []models.Parameter{
			{Name: "ownerId", In: models.LocationPath, Required: true},
			{Name: "X-Request-ID", In: models.LocationHeader},
		},
		Parameters: []models.Parameter{
			{Name: "petId", In: models.LocationPath, Required: true},
			{Name: "X-Request-ID", In: models.LocationHeader, Required: true},
			{Name: "tags", In: models.LocationQuery},
			{Name: "fields", In: models.LocationQuery, Explode: boolPtr(false)},
			{Name: "session", In: models.LocationCookie},
		},
	}
}

func bind(t *testing.T, op *models.Operation, values map[string]any, strict bool) (*BoundRequest, error) {
	t.Helper()
	req := newBoundRequest(op.ID, "GET", "", op.Path)
	return req, bindParameters(req, op, values, strict)
}

func TestBindParameters(t *testing.T) {
	op := paramOperation()

	req, err := bind(t, op, map[string]any{
		"ownerId":      7,
		"petId":        "a b/c",
		"X-Request-ID": "req-1",
		"tags":         []string{"dog", "cat"},
		"fields":       []any{"id", "name"},
		"session":      "s1",
		"unknown":      "ignored",
	}, false)
	require.NoError(t, err)

	assert.Equal(t, "/owners/7/pets/a%20b%2Fc", req.Path)
	assert.False(t, strings.ContainsAny(req.Path, "{}"))
	assert.Equal(t, "req-1", req.Header.Get("X-Request-ID"))
	assert.Equal(t, []string{"dog", "cat"}, req.Query["tags"])
	assert.Equal(t, []string{"id,name"}, req.Query["fields"])
	assert.NotContains(t, req.Query, "unknown")
	require.Len(t, req.Cookies, 1)
	assert.Equal(t, "s1", req.Cookies[0].Value)
}

func TestBindParametersOperationOverridesPathLevel(t *testing.T) {
	op := paramOperation()

	// X-Request-ID is optional at path level and required at operation level
	_, err := bind(t, op, map[string]any{"ownerId": 1, "petId": 2}, false)

	var paramErr *ParameterError
	require.ErrorAs(t, err, &paramErr)
	assert.ErrorIs(t, err, ErrMissingParameter)
	assert.Equal(t, "X-Request-ID", paramErr.Name)
	assert.Equal(t, "header", paramErr.In)
}

func TestBindParametersMissingRequired(t *testing.T) {
	op := paramOperation()

	_, err := bind(t, op, map[string]any{"petId": 2, "X-Request-ID": "r"}, false)
	require.ErrorIs(t, err, ErrMissingParameter)
	assert.Contains(t, err.Error(), "ownerId")
}

func TestBindParametersOptionalSkipped(t *testing.T) {
	op := paramOperation()

	req, err := bind(t, op, map[string]any{"ownerId": 1, "petId": 2, "X-Request-ID": "r"}, false)
	require.NoError(t, err)
	assert.Empty(t, req.Query)
	assert.Empty(t, req.Cookies)
}

func TestBindParametersUndeclaredPlaceholder(t *testing.T) {
	op := &models.Operation{ID: "op", Method: "get", Path: "/items/{itemId}"}

	_, err := bind(t, op, map[string]any{"itemId": 1}, false)

	var paramErr *ParameterError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "itemId", paramErr.Name)
	assert.Empty(t, paramErr.In)
}

func TestBindParametersStrict(t *testing.T) {
	op := paramOperation()

	_, err := bind(t, op, map[string]any{"ownerId": 1, "petId": 2, "X-Request-ID": "r", "limit": 5}, true)
	require.ErrorIs(t, err, ErrUnknownParameter)
	assert.NotErrorIs(t, err, ErrMissingParameter)
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want []string
	}{
		{in: "x", want: []string{"x"}},
		{in: 42, want: []string{"42"}},
		{in: 1.5, want: []string{"1.5"}},
		{in: true, want: []string{"true"}},
		{in: nil, want: []string{""}},
		{in: []int{1, 2}, want: []string{"1", "2"}},
		{in: [2]string{"a", "b"}, want: []string{"a", "b"}},
		{in: []byte("raw"), want: []string{"raw"}},
	}
	for _, tt := range tests {
		got, err := stringify(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%#v", tt.in)
	}

	_, err := stringify(struct{}{})
	assert.Error(t, err)
}
