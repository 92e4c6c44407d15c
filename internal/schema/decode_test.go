package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type owner struct {
	Email string `json:"email"`
}

type typedPet struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Tags      []string      `json:"tags"`
	Owner     *owner        `json:"owner"`
	BornAt    time.Time     `json:"born_at"`
	FeedEvery time.Duration `json:"feed_every"`
}

func TestDecode(t *testing.T) {
	value := map[string]any{
		"id":         float64(7),
		"name":       "Rex",
		"tags":       []any{"good", "dog"},
		"owner":      map[string]any{"email": "a@example.com"},
		"born_at":    "2020-01-02T03:04:05Z",
		"feed_every": "8h",
	}

	got, err := Decode[typedPet](value)
	require.NoError(t, err)
	assert.Equal(t, typedPet{
		ID:        7,
		Name:      "Rex",
		Tags:      []string{"good", "dog"},
		Owner:     &owner{Email: "a@example.com"},
		BornAt:    time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		FeedEvery: 8 * time.Hour,
	}, got)
}

func TestDecodeSlice(t *testing.T) {
	got, err := Decode[[]typedPet]([]any{
		map[string]any{"id": float64(1), "name": "a"},
		map[string]any{"id": float64(2), "name": "b"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].Name)
}

func TestDecodeMismatch(t *testing.T) {
	_, err := Decode[typedPet](map[string]any{"owner": "not an object"})
	assert.ErrorContains(t, err, "decode into schema.typedPet")
}
