package binding

import (
	"encoding/json"
	"fmt"
	"maps"
	"mime"
	"reflect"
	"slices"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
)

// MediaTypeJSON is the only body media type the codec encodes and decodes
const MediaTypeJSON = "application/json"

// Model is implemented by typed values that can present themselves as plain
// maps and slices before encoding
type Model interface {
	AsValue() (any, error)
}

// StructModel adapts any JSON-marshalable Go value, typically a struct, to Model
func StructModel(v any) Model {
	return structModel{v: v}
}

type structModel struct {
	v any
}

func (m structModel) AsValue() (any, error) {
	raw, err := json.Marshal(m.v)
	if err != nil {
		return nil, err
	}
	return ParseJSON(raw)
}

// mediaTypeOf strips parameters such as charset and lower-cases the type
func mediaTypeOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// encoded is the outcome of body encoding; absent bodies have a nil payload
type encoded struct {
	payload     []byte
	contentType string
}

// encodeBody validates and serializes data against the operation's body spec
func (e *Executor) encodeBody(op *models.Operation, data any, contentType string) (*encoded, error) {
	spec := op.RequestBody
	if spec == nil {
		return nil, nil
	}
	if data == nil {
		if spec.Required {
			return nil, &BodyError{Kind: ErrMissingBody, Message: "request body is required but none was provided"}
		}
		return nil, nil
	}

	media, err := selectRequestMedia(spec, contentType)
	if err != nil {
		return nil, err
	}

	value, err := toStructured(data)
	if err != nil {
		return nil, err
	}

	value, err = e.pipeline.runValue(StageMarshalled, op.ID, value)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return nil, &BodyError{Kind: ErrTypeMismatch, GoType: fmt.Sprintf("%T", value), Message: err.Error()}
	}

	if e.validateRequests && media.Schema != nil {
		normalized, err := ParseJSON(payload)
		if err != nil {
			return nil, &SchemaViolationError{Schema: media.Schema.Name, Message: err.Error(), Cause: err}
		}
		if _, err := e.constructor.Construct(media.Schema, normalized); err != nil {
			return nil, asSchemaViolation(media.Schema, err)
		}
	}

	payload, err = e.pipeline.runBytes(StageSending, op.ID, payload)
	if err != nil {
		return nil, err
	}
	return &encoded{payload: payload, contentType: MediaTypeJSON}, nil
}

// selectRequestMedia resolves the requested content type against the declared ones
func selectRequestMedia(spec *models.RequestBodySpec, contentType string) (*models.MediaType, error) {
	requested := mediaTypeOf(contentType)
	if requested == "" {
		requested = MediaTypeJSON
	}
	if requested != MediaTypeJSON {
		return nil, &BodyError{Kind: ErrUnsupportedContentType, ContentType: requested}
	}
	// the exact key wins over parameterized variants, then keys in sorted order
	if media, ok := spec.Content[MediaTypeJSON]; ok {
		return mediaOrEmpty(media), nil
	}
	for _, declared := range slices.Sorted(maps.Keys(spec.Content)) {
		if mediaTypeOf(declared) == MediaTypeJSON {
			return mediaOrEmpty(spec.Content[declared]), nil
		}
	}
	return nil, &BodyError{
		Kind:        ErrUnsupportedContentType,
		ContentType: requested,
		Message:     "operation accepts " + strings.Join(spec.ContentTypes(), ", "),
	}
}

func mediaOrEmpty(media *models.MediaType) *models.MediaType {
	if media == nil {
		return &models.MediaType{}
	}
	return media
}

// toStructured accepts models, maps, slices and arrays
func toStructured(data any) (any, error) {
	if m, ok := data.(Model); ok {
		value, err := m.AsValue()
		if err != nil {
			return nil, &BodyError{Kind: ErrTypeMismatch, GoType: fmt.Sprintf("%T", data), Message: err.Error()}
		}
		return value, nil
	}
	switch reflect.ValueOf(data).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return data, nil
	}
	return nil, &BodyError{Kind: ErrTypeMismatch, GoType: fmt.Sprintf("%T", data), Message: "body must be a map, a slice or a Model"}
}
