package binding

import (
	"bytes"
	"errors"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/schema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Constructor builds the typed result from a parsed body.
// Validation failures should be returned as *schema.ValidationError so the
// offending path is reported.
type Constructor interface {
	Construct(s *models.Schema, value any) (any, error)
}

// ConstructorFunc adapts a function to Constructor
type ConstructorFunc func(s *models.Schema, value any) (any, error)

func (f ConstructorFunc) Construct(s *models.Schema, value any) (any, error) {
	return f(s, value)
}

// decodeBody runs the received, parsed and unmarshalled stages around construction
func (e *Executor) decodeBody(op *models.Operation, m *match, body []byte) (any, error) {
	if m.mediaType != MediaTypeJSON {
		return nil, &BodyError{Kind: ErrUnsupportedContentType, ContentType: m.mediaType}
	}

	body, err := e.pipeline.runBytes(StageReceived, op.ID, body)
	if err != nil {
		return nil, err
	}

	var parsed any
	if len(body) > 0 {
		if parsed, err = ParseJSON(body); err != nil {
			return nil, &SchemaViolationError{Schema: schemaName(m.media.Schema), Message: err.Error(), Cause: err}
		}
	}

	parsed, err = e.pipeline.runValue(StageParsed, op.ID, parsed)
	if err != nil {
		return nil, err
	}

	value := parsed
	if m.media.Schema != nil {
		value, err = e.constructor.Construct(m.media.Schema, parsed)
		if err != nil {
			return nil, asSchemaViolation(m.media.Schema, err)
		}
	}

	return e.pipeline.runValue(StageUnmarshalled, op.ID, value)
}

// ParseJSON decodes a single JSON document. Numbers are kept as json.Number
// so integers beyond 2^53 survive decoding.
func ParseJSON(data []byte) (any, error) {
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// asSchemaViolation maps a constructor failure onto SchemaViolationError
func asSchemaViolation(s *models.Schema, err error) error {
	var violation *SchemaViolationError
	if errors.As(err, &violation) {
		return violation
	}
	out := &SchemaViolationError{Schema: schemaName(s), Message: err.Error(), Cause: err}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		out.Path = verr.Path()
		if len(verr.Violations) > 0 {
			out.Message = verr.Violations[0].Message
		}
	}
	return out
}

func schemaName(s *models.Schema) string {
	if s == nil {
		return ""
	}
	return s.Name
}
