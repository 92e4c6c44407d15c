package parser

import (
	"fmt"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/pb33f/libopenapi"
	v2 "github.com/pb33f/libopenapi/datamodel/high/v2"
	"github.com/spf13/cast"
)

// schema keywords a Swagger 2.0 non-body parameter carries inline
var v2ParameterKeywords = []string{
	"type", "format", "items", "enum", "default", "minimum", "maximum",
	"exclusiveMinimum", "exclusiveMaximum", "minLength", "maxLength",
	"pattern", "minItems", "maxItems", "uniqueItems", "multipleOf",
}

func (p *Parser) buildV2(document libopenapi.Document, raw rawDoc) (*models.Spec, error) {
	model, errs := document.BuildV2Model()
	if model == nil {
		return nil, &SpecError{Code: CodeModelBuildError, Message: "failed to build v2 model", Err: fmt.Errorf("%v", errs)}
	}
	if errs != nil {
		p.logger.Warn("v2 model built with errors", "error", fmt.Sprint(errs))
	}

	swagger := model.Model
	spec := models.NewSpec()
	if swagger.Info != nil {
		spec.Title = swagger.Info.Title
		spec.Version = swagger.Info.Version
	}

	host := swagger.Host
	if host == "" {
		host = "localhost"
	}
	schemes := swagger.Schemes
	if len(schemes) == 0 {
		schemes = []string{"http"}
	}
	for _, scheme := range schemes {
		spec.Servers = append(spec.Servers, scheme+"://"+host+swagger.BasePath)
	}

	if swagger.SecurityDefinitions != nil && swagger.SecurityDefinitions.Definitions != nil {
		for pair := swagger.SecurityDefinitions.Definitions.First(); pair != nil; pair = pair.Next() {
			scheme, err := schemeFromV2(pair.Key(), pair.Value())
			if err != nil {
				return nil, err
			}
			spec.SecuritySchemes[pair.Key()] = scheme
		}
	}

	requirements, _ := raw.securityRequirements("security")
	spec.Security = alternatives(requirements)

	if swagger.Paths == nil || swagger.Paths.PathItems == nil {
		return spec, nil
	}

	for pair := swagger.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path, item := pair.Key(), pair.Value()
		if item == nil {
			continue
		}

		for _, entry := range []struct {
			method string
			op     *v2.Operation
		}{
			{"get", item.Get}, {"put", item.Put}, {"post", item.Post}, {"delete", item.Delete},
			{"options", item.Options}, {"head", item.Head}, {"patch", item.Patch},
		} {
			if entry.op == nil {
				continue
			}
			op, err := p.v2Operation(raw, path, entry.method, entry.op)
			if err != nil {
				return nil, err
			}
			if err := addOperation(spec, op); err != nil {
				return nil, err
			}
		}
	}

	return spec, nil
}

func (p *Parser) v2Operation(raw rawDoc, path, method string, src *v2.Operation) (*models.Operation, error) {
	op := &models.Operation{
		ID:         operationID(src.OperationId, method, path),
		Method:     strings.ToUpper(method),
		Path:       path,
		Summary:    src.Summary,
		Tags:       append([]string(nil), src.Tags...),
		Deprecated: cast.ToBool(raw.get("paths", path, method, "deprecated")),
		Responses:  make(map[string]*models.ResponseSpec),
	}

	consumes := mediaTypes(raw, "consumes", path, method)
	produces := mediaTypes(raw, "produces", path, method)

	var err error
	if op.PathParameters, err = p.v2Parameters(raw, op, consumes, "paths", path); err != nil {
		return nil, err
	}
	if op.Parameters, err = p.v2Parameters(raw, op, consumes, "paths", path, method); err != nil {
		return nil, err
	}

	if responses := src.Responses; responses != nil {
		if responses.Codes != nil {
			for code := responses.Codes.First(); code != nil; code = code.Next() {
				if op.Responses[code.Key()], err = v2Response(raw, op.ID, path, method, code.Key(), produces); err != nil {
					return nil, err
				}
			}
		}
		if responses.Default != nil {
			if op.Responses["default"], err = v2Response(raw, op.ID, path, method, "default", produces); err != nil {
				return nil, err
			}
		}
	}

	requirements, declared := raw.securityRequirements("paths", path, method, "security")
	op.SecurityDeclared = declared
	op.Security = alternatives(requirements)

	return op, nil
}

// v2Parameters converts the raw parameter list at keys. A body parameter
// becomes op's request body, so operation-level bodies replace path-level
// ones. formData parameters are not supported.
func (p *Parser) v2Parameters(raw rawDoc, op *models.Operation, consumes []string, keys ...string) ([]models.Parameter, error) {
	list, _ := raw.get(append(keys, "parameters")...).([]any)
	out := make([]models.Parameter, 0, len(list))
	for _, item := range list {
		node, ok := raw.deref(item).(map[string]any)
		if !ok {
			continue
		}
		name := cast.ToString(node["name"])
		in := cast.ToString(node["in"])
		required := cast.ToBool(node["required"])

		switch in {
		case "body":
			schema, err := raw.schemaOf(node["schema"], op.ID+" request body")
			if err != nil {
				return nil, err
			}
			body := &models.RequestBodySpec{Required: required, Content: make(map[string]*models.MediaType)}
			for _, ct := range consumes {
				body.Content[ct] = &models.MediaType{Schema: schema}
			}
			op.RequestBody = body
			continue
		case "formData":
			p.logger.Warn("formData parameter skipped", "operation", op.ID, "parameter", name)
			continue
		}

		location, ok := models.ParseLocation(in)
		if !ok {
			return nil, &SpecError{
				Code:     CodeUnknownLocation,
				Location: strings.Join(keys[1:], " "),
				Message:  fmt.Sprintf("parameter %q has unknown location %q", name, in),
			}
		}

		param := models.Parameter{Name: name, In: location, Required: required}
		explode := cast.ToString(node["collectionFormat"]) == "multi"
		param.Explode = &explode

		doc := make(map[string]any)
		for _, keyword := range v2ParameterKeywords {
			if v, ok := node[keyword]; ok {
				doc[keyword] = v
			}
		}
		if len(doc) > 0 {
			schema, err := raw.schemaOf(doc, fmt.Sprintf("%s parameter %s", in, name))
			if err != nil {
				return nil, err
			}
			param.Schema = schema
		}
		out = append(out, param)
	}
	return out, nil
}

func v2Response(raw rawDoc, operationID, path, method, status string, produces []string) (*models.ResponseSpec, error) {
	resp := &models.ResponseSpec{
		Status:      status,
		Description: cast.ToString(raw.get("paths", path, method, "responses", status, "description")),
		Content:     make(map[string]*models.MediaType),
	}
	node := raw.object("paths", path, method, "responses", status)
	if node == nil || node["schema"] == nil {
		return resp, nil
	}
	schema, err := raw.schemaOf(node["schema"], operationID+" response "+status)
	if err != nil {
		return nil, err
	}
	for _, ct := range produces {
		resp.Content[ct] = &models.MediaType{Schema: schema}
	}
	return resp, nil
}

// mediaTypes returns the operation's consumes or produces list, falling back
// to the document's and then to application/json
func mediaTypes(raw rawDoc, field, path, method string) []string {
	for _, node := range []any{raw.get("paths", path, method, field), raw.get(field)} {
		if list := cast.ToStringSlice(node); len(list) > 0 {
			return list
		}
	}
	return []string{"application/json"}
}

func schemeFromV2(name string, src *v2.SecurityScheme) (*models.SecurityScheme, error) {
	if src == nil {
		return nil, &SpecError{Code: CodeUnknownSchemeType, Location: name, Message: "empty security definition"}
	}
	scheme := &models.SecurityScheme{Name: name}
	switch src.Type {
	case "basic":
		scheme.Type = models.SchemeBasic
	case "apiKey":
		scheme.Type = models.SchemeAPIKey
		scheme.ParamName = src.Name
		in, err := apiKeyLocation(name, src.In)
		if err != nil {
			return nil, err
		}
		scheme.In = in
	case "oauth2":
		scheme.Type = models.SchemeOAuth2
	default:
		return nil, &SpecError{Code: CodeUnknownSchemeType, Location: name, Message: fmt.Sprintf("unknown security definition type %q", src.Type)}
	}
	return scheme, nil
}
