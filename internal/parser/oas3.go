package parser

import (
	"fmt"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"github.com/spf13/cast"
)

func (p *Parser) buildV3(document libopenapi.Document, raw rawDoc) (*models.Spec, error) {
	model, errs := document.BuildV3Model()
	if model == nil {
		return nil, &SpecError{Code: CodeModelBuildError, Message: "failed to build v3 model", Err: fmt.Errorf("%v", errs)}
	}
	if errs != nil {
		p.logger.Warn("v3 model built with errors", "error", fmt.Sprint(errs))
	}

	spec := models.NewSpec()
	if info := model.Model.Info; info != nil {
		spec.Title = info.Title
		spec.Version = info.Version
	}

	for _, server := range model.Model.Servers {
		if server == nil || server.URL == "" {
			continue
		}
		url := server.URL
		if server.Variables != nil {
			for pair := server.Variables.First(); pair != nil; pair = pair.Next() {
				if v := pair.Value(); v != nil {
					url = strings.ReplaceAll(url, "{"+pair.Key()+"}", v.Default)
				}
			}
		}
		spec.Servers = append(spec.Servers, url)
	}

	if components := model.Model.Components; components != nil && components.SecuritySchemes != nil {
		for pair := components.SecuritySchemes.First(); pair != nil; pair = pair.Next() {
			scheme, err := schemeFromV3(pair.Key(), pair.Value())
			if err != nil {
				return nil, err
			}
			spec.SecuritySchemes[pair.Key()] = scheme
		}
	}

	requirements, _ := raw.securityRequirements("security")
	spec.Security = alternatives(requirements)

	paths := model.Model.Paths
	if paths == nil || paths.PathItems == nil {
		return spec, nil
	}

	for pair := paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path, item := pair.Key(), pair.Value()
		if item == nil {
			continue
		}

		shared, err := p.v3Parameters(raw, item.Parameters, "paths", path)
		if err != nil {
			return nil, err
		}

		for _, entry := range []struct {
			method string
			op     *v3.Operation
		}{
			{"get", item.Get}, {"put", item.Put}, {"post", item.Post}, {"delete", item.Delete},
			{"options", item.Options}, {"head", item.Head}, {"patch", item.Patch}, {"trace", item.Trace},
		} {
			if entry.op == nil {
				continue
			}
			op, err := p.v3Operation(raw, path, entry.method, entry.op)
			if err != nil {
				return nil, err
			}
			op.PathParameters = shared
			if err := addOperation(spec, op); err != nil {
				return nil, err
			}
		}
	}

	return spec, nil
}

func (p *Parser) v3Operation(raw rawDoc, path, method string, src *v3.Operation) (*models.Operation, error) {
	op := &models.Operation{
		ID:         operationID(src.OperationId, method, path),
		Method:     strings.ToUpper(method),
		Path:       path,
		Summary:    src.Summary,
		Tags:       append([]string(nil), src.Tags...),
		Deprecated: cast.ToBool(raw.get("paths", path, method, "deprecated")),
		Responses:  make(map[string]*models.ResponseSpec),
	}

	params, err := p.v3Parameters(raw, src.Parameters, "paths", path, method)
	if err != nil {
		return nil, err
	}
	op.Parameters = params

	if body := src.RequestBody; body != nil {
		op.RequestBody = &models.RequestBodySpec{
			Required: body.Required != nil && *body.Required,
			Content:  make(map[string]*models.MediaType),
		}
		if body.Content != nil {
			for mt := body.Content.First(); mt != nil; mt = mt.Next() {
				schema, err := raw.schemaAt(op.ID+" request body", "paths", path, method, "requestBody", "content", mt.Key(), "schema")
				if err != nil {
					return nil, err
				}
				op.RequestBody.Content[mt.Key()] = &models.MediaType{Schema: schema}
			}
		}
	}

	if responses := src.Responses; responses != nil {
		if responses.Codes != nil {
			for code := responses.Codes.First(); code != nil; code = code.Next() {
				if op.Responses[code.Key()], err = v3Response(raw, op.ID, path, method, code.Key(), code.Value()); err != nil {
					return nil, err
				}
			}
		}
		if responses.Default != nil {
			if op.Responses["default"], err = v3Response(raw, op.ID, path, method, "default", responses.Default); err != nil {
				return nil, err
			}
		}
	}

	requirements, declared := raw.securityRequirements("paths", path, method, "security")
	op.SecurityDeclared = declared
	op.Security = alternatives(requirements)

	return op, nil
}

func v3Response(raw rawDoc, operationID, path, method, status string, src *v3.Response) (*models.ResponseSpec, error) {
	resp := &models.ResponseSpec{Status: status, Content: make(map[string]*models.MediaType)}
	if src == nil {
		return resp, nil
	}
	resp.Description = src.Description
	if src.Content != nil {
		for mt := src.Content.First(); mt != nil; mt = mt.Next() {
			schema, err := raw.schemaAt(operationID+" response "+status, "paths", path, method, "responses", status, "content", mt.Key(), "schema")
			if err != nil {
				return nil, err
			}
			resp.Content[mt.Key()] = &models.MediaType{Schema: schema}
		}
	}
	return resp, nil
}

// v3Parameters converts parameters declared under the raw node at keys
func (p *Parser) v3Parameters(raw rawDoc, src []*v3.Parameter, keys ...string) ([]models.Parameter, error) {
	list := raw.get(append(keys, "parameters")...)
	out := make([]models.Parameter, 0, len(src))
	for _, param := range src {
		if param == nil {
			continue
		}
		in, ok := models.ParseLocation(param.In)
		if !ok {
			return nil, &SpecError{
				Code:     CodeUnknownLocation,
				Location: strings.Join(keys[1:], " "),
				Message:  fmt.Sprintf("parameter %q has unknown location %q", param.Name, param.In),
			}
		}
		converted := models.Parameter{
			Name:     param.Name,
			In:       in,
			Required: param.Required != nil && *param.Required,
			Style:    param.Style,
			Explode:  param.Explode,
		}
		if node := raw.findParameter(list, param.Name, param.In); node != nil {
			schema, err := raw.schemaOf(node["schema"], fmt.Sprintf("%s parameter %s", param.In, param.Name))
			if err != nil {
				return nil, err
			}
			converted.Schema = schema
		}
		out = append(out, converted)
	}
	return out, nil
}

func schemeFromV3(name string, src *v3.SecurityScheme) (*models.SecurityScheme, error) {
	if src == nil {
		return nil, &SpecError{Code: CodeUnknownSchemeType, Location: name, Message: "empty security scheme"}
	}
	scheme := &models.SecurityScheme{Name: name, BearerFormat: src.BearerFormat}
	switch strings.ToLower(src.Type) {
	case "http":
		switch strings.ToLower(src.Scheme) {
		case "basic":
			scheme.Type = models.SchemeBasic
		case "bearer":
			scheme.Type = models.SchemeBearer
		case "digest":
			scheme.Type = models.SchemeDigest
		default:
			return nil, &SpecError{Code: CodeUnknownSchemeType, Location: name, Message: fmt.Sprintf("unsupported http scheme %q", src.Scheme)}
		}
	case "apikey":
		scheme.Type = models.SchemeAPIKey
		scheme.ParamName = src.Name
		in, err := apiKeyLocation(name, src.In)
		if err != nil {
			return nil, err
		}
		scheme.In = in
	case "mutualtls":
		scheme.Type = models.SchemeMutualTLS
	case "oauth2":
		scheme.Type = models.SchemeOAuth2
	case "openidconnect":
		scheme.Type = models.SchemeOpenIDConnect
	default:
		return nil, &SpecError{Code: CodeUnknownSchemeType, Location: name, Message: fmt.Sprintf("unknown security scheme type %q", src.Type)}
	}
	return scheme, nil
}

func apiKeyLocation(name, in string) (models.APIKeyLocation, error) {
	switch strings.ToLower(in) {
	case "query":
		return models.APIKeyInQuery, nil
	case "header":
		return models.APIKeyInHeader, nil
	case "cookie":
		return models.APIKeyInCookie, nil
	}
	return 0, &SpecError{Code: CodeUnknownLocation, Location: name, Message: fmt.Sprintf("apiKey location %q", in)}
}
