// Package parser loads OpenAPI 3.x and Swagger 2.0 documents into models.Spec
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/pb33f/libopenapi"
)

// Parser converts OpenAPI documents into the binding model
type Parser struct {
	logger *slog.Logger
}

// New creates a parser that reports recoverable problems to logger
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

// ParseFile parses an OpenAPI specification file with a silent parser
func ParseFile(filePath string) (*models.Spec, error) {
	return New(nil).ParseFile(filePath)
}

// ParseFile reads and parses an OpenAPI specification file
func (p *Parser) ParseFile(filePath string) (*models.Spec, error) {
	specBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &SpecError{Code: CodeReadError, Location: filePath, Message: "failed to read OpenAPI file", Err: err}
	}
	return p.Parse(specBytes)
}

// Parse builds the models.Spec of a YAML or JSON document
func (p *Parser) Parse(specBytes []byte) (*models.Spec, error) {
	raw, err := decodeRaw(specBytes)
	if err != nil {
		return nil, &SpecError{Code: CodeDocumentError, Message: "failed to decode document", Err: err}
	}

	document, err := libopenapi.NewDocument(specBytes)
	if err != nil {
		return nil, &SpecError{Code: CodeDocumentError, Message: "failed to parse OpenAPI document", Err: err}
	}

	var spec *models.Spec
	switch {
	case strings.HasPrefix(fmt.Sprint(raw["openapi"]), "3."):
		spec, err = p.buildV3(document, raw)
	case fmt.Sprint(raw["swagger"]) == "2.0":
		spec, err = p.buildV2(document, raw)
	default:
		return nil, &SpecError{Code: CodeUnsupportedVersion, Message: "document is neither OpenAPI 3.x nor Swagger 2.0"}
	}
	if err != nil {
		return nil, err
	}

	p.checkSecurityReferences(spec)
	return spec, nil
}

// checkSecurityReferences warns about requirements naming undefined schemes.
// Such alternatives fail with an unsupported scheme error when selected.
func (p *Parser) checkSecurityReferences(spec *models.Spec) {
	check := func(where string, alts []models.SecurityAlternative) {
		for _, alt := range alts {
			if _, ok := spec.SecuritySchemes[alt.Name]; !ok {
				p.logger.Warn("security requirement references undefined scheme", "scheme", alt.Name, "at", where)
			}
		}
	}
	check("document", spec.Security)
	for _, op := range spec.Operations() {
		check(op.ID, op.Security)
	}
}

// addOperation validates op and registers it with spec
func addOperation(spec *models.Spec, op *models.Operation) error {
	location := op.Method + " " + op.Path
	for _, params := range [][]models.Parameter{op.PathParameters, op.Parameters} {
		for _, param := range params {
			if param.In == models.LocationPath && !param.Required {
				return &SpecError{
					Code:     CodeOptionalPathParameter,
					Location: location,
					Message:  fmt.Sprintf("path parameter %q must be required", param.Name),
				}
			}
		}
	}
	if !spec.AddOperation(op) {
		return &SpecError{
			Code:     CodeDuplicateOperation,
			Location: location,
			Message:  fmt.Sprintf("operationId %q is already used", op.ID),
		}
	}
	return nil
}

var nonIdentifier = regexp.MustCompile(`[^A-Za-z0-9]+`)

// operationID returns the declared id or synthesizes method_path
func operationID(declared, method, path string) string {
	if declared != "" {
		return declared
	}
	slug := strings.Trim(nonIdentifier.ReplaceAllString(path, "_"), "_")
	if slug == "" {
		slug = "root"
	}
	return strings.ToLower(method) + "_" + slug
}

// alternatives flattens security requirement objects into named alternatives.
// Empty objects mark security as optional and contribute nothing.
func alternatives(requirements []map[string]any) []models.SecurityAlternative {
	alts := make([]models.SecurityAlternative, 0, len(requirements))
	for _, req := range requirements {
		for _, name := range sortedNames(req) {
			var scopes []string
			if list, ok := req[name].([]any); ok {
				for _, s := range list {
					scopes = append(scopes, fmt.Sprint(s))
				}
			}
			alts = append(alts, models.SecurityAlternative{Name: name, Scopes: scopes})
		}
	}
	return alts
}

// httpMethods is the order operations are read within one path item
var httpMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}
