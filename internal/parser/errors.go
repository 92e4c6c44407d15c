package parser

import "fmt"

// SpecErrorCode classifies load-time problems
type SpecErrorCode string

const (
	// CodeReadError indicates the document could not be read.
	CodeReadError SpecErrorCode = "ReadError"
	// CodeDocumentError indicates the document is not valid YAML or JSON.
	CodeDocumentError SpecErrorCode = "DocumentError"
	// CodeUnsupportedVersion indicates neither an OpenAPI 3.x nor a Swagger 2.0 document.
	CodeUnsupportedVersion SpecErrorCode = "UnsupportedVersion"
	// CodeModelBuildError indicates the OpenAPI model could not be built.
	CodeModelBuildError SpecErrorCode = "ModelBuildError"
	// CodeOptionalPathParameter indicates a path parameter that is not required.
	CodeOptionalPathParameter SpecErrorCode = "OptionalPathParameter"
	// CodeUnknownLocation indicates a parameter "in" value outside path, query, header and cookie.
	CodeUnknownLocation SpecErrorCode = "UnknownLocation"
	// CodeDuplicateOperation indicates two operations sharing an operationId.
	CodeDuplicateOperation SpecErrorCode = "DuplicateOperation"
	// CodeUnresolvedReference indicates a schema $ref that does not point into the document.
	CodeUnresolvedReference SpecErrorCode = "UnresolvedReference"
	// CodeUnknownSchemeType indicates a security scheme type that cannot be represented.
	CodeUnknownSchemeType SpecErrorCode = "UnknownSchemeType"
)

// SpecError is a structured load-time error
type SpecError struct {
	Code SpecErrorCode
	// Location points at the offending element, e.g. "GET /pets/{petId}"
	Location string
	Message  string
	Err      error
}

func (e *SpecError) Error() string {
	msg := fmt.Sprintf("spec error [%s]", e.Code)
	if e.Location != "" {
		msg += " " + e.Location
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SpecError) Unwrap() error {
	return e.Err
}
