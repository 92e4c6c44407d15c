package binding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is
var (
	// ErrMissingParameter indicates a required parameter or path placeholder had no value.
	ErrMissingParameter = errors.New("missing parameter")

	// ErrUnknownParameter indicates a caller value with no matching parameter (strict mode only).
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrUnsatisfiedSecurity indicates none of the supplied credentials is accepted by the operation.
	ErrUnsatisfiedSecurity = errors.New("unsatisfied security")

	// ErrUnsupportedScheme indicates a security scheme the engine cannot apply.
	ErrUnsupportedScheme = errors.New("unsupported security scheme")

	// ErrMissingBody indicates a required request body was not supplied.
	ErrMissingBody = errors.New("missing request body")

	// ErrTypeMismatch indicates a body or credential value of an unusable type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnsupportedContentType indicates a body media type other than application/json.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrUnexpectedStatus indicates a response status with no declared response.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrUnexpectedContentType indicates a response media type not declared for its status.
	ErrUnexpectedContentType = errors.New("unexpected content type")

	// ErrSchemaViolation indicates a body that does not satisfy its schema.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrPipeline indicates a pipeline hook failure.
	ErrPipeline = errors.New("pipeline hook failed")

	// ErrTransport indicates the transport could not deliver the request.
	ErrTransport = errors.New("transport error")

	// ErrPermanent marks a transport failure that repeating the call cannot fix.
	ErrPermanent = errors.New("permanent failure")

	// ErrFrozenRequest indicates a mutation of a request already handed to the transport.
	ErrFrozenRequest = errors.New("request is frozen")
)

// ParameterError reports a missing or unknown parameter
type ParameterError struct {
	Name string
	// In is the declared location, empty for unresolved placeholders and unknown names
	In      string
	Unknown bool
}

func (e *ParameterError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("unknown parameter %q", e.Name)
	}
	if e.In == "" {
		return fmt.Sprintf("missing parameter %q: path placeholder left unresolved", e.Name)
	}
	return fmt.Sprintf("missing required %s parameter %q", e.In, e.Name)
}

func (e *ParameterError) Is(target error) bool {
	if e.Unknown {
		return target == ErrUnknownParameter
	}
	return target == ErrMissingParameter
}

// SecurityError reports a credential problem
type SecurityError struct {
	// Accepted lists the alternative names the operation accepts
	Accepted []string
	// Scheme and SchemeType are set for unsupported schemes
	Scheme     string
	SchemeType string
}

func (e *SecurityError) Error() string {
	if e.Scheme != "" {
		return fmt.Sprintf("security scheme %q of type %s is not supported", e.Scheme, e.SchemeType)
	}
	return fmt.Sprintf("no security requirement satisfied (accepts %s)", strings.Join(e.Accepted, ", "))
}

func (e *SecurityError) Is(target error) bool {
	if e.Scheme != "" {
		return target == ErrUnsupportedScheme
	}
	return target == ErrUnsatisfiedSecurity
}

// CredentialError reports a credential whose value does not fit its scheme
type CredentialError struct {
	Scheme string
	GoType string
	// Want describes the accepted shape
	Want string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential for scheme %q: got %s, want %s", e.Scheme, e.GoType, e.Want)
}

func (e *CredentialError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// BodyError reports a request or response body that cannot be processed
type BodyError struct {
	Kind        error
	ContentType string
	// GoType is the offending Go type for type mismatches
	GoType  string
	Message string
}

func (e *BodyError) Error() string {
	msg := e.Kind.Error()
	if e.ContentType != "" {
		msg += " " + e.ContentType
	}
	if e.GoType != "" {
		msg += ": got " + e.GoType
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *BodyError) Is(target error) bool {
	return target == e.Kind
}

// ResponseError reports a response that matches no declared entry
type ResponseError struct {
	Kind        error
	OperationID string
	StatusCode  int
	ContentType string
	// Declared lists the status codes or media types the operation declares
	Declared []string
}

func (e *ResponseError) Error() string {
	if e.Kind == ErrUnexpectedContentType {
		return fmt.Sprintf("unexpected content type %q returned for operation %s (expected one of %s)",
			e.ContentType, e.OperationID, strings.Join(e.Declared, ","))
	}
	return fmt.Sprintf("unexpected response %d from %s (expected one of %s, no default is defined)",
		e.StatusCode, e.OperationID, strings.Join(e.Declared, ","))
}

func (e *ResponseError) Is(target error) bool {
	return target == e.Kind
}

// SchemaViolationError reports data that failed schema validation
type SchemaViolationError struct {
	// Schema is the name of the violated schema
	Schema string
	// Path is the JSON pointer of the offending value, "" for the root
	Path    string
	Message string
	Cause   error
}

func (e *SchemaViolationError) Error() string {
	msg := "schema violation"
	if e.Schema != "" {
		msg += " against " + e.Schema
	}
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *SchemaViolationError) Unwrap() error {
	return e.Cause
}

func (e *SchemaViolationError) Is(target error) bool {
	return target == ErrSchemaViolation
}

// PipelineError reports a failing pipeline hook
type PipelineError struct {
	Stage Stage
	Cause error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Cause)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func (e *PipelineError) Is(target error) bool {
	return target == ErrPipeline
}

// TransportError wraps a failure returned by the transport unchanged
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Permanent marks err so IsRetryable reports false for it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

func (e *permanentError) Is(target error) bool {
	return target == ErrPermanent
}

// CallError is returned by the executor; State is the last state reached
type CallError struct {
	OperationID string
	State       State
	Err         error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: failed after %s: %v", e.OperationID, e.State, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether retrying the call could succeed.
// Only transport failures qualify, and not those marked Permanent or caused
// by the caller cancelling the context.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) &&
		!errors.Is(err, ErrPermanent) &&
		!errors.Is(err, context.Canceled)
}

var kindNames = []struct {
	err  error
	name string
}{
	{ErrMissingParameter, "MissingParameter"},
	{ErrUnknownParameter, "UnknownParameter"},
	{ErrUnsatisfiedSecurity, "UnsatisfiedSecurity"},
	{ErrUnsupportedScheme, "UnsupportedScheme"},
	{ErrMissingBody, "MissingBody"},
	{ErrTypeMismatch, "TypeMismatch"},
	{ErrUnsupportedContentType, "UnsupportedContentType"},
	{ErrUnexpectedStatus, "UnexpectedStatus"},
	{ErrUnexpectedContentType, "UnexpectedContentType"},
	{ErrSchemaViolation, "SchemaViolation"},
	{ErrPipeline, "Pipeline"},
	{ErrTransport, "TransportError"},
	{ErrFrozenRequest, "FrozenRequest"},
}

// KindOf names the failure kind of err, or "" when err is not a binding error
func KindOf(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}
