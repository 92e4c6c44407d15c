// Package binding turns OpenAPI operations and caller arguments into requests
// and validated results.
package binding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/schema"
)

// Call holds the caller arguments of one invocation
type Call struct {
	Credentials Credentials
	Parameters  map[string]any
	Body        any
	// ContentType of Body, defaults to application/json
	ContentType string
}

// Result is the outcome of a successful call
type Result struct {
	StatusCode int
	Header     http.Header
	// MediaType is the matched media type without parameters
	MediaType string
	Value     any
	// Empty is true when no body was decoded (204 or no declared content)
	Empty bool
}

// Outcome is delivered by Go once the call completes
type Outcome struct {
	Result *Result
	Err    error
}

// Option configures an Executor
type Option func(*Executor)

// WithBaseURL overrides the first server URL of the document
func WithBaseURL(url string) Option {
	return func(e *Executor) {
		e.baseURL = url
	}
}

// WithLogger sets the logger used for lifecycle events
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithConstructor replaces the schema validator used to build results
func WithConstructor(c Constructor) Option {
	return func(e *Executor) {
		if c != nil {
			e.constructor = c
		}
	}
}

// WithPipeline installs the hooks run around encoding and decoding
func WithPipeline(p *Pipeline) Option {
	return func(e *Executor) {
		e.pipeline = p
	}
}

// WithStrictParameters rejects caller parameters the operation does not declare
func WithStrictParameters(strict bool) Option {
	return func(e *Executor) {
		e.strict = strict
	}
}

// WithRequestValidation toggles schema validation of request bodies
func WithRequestValidation(enabled bool) Option {
	return func(e *Executor) {
		e.validateRequests = enabled
	}
}

// WithObserver registers a callback for every lifecycle transition
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

// WithUserAgent sets the User-Agent header of every request
func WithUserAgent(ua string) Option {
	return func(e *Executor) {
		e.userAgent = ua
	}
}

// Executor binds and sends calls for the operations of one spec.
// It is safe for concurrent use.
type Executor struct {
	spec             *models.Spec
	transport        Transport
	baseURL          string
	logger           *slog.Logger
	constructor      Constructor
	pipeline         *Pipeline
	strict           bool
	validateRequests bool
	observer         Observer
	userAgent        string
}

// NewExecutor creates an executor. spec may be nil when operations carry
// their own security and no scheme definitions are needed.
func NewExecutor(spec *models.Spec, transport Transport, opts ...Option) *Executor {
	e := &Executor{
		spec:             spec,
		transport:        transport,
		logger:           slog.New(slog.DiscardHandler),
		constructor:      schema.NewValidator(),
		validateRequests: true,
	}
	if spec != nil && len(spec.Servers) > 0 {
		e.baseURL = spec.Servers[0]
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Operation looks up an operation of the executor's spec
func (e *Executor) Operation(id string) (*models.Operation, error) {
	if e.spec == nil {
		return nil, fmt.Errorf("operation %q: no spec loaded", id)
	}
	op, ok := e.spec.Operation(id)
	if !ok {
		return nil, fmt.Errorf("operation %q not found", id)
	}
	return op, nil
}

// CallByID resolves the operation by id and calls it
func (e *Executor) CallByID(ctx context.Context, id string, call Call) (*Result, error) {
	op, err := e.Operation(id)
	if err != nil {
		return nil, err
	}
	return e.Call(ctx, op, call)
}

// Go runs Call in a new goroutine. The channel receives exactly one Outcome.
func (e *Executor) Go(ctx context.Context, op *models.Operation, call Call) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res, err := e.Call(ctx, op, call)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

// Call binds the arguments, sends the request and decodes the response.
// Failures are returned as *CallError.
func (e *Executor) Call(ctx context.Context, op *models.Operation, call Call) (*Result, error) {
	lc := e.newLifecycle(op.ID)

	req, err := e.bind(lc, op, call)
	if err != nil {
		return nil, e.failed(lc, err)
	}

	req.freeze()
	lc.advance(StateSent)
	env, err := e.transport.Send(ctx, req)
	if err == nil && env == nil {
		err = errors.New("transport returned no response")
	}
	if err != nil {
		return nil, e.failed(lc, &TransportError{Cause: err})
	}

	m, err := matchResponse(op, env.StatusCode, env.Header.Get("Content-Type"))
	if err != nil {
		return nil, e.failed(lc, err)
	}
	lc.advance(StateStatusMatched)

	result := &Result{StatusCode: env.StatusCode, Header: env.Header, Empty: true}
	if m.media != nil {
		value, err := e.decodeBody(op, m, env.Body)
		if err != nil {
			return nil, e.failed(lc, err)
		}
		result.MediaType = m.mediaType
		result.Value = value
		result.Empty = false
	}
	lc.advance(StateDecoded)
	lc.advance(StateDone)

	e.logger.Debug("call completed",
		"operation", op.ID,
		"status", env.StatusCode,
		"matched", m.status,
	)
	return result, nil
}

// Bind runs the synchronous binding steps and returns the frozen request
// without sending it
func (e *Executor) Bind(op *models.Operation, call Call) (*BoundRequest, error) {
	lc := e.newLifecycle(op.ID)
	req, err := e.bind(lc, op, call)
	if err != nil {
		return nil, e.failed(lc, err)
	}
	req.freeze()
	return req, nil
}

func (e *Executor) bind(lc *lifecycle, op *models.Operation, call Call) (*BoundRequest, error) {
	req := newBoundRequest(op.ID, strings.ToUpper(op.Method), e.baseURL, op.Path)

	alt, value, err := resolveSecurity(op.EffectiveSecurity(e.spec), call.Credentials)
	if err != nil {
		return nil, err
	}
	if alt != nil {
		scheme := e.scheme(alt.Name)
		if scheme == nil {
			return nil, &SecurityError{Scheme: alt.Name, SchemeType: "undefined"}
		}
		if err := applySecurity(req, scheme, value); err != nil {
			return nil, err
		}
	}
	lc.advance(StateSecurityBound)

	if err := bindParameters(req, op, call.Parameters, e.strict); err != nil {
		return nil, err
	}
	lc.advance(StateParametersBound)

	body, err := e.encodeBody(op, call.Body, call.ContentType)
	if err != nil {
		return nil, err
	}
	if body != nil {
		if err := req.setBody(body.payload, body.contentType); err != nil {
			return nil, err
		}
	}
	if e.userAgent != "" && req.Header.Get("User-Agent") == "" {
		if err := req.setHeader("User-Agent", e.userAgent); err != nil {
			return nil, err
		}
	}
	lc.advance(StateBodyPrepared)

	return req, nil
}

func (e *Executor) scheme(name string) *models.SecurityScheme {
	if e.spec == nil {
		return nil
	}
	return e.spec.SecuritySchemes[name]
}

func (e *Executor) newLifecycle(operationID string) *lifecycle {
	return &lifecycle{
		operationID: operationID,
		current:     StateInit,
		observe: func(from, to State) {
			e.logger.Debug("transition", "operation", operationID, "from", from.String(), "to", to.String())
			if e.observer != nil {
				e.observer(operationID, from, to)
			}
		},
	}
}

func (e *Executor) failed(lc *lifecycle, err error) error {
	callErr := lc.fail(err)
	e.logger.Warn("call failed",
		"operation", lc.operationID,
		"state", callErr.State.String(),
		"error", err,
	)
	return callErr
}
