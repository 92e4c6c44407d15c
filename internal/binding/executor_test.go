package binding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// petstore returns a spec with apiKey security by default
func petstore() *models.Spec {
	spec := models.NewSpec()
	spec.Servers = []string{"http://petstore.invalid/v1"}
	for name, scheme := range schemes() {
		spec.SecuritySchemes[name] = scheme
	}
	spec.Security = alternatives("apiKeyAuth")

	spec.AddOperation(&models.Operation{
		ID:     "listPets",
		Method: "get",
		Path:   "/pets",
		Parameters: []models.Parameter{
			{Name: "limit", In: models.LocationQuery},
		},
		Responses: map[string]*models.ResponseSpec{
			"200":     {Status: "200", Content: content("application/json", petsSchema)},
			"default": {Status: "default", Content: content("application/json", schemaB)},
		},
	})
	spec.AddOperation(&models.Operation{
		ID:     "createPets",
		Method: "post",
		Path:   "/pets",
		RequestBody: &models.RequestBodySpec{
			Required: true,
			Content:  content("application/json", petSchema),
		},
		Responses: map[string]*models.ResponseSpec{
			"201": {Status: "201", Content: content("application/json", petSchema)},
			"204": {Status: "204"},
		},
		Security:         alternatives("basicAuth", "bearerAuth"),
		SecurityDeclared: true,
	})
	spec.AddOperation(&models.Operation{
		ID:     "showPetById",
		Method: "get",
		Path:   "/pets/{petId}",
		Parameters: []models.Parameter{
			{Name: "petId", In: models.LocationPath, Required: true},
		},
		Responses: map[string]*models.ResponseSpec{
			"200": {Status: "200", Content: content("application/json", petSchema)},
		},
	})
	spec.AddOperation(&models.Operation{
		ID:               "deletePet",
		Method:           "delete",
		Path:             "/pets/{petId}",
		Parameters:       []models.Parameter{{Name: "petId", In: models.LocationPath, Required: true}},
		Responses:        map[string]*models.ResponseSpec{"204": {Status: "204"}},
		SecurityDeclared: true,
	})
	spec.AddOperation(&models.Operation{
		ID:               "secretDigest",
		Method:           "get",
		Path:             "/digest",
		Responses:        map[string]*models.ResponseSpec{"200": {Status: "200", Content: content("application/json", schemaA)}},
		Security:         alternatives("digestAuth"),
		SecurityDeclared: true,
	})
	return spec
}

func mustOperation(t *testing.T, spec *models.Spec, id string) *models.Operation {
	t.Helper()
	op, ok := spec.Operation(id)
	require.True(t, ok, id)
	return op
}

// echoTransport answers with the request body and the given status
func echoTransport(status int) Transport {
	return TransportFunc(func(ctx context.Context, req *BoundRequest) (*Envelope, error) {
		return &Envelope{
			StatusCode: status,
			Header:     http.Header{"Content-Type": {req.Header.Get("Content-Type")}},
			Body:       req.Body,
		}, nil
	})
}

// recordingTransport captures the request and returns a fixed response
type recordingTransport struct {
	mu       sync.Mutex
	requests []*BoundRequest
	status   int
	header   http.Header
	body     string
	err      error
}

func (r *recordingTransport) Send(ctx context.Context, req *BoundRequest) (*Envelope, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	header := r.header
	if header == nil {
		header = http.Header{"Content-Type": {"application/json"}}
	}
	return &Envelope{StatusCode: r.status, Header: header, Body: []byte(r.body)}, nil
}

func (r *recordingTransport) last() *BoundRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

func TestCall(t *testing.T) {
	spec := petstore()
	transport := &recordingTransport{status: 200, body: `[{"id":1,"name":"Rex"}]`}
	e := NewExecutor(spec, transport)

	res, err := e.CallByID(context.Background(), "listPets", Call{
		Credentials: Credentials{}.With("apiKeyAuth", "secret123"),
		Parameters:  map[string]any{"limit": 10},
	})
	require.NoError(t, err)

	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, MediaTypeJSON, res.MediaType)
	assert.False(t, res.Empty)
	assert.Equal(t, []any{map[string]any{"id": json.Number("1"), "name": "Rex"}}, res.Value)

	req := transport.last()
	assert.True(t, req.Frozen())
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "http://petstore.invalid/v1", req.BaseURL)
	assert.Equal(t, "/pets", req.Path)
	assert.Equal(t, "secret123", req.Query.Get("key"))
	assert.Equal(t, "10", req.Query.Get("limit"))
}

func TestCallUnknownOperation(t *testing.T) {
	e := NewExecutor(petstore(), &recordingTransport{})
	_, err := e.CallByID(context.Background(), "nope", Call{})
	assert.ErrorContains(t, err, `operation "nope" not found`)
}

func TestCallEmptySecurityAddsNoCredentials(t *testing.T) {
	spec := petstore()
	transport := &recordingTransport{status: 204}
	e := NewExecutor(spec, transport)

	creds := Credentials{}.
		With("apiKeyAuth", "secret123").
		With("bearerAuth", "token").
		With("basicAuth", "alice:pw")
	_, err := e.Call(context.Background(), mustOperation(t, spec, "deletePet"), Call{
		Credentials: creds,
		Parameters:  map[string]any{"petId": 1},
	})
	require.NoError(t, err)

	req := transport.last()
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.Query)
	assert.Empty(t, req.Cookies)
	assert.Nil(t, req.Basic)
	assert.Nil(t, req.Digest)
}

func TestCallNoContent(t *testing.T) {
	spec := petstore()
	// a 204 carrying a body and a bogus content type must not be decoded
	transport := &recordingTransport{status: 204, header: http.Header{"Content-Type": {"text/html"}}, body: "<html>"}
	var stages []Stage
	p := NewPipeline().Received(func(id string, b []byte) ([]byte, error) {
		stages = append(stages, StageReceived)
		return b, nil
	})
	e := NewExecutor(spec, transport, WithPipeline(p))

	res, err := e.Call(context.Background(), mustOperation(t, spec, "createPets"), Call{
		Credentials: Credentials{}.With("bearerAuth", "token"),
		Body:        map[string]any{"id": 1, "name": "Rex"},
	})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Nil(t, res.Value)
	assert.Equal(t, 204, res.StatusCode)
	assert.Empty(t, stages)
	assert.Equal(t, "Bearer token", transport.last().Header.Get("Authorization"))
}

func TestCallRoundTrip(t *testing.T) {
	spec := petstore()
	e := NewExecutor(spec, echoTransport(201))

	input := map[string]any{"id": 7, "name": "Rex", "tags": []any{"good", "dog"}}
	res, err := e.Call(context.Background(), mustOperation(t, spec, "createPets"), Call{
		Credentials: Credentials{}.With("basicAuth", BasicAuth{Username: "alice", Password: "pw"}),
		Body:        input,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": json.Number("7"), "name": "Rex", "tags": []any{"good", "dog"}}, res.Value)
}

func TestCallRoundTripLargeInteger(t *testing.T) {
	spec := petstore()
	e := NewExecutor(spec, echoTransport(201))
	const id int64 = 1<<53 + 1

	res, err := e.Call(context.Background(), mustOperation(t, spec, "createPets"), Call{
		Credentials: Credentials{}.With("bearerAuth", "token"),
		Body:        StructModel(pet{ID: id, Name: "Rex"}),
	})
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), res.Value.(map[string]any)["id"])

	typed, err := schema.Decode[pet](res.Value)
	require.NoError(t, err)
	assert.Equal(t, id, typed.ID)
}

func TestCallDefaultResponse(t *testing.T) {
	spec := petstore()
	transport := &recordingTransport{status: 404, body: `{"message":"not found"}`}
	e := NewExecutor(spec, transport)

	res, err := e.Call(context.Background(), mustOperation(t, spec, "listPets"), Call{})
	require.NoError(t, err)
	assert.Equal(t, 404, res.StatusCode)
	assert.Equal(t, map[string]any{"message": "not found"}, res.Value)
}

func TestCallLifecycle(t *testing.T) {
	spec := petstore()

	type transition struct{ from, to State }
	record := func() (*[]transition, Observer) {
		var got []transition
		return &got, func(id string, from, to State) {
			got = append(got, transition{from, to})
		}
	}

	t.Run("success", func(t *testing.T) {
		got, observer := record()
		e := NewExecutor(spec, &recordingTransport{status: 200, body: `{"id":1,"name":"Rex"}`}, WithObserver(observer))

		_, err := e.Call(context.Background(), mustOperation(t, spec, "showPetById"), Call{Parameters: map[string]any{"petId": 1}})
		require.NoError(t, err)
		assert.Equal(t, []transition{
			{StateInit, StateSecurityBound},
			{StateSecurityBound, StateParametersBound},
			{StateParametersBound, StateBodyPrepared},
			{StateBodyPrepared, StateSent},
			{StateSent, StateStatusMatched},
			{StateStatusMatched, StateDecoded},
			{StateDecoded, StateDone},
		}, *got)
	})

	tests := []struct {
		name      string
		operation string
		call      Call
		transport Transport
		reached   State
		kind      error
	}{
		{
			name:      "unsatisfied security",
			operation: "createPets",
			call:      Call{Credentials: Credentials{}.With("apiKeyAuth", "x"), Body: map[string]any{}},
			transport: &recordingTransport{},
			reached:   StateInit,
			kind:      ErrUnsatisfiedSecurity,
		},
		{
			name:      "missing parameter",
			operation: "showPetById",
			transport: &recordingTransport{},
			reached:   StateSecurityBound,
			kind:      ErrMissingParameter,
		},
		{
			name:      "missing body",
			operation: "createPets",
			call:      Call{Credentials: Credentials{}.With("bearerAuth", "t")},
			transport: &recordingTransport{},
			reached:   StateParametersBound,
			kind:      ErrMissingBody,
		},
		{
			name:      "transport failure",
			operation: "showPetById",
			call:      Call{Parameters: map[string]any{"petId": 1}},
			transport: &recordingTransport{err: errors.New("connection refused")},
			reached:   StateSent,
			kind:      ErrTransport,
		},
		{
			name:      "unexpected status",
			operation: "showPetById",
			call:      Call{Parameters: map[string]any{"petId": 1}},
			transport: &recordingTransport{status: 500},
			reached:   StateSent,
			kind:      ErrUnexpectedStatus,
		},
		{
			name:      "schema violation",
			operation: "showPetById",
			call:      Call{Parameters: map[string]any{"petId": 1}},
			transport: &recordingTransport{status: 200, body: `{"id":"x"}`},
			reached:   StateStatusMatched,
			kind:      ErrSchemaViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, observer := record()
			e := NewExecutor(spec, tt.transport, WithObserver(observer))

			_, err := e.Call(context.Background(), mustOperation(t, spec, tt.operation), tt.call)
			require.ErrorIs(t, err, tt.kind)

			var callErr *CallError
			require.ErrorAs(t, err, &callErr)
			assert.Equal(t, tt.reached, callErr.State)
			assert.Equal(t, tt.operation, callErr.OperationID)

			require.NotEmpty(t, *got)
			final := (*got)[len(*got)-1]
			assert.Equal(t, transition{tt.reached, StateFailed}, final)
			assert.Len(t, *got, int(tt.reached)+1)
		})
	}
}

func TestCallTransportErrorIsRetryable(t *testing.T) {
	spec := petstore()
	cause := errors.New("connection reset")
	e := NewExecutor(spec, &recordingTransport{err: cause})

	_, err := e.Call(context.Background(), mustOperation(t, spec, "showPetById"), Call{Parameters: map[string]any{"petId": 1}})
	require.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "TransportError", KindOf(err))
}

func TestCallUndefinedScheme(t *testing.T) {
	spec := petstore()
	op := &models.Operation{
		ID: "ghost", Method: "get", Path: "/ghost",
		Security: alternatives("ghostAuth"), SecurityDeclared: true,
		Responses: map[string]*models.ResponseSpec{"200": {}},
	}
	e := NewExecutor(spec, &recordingTransport{status: 200})

	_, err := e.Call(context.Background(), op, Call{Credentials: Credentials{}.With("ghostAuth", "x")})
	require.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.Contains(t, err.Error(), "undefined")
}

func TestCallPipelineScoping(t *testing.T) {
	spec := petstore()
	var seen []string
	p := NewPipeline().
		Parsed(ForOperation("showPetById", func(id string, v any) (any, error) {
			seen = append(seen, id)
			return v, nil
		})).
		Received(ForOperationBytes("listPets", func(id string, b []byte) ([]byte, error) {
			seen = append(seen, "bytes:"+id)
			return b, nil
		}))
	transport := &recordingTransport{status: 200, body: `{"id":1,"name":"Rex"}`}
	e := NewExecutor(spec, transport, WithPipeline(p))

	_, err := e.Call(context.Background(), mustOperation(t, spec, "showPetById"), Call{Parameters: map[string]any{"petId": 1}})
	require.NoError(t, err)

	transport.body = `[]`
	_, err = e.Call(context.Background(), mustOperation(t, spec, "listPets"), Call{})
	require.NoError(t, err)

	assert.Equal(t, []string{"showPetById", "bytes:listPets"}, seen)
}

func TestBindFreezesRequest(t *testing.T) {
	spec := petstore()
	e := NewExecutor(spec, nil, WithUserAgent("oascall-test"), WithBaseURL("https://api.example.com"))

	req, err := e.Bind(mustOperation(t, spec, "showPetById"), Call{Parameters: map[string]any{"petId": 42}})
	require.NoError(t, err)
	assert.True(t, req.Frozen())
	assert.Equal(t, "oascall-test", req.Header.Get("User-Agent"))

	u, err := req.URL(req.BaseURL)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/pets/42", u.String())

	assert.ErrorIs(t, req.setHeader("X-Late", "1"), ErrFrozenRequest)
	assert.ErrorIs(t, req.addQuery("late", "1"), ErrFrozenRequest)
	assert.ErrorIs(t, req.setCookie("late", "1"), ErrFrozenRequest)
	assert.ErrorIs(t, req.setBody([]byte("{}"), MediaTypeJSON), ErrFrozenRequest)
}

func TestGo(t *testing.T) {
	spec := petstore()
	e := NewExecutor(spec, &recordingTransport{status: 200, body: `{"id":1,"name":"Rex"}`})
	op := mustOperation(t, spec, "showPetById")

	outcomes := make([]<-chan Outcome, 10)
	for i := range outcomes {
		outcomes[i] = e.Go(context.Background(), op, Call{Parameters: map[string]any{"petId": i}})
	}
	for _, ch := range outcomes {
		select {
		case out := <-ch:
			require.NoError(t, out.Err)
			assert.Equal(t, 200, out.Result.StatusCode)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for outcome")
		}
		_, open := <-ch
		assert.False(t, open)
	}
}

func TestHTTPTransport(t *testing.T) {
	spec := petstore()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/pets":
			user, pass, ok := r.BasicAuth()
			if !ok || user != "alice" || pass != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			w.Write(body)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/pets":
			if r.URL.Query().Get("key") != "secret123" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "name": "Rex"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	e := NewExecutor(spec, NewHTTPTransport(server.Client()), WithBaseURL(server.URL+"/v1"))

	res, err := e.CallByID(context.Background(), "listPets", Call{Credentials: Credentials{}.With("apiKeyAuth", "secret123")})
	require.NoError(t, err)
	assert.Equal(t, MediaTypeJSON, res.MediaType)
	assert.Len(t, res.Value, 1)

	res, err = e.CallByID(context.Background(), "createPets", Call{
		Credentials: Credentials{}.With("basicAuth", "alice:pw"),
		Body:        StructModel(pet{ID: 5, Name: "Tom"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, map[string]any{"id": json.Number("5"), "name": "Tom"}, res.Value)
}

func TestHTTPTransportDigest(t *testing.T) {
	spec := petstore()

	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Digest ") || !strings.Contains(auth, `username="bob"`) {
			w.Header().Set("WWW-Authenticate", `Digest realm="pets", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", qop="auth", algorithm=MD5`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	e := NewExecutor(spec, NewHTTPTransport(server.Client()), WithBaseURL(server.URL))

	res, err := e.CallByID(context.Background(), "secretDigest", Call{
		Credentials: Credentials{}.With("digestAuth", BasicAuth{Username: "bob", Password: "secret"}),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, res.Value)
	assert.Equal(t, 2, attempts)
}

func TestHTTPTransportMaxBodyBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	transport := NewHTTPTransport(server.Client(), WithMaxBodyBytes(16))
	req := newBoundRequest("op", "GET", server.URL, "/")
	req.Path = "/"

	_, err := transport.Send(context.Background(), req)
	assert.ErrorContains(t, err, "exceeds 16 bytes")
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestCallLocalTransportFailuresAreNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"a very long pet name"}]`))
	}))
	defer server.Close()

	spec := petstore()
	tests := []struct {
		name string
		e    *Executor
		call Call
	}{
		{
			name: "oversized response",
			e:    NewExecutor(spec, NewHTTPTransport(server.Client(), WithMaxBodyBytes(16)), WithBaseURL(server.URL)),
		},
		{
			name: "invalid base url",
			e:    NewExecutor(spec, NewHTTPTransport(server.Client()), WithBaseURL("http://[::1")),
		},
		{
			name: "unreadable client certificate",
			e:    NewExecutor(spec, NewHTTPTransport(server.Client()), WithBaseURL(server.URL)),
			call: Call{Credentials: Credentials{}.With("mtls", ClientCertificate{CertFile: "missing.crt", KeyFile: "missing.key"})},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := mustOperation(t, spec, "listPets")
			if tt.call.Credentials != nil {
				op = &models.Operation{
					ID:               "listPets",
					Method:           "get",
					Path:             "/pets",
					Responses:        op.Responses,
					Security:         alternatives("mtls"),
					SecurityDeclared: true,
				}
			}

			_, err := tt.e.Call(context.Background(), op, tt.call)
			require.ErrorIs(t, err, ErrTransport)
			assert.ErrorIs(t, err, ErrPermanent)
			assert.False(t, IsRetryable(err))

			var callErr *CallError
			require.ErrorAs(t, err, &callErr)
			assert.Equal(t, StateSent, callErr.State)
		})
	}
}

func TestCallNilEnvelope(t *testing.T) {
	spec := petstore()
	transport := TransportFunc(func(ctx context.Context, req *BoundRequest) (*Envelope, error) {
		return nil, nil
	})
	e := NewExecutor(spec, transport)

	_, err := e.Call(context.Background(), mustOperation(t, spec, "listPets"), Call{})
	require.ErrorIs(t, err, ErrTransport)
	assert.ErrorContains(t, err, "transport returned no response")

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, StateSent, callErr.State)
}
