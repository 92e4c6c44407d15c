package binding

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/icholy/digest"
)

// DefaultMaxBodyBytes bounds response bodies read by HTTPTransport
const DefaultMaxBodyBytes int64 = 32 << 20

// Transport delivers a frozen request and returns the raw response
type Transport interface {
	Send(ctx context.Context, req *BoundRequest) (*Envelope, error)
}

// TransportFunc adapts a function to Transport
type TransportFunc func(ctx context.Context, req *BoundRequest) (*Envelope, error)

func (f TransportFunc) Send(ctx context.Context, req *BoundRequest) (*Envelope, error) {
	return f(ctx, req)
}

// TransportOption configures an HTTPTransport
type TransportOption func(*HTTPTransport)

// WithMaxBodyBytes bounds the response body size
func WithMaxBodyBytes(n int64) TransportOption {
	return func(t *HTTPTransport) {
		if n > 0 {
			t.maxBodyBytes = n
		}
	}
}

// WithInsecureSkipVerify disables server certificate verification
func WithInsecureSkipVerify(skip bool) TransportOption {
	return func(t *HTTPTransport) {
		t.insecure = skip
	}
}

// HTTPTransport sends bound requests with net/http
type HTTPTransport struct {
	client       *http.Client
	maxBodyBytes int64
	insecure     bool
}

// NewHTTPTransport wraps client; a nil client gets a 30 second timeout
func NewHTTPTransport(client *http.Client, opts ...TransportOption) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	t := &HTTPTransport{client: client, maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(t)
	}
	if t.insecure {
		c := *t.client
		rt := t.baseTransport()
		if rt.TLSClientConfig == nil {
			rt.TLSClientConfig = &tls.Config{}
		}
		rt.TLSClientConfig.InsecureSkipVerify = true
		c.Transport = rt
		t.client = &c
	}
	return t
}

// Send implements Transport
func (t *HTTPTransport) Send(ctx context.Context, req *BoundRequest) (*Envelope, error) {
	u, err := req.URL(req.BaseURL)
	if err != nil {
		return nil, Permanent(fmt.Errorf("build url: %w", err))
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, Permanent(fmt.Errorf("create request: %w", err))
	}
	for name, values := range req.Header {
		httpReq.Header[name] = append([]string(nil), values...)
	}
	for _, c := range req.Cookies {
		httpReq.AddCookie(c)
	}
	if req.Basic != nil {
		httpReq.SetBasicAuth(req.Basic.Username, req.Basic.Password)
	}

	client, err := t.clientFor(req)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > t.maxBodyBytes {
		return nil, Permanent(fmt.Errorf("response body exceeds %d bytes", t.maxBodyBytes))
	}

	return &Envelope{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// clientFor returns the shared client unless the request needs digest
// authentication or a client certificate
func (t *HTTPTransport) clientFor(req *BoundRequest) (*http.Client, error) {
	if req.Digest == nil && req.Certificate == nil {
		return t.client, nil
	}

	c := *t.client
	var rt http.RoundTripper = c.Transport
	if req.Certificate != nil {
		cert, err := req.Certificate.Load()
		if err != nil {
			return nil, Permanent(fmt.Errorf("load client certificate: %w", err))
		}
		base := t.baseTransport()
		if base.TLSClientConfig == nil {
			base.TLSClientConfig = &tls.Config{}
		}
		base.TLSClientConfig.Certificates = []tls.Certificate{cert}
		rt = base
	}
	if req.Digest != nil {
		rt = &digest.Transport{
			Username:  req.Digest.Username,
			Password:  req.Digest.Password,
			Transport: rt,
		}
	}
	c.Transport = rt
	return &c, nil
}

// baseTransport returns a private copy of the client's *http.Transport
func (t *HTTPTransport) baseTransport() *http.Transport {
	if rt, ok := t.client.Transport.(*http.Transport); ok {
		return rt.Clone()
	}
	return http.DefaultTransport.(*http.Transport).Clone()
}
