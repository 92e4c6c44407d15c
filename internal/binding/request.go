package binding

import (
	"crypto/tls"
	"net/http"
	"net/url"
)

// Credential is one caller-supplied value for a named security scheme
type Credential struct {
	Scheme string
	Value  any
}

// Credentials is ordered; the first entry accepted by an operation wins
type Credentials []Credential

// With returns a copy of c with another credential appended
func (c Credentials) With(scheme string, value any) Credentials {
	out := make(Credentials, len(c), len(c)+1)
	copy(out, c)
	return append(out, Credential{Scheme: scheme, Value: value})
}

// BasicAuth is a username/password pair for basic and digest schemes
type BasicAuth struct {
	Username string
	Password string
}

// ClientCertificate is client certificate material for mutualTLS schemes.
// Either Certificate or the CertFile/KeyFile pair is set.
type ClientCertificate struct {
	Certificate *tls.Certificate
	CertFile    string
	KeyFile     string
}

// Load returns the certificate, reading the key pair from disk when needed
func (c ClientCertificate) Load() (tls.Certificate, error) {
	if c.Certificate != nil {
		return *c.Certificate, nil
	}
	return tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
}

// BoundRequest accumulates the wire form of a single call.
// It is written in the order security, parameters, body and then frozen.
type BoundRequest struct {
	OperationID  string
	Method       string
	BaseURL      string
	PathTemplate string
	// Path is the template with every placeholder substituted
	Path        string
	Query       url.Values
	Header      http.Header
	Cookies     []*http.Cookie
	Body        []byte
	Basic       *BasicAuth
	Digest      *BasicAuth
	Certificate *ClientCertificate

	frozen bool
}

func newBoundRequest(operationID, method, baseURL, pathTemplate string) *BoundRequest {
	return &BoundRequest{
		OperationID:  operationID,
		Method:       method,
		BaseURL:      baseURL,
		PathTemplate: pathTemplate,
		Query:        url.Values{},
		Header:       http.Header{},
	}
}

// Frozen reports whether the request has been handed to the transport
func (r *BoundRequest) Frozen() bool {
	return r.frozen
}

func (r *BoundRequest) freeze() {
	r.frozen = true
}

func (r *BoundRequest) mutable() error {
	if r.frozen {
		return ErrFrozenRequest
	}
	return nil
}

func (r *BoundRequest) addQuery(name string, values ...string) error {
	if err := r.mutable(); err != nil {
		return err
	}
	r.Query.Del(name)
	for _, v := range values {
		r.Query.Add(name, v)
	}
	return nil
}

func (r *BoundRequest) setHeader(name, value string) error {
	if err := r.mutable(); err != nil {
		return err
	}
	r.Header.Set(name, value)
	return nil
}

func (r *BoundRequest) setCookie(name, value string) error {
	if err := r.mutable(); err != nil {
		return err
	}
	for _, c := range r.Cookies {
		if c.Name == name {
			c.Value = value
			return nil
		}
	}
	r.Cookies = append(r.Cookies, &http.Cookie{Name: name, Value: value})
	return nil
}

func (r *BoundRequest) setBody(body []byte, contentType string) error {
	if err := r.mutable(); err != nil {
		return err
	}
	r.Body = body
	r.Header.Set("Content-Type", contentType)
	return nil
}

// URL joins the resolved path and query onto base
func (r *BoundRequest) URL(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	path, err := url.Parse(r.Path)
	if err != nil {
		return nil, err
	}
	escaped := u.EscapedPath()
	u.Path = joinPath(u.Path, path.Path)
	u.RawPath = joinPath(escaped, path.EscapedPath())
	if u.RawPath == u.Path {
		u.RawPath = ""
	}
	query := u.Query()
	for name, values := range r.Query {
		for _, v := range values {
			query.Add(name, v)
		}
	}
	u.RawQuery = query.Encode()
	return u, nil
}

func joinPath(base, path string) string {
	switch {
	case base == "" || base == "/":
		return path
	case path == "":
		return base
	case base[len(base)-1] == '/' && path[0] == '/':
		return base + path[1:]
	case base[len(base)-1] != '/' && path[0] != '/':
		return base + "/" + path
	}
	return base + path
}

// Envelope is the raw response returned by a transport
type Envelope struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
