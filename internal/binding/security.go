package binding

import (
	"fmt"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/spf13/cast"
)

const defaultBearerFormat = "Bearer {value}"

// resolveSecurity picks the alternative to apply, or nil when none applies.
// Credentials are tried in order and the first accepted one wins.
func resolveSecurity(alternatives []models.SecurityAlternative, creds Credentials) (*models.SecurityAlternative, any, error) {
	if len(alternatives) == 0 || len(creds) == 0 {
		return nil, nil, nil
	}

	for _, cred := range creds {
		for i := range alternatives {
			if alternatives[i].Name == cred.Scheme {
				return &alternatives[i], cred.Value, nil
			}
		}
	}

	accepted := make([]string, 0, len(alternatives))
	for _, alt := range alternatives {
		accepted = append(accepted, alt.Name)
	}
	return nil, nil, &SecurityError{Accepted: accepted}
}

// applySecurity writes the credential into the request according to its scheme
func applySecurity(req *BoundRequest, scheme *models.SecurityScheme, value any) error {
	err := applyCredential(req, scheme, value)
	if ce, ok := err.(*CredentialError); ok {
		ce.Scheme = scheme.Name
	}
	return err
}

func applyCredential(req *BoundRequest, scheme *models.SecurityScheme, value any) error {
	switch scheme.Type {
	case models.SchemeBasic:
		auth, err := toBasicAuth(value)
		if err != nil {
			return err
		}
		if err := req.mutable(); err != nil {
			return err
		}
		req.Basic = &auth
		return nil

	case models.SchemeAPIKey:
		key, err := credentialString(value)
		if err != nil {
			return err
		}
		switch scheme.In {
		case models.APIKeyInQuery:
			return req.addQuery(scheme.ParamName, key)
		case models.APIKeyInHeader:
			return req.setHeader(scheme.ParamName, key)
		case models.APIKeyInCookie:
			return req.setCookie(scheme.ParamName, key)
		}
		return fmt.Errorf("apiKey scheme %q: unknown location %s", scheme.Name, scheme.In)

	case models.SchemeBearer:
		token, err := credentialString(value)
		if err != nil {
			return err
		}
		return req.setHeader("Authorization", formatBearer(scheme.BearerFormat, token))

	case models.SchemeDigest:
		auth, err := toBasicAuth(value)
		if err != nil {
			return err
		}
		if err := req.mutable(); err != nil {
			return err
		}
		req.Digest = &auth
		return nil

	case models.SchemeMutualTLS:
		cert, err := toClientCertificate(value)
		if err != nil {
			return err
		}
		if err := req.mutable(); err != nil {
			return err
		}
		req.Certificate = &cert
		return nil

	case models.SchemeOAuth2, models.SchemeOpenIDConnect:
		return &SecurityError{Scheme: scheme.Name, SchemeType: scheme.Type.String()}
	}
	return &SecurityError{Scheme: scheme.Name, SchemeType: scheme.Type.String()}
}

// formatBearer renders the Authorization header value.
// Formats without a placeholder (e.g. "JWT") are descriptive only.
func formatBearer(format, token string) string {
	switch {
	case strings.Contains(format, "{value}"):
		return strings.ReplaceAll(format, "{value}", token)
	case strings.Contains(format, "{}"):
		return strings.ReplaceAll(format, "{}", token)
	}
	return strings.ReplaceAll(defaultBearerFormat, "{value}", token)
}

func credentialString(value any) (string, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return "", &CredentialError{GoType: fmt.Sprintf("%T", value), Want: "a string"}
	}
	return s, nil
}

func toBasicAuth(value any) (BasicAuth, error) {
	switch v := value.(type) {
	case BasicAuth:
		return v, nil
	case *BasicAuth:
		if v != nil {
			return *v, nil
		}
	case []string:
		if len(v) == 2 {
			return BasicAuth{Username: v[0], Password: v[1]}, nil
		}
	case [2]string:
		return BasicAuth{Username: v[0], Password: v[1]}, nil
	case string:
		if user, pass, ok := strings.Cut(v, ":"); ok {
			return BasicAuth{Username: user, Password: pass}, nil
		}
	}
	return BasicAuth{}, &CredentialError{GoType: fmt.Sprintf("%T", value), Want: "a username/password pair"}
}

func toClientCertificate(value any) (ClientCertificate, error) {
	switch v := value.(type) {
	case ClientCertificate:
		return v, nil
	case *ClientCertificate:
		if v != nil {
			return *v, nil
		}
	case []string:
		if len(v) == 2 {
			return ClientCertificate{CertFile: v[0], KeyFile: v[1]}, nil
		}
	}
	return ClientCertificate{}, &CredentialError{GoType: fmt.Sprintf("%T", value), Want: "client certificate material"}
}
