package models

import "fmt"

// SchemeType is the kind of a security scheme
type SchemeType int

const (
	SchemeBasic SchemeType = iota
	SchemeAPIKey
	SchemeBearer
	SchemeDigest
	SchemeMutualTLS
	SchemeOAuth2
	SchemeOpenIDConnect
)

func (t SchemeType) String() string {
	switch t {
	case SchemeBasic:
		return "basic"
	case SchemeAPIKey:
		return "apiKey"
	case SchemeBearer:
		return "bearer"
	case SchemeDigest:
		return "digest"
	case SchemeMutualTLS:
		return "mutualTLS"
	case SchemeOAuth2:
		return "oauth2"
	case SchemeOpenIDConnect:
		return "openIdConnect"
	}
	return fmt.Sprintf("scheme(%d)", int(t))
}

// APIKeyLocation is where an apiKey credential is placed
type APIKeyLocation int

const (
	APIKeyInQuery APIKeyLocation = iota
	APIKeyInHeader
	APIKeyInCookie
)

func (l APIKeyLocation) String() string {
	switch l {
	case APIKeyInQuery:
		return "query"
	case APIKeyInHeader:
		return "header"
	case APIKeyInCookie:
		return "cookie"
	}
	return fmt.Sprintf("apiKeyLocation(%d)", int(l))
}

// SecurityScheme is a spec-wide security scheme definition
type SecurityScheme struct {
	Name string
	Type SchemeType
	// In and ParamName are set for apiKey schemes
	In        APIKeyLocation
	ParamName string
	// BearerFormat is used as the Authorization header template for bearer
	// schemes when it contains a {value} or {} placeholder
	BearerFormat string
}

// SecurityAlternative is one accepted way to authenticate an operation
type SecurityAlternative struct {
	Name   string
	Scopes []string
}
