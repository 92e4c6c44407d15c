// Package schema validates decoded JSON values against OpenAPI schemas
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Violation is a single failed assertion
type Violation struct {
	// Path is the JSON pointer of the offending value, "" for the root
	Path    string
	Keyword string
	Message string
}

// ValidationError lists every violation found in one value.
// Violations are sorted by path.
type ValidationError struct {
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	first := e.Violations[0]
	msg := first.Message
	if first.Path != "" {
		msg = first.Path + ": " + msg
	}
	if n := len(e.Violations) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

// Path returns the location of the first violation
func (e *ValidationError) Path() string {
	if len(e.Violations) == 0 {
		return ""
	}
	return e.Violations[0].Path
}

// Validator checks values against schemas and returns them unchanged.
// Compiled schemas are cached per *models.Schema; the zero value is not usable.
type Validator struct {
	mu      sync.Mutex
	cache   map[*models.Schema]*jsonschema.Schema
	printer *message.Printer
}

// NewValidator creates a validator reporting messages in English
func NewValidator() *Validator {
	return NewLocalizedValidator(language.English)
}

// NewLocalizedValidator creates a validator reporting messages in the given language
func NewLocalizedValidator(tag language.Tag) *Validator {
	return &Validator{
		cache:   make(map[*models.Schema]*jsonschema.Schema),
		printer: message.NewPrinter(tag),
	}
}

// Construct validates value against s. Schemas without a document accept anything.
func (v *Validator) Construct(s *models.Schema, value any) (any, error) {
	if err := v.Validate(s, value); err != nil {
		return nil, err
	}
	return value, nil
}

// Validate reports whether value satisfies s
func (v *Validator) Validate(s *models.Schema, value any) error {
	if s == nil || len(s.Doc) == 0 {
		return nil
	}
	compiled, err := v.compile(s)
	if err != nil {
		return err
	}

	err = compiled.Validate(value)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("validate %s: %w", s.Name, err)
	}

	result := &ValidationError{Schema: s.Name}
	v.collect(verr, result)
	sort.SliceStable(result.Violations, func(i, j int) bool {
		return result.Violations[i].Path < result.Violations[j].Path
	})
	return result
}

func (v *Validator) compile(s *models.Schema) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if compiled, ok := v.cache[s]; ok {
		return compiled, nil
	}

	doc, err := normalize(s.Doc)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", s.Name, err)
	}

	url := resourceName(s.Name)
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("schema %s: %w", s.Name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", s.Name, err)
	}
	v.cache[s] = compiled
	return compiled, nil
}

// collect flattens the error tree into its leaves
func (v *Validator) collect(verr *jsonschema.ValidationError, result *ValidationError) {
	if verr == nil {
		return
	}
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			v.collect(cause, result)
		}
		return
	}

	location := verr.InstanceLocation
	if req, ok := verr.ErrorKind.(*kind.Required); ok && len(req.Missing) == 1 {
		location = append(append([]string(nil), location...), req.Missing[0])
	}

	result.Violations = append(result.Violations, Violation{
		Path:    pointer(location),
		Keyword: strings.Join(verr.ErrorKind.KeywordPath(), "/"),
		Message: verr.ErrorKind.LocalizedString(v.printer),
	})
}

// pointer renders an instance location as a JSON pointer
func pointer(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		t = strings.ReplaceAll(t, "~", "~0")
		b.WriteString(strings.ReplaceAll(t, "/", "~1"))
	}
	return b.String()
}

func resourceName(name string) string {
	if name == "" {
		return "anonymous.json"
	}
	r := strings.NewReplacer("/", "_", " ", "_", "#", "_", "{", "", "}", "")
	return r.Replace(name) + ".json"
}

// normalize converts an OpenAPI schema object into a JSON Schema document
// the compiler understands. The result shares nothing with doc.
func normalize(doc map[string]any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	rewrite(out)
	return out, nil
}

// rewrite translates OpenAPI 3.0 keywords in place: nullable, boolean
// exclusive bounds and the Swagger 2.0 "file" type
func rewrite(node any) {
	switch n := node.(type) {
	case []any:
		for _, item := range n {
			rewrite(item)
		}
	case map[string]any:
		for _, child := range n {
			rewrite(child)
		}

		if nullable, ok := n["nullable"].(bool); ok {
			if nullable {
				switch t := n["type"].(type) {
				case string:
					n["type"] = []any{t, "null"}
				case []any:
					n["type"] = append(t, "null")
				}
				if enum, ok := n["enum"].([]any); ok {
					n["enum"] = append(enum, nil)
				}
			}
			delete(n, "nullable")
		}

		exclusiveBound(n, "exclusiveMinimum", "minimum")
		exclusiveBound(n, "exclusiveMaximum", "maximum")

		if n["type"] == "file" {
			delete(n, "type")
		}
	}
}

func exclusiveBound(n map[string]any, exclusive, bound string) {
	flag, ok := n[exclusive].(bool)
	if !ok {
		return
	}
	delete(n, exclusive)
	if flag {
		if limit, ok := n[bound]; ok {
			n[exclusive] = limit
			delete(n, bound)
		}
	}
}
