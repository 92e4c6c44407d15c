package binding

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/spf13/cast"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// bindParameters routes caller values into the request by declared location
func bindParameters(req *BoundRequest, op *models.Operation, values map[string]any, strict bool) error {
	accepted := op.AcceptedParameters()

	if strict {
		for name := range values {
			if _, ok := accepted.Get(name); !ok {
				return &ParameterError{Name: name, Unknown: true}
			}
		}
	}

	// path values are collected first so the template is substituted in one pass
	pathValues := make(map[string]string)

	for pair := accepted.First(); pair != nil; pair = pair.Next() {
		name, param := pair.Key(), pair.Value()

		value, present := values[name]
		if !present {
			if param.Required {
				return &ParameterError{Name: name, In: param.In.String()}
			}
			continue
		}

		items, err := stringify(value)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}

		switch param.In {
		case models.LocationPath:
			escaped := make([]string, len(items))
			for i, item := range items {
				escaped[i] = url.PathEscape(item)
			}
			pathValues[name] = strings.Join(escaped, ",")
		case models.LocationQuery:
			if param.Exploded() {
				err = req.addQuery(name, items...)
			} else {
				err = req.addQuery(name, strings.Join(items, ","))
			}
		case models.LocationHeader:
			err = req.setHeader(name, strings.Join(items, ","))
		case models.LocationCookie:
			err = req.setCookie(name, strings.Join(items, ","))
		default:
			err = fmt.Errorf("parameter %q: unknown location %s", name, param.In)
		}
		if err != nil {
			return err
		}
	}

	path, err := substitutePath(op.Path, pathValues)
	if err != nil {
		return err
	}
	if err := req.mutable(); err != nil {
		return err
	}
	req.Path = path
	return nil
}

// substitutePath fills every {name} placeholder; leftovers are an error
func substitutePath(template string, values map[string]string) (string, error) {
	var missing string
	path := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := values[name]; ok {
			return v
		}
		if missing == "" {
			missing = name
		}
		return match
	})
	if missing != "" {
		return "", &ParameterError{Name: missing}
	}
	return path, nil
}

// stringify converts a parameter value into its wire items.
// Slices and arrays yield one item per element.
func stringify(value any) ([]string, error) {
	if value == nil {
		return []string{""}, nil
	}
	if s, ok := value.([]string); ok {
		return s, nil
	}

	rv := reflect.ValueOf(value)
	if (rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8) || rv.Kind() == reflect.Array {
		items := make([]string, rv.Len())
		for i := range items {
			s, err := cast.ToStringE(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			items[i] = s
		}
		return items, nil
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}
