package schema

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Decode converts a decoded JSON value into T, matching fields by json tag
func Decode[T any](value any) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(value); err != nil {
		return out, fmt.Errorf("decode into %T: %w", out, err)
	}
	return out, nil
}
