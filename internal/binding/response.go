package binding

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
)

// match is the response definition and media type that govern decoding.
// Media is nil when no body is expected.
type match struct {
	response  *models.ResponseSpec
	status    string
	mediaType string
	media     *models.MediaType
}

// matchResponse selects the response entry and media type for a received response
func matchResponse(op *models.Operation, status int, contentType string) (*match, error) {
	key, resp := lookupStatus(op.Responses, status)
	if resp == nil {
		return nil, &ResponseError{
			Kind:        ErrUnexpectedStatus,
			OperationID: op.ID,
			StatusCode:  status,
			Declared:    op.StatusCodes(),
		}
	}

	m := &match{response: resp, status: key}
	if status == http.StatusNoContent || len(resp.Content) == 0 {
		return m, nil
	}

	received := mediaTypeOf(contentType)
	declared, media := lookupMedia(resp.Content, received)
	if declared == "" {
		types := resp.MediaTypes()
		sort.Strings(types)
		return nil, &ResponseError{
			Kind:        ErrUnexpectedContentType,
			OperationID: op.ID,
			StatusCode:  status,
			ContentType: received,
			Declared:    types,
		}
	}
	if media == nil {
		media = &models.MediaType{}
	}
	m.mediaType = received
	m.media = media
	return m, nil
}

// lookupStatus tries the exact code, then the range key, then "default"
func lookupStatus(responses map[string]*models.ResponseSpec, status int) (string, *models.ResponseSpec) {
	exact := strconv.Itoa(status)
	candidates := []string{
		exact,
		exact[:1] + "XX",
		exact[:1] + "xx",
		"default",
	}
	for _, key := range candidates {
		if resp, ok := responses[key]; ok && resp != nil {
			return key, resp
		}
	}
	return "", nil
}

// lookupMedia tries the exact media type, then "type/*", then "*/*".
// Declared keys are compared with their parameters stripped.
func lookupMedia(content map[string]*models.MediaType, received string) (string, *models.MediaType) {
	normalized := make(map[string]string, len(content))
	for declared := range content {
		normalized[mediaTypeOf(declared)] = declared
	}

	primary, _, _ := strings.Cut(received, "/")
	for _, candidate := range []string{received, primary + "/*", "*/*"} {
		if candidate == "" {
			continue
		}
		if declared, ok := normalized[candidate]; ok {
			return declared, content[declared]
		}
	}
	return "", nil
}
