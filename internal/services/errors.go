package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/desertthunder/snipx/internal/shared"
)

// ErrorPayload is the normalized shape of a backend error body.
//
// The backend answers with any of: {"detail": "..."}, {"error": "..."},
// {"non_field_errors": [...]} or {"<field>": ["..."]}. Bodies that are not JSON
// objects produce an empty payload; raw server text never reaches the user.
type ErrorPayload struct {
	Detail         string
	Error          string
	NonFieldErrors []string
	Fields         map[string][]string
}

// ParseErrorPayload normalizes a raw error body.
func ParseErrorPayload(body []byte) *ErrorPayload {
	p := &ErrorPayload{Fields: map[string][]string{}}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return p
	}

	for key, value := range raw {
		msgs := messages(value)
		if len(msgs) == 0 {
			continue
		}

		switch key {
		case "detail":
			p.Detail = msgs[0]
		case "error":
			p.Error = msgs[0]
		case "non_field_errors":
			p.NonFieldErrors = msgs
		default:
			p.Fields[key] = msgs
		}
	}
	return p
}

// messages flattens a string or list of strings; anything else yields nothing.
func messages(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Field returns the first message for a field.
func (p *ErrorPayload) Field(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	if name == "non_field_errors" {
		if len(p.NonFieldErrors) > 0 {
			return p.NonFieldErrors[0], true
		}
		return "", false
	}
	msgs, ok := p.Fields[name]
	if !ok || len(msgs) == 0 {
		return "", false
	}
	return msgs[0], true
}

// FieldNames returns the field keys in sorted order.
func (p *ErrorPayload) FieldNames() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Fields))
	for name := range p.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether the payload carries no usable message.
func (p *ErrorPayload) Empty() bool {
	return p == nil || (p.Detail == "" && p.Error == "" && len(p.NonFieldErrors) == 0 && len(p.Fields) == 0)
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Path    string
	Payload *ErrorPayload
}

// NewAPIError builds an [APIError] from a raw response.
func NewAPIError(path string, resp *APIResponse) *APIError {
	return &APIError{
		Status:  resp.StatusCode,
		Path:    path,
		Payload: ParseErrorPayload(resp.Body),
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v: %s returned status %d", shared.ErrAPIRequest, e.Path, e.Status)
}

func (e *APIError) Unwrap() error {
	return shared.ErrAPIRequest
}

// ClientError reports a 4xx status.
func (e *APIError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// AsAPIError extracts an [*APIError] from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasStatus reports whether err is an [*APIError] with one of the given statuses.
func HasStatus(err error, statuses ...int) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	return slices.Contains(statuses, apiErr.Status)
}
