package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/celerix-dev/intern-connect/pkg/schema"
)

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Header http.Header
	Data   json.RawMessage
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Payload decodes the body as a JSON object.
func (r *Response) Payload() (schema.Payload, error) {
	var p schema.Payload
	if err := r.Decode(&p); err != nil {
		return nil, err
	}
	return p, nil
}

// Items extracts a list from the body. The backend answers list endpoints
// with a bare array, {key: [...]}, or {data: [...]}; all three are accepted.
// A body without a list yields an empty slice.
func (r *Response) Items(key string) ([]any, error) {
	var raw any
	if err := r.Decode(&raw); err != nil {
		return nil, err
	}
	return extractItems(raw, key), nil
}

func extractItems(raw any, key string) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case map[string]any:
		if list, ok := v[key].([]any); ok {
			return list
		}
		switch data := v["data"].(type) {
		case []any:
			return data
		case map[string]any:
			if list, ok := data[key].([]any); ok {
				return list
			}
		}
	}
	return []any{}
}

// Decode unmarshals a response body into a T.
func Decode[T any](r *Response) (T, error) {
	var out T
	err := r.Decode(&out)
	return out, err
}
