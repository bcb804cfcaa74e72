package mock

import (
	"encoding/json"
	"fmt"
	"strings"
)

// httpResponse is the `response` value a mock scenario's steps build up;
// read back after the scenario runs to synthesize the real wire response
// (spec.md §6 "responses carry status (default 200), headers, body").
type httpResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// buildResponse converts whatever the scenario bound to `response` into an
// httpResponse. A bare map is treated as `{status, headers, body}`; a
// missing `response` binding defaults to 200 with an empty body.
func buildResponse(v any) (httpResponse, error) {
	resp := httpResponse{Status: 200, Headers: map[string]string{}}
	m, ok := v.(map[string]any)
	if !ok {
		if v == nil {
			return resp, nil
		}
		body, err := encodeBody(v, resp.Headers)
		if err != nil {
			return resp, err
		}
		resp.Body = body
		return resp, nil
	}
	if s, ok := m["status"]; ok {
		if f, ok := s.(float64); ok {
			resp.Status = int(f)
		}
	}
	if h, ok := m["headers"].(map[string]any); ok {
		for k, hv := range h {
			resp.Headers[k] = fmt.Sprint(hv)
		}
	}
	body, err := encodeBody(m["body"], resp.Headers)
	if err != nil {
		return resp, err
	}
	resp.Body = body
	return resp, nil
}

// encodeBody renders body according to the Content-Type already set in
// headers, defaulting to JSON for structured values and falling back to
// plain text (spec.md §6 "body auto-converted by Content-Type").
func encodeBody(body any, headers map[string]string) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if s, ok := body.(string); ok {
		if _, has := contentType(headers); !has {
			headers["Content-Type"] = "text/plain; charset=utf-8"
		}
		return []byte(s), nil
	}
	if b, ok := body.([]byte); ok {
		return b, nil
	}
	if _, has := contentType(headers); !has {
		headers["Content-Type"] = "application/json"
	}
	return json.Marshal(body)
}

func contentType(headers map[string]string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return v, true
		}
	}
	return "", false
}
