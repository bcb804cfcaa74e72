package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// HTTPRequest is the request a `method` step fires, assembled from the
// preceding url/path/param/header/cookie/form/request steps.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string][]string
	Body    []byte
}

// HTTPResponse is what the HTTP client handler binds as `response`
// (spec.md §4.2, §6).
type HTTPResponse struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
	StartedAt  time.Time
	EndedAt    time.Time
}

// HTTPClient is the external collaborator the execution core depends on for
// actually issuing requests (spec.md §1: "the HTTP client... subsystems"
// are out of scope; specify only the interface). defaultHTTPClient below is
// a minimal concrete implementation, sufficient for running scenarios
// end-to-end in tests without a browser or a mocked transport.
type HTTPClient interface {
	Do(ctx context.Context, req HTTPRequest) (HTTPResponse, error)
}

// defaultHTTPClient wraps net/http with a rate limiter, grounded on the
// pack's use of golang.org/x/time/rate for outbound call pacing.
type defaultHTTPClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewDefaultHTTPClient returns an HTTPClient backed by net/http. ratePerSec
// <= 0 disables rate limiting.
func NewDefaultHTTPClient(timeout time.Duration, ratePerSec float64) HTTPClient {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &defaultHTTPClient{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

func (c *defaultHTTPClient) Do(ctx context.Context, req HTTPRequest) (HTTPResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return HTTPResponse{}, fmt.Errorf("http: rate limiter: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return HTTPResponse{}, fmt.Errorf("http: building request: %w", err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return HTTPResponse{}, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return HTTPResponse{}, fmt.Errorf("http: reading response body: %w", err)
	}

	return HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    map[string][]string(resp.Header),
		Body:       body,
		StartedAt:  start,
		EndedAt:    time.Now(),
	}, nil
}

// responseAsValue converts an HTTPResponse into the JSON-compatible value
// bound as `response` in scope: the body is parsed as JSON when the
// Content-Type says so, else kept as a raw string.
func responseAsValue(resp HTTPResponse) map[string]any {
	headers := map[string]any{}
	for k, vs := range resp.Headers {
		if len(vs) == 1 {
			headers[k] = vs[0]
		} else {
			vals := make([]any, len(vs))
			for i, v := range vs {
				vals[i] = v
			}
			headers[k] = vals
		}
	}

	var body any
	contentType := firstHeader(resp.Headers, "Content-Type")
	if strings.Contains(contentType, "json") && len(resp.Body) > 0 {
		var parsed any
		if err := json.Unmarshal(resp.Body, &parsed); err == nil {
			body = parsed
		} else {
			body = string(resp.Body)
		}
	} else {
		body = string(resp.Body)
	}

	return map[string]any{
		"status":     float64(resp.StatusCode),
		"statusCode": float64(resp.StatusCode),
		"headers":    headers,
		"body":       body,
	}
}

func firstHeader(h map[string][]string, name string) string {
	for k, vs := range h {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// uriTemplatePattern matches a `{name}` placeholder in a configured URI
// template (spec.md §4.8 "The name resolver walks configured URI patterns").
var uriTemplatePattern = regexp.MustCompile(`\{[^/{}]+\}`)

// ResolveRequestName walks configured URI templates and returns the first
// one that structurally matches path (same segment count, literal segments
// equal, `{name}` segments accepted); falls back to the raw path.
func ResolveRequestName(path string, templates []string) string {
	pathSegs := strings.Split(strings.Trim(path, "/"), "/")
	for _, tmpl := range templates {
		tmplSegs := strings.Split(strings.Trim(tmpl, "/"), "/")
		if len(tmplSegs) != len(pathSegs) {
			continue
		}
		match := true
		for i, seg := range tmplSegs {
			if uriTemplatePattern.MatchString(seg) {
				continue
			}
			if seg != pathSegs[i] {
				match = false
				break
			}
		}
		if match {
			return tmpl
		}
	}
	return path
}

// MintClientCredentialsToken fetches a bearer token for a `configure` block
// declaring OAuth2 client-credentials settings (spec.md §6 "Configuration
// entry points... recognized keys"), grounded on golang.org/x/oauth2's
// clientcredentials.Config.
func MintClientCredentialsToken(ctx context.Context, tokenURL, clientID, clientSecret string, scopes []string) (string, error) {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	token, err := cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("configure: minting oauth2 token: %w", err)
	}
	return token.AccessToken, nil
}
