// Package mock implements the MockDispatcher (spec.md §4.7): it reuses the
// engine package's StepExecutor to select and run a scenario from a
// specially-marked mock feature against an incoming HTTP request, and
// serves the result over valyala/fasthttp.
package mock

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/wingman-run/wingman/internal/engine"
	"github.com/wingman-run/wingman/internal/script"
)

var _ script.HostObject = (*requestHost)(nil)

// requestHost exposes one incoming HTTP request to scenario predicates and
// steps as the `request` variable (spec.md §4.7 step 2): `method`, `path`,
// `pathMatches(pattern)`, `param(name)`, `header(name)`, `bodyString`.
type requestHost struct {
	Method  string
	Path    string
	Headers map[string][]string
	Query   map[string][]string
	Body    []byte

	mu           sync.Mutex
	patternCache map[string]*regexp.Regexp
}

func newRequestHost(method, path string, headers, query map[string][]string, body []byte) *requestHost {
	return &requestHost{
		Method:       method,
		Path:         path,
		Headers:      headers,
		Query:        query,
		Body:         body,
		patternCache: map[string]*regexp.Regexp{},
	}
}

func (r *requestHost) GetProperty(name string) (any, bool) {
	switch name {
	case "method":
		return r.Method, true
	case "path":
		return r.Path, true
	case "bodyString":
		return string(r.Body), true
	}
	return nil, false
}

func (r *requestHost) SetProperty(string, any) error {
	return fmt.Errorf("request is read-only")
}

func (r *requestHost) Invoke(method string, args []any) (any, error) {
	switch method {
	case "pathMatches":
		if len(args) != 1 {
			return nil, fmt.Errorf("pathMatches: expected 1 argument")
		}
		pattern, _ := args[0].(string)
		return r.pathMatches(pattern), nil
	case "param":
		if len(args) != 1 {
			return nil, fmt.Errorf("param: expected 1 argument")
		}
		name, _ := args[0].(string)
		if vs, ok := r.Query[name]; ok && len(vs) > 0 {
			return vs[0], nil
		}
		return "", nil
	case "header":
		if len(args) != 1 {
			return nil, fmt.Errorf("header: expected 1 argument")
		}
		name, _ := args[0].(string)
		for k, vs := range r.Headers {
			if strings.EqualFold(k, name) && len(vs) > 0 {
				return vs[0], nil
			}
		}
		return "", nil
	}
	return nil, fmt.Errorf("request: no such method %q", method)
}

// pathMatches compiles pattern once (e.g. "/users/{id}" -> `^/users/[^/]+$`)
// and caches it, since the same mock scenario's predicate runs on every
// matching request.
func (r *requestHost) pathMatches(pattern string) bool {
	r.mu.Lock()
	re, ok := r.patternCache[pattern]
	r.mu.Unlock()
	if !ok {
		re = compilePathPattern(pattern)
		r.mu.Lock()
		r.patternCache[pattern] = re
		r.mu.Unlock()
	}
	return re.MatchString(r.Path)
}

// bindRequestHelpers additionally exposes request.method/path/bodyString and
// request.pathMatches/header/param as bare identifiers in scope, so a
// predicate written without the `request.` receiver (spec.md §8 concrete
// scenario 5's literal `pathMatches('/users/{id}') && method=='GET'`) also
// evaluates, alongside the always-available `request.pathMatches(...)` form.
func bindRequestHelpers(scope *engine.VariableScope, req *requestHost) {
	scope.Set("method", req.Method)
	scope.Set("path", req.Path)
	scope.Set("bodyString", string(req.Body))
	scope.Set("pathMatches", script.Func1(func(arg any) (any, error) {
		pattern, _ := arg.(string)
		return req.pathMatches(pattern), nil
	}))
	scope.Set("header", script.Func1(func(arg any) (any, error) {
		name, _ := arg.(string)
		return req.Invoke("header", []any{name})
	}))
	scope.Set("param", script.Func1(func(arg any) (any, error) {
		name, _ := arg.(string)
		return req.Invoke("param", []any{name})
	}))
}

var pathParamPattern = regexp.MustCompile(`\{[^{}]+\}`)

func compilePathPattern(pattern string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(pattern)
	// QuoteMeta escaped the braces too; undo that before substituting.
	escaped = strings.NewReplacer(`\{`, "{", `\}`, "}").Replace(escaped)
	expr := "^" + pathParamPattern.ReplaceAllString(escaped, `[^/]+`) + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return regexp.MustCompile(`^\x00$`) // never matches
	}
	return re
}
