package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/wingman-run/wingman/internal/model"
	"github.com/wingman-run/wingman/internal/secrets"
)

// dispatchStep is the StepExecutor's public contract: execute one step
// against rt, mutating result with log lines/embeds as it goes, and return
// a Fault if the step failed (spec.md §4.2). Exactly one of these handlers
// runs per step; the rest of the scenario is skipped by the caller when a
// Fault is returned.
func dispatchStep(ctx context.Context, rt *ScenarioRuntime, step model.Step, result *StepResult) *Fault {
	loc := SourceLocation{Identity: rt.FeatureIdentity, Line: step.Line}

	switch step.Keyword {
	case "def", "var":
		return stepDef(ctx, rt, step, loc)
	case "url":
		return stepSimpleAssignToRequest(ctx, rt, step, loc, func(v any) { rt.Request.URL = fmt.Sprint(v) })
	case "path":
		return stepSimpleAssignToRequest(ctx, rt, step, loc, func(v any) {
			rt.Request.URL = joinPath(rt.Request.URL, fmt.Sprint(v))
		})
	case "method":
		return stepMethod(ctx, rt, step, loc)
	case "param":
		return stepNamedAssign(ctx, rt, step, loc, func(name string, v any) { rt.Request.Params[name] = fmt.Sprint(v) })
	case "header":
		return stepNamedAssign(ctx, rt, step, loc, func(name string, v any) {
			rt.Request.Headers[name] = append(rt.Request.Headers[name], fmt.Sprint(v))
		})
	case "cookie":
		return stepNamedAssign(ctx, rt, step, loc, func(name string, v any) { rt.Request.Cookies[name] = fmt.Sprint(v) })
	case "form":
		return stepNamedAssign(ctx, rt, step, loc, func(name string, v any) { rt.Request.Form[name] = fmt.Sprint(v) })
	case "request":
		return stepSimpleAssignToRequest(ctx, rt, step, loc, func(v any) { rt.Request.Body = v })
	case "status":
		return stepStatus(ctx, rt, step, loc)
	case "match":
		return stepMatch(ctx, rt, step, result, loc)
	case "assert":
		return stepAssert(ctx, rt, step, loc)
	case "print":
		return stepPrint(ctx, rt, step, result, loc)
	case "call", "callonce", "callSingle":
		return stepCall(ctx, rt, step, loc)
	case "configure":
		return stepConfigure(ctx, rt, step, loc)
	case "driver":
		return stepDriver(ctx, rt, step, loc)
	case "doc":
		return stepDoc(ctx, rt, step, result, loc)
	case "eval", "read":
		_, err := rt.Engine.Eval(ctx, step.Text, rt.Scope.ResultVariables())
		if err != nil {
			return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
		}
		return nil
	default:
		// Bare expression (side effects only) or a call expression like
		// `cookie({ name: 'foo' })` that the parser did not classify as a
		// keyword step (spec.md §4.2 step 3).
		_, err := rt.Engine.Eval(ctx, step.Text, rt.Scope.ResultVariables())
		if err != nil {
			return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
		}
		return nil
	}
}

// splitAssignment splits "name = expr" into name and expr; ok is false if
// text is not of that shape.
func splitAssignment(text string) (name, expr string, ok bool) {
	parts := strings.SplitN(text, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	name = strings.TrimSpace(parts[0])
	if name == "" || strings.ContainsAny(name, " ({[") {
		return "", "", false
	}
	return name, strings.TrimSpace(parts[1]), true
}

func stepDef(ctx context.Context, rt *ScenarioRuntime, step model.Step, loc SourceLocation) *Fault {
	name, expr, ok := splitAssignment(step.Text)
	if !ok {
		return &Fault{Kind: FaultEvaluate, Message: "def: expected 'name = expr'", Location: loc}
	}

	if mode, featureRef, argExpr, isCall := parseCallPrefix(expr); isCall {
		return assignCallResult(ctx, rt, name, mode, featureRef, argExpr, loc)
	}

	if rest := strings.TrimPrefix(expr, "copy "); rest != expr {
		v, err := rt.Scope.DeepCopyOf(strings.TrimSpace(rest))
		if err != nil {
			return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
		}
		rt.Scope.Set(name, v)
		return nil
	}

	v, err := evalWithStep(ctx, rt, step, expr)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	rt.Scope.Set(name, v)
	return nil
}

// evalWithStep evaluates expr, binding the step's doc-string/table (if any)
// as `__docString`/`__table` so expressions like a `def` step with a
// trailing table can reference them; most expressions ignore these.
func evalWithStep(ctx context.Context, rt *ScenarioRuntime, step model.Step, expr string) (any, error) {
	vars := rt.Scope.ResultVariables()
	if step.DocString != nil {
		vars["__docString"] = step.DocString.Content
	}
	if step.Table != nil {
		vars["__table"] = tableToMaps(step.Table)
	}
	return rt.Engine.Eval(ctx, expr, vars)
}

func tableToMaps(t *model.Table) []any {
	out := make([]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := map[string]any{}
		for i, header := range t.Headers {
			if i < len(row) {
				m[t.ColumnName(i)] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

func stepSimpleAssignToRequest(ctx context.Context, rt *ScenarioRuntime, step model.Step, loc SourceLocation, apply func(any)) *Fault {
	v, err := evalWithStep(ctx, rt, step, step.Text)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	apply(v)
	return nil
}

func stepNamedAssign(ctx context.Context, rt *ScenarioRuntime, step model.Step, loc SourceLocation, apply func(name string, v any)) *Fault {
	name, expr, ok := splitAssignment(step.Text)
	if !ok {
		return &Fault{Kind: FaultEvaluate, Message: fmt.Sprintf("%s: expected 'name = expr'", step.Keyword), Location: loc}
	}
	v, err := evalWithStep(ctx, rt, step, expr)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	apply(name, v)
	return nil
}

func joinPath(base, seg string) string {
	base = strings.TrimRight(base, "/")
	seg = strings.TrimLeft(seg, "/")
	if base == "" {
		return "/" + seg
	}
	return base + "/" + seg
}

// stepMethod fires the accumulated request (spec.md §4.2, §6): builds the
// final URL from base + path + query params, merges configured + per-step
// headers, issues the call through rt.HTTP, and binds `response`.
func stepMethod(ctx context.Context, rt *ScenarioRuntime, step model.Step, loc SourceLocation) *Fault {
	if rt.HTTP == nil {
		return &Fault{Kind: FaultInfra, Message: "method: no HTTP client configured", Location: loc}
	}
	method := strings.ToUpper(strings.TrimSpace(step.Text))
	if method == "" {
		method = "GET"
	}

	finalURL := rt.Request.URL
	if len(rt.Request.Params) > 0 {
		var parts []string
		for k, v := range rt.Request.Params {
			parts = append(parts, k+"="+v)
		}
		sep := "?"
		if strings.Contains(finalURL, "?") {
			sep = "&"
		}
		finalURL += sep + strings.Join(parts, "&")
	}

	headers := map[string][]string{}
	for k, vs := range rt.RequestHeaders {
		headers[k] = append(headers[k], vs...)
	}
	for k, vs := range rt.Request.Headers {
		headers[k] = append(headers[k], vs...)
	}
	if len(rt.Request.Cookies) > 0 {
		var cookieParts []string
		for k, v := range rt.Request.Cookies {
			cookieParts = append(cookieParts, k+"="+v)
		}
		headers["Cookie"] = append(headers["Cookie"], strings.Join(cookieParts, "; "))
	}

	body, err := encodeBody(rt.Request.Body, rt.Request.Form)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}

	requestName := ResolveRequestName(rt.Request.URL, nil)
	start := time.Now()
	resp, err := rt.HTTP.Do(ctx, HTTPRequest{Method: method, URL: finalURL, Headers: headers, Body: body})
	end := time.Now()
	if rt.Perf != nil {
		ok := err == nil && resp.StatusCode < 500
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		rt.Perf.OnRequest(requestName, start, end, resp.StatusCode, ok, msg)
	}
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}

	rt.Response = responseAsValue(resp)
	rt.Scope.Set("response", rt.Response)
	rt.Scope.Set("responseStatus", float64(resp.StatusCode))
	rt.Request = newRequestState()
	return nil
}

func encodeBody(body any, form map[string]string) ([]byte, error) {
	if len(form) > 0 {
		var parts []string
		for k, v := range form {
			parts = append(parts, k+"="+v)
		}
		return []byte(strings.Join(parts, "&")), nil
	}
	if body == nil {
		return nil, nil
	}
	if s, ok := body.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(body)
}

func stepStatus(ctx context.Context, rt *ScenarioRuntime, step model.Step, loc SourceLocation) *Fault {
	want, err := strconv.Atoi(strings.TrimSpace(step.Text))
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: "status: expected an integer", Location: loc}
	}
	got, ok := rt.Scope.Get("responseStatus")
	if !ok {
		return &Fault{Kind: FaultAssert, Message: "status: no response recorded yet", Location: loc}
	}
	gf, _ := got.(float64)
	if int(gf) != want {
		return &Fault{Kind: FaultAssert, Message: fmt.Sprintf("expected status %d, got %d", want, int(gf)), Location: loc}
	}
	return nil
}

// matchOperators is ordered longest-first so "contains deep"/"contains
// only" are preferred over the shorter "contains" when scanning step text.
var matchOperators = []string{"contains deep", "contains only", "!contains", "!within", "==", "!=", "contains", "within"}

func stepMatch(ctx context.Context, rt *ScenarioRuntime, step model.Step, result *StepResult, loc SourceLocation) *Fault {
	text := step.Text
	each := false
	if strings.HasPrefix(text, "each ") {
		each = true
		text = strings.TrimPrefix(text, "each ")
	}

	actualText, op, expectedText, found := splitMatchOperator(text)
	if !found {
		return &Fault{Kind: FaultEvaluate, Message: "match: no recognized operator in step text", Location: loc}
	}
	if each {
		op = "each " + op
	}

	actual, err := evalWithStep(ctx, rt, step, actualText)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}

	var expected any
	if strings.TrimSpace(expectedText) == "" && step.DocString != nil {
		// "contains deep" etc with no inline value: expected comes from the
		// trailing doc-string (spec.md §4.2 tie-break rule).
		if err := json.Unmarshal([]byte(step.DocString.Content), &expected); err != nil {
			expected = step.DocString.Content
		}
	} else {
		expected, err = evalWithStep(ctx, rt, step, expectedText)
		if err != nil {
			return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
		}
	}

	outcome, err := Match(op, actual, expected)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	if !outcome.Passed {
		f := &Fault{Kind: FaultAssert, Message: outcome.Diff, Location: loc, DiffPath: outcome.Path}
		return f
	}
	return nil
}

func splitMatchOperator(text string) (actual, op, expected string, found bool) {
	for _, candidate := range matchOperators {
		idx := strings.Index(text, " "+candidate+" ")
		if idx >= 0 {
			return strings.TrimSpace(text[:idx]), candidate, strings.TrimSpace(text[idx+len(candidate)+2:]), true
		}
		// operator with nothing trailing (doc-string supplies expected).
		suffixIdx := strings.Index(text, " "+candidate)
		if suffixIdx >= 0 && suffixIdx+len(candidate)+1 == len(text) {
			return strings.TrimSpace(text[:suffixIdx]), candidate, "", true
		}
	}
	return "", "", "", false
}

func stepAssert(ctx context.Context, rt *ScenarioRuntime, step model.Step, loc SourceLocation) *Fault {
	v, err := evalWithStep(ctx, rt, step, step.Text)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	b, _ := v.(bool)
	if !b {
		return &Fault{Kind: FaultAssert, Message: fmt.Sprintf("assertion failed: %s", step.Text), Location: loc}
	}
	return nil
}

func stepPrint(ctx context.Context, rt *ScenarioRuntime, step model.Step, result *StepResult, loc SourceLocation) *Fault {
	v, err := evalWithStep(ctx, rt, step, step.Text)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	line := secrets.RedactText(fmt.Sprint(v))
	result.Log = append(result.Log, line)
	return nil
}

// parseCallPrefix reports whether text begins with a call-mode keyword
// (spec.md §4.4) and, if so, splits it into mode/featureRef/argExprText.
func parseCallPrefix(text string) (mode, featureRef, argExpr string, ok bool) {
	for _, m := range []string{"callonce", "callSingle", "call"} {
		if text == m || strings.HasPrefix(text, m+" ") {
			rest := strings.TrimSpace(strings.TrimPrefix(text, m))
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				return "", "", "", false
			}
			featureRef = fields[0]
			argExpr = strings.TrimSpace(strings.TrimPrefix(rest, featureRef))
			return m, featureRef, argExpr, true
		}
	}
	return "", "", "", false
}

func stepCall(ctx context.Context, rt *ScenarioRuntime, step model.Step, loc SourceLocation) *Fault {
	mode := step.Keyword
	fields := strings.Fields(step.Text)
	if len(fields) == 0 {
		return &Fault{Kind: FaultEvaluate, Message: "call: expected a feature reference", Location: loc}
	}
	featureRef := fields[0]
	argExpr := strings.TrimSpace(strings.TrimPrefix(step.Text, featureRef))
	args, err := evalCallArgs(ctx, rt, argExpr)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	resultVars, err := runCallMode(ctx, rt, mode, featureRef, args)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	// Shared scope: merge new names only (spec.md §4.4 "isolated vs shared").
	for k, v := range resultVars {
		if _, exists := rt.Scope.Get(k); !exists {
			rt.Scope.Set(k, v)
		}
	}
	return nil
}

func assignCallResult(ctx context.Context, rt *ScenarioRuntime, varName, mode, featureRef, argExpr string, loc SourceLocation) *Fault {
	args, err := evalCallArgs(ctx, rt, argExpr)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	resultVars, err := runCallMode(ctx, rt, mode, featureRef, args)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	out := make(map[string]any, len(resultVars))
	for k, v := range resultVars {
		out[k] = v
	}
	rt.Scope.Set(varName, out)
	return nil
}

func evalCallArgs(ctx context.Context, rt *ScenarioRuntime, argExpr string) (map[string]any, error) {
	if strings.TrimSpace(argExpr) == "" {
		return nil, nil
	}
	v, err := rt.Engine.Eval(ctx, argExpr, rt.Scope.ResultVariables())
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{"arg": v}, nil
	}
	return m, nil
}

func runCallMode(ctx context.Context, rt *ScenarioRuntime, mode, featureRef string, args map[string]any) (map[string]any, error) {
	if rt.CallRunner == nil {
		return nil, fmt.Errorf("call: no call runner configured")
	}
	switch mode {
	case "call":
		return rt.CallRunner(ctx, rt.FeatureIdentity, rt.Scope, featureRef, args)
	case "callonce", "callSingle":
		hash, err := CanonicalHash(args)
		if err != nil {
			return nil, err
		}
		regMode := "once"
		if mode == "callSingle" {
			regMode = "single"
		}
		key := CallKey{FeatureIdentity: featureRef, Mode: regMode, ArgHash: hash}
		v, err := rt.Calls.Call(ctx, rt.FeatureIdentity, key, func(ctx context.Context) (any, error) {
			return rt.CallRunner(ctx, rt.FeatureIdentity, rt.Scope, featureRef, args)
		})
		if err != nil {
			return nil, err
		}
		result, _ := v.(map[string]any)
		return result, nil
	default:
		return nil, fmt.Errorf("call: unknown mode %q", mode)
	}
}

// stepConfigure handles `configure <name> = <expr>` (spec.md §6): headers
// become defaults merged into every subsequent request; an oauth2 block
// mints a bearer token eagerly.
func stepConfigure(ctx context.Context, rt *ScenarioRuntime, step model.Step, loc SourceLocation) *Fault {
	name, expr, ok := splitAssignment(step.Text)
	if !ok {
		return &Fault{Kind: FaultEvaluate, Message: "configure: expected 'name = expr'", Location: loc}
	}
	v, err := evalWithStep(ctx, rt, step, expr)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}

	switch name {
	case "headers":
		m, _ := v.(map[string]any)
		for k, hv := range m {
			rt.RequestHeaders[k] = append(rt.RequestHeaders[k], fmt.Sprint(hv))
		}
	case "oauth2":
		m, _ := v.(map[string]any)
		tokenURL, _ := m["tokenUrl"].(string)
		clientID, _ := m["clientId"].(string)
		clientSecret, _ := m["clientSecret"].(string)
		token, err := MintClientCredentialsToken(ctx, tokenURL, clientID, clientSecret, nil)
		if err != nil {
			return &Fault{Kind: FaultInfra, Message: err.Error(), Location: loc}
		}
		rt.RequestHeaders["Authorization"] = append(rt.RequestHeaders["Authorization"], "Bearer "+token)
	case "scope":
		if s, _ := v.(string); s == "caller" {
			rt.ScopeIsCaller = true
		}
	default:
		rt.Scope.Set("configure_"+name, v)
	}
	return nil
}

func stepDriver(ctx context.Context, rt *ScenarioRuntime, step model.Step, loc SourceLocation) *Fault {
	if rt.DriverFactory == nil {
		return &Fault{Kind: FaultInfra, Message: "driver: no driver factory configured", Location: loc}
	}
	v, err := evalWithStep(ctx, rt, step, step.Text)
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	driverObj, err := rt.DriverFactory(v)
	if err != nil {
		return &Fault{Kind: FaultInfra, Message: err.Error(), Location: loc}
	}
	rt.Driver = driverObj
	rt.Scope.Set("driver", driverObj)
	return nil
}

// stepDoc renders the step's text/doc-string as markdown, attaching a
// glamour-rendered preview to the step's log and an HTML embed of MIME type
// text/html built with html/template (spec.md §4.2).
func stepDoc(ctx context.Context, rt *ScenarioRuntime, step model.Step, result *StepResult, loc SourceLocation) *Fault {
	content := step.Text
	if step.DocString != nil {
		content = step.DocString.Content
	}

	rendered, err := glamour.Render(content, "dark")
	if err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	result.Log = append(result.Log, strings.TrimRight(rendered, "\n"))

	var htmlBuf strings.Builder
	if err := docTemplate.Execute(&htmlBuf, content); err != nil {
		return &Fault{Kind: FaultEvaluate, Message: err.Error(), Location: loc}
	}
	result.Embeds = append(result.Embeds, Embed{MimeType: "text/html", Data: []byte(htmlBuf.String())})
	return nil
}

var docTemplate = template.Must(template.New("doc").Parse(`<pre>{{.}}</pre>`))
