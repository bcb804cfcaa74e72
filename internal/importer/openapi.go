// Package importer synthesizes Feature ASTs from external API descriptions
// (spec.md's FeatureImporter component) instead of the DSL parser: one
// Scenario per OpenAPI operation or Postman request, built directly as
// model.Step values rather than text the parser has to re-derive. Grounded
// on the teacher's pkg/core/tools/spec_ingester package, which already
// parses both formats for a different purpose (attaching endpoint summaries
// to an LLM prompt) — this promotes that parsing into first-class Feature
// construction.
package importer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"

	"github.com/wingman-run/wingman/internal/model"
)

// FromOpenAPI parses an OpenAPI 3.x document and returns one Feature per
// path, with one Scenario per HTTP operation found on that path.
func FromOpenAPI(identity string, content []byte) (*model.Feature, error) {
	doc, err := libopenapi.NewDocument(content)
	if err != nil {
		return nil, fmt.Errorf("importer: failed to parse OpenAPI document: %w", err)
	}
	built, err := doc.BuildV3Model()
	if err != nil {
		return nil, fmt.Errorf("importer: failed to build OpenAPI v3 model: %w", err)
	}

	baseURL := ""
	if servers := built.Model.Servers; len(servers) > 0 && servers[0] != nil {
		baseURL = servers[0].URL
	}

	feature := &model.Feature{
		Identity: identity,
		Name:     built.Model.Info.Title,
	}

	type pathOp struct {
		path   string
		method string
		op     *v3.Operation
	}
	var ops []pathOp
	for pair := built.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		item := pair.Value()
		for method, op := range map[string]*v3.Operation{
			"GET": item.Get, "POST": item.Post, "PUT": item.Put,
			"DELETE": item.Delete, "PATCH": item.Patch,
		} {
			if op != nil {
				ops = append(ops, pathOp{path: path, method: method, op: op})
			}
		}
	}
	// PathItems iterates the ordered map in declaration order already, but
	// the inner method map above does not; sort for deterministic output.
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].path != ops[j].path {
			return ops[i].path < ops[j].path
		}
		return ops[i].method < ops[j].method
	})

	for _, po := range ops {
		feature.Sections = append(feature.Sections, model.Section{
			Scenario: operationScenario(baseURL, po.path, po.method, po.op),
		})
	}

	return feature, nil
}

func operationScenario(baseURL, path, method string, op *v3.Operation) *model.Scenario {
	name := op.OperationId
	if name == "" {
		name = method + " " + path
	}

	steps := []model.Step{
		{Prefix: model.PrefixGiven, Keyword: "url", Text: quoteCEL(baseURL)},
		{Prefix: model.PrefixAnd, Keyword: "path", Text: quoteCEL(path)},
	}

	for _, param := range op.Parameters {
		if param == nil || !strings.EqualFold(param.In, "query") {
			continue
		}
		placeholder := fmt.Sprintf("__%s__", param.Name)
		steps = append(steps, model.Step{
			Prefix:  model.PrefixAnd,
			Keyword: "param",
			Text:    param.Name + " = " + quoteCEL(placeholder),
		})
	}

	if op.RequestBody != nil {
		steps = append(steps, model.Step{Prefix: model.PrefixAnd, Keyword: "request", Text: "{}"})
	}

	steps = append(steps, model.Step{Prefix: model.PrefixWhen, Keyword: "method", Text: method})

	expectStatus := 200
	if op.Responses != nil {
		for pair := op.Responses.Codes.First(); pair != nil; pair = pair.Next() {
			if code, err := strconv.Atoi(pair.Key()); err == nil {
				expectStatus = code
				break
			}
		}
	}
	steps = append(steps, model.Step{
		Prefix:  model.PrefixThen,
		Keyword: "status",
		Text:    strconv.Itoa(expectStatus),
	})

	return &model.Scenario{Name: name, Steps: steps}
}

func quoteCEL(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}
