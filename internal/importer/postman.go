package importer

import (
	"strings"

	postman "github.com/rbretecher/go-postman-collection"

	"github.com/wingman-run/wingman/internal/model"
)

// FromPostman parses a Postman Collection v2.1 export and returns one
// Feature with one Scenario per request, walking folders recursively the
// way the teacher's spec_ingester.PostmanParser.processItems does.
func FromPostman(identity string, content []byte) (*model.Feature, error) {
	collection, err := postman.ParseCollection(strings.NewReader(string(content)))
	if err != nil {
		return nil, err
	}

	feature := &model.Feature{Identity: identity, Name: collection.Info.Name}
	collectPostmanItems(collection.Items, &feature.Sections)
	return feature, nil
}

func collectPostmanItems(items []*postman.Items, sections *[]model.Section) {
	for _, item := range items {
		if item.IsGroup() {
			collectPostmanItems(item.Items, sections)
			continue
		}
		if item.Request == nil {
			continue
		}
		*sections = append(*sections, model.Section{Scenario: postmanRequestScenario(item.Name, item.Request)})
	}
}

func postmanRequestScenario(name string, req *postman.Request) *model.Scenario {
	method := string(req.Method)
	rawURL := ""
	if req.URL != nil {
		rawURL = req.URL.Raw
	}
	if name == "" {
		name = method + " " + rawURL
	}

	steps := []model.Step{
		{Prefix: model.PrefixGiven, Keyword: "url", Text: quoteCEL(rawURL)},
	}

	for _, h := range req.Header {
		steps = append(steps, model.Step{
			Prefix:  model.PrefixAnd,
			Keyword: "header",
			Text:    h.Key + " = " + quoteCEL(h.Value),
		})
	}

	if req.URL != nil {
		for _, q := range req.URL.Query {
			steps = append(steps, model.Step{
				Prefix:  model.PrefixAnd,
				Keyword: "param",
				Text:    q.Key + " = " + quoteCEL(q.Value),
			})
		}
	}

	if req.Body != nil {
		steps = append(steps, model.Step{Prefix: model.PrefixAnd, Keyword: "request", Text: "{}"})
	}

	steps = append(steps, model.Step{Prefix: model.PrefixWhen, Keyword: "method", Text: method})
	steps = append(steps, model.Step{Prefix: model.PrefixThen, Keyword: "status", Text: "200"})

	return &model.Scenario{Name: name, Steps: steps}
}
