package model

import (
	"fmt"
	"strings"
)

// ExpandOutline produces one concrete Scenario per Examples row (spec.md §3,
// §8 "Outline expansion"). `<col>` placeholders in step text, doc-strings,
// and table cells are substituted textually before the scenario is handed
// to the runtime; expression columns (header ending in '!') are still
// substituted textually here — the runtime evaluates the substituted text
// as an expression when it assigns the value.
func ExpandOutline(o *ScenarioOutline) []Scenario {
	var out []Scenario
	for _, ex := range o.Examples {
		for rowIdx, row := range ex.Table.Rows {
			bindings := make(map[string]string, len(ex.Table.Headers))
			for i, header := range ex.Table.Headers {
				name := strings.TrimSuffix(header, "!")
				if i < len(row) {
					bindings[name] = row[i]
				}
			}
			steps := make([]Step, len(o.Steps))
			for i, s := range o.Steps {
				steps[i] = substituteStep(s, bindings)
			}
			tags := append(append([]Tag{}, o.Tags...), ex.Tags...)
			out = append(out, Scenario{
				Name:        substitute(o.Name, bindings),
				Line:        o.Line,
				Tags:        tags,
				Steps:       steps,
				OutlineName: o.Name,
				ExampleRow:  rowIdx,
			})
		}
	}
	return out
}

func substituteStep(s Step, bindings map[string]string) Step {
	out := s
	out.Text = substitute(s.Text, bindings)
	if s.DocString != nil {
		doc := *s.DocString
		doc.Content = substitute(doc.Content, bindings)
		out.DocString = &doc
	}
	if s.Table != nil {
		tbl := Table{Headers: append([]string{}, s.Table.Headers...)}
		for _, row := range s.Table.Rows {
			newRow := make([]string, len(row))
			for i, cell := range row {
				newRow[i] = substitute(cell, bindings)
			}
			tbl.Rows = append(tbl.Rows, newRow)
		}
		out.Table = &tbl
	}
	return out
}

func substitute(text string, bindings map[string]string) string {
	for name, value := range bindings {
		text = strings.ReplaceAll(text, fmt.Sprintf("<%s>", name), value)
	}
	return text
}
