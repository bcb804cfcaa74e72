// Package model holds the parsed artifact types the execution core consumes:
// Feature, Scenario, ScenarioOutline, Step, and the Tag annotations that
// drive lock/call/tag-filter behavior. Producing these types from feature
// text is the job of the parser (parser.go); this file only defines the
// data model (spec.md §3).
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Prefix is the Gherkin-derived step prefix.
type Prefix string

const (
	PrefixStar  Prefix = "*"
	PrefixGiven Prefix = "Given"
	PrefixWhen  Prefix = "When"
	PrefixThen  Prefix = "Then"
	PrefixAnd   Prefix = "And"
	PrefixBut   Prefix = "But"
)

// Tag is a `@name` or `@name=value[,value]*` annotation on a Scenario or
// Feature.
type Tag struct {
	Name   string
	Values []string
}

// HasValue reports whether the tag carries the given value, e.g.
// @env=dev,qa has HasValue("qa") == true.
func (t Tag) HasValue(v string) bool {
	for _, val := range t.Values {
		if val == v {
			return true
		}
	}
	return false
}

// String renders the tag back to its source form, e.g. "@lock=shared".
func (t Tag) String() string {
	if len(t.Values) == 0 {
		return "@" + t.Name
	}
	return "@" + t.Name + "=" + strings.Join(t.Values, ",")
}

// Table is a Gherkin data table attached to a step. Headers ending in '!'
// are expression columns (spec.md §3); Expr reports that for column i.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ExprColumn reports whether column i's header is an expression column.
func (t Table) ExprColumn(i int) bool {
	if i < 0 || i >= len(t.Headers) {
		return false
	}
	return strings.HasSuffix(t.Headers[i], "!")
}

// ColumnName strips the trailing '!' from an expression column header.
func (t Table) ColumnName(i int) string {
	return strings.TrimSuffix(t.Headers[i], "!")
}

// DocString is a `"""`-delimited block attached to a step.
type DocString struct {
	ContentType string // optional language tag after the opening """
	Content     string
	Line        int // source line the doc-string started on
}

// Step is one line of the DSL: keyword + text + optional doc-string/table.
type Step struct {
	Line      int
	Prefix    Prefix
	Keyword   string // "", "def", "url", "method", "call", "match", ...
	Text      string // the RHS, or the bare expression/assignment text
	DocString *DocString
	Table     *Table
}

// Source renders a short human-readable location, e.g. "feature.feature:12".
func (s Step) Source(featureID string) string {
	return fmt.Sprintf("%s:%d", featureID, s.Line)
}

// Scenario is an ordered list of Steps, run under a shared Background.
type Scenario struct {
	Name  string
	Line  int
	Tags  []Tag
	Steps []Step

	// Outline fields, set only for rows expanded from a ScenarioOutline.
	OutlineName string
	ExampleRow  int
}

// Tag looks up a tag by name on the scenario.
func (s Scenario) Tag(name string) (Tag, bool) {
	for _, t := range s.Tags {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// ExamplesTable is one `Examples:` block of a ScenarioOutline.
type ExamplesTable struct {
	Name  string
	Tags  []Tag
	Table Table
}

// ScenarioOutline is a Scenario template plus one or more Examples tables.
type ScenarioOutline struct {
	Name     string
	Line     int
	Tags     []Tag
	Steps    []Step
	Examples []ExamplesTable
}

// Section is either a plain Scenario or a ScenarioOutline.
type Section struct {
	Scenario *Scenario
	Outline  *ScenarioOutline
}

// Feature is the parsed artifact: a stable identity, optional Background,
// and an ordered list of Sections (spec.md §3).
type Feature struct {
	// Identity is the absolute path, or for inline features a content hash;
	// it is the key for all memoization (spec.md §3 invariant).
	Identity   string
	Name       string
	Tags       []Tag
	Background []Step
	Sections   []Section
}

// Tag looks up a feature-level tag by name.
func (f *Feature) Tag(name string) (Tag, bool) {
	for _, t := range f.Tags {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// ContentIdentity hashes inline feature text into a stable identity, used
// when a Feature has no backing file (spec.md §6 "inline string" scheme).
func ContentIdentity(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "inline:" + hex.EncodeToString(sum[:])[:16]
}
