package model

import (
	"fmt"
	"strings"
)

// Parser produces a Feature AST from feature text. The execution core
// depends only on this interface (spec.md §1: "the Gherkin lexer/parser...
// is out of scope; specify only its interface"); ParseText below is a
// minimal concrete implementation sufficient to run and test the core
// end-to-end without an external toolchain.
type Parser interface {
	Parse(identity, text string) (*Feature, error)
}

// ParseError carries the feature file and line a parse failure occurred at
// (spec.md §7, "Parse error... reported with file path and line").
type ParseError struct {
	Identity string
	Line     int
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Identity, e.Line, e.Msg)
}

// reservedKeywords are the DSL keywords the disambiguator recognizes before
// falling back to treating a step as a bare expression or assignment
// (spec.md §3).
var reservedKeywords = map[string]bool{
	"def": true, "var": true, "url": true, "method": true, "path": true,
	"param": true, "header": true, "cookie": true, "form": true,
	"request": true, "status": true, "match": true, "assert": true,
	"print": true, "call": true, "callonce": true, "callSingle": true,
	"read": true, "configure": true, "driver": true, "eval": true, "doc": true,
}

type gherkinParser struct{}

// NewParser returns the default Parser implementation.
func NewParser() Parser { return &gherkinParser{} }

func (p *gherkinParser) Parse(identity, text string) (*Feature, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	f := &Feature{Identity: identity}

	ps := &parseState{identity: identity, lines: lines}

	pendingTags, err := ps.collectTags()
	if err != nil {
		return nil, err
	}

	for ps.more() {
		line := ps.peekTrim()
		switch {
		case line == "":
			ps.next()
		case strings.HasPrefix(line, "#"):
			ps.next()
		case strings.HasPrefix(line, "@"):
			tags, err := ps.collectTags()
			if err != nil {
				return nil, err
			}
			pendingTags = tags
		case strings.HasPrefix(line, "Feature:"):
			f.Name = strings.TrimSpace(strings.TrimPrefix(line, "Feature:"))
			f.Tags = pendingTags
			pendingTags = nil
			ps.next()
		case strings.HasPrefix(line, "Background:"):
			ps.next()
			steps, err := ps.parseSteps()
			if err != nil {
				return nil, err
			}
			f.Background = steps
		case strings.HasPrefix(line, "Scenario Outline:") || strings.HasPrefix(line, "Scenario Template:"):
			name := afterColon(line)
			outlineLine := ps.lineNo()
			ps.next()
			steps, err := ps.parseSteps()
			if err != nil {
				return nil, err
			}
			examples, err := ps.parseExamplesBlocks()
			if err != nil {
				return nil, err
			}
			f.Sections = append(f.Sections, Section{Outline: &ScenarioOutline{
				Name: name, Line: outlineLine, Tags: pendingTags, Steps: steps, Examples: examples,
			}})
			pendingTags = nil
		case strings.HasPrefix(line, "Scenario:"):
			name := afterColon(line)
			scLine := ps.lineNo()
			ps.next()
			steps, err := ps.parseSteps()
			if err != nil {
				return nil, err
			}
			f.Sections = append(f.Sections, Section{Scenario: &Scenario{
				Name: name, Line: scLine, Tags: pendingTags, Steps: steps,
			}})
			pendingTags = nil
		default:
			return nil, &ParseError{Identity: identity, Line: ps.lineNo(), Msg: "unexpected line: " + line}
		}
	}

	if f.Name == "" && len(f.Sections) == 0 && len(f.Background) == 0 {
		return nil, &ParseError{Identity: identity, Line: 1, Msg: "empty feature"}
	}
	return f, nil
}

func afterColon(line string) string {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[i+1:])
}

type parseState struct {
	identity string
	lines    []string
	idx      int
}

func (ps *parseState) more() bool { return ps.idx < len(ps.lines) }
func (ps *parseState) lineNo() int { return ps.idx + 1 }
func (ps *parseState) peekTrim() string {
	if !ps.more() {
		return ""
	}
	return strings.TrimSpace(ps.lines[ps.idx])
}
func (ps *parseState) next() { ps.idx++ }

// collectTags consumes zero or more consecutive "@tag @tag=a,b" lines and
// returns the parsed tags.
func (ps *parseState) collectTags() ([]Tag, error) {
	var tags []Tag
	for ps.more() {
		line := ps.peekTrim()
		if !strings.HasPrefix(line, "@") {
			break
		}
		if strings.Contains(line, "\r") {
			return nil, &ParseError{Identity: ps.identity, Line: ps.lineNo(), Msg: "tag line contains CR"}
		}
		for _, tok := range strings.Fields(line) {
			tok = strings.TrimPrefix(tok, "@")
			if tok == "" {
				continue
			}
			name, valuesPart, hasValue := strings.Cut(tok, "=")
			var values []string
			if hasValue {
				values = strings.Split(valuesPart, ",")
			}
			tags = append(tags, Tag{Name: name, Values: values})
		}
		ps.next()
	}
	return tags, nil
}

// parseSteps consumes step lines (including doc-strings and tables) until a
// blank line followed by a new section keyword, or EOF.
func (ps *parseState) parseSteps() ([]Step, error) {
	var steps []Step
	for ps.more() {
		line := ps.peekTrim()
		if line == "" {
			ps.next()
			continue
		}
		if strings.HasPrefix(line, "#") {
			ps.next()
			continue
		}
		if isSectionStart(line) {
			break
		}
		step, err := ps.parseStepLine(line)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func isSectionStart(line string) bool {
	return strings.HasPrefix(line, "@") ||
		strings.HasPrefix(line, "Scenario:") ||
		strings.HasPrefix(line, "Scenario Outline:") ||
		strings.HasPrefix(line, "Scenario Template:") ||
		strings.HasPrefix(line, "Examples:") ||
		strings.HasPrefix(line, "Scenarios:") ||
		strings.HasPrefix(line, "Background:") ||
		strings.HasPrefix(line, "Feature:")
}

func (ps *parseState) parseStepLine(line string) (Step, error) {
	stepLine := ps.lineNo()
	prefix, rest := splitPrefix(line)
	ps.next()

	keyword, text := classify(rest)
	step := Step{Line: stepLine, Prefix: prefix, Keyword: keyword, Text: text}

	if ps.more() && strings.HasPrefix(ps.peekTrim(), `"""`) {
		doc, err := ps.parseDocString()
		if err != nil {
			return Step{}, err
		}
		step.DocString = doc
	} else if ps.more() && strings.HasPrefix(ps.peekTrim(), "|") {
		step.Table = ps.parseTable()
	}
	return step, nil
}

func splitPrefix(line string) (Prefix, string) {
	for _, p := range []Prefix{PrefixGiven, PrefixWhen, PrefixThen, PrefixAnd, PrefixBut} {
		if strings.HasPrefix(line, string(p)+" ") {
			return p, strings.TrimSpace(line[len(p):])
		}
	}
	if strings.HasPrefix(line, "* ") {
		return PrefixStar, strings.TrimSpace(line[1:])
	}
	return PrefixStar, line
}

// classify disambiguates a DSL keyword step from a bare expression or
// assignment (spec.md §3: "the parser disambiguates keyword vs expression
// by reserved-word table plus lookahead").
func classify(text string) (keyword string, rest string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", text
	}
	first := fields[0]
	if reservedKeywords[first] {
		// "cookie foo = 'bar'" is keyword; "cookie({...})" is a call
		// expression — a reserved word followed immediately by '(' is not
		// a keyword step.
		afterFirst := strings.TrimPrefix(text, first)
		if strings.HasPrefix(strings.TrimSpace(afterFirst), "(") {
			return "", text
		}
		return first, strings.TrimSpace(afterFirst)
	}
	// "name = expr" assignment form.
	if len(fields) >= 2 && fields[1] == "=" {
		return "def", text
	}
	return "", text
}

func (ps *parseState) parseDocString() (*DocString, error) {
	startLine := ps.lineNo()
	openRaw := ps.lines[ps.idx]
	indent := openRaw[:len(openRaw)-len(strings.TrimLeft(openRaw, " \t"))]
	opening := strings.TrimSpace(openRaw)
	contentType := strings.TrimSpace(strings.TrimPrefix(opening, `"""`))
	ps.next()

	var b strings.Builder
	for {
		if !ps.more() {
			return nil, &ParseError{Identity: ps.identity, Line: startLine, Msg: "unterminated doc-string"}
		}
		raw := ps.lines[ps.idx]
		if strings.TrimSpace(raw) == `"""` {
			ps.next()
			break
		}
		b.WriteString(strings.TrimPrefix(raw, indent))
		b.WriteByte('\n')
		ps.next()
	}
	return &DocString{ContentType: contentType, Content: strings.TrimRight(b.String(), "\n"), Line: startLine}, nil
}

func (ps *parseState) parseTable() *Table {
	var t Table
	first := true
	for ps.more() {
		line := ps.peekTrim()
		if !strings.HasPrefix(line, "|") {
			break
		}
		cells := splitTableRow(line)
		if first {
			t.Headers = cells
			first = false
		} else {
			t.Rows = append(t.Rows, cells)
		}
		ps.next()
	}
	return &t
}

func splitTableRow(line string) []string {
	trimmed := strings.Trim(line, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// parseExamplesBlocks parses one or more "Examples:" tables trailing a
// Scenario Outline.
func (ps *parseState) parseExamplesBlocks() ([]ExamplesTable, error) {
	var blocks []ExamplesTable
	var pendingTags []Tag
	for ps.more() {
		line := ps.peekTrim()
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			ps.next()
		case strings.HasPrefix(line, "@"):
			tags, err := ps.collectTags()
			if err != nil {
				return nil, err
			}
			pendingTags = tags
		case strings.HasPrefix(line, "Examples:") || strings.HasPrefix(line, "Scenarios:"):
			name := afterColon(line)
			ps.next()
			for ps.more() && ps.peekTrim() == "" {
				ps.next()
			}
			table := ps.parseTable()
			blocks = append(blocks, ExamplesTable{Name: name, Tags: pendingTags, Table: *table})
			pendingTags = nil
		default:
			return blocks, nil
		}
	}
	return blocks, nil
}
