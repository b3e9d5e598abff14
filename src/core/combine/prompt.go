package combine

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/template"
)

// OutputParser extracts structured fields from raw generator output.
type OutputParser interface {
	Parse(raw string) (map[string]string, error)
}

// PromptTemplate renders a text/template with a declared set of required
// variables. Every name referenced in the template text must appear in the
// required set; this is checked once at construction so a typo fails fast
// instead of at generation time.
type PromptTemplate struct {
	text      string
	tmpl      *template.Template
	variables []string
	parser    OutputParser
}

type TemplateOption func(*PromptTemplate)

// WithOutputParser attaches a parser for the generator output produced by
// prompts rendered from this template.
func WithOutputParser(p OutputParser) TemplateOption {
	return func(t *PromptTemplate) {
		t.parser = p
	}
}

func NewPromptTemplate(text string, variables []string, opts ...TemplateOption) (*PromptTemplate, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	// Probe with exactly the declared variables. A reference to anything
	// else trips missingkey=error here.
	probe := make(map[string]string, len(variables))
	for _, name := range variables {
		probe[name] = ""
	}
	if err := tmpl.Execute(io.Discard, probe); err != nil {
		return nil, fmt.Errorf("template references a variable outside %v: %w", variables, err)
	}

	pt := &PromptTemplate{
		text:      text,
		tmpl:      tmpl,
		variables: variables,
	}
	for _, opt := range opts {
		opt(pt)
	}
	return pt, nil
}

// MustPromptTemplate is NewPromptTemplate for templates known at compile time.
func MustPromptTemplate(text string, variables []string, opts ...TemplateOption) *PromptTemplate {
	pt, err := NewPromptTemplate(text, variables, opts...)
	if err != nil {
		panic(err)
	}
	return pt
}

// Render substitutes vars into the template. Every required variable must be
// present; extra keys are ignored.
func (t *PromptTemplate) Render(vars map[string]string) (string, error) {
	for _, name := range t.variables {
		if _, ok := vars[name]; !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingVariable, name)
		}
	}

	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// Variables returns the required variable names.
func (t *PromptTemplate) Variables() []string {
	return t.variables
}

// Parser returns the attached output parser, or nil.
func (t *PromptTemplate) Parser() OutputParser {
	return t.parser
}

// RegexParser maps capture groups of a regular expression onto named fields,
// first group to first key and so on.
type RegexParser struct {
	re   *regexp.Regexp
	keys []string
}

func NewRegexParser(expr string, keys ...string) (*RegexParser, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile parser regex: %w", err)
	}
	if re.NumSubexp() < len(keys) {
		return nil, fmt.Errorf("parser regex has %d groups for %d keys", re.NumSubexp(), len(keys))
	}
	return &RegexParser{re: re, keys: keys}, nil
}

func MustRegexParser(expr string, keys ...string) *RegexParser {
	p, err := NewRegexParser(expr, keys...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *RegexParser) Parse(raw string) (map[string]string, error) {
	m := p.re.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("%w: output does not match %q", ErrParse, p.re.String())
	}

	fields := make(map[string]string, len(p.keys))
	for i, key := range p.keys {
		fields[key] = strings.TrimSpace(m[i+1])
	}
	return fields, nil
}
