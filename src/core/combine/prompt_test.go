package combine_test

import (
	"errors"
	"testing"

	"docqa/src/core/combine"
)

func TestPromptTemplateRender(t *testing.T) {
	tmpl, err := combine.NewPromptTemplate(
		"Context: {{.context}}\nQuestion: {{.question}}",
		[]string{"context", "question"},
	)
	if err != nil {
		t.Fatalf("NewPromptTemplate() error = %v", err)
	}

	tests := []struct {
		name    string
		vars    map[string]string
		want    string
		wantErr error
	}{
		{
			name: "all variables present",
			vars: map[string]string{"context": "some text", "question": "why?"},
			want: "Context: some text\nQuestion: why?",
		},
		{
			name: "extra variables ignored",
			vars: map[string]string{"context": "a", "question": "b", "unused": "c"},
			want: "Context: a\nQuestion: b",
		},
		{
			name:    "missing required variable",
			vars:    map[string]string{"context": "only context"},
			wantErr: combine.ErrMissingVariable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tmpl.Render(tt.vars)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Render() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPromptTemplateRejectsUndeclaredVariable(t *testing.T) {
	_, err := combine.NewPromptTemplate(
		"Question: {{.question}} Score: {{.score}}",
		[]string{"question"},
	)
	if err == nil {
		t.Fatal("expected construction to fail for undeclared variable reference")
	}
}

func TestRegexParser(t *testing.T) {
	parser := combine.MustRegexParser(`(?s)(.*?)\nScore:\s*(\d+)`, "answer", "score")

	tests := []struct {
		name       string
		raw        string
		wantAnswer string
		wantScore  string
		wantErr    bool
	}{
		{
			name:       "answer with score",
			raw:        "Justice Breyer was thanked for his service.\nScore: 100",
			wantAnswer: "Justice Breyer was thanked for his service.",
			wantScore:  "100",
		},
		{
			name:       "multiline answer",
			raw:        "Line one.\nLine two.\nScore: 85",
			wantAnswer: "Line one.\nLine two.",
			wantScore:  "85",
		},
		{
			name:    "no score line",
			raw:     "This document does not answer the question",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := parser.Parse(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, combine.ErrParse) {
					t.Fatalf("Parse() error = %v, want ErrParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if fields["answer"] != tt.wantAnswer {
				t.Errorf("answer = %q, want %q", fields["answer"], tt.wantAnswer)
			}
			if fields["score"] != tt.wantScore {
				t.Errorf("score = %q, want %q", fields["score"], tt.wantScore)
			}
		})
	}
}

// Rendering a template whose parser mirrors its shape must round-trip the
// substituted values verbatim.
func TestRenderParseRoundTrip(t *testing.T) {
	parser := combine.MustRegexParser(`(?s)(.*)\nScore:\s*(\d+)`, "answer", "score")
	tmpl, err := combine.NewPromptTemplate(
		"{{.answer}}\nScore: {{.score}}",
		[]string{"answer", "score"},
		combine.WithOutputParser(parser),
	)
	if err != nil {
		t.Fatalf("NewPromptTemplate() error = %v", err)
	}

	vars := map[string]string{"answer": "The sky is blue.", "score": "90"}
	rendered, err := tmpl.Render(vars)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	fields, err := tmpl.Parser().Parse(rendered)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	for key, want := range vars {
		if fields[key] != want {
			t.Errorf("field %q = %q, want %q", key, fields[key], want)
		}
	}
}
