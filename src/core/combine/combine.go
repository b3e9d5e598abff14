package combine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultBatchSize bounds how many map-phase generator calls are in flight
// at once unless a run overrides it.
const DefaultBatchSize = 5

// Fragment is a retrieved text passage with associated metadata. Fragments
// are read-only inputs to a run; the "source" metadata key, when present,
// identifies the fragment for citation.
type Fragment struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Source returns the fragment's source identifier, or "" if it has none.
func (f Fragment) Source() string {
	return f.Metadata["source"]
}

// Answer is a single generator output, with structured fields when an
// output parser produced them (e.g. "answer" and "score" for map_rerank).
type Answer struct {
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

// RunResult is the outcome of one answering run. IntermediateSteps and
// Sources are nil unless the corresponding run option was set.
type RunResult struct {
	FinalAnswer       Answer   `json:"finalAnswer"`
	IntermediateSteps []Answer `json:"intermediateSteps,omitempty"`
	Sources           []string `json:"sources,omitempty"`
}

// Strategy selects one of the four document-combination algorithms.
type Strategy string

const (
	StrategyStuff     Strategy = "stuff"
	StrategyMapReduce Strategy = "map_reduce"
	StrategyRefine    Strategy = "refine"
	StrategyMapRerank Strategy = "map_rerank"
)

// ParseStrategy maps a strategy tag to its Strategy value.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyStuff, StrategyMapReduce, StrategyRefine, StrategyMapRerank:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown combination strategy %q", s)
	}
}

// Generator is the external text-completion collaborator. Implementations
// must be safe for concurrent Generate calls.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// CountTokens estimates the token length of text under the generator's
	// tokenizer.
	CountTokens(ctx context.Context, text string) (int, error)
	// MaxInputTokens is the generator's input budget. Zero means unknown,
	// which disables the stuff strategy's overflow check.
	MaxInputTokens() int
}

// BatchGenerator is optionally implemented by generators that accept
// batched prompts. Outputs must preserve input order.
type BatchGenerator interface {
	GenerateBatch(ctx context.Context, prompts []string) ([]string, error)
}

// Engine runs combination strategies against a generator. It is stateless
// between runs and safe for concurrent use.
type Engine struct {
	generator Generator
	templates map[PromptRole]*PromptTemplate
	batchSize int
}

func NewEngine(generator Generator) *Engine {
	return &Engine{
		generator: generator,
		templates: defaultTemplates(),
		batchSize: DefaultBatchSize,
	}
}

type runConfig struct {
	intermediateSteps bool
	includeSources    bool
	batchSize         int
	templates         map[PromptRole]*PromptTemplate
}

// RunOption configures a single RunQuery call.
type RunOption func(*runConfig)

// WithIntermediateSteps includes the per-fragment answers in the result.
func WithIntermediateSteps() RunOption {
	return func(c *runConfig) { c.intermediateSteps = true }
}

// WithSources appends a SOURCES suffix to the final answer and populates
// RunResult.Sources from fragment metadata.
func WithSources() RunOption {
	return func(c *runConfig) { c.includeSources = true }
}

// WithBatchSize bounds concurrent map-phase generator calls. It never
// changes the logical result, only the load on the generator.
func WithBatchSize(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithTemplate replaces the built-in template for one prompt role.
func WithTemplate(role PromptRole, t *PromptTemplate) RunOption {
	return func(c *runConfig) { c.templates[role] = t }
}

func (e *Engine) newRunConfig(opts []RunOption) *runConfig {
	cfg := &runConfig{
		batchSize: e.batchSize,
		templates: make(map[PromptRole]*PromptTemplate, len(e.templates)),
	}
	for role, t := range e.templates {
		cfg.templates[role] = t
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *runConfig) template(role PromptRole) *PromptTemplate {
	return c.templates[role]
}

// RunQuery answers question from the supplied fragments using the given
// strategy. Fragments must be non-empty; their order is preserved in
// intermediate steps regardless of how map-phase calls complete.
func (e *Engine) RunQuery(ctx context.Context, strategy Strategy, fragments []Fragment, question string, opts ...RunOption) (*RunResult, error) {
	if len(fragments) == 0 {
		return nil, errors.New("no fragments supplied")
	}

	cfg := e.newRunConfig(opts)

	switch strategy {
	case StrategyStuff:
		return e.runStuff(ctx, fragments, question, cfg)
	case StrategyMapReduce:
		return e.runMapReduce(ctx, fragments, question, cfg)
	case StrategyRefine:
		return e.runRefine(ctx, fragments, question, cfg)
	case StrategyMapRerank:
		return e.runMapRerank(ctx, fragments, question, cfg)
	default:
		return nil, fmt.Errorf("unknown combination strategy %q", strategy)
	}
}

// generate issues one generator call and folds failures into the engine's
// error taxonomy.
func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	out, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return "", wrapGeneratorErr(err)
	}
	return out, nil
}

func wrapGeneratorErr(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrGeneratorTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
}

// generateAll runs one generator call per prompt with at most batchSize in
// flight and returns outputs in prompt order. If any call fails the whole
// batch fails; a partial map phase must never look complete.
func (e *Engine) generateAll(ctx context.Context, prompts []string, batchSize int) ([]string, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if bg, ok := e.generator.(BatchGenerator); ok {
		return e.generateBatched(ctx, bg, prompts, batchSize)
	}

	outputs := make([]string, len(prompts))
	errs := make([]error, len(prompts))
	sem := make(chan struct{}, batchSize)

	var wg sync.WaitGroup
	for i, prompt := range prompts {
		wg.Add(1)
		go func(i int, prompt string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			out, err := e.generate(ctx, prompt)
			if err != nil {
				errs[i] = err
				return
			}
			outputs[i] = out
		}(i, prompt)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

func (e *Engine) generateBatched(ctx context.Context, bg BatchGenerator, prompts []string, batchSize int) ([]string, error) {
	outputs := make([]string, len(prompts))
	for start := 0; start < len(prompts); start += batchSize {
		end := min(start+batchSize, len(prompts))
		batch, err := bg.GenerateBatch(ctx, prompts[start:end])
		if err != nil {
			return nil, wrapGeneratorErr(err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: batch returned %d outputs for %d prompts",
				ErrGeneratorUnavailable, len(batch), end-start)
		}
		copy(outputs[start:end], batch)
	}
	return outputs, nil
}
