package ollama

import (
	"context"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/textsplitter"
)

const DefaultMaxInputTokens = 4096

// Provider adapts the Ollama client to the engine's Generator contract and
// to the ingest pipeline's text splitting.
type Provider struct {
	client         *Client
	generateModel  string
	embedModel     string
	maxInputTokens int
}

type ProviderOption func(*Provider)

// WithMaxInputTokens declares the generate model's input budget.
func WithMaxInputTokens(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.maxInputTokens = n
		}
	}
}

func NewProvider(client *Client, generateModel, embedModel string, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:         client,
		generateModel:  generateModel,
		embedModel:     embedModel,
		maxInputTokens: DefaultMaxInputTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate runs one completion round trip.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.client.Generate(ctx, p.generateModel, "", prompt, map[string]interface{}{
		"temperature": 0.0,
	})
}

// CountTokens estimates token length. Ollama has no tokenize endpoint, so
// this is the same heuristic count used when splitting for ingest.
func (p *Provider) CountTokens(_ context.Context, text string) (int, error) {
	return EstimateTokens(text), nil
}

// MaxInputTokens returns the configured input budget.
func (p *Provider) MaxInputTokens() int {
	return p.maxInputTokens
}

// GetEmbedding embeds text with the configured embedding model.
func (p *Provider) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	return p.client.GetEmbedding(ctx, p.embedModel, text)
}

// TextSplit splits text into chunks of at most chunkSize estimated tokens
// with the given overlap.
func (p *Provider) TextSplit(_ context.Context, text string, chunkSize, chunkOverlap int) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithLenFunc(EstimateTokens),
	)
	return splitter.SplitText(text)
}

// EstimateTokens is a rough token count: one token per short word, long
// words broken at roughly four characters, digits counted individually.
// Good enough for budget checks; not a real tokenizer.
func EstimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	count := 0
	for _, word := range strings.Fields(text) {
		count += estimateWordTokens(word)
	}
	return count
}

func estimateWordTokens(word string) int {
	if len(word) == 1 && unicode.IsPunct(rune(word[0])) {
		return 1
	}
	if isNumber(word) {
		return len(word)
	}
	if len(word) <= 4 {
		return 1
	}
	return (len(word) + 3) / 4
}

func isNumber(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return false
		}
	}
	return true
}
