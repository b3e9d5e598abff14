package combine

import (
	"context"
	"fmt"
	"strings"
)

// runStuff concatenates every fragment into a single context block and
// issues one generator call. Overflowing the generator's input budget is a
// hard failure; truncating context silently would misrepresent the answer.
func (e *Engine) runStuff(ctx context.Context, fragments []Fragment, question string, cfg *runConfig) (*RunResult, error) {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}

	prompt, err := cfg.template(PromptStuff).Render(map[string]string{
		"context":  strings.Join(texts, "\n\n"),
		"question": question,
	})
	if err != nil {
		return nil, err
	}

	if budget := e.generator.MaxInputTokens(); budget > 0 {
		n, err := e.generator.CountTokens(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("failed to count prompt tokens: %w", err)
		}
		if n > budget {
			return nil, fmt.Errorf("%w: prompt is %d tokens, budget is %d", ErrContextOverflow, n, budget)
		}
	}

	out, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &RunResult{FinalAnswer: Answer{Text: strings.TrimSpace(out)}}
	assembleSources(result, fragments, nil, cfg)
	return result, nil
}
