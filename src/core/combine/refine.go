package combine

import (
	"context"
	"strings"

	"docqa/src/log"
)

// runRefine seeds an answer from the first fragment and folds each
// subsequent fragment into it, one generator round trip per fragment.
// Every step depends on the previous step's output, so this strategy is
// strictly sequential; its latency grows linearly with fragment count.
func (e *Engine) runRefine(ctx context.Context, fragments []Fragment, question string, cfg *runConfig) (*RunResult, error) {
	initialPrompt, err := cfg.template(PromptRefineInitial).Render(map[string]string{
		"context":  fragments[0].Text,
		"question": question,
	})
	if err != nil {
		return nil, err
	}

	current, err := e.generate(ctx, initialPrompt)
	if err != nil {
		return nil, err
	}
	current = strings.TrimSpace(current)
	log.Debug("refine initial answer", "answer", current)

	steps := make([]Answer, 0, len(fragments))
	steps = append(steps, Answer{Text: current})

	refineTmpl := cfg.template(PromptRefine)
	for i, f := range fragments[1:] {
		prompt, err := refineTmpl.Render(map[string]string{
			"question":        question,
			"existing_answer": current,
			"context":         f.Text,
		})
		if err != nil {
			return nil, err
		}

		out, err := e.generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		current = strings.TrimSpace(out)
		steps = append(steps, Answer{Text: current})
		log.Debug("refine step", "step", i+1, "answer", current)
	}

	result := &RunResult{FinalAnswer: Answer{Text: current}}
	if cfg.intermediateSteps {
		result.IntermediateSteps = steps
	}
	// Every fragment contributed to the chain, so all are cited.
	assembleSources(result, fragments, nil, cfg)
	return result, nil
}
