package combine

import (
	"context"
	"strings"

	"docqa/src/log"
)

// runMapReduce asks the question of every fragment independently, then
// reduces the per-fragment answers with one final combine call. Map calls
// run concurrently up to the configured batch size; outputs keep fragment
// order no matter how the calls complete.
func (e *Engine) runMapReduce(ctx context.Context, fragments []Fragment, question string, cfg *runConfig) (*RunResult, error) {
	questionTmpl := cfg.template(PromptMapQuestion)

	prompts := make([]string, len(fragments))
	for i, f := range fragments {
		p, err := questionTmpl.Render(map[string]string{
			"context":  f.Text,
			"question": question,
		})
		if err != nil {
			return nil, err
		}
		prompts[i] = p
	}

	outputs, err := e.generateAll(ctx, prompts, cfg.batchSize)
	if err != nil {
		return nil, err
	}
	log.Debug("map phase complete", "strategy", StrategyMapReduce, "fragments", len(fragments))

	steps := make([]Answer, len(outputs))
	summaries := make([]string, len(outputs))
	relevant := make([]bool, len(outputs))
	for i, out := range outputs {
		text := strings.TrimSpace(out)
		steps[i] = Answer{Text: text}
		summaries[i] = text
		relevant[i] = !isNoAnswer(text)
	}

	combinePrompt, err := cfg.template(PromptMapCombine).Render(map[string]string{
		"summaries": strings.Join(summaries, "\n\n"),
		"question":  question,
	})
	if err != nil {
		return nil, err
	}

	final, err := e.generate(ctx, combinePrompt)
	if err != nil {
		return nil, err
	}

	result := &RunResult{FinalAnswer: Answer{Text: strings.TrimSpace(final)}}
	if cfg.intermediateSteps {
		result.IntermediateSteps = steps
	}
	assembleSources(result, fragments, relevant, cfg)
	return result, nil
}
