package combine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"docqa/src/log"
)

// runMapRerank asks every fragment for an answer plus a confidence score,
// then keeps the highest-scoring answer. Ties resolve to the earliest
// fragment. If nothing parses, the run still answers: the first fragment's
// raw output is returned marked as unscored.
func (e *Engine) runMapRerank(ctx context.Context, fragments []Fragment, question string, cfg *runConfig) (*RunResult, error) {
	rerankTmpl := cfg.template(PromptRerank)
	parser := rerankTmpl.Parser()
	if parser == nil {
		parser = defaultRerankParser
	}

	prompts := make([]string, len(fragments))
	for i, f := range fragments {
		p, err := rerankTmpl.Render(map[string]string{
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

	steps := make([]Answer, len(outputs))
	relevant := make([]bool, len(outputs))
	bestIdx := -1
	bestScore := -1
	for i, raw := range outputs {
		answer, score, perr := parseScored(parser, raw)
		if perr != nil {
			// Recoverable: keep the raw text as an unscored answer attempt.
			log.Debug("rerank output did not parse", "fragment", i, "error", perr.Error())
			steps[i] = Answer{Text: strings.TrimSpace(raw)}
			relevant[i] = !isNoAnswer(steps[i].Text)
			continue
		}

		steps[i] = answer
		relevant[i] = !isNoAnswer(answer.Text)
		// Strict greater-than keeps the earliest fragment on ties.
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	result := &RunResult{}
	if bestIdx >= 0 {
		result.FinalAnswer = steps[bestIdx]
	} else {
		log.Error(ErrNoValidScore, "falling back to first fragment's raw output")
		result.FinalAnswer = Answer{
			Text:   steps[0].Text,
			Fields: map[string]string{"unscored": "true"},
		}
	}

	if cfg.intermediateSteps {
		result.IntermediateSteps = steps
	}
	assembleSources(result, fragments, relevant, cfg)
	return result, nil
}

// parseScored extracts the answer text and integer score from one rerank
// output. A score that is not an integer counts as a parse failure.
func parseScored(parser OutputParser, raw string) (Answer, int, error) {
	fields, err := parser.Parse(raw)
	if err != nil {
		return Answer{}, 0, err
	}

	score, err := strconv.Atoi(strings.TrimSpace(fields["score"]))
	if err != nil {
		return Answer{}, 0, fmt.Errorf("%w: invalid score %q", ErrParse, fields["score"])
	}

	return Answer{Text: strings.TrimSpace(fields["answer"]), Fields: fields}, score, nil
}
