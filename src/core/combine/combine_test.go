package combine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"docqa/src/core/combine"
)

// fakeGenerator scripts generator behavior per prompt. Replies are selected
// by inspecting the prompt text, the way the built-in templates mark each
// strategy phase.
type fakeGenerator struct {
	mu        sync.Mutex
	calls     []string
	reply     func(prompt string) (string, error)
	delay     func(prompt string) time.Duration
	maxTokens int
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if g.delay != nil {
		time.Sleep(g.delay(prompt))
	}
	g.mu.Lock()
	g.calls = append(g.calls, prompt)
	g.mu.Unlock()
	return g.reply(prompt)
}

func (g *fakeGenerator) CountTokens(_ context.Context, text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func (g *fakeGenerator) MaxInputTokens() int {
	return g.maxTokens
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func fragmentsOf(texts ...string) []combine.Fragment {
	frags := make([]combine.Fragment, len(texts))
	for i, text := range texts {
		frags[i] = combine.Fragment{
			Text:     text,
			Metadata: map[string]string{"source": fmt.Sprintf("%d", i+1)},
		}
	}
	return frags
}

func TestStuffSingleCall(t *testing.T) {
	gen := &fakeGenerator{
		reply: func(prompt string) (string, error) {
			if !strings.Contains(prompt, "alpha") || !strings.Contains(prompt, "beta") {
				return "", fmt.Errorf("prompt missing fragment text: %q", prompt)
			}
			return " The final answer. ", nil
		},
	}
	engine := combine.NewEngine(gen)

	result, err := engine.RunQuery(context.Background(), combine.StrategyStuff,
		fragmentsOf("alpha", "beta"), "what?")
	if err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}
	if got := gen.callCount(); got != 1 {
		t.Errorf("generator calls = %d, want 1", got)
	}
	if result.FinalAnswer.Text != "The final answer." {
		t.Errorf("final answer = %q", result.FinalAnswer.Text)
	}
	if result.IntermediateSteps != nil {
		t.Errorf("unexpected intermediate steps: %v", result.IntermediateSteps)
	}
}

func TestStuffContextOverflow(t *testing.T) {
	gen := &fakeGenerator{
		maxTokens: 10,
		reply: func(string) (string, error) {
			return "should not be called", nil
		},
	}
	engine := combine.NewEngine(gen)

	longText := strings.Repeat("word ", 50)
	_, err := engine.RunQuery(context.Background(), combine.StrategyStuff,
		fragmentsOf(longText), "what?")
	if !errors.Is(err, combine.ErrContextOverflow) {
		t.Fatalf("RunQuery() error = %v, want ErrContextOverflow", err)
	}
	if got := gen.callCount(); got != 0 {
		t.Errorf("generator calls = %d, want 0", got)
	}
}

func TestStuffWithinBudgetSucceeds(t *testing.T) {
	gen := &fakeGenerator{
		maxTokens: 1000,
		reply:     func(string) (string, error) { return "ok", nil },
	}
	engine := combine.NewEngine(gen)

	result, err := engine.RunQuery(context.Background(), combine.StrategyStuff,
		fragmentsOf("short"), "what?")
	if err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}
	if result.FinalAnswer.Text != "ok" {
		t.Errorf("final answer = %q", result.FinalAnswer.Text)
	}
	if got := gen.callCount(); got != 1 {
		t.Errorf("generator calls = %d, want 1", got)
	}
}

// mapReply answers map-phase prompts from the embedded fragment text and
// reduce prompts with a fixed final answer.
func mapReply(answers map[string]string, final string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		if strings.Contains(prompt, "FINAL ANSWER:") {
			return final, nil
		}
		for fragment, answer := range answers {
			if strings.Contains(prompt, fragment) {
				return answer, nil
			}
		}
		return "", fmt.Errorf("unexpected prompt: %q", prompt)
	}
}

func TestMapReduceStepOrderIndependentOfCompletion(t *testing.T) {
	answers := map[string]string{
		"alpha": "answer-alpha",
		"beta":  "answer-beta",
		"gamma": "answer-gamma",
	}
	// Later fragments complete first.
	delays := map[string]time.Duration{
		"alpha": 60 * time.Millisecond,
		"beta":  30 * time.Millisecond,
		"gamma": 0,
	}
	gen := &fakeGenerator{
		reply: mapReply(answers, "combined"),
		delay: func(prompt string) time.Duration {
			for fragment, d := range delays {
				if strings.Contains(prompt, fragment) {
					return d
				}
			}
			return 0
		},
	}
	engine := combine.NewEngine(gen)

	result, err := engine.RunQuery(context.Background(), combine.StrategyMapReduce,
		fragmentsOf("alpha", "beta", "gamma"), "what?",
		combine.WithIntermediateSteps(), combine.WithBatchSize(3))
	if err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}

	want := []string{"answer-alpha", "answer-beta", "answer-gamma"}
	if len(result.IntermediateSteps) != len(want) {
		t.Fatalf("intermediate steps = %d, want %d", len(result.IntermediateSteps), len(want))
	}
	for i, step := range result.IntermediateSteps {
		if step.Text != want[i] {
			t.Errorf("step[%d] = %q, want %q", i, step.Text, want[i])
		}
	}
	if result.FinalAnswer.Text != "combined" {
		t.Errorf("final answer = %q", result.FinalAnswer.Text)
	}
}

func TestMapReduceSourcesSkipNoAnswer(t *testing.T) {
	answers := map[string]string{
		"A": "Breyer was honored.",
		"B": "no answer",
	}
	gen := &fakeGenerator{reply: mapReply(answers, "final")}
	engine := combine.NewEngine(gen)

	result, err := engine.RunQuery(context.Background(), combine.StrategyMapReduce,
		fragmentsOf("A", "B"), "what?", combine.WithSources())
	if err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}

	if len(result.Sources) != 1 || result.Sources[0] != "1" {
		t.Errorf("sources = %v, want [1]", result.Sources)
	}
	if !strings.HasSuffix(result.FinalAnswer.Text, "SOURCES: 1") {
		t.Errorf("final answer missing sources suffix: %q", result.FinalAnswer.Text)
	}
}

func TestMapPhaseFailureFailsRun(t *testing.T) {
	gen := &fakeGenerator{
		reply: func(prompt string) (string, error) {
			if strings.Contains(prompt, "beta") {
				return "", errors.New("boom")
			}
			return "fine", nil
		},
	}
	engine := combine.NewEngine(gen)

	_, err := engine.RunQuery(context.Background(), combine.StrategyMapReduce,
		fragmentsOf("alpha", "beta", "gamma"), "what?")
	if !errors.Is(err, combine.ErrGeneratorUnavailable) {
		t.Fatalf("RunQuery() error = %v, want ErrGeneratorUnavailable", err)
	}
}

func TestGeneratorTimeoutMapped(t *testing.T) {
	gen := &fakeGenerator{
		reply: func(string) (string, error) {
			return "", fmt.Errorf("call failed: %w", context.DeadlineExceeded)
		},
	}
	engine := combine.NewEngine(gen)

	_, err := engine.RunQuery(context.Background(), combine.StrategyStuff,
		fragmentsOf("alpha"), "what?")
	if !errors.Is(err, combine.ErrGeneratorTimeout) {
		t.Fatalf("RunQuery() error = %v, want ErrGeneratorTimeout", err)
	}
}

func TestRefineDeterministicAndSequential(t *testing.T) {
	reply := func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Context information is below"):
			return "draft-1", nil
		case strings.Contains(prompt, "draft-1"):
			return "draft-2", nil
		case strings.Contains(prompt, "draft-2"):
			return "draft-3", nil
		default:
			return "", fmt.Errorf("refine prompt missing prior answer: %q", prompt)
		}
	}

	run := func() *combine.RunResult {
		t.Helper()
		engine := combine.NewEngine(&fakeGenerator{reply: reply})
		result, err := engine.RunQuery(context.Background(), combine.StrategyRefine,
			fragmentsOf("one", "two", "three"), "what?", combine.WithIntermediateSteps())
		if err != nil {
			t.Fatalf("RunQuery() error = %v", err)
		}
		return result
	}

	first := run()
	second := run()

	if first.FinalAnswer.Text != "draft-3" {
		t.Errorf("final answer = %q, want draft-3", first.FinalAnswer.Text)
	}
	if first.FinalAnswer.Text != second.FinalAnswer.Text {
		t.Errorf("refine is not deterministic: %q vs %q", first.FinalAnswer.Text, second.FinalAnswer.Text)
	}
	if len(first.IntermediateSteps) != 3 {
		t.Fatalf("intermediate steps = %d, want 3", len(first.IntermediateSteps))
	}
	wantSteps := []string{"draft-1", "draft-2", "draft-3"}
	for i, step := range first.IntermediateSteps {
		if step.Text != wantSteps[i] {
			t.Errorf("step[%d] = %q, want %q", i, step.Text, wantSteps[i])
		}
	}
}

func TestMapRerankSelectsHighestScore(t *testing.T) {
	answers := map[string]string{
		"alpha": "Partial answer.\nScore: 40",
		"beta":  "Full answer.\nScore: 95",
		"gamma": "This document does not answer the question\nScore: 0",
	}
	gen := &fakeGenerator{reply: mapReply(answers, "")}
	engine := combine.NewEngine(gen)

	result, err := engine.RunQuery(context.Background(), combine.StrategyMapRerank,
		fragmentsOf("alpha", "beta", "gamma"), "what?", combine.WithIntermediateSteps())
	if err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}

	if result.FinalAnswer.Text != "Full answer." {
		t.Errorf("final answer = %q, want %q", result.FinalAnswer.Text, "Full answer.")
	}
	if result.FinalAnswer.Fields["score"] != "95" {
		t.Errorf("score field = %q, want 95", result.FinalAnswer.Fields["score"])
	}
	if len(result.IntermediateSteps) != 3 {
		t.Errorf("intermediate steps = %d, want 3", len(result.IntermediateSteps))
	}
}

func TestMapRerankTieBreakEarliestFragment(t *testing.T) {
	answers := map[string]string{
		"alpha": "First answer.\nScore: 100",
		"beta":  "Second answer.\nScore: 100",
	}
	gen := &fakeGenerator{reply: mapReply(answers, "")}
	engine := combine.NewEngine(gen)

	result, err := engine.RunQuery(context.Background(), combine.StrategyMapRerank,
		fragmentsOf("alpha", "beta"), "what?")
	if err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}
	if result.FinalAnswer.Text != "First answer." {
		t.Errorf("final answer = %q, want the earliest fragment's answer", result.FinalAnswer.Text)
	}
}

func TestMapRerankAllUnparsedFallsBack(t *testing.T) {
	answers := map[string]string{
		"alpha": "no score line here",
		"beta":  "also unscored",
	}
	gen := &fakeGenerator{reply: mapReply(answers, "")}
	engine := combine.NewEngine(gen)

	result, err := engine.RunQuery(context.Background(), combine.StrategyMapRerank,
		fragmentsOf("alpha", "beta"), "what?")
	if err != nil {
		t.Fatalf("RunQuery() error = %v, want fallback instead of failure", err)
	}
	if result.FinalAnswer.Text != "no score line here" {
		t.Errorf("final answer = %q, want first fragment's raw output", result.FinalAnswer.Text)
	}
	if result.FinalAnswer.Fields["unscored"] != "true" {
		t.Errorf("fields = %v, want unscored marker", result.FinalAnswer.Fields)
	}
}

func TestRunQueryRejectsEmptyFragments(t *testing.T) {
	engine := combine.NewEngine(&fakeGenerator{reply: func(string) (string, error) { return "", nil }})
	if _, err := engine.RunQuery(context.Background(), combine.StrategyStuff, nil, "what?"); err == nil {
		t.Fatal("expected error for empty fragment set")
	}
}

func TestParseStrategy(t *testing.T) {
	for _, valid := range []string{"stuff", "map_reduce", "refine", "map_rerank"} {
		if _, err := combine.ParseStrategy(valid); err != nil {
			t.Errorf("ParseStrategy(%q) error = %v", valid, err)
		}
	}
	if _, err := combine.ParseStrategy("tree_summarize"); err == nil {
		t.Error("ParseStrategy accepted an unknown tag")
	}
}

// batchFakeGenerator also implements GenerateBatch and records batch sizes.
type batchFakeGenerator struct {
	fakeGenerator
	batchSizes []int
}

func (g *batchFakeGenerator) GenerateBatch(ctx context.Context, prompts []string) ([]string, error) {
	g.mu.Lock()
	g.batchSizes = append(g.batchSizes, len(prompts))
	g.mu.Unlock()

	outputs := make([]string, len(prompts))
	for i, prompt := range prompts {
		out, err := g.reply(prompt)
		if err != nil {
			return nil, err
		}
		outputs[i] = out
	}
	return outputs, nil
}

func TestMapReduceUsesBatchGenerator(t *testing.T) {
	answers := map[string]string{
		"f1": "a1", "f2": "a2", "f3": "a3", "f4": "a4", "f5": "a5",
	}
	gen := &batchFakeGenerator{}
	gen.reply = mapReply(answers, "combined")
	engine := combine.NewEngine(gen)

	result, err := engine.RunQuery(context.Background(), combine.StrategyMapReduce,
		fragmentsOf("f1", "f2", "f3", "f4", "f5"), "what?",
		combine.WithIntermediateSteps(), combine.WithBatchSize(2))
	if err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}

	wantBatches := []int{2, 2, 1}
	if len(gen.batchSizes) != len(wantBatches) {
		t.Fatalf("batches = %v, want sizes %v", gen.batchSizes, wantBatches)
	}
	for i, size := range wantBatches {
		if gen.batchSizes[i] != size {
			t.Errorf("batch[%d] size = %d, want %d", i, gen.batchSizes[i], size)
		}
	}
	for i, want := range []string{"a1", "a2", "a3", "a4", "a5"} {
		if result.IntermediateSteps[i].Text != want {
			t.Errorf("step[%d] = %q, want %q", i, result.IntermediateSteps[i].Text, want)
		}
	}
}
