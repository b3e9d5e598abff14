package combine

import "errors"

var (
	// ErrMissingVariable is returned when a prompt template is rendered
	// without one of its required variables. Caller error, never retried.
	ErrMissingVariable = errors.New("missing template variable")

	// ErrContextOverflow is returned by the stuff strategy when the
	// concatenated fragments plus the question exceed the generator's
	// input budget. The caller should switch strategy or reduce fragments.
	ErrContextOverflow = errors.New("context exceeds generator input budget")

	// ErrParse is returned when a generator output does not match the
	// pattern expected by the configured output parser.
	ErrParse = errors.New("failed to parse generator output")

	// ErrNoValidScore is reported by map_rerank when no fragment's output
	// parsed into an answer/score pair. The run still produces a fallback
	// answer marked as unscored.
	ErrNoValidScore = errors.New("no fragment produced a valid score")

	// ErrGeneratorTimeout wraps a generator call that exceeded its deadline.
	ErrGeneratorTimeout = errors.New("generator call timed out")

	// ErrGeneratorUnavailable wraps any other generator failure. The engine
	// does not retry; retry policy belongs to the calling layer.
	ErrGeneratorUnavailable = errors.New("generator unavailable")
)
