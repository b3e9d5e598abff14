package combine

// PromptRole identifies which prompt of a strategy a template replaces.
type PromptRole string

const (
	// PromptStuff is the single prompt of the stuff strategy.
	PromptStuff PromptRole = "stuff"
	// PromptMapQuestion is the per-fragment prompt of map_reduce's map phase.
	PromptMapQuestion PromptRole = "map_question"
	// PromptMapCombine is the reduce prompt of map_reduce.
	PromptMapCombine PromptRole = "map_combine"
	// PromptRefineInitial seeds refine with the first fragment.
	PromptRefineInitial PromptRole = "refine_initial"
	// PromptRefine folds each subsequent fragment into the running answer.
	PromptRefine PromptRole = "refine"
	// PromptRerank is the per-fragment answer-and-score prompt of map_rerank.
	PromptRerank PromptRole = "rerank"
)

const (
	stuffPromptTmpl = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`

	mapQuestionPromptTmpl = `Use the following portion of a long document to see if any of the text is relevant to answer the question.
{{.context}}
Question: {{.question}}
Relevant text, if any:`

	mapCombinePromptTmpl = `Given the following extracted parts of a long document and a question, create a final answer. If you don't know the answer, just say that you don't know, don't try to make up an answer.

QUESTION: {{.question}}
=========
{{.summaries}}
=========
FINAL ANSWER:`

	refineInitialPromptTmpl = `Context information is below.
---------------------
{{.context}}
---------------------
Given the context information and not prior knowledge, answer the question: {{.question}}
`

	refinePromptTmpl = `The original question is as follows: {{.question}}
We have provided an existing answer: {{.existing_answer}}
We have the opportunity to refine the existing answer (only if needed) with some more context below.
------------
{{.context}}
------------
Given the new context, refine the original answer to better answer the question. If the context isn't useful, return the original answer.`

	rerankPromptTmpl = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

In addition to giving an answer, also return a score of how fully it answered the user's question. This should be in the following format:

Question: [question here]
Helpful Answer: [answer here]
Score: [score between 0 and 100]

Begin!

Context:
---------
{{.context}}
---------
Question: {{.question}}
Helpful Answer:`
)

// defaultRerankParser splits a rerank output into its answer text and the
// trailing integer score line.
var defaultRerankParser = MustRegexParser(`(?s)(.*?)\nScore:\s*(\d+)`, "answer", "score")

func defaultTemplates() map[PromptRole]*PromptTemplate {
	return map[PromptRole]*PromptTemplate{
		PromptStuff:         MustPromptTemplate(stuffPromptTmpl, []string{"context", "question"}),
		PromptMapQuestion:   MustPromptTemplate(mapQuestionPromptTmpl, []string{"context", "question"}),
		PromptMapCombine:    MustPromptTemplate(mapCombinePromptTmpl, []string{"summaries", "question"}),
		PromptRefineInitial: MustPromptTemplate(refineInitialPromptTmpl, []string{"context", "question"}),
		PromptRefine:        MustPromptTemplate(refinePromptTmpl, []string{"question", "existing_answer", "context"}),
		PromptRerank: MustPromptTemplate(rerankPromptTmpl, []string{"context", "question"},
			WithOutputParser(defaultRerankParser)),
	}
}
