package combine

import "strings"

// isNoAnswer reports whether a per-fragment answer declined to answer.
// Matches both the bare sentinel and the longer phrasing generators tend
// to produce.
func isNoAnswer(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "no answer" || t == "none" || strings.Contains(t, "does not answer the question")
}

// assembleSources appends the SOURCES suffix and fills RunResult.Sources
// from the metadata of fragments judged relevant. relevant is indexed by
// fragment position; nil means every fragment contributed.
func assembleSources(result *RunResult, fragments []Fragment, relevant []bool, cfg *runConfig) {
	if !cfg.includeSources {
		return
	}

	seen := make(map[string]bool)
	var sources []string
	for i, f := range fragments {
		if relevant != nil && !relevant[i] {
			continue
		}
		src := f.Source()
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}

	result.Sources = sources
	if len(sources) > 0 {
		result.FinalAnswer.Text += "\nSOURCES: " + strings.Join(sources, ", ")
	}
}
