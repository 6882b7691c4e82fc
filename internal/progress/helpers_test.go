package progress_test

import (
	"encoding/json"

	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

// fullResultsBundle holds every stage output, suitable for a record at
// the terminal step.
func fullResultsBundle() *progress.StageBundle {
	return &progress.StageBundle{
		DomainURL:        "ex.com",
		DomainID:         3,
		BrandContext:     "an eyewear brand",
		SelectedKeywords: []string{"eyewear"},
		GeneratedPhrases: []progress.KeywordPhrases{{Keyword: "eyewear", Phrases: []string{"best eyewear"}}},
		QueryResults:     json.RawMessage(`[{"model":"gemini","mentioned":true}]`),
		QueryStats:       json.RawMessage(`{"visibility":0.5}`),
	}
}
