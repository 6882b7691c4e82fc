package pipeline

import (
	"context"

	"github.com/anish877/phrase-score-insight-sub002/internal/extraction"
	"github.com/anish877/phrase-score-insight-sub002/internal/llm"
)

// Defaults for how much material each stage produces.
const (
	DefaultKeywordLimit      = 8
	DefaultPhrasesPerKeyword = 5
)

// WebExtractor extracts brand context by fetching and parsing the
// domain's landing page.
type WebExtractor struct{}

func (WebExtractor) ExtractContext(ctx context.Context, domainURL string) (string, error) {
	bc, err := extraction.Extract(ctx, domainURL)
	if err != nil {
		return "", err
	}
	return bc.Text, nil
}

// GeminiStages implements the generative stages on top of an LLM
// client.
type GeminiStages struct {
	Client            llm.Client
	KeywordLimit      int
	PhrasesPerKeyword int
}

// NewGeminiStages wraps client with the default stage sizes.
func NewGeminiStages(client llm.Client) *GeminiStages {
	return &GeminiStages{
		Client:            client,
		KeywordLimit:      DefaultKeywordLimit,
		PhrasesPerKeyword: DefaultPhrasesPerKeyword,
	}
}

func (g *GeminiStages) RecommendKeywords(ctx context.Context, domainURL, brandContext string) ([]string, error) {
	keywords, err := llm.DiscoverKeywords(ctx, g.Client, domainURL, brandContext, g.KeywordLimit)
	if err != nil {
		return nil, err
	}
	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		terms = append(terms, kw.Keyword)
	}
	return terms, nil
}

func (g *GeminiStages) GeneratePhrases(ctx context.Context, keyword, brandContext string) ([]string, error) {
	return llm.GeneratePhrases(ctx, g.Client, keyword, brandContext, g.PhrasesPerKeyword)
}

func (g *GeminiStages) Query(ctx context.Context, phrase string) (string, error) {
	return llm.QueryPhrase(ctx, g.Client, phrase)
}
