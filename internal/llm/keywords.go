package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Keyword is one recommended search keyword for a brand.
type Keyword struct {
	Keyword    string `json:"keyword"`
	Volume     int    `json:"volume,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Intent     string `json:"intent,omitempty"`
}

type keywordsResponse struct {
	Keywords []Keyword `json:"keywords"`
}

// DiscoverKeywords asks the model for search keywords relevant to the
// extracted brand context. The response is schema-validated before use.
func DiscoverKeywords(ctx context.Context, client Client, domainURL, brandContext string, limit int) ([]Keyword, error) {
	if limit <= 0 {
		limit = 10
	}

	prompt := buildKeywordPrompt(domainURL, brandContext, limit)
	raw, err := client.GenerateJSON(ctx, prompt, TierStandard)
	if err != nil {
		return nil, fmt.Errorf("failed to discover keywords: %w", err)
	}

	if err := validateAgainst(keywordsSchema, raw); err != nil {
		return nil, err
	}

	var resp keywordsResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse keywords response: %w", err)
	}
	if len(resp.Keywords) > limit {
		resp.Keywords = resp.Keywords[:limit]
	}
	return resp.Keywords, nil
}

func buildKeywordPrompt(domainURL, brandContext string, limit int) string {
	var sb strings.Builder
	sb.WriteString("You are an SEO analyst. Given a brand's website and description, ")
	sb.WriteString(fmt.Sprintf("recommend the %d search keywords most likely to surface this brand ", limit))
	sb.WriteString("in generative search results.\n\n")
	sb.WriteString(fmt.Sprintf("Website: %s\n", domainURL))
	sb.WriteString(fmt.Sprintf("Brand context:\n%s\n\n", brandContext))
	sb.WriteString(`Return ONLY valid JSON matching this exact structure:
{
  "keywords": [
    {"keyword": string, "volume": integer, "difficulty": string, "intent": string}
  ]
}

IMPORTANT:
- Keywords must reflect what real buyers search for, not the brand name alone.
- Return ONLY the JSON object, no markdown, no explanation, no code blocks.`)
	return sb.String()
}
