package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type phrasesResponse struct {
	Phrases []string `json:"phrases"`
}

// GeneratePhrases asks the model for natural-language query phrases a
// user might put to an AI assistant for one keyword. Order is
// meaningful and preserved.
func GeneratePhrases(ctx context.Context, client Client, keyword, brandContext string, perKeyword int) ([]string, error) {
	if perKeyword <= 0 {
		perKeyword = 5
	}

	prompt := buildPhrasePrompt(keyword, brandContext, perKeyword)
	raw, err := client.GenerateJSON(ctx, prompt, TierStandard)
	if err != nil {
		return nil, fmt.Errorf("failed to generate phrases for %q: %w", keyword, err)
	}

	if err := validateAgainst(phrasesSchema, raw); err != nil {
		return nil, err
	}

	var resp phrasesResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse phrases response: %w", err)
	}
	if len(resp.Phrases) > perKeyword {
		resp.Phrases = resp.Phrases[:perKeyword]
	}
	return resp.Phrases, nil
}

func buildPhrasePrompt(keyword, brandContext string, perKeyword int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generate %d distinct questions a consumer might ask an AI assistant ", perKeyword))
	sb.WriteString(fmt.Sprintf("when researching %q.\n\n", keyword))
	sb.WriteString(fmt.Sprintf("Industry context:\n%s\n\n", brandContext))
	sb.WriteString(`Return ONLY valid JSON matching this exact structure:
{"phrases": [string]}

IMPORTANT:
- Phrases must be natural questions, not keyword strings.
- Do not mention any specific brand in the phrases.
- Return ONLY the JSON object, no markdown, no explanation, no code blocks.`)
	return sb.String()
}

// QueryPhrase puts one generated phrase to the model and returns the
// raw answer text, exactly as a consumer would see it. Scoring of the
// answer happens downstream.
func QueryPhrase(ctx context.Context, client Client, phrase string) (string, error) {
	answer, err := client.GenerateContent(ctx, phrase, TierLite)
	if err != nil {
		return "", fmt.Errorf("failed to query phrase %q: %w", phrase, err)
	}
	return answer, nil
}
