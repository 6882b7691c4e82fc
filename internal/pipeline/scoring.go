package pipeline

import (
	"strings"
)

// QueryResult is the scored outcome of putting one phrase to a model.
type QueryResult struct {
	Keyword      string `json:"keyword"`
	Phrase       string `json:"phrase"`
	Response     string `json:"response"`
	Mentioned    bool   `json:"mentioned"`
	MentionCount int    `json:"mentionCount"`
}

// KeywordStats aggregates visibility per keyword.
type KeywordStats struct {
	Queries  int `json:"queries"`
	Mentions int `json:"mentions"`
}

// QueryStats summarizes how visible the domain is across all model
// answers.
type QueryStats struct {
	TotalQueries int                     `json:"totalQueries"`
	Mentions     int                     `json:"mentions"`
	MentionRate  float64                 `json:"mentionRate"`
	PerKeyword   map[string]KeywordStats `json:"perKeyword"`
}

// ScoreResponse checks a model answer for mentions of the domain and
// its brand token.
func ScoreResponse(keyword, phrase, response, domainURL string) QueryResult {
	lower := strings.ToLower(response)
	count := 0
	for _, needle := range mentionNeedles(domainURL) {
		count += strings.Count(lower, needle)
	}
	return QueryResult{
		Keyword:      keyword,
		Phrase:       phrase,
		Response:     response,
		Mentioned:    count > 0,
		MentionCount: count,
	}
}

// ComputeStats rolls individual results up into overall and
// per-keyword visibility numbers.
func ComputeStats(results []QueryResult) QueryStats {
	stats := QueryStats{
		TotalQueries: len(results),
		PerKeyword:   make(map[string]KeywordStats),
	}
	for _, res := range results {
		ks := stats.PerKeyword[res.Keyword]
		ks.Queries++
		if res.Mentioned {
			ks.Mentions++
			stats.Mentions++
		}
		stats.PerKeyword[res.Keyword] = ks
	}
	if stats.TotalQueries > 0 {
		stats.MentionRate = float64(stats.Mentions) / float64(stats.TotalQueries)
	}
	return stats
}

// mentionNeedles derives the search terms for a domain. For
// "https://www.acme-tools.com" that is the bare host
// "acme-tools.com" and the brand token "acme-tools".
func mentionNeedles(domainURL string) []string {
	host := strings.ToLower(domainURL)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return nil
	}
	needles := []string{host}
	if i := strings.Index(host, "."); i > 0 {
		needles = append(needles, host[:i])
	}
	return needles
}
