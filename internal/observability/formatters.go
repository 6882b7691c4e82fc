// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/anish877/phrase-score-insight-sub002/internal/pipeline"
	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintBrandContext outputs the extracted brand context for a domain.
func (p *Printer) PrintBrandContext(domainURL, brandContext string) {
	if brandContext == "" {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Domain:  %s\n\n", domainURL))

	lines := strings.Split(brandContext, "\n")
	count := min(len(lines), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(lines[i])
		sb.WriteString("\n")
	}
	if len(lines) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more lines\n", len(lines)-maxItemsToShow))
	}

	p.printBox("BRAND CONTEXT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintKeywords outputs the discovered keywords.
func (p *Printer) PrintKeywords(keywords []string) {
	if len(keywords) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Discovered %d keywords:\n\n", len(keywords)))

	count := min(len(keywords), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("• %s\n", keywords[i]))
	}
	if len(keywords) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more", len(keywords)-maxItemsToShow))
	}

	p.printBox("KEYWORDS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPhrases outputs the generated query phrases grouped by keyword.
func (p *Printer) PrintPhrases(generated []progress.KeywordPhrases) {
	if len(generated) == 0 {
		return
	}

	total := 0
	for _, kp := range generated {
		total += len(kp.Phrases)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generated %d phrases across %d keywords:\n\n", total, len(generated)))

	count := min(len(generated), maxItemsToShow)
	for i := 0; i < count; i++ {
		kp := generated[i]
		sb.WriteString(fmt.Sprintf("%s (%d)\n", kp.Keyword, len(kp.Phrases)))
		for j, phrase := range kp.Phrases {
			if j >= 2 {
				sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(kp.Phrases)-2))
				break
			}
			if len(phrase) > 48 {
				phrase = phrase[:45] + "..."
			}
			sb.WriteString(fmt.Sprintf("  • %s\n", phrase))
		}
	}
	if len(generated) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more keywords", len(generated)-maxItemsToShow))
	}

	p.printBox("QUERY PHRASES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStats outputs the aggregated visibility statistics.
func (p *Printer) PrintStats(stats *pipeline.QueryStats) {
	if stats == nil || stats.TotalQueries == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Queries:      %d\n", stats.TotalQueries))
	sb.WriteString(fmt.Sprintf("Mentions:     %d\n", stats.Mentions))
	sb.WriteString(fmt.Sprintf("Mention rate: %.0f%%\n", stats.MentionRate*100))

	if len(stats.PerKeyword) > 0 {
		sb.WriteString("\nPer keyword:\n")
		shown := 0
		for keyword, ks := range stats.PerKeyword {
			if shown >= maxItemsToShow {
				sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(stats.PerKeyword)-shown))
				break
			}
			sb.WriteString(fmt.Sprintf("  %s: %d/%d\n", keyword, ks.Mentions, ks.Queries))
			shown++
		}
	}

	p.printBox("VISIBILITY RESULTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintResume outputs the validated resume position for a subject.
func (p *Printer) PrintResume(result *progress.ResumeResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Subject:   %s\n", result.Key.String()))
	sb.WriteString(fmt.Sprintf("Step:      %s\n", result.CurrentStep.String()))
	sb.WriteString(fmt.Sprintf("Completed: %t\n", result.IsCompleted))
	if result.WasAdjusted {
		sb.WriteString(fmt.Sprintf("Adjusted:  yes (%s)\n", result.Reason))
	}

	sb.WriteString("\nStage data:\n")
	status := result.DataStatus
	sb.WriteString(fmt.Sprintf("  context:  %s\n", checkmark(status.HasDomainContext)))
	sb.WriteString(fmt.Sprintf("  keywords: %s\n", checkmark(status.HasKeywords)))
	sb.WriteString(fmt.Sprintf("  phrases:  %s\n", checkmark(status.HasPhrases)))
	sb.WriteString(fmt.Sprintf("  results:  %s\n", checkmark(status.HasModelResults)))

	p.printBox("RESUME POSITION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSessions outputs the active session listing for an owner.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintSessions(sessions []progress.Session) {
	if len(sessions) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "NO ACTIVE SESSIONS")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Active sessions: %d\n\n", len(sessions)))

	count := min(len(sessions), maxItemsToShow)
	for i := 0; i < count; i++ {
		session := sessions[i]
		sb.WriteString(fmt.Sprintf("#%s  %s\n", session.Key.String(), session.StepName))
		if session.DomainURL != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", session.DomainURL))
		}
		sb.WriteString(fmt.Sprintf("    keywords: %d  phrases: %d  last: %s\n",
			session.KeywordCount, session.PhraseCount,
			session.LastActivity.Format("2006-01-02 15:04")))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(sessions) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more sessions", len(sessions)-maxItemsToShow))
	}

	p.printBox("ACTIVE SESSIONS", sb.String())
}

func checkmark(ok bool) string {
	if ok {
		return "✓"
	}
	return "-"
}
