package progress

import (
	"context"
	"sort"
	"time"
)

// Session is a redacted view of one in-flight analysis for dashboards
// and resumption prompts. Large stage payloads are summarized to
// counts; the full bundle stays behind Get/Resume.
type Session struct {
	Key          SubjectKey `json:"key"`
	CurrentStep  Step       `json:"currentStep"`
	StepName     string     `json:"stepName"`
	DomainURL    string     `json:"domainUrl,omitempty"`
	KeywordCount int        `json:"keywordCount"`
	PhraseCount  int        `json:"phraseCount"`
	HasResults   bool       `json:"hasResults"`
	LastActivity time.Time  `json:"lastActivity"`
}

// Registry lists the recently active, incomplete sessions for an
// owner. It is a read-only projection over the store; it never writes.
type Registry struct {
	store     Store
	staleness time.Duration
}

// NewRegistry creates a registry with the given staleness cutoff.
// Sessions idle longer than the cutoff are excluded from listings but
// remain resumable through their direct key.
func NewRegistry(store Store, staleness time.Duration) *Registry {
	return &Registry{store: store, staleness: staleness}
}

// ListForOwner returns the owner's in-flight sessions ordered by most
// recent activity first.
func (r *Registry) ListForOwner(ctx context.Context, ownerID int64) ([]Session, error) {
	records, err := r.store.ListActive(ctx, ownerID, r.staleness)
	if err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, summarize(rec))
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastActivity.After(sessions[j].LastActivity)
	})
	return sessions, nil
}

func summarize(rec *Record) Session {
	bundle := rec.StepData
	if bundle == nil {
		bundle = &StageBundle{}
	}
	return Session{
		Key:          rec.Key,
		CurrentStep:  rec.CurrentStep,
		StepName:     rec.CurrentStep.String(),
		DomainURL:    bundle.DomainURL,
		KeywordCount: len(bundle.SelectedKeywords),
		PhraseCount:  bundle.PhraseCount(),
		HasResults:   bundle.hasQueryResults(),
		LastActivity: rec.LastActivity,
	}
}
