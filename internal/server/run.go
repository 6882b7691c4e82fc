package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/anish877/phrase-score-insight-sub002/internal/pipeline"
)

// runRequest is the body of POST /analyses/{domainId}/run. URL is
// required only for subjects with no stored progress.
type runRequest struct {
	URL string `json:"url" validate:"omitempty,max=2048"`
}

// handleRunAnalysis drives the pipeline for one domain from its
// resumable step through completion, streaming stage progress as
// Server-Sent Events. Each stage's output is persisted before the next
// starts, so a dropped connection resumes instead of restarting.
func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	key, ok := s.subjectKey(w, r)
	if !ok {
		return
	}
	if !s.authorize(w, r, key.DomainID, true) {
		return
	}

	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.validate.Struct(&req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	runID := uuid.New().String()
	log.Printf("[run %s] starting analysis for %s", runID, key.String())

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Store:     s.store,
		Extractor: s.stages.Extractor,
		Keywords:  s.stages.Keywords,
		Phrases:   s.stages.Phrases,
		Querier:   s.stages.Querier,
		Notify: func(ev pipeline.Event) {
			sse.WriteEvent("progress", ev) //nolint:errcheck
		},
	})

	rec, err := runner.Run(r.Context(), key, req.URL)
	if err != nil {
		log.Printf("[run %s] analysis failed: %v", runID, err)
		sse.WriteError(err.Error())
		return
	}

	log.Printf("[run %s] analysis finished at %s", runID, rec.CurrentStep)
	sse.WriteComplete(runID, key.String(), rec.CurrentStep.String(), rec.IsCompleted)
}
