package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
	"github.com/anish877/phrase-score-insight-sub002/internal/server/middleware"
)

// saveRequest is the body of POST /progress/{domainId}. Step is a
// pointer so a missing field is distinguishable from submission (0).
type saveRequest struct {
	Step      *int                 `json:"step" validate:"required"`
	Completed bool                 `json:"completed"`
	Data      progress.StageBundle `json:"data"`
}

// handleSaveProgress persists a partial snapshot for one subject,
// merging into whatever is already stored. With ?deferred=true the
// write is debounced through the auto-save scheduler instead of
// hitting storage immediately.
func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	key, ok := s.subjectKey(w, r)
	if !ok {
		return
	}
	if !s.authorize(w, r, key.DomainID, true) {
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	step := progress.Step(*req.Step)
	if step < progress.StepSubmission || step > progress.StepComplete {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("step out of range: %d", *req.Step))
		return
	}

	if r.URL.Query().Get("deferred") == "true" {
		s.autosaver.Schedule(key, step, &req.Data, req.Completed)
		s.jsonResponse(w, http.StatusAccepted, map[string]any{"scheduled": true, "key": key.String()})
		return
	}

	rec, err := s.store.Save(r.Context(), key, step, &req.Data, req.Completed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// handleGetProgress returns the raw stored record.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	key, ok := s.subjectKey(w, r)
	if !ok {
		return
	}
	if !s.authorize(w, r, key.DomainID, false) {
		return
	}

	rec, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// handleResume returns the validated resumable state, after flushing
// any pending deferred save so the client never resumes against a
// stale snapshot.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	key, ok := s.subjectKey(w, r)
	if !ok {
		return
	}
	if !s.authorize(w, r, key.DomainID, false) {
		return
	}

	if s.autosaver.Pending(key) {
		if err := s.autosaver.Flush(r.Context(), key); err != nil {
			s.writeError(w, err)
			return
		}
	}

	result, err := s.coordinator.Resume(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleDeleteProgress resets stored progress. ?versionId=N targets
// one versioned line, ?scope=all wipes every line for the domain, and
// no qualifier targets the unversioned line.
func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	domainID, ok := s.domainID(w, r)
	if !ok {
		return
	}
	if !s.authorize(w, r, domainID, false) {
		return
	}

	var scope progress.DeleteScope
	switch {
	case r.URL.Query().Get("scope") == "all":
		scope.AllVersions = true
	case r.URL.Query().Get("versionId") != "":
		versionID, err := strconv.ParseInt(r.URL.Query().Get("versionId"), 10, 64)
		if err != nil || versionID < 1 {
			s.errorResponse(w, http.StatusBadRequest, "invalid versionId")
			return
		}
		scope.VersionID = &versionID
	}

	// Drop any queued deferred writes for the affected lines.
	if scope.AllVersions {
		s.autosaver.CancelDomain(domainID)
	} else {
		s.autosaver.Cancel(progress.SubjectKey{DomainID: domainID, VersionID: scope.VersionID})
	}

	if err := s.store.Delete(r.Context(), domainID, scope); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListSessions lists the caller's recently active, incomplete
// sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.GetOwnerID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := s.registry.ListForOwner(r.Context(), ownerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// subjectKey parses the domain ID path segment and optional versionId
// query parameter.
func (s *Server) subjectKey(w http.ResponseWriter, r *http.Request) (progress.SubjectKey, bool) {
	domainID, ok := s.domainID(w, r)
	if !ok {
		return progress.SubjectKey{}, false
	}

	key := progress.NewSubjectKey(domainID)
	if raw := r.URL.Query().Get("versionId"); raw != "" {
		versionID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid versionId")
			return progress.SubjectKey{}, false
		}
		key = progress.NewVersionedKey(domainID, versionID)
	}

	if err := key.Validate(); err != nil {
		s.writeError(w, err)
		return progress.SubjectKey{}, false
	}
	return key, true
}

func (s *Server) domainID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	domainID, err := strconv.ParseInt(r.PathValue("domainId"), 10, 64)
	if err != nil || domainID < 1 {
		s.errorResponse(w, http.StatusBadRequest, "invalid domainId")
		return 0, false
	}
	return domainID, true
}

// authorize checks that the authenticated caller owns domainID. An
// unclaimed domain is claimed by the caller when claim is set (first
// save wins); otherwise unknown domains read as not found.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, domainID int64, claim bool) bool {
	ownerID, err := middleware.GetOwnerID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return false
	}

	owner, err := s.ownership.Owner(r.Context(), domainID)
	if errors.Is(err, progress.ErrNotFound) {
		if !claim {
			s.writeError(w, progress.ErrNotFound)
			return false
		}
		if err := s.ownership.SetOwner(r.Context(), domainID, ownerID); err != nil {
			s.writeError(w, err)
			return false
		}
		return true
	}
	if err != nil {
		s.writeError(w, err)
		return false
	}
	if owner != ownerID {
		s.writeError(w, progress.ErrForbidden)
		return false
	}
	return true
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": errorCode(status), "message": message})
}

// writeError maps an engine error onto the HTTP status taxonomy.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	s.errorResponse(w, status, err.Error())
}
