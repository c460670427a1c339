package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/adapters/gitstatus"
	"github.com/repod-io/repod/internal/domain"
	"github.com/repod-io/repod/internal/journal"
	"github.com/repod-io/repod/internal/repo"
	"github.com/repod-io/repod/internal/update"
)

// getRepo resolves the {id} path variable to an initialized repository.
// A nil return means the response has already been written.
func (s *Server) getRepo(w http.ResponseWriter, r *http.Request) *repo.Repository {
	id := mux.Vars(r)["id"]

	rep, err := s.manager.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrRepoNotRegistered) {
			s.respondError(w, http.StatusNotFound, err.Error())
		} else {
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
		}
		return nil
	}
	return rep
}

// record writes an operation to the journal when one is configured.
func (s *Server) record(ctx context.Context, repoID, operation, outcome string, success bool, detail interface{}) {
	if s.journal == nil {
		return
	}

	var detailJSON string
	if detail != nil {
		if data, err := json.Marshal(detail); err == nil {
			detailJSON = string(data)
		}
	}

	_, err := s.journal.Record(ctx, journal.Entry{
		RepoID:     repoID,
		Operation:  operation,
		Outcome:    outcome,
		Success:    success,
		Detail:     detailJSON,
		FinishedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Str("repo_id", repoID).Str("operation", operation).Msg("failed to record operation")
	}
}

// handleListRepos handles GET /api/repos
func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"repos": s.manager.All(),
	})
}

// handleAddRepo handles POST /api/repos
func (s *Server) handleAddRepo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	if s.registrar == nil {
		s.respondError(w, http.StatusNotImplemented, "repository registration is not available")
		return
	}

	status, err := s.registrar.AddRepo(req.Name, req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, status)
}

// handleGetRepo handles GET /api/repos/{id}
func (s *Server) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	status, err := s.manager.Status(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	result := map[string]interface{}{
		"repo": status,
	}

	// Enrich with the cached snapshot when the repository is usable.
	if rep, err := s.manager.Get(id); err == nil {
		if info := rep.Info(); info != nil {
			result["branch"] = info.Branch
			result["revision"] = info.Revision
			result["repo_state"] = info.State
			result["remotes"] = info.RemoteNames()
			result["tracking"] = info.Tracking
			result["read_at"] = info.ReadAt
		}
	}

	s.respondJSON(w, http.StatusOK, result)
}

// handleRemoveRepo handles DELETE /api/repos/{id}
func (s *Server) handleRemoveRepo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if s.registrar == nil {
		s.respondError(w, http.StatusNotImplemented, "repository registration is not available")
		return
	}

	if err := s.registrar.RemoveRepo(id); err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// handleRefreshRepo handles POST /api/repos/{id}/refresh
func (s *Server) handleRefreshRepo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.manager.Refresh(id); err != nil {
		if errors.Is(err, domain.ErrRepoNotRegistered) {
			s.respondError(w, http.StatusNotFound, err.Error())
		} else {
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}

	status, err := s.manager.Status(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

// handleRepoStatus handles GET /api/repos/{id}/status
func (s *Server) handleRepoStatus(w http.ResponseWriter, r *http.Request) {
	rep := s.getRepo(w, r)
	if rep == nil {
		return
	}

	summary, err := gitstatus.NewProvider(rep.Exec()).Summarize(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, summary)
}

// handleRepoLog handles GET /api/repos/{id}/log
func (s *Server) handleRepoLog(w http.ResponseWriter, r *http.Request) {
	rep := s.getRepo(w, r)
	if rep == nil {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	skip, _ := strconv.Atoi(q.Get("skip"))

	result, err := gitstatus.NewProvider(rep.Exec()).Log(r.Context(), limit, skip, q.Get("branch"), q.Get("path"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// handleRepoUntracked handles GET /api/repos/{id}/untracked
func (s *Server) handleRepoUntracked(w http.ResponseWriter, r *http.Request) {
	rep := s.getRepo(w, r)
	if rep == nil {
		return
	}

	files, err := rep.Untracked().Snapshot(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
		"count": len(files),
	})
}

// handleFetch handles POST /api/repos/{id}/fetch
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	rep := s.getRepo(w, r)
	if rep == nil {
		return
	}

	var req struct {
		Remotes []string `json:"remotes"`
		Prune   bool     `json:"prune"`
	}
	// Empty body means fetch the default remotes.
	_ = json.NewDecoder(r.Body).Decode(&req)

	results, err := update.NewFetcher(rep, s.hub).Fetch(r.Context(), update.FetchOptions{
		Remotes: req.Remotes,
		Prune:   req.Prune,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoTrackedBranch) {
			s.respondError(w, http.StatusConflict, err.Error())
		} else {
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	success := true
	for _, res := range results {
		if !res.Success {
			success = false
		}
	}
	s.record(r.Context(), rep.ID, "fetch", outcomeOf(success), success, results)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// handleUpdate handles POST /api/repos/{id}/update
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	rep := s.getRepo(w, r)
	if rep == nil {
		return
	}

	var req struct {
		Method     string `json:"method"` // merge or rebase, empty for config default
		FetchFirst bool   `json:"fetch_first"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, err := update.NewUpdater(rep, s.hub).Update(r.Context(), update.UpdateOptions{
		FetchFirst: req.FetchFirst,
		Method:     update.Method(req.Method),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUpdateInProgress), errors.Is(err, domain.ErrDetachedHead):
			s.respondError(w, http.StatusConflict, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.record(r.Context(), rep.ID, "update", string(result.Outcome), result.Outcome == update.OutcomeSuccess, result)
	s.respondJSON(w, http.StatusOK, result)
}

// handleStage handles POST /api/repos/{id}/stage
func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	s.handlePathsOp(w, r, "stage", func(ctx context.Context, p *gitstatus.Provider, paths []string) error {
		return p.Stage(ctx, paths)
	})
}

// handleUnstage handles POST /api/repos/{id}/unstage
func (s *Server) handleUnstage(w http.ResponseWriter, r *http.Request) {
	s.handlePathsOp(w, r, "unstage", func(ctx context.Context, p *gitstatus.Provider, paths []string) error {
		return p.Unstage(ctx, paths)
	})
}

// handleDiscard handles POST /api/repos/{id}/discard
func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	s.handlePathsOp(w, r, "discard", func(ctx context.Context, p *gitstatus.Provider, paths []string) error {
		return p.Discard(ctx, paths)
	})
}

// handlePathsOp runs a path-list operation against the working tree.
func (s *Server) handlePathsOp(w http.ResponseWriter, r *http.Request, name string, op func(context.Context, *gitstatus.Provider, []string) error) {
	rep := s.getRepo(w, r)
	if rep == nil {
		return
	}

	var req struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Paths) == 0 {
		s.respondError(w, http.StatusBadRequest, "paths is required")
		return
	}

	provider := gitstatus.NewProvider(rep.Exec())
	if err := op(r.Context(), provider, req.Paths); err != nil {
		s.record(r.Context(), rep.ID, name, "error", false, map[string]interface{}{"paths": req.Paths, "error": err.Error()})
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.record(r.Context(), rep.ID, name, "success", true, map[string]interface{}{"paths": req.Paths})
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// handleCommit handles POST /api/repos/{id}/commit
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	rep := s.getRepo(w, r)
	if rep == nil {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := gitstatus.NewProvider(rep.Exec()).Commit(r.Context(), req.Message)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.record(r.Context(), rep.ID, "commit", outcomeOf(result.Success), result.Success, result)
	s.respondJSON(w, http.StatusOK, result)
}

// handleCheckout handles POST /api/repos/{id}/checkout
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	rep := s.getRepo(w, r)
	if rep == nil {
		return
	}

	var req struct {
		Branch string `json:"branch"`
		Create bool   `json:"create"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Branch == "" {
		s.respondError(w, http.StatusBadRequest, "branch is required")
		return
	}

	result, err := gitstatus.NewProvider(rep.Exec()).Checkout(r.Context(), req.Branch, req.Create)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.record(r.Context(), rep.ID, "checkout", outcomeOf(result.Success), result.Success, result)
	s.respondJSON(w, http.StatusOK, result)
}

// handleHistory handles GET /api/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.respondError(w, http.StatusNotImplemented, "operation journal is disabled")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	var entries []journal.Entry
	var err error
	if repoID := q.Get("repo_id"); repoID != "" {
		entries, err = s.journal.ByRepo(r.Context(), repoID, limit)
	} else {
		entries, err = s.journal.Recent(r.Context(), limit)
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
	})
}

func outcomeOf(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
