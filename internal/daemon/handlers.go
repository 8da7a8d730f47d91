package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/moogar0880/problems"

	"quill/internal/api"
	"quill/internal/content"
	"quill/internal/workflow"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Scheduler:    api.FromStatusSummary(status.Scheduler),
		StateCounts:  api.MergeStateCounts(status.StateCounts),
		Checks:       api.FromCheckResults(status.Checks),
	})
}

func (s *apiServer) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req api.CreateWorkflowRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	wf, err := s.daemon.engine.StartWorkflow(r.Context(), req.Topic, req.Tone)
	if err != nil {
		if wf != nil && (errors.Is(err, workflow.ErrQueueFull) || errors.Is(err, workflow.ErrSchedulerStopped)) {
			writeProblem(w, problems.NewStatusProblem(http.StatusServiceUnavailable).
				WithInstance(r.URL.Path).
				WithType("scheduler_unavailable").
				WithDetail(fmt.Sprintf("workflow %s was saved but not queued (%v); it will resume on the next recovery sweep", wf.ID, err)))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/workflows/"+wf.ID)
	s.writeJSON(w, http.StatusCreated, api.CreateWorkflowResponse{ID: wf.ID, Workflow: api.FromWorkflow(wf)})
}

func (s *apiServer) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.badRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxListLimit)
	}
	items, err := s.daemon.store.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkflowListResponse{Items: api.SummariesFromWorkflows(items)})
}

func (s *apiServer) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.daemon.engine.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkflowResponse{Workflow: api.FromWorkflow(wf)})
}

func (s *apiServer) handleApproveOutline(w http.ResponseWriter, r *http.Request) {
	var req api.ApproveOutlineRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	wf, ok, err := s.daemon.engine.ApproveOutline(r.Context(), r.PathValue("id"), req.Notes)
	s.writeAction(w, r, wf, ok, err)
}

func (s *apiServer) handleRejectOutline(w http.ResponseWriter, r *http.Request) {
	var req api.RejectOutlineRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	wf, ok, err := s.daemon.engine.RejectOutline(r.Context(), r.PathValue("id"), req.Feedback)
	s.writeAction(w, r, wf, ok, err)
}

func (s *apiServer) handleRevise(w http.ResponseWriter, r *http.Request) {
	var req api.ReviseRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	wf, ok, err := s.daemon.engine.ReviseDraft(r.Context(), r.PathValue("id"), req.Instructions)
	s.writeAction(w, r, wf, ok, err)
}

func (s *apiServer) handleApplySEO(w http.ResponseWriter, r *http.Request) {
	wf, ok, err := s.daemon.engine.ApplySEOSuggestions(r.Context(), r.PathValue("id"))
	s.writeAction(w, r, wf, ok, err)
}

func (s *apiServer) handleFinalize(w http.ResponseWriter, r *http.Request) {
	wf, ok, err := s.daemon.engine.FinalizeWorkflow(r.Context(), r.PathValue("id"))
	s.writeAction(w, r, wf, ok, err)
}

func (s *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	reply, wf, err := s.daemon.engine.ProcessChatMessage(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ChatResponse{Reply: reply, Workflow: api.FromWorkflow(wf)})
}

// writeAction renders an operation result. A refused operation is a 409
// carrying the unchanged workflow so callers can show why.
func (s *apiServer) writeAction(w http.ResponseWriter, r *http.Request, wf *content.Workflow, ok bool, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	s.writeJSON(w, status, api.ActionResponse{OK: ok, Workflow: api.FromWorkflow(wf)})
}
