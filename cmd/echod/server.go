package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/echohq/echo/pkg/audit"
	"github.com/echohq/echo/pkg/config"
	echoerrors "github.com/echohq/echo/pkg/errors"
	"github.com/echohq/echo/pkg/executor"
	"github.com/echohq/echo/pkg/guardrail"
	"github.com/echohq/echo/pkg/heartbeat"
	"github.com/echohq/echo/pkg/logging"
	"github.com/echohq/echo/pkg/notify"
	"github.com/echohq/echo/pkg/plan"
	"github.com/echohq/echo/pkg/ratelimit"
	"github.com/echohq/echo/pkg/telemetry"
)

// server ties the daemon's components to the HTTP surface.
type server struct {
	cfg      *config.Config
	engine   *guardrail.Engine
	limiter  *ratelimit.Limiter
	exec     *executor.Executor
	recorder audit.Recorder
	sched    *heartbeat.Scheduler
	notifier *notify.Manager
	logger   *logging.Logger
}

func newServer(cfg *config.Config, engine *guardrail.Engine, limiter *ratelimit.Limiter, exec *executor.Executor, recorder audit.Recorder, sched *heartbeat.Scheduler, notifier *notify.Manager, logger *logging.Logger) *server {
	return &server{
		cfg:      cfg,
		engine:   engine,
		limiter:  limiter,
		exec:     exec,
		recorder: recorder,
		sched:    sched,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", s.handleHealthz)
	router.Get("/metrics", promhttp.Handler().ServeHTTP)
	router.Get("/status", s.handleStatus)
	router.Get("/audit", s.handleAudit)
	router.Post("/actions", s.handleExecuteAction)
	router.Post("/heartbeat/run", s.handleRunHeartbeat)

	return router
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"agent":     s.cfg.Agent.ID,
		"heartbeat": s.sched.Status(),
	})
}

func (s *server) handleAudit(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent")
	if agentID == "" {
		agentID = s.cfg.Agent.ID
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.recorder.List(r.Context(), agentID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// actionRequest is the body of POST /actions.
type actionRequest struct {
	Step        planStep `json:"step"`
	Integration string   `json:"integration,omitempty"`
}

type planStep struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

func (s *server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		bad := echoerrors.Wrap(err, echoerrors.ErrCodeInvalidInput, "invalid request body")
		respondError(w, http.StatusBadRequest, bad.Message)
		return
	}
	if strings.TrimSpace(req.Step.ID) == "" || strings.TrimSpace(req.Step.Action) == "" {
		bad := echoerrors.New(echoerrors.ErrCodeInvalidInput, "step.id and step.action are required")
		respondError(w, http.StatusBadRequest, bad.Message)
		return
	}

	step := plan.Step{
		ID:          req.Step.ID,
		Action:      plan.ActionKind(req.Step.Action),
		Description: req.Step.Description,
	}
	turn := executor.TurnContext{
		AgentID:     s.cfg.Agent.ID,
		UserID:      s.cfg.Agent.UserID,
		WorkspaceID: s.cfg.Agent.WorkspaceID,
	}

	check := s.engine.CheckStep(step)
	if !check.CanExecute {
		denied := echoerrors.New(echoerrors.ErrCodeGuardrailDenied, "step blocked by guardrails").
			WithContext("step_id", step.ID)
		s.logEvent(logging.CategoryGuardrail, "step_denied", denied.Error(), step.ID)
		respondJSON(w, http.StatusForbidden, map[string]any{
			"executed": false,
			"reasons":  check.BlockedReasons,
		})
		return
	}
	if check.NeedsApproval {
		suspended := echoerrors.New(echoerrors.ErrCodeApprovalRequired, "step suspended pending approval").
			WithContext("step_id", step.ID)
		s.logEvent(logging.CategoryApproval, "approval_requested", suspended.Error(), step.ID)
		if s.notifier != nil {
			s.notifier.NotifyApprovalRequest(r.Context(), turn.AgentID, step.ID, step.Description)
		}
		respondJSON(w, http.StatusAccepted, map[string]any{
			"executed":       false,
			"needs_approval": true,
		})
		return
	}

	if req.Integration != "" {
		decision := guardrail.CheckPermission(string(step.Action), req.Integration, s.cfg.Policies)
		if !decision.Allowed {
			denied := echoerrors.New(echoerrors.ErrCodePermissionDenied, decision.Reason).
				WithContext("integration", req.Integration)
			s.logEvent(logging.CategoryGuardrail, "permission_denied", denied.Error(), step.ID)
			respondJSON(w, http.StatusForbidden, map[string]any{
				"executed": false,
				"reasons":  []string{decision.Reason},
			})
			return
		}
		if policy := s.cfg.PolicyFor(req.Integration); policy != nil && policy.RateLimit != nil {
			rl := s.limiter.Check(turn.AgentID, req.Integration, policy.RateLimit)
			if !rl.Allowed {
				telemetry.RecordRateLimitDenial()
				limited := echoerrors.New(echoerrors.ErrCodeRateLimited, "rate limit exceeded for "+req.Integration).
					WithRetryable(true).
					WithContext("reset_ms", rl.ResetAfter.Milliseconds())
				s.logEvent(logging.CategoryRateLimit, "denied", limited.Error(), step.ID)
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.ResetAfter.Seconds())+1))
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded for "+req.Integration)
				return
			}
		}
	}

	result := s.exec.ExecuteWithRetry(r.Context(), step, turn, s.cfg.Retry)

	entry := executor.NewAuditEntry(result, step, turn.AgentID)
	if err := s.recorder.Record(r.Context(), entry); err != nil && s.logger != nil {
		s.logger.Error(logging.CategoryExecutor, "audit_record_failed", err.Error(), map[string]any{
			"stepId": step.ID,
		})
	}

	if !result.Success && s.notifier != nil {
		s.notifier.NotifyActionFailed(r.Context(), turn.AgentID, step.ID, actionError(result))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"executed": true,
		"result":   result,
	})
}

func (s *server) handleRunHeartbeat(w http.ResponseWriter, r *http.Request) {
	results := s.sched.RunOnce(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

// logEvent writes a structured event when a logger is configured.
func (s *server) logEvent(category logging.Category, eventType, message, stepID string) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(category, eventType, message, map[string]any{
		"step_id": stepID,
	})
}

func actionError(result executor.ActionResult) error {
	switch {
	case result.Error == executor.AbortedError():
		return echoerrors.New(echoerrors.ErrCodeActionAborted, result.Error)
	case result.Error != "":
		return echoerrors.New(echoerrors.ErrCodeActionFailed, result.Error)
	default:
		return echoerrors.New(echoerrors.ErrCodeActionFailed, "action failed")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
