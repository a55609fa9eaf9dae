// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/planner"
	"github.com/bjpl/meal-assistant-sub008/services/goap/session"
	"github.com/bjpl/meal-assistant-sub008/services/goap/telemetry"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

var (
	errMissingGoal        = errors.New("goal or goal_name is required")
	errSessionsDisabled   = errors.New("session storage is not configured")
	errInvalidSessionID   = errors.New("invalid session id")
	errInvalidGraphFormat = errors.New("invalid graph format")
)

// HandleHealth handles GET /v1/goap/health.
func (s *Server) HandleHealth(c *gin.Context) {
	b := s.Bundle()
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  ServiceVersion,
		Catalog:  b.Name,
		Actions:  b.Catalog.Len(),
		Sessions: s.sessions != nil,
	})
}

// HandleCatalog handles GET /v1/goap/catalog.
func (s *Server) HandleCatalog(c *gin.Context) {
	b := s.Bundle()
	c.JSON(http.StatusOK, CatalogResponse{
		Name:       b.Name,
		Conditions: b.Schema.Names(),
		Phases:     b.PhaseNames,
		Actions:    b.Catalog.Actions(),
		Initial:    b.Initial,
		Goals:      b.Goals,
	})
}

// HandlePlan handles POST /v1/goap/plan.
//
// Response:
//
//	200 OK: planner.PlanningResult (success or structured failure)
//	400 Bad Request: malformed body, unknown condition or goal
func (s *Server) HandlePlan(c *gin.Context) {
	logger := s.requestLogger(c, "HandlePlan")

	var req PlanRequest
	if !s.bind(c, logger, &req) {
		return
	}

	b := s.Bundle()
	start, err := resolveState(b, req.State)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	goal, err := resolveGoal(b, req.Goal, req.GoalName)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}

	cfg := s.opts.Planner
	if req.Reopen != nil {
		cfg.ReopenClosed = *req.Reopen
	}
	if req.HeuristicWeight > 0 {
		cfg.HeuristicWeight = req.HeuristicWeight
	}
	if req.MaxNodes > 0 && req.MaxNodes < cfg.MaxNodes {
		cfg.MaxNodes = req.MaxNodes
	}

	p, err := planner.New(b.Catalog, start, cfg, planner.WithLogger(logger))
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, p.FindPlan(c.Request.Context(), goal))
}

// HandlePlanBatch handles POST /v1/goap/plan/batch.
//
// Response:
//
//	200 OK: map of goal name to planner.PlanningResult
func (s *Server) HandlePlanBatch(c *gin.Context) {
	logger := s.requestLogger(c, "HandlePlanBatch")

	var req BatchPlanRequest
	if !s.bind(c, logger, &req) {
		return
	}

	b := s.Bundle()
	start, err := resolveState(b, req.State)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	goals := make(map[string]worldstate.Predicate, len(req.GoalNames))
	for _, name := range req.GoalNames {
		g, err := b.Goal(name)
		if err != nil {
			s.writeError(c, logger, err)
			return
		}
		goals[name] = g
	}

	cfg := s.opts.Planner
	if req.Reopen != nil {
		cfg.ReopenClosed = *req.Reopen
	}

	logger.Info("Batch planning", slog.Int("goals", len(goals)))
	c.JSON(http.StatusOK, planner.PlanAll(c.Request.Context(), b.Catalog, start, goals, cfg, s.opts.Server.BatchLimit))
}

// HandleValidate handles POST /v1/goap/validate.
func (s *Server) HandleValidate(c *gin.Context) {
	logger := s.requestLogger(c, "HandleValidate")

	p, plan, ok := s.planFromRequest(c, logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p.ValidatePlan(c.Request.Context(), plan))
}

// HandleExecute handles POST /v1/goap/execute.
//
// Steps run through the simulated step runner.
func (s *Server) HandleExecute(c *gin.Context) {
	logger := s.requestLogger(c, "HandleExecute")

	p, plan, ok := s.planFromRequest(c, logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p.ExecutePlan(c.Request.Context(), plan))
}

// HandleSummary handles POST /v1/goap/summary.
func (s *Server) HandleSummary(c *gin.Context) {
	logger := s.requestLogger(c, "HandleSummary")

	var req SummaryRequest
	if !s.bind(c, logger, &req) {
		return
	}
	plan, err := s.Bundle().Catalog.Resolve(req.ActionIDs)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, planner.Summarize(plan))
}

// HandleAudit handles POST /v1/goap/audit.
//
// Response:
//
//	200 OK: policy.Report for the commands and rollback steps of the plan
func (s *Server) HandleAudit(c *gin.Context) {
	logger := s.requestLogger(c, "HandleAudit")

	var req AuditRequest
	if !s.bind(c, logger, &req) {
		return
	}
	plan, err := s.Bundle().Catalog.Resolve(req.ActionIDs)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	report := s.policy.Audit(plan)
	if !report.Clean() {
		logger.Info("plan audit flagged actions",
			slog.Int("findings", len(report.Findings)),
			slog.Any("flagged", report.Flagged),
		)
	}
	c.JSON(http.StatusOK, report)
}

// HandleGraph handles POST /v1/goap/graph.
//
// Response:
//
//	200 OK: Mermaid or DOT text
func (s *Server) HandleGraph(c *gin.Context) {
	logger := s.requestLogger(c, "HandleGraph")

	var req GraphRequest
	if !s.bind(c, logger, &req) {
		return
	}
	format, err := planner.ParseGraphFormat(req.Format)
	if err != nil {
		s.writeError(c, logger, errors.Join(errInvalidGraphFormat, err))
		return
	}
	plan, err := s.Bundle().Catalog.Resolve(req.ActionIDs)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}

	contentType := "text/plain; charset=utf-8"
	if format == planner.FormatDOT {
		contentType = "text/vnd.graphviz; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, []byte(planner.BuildDependencyGraph(plan).Render(format)))
}

// =============================================================================
// Helpers
// =============================================================================

// planFromRequest binds a PlanActionsRequest and builds a planner at its
// state.
func (s *Server) planFromRequest(c *gin.Context, logger *slog.Logger) (*planner.Planner, []catalog.Action, bool) {
	var req PlanActionsRequest
	if !s.bind(c, logger, &req) {
		return nil, nil, false
	}

	b := s.Bundle()
	start, err := resolveState(b, req.State)
	if err != nil {
		s.writeError(c, logger, err)
		return nil, nil, false
	}
	plan, err := b.Catalog.Resolve(req.ActionIDs)
	if err != nil {
		s.writeError(c, logger, err)
		return nil, nil, false
	}
	p, err := planner.New(b.Catalog, start, s.opts.Planner, planner.WithLogger(logger))
	if err != nil {
		s.writeError(c, logger, err)
		return nil, nil, false
	}
	return p, plan, true
}

func (s *Server) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return telemetry.LoggerWithTrace(c.Request.Context(), s.logger).With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler),
	)
}

// bind decodes and validates the JSON body, answering 400 on failure.
func (s *Server) bind(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return false
	}
	return true
}

// writeError maps err to a status code and ErrorResponse.
func (s *Server) writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err, "code", code)
	} else {
		logger.Warn("Request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingGoal):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, errInvalidGraphFormat):
		return http.StatusBadRequest, "INVALID_FORMAT"
	case errors.Is(err, errInvalidSessionID):
		return http.StatusBadRequest, "INVALID_SESSION_ID"
	case errors.Is(err, worldstate.ErrUnknownCondition):
		return http.StatusBadRequest, "UNKNOWN_CONDITION"
	case errors.Is(err, catalog.ErrUnknownAction):
		return http.StatusBadRequest, "UNKNOWN_ACTION"
	case errors.Is(err, catalog.ErrUnknownGoal):
		return http.StatusBadRequest, "UNKNOWN_GOAL"
	case errors.Is(err, planner.ErrInvalidConfig):
		return http.StatusBadRequest, "INVALID_CONFIG"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, session.ErrRevisionConflict):
		return http.StatusConflict, "REVISION_CONFLICT"
	case errors.Is(err, session.ErrInvalidSession):
		return http.StatusUnprocessableEntity, "INVALID_SESSION"
	case errors.Is(err, errSessionsDisabled):
		return http.StatusServiceUnavailable, "SESSIONS_DISABLED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// resolveState builds a start state. Nil uses the catalog's initial preset.
func resolveState(b *catalog.Bundle, m map[string]bool) (worldstate.State, error) {
	if m == nil {
		return b.Initial, nil
	}
	return b.Schema.StateFromMap(m)
}

// resolveGoal builds a goal from explicit conditions or a preset name.
func resolveGoal(b *catalog.Bundle, m map[string]bool, name string) (worldstate.Predicate, error) {
	switch {
	case m != nil:
		return b.Schema.PredicateFromMap(m)
	case name != "":
		return b.Goal(name)
	default:
		return worldstate.Predicate{}, errMissingGoal
	}
}
