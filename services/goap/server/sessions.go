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
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bjpl/meal-assistant-sub008/pkg/extensions"
	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/planner"
	"github.com/bjpl/meal-assistant-sub008/services/goap/session"
)

// HandleListSessions handles GET /v1/goap/sessions.
func (s *Server) HandleListSessions(c *gin.Context) {
	logger := s.requestLogger(c, "HandleListSessions")
	if !s.sessionsEnabled(c, logger) {
		return
	}

	list, err := s.sessions.List(c.Request.Context())
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

// HandleCreateSession handles POST /v1/goap/sessions.
//
// Response:
//
//	201 Created: SessionResponse
//	400 Bad Request: unknown goal or condition
func (s *Server) HandleCreateSession(c *gin.Context) {
	logger := s.requestLogger(c, "HandleCreateSession")
	if !s.sessionsEnabled(c, logger) {
		return
	}

	var req CreateSessionRequest
	if !s.bind(c, logger, &req) {
		return
	}

	b := s.Bundle()
	sess := session.Session{Goal: req.Goal, GoalConditions: req.GoalConditions}
	if req.Goal == "" && len(req.GoalConditions) == 0 {
		s.writeError(c, logger, errMissingGoal)
		return
	}
	if _, err := sess.GoalPredicate(b); err != nil {
		s.writeError(c, logger, err)
		return
	}
	state, err := resolveState(b, req.State)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	sess.SetState(state)

	created, err := s.sessions.Create(c.Request.Context(), sess)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	s.recordSessionEvent(c, logger, "create", created, nil, map[string]any{"goal": created.Goal})
	logger.Info("Session created", slog.String("session_id", created.ID.String()))
	c.JSON(http.StatusCreated, SessionResponse{Session: created})
}

// HandleGetSession handles GET /v1/goap/sessions/:id.
func (s *Server) HandleGetSession(c *gin.Context) {
	logger := s.requestLogger(c, "HandleGetSession")
	sess, ok := s.loadSession(c, logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Session: sess})
}

// HandleUpdateSessionState handles PUT /v1/goap/sessions/:id/state.
//
// Response:
//
//	200 OK: SessionResponse
//	409 Conflict: the session moved past the given revision
func (s *Server) HandleUpdateSessionState(c *gin.Context) {
	logger := s.requestLogger(c, "HandleUpdateSessionState")

	var req UpdateStateRequest
	if !s.bind(c, logger, &req) {
		return
	}
	sess, ok := s.loadSession(c, logger)
	if !ok {
		return
	}

	state, err := s.Bundle().Schema.StateFromMap(req.State)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	if req.Revision > 0 {
		sess.Revision = req.Revision
	}
	sess.SetState(state)

	saved, err := s.sessions.Save(c.Request.Context(), sess)
	if err != nil {
		s.recordSessionEvent(c, logger, "update", sess, err, nil)
		s.writeError(c, logger, err)
		return
	}
	s.recordSessionEvent(c, logger, "update", saved, nil, nil)
	c.JSON(http.StatusOK, SessionResponse{Session: saved})
}

// HandleReplanSession handles POST /v1/goap/sessions/:id/replan.
//
// Description:
//
//	Plans from the given (or held) state toward the session goal and
//	stores that state and the failed action on the session. The planning
//	outcome is returned alongside the saved session whether or not a plan
//	was found.
func (s *Server) HandleReplanSession(c *gin.Context) {
	logger := s.requestLogger(c, "HandleReplanSession")

	var req ReplanRequest
	if !s.bind(c, logger, &req) {
		return
	}
	sess, ok := s.loadSession(c, logger)
	if !ok {
		return
	}

	b := s.Bundle()
	if req.FailedAction != "" {
		if _, found := b.Catalog.Lookup(req.FailedAction); !found {
			s.writeError(c, logger, fmt.Errorf("%w: %s", catalog.ErrUnknownAction, req.FailedAction))
			return
		}
	}

	state, err := sess.State(b.Schema)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	if req.State != nil {
		if state, err = b.Schema.StateFromMap(req.State); err != nil {
			s.writeError(c, logger, err)
			return
		}
	}
	goal, err := sess.GoalPredicate(b)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}

	p, err := planner.New(b.Catalog, state, s.opts.Planner, planner.WithLogger(logger))
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	result, err := p.Replan(c.Request.Context(), req.FailedAction, state, goal,
		planner.ReplanOptions{ExcludeFailed: req.ExcludeFailed})
	if err != nil {
		s.writeError(c, logger, err)
		return
	}

	if req.Revision > 0 {
		sess.Revision = req.Revision
	}
	sess.SetState(state)
	sess.LastFailedAction = req.FailedAction

	meta := map[string]any{"failed_action": req.FailedAction, "plan_found": result.Success}
	saved, err := s.sessions.Save(c.Request.Context(), sess)
	if err != nil {
		s.recordSessionEvent(c, logger, "replan", sess, err, meta)
		s.writeError(c, logger, err)
		return
	}
	s.recordSessionEvent(c, logger, "replan", saved, nil, meta)
	c.JSON(http.StatusOK, SessionResponse{Session: saved, Result: &result})
}

// HandleDeleteSession handles DELETE /v1/goap/sessions/:id.
func (s *Server) HandleDeleteSession(c *gin.Context) {
	logger := s.requestLogger(c, "HandleDeleteSession")
	if !s.sessionsEnabled(c, logger) {
		return
	}
	id, ok := s.sessionID(c, logger)
	if !ok {
		return
	}
	if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, logger, err)
		return
	}
	s.recordSessionEvent(c, logger, "delete", session.Session{ID: id}, nil, nil)
	c.Status(http.StatusNoContent)
}

// HandleSessionHistory handles GET /v1/goap/sessions/:id/history.
//
// Response:
//
//	200 OK: {"events": [...]} newest first; still served after deletion
func (s *Server) HandleSessionHistory(c *gin.Context) {
	logger := s.requestLogger(c, "HandleSessionHistory")
	if !s.sessionsEnabled(c, logger) {
		return
	}
	id, ok := s.sessionID(c, logger)
	if !ok {
		return
	}
	events, err := s.audit.Query(c.Request.Context(), extensions.AuditFilter{
		ResourceType: "session",
		ResourceID:   id.String(),
	})
	if err != nil {
		s.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// recordSessionEvent writes a "session.<action>" audit event. Audit
// failures are logged and never fail the request.
func (s *Server) recordSessionEvent(c *gin.Context, logger *slog.Logger, action string, sess session.Session, opErr error, meta map[string]any) {
	event := extensions.AuditEvent{
		EventType:    "session." + action,
		RequestID:    getOrCreateRequestID(c),
		Action:       action,
		ResourceType: "session",
		ResourceID:   sess.ID.String(),
		Outcome:      extensions.OutcomeSuccess,
		Metadata:     map[string]any{"revision": sess.Revision},
	}
	for k, v := range meta {
		event.Metadata[k] = v
	}
	if opErr != nil {
		event.Outcome = extensions.OutcomeFailure
		event.Metadata["error"] = opErr.Error()
	}
	if err := s.audit.Log(c.Request.Context(), event); err != nil {
		logger.Warn("audit log failed", slog.String("error", err.Error()))
	}
}

func (s *Server) sessionsEnabled(c *gin.Context, logger *slog.Logger) bool {
	if s.sessions == nil {
		s.writeError(c, logger, errSessionsDisabled)
		return false
	}
	return true
}

func (s *Server) sessionID(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.writeError(c, logger, fmt.Errorf("%w: %v", errInvalidSessionID, err))
		return uuid.Nil, false
	}
	return id, true
}

// loadSession resolves the :id parameter to a stored session.
func (s *Server) loadSession(c *gin.Context, logger *slog.Logger) (session.Session, bool) {
	if !s.sessionsEnabled(c, logger) {
		return session.Session{}, false
	}
	id, ok := s.sessionID(c, logger)
	if !ok {
		return session.Session{}, false
	}
	sess, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, logger, err)
		return session.Session{}, false
	}
	return sess, true
}
