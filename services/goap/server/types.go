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
	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/planner"
	"github.com/bjpl/meal-assistant-sub008/services/goap/session"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// =============================================================================
// Requests
// =============================================================================

// PlanRequest is the body of POST /v1/goap/plan.
//
// State is a boolean map over the catalog schema; absent keys are false
// and a missing State uses the catalog's initial preset. Exactly one of
// Goal and GoalName is expected; Goal wins when both are set. MaxNodes can
// only lower the server's configured node cap.
type PlanRequest struct {
	State           map[string]bool `json:"state"`
	Goal            map[string]bool `json:"goal"`
	GoalName        string          `json:"goal_name"`
	Reopen          *bool           `json:"reopen"`
	HeuristicWeight float64         `json:"heuristic_weight" binding:"omitempty,gt=0"`
	MaxNodes        int             `json:"max_nodes" binding:"omitempty,gt=0"`
}

// BatchPlanRequest is the body of POST /v1/goap/plan/batch.
type BatchPlanRequest struct {
	State     map[string]bool `json:"state"`
	GoalNames []string        `json:"goal_names" binding:"required,min=1,dive,required"`
	Reopen    *bool           `json:"reopen"`
}

// PlanActionsRequest carries a plan as action IDs. It is the body of
// /validate and /execute.
type PlanActionsRequest struct {
	State     map[string]bool `json:"state"`
	ActionIDs []string        `json:"action_ids" binding:"required"`
}

// SummaryRequest is the body of POST /v1/goap/summary.
type SummaryRequest struct {
	ActionIDs []string `json:"action_ids" binding:"required"`
}

// AuditRequest is the body of POST /v1/goap/audit.
type AuditRequest struct {
	ActionIDs []string `json:"action_ids" binding:"required"`
}

// GraphRequest is the body of POST /v1/goap/graph.
type GraphRequest struct {
	ActionIDs []string `json:"action_ids" binding:"required"`
	Format    string   `json:"format" binding:"omitempty,oneof=mermaid dot graphviz"`
}

// CreateSessionRequest is the body of POST /v1/goap/sessions.
type CreateSessionRequest struct {
	Goal           string          `json:"goal"`
	GoalConditions map[string]bool `json:"goal_conditions"`
	State          map[string]bool `json:"state"`
}

// UpdateStateRequest is the body of PUT /v1/goap/sessions/:id/state.
//
// Revision is the revision the caller last read. Zero skips the check.
type UpdateStateRequest struct {
	State    map[string]bool `json:"state" binding:"required"`
	Revision int64           `json:"revision" binding:"gte=0"`
}

// ReplanRequest is the body of POST /v1/goap/sessions/:id/replan.
//
// A missing State replans from the session's held state.
type ReplanRequest struct {
	FailedAction  string          `json:"failed_action"`
	State         map[string]bool `json:"state"`
	ExcludeFailed bool            `json:"exclude_failed"`
	Revision      int64           `json:"revision" binding:"gte=0"`
}

// =============================================================================
// Responses
// =============================================================================

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /v1/goap/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Catalog  string `json:"catalog"`
	Actions  int    `json:"actions"`
	Sessions bool   `json:"sessions"`
}

// CatalogResponse is returned by GET /v1/goap/catalog.
type CatalogResponse struct {
	Name       string                          `json:"name"`
	Conditions []string                        `json:"conditions"`
	Phases     map[int]string                  `json:"phases"`
	Actions    []catalog.Action                `json:"actions"`
	Initial    worldstate.State                `json:"initial"`
	Goals      map[string]worldstate.Predicate `json:"goals"`
}

// SessionResponse pairs a session with the outcome of a replan.
type SessionResponse struct {
	Session session.Session          `json:"session"`
	Result  *planner.PlanningResult `json:"result,omitempty"`
}
