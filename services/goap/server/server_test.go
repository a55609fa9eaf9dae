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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjpl/meal-assistant-sub008/pkg/extensions"
	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/config"
	"github.com/bjpl/meal-assistant-sub008/services/goap/planner"
	"github.com/bjpl/meal-assistant-sub008/services/goap/session"
	bstore "github.com/bjpl/meal-assistant-sub008/services/goap/storage/badger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testCatalog = `
name: kitchen
phases:
  - id: 0
    name: setup
    conditions: [installed, configured]
  - id: 1
    name: release
    conditions: [deployed]
actions:
  - id: install
    name: Install
    effects: {installed: true}
    cost: 1
    estimated_hours: 1
    commands: ["make install"]
  - id: configure
    name: Configure
    preconditions: {installed: true}
    effects: {configured: true}
    cost: 2
    estimated_hours: 3
  - id: deploy
    name: Deploy
    phase: 1
    preconditions: {configured: true}
    effects: {deployed: true}
    cost: 4
    estimated_hours: 5
    risk: high
    commands: ["make deploy ENV=production"]
    rollback: ["make rollback ENV=production"]
presets:
  initial: {}
  goals:
    ready: {configured: true}
    live: {deployed: true}
`

// Wire shapes decoded by the tests.
type resultBody struct {
	Success       bool    `json:"success"`
	TotalCost     float64 `json:"total_cost"`
	FailureKind   string  `json:"failure_kind"`
	NodesExplored int     `json:"nodes_explored"`
	Plan          []struct {
		ID string `json:"id"`
	} `json:"plan"`
}

func (r resultBody) ids() []string {
	out := make([]string, 0, len(r.Plan))
	for _, a := range r.Plan {
		out = append(out, a.ID)
	}
	return out
}

type sessionBody struct {
	Session session.Session `json:"session"`
	Result  *resultBody     `json:"result"`
}

func testBundle(t *testing.T) *catalog.Bundle {
	t.Helper()
	b, err := catalog.Load(strings.NewReader(testCatalog))
	require.NoError(t, err)
	return b
}

func newTestServer(t *testing.T, withSessions bool) *Server {
	t.Helper()
	opts := Options{
		Server:  config.Default().Server,
		Planner: planner.DefaultConfig(),
	}
	if withSessions {
		db, err := bstore.OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		st, err := session.NewStore(db, nil)
		require.NoError(t, err)
		opts.Sessions = st
		opts.Audit = extensions.NewMemoryAuditLogger(64, nil)
	}
	s, err := New(testBundle(t), opts)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_NilBundle(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, http.MethodGet, "/v1/goap/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	h := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "kitchen", h.Catalog)
	assert.Equal(t, 3, h.Actions)
	assert.False(t, h.Sessions)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestID_Propagated(t *testing.T) {
	s := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/v1/goap/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestCatalog(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, http.MethodGet, "/v1/goap/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Name       string                     `json:"name"`
		Conditions []string                   `json:"conditions"`
		Phases     map[string]string          `json:"phases"`
		Initial    map[string]bool            `json:"initial"`
		Goals      map[string]map[string]bool `json:"goals"`
		Actions    []struct {
			ID   string `json:"id"`
			Risk string `json:"risk"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "kitchen", body.Name)
	assert.Equal(t, []string{"installed", "configured", "deployed"}, body.Conditions)
	assert.Equal(t, "release", body.Phases["1"])
	assert.False(t, body.Initial["installed"])
	assert.Equal(t, map[string]bool{"deployed": true}, body.Goals["live"])
	require.Len(t, body.Actions, 3)
	assert.Equal(t, "high", body.Actions[2].Risk)
}

func TestSetBundle_SwapsCatalog(t *testing.T) {
	s := newTestServer(t, false)

	b := testBundle(t)
	b.Name = "reloaded"
	s.SetBundle(b)
	s.SetBundle(nil)

	h := decode[HealthResponse](t, do(t, s, http.MethodGet, "/v1/goap/health", nil))
	assert.Equal(t, "reloaded", h.Catalog)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	do(t, s, http.MethodGet, "/v1/goap/health", nil)

	rec := do(t, s, http.MethodGet, "/v1/goap/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goap_http_requests_total")
}

// =============================================================================
// Planning
// =============================================================================

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		wantOK   bool
		wantKind string
		wantIDs  []string
		wantCost float64
	}{
		{
			name:     "goal by name",
			body:     map[string]any{"goal_name": "live"},
			wantOK:   true,
			wantIDs:  []string{"install", "configure", "deploy"},
			wantCost: 7,
		},
		{
			name:     "explicit goal and state",
			body:     map[string]any{"state": map[string]bool{"installed": true}, "goal": map[string]bool{"configured": true}},
			wantOK:   true,
			wantIDs:  []string{"configure"},
			wantCost: 2,
		},
		{
			name:    "already satisfied",
			body:    map[string]any{"state": map[string]bool{"configured": true}, "goal_name": "ready"},
			wantOK:  true,
			wantIDs: []string{},
		},
		{
			name:     "unreachable",
			body:     map[string]any{"state": map[string]bool{"installed": true}, "goal": map[string]bool{"installed": false}},
			wantKind: string(planner.FailureNoPlan),
		},
		{
			name:     "node cap",
			body:     map[string]any{"goal_name": "live", "max_nodes": 1},
			wantKind: string(planner.FailureSearchLimit),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, false)
			rec := do(t, s, http.MethodPost, "/v1/goap/plan", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			r := decode[resultBody](t, rec)
			assert.Equal(t, tt.wantOK, r.Success)
			if tt.wantOK {
				assert.Equal(t, tt.wantIDs, r.ids())
				assert.Equal(t, tt.wantCost, r.TotalCost)
			} else {
				assert.Equal(t, tt.wantKind, r.FailureKind)
			}
		})
	}
}

func TestPlan_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{"missing goal", map[string]any{}, "INVALID_REQUEST"},
		{"unknown goal", map[string]any{"goal_name": "nope"}, "UNKNOWN_GOAL"},
		{"unknown condition in state", map[string]any{"state": map[string]bool{"x": true}, "goal_name": "ready"}, "UNKNOWN_CONDITION"},
		{"unknown condition in goal", map[string]any{"goal": map[string]bool{"x": true}}, "UNKNOWN_CONDITION"},
		{"negative weight", map[string]any{"goal_name": "ready", "heuristic_weight": -1}, "INVALID_REQUEST"},
		{"not json", "plain", "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, false)
			rec := do(t, s, http.MethodPost, "/v1/goap/plan", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestPlanBatch(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, http.MethodPost, "/v1/goap/plan/batch", map[string]any{
		"goal_names": []string{"ready", "live"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	results := decode[map[string]resultBody](t, rec)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"install", "configure"}, results["ready"].ids())
	assert.Equal(t, []string{"install", "configure", "deploy"}, results["live"].ids())

	rec = do(t, s, http.MethodPost, "/v1/goap/plan/batch", map[string]any{"goal_names": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/goap/plan/batch", map[string]any{"goal_names": []string{"ready", "nope"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlan_MaxNodesCannotRaiseCap(t *testing.T) {
	opts := Options{Server: config.Default().Server, Planner: planner.DefaultConfig()}
	opts.Planner.MaxNodes = 2
	s, err := New(testBundle(t), opts)
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/v1/goap/plan", map[string]any{"goal_name": "live", "max_nodes": 200000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode[resultBody](t, rec)
	assert.False(t, r.Success)
	assert.Equal(t, string(planner.FailureSearchLimit), r.FailureKind)
	assert.Equal(t, 3, r.NodesExplored)
}

func TestPlan_MaxNodesCappedOnDefaultCatalog(t *testing.T) {
	b, err := catalog.Default()
	require.NoError(t, err)
	s, err := New(b, Options{Server: config.Default().Server, Planner: planner.DefaultConfig()})
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/v1/goap/plan", map[string]any{"goal_name": "full", "max_nodes": 200000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode[resultBody](t, rec)
	assert.False(t, r.Success)
	assert.Equal(t, string(planner.FailureSearchLimit), r.FailureKind)
	assert.Equal(t, planner.DefaultMaxNodes+1, r.NodesExplored)
}

func TestPlan_RateLimited(t *testing.T) {
	opts := Options{Server: config.Default().Server, Planner: planner.DefaultConfig()}
	opts.Server.SearchRate = 0.001
	opts.Server.SearchBurst = 1
	s, err := New(testBundle(t), opts)
	require.NoError(t, err)

	body := map[string]any{"goal_name": "ready"}
	rec := do(t, s, http.MethodPost, "/v1/goap/plan", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/goap/plan", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decode[ErrorResponse](t, rec).Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Non-search endpoints are not throttled.
	rec = do(t, s, http.MethodPost, "/v1/goap/summary", map[string]any{"action_ids": []string{"install"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidate(t *testing.T) {
	s := newTestServer(t, false)

	rec := do(t, s, http.MethodPost, "/v1/goap/validate", map[string]any{
		"action_ids": []string{"install", "configure", "deploy"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[planner.ValidationResult](t, rec)
	assert.True(t, v.Valid)
	assert.Equal(t, []string{"configure"}, v.Dependencies["deploy"])
	assert.Len(t, v.Warnings, 1)

	rec = do(t, s, http.MethodPost, "/v1/goap/validate", map[string]any{"action_ids": []string{"configure"}})
	v = decode[planner.ValidationResult](t, rec)
	assert.False(t, v.Valid)
	require.Len(t, v.Issues, 1)
	assert.Contains(t, v.Issues[0], "installed")

	rec = do(t, s, http.MethodPost, "/v1/goap/validate", map[string]any{"action_ids": []string{}})
	v = decode[planner.ValidationResult](t, rec)
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"plan is empty"}, v.Issues)

	rec = do(t, s, http.MethodPost, "/v1/goap/validate", map[string]any{"action_ids": []string{"launch"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_ACTION", decode[ErrorResponse](t, rec).Code)

	rec = do(t, s, http.MethodPost, "/v1/goap/validate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecute(t *testing.T) {
	s := newTestServer(t, false)

	rec := do(t, s, http.MethodPost, "/v1/goap/execute", map[string]any{
		"action_ids": []string{"install", "configure"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success         bool `json:"success"`
		ExecutedActions []struct {
			ID string `json:"id"`
		} `json:"executed_actions"`
		FinalState map[string]bool `json:"final_state"`
		Logs       []string        `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.ExecutedActions, 2)
	assert.Equal(t, "configure", body.ExecutedActions[1].ID)
	assert.True(t, body.FinalState["configured"])
	assert.NotEmpty(t, body.Logs)

	rec = do(t, s, http.MethodPost, "/v1/goap/execute", map[string]any{"action_ids": []string{"deploy"}})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
}

func TestSummary(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, http.MethodPost, "/v1/goap/summary", map[string]any{
		"action_ids": []string{"install", "configure", "deploy"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	sum := decode[planner.PlanSummary](t, rec)
	assert.Equal(t, 3, sum.TotalActions)
	assert.Equal(t, 7.0, sum.TotalCost)
	assert.Equal(t, 9.0, sum.TotalHours)
	assert.Equal(t, 2, sum.EstimatedDays)
	require.Len(t, sum.Phases, 2)
}

func TestGraph(t *testing.T) {
	s := newTestServer(t, false)
	ids := []string{"install", "configure", "deploy"}

	rec := do(t, s, http.MethodPost, "/v1/goap/graph", map[string]any{"action_ids": ids})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "graph TD\n"))
	assert.Contains(t, rec.Body.String(), "install --> configure")

	rec = do(t, s, http.MethodPost, "/v1/goap/graph", map[string]any{"action_ids": ids, "format": "dot"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "graphviz")
	assert.Contains(t, rec.Body.String(), `"configure" -> "deploy"`)

	rec = do(t, s, http.MethodPost, "/v1/goap/graph", map[string]any{"action_ids": ids, "format": "svg"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Sessions
// =============================================================================

func TestAudit(t *testing.T) {
	s := newTestServer(t, false)

	rec := do(t, s, http.MethodPost, "/v1/goap/audit", map[string]any{
		"action_ids": []string{"install", "configure", "deploy"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report struct {
		Findings []struct {
			ActionID       string `json:"action_id"`
			Field          string `json:"field"`
			Classification string `json:"classification"`
		} `json:"findings"`
		Counts  map[string]int `json:"counts"`
		Flagged []string       `json:"flagged"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, []string{"deploy"}, report.Flagged)
	assert.Equal(t, map[string]int{"production": 2}, report.Counts)
	require.Len(t, report.Findings, 2)
	assert.Equal(t, "commands", report.Findings[0].Field)
	assert.Equal(t, "rollback", report.Findings[1].Field)

	rec = do(t, s, http.MethodPost, "/v1/goap/audit", map[string]any{"action_ids": []string{"install"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"findings":[],"counts":{},"flagged":[]}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/v1/goap/audit", map[string]any{"action_ids": []string{"bogus"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_ACTION", decode[ErrorResponse](t, rec).Code)
}

func TestSessions_Disabled(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, http.MethodPost, "/v1/goap/sessions", map[string]any{"goal": "ready"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SESSIONS_DISABLED", decode[ErrorResponse](t, rec).Code)
}

func TestSessions_Lifecycle(t *testing.T) {
	s := newTestServer(t, true)

	// Create.
	rec := do(t, s, http.MethodPost, "/v1/goap/sessions", map[string]any{"goal": "live"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[sessionBody](t, rec).Session
	assert.Equal(t, int64(1), created.Revision)
	assert.Empty(t, created.TrueConditions)
	path := "/v1/goap/sessions/" + created.ID.String()

	// Get.
	rec = do(t, s, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[sessionBody](t, rec).Session.ID)

	// List.
	rec = do(t, s, http.MethodGet, "/v1/goap/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sessions []session.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Sessions, 1)

	// Update state.
	rec = do(t, s, http.MethodPut, path+"/state", map[string]any{
		"state":    map[string]bool{"installed": true},
		"revision": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[sessionBody](t, rec).Session
	assert.Equal(t, int64(2), updated.Revision)
	assert.Equal(t, []string{"installed"}, updated.TrueConditions)

	// Stale revision.
	rec = do(t, s, http.MethodPut, path+"/state", map[string]any{
		"state":    map[string]bool{},
		"revision": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "REVISION_CONFLICT", decode[ErrorResponse](t, rec).Code)

	// Replan from the held state after deploy failed.
	rec = do(t, s, http.MethodPost, path+"/replan", map[string]any{"failed_action": "deploy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	replanned := decode[sessionBody](t, rec)
	require.NotNil(t, replanned.Result)
	assert.True(t, replanned.Result.Success)
	assert.Equal(t, []string{"configure", "deploy"}, replanned.Result.ids())
	assert.Equal(t, "deploy", replanned.Session.LastFailedAction)
	assert.Equal(t, int64(3), replanned.Session.Revision)

	// Excluding the only producer of the goal leaves no plan.
	rec = do(t, s, http.MethodPost, path+"/replan", map[string]any{
		"failed_action":  "deploy",
		"exclude_failed": true,
		"state":          map[string]bool{"installed": true, "configured": true},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	replanned = decode[sessionBody](t, rec)
	assert.False(t, replanned.Result.Success)
	assert.Equal(t, string(planner.FailureNoPlan), replanned.Result.FailureKind)
	assert.Equal(t, []string{"installed", "configured"}, replanned.Session.TrueConditions)

	// Delete.
	rec = do(t, s, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// History outlives the session, newest first.
	rec = do(t, s, http.MethodGet, path+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Events []extensions.AuditEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Events, 6)

	types := make([]string, 0, len(history.Events))
	for _, ev := range history.Events {
		types = append(types, ev.EventType)
		assert.Equal(t, created.ID.String(), ev.ResourceID)
		assert.NotEmpty(t, ev.RequestID)
	}
	assert.Equal(t, []string{
		"session.delete", "session.replan", "session.replan",
		"session.update", "session.update", "session.create",
	}, types)
	assert.Equal(t, extensions.OutcomeFailure, history.Events[3].Outcome)
	assert.Contains(t, history.Events[3].Metadata["error"], "revision conflict")
	assert.Equal(t, extensions.OutcomeSuccess, history.Events[4].Outcome)
	assert.Equal(t, float64(2), history.Events[4].Metadata["revision"])
	assert.Equal(t, "deploy", history.Events[1].Metadata["failed_action"])
	assert.Equal(t, false, history.Events[1].Metadata["plan_found"])
	assert.Equal(t, "live", history.Events[5].Metadata["goal"])
}

func TestSessions_HistoryWithoutAudit(t *testing.T) {
	db, err := bstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st, err := session.NewStore(db, nil)
	require.NoError(t, err)

	s, err := New(testBundle(t), Options{
		Server:   config.Default().Server,
		Planner:  planner.DefaultConfig(),
		Sessions: st,
	})
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/v1/goap/sessions", map[string]any{"goal": "ready"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[sessionBody](t, rec).Session.ID

	rec = do(t, s, http.MethodGet, "/v1/goap/sessions/"+id.String()+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
}

func TestSessions_Rejects(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"create without goal", http.MethodPost, "/v1/goap/sessions", map[string]any{}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"create unknown goal", http.MethodPost, "/v1/goap/sessions", map[string]any{"goal": "nope"}, http.StatusBadRequest, "UNKNOWN_GOAL"},
		{"create unknown goal condition", http.MethodPost, "/v1/goap/sessions", map[string]any{"goal_conditions": map[string]bool{"x": true}}, http.StatusUnprocessableEntity, "INVALID_SESSION"},
		{"bad id", http.MethodGet, "/v1/goap/sessions/not-a-uuid", nil, http.StatusBadRequest, "INVALID_SESSION_ID"},
		{"missing", http.MethodGet, "/v1/goap/sessions/00000000-0000-0000-0000-000000000001", nil, http.StatusNotFound, "SESSION_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}

	rec := do(t, s, http.MethodPost, "/v1/goap/sessions", map[string]any{"goal": "ready"})
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/v1/goap/sessions/" + decode[sessionBody](t, rec).Session.ID.String()

	rec = do(t, s, http.MethodPost, path+"/replan", map[string]any{"failed_action": "launch"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_ACTION", decode[ErrorResponse](t, rec).Code)

	rec = do(t, s, http.MethodPut, path+"/state", map[string]any{"state": map[string]bool{"x": true}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_CONDITION", decode[ErrorResponse](t, rec).Code)
}
