// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"time"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// Failure reasons reported by the search.
const (
	ReasonNoPlan = "No valid plan found to reach goal state"
)

// FailureKind classifies an unsuccessful planning result.
type FailureKind string

const (
	// FailureNone marks a successful result.
	FailureNone FailureKind = ""

	// FailureNoPlan means the open set was exhausted: the goal is unreachable.
	FailureNoPlan FailureKind = "no_plan"

	// FailureSearchLimit means the node budget was exceeded.
	FailureSearchLimit FailureKind = "search_limit"

	// FailureCancelled means the context was cancelled or its deadline passed.
	FailureCancelled FailureKind = "cancelled"

	// FailureInvalidInput means the start state or goal did not match the catalog.
	FailureInvalidInput FailureKind = "invalid_input"
)

// PlanningResult is the outcome of one search.
type PlanningResult struct {
	Success        bool             `json:"success"`
	Plan           []catalog.Action `json:"plan"`
	TotalCost      float64          `json:"total_cost"`
	TotalHours     float64          `json:"total_hours"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	FailureKind    FailureKind      `json:"failure_kind,omitempty"`
	NodesExplored  int              `json:"nodes_explored"`
	PlanningTime   time.Duration    `json:"-"`
	PlanningTimeMs float64          `json:"planning_time_ms"`
}

// ActionIDs returns the IDs of the planned actions in order.
func (r PlanningResult) ActionIDs() []string {
	return actionIDs(r.Plan)
}

// ValidationResult is the outcome of re-simulating a candidate plan.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`

	// Dependencies maps an action ID to the IDs of earlier actions whose
	// effects match one of its preconditions.
	Dependencies map[string][]string `json:"dependencies"`
}

// ExecutionResult is the outcome of a simulated plan execution.
type ExecutionResult struct {
	Success         bool             `json:"success"`
	ExecutedActions []catalog.Action `json:"executed_actions"`
	FailedAction    *catalog.Action  `json:"failed_action,omitempty"`
	Error           string           `json:"error,omitempty"`
	FinalState      worldstate.State `json:"final_state"`
	Logs            []string         `json:"logs"`
}

func actionIDs(plan []catalog.Action) []string {
	ids := make([]string, len(plan))
	for i, a := range plan {
		ids[i] = a.ID
	}
	return ids
}

// Simulate applies the effects of plan to start in order, without checking
// preconditions, and returns the final state.
func Simulate(start worldstate.State, plan []catalog.Action) worldstate.State {
	state := start
	for _, a := range plan {
		state = a.Apply(state)
	}
	return state
}
