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
	"fmt"
	"strings"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// ValidatePlan re-simulates plan from start and reports ordering problems.
//
// Description:
//
//	Each action's preconditions are checked against the state reached by
//	all strictly earlier actions of the plan. A violation is recorded as
//	an issue naming the action, its position and the unmet keys; the
//	action's effects are still applied so later positions are checked
//	against what the plan intends. High and critical risk actions add a
//	warning but never affect validity.
//
//	Dependencies link each action to the earlier actions that set one of
//	its preconditions to the required value. This is a causal-link
//	heuristic, not a minimal dependency set: an action whose
//	preconditions already hold in start has no dependencies.
//
// Inputs:
//
//	start - The state the plan is simulated from. Not modified.
//	plan - The candidate action sequence.
//
// Outputs:
//
//	ValidationResult - Valid is true iff there are no issues. An empty
//	                   plan is itself an issue.
//
// Thread Safety: Safe for concurrent use.
func ValidatePlan(start worldstate.State, plan []catalog.Action) ValidationResult {
	result := ValidationResult{
		Issues:       []string{},
		Warnings:     []string{},
		Dependencies: make(map[string][]string, len(plan)),
	}

	if len(plan) == 0 {
		result.Issues = append(result.Issues, ErrEmptyPlan.Error())
		return result
	}

	state := start
	for i, action := range plan {
		if unmet := action.UnmetPreconditions(state); len(unmet) > 0 {
			result.Issues = append(result.Issues, fmt.Sprintf(
				"action %q at position %d has unmet preconditions: %s",
				action.ID, i, strings.Join(unmet, ", ")))
		}

		if action.Risk.IsElevated() {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"action %q is %s risk", action.ID, action.Risk))
		}

		result.Dependencies[action.ID] = dependenciesOf(plan, i)
		state = action.Apply(state)
	}

	result.Valid = len(result.Issues) == 0
	return result
}

// dependenciesOf returns the IDs of the actions before position i whose
// effects match one of plan[i]'s preconditions, in plan order without
// duplicates.
func dependenciesOf(plan []catalog.Action, i int) []string {
	deps := []string{}
	seen := make(map[string]struct{})
	pre := plan[i].Preconditions
	for j := 0; j < i; j++ {
		if pre.Matches(plan[j].Effects) == 0 {
			continue
		}
		if _, ok := seen[plan[j].ID]; ok {
			continue
		}
		seen[plan[j].ID] = struct{}{}
		deps = append(deps, plan[j].ID)
	}
	return deps
}
