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
	"math"
	"sort"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
)

// HoursPerDay converts estimated hours into working days.
const HoursPerDay = 8

// PhaseSummary aggregates the actions of one phase.
type PhaseSummary struct {
	Phase   int      `json:"phase"`
	Actions int      `json:"actions"`
	Hours   float64  `json:"hours"`
	Cost    float64  `json:"cost"`
	IDs     []string `json:"action_ids"`
}

// PlanSummary aggregates a plan for reporting.
type PlanSummary struct {
	TotalActions  int            `json:"total_actions"`
	TotalCost     float64        `json:"total_cost"`
	TotalHours    float64        `json:"total_hours"`
	EstimatedDays int            `json:"estimated_days"`
	Phases        []PhaseSummary `json:"phases"`
}

// Summarize aggregates cost, hours and a per-phase breakdown of plan.
//
// Description:
//
//	EstimatedDays rounds TotalHours up to whole days of HoursPerDay.
//	Phases are listed in ascending phase order; only phases that contain
//	at least one action appear.
func Summarize(plan []catalog.Action) PlanSummary {
	summary := PlanSummary{
		TotalActions: len(plan),
		Phases:       []PhaseSummary{},
	}

	byPhase := make(map[int]*PhaseSummary)
	for _, a := range plan {
		summary.TotalCost += a.Cost
		summary.TotalHours += a.EstimatedHours

		ps, ok := byPhase[a.Phase]
		if !ok {
			ps = &PhaseSummary{Phase: a.Phase, IDs: []string{}}
			byPhase[a.Phase] = ps
		}
		ps.Actions++
		ps.Hours += a.EstimatedHours
		ps.Cost += a.Cost
		ps.IDs = append(ps.IDs, a.ID)
	}

	summary.EstimatedDays = int(math.Ceil(summary.TotalHours / HoursPerDay))

	for _, ps := range byPhase {
		summary.Phases = append(summary.Phases, *ps)
	}
	sort.Slice(summary.Phases, func(i, j int) bool {
		return summary.Phases[i].Phase < summary.Phases[j].Phase
	})

	return summary
}
