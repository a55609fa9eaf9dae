// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/bjpl/meal-assistant-sub008/pkg/ux"
	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/planner"
	"github.com/bjpl/meal-assistant-sub008/services/goap/policy"
)

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func actionLine(i int, act catalog.Action) string {
	return fmt.Sprintf("%2d. %-28s %s", i+1, act.ID,
		ux.Styles.Muted.Render(fmt.Sprintf("cost %s, %sh, %s", formatNumber(act.Cost), formatNumber(act.EstimatedHours), act.Risk)))
}

func (a *app) renderPlanningResult(r planner.PlanningResult) {
	p := a.printer
	if !r.Success {
		p.Error(r.FailureReason)
		p.KeyValue("failure", string(r.FailureKind))
		p.KeyValue("nodes explored", strconv.Itoa(r.NodesExplored))
		if r.FailureKind == planner.FailureSearchLimit {
			p.Info("Retry with a larger --weight (e.g. --weight 5) or --max-nodes")
		}
		return
	}

	if len(r.Plan) == 0 {
		p.Success("Goal already satisfied, nothing to do")
		return
	}

	p.Success(fmt.Sprintf("Plan found: %d actions", len(r.Plan)))
	lines := make([]string, 0, len(r.Plan))
	for i, act := range r.Plan {
		lines = append(lines, actionLine(i, act))
	}
	p.Box("Plan", lines...)
	p.KeyValue("total cost", formatNumber(r.TotalCost))
	p.KeyValue("total hours", formatNumber(r.TotalHours))
	p.KeyValue("nodes explored", strconv.Itoa(r.NodesExplored))
	p.KeyValue("planning time", fmt.Sprintf("%.2fms", r.PlanningTimeMs))
}

func (a *app) renderValidation(v planner.ValidationResult) {
	p := a.printer
	if v.Valid {
		p.Success("Plan is valid")
	} else {
		p.Error("Plan is invalid")
	}
	if len(v.Issues) > 0 {
		p.WarningBox("Issues", v.Issues...)
	}
	for _, w := range v.Warnings {
		p.Warning(w)
	}

	if len(v.Dependencies) == 0 || p.Plain() {
		return
	}
	p.Muted("Dependencies:")
	for _, id := range slices.Sorted(maps.Keys(v.Dependencies)) {
		if deps := v.Dependencies[id]; len(deps) > 0 {
			p.Muted(fmt.Sprintf("  %s %s %s", id, ux.IconArrow, strings.Join(deps, ", ")))
		}
	}
}

func (a *app) renderExecution(r planner.ExecutionResult) {
	p := a.printer
	for _, line := range r.Logs {
		p.Info(line)
	}
	if r.Success {
		p.Success(fmt.Sprintf("Executed %d actions", len(r.ExecutedActions)))
	} else {
		p.Error(r.Error)
		if r.FailedAction != nil {
			p.KeyValue("failed action", r.FailedAction.ID)
		}
		p.KeyValue("completed", strconv.Itoa(len(r.ExecutedActions)))
	}
	p.KeyValue("final state", r.FinalState.String())
}

func (a *app) renderSummary(s planner.PlanSummary) {
	p := a.printer
	p.Title("Plan summary")
	p.KeyValue("actions", strconv.Itoa(s.TotalActions))
	p.KeyValue("total cost", formatNumber(s.TotalCost))
	p.KeyValue("total hours", formatNumber(s.TotalHours))
	p.KeyValue("estimated days", strconv.Itoa(s.EstimatedDays))

	total := int(math.Round(s.TotalHours))
	for _, ph := range s.Phases {
		bar := ux.ProgressBar(int(math.Round(ph.Hours)), total, 20, p.Plain())
		p.Line(fmt.Sprintf("  %-24s %s  %d actions, %sh, cost %s",
			a.bundle.PhaseName(ph.Phase), bar, ph.Actions, formatNumber(ph.Hours), formatNumber(ph.Cost)))
	}
}

func (a *app) renderAudit(r policy.Report, planLen int) {
	p := a.printer
	if r.Clean() {
		p.Success(fmt.Sprintf("No risky commands in %d actions", planLen))
		return
	}

	p.Warning(fmt.Sprintf("%d findings in %d of %d actions", len(r.Findings), len(r.Flagged), planLen))
	lines := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		lines = append(lines, fmt.Sprintf("%-24s %s[%d] %s/%s (%s): %s",
			f.ActionID, f.Field, f.Index, f.Classification, f.PatternID, f.Confidence, f.Text))
	}
	p.WarningBox("Findings", lines...)
	for _, name := range slices.Sorted(maps.Keys(r.Counts)) {
		p.KeyValue(name, strconv.Itoa(r.Counts[name]))
	}
}

func (a *app) renderCatalog(b *catalog.Bundle, cat *catalog.Catalog) {
	p := a.printer
	p.Title(fmt.Sprintf("%s: %d actions over %d conditions", b.Name, cat.Len(), b.Schema.Len()))

	for _, phase := range cat.Phases() {
		var lines []string
		i := 0
		for _, act := range cat.Actions() {
			if act.Phase != phase {
				continue
			}
			lines = append(lines, actionLine(i, act))
			i++
		}
		p.Box(fmt.Sprintf("Phase %d: %s", phase, b.PhaseName(phase)), lines...)
	}

	for _, name := range b.GoalNames() {
		goal, _ := b.Goal(name)
		p.KeyValue("goal "+name, fmt.Sprintf("%d conditions", goal.Len()))
	}
}
