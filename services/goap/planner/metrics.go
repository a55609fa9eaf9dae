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
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("goap.planner")
	meter  = otel.Meter("goap.planner")
)

// plannerMetrics holds the package instruments. They are created on first
// use so that a meter provider installed by telemetry.Init is picked up.
type plannerMetrics struct {
	once sync.Once

	searches        metric.Int64Counter
	nodesExplored   metric.Int64Histogram
	searchDuration  metric.Float64Histogram
	executedActions metric.Int64Counter
	failedActions   metric.Int64Counter
	validations     metric.Int64Counter
}

var metrics plannerMetrics

// init lazily creates the instruments.
// Logs errors if creation fails but keeps planning (graceful degradation).
func (m *plannerMetrics) init() {
	m.once.Do(func() {
		var initErrors []string
		var err error

		m.searches, err = meter.Int64Counter("goap_search_total",
			metric.WithDescription("Number of plan searches by outcome"),
		)
		if err != nil {
			initErrors = append(initErrors, "searches: "+err.Error())
		}

		m.nodesExplored, err = meter.Int64Histogram("goap_search_nodes_explored",
			metric.WithDescription("Nodes popped from the open set per search"),
		)
		if err != nil {
			initErrors = append(initErrors, "nodes_explored: "+err.Error())
		}

		m.searchDuration, err = meter.Float64Histogram("goap_search_duration_seconds",
			metric.WithDescription("Wall-clock time per search"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "search_duration: "+err.Error())
		}

		m.executedActions, err = meter.Int64Counter("goap_executed_actions_total",
			metric.WithDescription("Actions applied by the executor"),
		)
		if err != nil {
			initErrors = append(initErrors, "executed_actions: "+err.Error())
		}

		m.failedActions, err = meter.Int64Counter("goap_failed_actions_total",
			metric.WithDescription("Actions that stopped an execution"),
		)
		if err != nil {
			initErrors = append(initErrors, "failed_actions: "+err.Error())
		}

		m.validations, err = meter.Int64Counter("goap_validation_total",
			metric.WithDescription("Plan validations by outcome"),
		)
		if err != nil {
			initErrors = append(initErrors, "validations: "+err.Error())
		}

		if len(initErrors) > 0 {
			slog.Error("failed to initialize some planner metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

func (m *plannerMetrics) recordSearch(ctx context.Context, r PlanningResult) {
	m.init()
	outcome := "success"
	if !r.Success {
		outcome = string(r.FailureKind)
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.searches != nil {
		m.searches.Add(ctx, 1, attrs)
	}
	if m.nodesExplored != nil {
		m.nodesExplored.Record(ctx, int64(r.NodesExplored), attrs)
	}
	if m.searchDuration != nil {
		m.searchDuration.Record(ctx, r.PlanningTime.Seconds(), attrs)
	}
}

func (m *plannerMetrics) recordExecution(ctx context.Context, r ExecutionResult) {
	m.init()
	if m.executedActions != nil {
		m.executedActions.Add(ctx, int64(len(r.ExecutedActions)))
	}
	if r.FailedAction != nil && m.failedActions != nil {
		m.failedActions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", r.FailedAction.ID)))
	}
}

func (m *plannerMetrics) recordValidation(ctx context.Context, r ValidationResult) {
	m.init()
	if m.validations != nil {
		m.validations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid", r.Valid)))
	}
}
