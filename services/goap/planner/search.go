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
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// FindPlan searches for the cheapest action sequence from start to goal.
//
// Description:
//
//	Best-first A* over world states. g is the summed action cost, h is the
//	number of goal keys the state does not satisfy and f = g + w*h with w
//	the configured heuristic weight. Ties on f are broken by discovery
//	order, so the same inputs always produce the same plan.
//
//	Successors are generated in catalog order. An expanded state is never
//	expanded again unless cfg.ReopenClosed is set, in which case a state
//	is re-expanded whenever a strictly cheaper path to it is found.
//
//	If the goal already holds in start the result is an immediate success
//	with an empty plan and zero nodes explored.
//
// Inputs:
//
//	ctx - Cancellation for long searches. Checked every
//	      cfg.CancelCheckInterval pops.
//	cat - The action catalog. Must not be nil.
//	start - The initial state. Must use the catalog schema.
//	goal - The goal predicate. Must use the catalog schema.
//	cfg - Search configuration. Zero fields take their defaults.
//
// Outputs:
//
//	PlanningResult - Never an error value: invalid input, an unreachable
//	                 goal, an exhausted node budget and cancellation are
//	                 all reported as failures with a FailureKind.
//
// Thread Safety: Safe for concurrent use. The catalog is only read.
func FindPlan(ctx context.Context, cat *catalog.Catalog, start worldstate.State, goal worldstate.Predicate, cfg Config) PlanningResult {
	ctx, span := tracer.Start(ctx, "goap.FindPlan",
		trace.WithAttributes(
			attribute.Int("goal_keys", goal.Len()),
			attribute.Float64("heuristic_weight", cfg.HeuristicWeight),
		),
	)
	defer span.End()

	began := time.Now()
	result := search(ctx, cat, start, goal, cfg.withDefaults())
	result.PlanningTime = time.Since(began)
	result.PlanningTimeMs = float64(result.PlanningTime.Microseconds()) / 1000

	span.SetAttributes(
		attribute.Bool("success", result.Success),
		attribute.Int("nodes_explored", result.NodesExplored),
		attribute.Int("plan_length", len(result.Plan)),
	)
	if !result.Success {
		span.SetStatus(codes.Error, result.FailureReason)
	}
	metrics.recordSearch(ctx, result)

	return result
}

func search(ctx context.Context, cat *catalog.Catalog, start worldstate.State, goal worldstate.Predicate, cfg Config) PlanningResult {
	if cat == nil {
		return failure(FailureInvalidInput, ErrNilCatalog.Error(), 0)
	}
	if start.Schema() != cat.Schema() || goal.Schema() != cat.Schema() {
		return failure(FailureInvalidInput, ErrSchemaMismatch.Error(), 0)
	}

	if goal.SatisfiedBy(start) {
		return PlanningResult{Success: true, Plan: []catalog.Action{}}
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	weight := cfg.HeuristicWeight
	if cfg.ReopenClosed {
		weight *= heuristicScale(cat)
	}
	newNode := func(state worldstate.State, g float64, parent *searchNode, action int) *searchNode {
		h := goal.Distance(state)
		n := &searchNode{state: state, g: g, h: h, f: g + weight*float64(h), parent: parent, action: action}
		if parent != nil {
			n.depth = parent.depth + 1
		}
		return n
	}

	open := newOpenSet(64)
	open.push(newNode(start, 0, nil, -1))

	// States are keyed by their bitset; within one schema that is
	// equivalent to the canonical state key.
	closed := make(map[uint64]struct{})
	best := map[uint64]float64{start.Bits(): 0}

	explored := 0
	for open.len() > 0 {
		if explored%cfg.CancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return failure(FailureCancelled, fmt.Sprintf("search cancelled: %v", err), explored)
			}
		}

		node := open.pop()
		explored++

		if goal.SatisfiedBy(node.state) {
			return success(cat, node, explored)
		}
		if explored > cfg.MaxNodes {
			return failure(FailureSearchLimit,
				fmt.Sprintf("search space too large (>%d nodes explored)", cfg.MaxNodes), explored)
		}

		key := node.state.Bits()
		if cfg.ReopenClosed {
			if g, ok := best[key]; ok && node.g > g {
				continue
			}
		} else {
			if _, ok := closed[key]; ok {
				continue
			}
			closed[key] = struct{}{}
		}

		for i := 0; i < cat.Len(); i++ {
			action := cat.At(i)
			if !action.PreconditionsSatisfied(node.state) {
				continue
			}
			next := action.Apply(node.state)
			nextKey := next.Bits()
			ng := node.g + action.Cost

			if cfg.ReopenClosed {
				if g, ok := best[nextKey]; ok && ng >= g {
					continue
				}
				best[nextKey] = ng
			} else if _, ok := closed[nextKey]; ok {
				continue
			}

			open.push(newNode(next, ng, node, i))
		}
	}

	return failure(FailureNoPlan, ReasonNoPlan, explored)
}

// heuristicScale returns the lowest cost per effect flag over the catalog,
// capped at 1. An action changes at most as many goal flags as it has
// effects, so scaling the flag distance by this factor never overestimates
// the remaining cost.
func heuristicScale(cat *catalog.Catalog) float64 {
	scale := 1.0
	for i := 0; i < cat.Len(); i++ {
		a := cat.At(i)
		if n := a.Effects.Len(); n > 0 {
			scale = min(scale, a.Cost/float64(n))
		}
	}
	return scale
}

func success(cat *catalog.Catalog, goalNode *searchNode, explored int) PlanningResult {
	indices := goalNode.path()
	plan := make([]catalog.Action, len(indices))
	var hours float64
	for i, idx := range indices {
		plan[i] = cat.At(idx)
		hours += plan[i].EstimatedHours
	}
	return PlanningResult{
		Success:       true,
		Plan:          plan,
		TotalCost:     goalNode.g,
		TotalHours:    hours,
		NodesExplored: explored,
	}
}

func failure(kind FailureKind, reason string, explored int) PlanningResult {
	return PlanningResult{
		Success:       false,
		Plan:          []catalog.Action{},
		FailureReason: reason,
		FailureKind:   kind,
		NodesExplored: explored,
	}
}
