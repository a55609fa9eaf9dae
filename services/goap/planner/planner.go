// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package planner implements goal-oriented action planning over boolean
// world states.
//
// Description:
//
//	The search (FindPlan), validation (ValidatePlan), summary and
//	dependency graph are pure functions of their inputs and safe to call
//	from any number of goroutines. Planner is a thin stateful wrapper that
//	holds the "current state" of one planning session across Replan calls.
//
//	catalog + (start, goal) → FindPlan → plan → ValidatePlan
//	    → Executor.Execute → on failure → Planner.Replan → new plan
//
// Thread Safety:
//
//	Planner guards its held state with a RWMutex: searches read a snapshot
//	and run without the lock, UpdateState and Replan serialize.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the planner logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithStepRunner sets the runner used by ExecutePlan.
func WithStepRunner(runner StepRunner) Option {
	return func(p *Planner) {
		if runner != nil {
			p.runner = runner
		}
	}
}

// ReplanOptions adjusts a Replan call.
type ReplanOptions struct {
	// ExcludeFailed removes the failed action from the catalog for this
	// search only. Off by default: the failed action may be proposed again.
	ExcludeFailed bool
}

// Planner holds the current state of one planning session.
type Planner struct {
	cat      *catalog.Catalog
	cfg      Config
	logger   *slog.Logger
	runner   StepRunner
	executor *Executor

	mu    sync.RWMutex
	state worldstate.State
}

// New creates a planner over cat starting from initial.
//
// Inputs:
//
//	cat - The action catalog. Must not be nil.
//	initial - The starting current state. Must use the catalog schema.
//	cfg - Search configuration. Zero fields take their defaults.
//	opts - Optional logger and step runner.
//
// Outputs:
//
//	*Planner - The planner.
//	error - ErrNilCatalog, ErrSchemaMismatch or ErrInvalidConfig.
func New(cat *catalog.Catalog, initial worldstate.State, cfg Config, opts ...Option) (*Planner, error) {
	if cat == nil {
		return nil, &Error{Operation: "New", Err: ErrNilCatalog}
	}
	if initial.Schema() != cat.Schema() {
		return nil, &Error{Operation: "New", Err: ErrSchemaMismatch}
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Operation: "New", Err: err}
	}

	p := &Planner{
		cat:    cat,
		cfg:    cfg,
		logger: slog.Default(),
		runner: SimulatedRunner{},
		state:  initial,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.executor = NewExecutor(p.runner, p.logger)
	return p, nil
}

// Catalog returns the planner's action catalog.
func (p *Planner) Catalog() *catalog.Catalog {
	return p.cat
}

// Config returns the effective search configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// CurrentState returns a snapshot of the held state.
func (p *Planner) CurrentState() worldstate.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// UpdateState replaces the held state.
func (p *Planner) UpdateState(state worldstate.State) error {
	if state.Schema() != p.cat.Schema() {
		return &Error{Operation: "UpdateState", Err: ErrSchemaMismatch}
	}
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	return nil
}

// FindPlan searches from the held state to goal.
func (p *Planner) FindPlan(ctx context.Context, goal worldstate.Predicate) PlanningResult {
	start := p.CurrentState()
	result := FindPlan(ctx, p.cat, start, goal, p.cfg)
	p.logResult("plan search finished", start, result)
	return result
}

// ValidatePlan validates plan from the held state.
func (p *Planner) ValidatePlan(ctx context.Context, plan []catalog.Action) ValidationResult {
	result := ValidatePlan(p.CurrentState(), plan)
	metrics.recordValidation(ctx, result)
	return result
}

// ExecutePlan simulates plan from the held state.
//
// Description:
//
//	The held state is not modified. Callers that want to continue from
//	the reached state pass ExecutionResult.FinalState to UpdateState, or
//	to Replan after a failure.
func (p *Planner) ExecutePlan(ctx context.Context, plan []catalog.Action) ExecutionResult {
	return p.executor.Execute(ctx, p.CurrentState(), plan)
}

// Replan overwrites the held state and searches again.
//
// Inputs:
//
//	ctx - Cancellation for the search.
//	failed - ID of the action that failed, or "". Recorded in logs and
//	         spans; excluded from the search only with opts.ExcludeFailed.
//	state - The state reached before the failure. Becomes the held state.
//	goal - The goal to plan for.
//	opts - Replan adjustments.
//
// Outputs:
//
//	PlanningResult - The new plan or a structured failure.
//	error - ErrSchemaMismatch if state does not use the catalog schema.
func (p *Planner) Replan(ctx context.Context, failed string, state worldstate.State, goal worldstate.Predicate, opts ReplanOptions) (PlanningResult, error) {
	ctx, span := tracer.Start(ctx, "goap.Replan",
		trace.WithAttributes(
			attribute.String("failed_action", failed),
			attribute.Bool("exclude_failed", opts.ExcludeFailed),
		),
	)
	defer span.End()

	if err := p.UpdateState(state); err != nil {
		return PlanningResult{}, &Error{Operation: "Replan", Err: err}
	}

	cat := p.cat
	if opts.ExcludeFailed && failed != "" {
		cat = cat.Without(failed)
	}

	p.logger.Info("replanning",
		slog.String("failed_action", failed),
		slog.String("state", state.Key()),
		slog.Bool("exclude_failed", opts.ExcludeFailed),
	)

	result := FindPlan(ctx, cat, state, goal, p.cfg)
	span.SetAttributes(attribute.Bool("success", result.Success))
	p.logResult("replan finished", state, result)
	return result, nil
}

// Summary aggregates plan.
func (p *Planner) Summary(plan []catalog.Action) PlanSummary {
	return Summarize(plan)
}

// DependencyGraph builds the causal-link graph of plan.
func (p *Planner) DependencyGraph(plan []catalog.Action) DependencyGraph {
	return BuildDependencyGraph(plan)
}

// ResolvePlan maps action IDs to catalog actions.
func (p *Planner) ResolvePlan(ids []string) ([]catalog.Action, error) {
	plan, err := p.cat.Resolve(ids)
	if err != nil {
		return nil, &Error{Operation: "ResolvePlan", Err: fmt.Errorf("resolving plan: %w", err)}
	}
	return plan, nil
}

func (p *Planner) logResult(msg string, start worldstate.State, r PlanningResult) {
	if r.Success {
		p.logger.Info(msg,
			slog.String("start", start.Key()),
			slog.Int("plan_length", len(r.Plan)),
			slog.Float64("total_cost", r.TotalCost),
			slog.Int("nodes_explored", r.NodesExplored),
			slog.Float64("planning_time_ms", r.PlanningTimeMs),
		)
		return
	}
	p.logger.Warn(msg,
		slog.String("start", start.Key()),
		slog.String("failure_kind", string(r.FailureKind)),
		slog.String("reason", r.FailureReason),
		slog.Int("nodes_explored", r.NodesExplored),
	)
}
