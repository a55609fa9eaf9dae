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
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// StepRunner performs the side effects of one action.
//
// Description:
//
//	The executor calls RunStep after the action's preconditions have been
//	re-checked and before its effects are applied. A returned error stops
//	the execution at that action. Implementations must not retain state
//	between calls that changes the outcome of later steps; the executor
//	owns the world state.
type StepRunner interface {
	RunStep(ctx context.Context, action catalog.Action, state worldstate.State) error
}

// StepRunnerFunc adapts a function to StepRunner.
type StepRunnerFunc func(ctx context.Context, action catalog.Action, state worldstate.State) error

// RunStep implements StepRunner.
func (f StepRunnerFunc) RunStep(ctx context.Context, action catalog.Action, state worldstate.State) error {
	return f(ctx, action, state)
}

// SimulatedRunner performs no side effects. Every step succeeds.
type SimulatedRunner struct{}

// RunStep implements StepRunner.
func (SimulatedRunner) RunStep(context.Context, catalog.Action, worldstate.State) error {
	return nil
}

// Executor applies plans step by step.
//
// Description:
//
//	Execution is strictly sequential: each action's preconditions are
//	checked against the cumulative effects of every action executed
//	before it. Declared rollback steps are metadata only; when a step
//	fails the effects already applied are kept and reported in the final
//	state.
//
// Thread Safety: Safe for concurrent use if the StepRunner is.
type Executor struct {
	runner StepRunner
	logger *slog.Logger
}

// NewExecutor creates an executor.
//
// Inputs:
//
//	runner - Performs each step. If nil, uses SimulatedRunner.
//	logger - Logger for step logs. If nil, uses slog.Default().
//
// Outputs:
//
//	*Executor - The configured executor.
func NewExecutor(runner StepRunner, logger *slog.Logger) *Executor {
	if runner == nil {
		runner = SimulatedRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{runner: runner, logger: logger}
}

// Execute validates plan from start, then runs it.
//
// Description:
//
//	An invalid plan is rejected before any step runs. Otherwise every
//	action is re-checked against the running state immediately before it
//	executes, which also catches a StepRunner that was expected to change
//	the world and did not. Each executed action appends a trace of its
//	commands and its state diff to Logs.
//
// Inputs:
//
//	ctx - Cancellation between steps and inside the StepRunner.
//	start - The state execution starts from. Not modified.
//	plan - The actions to execute in order.
//
// Outputs:
//
//	ExecutionResult - On failure, FailedAction and Error describe the
//	                  step that stopped execution, ExecutedActions lists
//	                  the steps before it and FinalState holds their
//	                  effects.
func (e *Executor) Execute(ctx context.Context, start worldstate.State, plan []catalog.Action) ExecutionResult {
	ctx, span := tracer.Start(ctx, "goap.Execute",
		trace.WithAttributes(attribute.Int("plan_length", len(plan))),
	)
	defer span.End()

	result := e.execute(ctx, start, plan)

	span.SetAttributes(
		attribute.Bool("success", result.Success),
		attribute.Int("executed", len(result.ExecutedActions)),
	)
	if !result.Success {
		span.SetStatus(codes.Error, result.Error)
	}
	metrics.recordExecution(ctx, result)

	return result
}

func (e *Executor) execute(ctx context.Context, start worldstate.State, plan []catalog.Action) ExecutionResult {
	result := ExecutionResult{
		ExecutedActions: []catalog.Action{},
		FinalState:      start,
		Logs:            []string{},
	}

	validation := ValidatePlan(start, plan)
	if !validation.Valid {
		result.Error = fmt.Sprintf("%s: %s", ErrInvalidPlan, strings.Join(validation.Issues, "; "))
		result.Logs = append(result.Logs, "plan rejected: "+strings.Join(validation.Issues, "; "))
		e.logger.Warn("plan rejected before execution",
			slog.Int("plan_length", len(plan)),
			slog.Int("issues", len(validation.Issues)),
		)
		return result
	}

	state := start
	total := len(plan)
	for i := range plan {
		action := plan[i]

		if err := ctx.Err(); err != nil {
			result.FailedAction = &action
			result.Error = fmt.Sprintf("execution cancelled before %q: %v", action.ID, err)
			result.FinalState = state
			return result
		}

		if unmet := action.UnmetPreconditions(state); len(unmet) > 0 {
			result.FailedAction = &action
			result.Error = fmt.Sprintf("precondition check failed for %q: unmet %s",
				action.ID, strings.Join(unmet, ", "))
			result.FinalState = state
			result.Logs = append(result.Logs, fmt.Sprintf("[%d/%d] %s: FAILED (%s)",
				i+1, total, action, result.Error))
			e.logger.Warn("action precondition failed",
				slog.String("action", action.ID),
				slog.Int("position", i),
				slog.Any("unmet", unmet),
			)
			return result
		}

		result.Logs = append(result.Logs, fmt.Sprintf("[%d/%d] executing %s", i+1, total, action))
		for _, cmd := range action.Commands {
			result.Logs = append(result.Logs, "  $ "+cmd)
		}

		if err := e.runner.RunStep(ctx, action, state); err != nil {
			result.FailedAction = &action
			result.Error = fmt.Sprintf("step %q failed: %v", action.ID, err)
			result.FinalState = state
			result.Logs = append(result.Logs, fmt.Sprintf("[%d/%d] %s: FAILED (%v)", i+1, total, action, err))
			e.logger.Error("action step failed",
				slog.String("action", action.ID),
				slog.Int("position", i),
				slog.String("error", err.Error()),
			)
			return result
		}

		next := action.Apply(state)
		result.Logs = append(result.Logs, "  changes: "+worldstate.FormatChanges(worldstate.Diff(state, next)))
		state = next
		result.ExecutedActions = append(result.ExecutedActions, action)

		e.logger.Debug("action executed",
			slog.String("action", action.ID),
			slog.Int("position", i),
		)
	}

	result.Success = true
	result.FinalState = state
	return result
}
