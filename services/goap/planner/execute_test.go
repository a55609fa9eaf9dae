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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

func TestExecutor_Success(t *testing.T) {
	f := newFixture(t)
	exec := NewExecutor(nil, nil)

	result := exec.Execute(context.Background(), f.schema.Empty(), []catalog.Action{f.install, f.configure})

	require.True(t, result.Success, result.Error)
	assert.Len(t, result.ExecutedActions, 2)
	assert.Nil(t, result.FailedAction)
	assert.Empty(t, result.Error)
	assert.ElementsMatch(t, []string{"installed", "configured"}, result.FinalState.True())

	logs := strings.Join(result.Logs, "\n")
	assert.Contains(t, logs, "[1/2] executing Install (install)")
	assert.Contains(t, logs, "$ make install")
	assert.Contains(t, logs, "installed: false→true")
	assert.Contains(t, logs, "[2/2] executing Configure (configure)")
}

func TestExecutor_RejectsInvalidPlan(t *testing.T) {
	f := newFixture(t)
	var calls int
	runner := StepRunnerFunc(func(context.Context, catalog.Action, worldstate.State) error {
		calls++
		return nil
	})
	exec := NewExecutor(runner, nil)

	result := exec.Execute(context.Background(), f.schema.Empty(), []catalog.Action{f.configure})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, ErrInvalidPlan.Error())
	assert.Contains(t, result.Error, "installed")
	assert.Empty(t, result.ExecutedActions)
	assert.Zero(t, calls, "no step runs for an invalid plan")
	assert.True(t, result.FinalState.Equal(f.schema.Empty()))
}

func TestExecutor_StepFailureKeepsAppliedEffects(t *testing.T) {
	f := newFixture(t)
	f.configure.Rollback = []string{"make uninstall"}
	runner := StepRunnerFunc(func(_ context.Context, a catalog.Action, _ worldstate.State) error {
		if a.ID == "configure" {
			return errors.New("config server unreachable")
		}
		return nil
	})
	exec := NewExecutor(runner, nil)

	result := exec.Execute(context.Background(), f.schema.Empty(), []catalog.Action{f.install, f.configure})

	assert.False(t, result.Success)
	require.NotNil(t, result.FailedAction)
	assert.Equal(t, "configure", result.FailedAction.ID)
	assert.Contains(t, result.Error, "config server unreachable")
	require.Len(t, result.ExecutedActions, 1)
	assert.Equal(t, "install", result.ExecutedActions[0].ID)
	// No rollback: install's effect stays applied.
	assert.Equal(t, []string{"installed"}, result.FinalState.True())
}

func TestExecutor_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	runner := StepRunnerFunc(func(context.Context, catalog.Action, worldstate.State) error {
		cancel()
		return nil
	})
	exec := NewExecutor(runner, nil)

	result := exec.Execute(ctx, f.schema.Empty(), []catalog.Action{f.install, f.configure})

	assert.False(t, result.Success)
	require.NotNil(t, result.FailedAction)
	assert.Equal(t, "configure", result.FailedAction.ID)
	assert.Contains(t, result.Error, "cancelled")
	assert.Equal(t, []string{"installed"}, result.FinalState.True())
}

func TestExecutor_RunnerSeesRunningState(t *testing.T) {
	f := newFixture(t)
	var seen []string
	runner := StepRunnerFunc(func(_ context.Context, a catalog.Action, s worldstate.State) error {
		seen = append(seen, a.ID+":"+s.Key())
		return nil
	})

	result := NewExecutor(runner, nil).Execute(context.Background(), f.schema.Empty(), []catalog.Action{f.install, f.configure})

	require.True(t, result.Success)
	assert.Equal(t, []string{"install:", "configure:installed"}, seen)
}
