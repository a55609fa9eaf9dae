// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

func installSchema(t *testing.T) *worldstate.Schema {
	t.Helper()
	s, err := worldstate.NewSchemaFromNames("installed", "configured", "deployed")
	require.NoError(t, err)
	return s
}

func installActions(s *worldstate.Schema) []Action {
	return []Action{
		{
			ID:             "install",
			Name:           "Install",
			Phase:          0,
			Effects:        s.MustPredicate(map[string]bool{"installed": true}),
			Cost:           1,
			EstimatedHours: 2,
		},
		{
			ID:             "configure",
			Name:           "Configure",
			Phase:          1,
			Preconditions:  s.MustPredicate(map[string]bool{"installed": true}),
			Effects:        s.MustPredicate(map[string]bool{"configured": true}),
			Cost:           2,
			EstimatedHours: 3,
			Risk:           RiskHigh,
		},
	}
}

// =============================================================================
// RiskLevel Tests
// =============================================================================

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    RiskLevel
		wantErr bool
	}{
		{"", RiskLow, false},
		{"low", RiskLow, false},
		{"Medium", RiskMedium, false},
		{" high ", RiskHigh, false},
		{"critical", RiskCritical, false},
		{"extreme", RiskLow, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRiskLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRisk)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRiskLevel_IsElevated(t *testing.T) {
	assert.False(t, RiskLow.IsElevated())
	assert.False(t, RiskMedium.IsElevated())
	assert.True(t, RiskHigh.IsElevated())
	assert.True(t, RiskCritical.IsElevated())
	assert.Equal(t, "unknown", RiskLevel(42).String())
}

func TestRiskLevel_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Risk RiskLevel `json:"risk"`
	}{RiskCritical})
	require.NoError(t, err)
	assert.JSONEq(t, `{"risk":"critical"}`, string(data))

	var decoded struct {
		Risk RiskLevel `json:"risk"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"risk":"medium"}`), &decoded))
	assert.Equal(t, RiskMedium, decoded.Risk)
}

// =============================================================================
// Action Tests
// =============================================================================

func TestAction_Preconditions(t *testing.T) {
	s := installSchema(t)
	actions := installActions(s)
	install, configure := actions[0], actions[1]

	empty := s.Empty()
	assert.True(t, install.PreconditionsSatisfied(empty), "empty preconditions always hold")
	assert.False(t, configure.PreconditionsSatisfied(empty))
	assert.Equal(t, []string{"installed"}, configure.UnmetPreconditions(empty))

	after := install.Apply(empty)
	assert.True(t, configure.PreconditionsSatisfied(after))
	assert.Empty(t, configure.UnmetPreconditions(after))
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "Install (install)", Action{ID: "install", Name: "Install"}.String())
	assert.Equal(t, "install", Action{ID: "install"}.String())
}

// =============================================================================
// Catalog Tests
// =============================================================================

func TestNew(t *testing.T) {
	s := installSchema(t)

	t.Run("valid", func(t *testing.T) {
		c, err := New(s, installActions(s))
		require.NoError(t, err)
		assert.Equal(t, 2, c.Len())
		assert.Same(t, s, c.Schema())
		assert.Equal(t, []int{0, 1}, c.Phases())
	})

	t.Run("nil schema", func(t *testing.T) {
		_, err := New(nil, nil)
		assert.ErrorIs(t, err, ErrNilSchema)
	})

	t.Run("duplicate id", func(t *testing.T) {
		actions := installActions(s)
		actions[1].ID = "install"
		_, err := New(s, actions)
		assert.ErrorIs(t, err, ErrDuplicateAction)
	})

	t.Run("empty id", func(t *testing.T) {
		actions := installActions(s)
		actions[0].ID = ""
		_, err := New(s, actions)
		assert.ErrorIs(t, err, ErrInvalidAction)
	})

	t.Run("negative cost", func(t *testing.T) {
		actions := installActions(s)
		actions[0].Cost = -1
		_, err := New(s, actions)
		assert.ErrorIs(t, err, ErrNegativeQuantity)
	})

	t.Run("foreign schema", func(t *testing.T) {
		other, err := worldstate.NewSchemaFromNames("installed")
		require.NoError(t, err)
		actions := installActions(s)
		actions[0].Effects = other.MustPredicate(map[string]bool{"installed": true})
		_, err = New(s, actions)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("input slice is copied", func(t *testing.T) {
		actions := installActions(s)
		c, err := New(s, actions)
		require.NoError(t, err)
		actions[0].Name = "mutated"
		assert.Equal(t, "Install", c.At(0).Name)
	})
}

func TestCatalog_LookupAndResolve(t *testing.T) {
	s := installSchema(t)
	c := MustNew(s, installActions(s))

	a, ok := c.Lookup("configure")
	require.True(t, ok)
	assert.Equal(t, "Configure", a.Name)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)

	plan, err := c.Resolve([]string{"configure", "install"})
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "configure", plan[0].ID)

	_, err = c.Resolve([]string{"install", "missing"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestCatalog_Filter(t *testing.T) {
	s := installSchema(t)
	c := MustNew(s, installActions(s))

	phase0 := c.UpToPhase(0)
	assert.Equal(t, 1, phase0.Len())
	_, ok := phase0.Lookup("configure")
	assert.False(t, ok)

	without := c.Without("install")
	assert.Equal(t, 1, without.Len())
	assert.Equal(t, "configure", without.At(0).ID)

	assert.Equal(t, 2, c.Len(), "filtering must not modify the source catalog")
}

func TestCatalog_ActionsReturnsCopy(t *testing.T) {
	s := installSchema(t)
	c := MustNew(s, installActions(s))

	actions := c.Actions()
	actions[0].ID = "changed"
	assert.Equal(t, "install", c.At(0).ID)
}
