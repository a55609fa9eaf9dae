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
	"fmt"
	"strings"

	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// RiskLevel is an advisory classification attached to an action.
type RiskLevel int

const (
	// RiskLow is the default risk level.
	RiskLow RiskLevel = iota

	// RiskMedium marks actions worth a second look.
	RiskMedium

	// RiskHigh marks actions surfaced as validation warnings.
	RiskHigh

	// RiskCritical marks actions surfaced as validation warnings.
	RiskCritical
)

// String returns the lowercase name of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// IsElevated reports whether the risk is high or critical.
func (r RiskLevel) IsElevated() bool {
	return r == RiskHigh || r == RiskCritical
}

// ParseRiskLevel parses "low", "medium", "high" or "critical".
// The empty string parses as RiskLow.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	default:
		return RiskLow, fmt.Errorf("%w: %q", ErrInvalidRisk, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RiskLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Action is one typed operation the planner can schedule.
//
// Description:
//
//	Preconditions must all hold in the current state for the action to be
//	applicable. Effects unconditionally overwrite the keys they name.
//	Cost is the planning weight; EstimatedHours, Risk and the descriptive
//	fields (Commands, Files, Rollback, Validation) are informational and
//	never read by the search.
type Action struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	Phase          int                  `json:"phase"`
	Preconditions  worldstate.Predicate `json:"preconditions"`
	Effects        worldstate.Predicate `json:"effects"`
	Cost           float64              `json:"cost"`
	EstimatedHours float64              `json:"estimated_hours"`
	Risk           RiskLevel            `json:"risk"`
	Commands       []string             `json:"commands,omitempty"`
	Files          []string             `json:"files,omitempty"`
	Rollback       []string             `json:"rollback,omitempty"`
	Validation     []string             `json:"validation,omitempty"`
}

// PreconditionsSatisfied reports whether every precondition holds in state.
// An action with no preconditions is always applicable.
func (a Action) PreconditionsSatisfied(state worldstate.State) bool {
	return a.Preconditions.SatisfiedBy(state)
}

// UnmetPreconditions returns the precondition keys that do not hold in state.
func (a Action) UnmetPreconditions(state worldstate.State) []string {
	return a.Preconditions.Unmet(state)
}

// Apply returns the state reached by applying the action's effects.
func (a Action) Apply(state worldstate.State) worldstate.State {
	return state.Apply(a.Effects)
}

// String returns the action's display name and ID.
func (a Action) String() string {
	if a.Name == "" {
		return a.ID
	}
	return a.Name + " (" + a.ID + ")"
}
