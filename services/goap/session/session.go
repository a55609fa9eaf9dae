// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session persists planning sessions.
//
// Description:
//
//	A session is the caller-side memory of one planning conversation: the
//	held world state, the goal being pursued and the action that last
//	failed. The planner itself is stateless across processes; the HTTP
//	server rebuilds a planner from a session for every replan.
//
//	Sessions carry a revision. Save only succeeds when the caller's copy
//	is at the stored revision, so two clients replanning the same session
//	cannot silently overwrite each other.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// Package-level error definitions.
var (
	ErrNotFound         = errors.New("session not found")
	ErrRevisionConflict = errors.New("session revision conflict")
	ErrInvalidSession   = errors.New("invalid session")
)

// Session is one persisted planning conversation.
type Session struct {
	ID uuid.UUID `json:"id"`

	// Goal is a preset goal name of the catalog. Ignored when
	// GoalConditions is set.
	Goal string `json:"goal,omitempty"`

	// GoalConditions is an ad-hoc goal predicate.
	GoalConditions map[string]bool `json:"goal_conditions,omitempty"`

	// TrueConditions is the held state: the names of the true conditions.
	TrueConditions []string `json:"true_conditions"`

	// Revision increases by one on every successful Save.
	Revision int64 `json:"revision"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// LastFailedAction is the ID passed to the most recent replan, if any.
	LastFailedAction string `json:"last_failed_action,omitempty"`
}

// State rebuilds the held world state over schema.
func (s Session) State(schema *worldstate.Schema) (worldstate.State, error) {
	state, err := schema.StateFromTrue(s.TrueConditions...)
	if err != nil {
		return worldstate.State{}, fmt.Errorf("%w: state: %w", ErrInvalidSession, err)
	}
	return state, nil
}

// SetState replaces the held state.
func (s *Session) SetState(state worldstate.State) {
	s.TrueConditions = state.True()
}

// GoalPredicate resolves the session goal against bundle.
func (s Session) GoalPredicate(bundle *catalog.Bundle) (worldstate.Predicate, error) {
	if len(s.GoalConditions) > 0 {
		p, err := bundle.Schema.PredicateFromMap(s.GoalConditions)
		if err != nil {
			return worldstate.Predicate{}, fmt.Errorf("%w: goal: %w", ErrInvalidSession, err)
		}
		return p, nil
	}
	return bundle.Goal(s.Goal)
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

const keyPrefix = "session/"
