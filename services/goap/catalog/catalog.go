// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds the immutable set of actions the planner may use.
//
// A catalog is loaded once (from YAML or built in code) and never mutated;
// callers plan over a subset by filtering into a new catalog.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// Package-level error definitions.
var (
	ErrInvalidRisk      = errors.New("invalid risk level")
	ErrInvalidAction    = errors.New("invalid action")
	ErrDuplicateAction  = errors.New("duplicate action id")
	ErrSchemaMismatch   = errors.New("action predicate uses a different schema")
	ErrUnknownAction    = errors.New("unknown action")
	ErrUnknownGoal      = errors.New("unknown goal")
	ErrInvalidCatalog   = errors.New("invalid catalog")
	ErrNilSchema        = errors.New("schema must not be nil")
	ErrNegativeQuantity = errors.New("cost and estimated hours must be non-negative")
)

// Catalog is an immutable, ordered list of actions over one schema.
//
// Description:
//
//	Catalog order is significant: the planner expands applicable actions
//	in this order, which fixes tie-breaking between equal-cost paths.
//
// Thread Safety: Safe for concurrent use (immutable after construction).
type Catalog struct {
	schema  *worldstate.Schema
	actions []Action
	byID    map[string]int
}

// New creates a catalog from actions.
//
// Description:
//
//	Validates that every action has a non-empty unique ID, non-negative
//	cost and hours, and predicates bound to schema. The actions slice is
//	copied; later changes by the caller do not affect the catalog.
//
// Inputs:
//
//	schema - The world schema every predicate must belong to. Must not be nil.
//	actions - The actions in catalog order.
//
// Outputs:
//
//	*Catalog - The immutable catalog.
//	error - Non-nil if any action is malformed.
func New(schema *worldstate.Schema, actions []Action) (*Catalog, error) {
	if schema == nil {
		return nil, ErrNilSchema
	}

	c := &Catalog{
		schema:  schema,
		actions: make([]Action, len(actions)),
		byID:    make(map[string]int, len(actions)),
	}
	for i, a := range actions {
		if err := validateAction(schema, a); err != nil {
			return nil, err
		}
		if _, exists := c.byID[a.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAction, a.ID)
		}
		c.byID[a.ID] = i
		c.actions[i] = a
	}
	return c, nil
}

// MustNew is like New but panics on error. Intended for tests.
func MustNew(schema *worldstate.Schema, actions []Action) *Catalog {
	c, err := New(schema, actions)
	if err != nil {
		panic(err)
	}
	return c
}

func validateAction(schema *worldstate.Schema, a Action) error {
	if a.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidAction)
	}
	if a.Cost < 0 || a.EstimatedHours < 0 || math.IsNaN(a.Cost) || math.IsNaN(a.EstimatedHours) {
		return fmt.Errorf("%w: %s", ErrNegativeQuantity, a.ID)
	}
	if !a.Preconditions.IsEmpty() && a.Preconditions.Schema() != schema {
		return fmt.Errorf("%w: %s preconditions", ErrSchemaMismatch, a.ID)
	}
	if !a.Effects.IsEmpty() && a.Effects.Schema() != schema {
		return fmt.Errorf("%w: %s effects", ErrSchemaMismatch, a.ID)
	}
	return nil
}

// Schema returns the schema the catalog's actions are defined over.
func (c *Catalog) Schema() *worldstate.Schema {
	return c.schema
}

// Len returns the number of actions.
func (c *Catalog) Len() int {
	return len(c.actions)
}

// At returns the action at position i. It does not copy slice fields.
func (c *Catalog) At(i int) Action {
	return c.actions[i]
}

// Actions returns a copy of the actions in catalog order.
func (c *Catalog) Actions() []Action {
	out := make([]Action, len(c.actions))
	copy(out, c.actions)
	return out
}

// Lookup returns the action with the given ID.
func (c *Catalog) Lookup(id string) (Action, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Action{}, false
	}
	return c.actions[i], true
}

// Resolve maps action IDs to actions, preserving order.
//
// Outputs:
//
//	[]Action - The actions in the order of ids.
//	error - ErrUnknownAction naming the first ID not in the catalog.
func (c *Catalog) Resolve(ids []string) ([]Action, error) {
	out := make([]Action, 0, len(ids))
	for _, id := range ids {
		a, ok := c.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAction, id)
		}
		out = append(out, a)
	}
	return out, nil
}

// Filter returns a new catalog containing the actions for which keep
// returns true, in the original order.
func (c *Catalog) Filter(keep func(Action) bool) *Catalog {
	out := &Catalog{
		schema:  c.schema,
		actions: make([]Action, 0, len(c.actions)),
		byID:    make(map[string]int),
	}
	for _, a := range c.actions {
		if keep(a) {
			out.byID[a.ID] = len(out.actions)
			out.actions = append(out.actions, a)
		}
	}
	return out
}

// Without returns a catalog without the action with the given ID.
func (c *Catalog) Without(id string) *Catalog {
	return c.Filter(func(a Action) bool { return a.ID != id })
}

// UpToPhase keeps the actions whose phase is at most maxPhase.
func (c *Catalog) UpToPhase(maxPhase int) *Catalog {
	return c.Filter(func(a Action) bool { return a.Phase <= maxPhase })
}

// Phases returns the distinct phase tags used by the catalog, ascending.
func (c *Catalog) Phases() []int {
	seen := make(map[int]bool)
	phases := make([]int, 0)
	for _, a := range c.actions {
		if !seen[a.Phase] {
			seen[a.Phase] = true
			phases = append(phases, a.Phase)
		}
	}
	sort.Ints(phases)
	return phases
}

// Bundle is a loaded catalog together with its world-state presets.
type Bundle struct {
	// Name identifies the catalog document.
	Name string

	// Schema is the world schema.
	Schema *worldstate.Schema

	// Catalog is the immutable action list.
	Catalog *Catalog

	// PhaseNames maps phase ordinals to display names.
	PhaseNames map[int]string

	// Initial is the preset start state.
	Initial worldstate.State

	// Goals are the named goal predicates (e.g., "mvp", "full").
	Goals map[string]worldstate.Predicate
}

// Goal returns the named goal predicate.
func (b *Bundle) Goal(name string) (worldstate.Predicate, error) {
	g, ok := b.Goals[name]
	if !ok {
		return worldstate.Predicate{}, fmt.Errorf("%w: %s", ErrUnknownGoal, name)
	}
	return g, nil
}

// GoalNames returns the preset goal names sorted alphabetically.
func (b *Bundle) GoalNames() []string {
	names := make([]string, 0, len(b.Goals))
	for n := range b.Goals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PhaseName returns the display name of a phase, or "phase N".
func (b *Bundle) PhaseName(phase int) string {
	if n, ok := b.PhaseNames[phase]; ok && n != "" {
		return n
	}
	return fmt.Sprintf("phase %d", phase)
}
