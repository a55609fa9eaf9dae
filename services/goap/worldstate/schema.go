// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package worldstate models the boolean world the GOAP planner searches over.
//
// Architecture:
//
//	A Schema fixes the set of named conditions once. Every State and
//	Predicate is bound to a Schema and stored as a bitset, one bit per
//	condition, so equality, hashing and effect application are integer
//	operations.
//
//	┌──────────┐      ┌──────────────────────┐
//	│  Schema  │─────▶│ State (total, bits)  │
//	│ (names)  │      └──────────────────────┘
//	│          │      ┌──────────────────────┐
//	│          │─────▶│ Predicate (mask,val) │  goals, preconditions, effects
//	└──────────┘      └──────────────────────┘
//
// Thread Safety:
//
//	Schema, State and Predicate are immutable values and safe for
//	concurrent use.
package worldstate

import (
	"errors"
	"fmt"
	"strings"
)

// MaxConditions is the largest schema a bitset state can hold.
const MaxConditions = 64

// Package-level error definitions.
var (
	ErrUnknownCondition   = errors.New("unknown condition")
	ErrDuplicateCondition = errors.New("duplicate condition")
	ErrEmptyCondition     = errors.New("empty condition name")
	ErrSchemaTooLarge     = errors.New("schema exceeds maximum condition count")
	ErrSchemaMismatch     = errors.New("values belong to different schemas")
)

// Condition describes one named boolean flag of the world.
type Condition struct {
	// Name is the unique condition key (e.g., "database_schema_created").
	Name string

	// Group is an optional label used for display only (e.g., "foundation").
	Group string
}

// Schema is the fixed, ordered set of conditions a world state is defined over.
//
// Description:
//
//	The position of a condition in the schema is its bit index. Schemas
//	are compared by identity: states and predicates from different
//	schemas must not be mixed.
//
// Thread Safety: Safe for concurrent use (immutable after construction).
type Schema struct {
	conditions []Condition
	index      map[string]int
	all        uint64
}

// NewSchema creates a schema from an ordered list of conditions.
//
// Description:
//
//	Validates that every name is non-empty and unique and that the schema
//	fits in a single bitset word.
//
// Inputs:
//
//	conditions - The conditions in bit order. Must not exceed MaxConditions.
//
// Outputs:
//
//	*Schema - The immutable schema.
//	error - Non-nil if a name is empty, duplicated, or the schema is too large.
func NewSchema(conditions ...Condition) (*Schema, error) {
	if len(conditions) > MaxConditions {
		return nil, fmt.Errorf("%w: %d > %d", ErrSchemaTooLarge, len(conditions), MaxConditions)
	}

	s := &Schema{
		conditions: make([]Condition, len(conditions)),
		index:      make(map[string]int, len(conditions)),
	}
	for i, c := range conditions {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("%w at position %d", ErrEmptyCondition, i)
		}
		if _, exists := s.index[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCondition, name)
		}
		s.conditions[i] = Condition{Name: name, Group: c.Group}
		s.index[name] = i
		s.all |= 1 << uint(i)
	}
	return s, nil
}

// NewSchemaFromNames is a convenience wrapper for ungrouped conditions.
func NewSchemaFromNames(names ...string) (*Schema, error) {
	conditions := make([]Condition, len(names))
	for i, n := range names {
		conditions[i] = Condition{Name: n}
	}
	return NewSchema(conditions...)
}

// Len returns the number of conditions.
func (s *Schema) Len() int {
	return len(s.conditions)
}

// Conditions returns a copy of the schema's conditions in bit order.
func (s *Schema) Conditions() []Condition {
	out := make([]Condition, len(s.conditions))
	copy(out, s.conditions)
	return out
}

// Names returns the condition names in bit order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.conditions))
	for i, c := range s.conditions {
		out[i] = c.Name
	}
	return out
}

// Has reports whether name is a condition of this schema.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// bit returns the mask for a condition name.
func (s *Schema) bit(name string) (uint64, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCondition, name)
	}
	return 1 << uint(i), nil
}

// namesOf returns the names of the set bits in bits, in bit order.
func (s *Schema) namesOf(bits uint64) []string {
	names := make([]string, 0)
	for i, c := range s.conditions {
		if bits&(1<<uint(i)) != 0 {
			names = append(names, c.Name)
		}
	}
	return names
}

// Empty returns the state in which every condition is false.
func (s *Schema) Empty() State {
	return State{schema: s}
}

// StateFromTrue builds a state in which exactly the named conditions are true.
//
// Inputs:
//
//	names - Conditions to assert. Order and duplicates do not matter.
//
// Outputs:
//
//	State - The resulting total state.
//	error - ErrUnknownCondition if a name is not in the schema.
func (s *Schema) StateFromTrue(names ...string) (State, error) {
	var bits uint64
	for _, n := range names {
		b, err := s.bit(n)
		if err != nil {
			return State{}, err
		}
		bits |= b
	}
	return State{schema: s, bits: bits}, nil
}

// StateFromMap builds a total state from a boolean map.
//
// Description:
//
//	Keys absent from m are false. Keys not in the schema are rejected so
//	that no state ever carries keys outside the schema.
//
// Outputs:
//
//	State - The resulting total state.
//	error - ErrUnknownCondition if m contains a key outside the schema.
func (s *Schema) StateFromMap(m map[string]bool) (State, error) {
	var bits uint64
	for name, v := range m {
		b, err := s.bit(name)
		if err != nil {
			return State{}, err
		}
		if v {
			bits |= b
		}
	}
	return State{schema: s, bits: bits}, nil
}

// PredicateFromMap builds a partial predicate from a boolean map.
//
// Outputs:
//
//	Predicate - Specifies exactly the keys present in m.
//	error - ErrUnknownCondition if m contains a key outside the schema.
func (s *Schema) PredicateFromMap(m map[string]bool) (Predicate, error) {
	p := Predicate{schema: s}
	for name, v := range m {
		b, err := s.bit(name)
		if err != nil {
			return Predicate{}, err
		}
		p.mask |= b
		if v {
			p.values |= b
		}
	}
	return p, nil
}

// MustPredicate is like PredicateFromMap but panics on error.
// Intended for tests and static tables.
func (s *Schema) MustPredicate(m map[string]bool) Predicate {
	p, err := s.PredicateFromMap(m)
	if err != nil {
		panic(err)
	}
	return p
}
