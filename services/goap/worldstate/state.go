// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package worldstate

import (
	"encoding/json"
	"sort"
	"strings"
)

// State is a total assignment of true/false to every condition of a schema.
//
// Description:
//
//	Conditions not set are false. The zero State has no schema and is
//	only useful as an error return value.
type State struct {
	schema *Schema
	bits   uint64
}

// Schema returns the schema this state is bound to.
func (s State) Schema() *Schema {
	return s.schema
}

// Bits returns the raw bitset. Two states of the same schema are equal
// iff their bits are equal.
func (s State) Bits() uint64 {
	return s.bits
}

// Get returns the value of a condition. Unknown names read as false.
func (s State) Get(name string) bool {
	if s.schema == nil {
		return false
	}
	b, err := s.schema.bit(name)
	if err != nil {
		return false
	}
	return s.bits&b != 0
}

// With returns a copy of the state with one condition set.
//
// Outputs:
//
//	State - The updated state.
//	error - ErrUnknownCondition if name is not in the schema.
func (s State) With(name string, value bool) (State, error) {
	b, err := s.schema.bit(name)
	if err != nil {
		return State{}, err
	}
	if value {
		s.bits |= b
	} else {
		s.bits &^= b
	}
	return s, nil
}

// Equal reports whether two states share a schema and assign the same values.
func (s State) Equal(other State) bool {
	return s.schema == other.schema && s.bits == other.bits
}

// Apply overwrites the keys specified by effects and returns the new state.
//
// Description:
//
//	Keys in the effect mask take the effect's value; all other keys keep
//	their current value. Applying the same effects twice yields the same
//	state as applying them once.
func (s State) Apply(effects Predicate) State {
	s.bits = (s.bits &^ effects.mask) | (effects.values & effects.mask)
	return s
}

// True returns the names of the conditions that are true, in schema order.
func (s State) True() []string {
	if s.schema == nil {
		return []string{}
	}
	return s.schema.namesOf(s.bits)
}

// Key returns the canonical string form of the state.
//
// Description:
//
//	The true condition names, sorted lexicographically and joined with
//	",". Equal sets of true conditions always produce equal keys no
//	matter the order in which they were set.
func (s State) Key() string {
	names := s.True()
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Map returns the state as a total boolean map over the schema.
func (s State) Map() map[string]bool {
	if s.schema == nil {
		return map[string]bool{}
	}
	m := make(map[string]bool, len(s.schema.conditions))
	for i, c := range s.schema.conditions {
		m[c.Name] = s.bits&(1<<uint(i)) != 0
	}
	return m
}

// String implements fmt.Stringer.
func (s State) String() string {
	return "{" + s.Key() + "}"
}

// MarshalJSON encodes the state as a total boolean object.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// Change is a single condition whose value differs between two states.
type Change struct {
	Name   string `json:"name"`
	Before bool   `json:"before"`
	After  bool   `json:"after"`
}

// Diff returns only the conditions whose value changed between before and after.
//
// Description:
//
//	Changes are reported in schema order. States from different schemas
//	produce an empty diff.
func Diff(before, after State) []Change {
	changes := make([]Change, 0)
	if before.schema == nil || before.schema != after.schema {
		return changes
	}
	changed := before.bits ^ after.bits
	for i, c := range before.schema.conditions {
		b := uint64(1) << uint(i)
		if changed&b == 0 {
			continue
		}
		changes = append(changes, Change{
			Name:   c.Name,
			Before: before.bits&b != 0,
			After:  after.bits&b != 0,
		})
	}
	return changes
}

// FormatChanges renders a diff as "name: false→true" pairs.
func FormatChanges(changes []Change) string {
	if len(changes) == 0 {
		return "no changes"
	}
	parts := make([]string, len(changes))
	for i, c := range changes {
		parts[i] = c.Name + ": " + boolWord(c.Before) + "→" + boolWord(c.After)
	}
	return strings.Join(parts, ", ")
}

func boolWord(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
