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
	"math/bits"
)

// Predicate is a partial boolean assignment over a schema.
//
// Description:
//
//	Keys outside the mask are "don't care". The same type describes goal
//	predicates, action preconditions and action effects.
type Predicate struct {
	schema *Schema
	mask   uint64
	values uint64
}

// Schema returns the schema this predicate is bound to.
func (p Predicate) Schema() *Schema {
	return p.schema
}

// Len returns the number of specified keys.
func (p Predicate) Len() int {
	return bits.OnesCount64(p.mask)
}

// IsEmpty reports whether the predicate specifies no keys.
func (p Predicate) IsEmpty() bool {
	return p.mask == 0
}

// SatisfiedBy reports whether the state agrees with every specified key.
// An empty predicate is satisfied by every state.
func (p Predicate) SatisfiedBy(s State) bool {
	return (s.bits^p.values)&p.mask == 0
}

// Distance returns the number of specified keys the state disagrees with.
//
// Description:
//
//	Used as the search heuristic. Zero iff SatisfiedBy(s).
func (p Predicate) Distance(s State) int {
	return bits.OnesCount64((s.bits ^ p.values) & p.mask)
}

// Unmet returns the names of specified keys the state disagrees with,
// in schema order.
func (p Predicate) Unmet(s State) []string {
	if p.schema == nil {
		return []string{}
	}
	return p.schema.namesOf((s.bits ^ p.values) & p.mask)
}

// Keys returns the names of the specified keys in schema order.
func (p Predicate) Keys() []string {
	if p.schema == nil {
		return []string{}
	}
	return p.schema.namesOf(p.mask)
}

// Matches returns the mask of keys both predicates specify with the same value.
//
// Description:
//
//	Used for the causal-link heuristic: a precondition of a later action
//	matching an effect of an earlier one.
func (p Predicate) Matches(other Predicate) uint64 {
	return p.mask & other.mask &^ (p.values ^ other.values)
}

// MatchingKeys returns the names behind Matches.
func (p Predicate) MatchingKeys(other Predicate) []string {
	if p.schema == nil {
		return []string{}
	}
	return p.schema.namesOf(p.Matches(other))
}

// Without returns a copy of the predicate that no longer specifies name.
func (p Predicate) Without(name string) Predicate {
	if p.schema == nil {
		return p
	}
	b, err := p.schema.bit(name)
	if err != nil {
		return p
	}
	p.mask &^= b
	p.values &^= b
	return p
}

// Map returns the specified keys and their required values.
func (p Predicate) Map() map[string]bool {
	m := make(map[string]bool, p.Len())
	if p.schema == nil {
		return m
	}
	for i, c := range p.schema.conditions {
		b := uint64(1) << uint(i)
		if p.mask&b != 0 {
			m[c.Name] = p.values&b != 0
		}
	}
	return m
}

// MarshalJSON encodes the predicate as a partial boolean object.
func (p Predicate) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}
