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
	"fmt"
	"time"
)

// DefaultMaxNodes is the node budget of a single search.
const DefaultMaxNodes = 10000

// Config configures the search.
type Config struct {
	// MaxNodes caps the number of nodes popped from the open set.
	// The search fails with a "search space too large" result beyond it.
	MaxNodes int `json:"max_nodes" yaml:"max_nodes" mapstructure:"max_nodes"`

	// HeuristicWeight multiplies the heuristic: f = g + w*h.
	// 1 is classical A*. Larger values trade optimality for a much smaller
	// search on catalogs whose goals name only a few flags.
	HeuristicWeight float64 `json:"heuristic_weight" yaml:"heuristic_weight" mapstructure:"heuristic_weight"`

	// ReopenClosed re-expands an already expanded state when a strictly
	// cheaper path to it is found, and scales the heuristic down by the
	// catalog's lowest cost per effect flag so it never overestimates.
	// With HeuristicWeight 1 the result is the cheapest plan. When false,
	// an expanded state is never reopened and the unscaled flag count is
	// used; that is faster but only optimal while every action costs at
	// least as much as the number of goal flags it changes.
	ReopenClosed bool `json:"reopen_closed" yaml:"reopen_closed" mapstructure:"reopen_closed"`

	// Timeout bounds the wall-clock time of one search. Zero means no limit
	// beyond the caller's context.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// CancelCheckInterval is how many pops happen between context checks.
	CancelCheckInterval int `json:"cancel_check_interval" yaml:"cancel_check_interval" mapstructure:"cancel_check_interval"`
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		MaxNodes:            DefaultMaxNodes,
		HeuristicWeight:     1,
		ReopenClosed:        false,
		Timeout:             0,
		CancelCheckInterval: 256,
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.MaxNodes <= 0 {
		return fmt.Errorf("%w: max nodes must be positive, got %d", ErrInvalidConfig, c.MaxNodes)
	}
	if c.HeuristicWeight <= 0 {
		return fmt.Errorf("%w: heuristic weight must be positive, got %v", ErrInvalidConfig, c.HeuristicWeight)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be non-negative, got %v", ErrInvalidConfig, c.Timeout)
	}
	if c.CancelCheckInterval <= 0 {
		return fmt.Errorf("%w: cancel check interval must be positive, got %d", ErrInvalidConfig, c.CancelCheckInterval)
	}
	return nil
}

// withDefaults fills zero fields so a zero Config is usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxNodes <= 0 {
		c.MaxNodes = d.MaxNodes
	}
	if c.HeuristicWeight <= 0 {
		c.HeuristicWeight = d.HeuristicWeight
	}
	if c.CancelCheckInterval <= 0 {
		c.CancelCheckInterval = d.CancelCheckInterval
	}
	return c
}
