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
	"errors"
)

// Package-level error definitions.
//
// Planning, validation and execution outcomes are returned as result
// values; these errors cover misuse of the API only.
var (
	ErrNilCatalog     = errors.New("catalog must not be nil")
	ErrInvalidConfig  = errors.New("invalid planner config")
	ErrSchemaMismatch = errors.New("state or goal does not use the catalog schema")
	ErrEmptyPlan      = errors.New("plan is empty")
	ErrInvalidPlan    = errors.New("plan failed validation")
)

// Error wraps planner errors with the operation that produced them.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return "planner." + e.Operation + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
