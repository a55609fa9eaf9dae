// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks identifiers that end up in storage keys,
// generated graph source and log attributes.
//
// Condition names, action IDs and goal names are interpolated into Mermaid
// and DOT output unquoted in places, so they are restricted to a safe
// snake_case alphabet.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxIdentifierLength bounds identifier length.
const MaxIdentifierLength = 64

// identifierPattern matches lowercase snake_case identifiers.
// Allows: lowercase letters, digits, underscores; must start with a letter.
var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateIdentifier validates a catalog identifier.
//
// Valid identifiers:
//   - 1-64 characters
//   - Lowercase letters a-z, digits 0-9 and underscores
//   - Start with a letter
//
// Example:
//
//	if err := validation.ValidateIdentifier(id); err != nil {
//	    return fmt.Errorf("action id: %w", err)
//	}
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier %q (must be 1-%d lowercase letters, digits or underscores, starting with a letter)",
			id, MaxIdentifierLength)
	}
	return nil
}

// ValidateIdentifiers validates several identifiers.
// Returns an error listing all invalid identifiers if any fail validation.
func ValidateIdentifiers(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateIdentifier(id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid identifiers: %q", invalid)
	}
	return nil
}

// SanitizeIdentifier normalizes user input (trim, lowercase, hyphens and
// spaces to underscores) and validates the result.
//
//	goal, err := validation.SanitizeIdentifier("  MVP ")
//	// goal == "mvp"
func SanitizeIdentifier(id string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if err := ValidateIdentifier(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
