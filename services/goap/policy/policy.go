// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policy audits the shell commands and rollback steps attached to
// catalog actions.
//
// Rules are regular expressions grouped into prioritised classifications
// (production, data_loss, ...). The planner never reads commands, so the
// audit is advisory: it tells an operator which steps of a plan deserve a
// second look before they are run for real.
package policy

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
)

//go:embed command_policy.yaml
var defaultRules []byte

// Routine is the classification of text that matches no rule.
const Routine = "routine"

// ErrInvalidRules indicates a malformed rule document.
var ErrInvalidRules = errors.New("invalid command policy")

var rulesValidate = validator.New()

// -----------------------------------------------------------------------------
// Rule Types
// -----------------------------------------------------------------------------

// Confidence rates how likely a match is a real hazard.
type Confidence string

const (
	Low    Confidence = "low"
	Medium Confidence = "medium"
	High   Confidence = "high"
)

// UnmarshalYAML rejects unknown confidence levels.
func (c *Confidence) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch conf := Confidence(s); conf {
	case High, Medium, Low:
		*c = conf
		return nil
	default:
		return fmt.Errorf("invalid confidence %q", s)
	}
}

// RuleFile is the YAML document holding all classifications.
type RuleFile struct {
	Classifications []Classification `yaml:"classifications" validate:"required,min=1,dive"`
}

// Classification groups patterns under one hazard name.
type Classification struct {
	Name        string    `yaml:"name" validate:"required"`
	Description string    `yaml:"description"`
	Priority    int       `yaml:"priority"`
	Patterns    []Pattern `yaml:"patterns" validate:"required,min=1,dive"`
}

// Pattern is one rule.
type Pattern struct {
	ID          string     `yaml:"id" validate:"required"`
	Description string     `yaml:"description"`
	Regex       string     `yaml:"regex" validate:"required"`
	Confidence  Confidence `yaml:"confidence" validate:"required"`

	re *regexp.Regexp
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// Finding is one rule match on one line of an action.
type Finding struct {
	ActionID       string     `json:"action_id"`
	Field          string     `json:"field"`
	Index          int        `json:"index"`
	Text           string     `json:"text"`
	Classification string     `json:"classification"`
	PatternID      string     `json:"pattern_id"`
	Description    string     `json:"description"`
	Confidence     Confidence `json:"confidence"`
}

// Report is the audit of a whole plan.
type Report struct {
	// Findings in plan order, commands before rollback steps.
	Findings []Finding `json:"findings"`

	// Counts maps classification name to number of findings.
	Counts map[string]int `json:"counts"`

	// Flagged lists the IDs of actions with at least one finding, in
	// plan order.
	Flagged []string `json:"flagged"`
}

// Clean reports whether the audit found nothing.
func (r Report) Clean() bool {
	return len(r.Findings) == 0
}

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Engine holds compiled rules, highest priority first.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Engine struct {
	classifications []Classification
}

// Default returns an engine loaded from the embedded command policy.
func Default() (*Engine, error) {
	return Load(defaultRules)
}

// Load parses and compiles a rule document.
//
// Description:
//
//	Validates required fields, compiles every regex and sorts the
//	classifications by descending priority. Equal priorities keep
//	document order.
//
// Outputs:
//
//	*Engine - Ready to use.
//	error - Wraps ErrInvalidRules on malformed YAML, missing fields or a
//	        regex that does not compile.
func Load(data []byte) (*Engine, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := rulesValidate.Struct(file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	for i := range file.Classifications {
		for j := range file.Classifications[i].Patterns {
			p := &file.Classifications[i].Patterns[j]
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("%w: pattern %s: %v", ErrInvalidRules, p.ID, err)
			}
			p.re = re
		}
	}

	sort.SliceStable(file.Classifications, func(i, j int) bool {
		return file.Classifications[i].Priority > file.Classifications[j].Priority
	})
	return &Engine{classifications: file.Classifications}, nil
}

// Classifications returns the classification names, highest priority first.
func (e *Engine) Classifications() []string {
	names := make([]string, len(e.classifications))
	for i, c := range e.classifications {
		names[i] = c.Name
	}
	return names
}

// Classify returns the highest-priority classification matching text, or
// Routine.
func (e *Engine) Classify(text string) string {
	for _, c := range e.classifications {
		for _, p := range c.Patterns {
			if p.re.MatchString(text) {
				return c.Name
			}
		}
	}
	return Routine
}

// ScanAction checks every command and rollback step of action.
func (e *Engine) ScanAction(action catalog.Action) []Finding {
	var findings []Finding
	findings = e.scanLines(findings, action.ID, "commands", action.Commands)
	findings = e.scanLines(findings, action.ID, "rollback", action.Rollback)
	return findings
}

func (e *Engine) scanLines(findings []Finding, actionID, field string, lines []string) []Finding {
	for i, line := range lines {
		for _, c := range e.classifications {
			for _, p := range c.Patterns {
				match := p.re.FindString(line)
				if match == "" {
					continue
				}
				findings = append(findings, Finding{
					ActionID:       actionID,
					Field:          field,
					Index:          i,
					Text:           line,
					Classification: c.Name,
					PatternID:      p.ID,
					Description:    p.Description,
					Confidence:     p.Confidence,
				})
			}
		}
	}
	return findings
}

// Audit scans every action of plan.
func (e *Engine) Audit(plan []catalog.Action) Report {
	report := Report{
		Findings: []Finding{},
		Counts:   make(map[string]int),
		Flagged:  []string{},
	}
	for _, action := range plan {
		found := e.ScanAction(action)
		if len(found) == 0 {
			continue
		}
		report.Flagged = append(report.Flagged, action.ID)
		for _, f := range found {
			report.Counts[f.Classification]++
		}
		report.Findings = append(report.Findings, found...)
	}
	return report
}
