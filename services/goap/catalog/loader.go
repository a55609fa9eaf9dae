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
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bjpl/meal-assistant-sub008/pkg/validation"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// catalogValidate is the validator instance for catalog documents. The
// "identifier" tag restricts IDs and names to snake_case.
var catalogValidate = newCatalogValidator()

func newCatalogValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return validation.ValidateIdentifier(fl.Field().String()) == nil
	})
	return v
}

// LoadError describes why a catalog document was rejected.
type LoadError struct {
	// Path is the source file, empty when loading from a reader.
	Path string

	// Field locates the offending entry (e.g., "actions[3].cost").
	Field string

	Err error
}

func (e *LoadError) Error() string {
	msg := "load catalog"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}
	return msg + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// -----------------------------------------------------------------------------
// Document Types
// -----------------------------------------------------------------------------

// Document is the YAML representation of a catalog and its presets.
type Document struct {
	Name    string          `yaml:"name" validate:"required"`
	Phases  []PhaseDoc      `yaml:"phases" validate:"required,min=1,dive"`
	Actions []ActionDoc     `yaml:"actions" validate:"dive"`
	Presets PresetsDocument `yaml:"presets"`
}

// PhaseDoc groups the conditions introduced by one project phase.
type PhaseDoc struct {
	ID         int      `yaml:"id" validate:"gte=0"`
	Name       string   `yaml:"name" validate:"required"`
	Conditions []string `yaml:"conditions" validate:"dive,required,identifier"`
}

// ActionDoc is the YAML form of an Action.
type ActionDoc struct {
	ID             string          `yaml:"id" validate:"required,identifier"`
	Name           string          `yaml:"name" validate:"required"`
	Description    string          `yaml:"description"`
	Phase          int             `yaml:"phase" validate:"gte=0"`
	Preconditions  map[string]bool `yaml:"preconditions"`
	Effects        map[string]bool `yaml:"effects" validate:"required,min=1"`
	Cost           float64         `yaml:"cost" validate:"gte=0"`
	EstimatedHours float64         `yaml:"estimated_hours" validate:"gte=0"`
	Risk           string          `yaml:"risk" validate:"omitempty,oneof=low medium high critical"`
	Commands       []string        `yaml:"commands"`
	Files          []string        `yaml:"files"`
	Rollback       []string        `yaml:"rollback"`
	Validation     []string        `yaml:"validation"`
}

// PresetsDocument holds the named world-state presets.
type PresetsDocument struct {
	Initial map[string]bool            `yaml:"initial"`
	Goals   map[string]map[string]bool `yaml:"goals" validate:"dive,keys,identifier,endkeys"`
}

// -----------------------------------------------------------------------------
// Loading
// -----------------------------------------------------------------------------

// Default returns the embedded meal-assistant build-out catalog.
//
// Description:
//
//	Parses the catalog compiled into the binary. The embedded document is
//	covered by tests, so a parse failure here is a programmer error.
func Default() (*Bundle, error) {
	return Load(bytes.NewReader(defaultCatalogYAML))
}

// LoadFile reads and parses a catalog YAML file.
//
// Outputs:
//
//	*Bundle - The catalog and presets.
//	error - *LoadError if the file is unreadable or malformed.
func LoadFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	b, err := Load(f)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	return b, nil
}

// Load parses a catalog YAML document.
//
// Description:
//
//	Decodes the document with unknown fields rejected, validates it with
//	struct tags, builds the schema from the phase conditions in order,
//	then converts every action and preset. Malformed catalogs fail here
//	rather than at planning time.
//
// Inputs:
//
//	r - The YAML source.
//
// Outputs:
//
//	*Bundle - The catalog and presets.
//	error - *LoadError wrapping ErrInvalidCatalog or a more specific error.
func Load(r io.Reader) (*Bundle, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("%w: %v", ErrInvalidCatalog, err)}
	}
	return FromDocument(doc)
}

// FromDocument converts a decoded document into a Bundle.
func FromDocument(doc Document) (*Bundle, error) {
	if err := catalogValidate.Struct(doc); err != nil {
		return nil, validationLoadError(err)
	}

	conditions := make([]worldstate.Condition, 0)
	phaseNames := make(map[int]string, len(doc.Phases))
	for _, p := range doc.Phases {
		if _, dup := phaseNames[p.ID]; dup {
			return nil, &LoadError{
				Field: fmt.Sprintf("phases[%d]", p.ID),
				Err:   fmt.Errorf("%w: duplicate phase id", ErrInvalidCatalog),
			}
		}
		phaseNames[p.ID] = p.Name
		for _, c := range p.Conditions {
			conditions = append(conditions, worldstate.Condition{Name: c, Group: p.Name})
		}
	}

	schema, err := worldstate.NewSchema(conditions...)
	if err != nil {
		return nil, &LoadError{Field: "phases", Err: err}
	}

	actions := make([]Action, 0, len(doc.Actions))
	for i, ad := range doc.Actions {
		a, err := ad.toAction(schema)
		if err != nil {
			return nil, &LoadError{Field: fmt.Sprintf("actions[%d]", i), Err: err}
		}
		actions = append(actions, a)
	}

	cat, err := New(schema, actions)
	if err != nil {
		return nil, &LoadError{Field: "actions", Err: err}
	}

	initial, err := schema.StateFromMap(doc.Presets.Initial)
	if err != nil {
		return nil, &LoadError{Field: "presets.initial", Err: err}
	}

	goals := make(map[string]worldstate.Predicate, len(doc.Presets.Goals))
	for name, g := range doc.Presets.Goals {
		p, err := schema.PredicateFromMap(g)
		if err != nil {
			return nil, &LoadError{Field: "presets.goals." + name, Err: err}
		}
		goals[name] = p
	}

	return &Bundle{
		Name:       doc.Name,
		Schema:     schema,
		Catalog:    cat,
		PhaseNames: phaseNames,
		Initial:    initial,
		Goals:      goals,
	}, nil
}

func (ad ActionDoc) toAction(schema *worldstate.Schema) (Action, error) {
	pre, err := schema.PredicateFromMap(ad.Preconditions)
	if err != nil {
		return Action{}, fmt.Errorf("preconditions: %w", err)
	}
	eff, err := schema.PredicateFromMap(ad.Effects)
	if err != nil {
		return Action{}, fmt.Errorf("effects: %w", err)
	}
	risk, err := ParseRiskLevel(ad.Risk)
	if err != nil {
		return Action{}, err
	}
	return Action{
		ID:             ad.ID,
		Name:           ad.Name,
		Description:    ad.Description,
		Phase:          ad.Phase,
		Preconditions:  pre,
		Effects:        eff,
		Cost:           ad.Cost,
		EstimatedHours: ad.EstimatedHours,
		Risk:           risk,
		Commands:       ad.Commands,
		Files:          ad.Files,
		Rollback:       ad.Rollback,
		Validation:     ad.Validation,
	}, nil
}

// validationLoadError turns the first validator failure into a LoadError.
func validationLoadError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &LoadError{
			Field: fe.Namespace(),
			Err:   fmt.Errorf("%w: failed %q rule", ErrInvalidCatalog, fe.Tag()),
		}
	}
	return &LoadError{Err: fmt.Errorf("%w: %v", ErrInvalidCatalog, err)}
}
