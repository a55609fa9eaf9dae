// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/bjpl/meal-assistant-sub008/pkg/logging"
	"github.com/bjpl/meal-assistant-sub008/pkg/ux"
	"github.com/bjpl/meal-assistant-sub008/pkg/validation"
	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/config"
	"github.com/bjpl/meal-assistant-sub008/services/goap/planner"
	"github.com/bjpl/meal-assistant-sub008/services/goap/policy"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// errReported marks a failure whose details were already printed.
var errReported = errors.New("failure already reported")

// app holds the state shared by all subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Persistent flags
	configPath  string
	catalogPath string
	logLevel    string
	jsonOut     bool
	plain       bool

	cfg     config.Config
	logger  *logging.Logger
	bundle  *catalog.Bundle
	printer *ux.Printer
}

// searchFlags select the start state, the goal and search overrides.
type searchFlags struct {
	goal      string
	goalConds map[string]string
	state     []string
	planIDs   []string
	reopen    bool
	weight    float64
	maxNodes  int
	timeout   time.Duration
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "goap",
		Short: "Goal-oriented action planning for the meal-assistant build-out",
		Long: `goap finds the cheapest ordered sequence of development actions that
takes the project from its current state to a goal state, checks plans,
simulates their execution and serves the planner over HTTP.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.catalogPath, "catalog", "", "catalog YAML file (default: embedded catalog)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&a.jsonOut, "json", false, "print raw JSON results")
	pf.BoolVar(&a.plain, "plain", false, "disable colors and boxes")

	root.AddCommand(
		a.planCmd(),
		a.validateCmd(),
		a.executeCmd(),
		a.summaryCmd(),
		a.graphCmd(),
		a.auditCmd(),
		a.catalogCmd(),
		a.serveCmd(),
	)
	return root
}

// setup loads configuration, logging and the catalog.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.catalogPath != "" {
		cfg.Catalog.Path = a.catalogPath
	}
	if a.logLevel != "" {
		if _, err := logging.ParseLevel(a.logLevel); err != nil {
			return err
		}
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	lc := cfg.LoggerConfig("goap")
	lc.Writer = a.stderr
	a.logger = logging.New(lc)
	a.printer = ux.NewPrinter(a.stdout, a.plain || !isTerminal(a.stdout))

	a.bundle, err = loadBundle(cfg.Catalog.Path)
	return err
}

// isTerminal reports whether w is an interactive terminal. Pipes, files and
// buffers get plain output.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.logger != nil {
		return a.logger.Close()
	}
	return nil
}

func loadBundle(path string) (*catalog.Bundle, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

// =============================================================================
// Flags
// =============================================================================

func addSearchFlags(cmd *cobra.Command, f *searchFlags) {
	fs := cmd.Flags()
	fs.StringVarP(&f.goal, "goal", "g", "", "preset goal name (see `goap catalog`)")
	fs.StringToStringVar(&f.goalConds, "goal-cond", nil, "explicit goal conditions, e.g. auth_implemented=true")
	fs.StringSliceVar(&f.state, "state", nil, "true conditions of the start state (default: catalog initial state)")
	fs.BoolVar(&f.reopen, "reopen", false, "re-expand states reached again at lower cost")
	fs.Float64Var(&f.weight, "weight", 0, "heuristic weight; values above 1 shrink the search but may miss the cheapest plan (default from config)")
	fs.IntVar(&f.maxNodes, "max-nodes", 0, "node expansion cap (default from config)")
	fs.DurationVar(&f.timeout, "timeout", 0, "search timeout (default from config)")
}

func addPlanFlag(cmd *cobra.Command, f *searchFlags) {
	cmd.Flags().StringSliceVarP(&f.planIDs, "plan", "p", nil, "comma-separated action IDs; when absent the plan is searched for --goal")
}

func (a *app) startState(cmd *cobra.Command, f *searchFlags) (worldstate.State, error) {
	if !cmd.Flags().Changed("state") {
		return a.bundle.Initial, nil
	}
	return a.bundle.Schema.StateFromTrue(f.state...)
}

func (a *app) goalPredicate(f *searchFlags) (worldstate.Predicate, error) {
	if len(f.goalConds) > 0 {
		m := make(map[string]bool, len(f.goalConds))
		for k, v := range f.goalConds {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return worldstate.Predicate{}, fmt.Errorf("--goal-cond %s: %w", k, err)
			}
			m[k] = b
		}
		return a.bundle.Schema.PredicateFromMap(m)
	}
	if f.goal == "" {
		return worldstate.Predicate{}, errors.New("--goal or --goal-cond is required")
	}
	name, err := validation.SanitizeIdentifier(f.goal)
	if err != nil {
		return worldstate.Predicate{}, fmt.Errorf("--goal: %w", err)
	}
	return a.bundle.Goal(name)
}

func (a *app) newPlanner(start worldstate.State, f *searchFlags) (*planner.Planner, error) {
	cfg := a.cfg.Planner
	if f.reopen {
		cfg.ReopenClosed = true
	}
	if f.weight > 0 {
		cfg.HeuristicWeight = f.weight
	}
	if f.maxNodes > 0 {
		cfg.MaxNodes = f.maxNodes
	}
	if f.timeout > 0 {
		cfg.Timeout = f.timeout
	}
	return planner.New(a.bundle.Catalog, start, cfg, planner.WithLogger(a.logger.Slog()))
}

// planFromFlags resolves --plan, or searches for the goal when --plan is
// absent. A failed search is printed and reported as errReported.
func (a *app) planFromFlags(cmd *cobra.Command, f *searchFlags) (*planner.Planner, []catalog.Action, error) {
	start, err := a.startState(cmd, f)
	if err != nil {
		return nil, nil, err
	}
	p, err := a.newPlanner(start, f)
	if err != nil {
		return nil, nil, err
	}

	if len(f.planIDs) > 0 {
		if err := validation.ValidateIdentifiers(f.planIDs); err != nil {
			return nil, nil, fmt.Errorf("--plan: %w", err)
		}
		plan, err := p.ResolvePlan(f.planIDs)
		return p, plan, err
	}

	goal, err := a.goalPredicate(f)
	if err != nil {
		return nil, nil, err
	}
	result := p.FindPlan(cmd.Context(), goal)
	if !result.Success {
		if a.jsonOut {
			_ = a.writeJSON(result)
		} else {
			a.renderPlanningResult(result)
		}
		return nil, nil, errReported
	}
	return p, result.Plan, nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// Commands
// =============================================================================

func (a *app) planCmd() *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Find the cheapest plan from the start state to a goal",
		Long: `Find the cheapest plan from the start state to a goal.

Goals that name many conditions, such as the shipped "full" preset, exceed
the default node cap with the plain heuristic. Raise the heuristic weight
to trade optimality for a much smaller search:

  goap plan --goal full --weight 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := a.startState(cmd, f)
			if err != nil {
				return err
			}
			goal, err := a.goalPredicate(f)
			if err != nil {
				return err
			}
			p, err := a.newPlanner(start, f)
			if err != nil {
				return err
			}

			result := p.FindPlan(cmd.Context(), goal)
			if a.jsonOut {
				if err := a.writeJSON(result); err != nil {
					return err
				}
			} else {
				a.renderPlanningResult(result)
			}
			if !result.Success {
				return errReported
			}
			return nil
		},
	}
	addSearchFlags(cmd, f)
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that every action's preconditions hold in sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, plan, err := a.planFromFlags(cmd, f)
			if err != nil {
				return err
			}
			result := p.ValidatePlan(cmd.Context(), plan)
			if a.jsonOut {
				if err := a.writeJSON(result); err != nil {
					return err
				}
			} else {
				a.renderValidation(result)
			}
			if !result.Valid {
				return errReported
			}
			return nil
		},
	}
	addSearchFlags(cmd, f)
	addPlanFlag(cmd, f)
	return cmd
}

func (a *app) executeCmd() *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Simulate a plan step by step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, plan, err := a.planFromFlags(cmd, f)
			if err != nil {
				return err
			}
			result := p.ExecutePlan(cmd.Context(), plan)
			if a.jsonOut {
				if err := a.writeJSON(result); err != nil {
					return err
				}
			} else {
				a.renderExecution(result)
			}
			if !result.Success {
				return errReported
			}
			return nil
		},
	}
	addSearchFlags(cmd, f)
	addPlanFlag(cmd, f)
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate a plan's cost and hours per phase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, plan, err := a.planFromFlags(cmd, f)
			if err != nil {
				return err
			}
			summary := p.Summary(plan)
			if a.jsonOut {
				return a.writeJSON(summary)
			}
			a.renderSummary(summary)
			return nil
		},
	}
	addSearchFlags(cmd, f)
	addPlanFlag(cmd, f)
	return cmd
}

func (a *app) graphCmd() *cobra.Command {
	f := &searchFlags{}
	var format string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the plan's dependency graph as Mermaid or DOT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gf, err := planner.ParseGraphFormat(format)
			if err != nil {
				return err
			}
			p, plan, err := a.planFromFlags(cmd, f)
			if err != nil {
				return err
			}
			graph := p.DependencyGraph(plan)
			if a.jsonOut {
				return a.writeJSON(graph)
			}
			_, err = io.WriteString(a.stdout, graph.Render(gf))
			return err
		},
	}
	addSearchFlags(cmd, f)
	addPlanFlag(cmd, f)
	cmd.Flags().StringVar(&format, "format", "mermaid", "output format: mermaid or dot")
	return cmd
}

func (a *app) auditCmd() *cobra.Command {
	f := &searchFlags{}
	var strict bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Flag risky commands and rollback steps in a plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := policy.Default()
			if err != nil {
				return err
			}
			_, plan, err := a.planFromFlags(cmd, f)
			if err != nil {
				return err
			}
			report := engine.Audit(plan)
			if a.jsonOut {
				if err := a.writeJSON(report); err != nil {
					return err
				}
			} else {
				a.renderAudit(report, len(plan))
			}
			if strict && !report.Clean() {
				return errReported
			}
			return nil
		},
	}
	addSearchFlags(cmd, f)
	addPlanFlag(cmd, f)
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when anything is flagged")
	return cmd
}

// catalogView is the JSON shape of `goap catalog --json`.
type catalogView struct {
	Name       string                          `json:"name"`
	Conditions []string                        `json:"conditions"`
	Phases     map[int]string                  `json:"phases"`
	Actions    []catalog.Action                `json:"actions"`
	Initial    worldstate.State                `json:"initial"`
	Goals      map[string]worldstate.Predicate `json:"goals"`
}

func (a *app) catalogCmd() *cobra.Command {
	var maxPhase int
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List actions, phases and preset goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := a.bundle
			cat := b.Catalog
			if cmd.Flags().Changed("max-phase") {
				cat = cat.UpToPhase(maxPhase)
			}
			if a.jsonOut {
				return a.writeJSON(catalogView{
					Name:       b.Name,
					Conditions: b.Schema.Names(),
					Phases:     b.PhaseNames,
					Actions:    cat.Actions(),
					Initial:    b.Initial,
					Goals:      b.Goals,
				})
			}
			a.renderCatalog(b, cat)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPhase, "max-phase", 0, "only list actions up to this phase")
	return cmd
}
