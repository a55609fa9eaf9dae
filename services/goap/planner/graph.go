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
	"strconv"
	"strings"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
)

// GraphFormat selects the text rendering of a dependency graph.
type GraphFormat string

const (
	FormatMermaid GraphFormat = "mermaid"
	FormatDOT     GraphFormat = "dot"
)

// ParseGraphFormat accepts "mermaid" (also the empty string) and "dot".
func ParseGraphFormat(s string) (GraphFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mermaid":
		return FormatMermaid, nil
	case "dot", "graphviz":
		return FormatDOT, nil
	default:
		return "", fmt.Errorf("unknown graph format %q", s)
	}
}

// GraphNode is one action of the plan.
type GraphNode struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Phase int     `json:"phase"`
	Hours float64 `json:"hours"`
}

// GraphEdge links an earlier action to a later one that depends on it.
// Keys lists the conditions that form the causal link.
type GraphEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Keys []string `json:"keys"`
}

// DependencyGraph is the causal structure of a plan, for visualization.
type DependencyGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// BuildDependencyGraph derives the causal-link graph of plan.
//
// Description:
//
//	One node per distinct action ID, in plan order. An edge runs from an
//	earlier action to a later one wherever a precondition of the later
//	action equals an effect of the earlier one. This is the same heuristic
//	ValidatePlan uses for Dependencies; the search never consults it.
func BuildDependencyGraph(plan []catalog.Action) DependencyGraph {
	g := DependencyGraph{Nodes: []GraphNode{}, Edges: []GraphEdge{}}

	seenNode := make(map[string]struct{}, len(plan))
	seenEdge := make(map[[2]string]struct{})
	for i, a := range plan {
		if _, ok := seenNode[a.ID]; !ok {
			seenNode[a.ID] = struct{}{}
			g.Nodes = append(g.Nodes, GraphNode{ID: a.ID, Name: a.Name, Phase: a.Phase, Hours: a.EstimatedHours})
		}
		for j := 0; j < i; j++ {
			keys := a.Preconditions.MatchingKeys(plan[j].Effects)
			if len(keys) == 0 || plan[j].ID == a.ID {
				continue
			}
			edge := [2]string{plan[j].ID, a.ID}
			if _, ok := seenEdge[edge]; ok {
				continue
			}
			seenEdge[edge] = struct{}{}
			g.Edges = append(g.Edges, GraphEdge{From: plan[j].ID, To: a.ID, Keys: keys})
		}
	}
	return g
}

// Render writes the graph as Mermaid flowchart or Graphviz DOT text.
func (g DependencyGraph) Render(format GraphFormat) string {
	if format == FormatDOT {
		return g.renderDOT()
	}
	return g.renderMermaid()
}

func (g DependencyGraph) renderMermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "    %s[\"%s<br/>phase %d, %sh\"]\n",
			n.ID, mermaidEscape(nodeLabel(n)), n.Phase, formatHours(n.Hours))
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "    %s --> %s\n", e.From, e.To)
	}
	return b.String()
}

func (g DependencyGraph) renderDOT() string {
	var b strings.Builder
	b.WriteString("digraph plan {\n")
	b.WriteString("    rankdir=LR;\n")
	b.WriteString("    node [shape=box];\n")
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "    %s [label=%s];\n", strconv.Quote(n.ID),
			strconv.Quote(fmt.Sprintf("%s\nphase %d, %sh", nodeLabel(n), n.Phase, formatHours(n.Hours))))
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "    %s -> %s [label=%s];\n",
			strconv.Quote(e.From), strconv.Quote(e.To), strconv.Quote(strings.Join(e.Keys, ",")))
	}
	b.WriteString("}\n")
	return b.String()
}

func nodeLabel(n GraphNode) string {
	if n.Name == "" {
		return n.ID
	}
	return n.Name
}

func mermaidEscape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
