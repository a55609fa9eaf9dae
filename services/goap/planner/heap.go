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
	"container/heap"

	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// searchNode is one entry of the open set. Nodes share path prefixes through
// parent pointers instead of copying the action path on every push.
type searchNode struct {
	state  worldstate.State
	g      float64
	h      int
	f      float64
	seq    uint64
	depth  int
	parent *searchNode
	action int // catalog index of the action that produced this node, -1 for the start
}

// path rebuilds the catalog indices from the start node to n.
func (n *searchNode) path() []int {
	out := make([]int, n.depth)
	for cur := n; cur.parent != nil; cur = cur.parent {
		out[cur.depth-1] = cur.action
	}
	return out
}

// nodeHeap orders nodes by f, then by discovery order.
type nodeHeap []*searchNode

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(*searchNode)) }

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return node
}

// openSet is a binary min-heap of search nodes with a discovery counter.
type openSet struct {
	nodes nodeHeap
	next  uint64
}

func newOpenSet(capacity int) *openSet {
	return &openSet{nodes: make(nodeHeap, 0, capacity)}
}

// push stamps n with the next discovery number and inserts it.
func (o *openSet) push(n *searchNode) {
	n.seq = o.next
	o.next++
	heap.Push(&o.nodes, n)
}

func (o *openSet) pop() *searchNode {
	return heap.Pop(&o.nodes).(*searchNode)
}

func (o *openSet) len() int {
	return o.nodes.Len()
}
