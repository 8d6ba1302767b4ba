// Package tree stores trees in an arena.
//
// Nodes are addressed by stable integer indices instead of pointers, so an index
// can be kept as a checkpoint and handed around freely while the tree grows.
package tree

import (
	"fmt"
	"strings"
)

// Index of the parent of the root
const NoParent = -1

type node[T any] struct {
	payload  T
	parent   int
	children []int
	depth    int
}

type Arena[T any] struct {
	nodes []node[T]
	eq    func(a, b T) bool
}

// Create a new arena with the provided payload at the root.
// eq is used to look up children by payload.
func New[T any](payload T, eq func(a, b T) bool) *Arena[T] {
	return &Arena[T]{
		nodes: []node[T]{{payload: payload, parent: NoParent}},
		eq:    eq,
	}
}

func (a *Arena[T]) Root() int {
	return 0
}

// Returns the total number of nodes in the tree
func (a *Arena[T]) Len() int {
	return len(a.nodes)
}

// Adds a new child with the provided payload to the parent node and returns its index
func (a *Arena[T]) AddChild(parent int, payload T) int {
	idx := len(a.nodes)
	a.nodes = append(a.nodes, node[T]{
		payload: payload,
		parent:  parent,
		depth:   a.nodes[parent].depth + 1,
	})
	a.nodes[parent].children = append(a.nodes[parent].children, idx)
	return idx
}

// Returns the first child of parent with the provided payload
func (a *Arena[T]) GetChild(parent int, payload T) (int, bool) {
	for _, c := range a.nodes[parent].children {
		if a.eq(payload, a.nodes[c].payload) {
			return c, true
		}
	}
	return 0, false
}

func (a *Arena[T]) HasChild(parent int, payload T) bool {
	_, ok := a.GetChild(parent, payload)
	return ok
}

func (a *Arena[T]) Payload(i int) T {
	return a.nodes[i].payload
}

func (a *Arena[T]) SetPayload(i int, payload T) {
	a.nodes[i].payload = payload
}

func (a *Arena[T]) Parent(i int) int {
	return a.nodes[i].parent
}

func (a *Arena[T]) Depth(i int) int {
	return a.nodes[i].depth
}

func (a *Arena[T]) Children(i int) []int {
	return a.nodes[i].children
}

func (a *Arena[T]) IsLeaf(i int) bool {
	return len(a.nodes[i].children) == 0
}

// Path returns the indices from the root down to i, both included
func (a *Arena[T]) Path(i int) []int {
	path := make([]int, a.nodes[i].depth+1)
	for j := len(path) - 1; j >= 0; j-- {
		path[j] = i
		i = a.nodes[i].parent
	}
	return path
}

// Returns the indices of all leaf nodes below i
func (a *Arena[T]) Leaves(i int) []int {
	if a.IsLeaf(i) {
		return []int{i}
	}
	out := []int{}
	for _, c := range a.nodes[i].children {
		out = append(out, a.Leaves(c)...)
	}
	return out
}

// Returns true if the search function is true for some node below i.
// Performs a DFS to find the node.
func (a *Arena[T]) DepthFirstSearch(i int, search func(T) bool) bool {
	if search(a.nodes[i].payload) {
		return true
	}
	for _, c := range a.nodes[i].children {
		if a.DepthFirstSearch(c, search) {
			return true
		}
	}
	return false
}

// String representation of the subtree rooted in i
func (a *Arena[T]) String() string {
	out := strings.Builder{}
	a.write(&out, a.Root())
	return out.String()
}

func (a *Arena[T]) write(out *strings.Builder, i int) {
	out.WriteString(strings.Repeat("-", a.nodes[i].depth))
	out.WriteString(fmt.Sprintf("%v\n", a.nodes[i].payload))
	for _, c := range a.nodes[i].children {
		a.write(out, c)
	}
}

// Newick representation of the whole tree
func (a *Arena[T]) Newick() string {
	out := strings.Builder{}
	a.newick(&out, a.Root())
	out.WriteString(";")
	return out.String()
}

func (a *Arena[T]) newick(out *strings.Builder, i int) {
	if children := a.nodes[i].children; len(children) > 0 {
		out.WriteString("(")
		for j, c := range children {
			if j > 0 {
				out.WriteString(",")
			}
			a.newick(out, c)
		}
		out.WriteString(")")
	}
	out.WriteString(fmt.Sprintf("\"%v\"", a.nodes[i].payload))
}
