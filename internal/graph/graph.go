// Package graph holds the social graph model rendered by the client: users
// and posts as nodes, authorship, friendship and view relations as weighted
// edges, plus the layout and scene integration around it.
package graph

import (
	"errors"
	"fmt"
)

// NodeKind drives pointer dispatch and styling.
type NodeKind string

const (
	NodeUser NodeKind = "user"
	NodePost NodeKind = "post"
)

var (
	ErrNodeExists  = errors.New("node already exists")
	ErrEdgeExists  = errors.New("edge already exists")
	ErrMissingNode = errors.New("edge endpoint not found")
)

type Node struct {
	ID      string   `json:"id"`
	Kind    NodeKind `json:"nodeType"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Size    float64  `json:"size"`
	Color   string   `json:"color,omitempty"`
	Image   string   `json:"image,omitempty"`
	Program string   `json:"type,omitempty"`
}

type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Label  string  `json:"label"`
	Size   float64 `json:"size"`
	Color  string  `json:"color,omitempty"`
	Weight float64 `json:"weight"`
}

type edgeKey struct {
	source string
	target string
}

// Graph is a directed simple graph with at most one edge per ordered pair.
// It is not safe for concurrent use; Scene serializes access.
type Graph struct {
	nodes     map[string]*Node
	order     []string
	edges     map[edgeKey]*Edge
	edgeOrder []edgeKey
	degree    map[string]int
}

func New() *Graph {
	return &Graph{
		nodes:  make(map[string]*Node),
		edges:  make(map[edgeKey]*Edge),
		degree: make(map[string]int),
	}
}

func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("add node: empty id")
	}
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("add node %s: %w", n.ID, ErrNodeExists)
	}
	node := n
	g.nodes[n.ID] = &node
	g.order = append(g.order, n.ID)
	return nil
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of the node attributes.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// UpdateNode applies fn to the stored node in place.
func (g *Graph) UpdateNode(id string, fn func(*Node)) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	fn(n)
	n.ID = id
	return true
}

func (g *Graph) AddEdge(e Edge) error {
	if !g.HasNode(e.Source) || !g.HasNode(e.Target) {
		return fmt.Errorf("add edge %s->%s: %w", e.Source, e.Target, ErrMissingNode)
	}
	key := edgeKey{source: e.Source, target: e.Target}
	if _, ok := g.edges[key]; ok {
		return fmt.Errorf("add edge %s->%s: %w", e.Source, e.Target, ErrEdgeExists)
	}
	edge := e
	g.edges[key] = &edge
	g.edgeOrder = append(g.edgeOrder, key)
	g.degree[e.Source]++
	g.degree[e.Target]++
	return nil
}

// HasEdge checks the directed pair source->target.
func (g *Graph) HasEdge(source, target string) bool {
	_, ok := g.edges[edgeKey{source: source, target: target}]
	return ok
}

// HasUndirectedEdge checks both directions.
func (g *Graph) HasUndirectedEdge(a, b string) bool {
	return g.HasEdge(a, b) || g.HasEdge(b, a)
}

func (g *Graph) Degree(id string) int {
	return g.degree[id]
}

// Order is the number of nodes.
func (g *Graph) Order() int {
	return len(g.nodes)
}

// Size is the number of edges.
func (g *Graph) Size() int {
	return len(g.edges)
}

// Nodes returns copies in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Edges returns copies in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edgeOrder))
	for _, key := range g.edgeOrder {
		out = append(out, *g.edges[key])
	}
	return out
}
