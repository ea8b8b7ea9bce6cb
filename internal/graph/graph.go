// Package graph builds typed relationship graphs between bonds, sectors,
// issuers and ratings.
//
// A Graph is an arena: nodes live in a slice and are addressed by index,
// with a single id → index table used only at the query boundary. Graphs
// are built once and never mutated afterwards; accessors return copies.
package graph

import (
	"fmt"
	"sort"
)

// NodeType tags a node.
type NodeType string

const (
	NodeBond   NodeType = "bond"
	NodeSector NodeType = "sector"
	NodeIssuer NodeType = "issuer"
	NodeRating NodeType = "rating"
)

// Relation labels an edge.
type Relation string

const (
	RelBelongsToSector Relation = "belongs_to_sector"
	RelHasRating       Relation = "has_rating"
	RelIssuesBond      Relation = "issues_bond"
	RelInSector        Relation = "in_sector"
	RelIssuedBy        Relation = "issued_by"
)

// Node is a typed vertex.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
}

// Edge connects two node ids. For undirected graphs From < To.
type Edge struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Relation Relation `json:"relation"`
}

type halfEdge struct {
	to  int
	rel Relation
}

// Graph is an immutable typed graph.
type Graph struct {
	directed bool
	nodes    []Node
	index    map[string]int
	out      [][]halfEdge // adjacency; mirrors both directions when undirected
	in       [][]halfEdge // reverse adjacency, directed graphs only
	edges    int
}

// CollisionError is returned when one identifier is used for two node types,
// e.g. a sector named like a bond.
type CollisionError struct {
	ID       string
	Existing NodeType
	Incoming NodeType
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("node %q is already a %s, cannot reuse it as a %s", e.ID, e.Existing, e.Incoming)
}

// builder accumulates nodes and edges before a Graph is frozen.
type builder struct {
	g *Graph
}

func newBuilder(directed bool) *builder {
	return &builder{g: &Graph{directed: directed, index: make(map[string]int)}}
}

func (b *builder) node(id string, t NodeType) (int, error) {
	if i, ok := b.g.index[id]; ok {
		if b.g.nodes[i].Type != t {
			return 0, &CollisionError{ID: id, Existing: b.g.nodes[i].Type, Incoming: t}
		}
		return i, nil
	}
	i := len(b.g.nodes)
	b.g.nodes = append(b.g.nodes, Node{ID: id, Type: t})
	b.g.index[id] = i
	b.g.out = append(b.g.out, nil)
	if b.g.directed {
		b.g.in = append(b.g.in, nil)
	}
	return i, nil
}

// edge adds from→to unless it already exists.
func (b *builder) edge(from, to int, rel Relation) {
	for _, h := range b.g.out[from] {
		if h.to == to {
			return
		}
	}
	b.g.out[from] = append(b.g.out[from], halfEdge{to: to, rel: rel})
	if b.g.directed {
		b.g.in[to] = append(b.g.in[to], halfEdge{to: from, rel: rel})
	} else if from != to {
		b.g.out[to] = append(b.g.out[to], halfEdge{to: from, rel: rel})
	}
	b.g.edges++
}

func (b *builder) build() *Graph { return b.g }

// ════════════════════════════════════════════════════════════════════
// Queries
// ════════════════════════════════════════════════════════════════════

// Directed reports whether edges have a direction.
func (g *Graph) Directed() bool { return g.directed }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Has reports whether id is a node.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// NodeType returns the type of id.
func (g *Graph) NodeType(id string) (NodeType, bool) {
	i, ok := g.index[id]
	if !ok {
		return "", false
	}
	return g.nodes[i].Type, true
}

// Nodes returns every node sorted by id.
func (g *Graph) Nodes() []Node {
	out := append([]Node(nil), g.nodes...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodesOfType returns the ids of every node of type t, sorted.
func (g *Graph) NodesOfType(t NodeType) []string {
	var out []string
	for _, n := range g.nodes {
		if n.Type == t {
			out = append(out, n.ID)
		}
	}
	sort.Strings(out)
	return out
}

// Edges returns every edge sorted by (From, To). Undirected edges are
// reported once with From < To.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for i, adj := range g.out {
		for _, h := range adj {
			from, to := g.nodes[i].ID, g.nodes[h.to].ID
			if !g.directed {
				if from > to {
					continue
				}
			}
			out = append(out, Edge{From: from, To: to, Relation: h.rel})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Neighbors returns the ids adjacent to id in insertion order: successors
// for directed graphs, every incident node for undirected ones. Unknown ids
// yield nil.
func (g *Graph) Neighbors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.out[i]))
	for _, h := range g.out[i] {
		out = append(out, g.nodes[h.to].ID)
	}
	return out
}

// Predecessors returns the nodes with an edge into id. For undirected graphs
// it equals Neighbors.
func (g *Graph) Predecessors(id string) []string {
	if !g.directed {
		return g.Neighbors(id)
	}
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.in[i]))
	for _, h := range g.in[i] {
		out = append(out, g.nodes[h.to].ID)
	}
	return out
}

// HasEdge reports whether a→b exists (either direction when undirected).
func (g *Graph) HasEdge(a, b string) bool {
	i, ok := g.index[a]
	if !ok {
		return false
	}
	j, ok := g.index[b]
	if !ok {
		return false
	}
	for _, h := range g.out[i] {
		if h.to == j {
			return true
		}
	}
	return false
}

// Relation returns the label of a→b.
func (g *Graph) Relation(a, b string) (Relation, bool) {
	i, ok := g.index[a]
	if !ok {
		return "", false
	}
	j, ok := g.index[b]
	if !ok {
		return "", false
	}
	for _, h := range g.out[i] {
		if h.to == j {
			return h.rel, true
		}
	}
	return "", false
}

// ShortestPath returns the node ids of a shortest path from → to (inclusive)
// following edge direction, using BFS over node indices.
func (g *Graph) ShortestPath(from, to string) ([]string, bool) {
	src, ok := g.index[from]
	if !ok {
		return nil, false
	}
	dst, ok := g.index[to]
	if !ok {
		return nil, false
	}

	prev := make([]int, len(g.nodes))
	for i := range prev {
		prev[i] = -1
	}
	prev[src] = src
	queue := []int{src}
	for len(queue) > 0 && prev[dst] == -1 {
		cur := queue[0]
		queue = queue[1:]
		for _, h := range g.out[cur] {
			if prev[h.to] == -1 {
				prev[h.to] = cur
				queue = append(queue, h.to)
			}
		}
	}
	if prev[dst] == -1 {
		return nil, false
	}

	var path []string
	for at := dst; ; at = prev[at] {
		path = append(path, g.nodes[at].ID)
		if at == src {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}
