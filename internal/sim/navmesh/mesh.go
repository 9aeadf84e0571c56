// Package navmesh builds a weighted graph over free space from a triangular
// lattice. Node identity is keyed by exact coordinate, so lattice triangles
// that share an edge share nodes and the result is connected wherever free
// space is connected.
package navmesh

import (
	"math"

	"fieldline.dev/internal/sim/geom"
)

type NodeID int

type node struct {
	pos       geom.Vec
	neighbors map[NodeID]float64
}

// Mesh holds node id -> (position, adjacency). Built once and cached;
// pathfinding may stitch in temporary start/goal nodes afterwards.
type Mesh struct {
	nodes    map[NodeID]*node
	encoding map[geom.Vec]NodeID
	nextID   NodeID
}

func New() *Mesh {
	return &Mesh{
		nodes:    make(map[NodeID]*node),
		encoding: make(map[geom.Vec]NodeID),
	}
}

// AddNode returns the id for the node at p, creating it if needed.
func (m *Mesh) AddNode(p geom.Vec) NodeID {
	if id, ok := m.encoding[p]; ok {
		return id
	}
	id := m.nextID
	m.nextID++
	m.nodes[id] = &node{pos: p, neighbors: make(map[NodeID]float64)}
	m.encoding[p] = id
	return id
}

// AddEdge inserts an undirected edge. A non-positive weight means Euclidean
// distance.
func (m *Mesh) AddEdge(a, b NodeID, weight float64) {
	if a == b {
		return
	}
	na, ok := m.nodes[a]
	if !ok {
		return
	}
	nb, ok := m.nodes[b]
	if !ok {
		return
	}
	if weight <= 0 {
		weight = na.pos.Dist(nb.pos)
	}
	na.neighbors[b] = weight
	nb.neighbors[a] = weight
}

// Connect adds both endpoints (deduplicating by coordinate) and an edge
// between them, returning their ids.
func (m *Mesh) Connect(a, b geom.Vec) (NodeID, NodeID) {
	ia := m.AddNode(a)
	ib := m.AddNode(b)
	m.AddEdge(ia, ib, 0)
	return ia, ib
}

func (m *Mesh) Pos(id NodeID) (geom.Vec, bool) {
	n, ok := m.nodes[id]
	if !ok {
		return geom.Vec{}, false
	}
	return n.pos, true
}

// NodeAt returns the id of the node exactly at p.
func (m *Mesh) NodeAt(p geom.Vec) (NodeID, bool) {
	id, ok := m.encoding[p]
	return id, ok
}

func (m *Mesh) Len() int { return len(m.nodes) }

// Neighbors calls fn for each neighbor of id with the edge weight.
func (m *Mesh) Neighbors(id NodeID, fn func(NodeID, float64)) {
	n, ok := m.nodes[id]
	if !ok {
		return
	}
	for nb, w := range n.neighbors {
		fn(nb, w)
	}
}

// Closest returns the node nearest to p.
func (m *Mesh) Closest(p geom.Vec) (NodeID, geom.Vec, bool) {
	best := NodeID(-1)
	bestPos := geom.Vec{}
	bestD := math.Inf(1)
	for id, n := range m.nodes {
		d := n.pos.DistSq(p)
		if d < bestD || (d == bestD && (best < 0 || id < best)) {
			best, bestPos, bestD = id, n.pos, d
		}
	}
	if best < 0 {
		return 0, geom.Vec{}, false
	}
	return best, bestPos, true
}

// Edges calls fn once per undirected edge.
func (m *Mesh) Edges(fn func(a, b geom.Vec, weight float64)) {
	for id, n := range m.nodes {
		for nb, w := range n.neighbors {
			if nb > id {
				fn(n.pos, m.nodes[nb].pos, w)
			}
		}
	}
}
