package pathfind

import (
	"container/heap"
	"errors"

	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/navmesh"
)

// ErrNoPath is returned when the search frontier empties before the goal is
// reached (disconnected free space, or start/goal marooned).
var ErrNoPath = errors.New("pathfind: no path found")

// ConnectionPolicy resolves arbitrary start/goal coordinates against the
// mesh.
type ConnectionPolicy int

const (
	// ConnectToClosest inserts a new node plus an edge to the nearest
	// existing node.
	ConnectToClosest ConnectionPolicy = iota
	// SnapToClosest treats the nearest existing node as the effective
	// start/goal.
	SnapToClosest
)

// Heuristic selects the A* heuristic.
type Heuristic int

const (
	// HeuristicEuclidean is plain straight-line distance to the goal.
	HeuristicEuclidean Heuristic = iota
	// HeuristicDirected adds a penalty proportional to the turning angle
	// between the incoming and candidate edge, preferring smoother paths.
	HeuristicDirected
	// HeuristicCustom delegates to Options.Custom.
	HeuristicCustom
)

// HeuristicFunc scores a candidate node. current is the node being expanded,
// next the candidate neighbor.
type HeuristicFunc func(m *navmesh.Mesh, start, goal, current, next navmesh.NodeID) float64

// Options tune a FindPath call.
type Options struct {
	Heuristic   Heuristic
	TurnPenalty float64 // weight of the direction bias; <= 0 means 1
	Custom      HeuristicFunc
	Zones       []SpeedZone
}

type openItem struct {
	id    navmesh.NodeID
	f     float64
	order int // insertion order tie-break
	index int
}

type openHeap []*openItem

func (h openHeap) Len() int { return len(h) }
func (h openHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].order < h[j].order
}
func (h openHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *openHeap) Push(x any) {
	it := x.(*openItem)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *openHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// FindPath resolves start and goal against the mesh using the connection
// policy, then runs A*. Stitching edges inserted by ConnectToClosest remain
// in the mesh, matching the traversal-space cache semantics.
func FindPath(m *navmesh.Mesh, start, goal geom.Vec, policy ConnectionPolicy, opts Options) (Path, error) {
	if m.Len() == 0 {
		return Path{}, ErrNoPath
	}
	startID, ok := resolveEndpoint(m, start, policy)
	if !ok {
		return Path{}, ErrNoPath
	}
	goalID, ok := resolveEndpoint(m, goal, policy)
	if !ok {
		return Path{}, ErrNoPath
	}

	ids, err := search(m, startID, goalID, opts)
	if err != nil {
		return Path{}, err
	}
	pts := make([]geom.Vec, 0, len(ids))
	for _, id := range ids {
		p, _ := m.Pos(id)
		pts = append(pts, p)
	}
	return Path{Points: pts}, nil
}

func resolveEndpoint(m *navmesh.Mesh, p geom.Vec, policy ConnectionPolicy) (navmesh.NodeID, bool) {
	closest, closestPos, ok := m.Closest(p)
	if !ok {
		return 0, false
	}
	switch policy {
	case SnapToClosest:
		return closest, true
	default: // ConnectToClosest
		if closestPos == p {
			return closest, true
		}
		id := m.AddNode(p)
		m.AddEdge(id, closest, 0)
		return id, true
	}
}

type searchNode struct {
	parent navmesh.NodeID
	g      float64
	f      float64
}

func search(m *navmesh.Mesh, start, goal navmesh.NodeID, opts Options) ([]navmesh.NodeID, error) {
	h := heuristicFor(opts)

	nodes := map[navmesh.NodeID]*searchNode{
		start: {parent: -1},
	}
	open := &openHeap{}
	order := 0
	heap.Push(open, &openItem{id: start, f: 0, order: order})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*openItem)
		if cur.id == goal {
			return retrace(nodes, goal), nil
		}
		curNode := nodes[cur.id]

		m.Neighbors(cur.id, func(nb navmesh.NodeID, w float64) {
			w = scaledWeight(m, cur.id, nb, w, opts.Zones)
			g := curNode.g + w
			f := g + h(m, start, goal, cur.id, nb)
			existing, known := nodes[nb]
			if known && f >= existing.f {
				return
			}
			if !known {
				existing = &searchNode{}
				nodes[nb] = existing
			}
			existing.parent = cur.id
			existing.g = g
			existing.f = f
			order++
			heap.Push(open, &openItem{id: nb, f: f, order: order})
		})
	}
	return nil, ErrNoPath
}

// scaledWeight applies speed-zone scaling: an edge whose midpoint lies in a
// zone costs weight divided by the zone multiplier.
func scaledWeight(m *navmesh.Mesh, a, b navmesh.NodeID, w float64, zones []SpeedZone) float64 {
	if len(zones) == 0 {
		return w
	}
	pa, _ := m.Pos(a)
	pb, _ := m.Pos(b)
	mult := ZoneMultiplier(zones, geom.Lerp(pa, pb, 0.5))
	if mult <= 0 {
		return w
	}
	return w / mult
}

func heuristicFor(opts Options) HeuristicFunc {
	switch opts.Heuristic {
	case HeuristicDirected:
		weight := opts.TurnPenalty
		if weight <= 0 {
			weight = 1
		}
		return func(m *navmesh.Mesh, start, goal, current, next navmesh.NodeID) float64 {
			goalPos, _ := m.Pos(goal)
			curPos, _ := m.Pos(current)
			nextPos, _ := m.Pos(next)
			toNext := nextPos.Sub(curPos)
			toGoal := goalPos.Sub(nextPos)
			return nextPos.Dist(goalPos) + geom.AngleBetween(toNext, toGoal)*weight
		}
	case HeuristicCustom:
		if opts.Custom != nil {
			return opts.Custom
		}
		fallthrough
	default:
		return func(m *navmesh.Mesh, start, goal, current, next navmesh.NodeID) float64 {
			goalPos, _ := m.Pos(goal)
			nextPos, _ := m.Pos(next)
			return nextPos.Dist(goalPos)
		}
	}
}

func retrace(nodes map[navmesh.NodeID]*searchNode, goal navmesh.NodeID) []navmesh.NodeID {
	var out []navmesh.NodeID
	id := goal
	for {
		out = append(out, id)
		n := nodes[id]
		if n.parent < 0 {
			break
		}
		id = n.parent
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
