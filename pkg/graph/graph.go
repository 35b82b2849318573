// Package graph implements the audio processing graph: a DAG of nodes
// keyed by a stable id, cycle-checked connect/disconnect, lazy
// topological scheduling, and per-node buffer caching so fan-out edges
// reuse a producer's output instead of recomputing it.
package graph

import (
	"fmt"

	"github.com/zurustar/son-et/pkg/nodeid"
)

// Node is anything the graph can schedule: render [blockStartSample,
// blockStartSample+len(buf)/2) into buf (interleaved stereo, pre-seeded
// with the sum of this node's inputs) in place.
type Node interface {
	Process(blockStartSample uint64, buf []float32) error
}

// entry is one node's graph bookkeeping. outgoing is the set of nodes
// this node feeds (edge this -> target); incoming is its mirror, the set
// of nodes that feed this one, kept in lockstep so FillBuf can gather a
// node's inputs without a DFS every block. cache holds the last block
// this node produced.
type entry struct {
	node     Node
	outgoing map[nodeid.ID]struct{}
	incoming map[nodeid.ID]struct{}
	cache    []float32
}

func newEntry(n Node) *entry {
	return &entry{node: n, outgoing: make(map[nodeid.ID]struct{}), incoming: make(map[nodeid.ID]struct{})}
}

// Graph is a DAG of nodes. The zero value is not usable; use New.
type Graph struct {
	nodes  map[nodeid.ID]*entry
	order  []nodeid.ID
	master nodeid.ID
	dirty  bool
}

// New builds a graph with master as its initial sink node.
func New(master nodeid.ID, masterNode Node) *Graph {
	g := &Graph{nodes: make(map[nodeid.ID]*entry), master: master}
	g.nodes[master] = newEntry(masterNode)
	g.order = []nodeid.ID{master}
	return g
}

// Master returns the graph's sink node id.
func (g *Graph) Master() nodeid.ID { return g.master }

// Insert adds a new node to the graph with no edges.
func (g *Graph) Insert(id nodeid.ID, n Node) {
	g.nodes[id] = newEntry(n)
	g.order = append(g.order, id)
	g.dirty = true
}

// Remove deletes a node and purges it from every outgoing/incoming set.
// Refuses to remove the master.
func (g *Graph) Remove(id nodeid.ID) error {
	if id == g.master {
		return fmt.Errorf("graph: cannot remove the master node")
	}
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("graph: node %v does not exist", id)
	}
	delete(g.nodes, id)
	for _, e := range g.nodes {
		delete(e.outgoing, id)
		delete(e.incoming, id)
	}
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.dirty = true
	return nil
}

// Connect adds an edge from -> to (from feeds into to), succeeding iff
// both nodes exist, the edge does not already exist, a DFS from to
// cannot reach from (i.e. adding the edge would not create a cycle), and
// from is not the master (the master is the sink and feeds nothing).
func (g *Graph) Connect(from, to nodeid.ID) error {
	fe, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("graph: node %v does not exist", from)
	}
	te, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("graph: node %v does not exist", to)
	}
	if _, ok := fe.outgoing[to]; ok {
		return fmt.Errorf("graph: edge %v -> %v already exists", from, to)
	}
	if g.reachable(to, from) {
		return fmt.Errorf("graph: edge %v -> %v would create a cycle", from, to)
	}
	if from == g.master {
		return fmt.Errorf("graph: the master node %v cannot feed another node", from)
	}
	fe.outgoing[to] = struct{}{}
	te.incoming[from] = struct{}{}
	g.dirty = true
	return nil
}

// Disconnect removes an edge unconditionally; a no-op if it doesn't exist.
func (g *Graph) Disconnect(from, to nodeid.ID) {
	fe, ok := g.nodes[from]
	if !ok {
		return
	}
	if _, existed := fe.outgoing[to]; !existed {
		return
	}
	delete(fe.outgoing, to)
	if te, ok := g.nodes[to]; ok {
		delete(te.incoming, from)
	}
	g.dirty = true
}

// reachable reports whether a path following outgoing edges leads from
// from to to.
func (g *Graph) reachable(from, to nodeid.ID) bool {
	visited := make(map[nodeid.ID]bool)
	var dfs func(nodeid.ID) bool
	dfs = func(n nodeid.ID) bool {
		if n == to {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		e, ok := g.nodes[n]
		if !ok {
			return false
		}
		for next := range e.outgoing {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(from)
}

// resort re-sorts order so that for every edge a -> b (a feeds b), a
// appears after b. This is Kahn's algorithm run over the reversed
// dependency relation: a node becomes schedulable once every node it
// feeds has already been placed, so it starts from nodes with zero
// outgoing edges (the master among them: Connect refuses any edge out of
// it, so nothing is downstream of it) and works backward toward the leaves. Among
// simultaneously-ready nodes, the one with the smallest previous index
// is placed first, which keeps incomparable nodes in their prior
// relative order to maximize cache reuse; the master always wins any
// tie so it lands at index 0.
func (g *Graph) resort() {
	prevIndex := make(map[nodeid.ID]int, len(g.order))
	for i, id := range g.order {
		prevIndex[id] = i
	}

	remaining := make(map[nodeid.ID]int, len(g.nodes))
	for id, e := range g.nodes {
		remaining[id] = len(e.outgoing)
	}

	placed := make(map[nodeid.ID]bool, len(g.nodes))
	newOrder := make([]nodeid.ID, 0, len(g.nodes))

	for len(newOrder) < len(g.nodes) {
		var next nodeid.ID
		found := false
		for id, r := range remaining {
			if placed[id] || r != 0 {
				continue
			}
			switch {
			case !found:
				next, found = id, true
			case id == g.master:
				next = id
			case next == g.master:
				// keep master
			case prevIndex[id] < prevIndex[next]:
				next = id
			}
		}
		if !found {
			break // unreachable for a DAG; defends against a stray cycle
		}
		placed[next] = true
		newOrder = append(newOrder, next)
		if e, ok := g.nodes[next]; ok {
			for src := range e.incoming {
				remaining[src]--
			}
		}
	}

	g.order = newOrder
	g.dirty = false
}

// FillBuf renders one block starting at blockStartSample into buf
// (interleaved stereo), leaving the master's output in buf. For each
// node in order from last to first: zero buf, additively mix every
// feeding node's cached output into buf, invoke the node's Process, then
// copy the result into the node's own cache. After the loop the master's
// cache (the last buf written) is the output.
func (g *Graph) FillBuf(blockStartSample uint64, buf []float32) error {
	if g.dirty {
		g.resort()
	}

	for i := len(g.order) - 1; i >= 0; i-- {
		id := g.order[i]
		e := g.nodes[id]

		for j := range buf {
			buf[j] = 0
		}
		for src := range e.incoming {
			se, ok := g.nodes[src]
			if !ok {
				continue
			}
			n := len(se.cache)
			if n > len(buf) {
				n = len(buf)
			}
			for j := 0; j < n; j++ {
				buf[j] += se.cache[j]
			}
		}

		if err := e.node.Process(blockStartSample, buf); err != nil {
			return fmt.Errorf("graph: node %v: %w", id, err)
		}

		if cap(e.cache) < len(buf) {
			e.cache = make([]float32, len(buf))
		}
		e.cache = e.cache[:len(buf)]
		copy(e.cache, buf)
	}
	return nil
}

// Order returns the current topological order, re-sorting first if
// dirty. Exposed for export (the control thread walks a detached copy of
// the graph) and tests.
func (g *Graph) Order() []nodeid.ID {
	if g.dirty {
		g.resort()
	}
	out := make([]nodeid.ID, len(g.order))
	copy(out, g.order)
	return out
}

// Nodes reports the current node count.
func (g *Graph) Nodes() int { return len(g.nodes) }
