package graph

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/son-et/pkg/nodeid"
)

// buildRandomDAG inserts n extra nodes and, for each, connects it to a
// pseudo-random earlier node (including possibly the master), which by
// construction can never introduce a cycle since edges only ever point
// from a later-inserted node to an earlier one.
func buildRandomDAG(n int, seed int64) (*Graph, []nodeid.ID) {
	master := nodeid.New()
	g := New(master, passNode{})
	ids := []nodeid.ID{master}

	state := seed
	next := func(mod int) int {
		state = state*6364136223846793005 + 1442695040888963407
		v := int(state>>33) % mod
		if v < 0 {
			v = -v
		}
		return v
	}

	for i := 0; i < n; i++ {
		id := nodeid.New()
		g.Insert(id, passNode{})
		ids = append(ids, id)
		target := ids[next(len(ids))]
		if target == id {
			continue
		}
		_ = g.Connect(id, target)
	}
	return g, ids
}

func TestTopologicalOrderSatisfiesEdgeRuleProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("every edge a->b places a after b, and master is first", prop.ForAll(
		func(n int, seed int64) bool {
			g, ids := buildRandomDAG(n, seed)
			order := g.Order()

			if order[0] != g.Master() {
				return false
			}
			pos := make(map[nodeid.ID]int, len(order))
			for i, id := range order {
				pos[id] = i
			}
			for _, id := range ids {
				e := g.nodes[id]
				for target := range e.outgoing {
					if pos[id] <= pos[target] {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(0, 40),
		gen.Int64Range(1, 1<<40),
	))

	properties.TestingRun(t)
}
