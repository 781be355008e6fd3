package calc

import (
	"fmt"
	"math"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/goals"
)

const noNode int32 = -1

// node is one visited position. Nodes live in an arena and refer to each
// other by index, so the search tree can be dropped in one go.
type node struct {
	x, y, z int
	hash    int64

	cost         float64
	estimate     float64
	combinedCost float64

	prev int32
	// heapPos is the node's slot in the open set, 0 when not open.
	heapPos int32
}

func (n *node) pos() blockpos.Pos { return blockpos.New(n.x, n.y, n.z) }

type arena struct {
	goal  goals.Goal
	nodes []node
	index map[int64]int32
}

func newArena(goal goals.Goal) *arena {
	return &arena{
		goal:  goal,
		nodes: make([]node, 0, 1024),
		index: make(map[int64]int32, 1024),
	}
}

func (a *arena) at(i int32) *node { return &a.nodes[i] }

func (a *arena) len() int { return len(a.nodes) }

// get returns the node at (x, y, z), creating it with infinite cost on the
// first visit. Pointers into the arena do not survive a call to get.
func (a *arena) get(x, y, z int, hash int64) int32 {
	if i, ok := a.index[hash]; ok {
		return i
	}
	h := a.goal.Heuristic(x, y, z)
	if math.IsNaN(h) {
		panic(fmt.Sprintf("calc: goal %v returned NaN heuristic at (%d,%d,%d)", a.goal, x, y, z))
	}
	i := int32(len(a.nodes))
	a.nodes = append(a.nodes, node{
		x: x, y: y, z: z,
		hash:     hash,
		cost:     cost.CostInf,
		estimate: h,
		prev:     noNode,
	})
	a.index[hash] = i
	return i
}

// walkBack lists positions and costs from the root of the tree to i.
func (a *arena) walkBack(i int32) ([]blockpos.Pos, []float64) {
	n := 0
	for j := i; j != noNode; j = a.nodes[j].prev {
		n++
	}
	positions := make([]blockpos.Pos, n)
	costs := make([]float64, n)
	for j := i; j != noNode; j = a.nodes[j].prev {
		n--
		positions[n] = a.nodes[j].pos()
		costs[n] = a.nodes[j].cost
	}
	return positions, costs
}
