package movement

import (
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/worldctx"
)

// Result is where a move lands and what it costs. Cost stays at CostInf when
// the move is impossible.
type Result struct {
	X, Y, Z int
	Cost    float64
}

func (r *Result) Reset() {
	r.X, r.Y, r.Z = 0, 0, 0
	r.Cost = cost.CostInf
}

// Move generates one kind of edge from any source position. The search
// calls Apply in its inner loop and never allocates; Build materializes the
// edge as a Movement once a path is assembled.
type Move struct {
	Name       string
	DX, DY, DZ int
	// DynamicXZ moves may land off their nominal column; none of the
	// built-in moves do.
	DynamicXZ bool
	// DynamicY moves choose their landing height while costing.
	DynamicY bool

	apply func(w *worldctx.Context, x, y, z int, res *Result)
	build func(w *worldctx.Context, src blockpos.Pos) *Movement
}

// Apply costs the move from (x, y, z) into res. res must be Reset first.
func (mv Move) Apply(w *worldctx.Context, x, y, z int, res *Result) {
	mv.apply(w, x, y, z, res)
}

// Build returns the movement the move produces from src in the given world.
func (mv Move) Build(w *worldctx.Context, src blockpos.Pos) *Movement {
	return mv.build(w, src)
}

func fixed(x, y, z, dx, dy, dz int, c float64, res *Result) {
	res.X, res.Y, res.Z = x+dx, y+dy, z+dz
	res.Cost = c
}

func traverse(name string, dx, dz int) Move {
	return Move{
		Name: name, DX: dx, DZ: dz,
		apply: func(w *worldctx.Context, x, y, z int, res *Result) {
			fixed(x, y, z, dx, 0, dz, traverseCost(w, x, y, z, x+dx, z+dz), res)
		},
		build: func(_ *worldctx.Context, src blockpos.Pos) *Movement {
			return newTraverse(src, src.Add(dx, 0, dz))
		},
	}
}

func ascend(name string, dx, dz int) Move {
	return Move{
		Name: name, DX: dx, DY: 1, DZ: dz,
		apply: func(w *worldctx.Context, x, y, z int, res *Result) {
			fixed(x, y, z, dx, 1, dz, ascendCost(w, x, y, z, x+dx, z+dz), res)
		},
		build: func(_ *worldctx.Context, src blockpos.Pos) *Movement {
			return newAscend(src, src.Add(dx, 1, dz))
		},
	}
}

func descend(name string, dx, dz int) Move {
	return Move{
		Name: name, DX: dx, DY: -1, DZ: dz, DynamicY: true,
		apply: func(w *worldctx.Context, x, y, z int, res *Result) {
			descendCost(w, x, y, z, x+dx, z+dz, res)
		},
		build: func(w *worldctx.Context, src blockpos.Pos) *Movement {
			var res Result
			res.Reset()
			descendCost(w, src.X, src.Y, src.Z, src.X+dx, src.Z+dz, &res)
			if res.Cost >= cost.CostInf || res.Y == src.Y-1 {
				return newDescend(src, src.Add(dx, -1, dz))
			}
			return newFall(src, blockpos.New(res.X, res.Y, res.Z))
		},
	}
}

func diagonal(name string, dx, dz int) Move {
	return Move{
		Name: name, DX: dx, DZ: dz, DynamicY: true,
		apply: func(w *worldctx.Context, x, y, z int, res *Result) {
			diagonalCost(w, x, y, z, x+dx, z+dz, res)
		},
		build: func(w *worldctx.Context, src blockpos.Pos) *Movement {
			var res Result
			res.Reset()
			diagonalCost(w, src.X, src.Y, src.Z, src.X+dx, src.Z+dz, &res)
			dy := 0
			if res.Cost < cost.CostInf {
				dy = res.Y - src.Y
			}
			return newDiagonal(src, src.Add(dx, dy, dz))
		},
	}
}

// Moves is the edge generator table, in the order the search expands it.
var Moves = []Move{
	{
		Name: "downward", DY: -1,
		apply: func(w *worldctx.Context, x, y, z int, res *Result) {
			fixed(x, y, z, 0, -1, 0, downwardCost(w, x, y, z), res)
		},
		build: func(_ *worldctx.Context, src blockpos.Pos) *Movement { return newDownward(src, src.Down()) },
	},
	{
		Name: "pillar", DY: 1,
		apply: func(w *worldctx.Context, x, y, z int, res *Result) {
			fixed(x, y, z, 0, 1, 0, pillarCost(w, x, y, z), res)
		},
		build: func(_ *worldctx.Context, src blockpos.Pos) *Movement { return newPillar(src, src.Up()) },
	},
	traverse("traverse_north", 0, -1),
	traverse("traverse_south", 0, 1),
	traverse("traverse_east", 1, 0),
	traverse("traverse_west", -1, 0),
	ascend("ascend_north", 0, -1),
	ascend("ascend_south", 0, 1),
	ascend("ascend_east", 1, 0),
	ascend("ascend_west", -1, 0),
	descend("descend_east", 1, 0),
	descend("descend_west", -1, 0),
	descend("descend_north", 0, -1),
	descend("descend_south", 0, 1),
	diagonal("diagonal_northeast", 1, -1),
	diagonal("diagonal_northwest", -1, -1),
	diagonal("diagonal_southeast", 1, 1),
	diagonal("diagonal_southwest", -1, 1),
}

// Derive finds the movement leading from src to dest, recosting every move
// against w. It returns nil when no move connects them any more.
func Derive(w *worldctx.Context, src, dest blockpos.Pos) *Movement {
	for _, mv := range Moves {
		m := mv.Build(w, src)
		if m.Dest() == dest {
			return m
		}
	}
	return nil
}
