// Package favoring biases edge costs per destination cell.
//
// The table is built once per calculation. Cells on the previous path get the
// backtrack coefficient so that consecutive searches do not oscillate, and
// avoidance zones multiply their coefficient into every cell they cover.
package favoring

import (
	"fmt"
	"math"

	"voxelpath.ai/internal/pathing/blockpos"
)

type Favoring struct {
	m map[int64]float64
}

// New builds the table. previous may be nil. A coefficient of exactly 1
// leaves the previous path out entirely.
func New(previous []blockpos.Pos, backtrackCoefficient float64, zones []Avoidance) *Favoring {
	f := &Favoring{m: map[int64]float64{}}
	if backtrackCoefficient != 1 {
		for _, p := range previous {
			f.put(p.Hash(), backtrackCoefficient)
		}
	}
	for _, z := range zones {
		z.ApplySpherical(f)
	}
	return f
}

// Calculate returns the multiplier for a cell hash, 1 for untouched cells.
func (f *Favoring) Calculate(hash int64) float64 {
	if v, ok := f.m[hash]; ok {
		return v
	}
	return 1
}

func (f *Favoring) IsEmpty() bool { return len(f.m) == 0 }

func (f *Favoring) Len() int { return len(f.m) }

func (f *Favoring) put(hash int64, v float64) {
	if hash == 0 {
		return
	}
	f.m[hash] = v
}

// Avoidance is a sphere whose cells cost Coefficient times more.
type Avoidance struct {
	Center      blockpos.Pos
	Coefficient float64
	Radius      int
}

// MaxAvoidanceRadius bounds a zone. ApplySpherical visits (2r+1)^3 cells
// while a calculation is being set up.
const MaxAvoidanceRadius = 32

// NewAvoidance validates a zone coming from outside the process.
func NewAvoidance(center blockpos.Pos, radius int, coefficient float64) (Avoidance, error) {
	a := Avoidance{Center: center, Radius: radius, Coefficient: coefficient}
	if radius < 1 {
		return Avoidance{}, fmt.Errorf("avoidance radius %d, want at least 1", radius)
	}
	return a, a.Validate()
}

// Validate accepts radius 0, which covers no cells.
func (a Avoidance) Validate() error {
	if a.Radius < 0 || a.Radius > MaxAvoidanceRadius {
		return fmt.Errorf("avoidance radius %d outside [0,%d]", a.Radius, MaxAvoidanceRadius)
	}
	if math.IsNaN(a.Coefficient) || math.IsInf(a.Coefficient, 0) || a.Coefficient <= 0 {
		return fmt.Errorf("avoidance coefficient %v must be finite and positive", a.Coefficient)
	}
	return nil
}

// Multiplier is Coefficient inside the sphere and 1 outside.
func (a Avoidance) Multiplier(p blockpos.Pos) float64 {
	if p.DistSq(a.Center) <= a.Radius*a.Radius {
		return a.Coefficient
	}
	return 1
}

// ApplySpherical multiplies the coefficient into every cell of the sphere,
// so overlapping zones compound.
func (a Avoidance) ApplySpherical(f *Favoring) {
	r2 := a.Radius * a.Radius
	for x := -a.Radius; x <= a.Radius; x++ {
		for y := -a.Radius; y <= a.Radius; y++ {
			for z := -a.Radius; z <= a.Radius; z++ {
				if x*x+y*y+z*z > r2 {
					continue
				}
				h := blockpos.Hash(a.Center.X+x, a.Center.Y+y, a.Center.Z+z)
				f.put(h, f.Calculate(h)*a.Coefficient)
			}
		}
	}
}
