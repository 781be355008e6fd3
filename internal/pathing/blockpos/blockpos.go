package blockpos

import "fmt"

// Pos is an integer block coordinate. Y is the vertical axis.
type Pos struct {
	X int
	Y int
	Z int
}

func New(x, y, z int) Pos { return Pos{X: x, Y: y, Z: z} }

// Hash packs a coordinate into the 64-bit key used by node maps and favoring tables.
// Zero is never produced for coordinates inside the playable range and is reserved as a sentinel.
func Hash(x, y, z int) int64 {
	h := int64(3241)
	h = 3457689*h + int64(x)
	h = 8734625*h + int64(y)
	h = 2873465*h + int64(z)
	return h
}

func (p Pos) Hash() int64 { return Hash(p.X, p.Y, p.Z) }

func (p Pos) Add(dx, dy, dz int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz} }
func (p Pos) Up() Pos                { return p.Add(0, 1, 0) }
func (p Pos) Down() Pos              { return p.Add(0, -1, 0) }
func (p Pos) Sub(o Pos) Pos          { return Pos{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z} }

// DistSq is the squared euclidean distance between two block coordinates.
func (p Pos) DistSq(o Pos) int {
	dx := p.X - o.X
	dy := p.Y - o.Y
	dz := p.Z - o.Z
	return dx*dx + dy*dy + dz*dz
}

func (p Pos) ToArray() [3]int { return [3]int{p.X, p.Y, p.Z} }

func FromArray(a [3]int) Pos { return Pos{X: a[0], Y: a[1], Z: a[2]} }

func (p Pos) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// FloorDiv divides rounding toward negative infinity. b must be positive.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

// Mod returns a non-negative remainder. b must be positive.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
