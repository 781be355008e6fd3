package favoring

import (
	"fmt"
	"sort"
	"sync"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
)

// DangerSource yields the avoidance zones relevant to a search starting at center.
type DangerSource interface {
	Avoidances(center blockpos.Pos) []Avoidance
}

// Collect gathers zones from every source in order.
func Collect(center blockpos.Pos, sources ...DangerSource) []Avoidance {
	var out []Avoidance
	for _, s := range sources {
		if s == nil {
			continue
		}
		out = append(out, s.Avoidances(center)...)
	}
	return out
}

type BlockView interface {
	StateAt(x, y, z int) catalogs.StateID
	IsLoaded(x, z int) bool
}

// BlockScanner turns dangerous blocks near the start into avoidance zones.
// A block already covered by a zone's inner half does not start another one,
// which keeps a lava lake from compounding into an absurd multiplier.
type BlockScanner struct {
	View     BlockView
	IsDanger func(catalogs.StateID) bool

	ScanRadius   int
	ScanHeight   int
	ZoneRadius   int
	Coefficient  float64
	MaxZoneCount int
}

func (s BlockScanner) Avoidances(center blockpos.Pos) []Avoidance {
	if s.View == nil || s.IsDanger == nil || s.ZoneRadius <= 0 || s.Coefficient == 1 {
		return nil
	}
	h := s.ScanHeight
	if h <= 0 {
		h = s.ScanRadius
	}
	inner := (s.ZoneRadius / 2) * (s.ZoneRadius / 2)
	var out []Avoidance
	for x := center.X - s.ScanRadius; x <= center.X+s.ScanRadius; x++ {
		for z := center.Z - s.ScanRadius; z <= center.Z+s.ScanRadius; z++ {
			if !s.View.IsLoaded(x, z) {
				continue
			}
		column:
			for y := center.Y - h; y <= center.Y+h; y++ {
				if !s.IsDanger(s.View.StateAt(x, y, z)) {
					continue
				}
				p := blockpos.New(x, y, z)
				for _, a := range out {
					if p.DistSq(a.Center) <= inner {
						continue column
					}
				}
				out = append(out, Avoidance{Center: p, Coefficient: s.Coefficient, Radius: s.ZoneRadius})
				if s.MaxZoneCount > 0 && len(out) >= s.MaxZoneCount {
					return out
				}
			}
		}
	}
	return out
}

// Hazards is a registry of zones declared at runtime, such as a hostile
// entity or a fire an operator reported. Safe for concurrent use.
type Hazards struct {
	mu    sync.RWMutex
	zones map[string]Avoidance
}

// MaxHazards bounds the registry; every zone is applied to every calculation.
const MaxHazards = 64

func NewHazards() *Hazards { return &Hazards{zones: map[string]Avoidance{}} }

// Set adds or replaces a zone. Invalid zones and new ids past MaxHazards are
// rejected.
func (h *Hazards) Set(id string, a Avoidance) error {
	if id == "" {
		return fmt.Errorf("hazard without id")
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("hazard %s: %w", id, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.zones[id]; !ok && len(h.zones) >= MaxHazards {
		return fmt.Errorf("hazard %s: already %d hazards", id, MaxHazards)
	}
	h.zones[id] = a
	return nil
}

func (h *Hazards) Remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.zones[id]
	delete(h.zones, id)
	return ok
}

type Hazard struct {
	ID string
	Avoidance
}

// List returns all hazards ordered by id.
func (h *Hazards) List() []Hazard {
	h.mu.RLock()
	out := make([]Hazard, 0, len(h.zones))
	for id, a := range h.zones {
		out = append(out, Hazard{ID: id, Avoidance: a})
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Avoidances ignores center: runtime hazards apply wherever the search goes.
func (h *Hazards) Avoidances(blockpos.Pos) []Avoidance {
	list := h.List()
	out := make([]Avoidance, len(list))
	for i, hz := range list {
		out[i] = hz.Avoidance
	}
	return out
}
