package counters

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/geometry"
)

// HitCacheSize and LeakCacheSize bound the UI ring caches, matching
// _examples/original_source's HITCACHESIZE/LEAKCACHESIZE.
const (
	HitCacheSize  = 2048
	LeakCacheSize = 2048
)

// HitEventKind labels one entry of the hit cache ring (spec.md §4.3/§4.4).
type HitEventKind int

const (
	HitDesorb HitEventKind = iota
	HitReflect
	HitMove
	HitTeleportSource
	HitAbsorb
	HitLast // appended after each merged worker's non-empty block, for every worker
)

// HitCacheEntry is one recorded position/event for UI replay.
type HitCacheEntry struct {
	Pos  r3.Vec
	Kind HitEventKind
}

// LeakCacheEntry is one recorded leak position+direction.
type LeakCacheEntry struct {
	Pos r3.Vec
	Dir r3.Vec
}

// MomentCounters is every counter for one moment index: the global
// aggregate plus one FacetCounters per facet.
type MomentCounters struct {
	Global GlobalCounters
	Facets map[geometry.FacetID]*FacetCounters
}

func newMomentCounters(model *geometry.Model) MomentCounters {
	mc := MomentCounters{Facets: make(map[geometry.FacetID]*FacetCounters, len(model.Facets()))}
	for _, id := range model.Facets() {
		mc.Facets[id] = newFacetCounters(model.Facet(id))
	}
	return mc
}

// NewMomentCounters allocates one moment's worth of zeroed counters sized
// from model. Exported for the global package, which owns one merged
// MomentCounters slice per moment index alongside each worker's private one.
func NewMomentCounters(model *geometry.Model) MomentCounters { return newMomentCounters(model) }

func newFacetCounters(f *geometry.FacetData) *FacetCounters {
	fc := &FacetCounters{Histograms: NewHistogramSet(f.Histograms)}
	n := f.Texture.Width * f.Texture.Height
	if n > 0 {
		fc.Texture = make([]TextureCell, n)
		if f.Counts.Direction {
			fc.Direction = make([]DirectionCell, n)
		}
	}
	if f.Profile != geometry.ProfileNone {
		fc.Profile = make([]ProfileSlice, ProfileSize)
	}
	return fc
}

// Clone deep-copies mc, for safely reading a snapshot while the original
// keeps accumulating.
func (mc MomentCounters) Clone() MomentCounters {
	out := MomentCounters{Global: mc.Global, Facets: make(map[geometry.FacetID]*FacetCounters, len(mc.Facets))}
	for id, fc := range mc.Facets {
		out.Facets[id] = fc.Clone()
	}
	return out
}

// Merge adds src's counters into mc elementwise (spec.md §4.8).
func (mc *MomentCounters) Merge(src MomentCounters) {
	mc.Global.Merge(src.Global)
	for id, fc := range mc.Facets {
		if s, ok := src.Facets[id]; ok {
			fc.Merge(s)
		}
	}
}

func (mc *MomentCounters) reset(model *geometry.Model) {
	mc.Global = GlobalCounters{}
	for _, id := range model.Facets() {
		mc.Facets[id] = newFacetCounters(model.Facet(id))
	}
}

// AngleMapCounts is a worker-private accumulation of recorded incidence
// hits for one facet, merged into the facet's shared geometry.anglemap.Map
// at merge time rather than rebuilt per worker (spec.md §3: angle-map PDF
// is moment-independent).
type AngleMapCounts struct {
	Counts []uint64
}

func (a *AngleMapCounts) add(thetaBin, phiBin, phiWidth int) {
	if a.Counts == nil {
		return
	}
	a.Counts[thetaBin*phiWidth+phiBin]++
}

// Buffer is one worker's complete private counter set: per-moment counters,
// the hit/leak UI ring caches, and per-facet angle-map recording counts
// (spec.md §3 Counter buffers).
type Buffer struct {
	Moments   []MomentCounters // index 0 = steady state, 1..M = user moments
	AngleMaps map[geometry.FacetID]*AngleMapCounts

	HitCache  []HitCacheEntry
	LeakCache []LeakCacheEntry
}

// NewBuffer allocates a zeroed buffer sized from model (one MomentCounters
// per moment index, one AngleMapCounts per recording facet).
func NewBuffer(model *geometry.Model) *Buffer {
	b := &Buffer{
		Moments:   make([]MomentCounters, len(model.Global.Moments)+1),
		AngleMaps: make(map[geometry.FacetID]*AngleMapCounts),
	}
	for i := range b.Moments {
		b.Moments[i] = newMomentCounters(model)
	}
	for _, id := range model.Facets() {
		f := model.Facet(id)
		if f.Anglemap.Record {
			n := (f.Anglemap.ThetaLowerRes + f.Anglemap.ThetaHigherRes) * f.Anglemap.PhiWidth
			b.AngleMaps[id] = &AngleMapCounts{Counts: make([]uint64, n)}
		}
	}
	return b
}

// RecordAngle increments the (theta,phi) bin for a facet known to be
// recording (spec.md §4.5 Record). No-op for non-recording facets.
func (b *Buffer) RecordAngle(id geometry.FacetID, thetaBin, phiBin, phiWidth int) {
	if a, ok := b.AngleMaps[id]; ok {
		a.add(thetaBin, phiBin, phiWidth)
	}
}

// PushHit appends to the hit cache ring, dropping the oldest entry once full.
func (b *Buffer) PushHit(e HitCacheEntry) {
	b.HitCache = append(b.HitCache, e)
	if len(b.HitCache) > HitCacheSize {
		b.HitCache = b.HitCache[len(b.HitCache)-HitCacheSize:]
	}
}

// PushLeak appends to the leak cache ring, dropping the oldest entry once
// full.
func (b *Buffer) PushLeak(e LeakCacheEntry) {
	b.LeakCache = append(b.LeakCache, e)
	if len(b.LeakCache) > LeakCacheSize {
		b.LeakCache = b.LeakCache[len(b.LeakCache)-LeakCacheSize:]
	}
}

// Reset zeroes every counter (but not the angle-map recording allocation,
// which is reused) after a successful merge (spec.md §4.8).
func (b *Buffer) Reset(model *geometry.Model) {
	for i := range b.Moments {
		b.Moments[i].reset(model)
	}
	for _, a := range b.AngleMaps {
		for i := range a.Counts {
			a.Counts[i] = 0
		}
	}
	b.HitCache = nil
	b.LeakCache = nil
}
