package counters

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/config"
	"github.com/vactrace-sim/vactrace/geometry"
)

func buildModel(t *testing.T) *geometry.Model {
	t.Helper()
	m := geometry.NewModel(config.GlobalParams{GasMass: 28})
	m.AddFacet(geometry.FacetData{
		Vertices: []int{
			m.AddVertex(r3.Vec{X: 0, Y: 0, Z: 0}),
			m.AddVertex(r3.Vec{X: 1, Y: 0, Z: 0}),
			m.AddVertex(r3.Vec{X: 1, Y: 1, Z: 0}),
			m.AddVertex(r3.Vec{X: 0, Y: 1, Z: 0}),
		},
		Temperature: 300,
		Opacity:     geometry.ParamRef{ParamID: -1, Constant: 1},
		Sticking:    geometry.ParamRef{ParamID: -1, Constant: 1},
		SuperIdx:    -1,
		Anglemap:    geometry.AnglemapParams{Record: true, PhiWidth: 4, ThetaLowerRes: 2, ThetaHigherRes: 2},
	})
	if err := m.Prepare(); err != nil {
		t.Fatalf("Prepare() = %v", err)
	}
	return m
}

func TestNewBufferSizing(t *testing.T) {
	m := buildModel(t)
	b := NewBuffer(m)
	if len(b.Moments) != 1 {
		t.Fatalf("Moments length = %d, want 1 (steady state only)", len(b.Moments))
	}
	if len(b.Moments[0].Facets) != 1 {
		t.Errorf("Facets length = %d, want 1", len(b.Moments[0].Facets))
	}
	if len(b.AngleMaps) != 1 {
		t.Errorf("AngleMaps length = %d, want 1 (recording facet)", len(b.AngleMaps))
	}
}

func TestBufferRecordAngleNoOpForNonRecordingFacet(t *testing.T) {
	b := &Buffer{AngleMaps: map[geometry.FacetID]*AngleMapCounts{}}
	b.RecordAngle(geometry.FacetID{}, 0, 0, 4) // must not panic
}

func TestBufferRecordAngleIncrementsBin(t *testing.T) {
	id := geometry.FacetID{}
	b := &Buffer{AngleMaps: map[geometry.FacetID]*AngleMapCounts{id: {Counts: make([]uint64, 16)}}}
	b.RecordAngle(id, 1, 2, 4)
	if b.AngleMaps[id].Counts[1*4+2] != 1 {
		t.Errorf("bin count = %d, want 1", b.AngleMaps[id].Counts[1*4+2])
	}
}

func TestPushHitTrimsRing(t *testing.T) {
	b := &Buffer{}
	for i := 0; i < HitCacheSize+10; i++ {
		b.PushHit(HitCacheEntry{Kind: HitReflect})
	}
	if len(b.HitCache) != HitCacheSize {
		t.Errorf("HitCache length = %d, want %d", len(b.HitCache), HitCacheSize)
	}
}

func TestPushLeakTrimsRing(t *testing.T) {
	b := &Buffer{}
	for i := 0; i < LeakCacheSize+5; i++ {
		b.PushLeak(LeakCacheEntry{})
	}
	if len(b.LeakCache) != LeakCacheSize {
		t.Errorf("LeakCache length = %d, want %d", len(b.LeakCache), LeakCacheSize)
	}
}

func TestMomentCountersMergeAndClone(t *testing.T) {
	m := buildModel(t)
	mc := NewMomentCounters(m)
	mc.Global.Hits = 5
	for id := range mc.Facets {
		mc.Facets[id].Hits = 2
	}
	clone := mc.Clone()

	src := NewMomentCounters(m)
	src.Global.Hits = 10
	for id := range src.Facets {
		src.Facets[id].Hits = 3
	}
	mc.Merge(src)

	if mc.Global.Hits != 15 {
		t.Errorf("Global.Hits after merge = %d, want 15", mc.Global.Hits)
	}
	for id := range mc.Facets {
		if mc.Facets[id].Hits != 5 {
			t.Errorf("Facets[%v].Hits = %d, want 5", id, mc.Facets[id].Hits)
		}
	}
	if clone.Global.Hits != 5 {
		t.Errorf("clone.Global.Hits = %d, want 5 (unaffected by later merge)", clone.Global.Hits)
	}
}

func TestBufferResetZeroesCountersButKeepsAngleMapAllocation(t *testing.T) {
	m := buildModel(t)
	b := NewBuffer(m)
	b.Moments[0].Global.Hits = 7
	for id := range b.AngleMaps {
		b.AngleMaps[id].Counts[0] = 9
	}
	b.PushHit(HitCacheEntry{})
	b.PushLeak(LeakCacheEntry{})

	b.Reset(m)

	if b.Moments[0].Global.Hits != 0 {
		t.Errorf("Global.Hits after reset = %d, want 0", b.Moments[0].Global.Hits)
	}
	for id := range b.AngleMaps {
		if b.AngleMaps[id].Counts[0] != 0 {
			t.Errorf("AngleMaps[%v].Counts[0] after reset = %d, want 0", id, b.AngleMaps[id].Counts[0])
		}
	}
	if b.HitCache != nil || b.LeakCache != nil {
		t.Error("expected Reset to clear the hit/leak caches")
	}
}
