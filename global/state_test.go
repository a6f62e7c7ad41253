package global

import (
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/config"
	"github.com/vactrace-sim/vactrace/counters"
	"github.com/vactrace-sim/vactrace/geometry"
)

func buildModel(t *testing.T) (*geometry.Model, geometry.FacetID) {
	t.Helper()
	m := geometry.NewModel(config.GlobalParams{GasMass: 28})
	id := m.AddFacet(geometry.FacetData{
		Vertices: []int{
			m.AddVertex(r3.Vec{X: 0, Y: 0, Z: 0}),
			m.AddVertex(r3.Vec{X: 1, Y: 0, Z: 0}),
			m.AddVertex(r3.Vec{X: 1, Y: 1, Z: 0}),
			m.AddVertex(r3.Vec{X: 0, Y: 1, Z: 0}),
		},
		Temperature: 300,
		Opacity:     geometry.ParamRef{ParamID: -1, Constant: 1},
		Sticking:    geometry.ParamRef{ParamID: -1, Constant: 1},
		DesorbType:  geometry.DesorbCosine,
		Outgassing:  geometry.ParamRef{ParamID: -1, Constant: 1e-4},
		SuperIdx:    -1,
	})
	if err := m.Prepare(); err != nil {
		t.Fatalf("Prepare() = %v", err)
	}
	return m, id
}

func TestMergeFoldsCountersAndResetsBuffer(t *testing.T) {
	m, id := buildModel(t)
	s := NewState(m)
	buf := counters.NewBuffer(m)

	buf.Moments[0].Global.Hits = 3
	buf.Moments[0].Facets[id].Hits = 3
	buf.PushHit(counters.HitCacheEntry{Kind: counters.HitAbsorb})
	buf.PushLeak(counters.LeakCacheEntry{})

	if err := s.Merge(buf, time.Second); err != nil {
		t.Fatalf("Merge() = %v, want nil", err)
	}

	if s.Moments[0].Global.Hits != 3 {
		t.Errorf("Global.Hits = %d, want 3", s.Moments[0].Global.Hits)
	}
	if buf.Moments[0].Global.Hits != 0 {
		t.Errorf("buffer Global.Hits after merge = %d, want 0 (buffer is reset)", buf.Moments[0].Global.Hits)
	}
	// one event plus the appended HitLast marker
	if len(s.HitCache) != 2 {
		t.Fatalf("HitCache length = %d, want 2", len(s.HitCache))
	}
	if s.HitCache[1].Kind != counters.HitLast {
		t.Errorf("HitCache[1].Kind = %v, want HitLast", s.HitCache[1].Kind)
	}
	if len(s.LeakCache) != 1 {
		t.Errorf("LeakCache length = %d, want 1", len(s.LeakCache))
	}
}

func TestMergeWithNoHitEventsSkipsHitLastMarker(t *testing.T) {
	m, _ := buildModel(t)
	s := NewState(m)
	buf := counters.NewBuffer(m)
	if err := s.Merge(buf, time.Second); err != nil {
		t.Fatalf("Merge() = %v", err)
	}
	if len(s.HitCache) != 0 {
		t.Errorf("HitCache length = %d, want 0 when no hits were recorded", len(s.HitCache))
	}
}

func TestMergeTimesOutWhenLockHeld(t *testing.T) {
	m, _ := buildModel(t)
	s := NewState(m)
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := counters.NewBuffer(m)
	err := s.Merge(buf, 5*time.Millisecond)
	if err != ErrMergeTimeout {
		t.Errorf("Merge() = %v, want ErrMergeTimeout", err)
	}
}

func TestResetCountersZeroesMoments(t *testing.T) {
	m, id := buildModel(t)
	s := NewState(m)
	s.Moments[0].Global.Hits = 42
	s.Moments[0].Facets[id].Hits = 42

	s.ResetCounters()

	if s.Moments[0].Global.Hits != 0 {
		t.Errorf("Global.Hits after reset = %d, want 0", s.Moments[0].Global.Hits)
	}
	if s.Moments[0].Facets[id].Hits != 0 {
		t.Errorf("Facets[id].Hits after reset = %d, want 0", s.Moments[0].Facets[id].Hits)
	}
}

func TestSnapshotIntoIsolatesFutureMutation(t *testing.T) {
	m, id := buildModel(t)
	s := NewState(m)
	s.Moments[0].Global.Hits = 10
	s.Moments[0].Facets[id].Hits = 10

	dst := &State{}
	s.SnapshotInto(dst)

	s.Moments[0].Global.Hits = 999
	s.Moments[0].Facets[id].Hits = 999

	if dst.Moments[0].Global.Hits != 10 {
		t.Errorf("dst.Global.Hits = %d, want 10 (isolated from source mutation)", dst.Moments[0].Global.Hits)
	}
	if dst.Moments[0].Facets[id].Hits != 10 {
		t.Errorf("dst.Facets[id].Hits = %d, want 10", dst.Moments[0].Facets[id].Hits)
	}
}

func TestTimeCorrectionSteadyStateUsesFinalOutgassingRate(t *testing.T) {
	m, _ := buildModel(t)
	s := NewState(m)
	got := s.TimeCorrection(0)
	if got != m.FinalOutgassingRate {
		t.Errorf("TimeCorrection(0) = %v, want %v", got, m.FinalOutgassingRate)
	}
}

func TestTimeCorrectionOutOfRangeMomentReturnsZero(t *testing.T) {
	m, _ := buildModel(t)
	s := NewState(m)
	if got := s.TimeCorrection(5); got != 0 {
		t.Errorf("TimeCorrection(5) = %v, want 0", got)
	}
}

func TestDesorbedCountReflectsMergedGlobal(t *testing.T) {
	m, id := buildModel(t)
	s := NewState(m)
	buf := counters.NewBuffer(m)
	buf.Moments[0].Global.Desorbed = 7
	buf.Moments[0].Facets[id].Desorbed = 7
	if err := s.Merge(buf, time.Second); err != nil {
		t.Fatalf("Merge() = %v", err)
	}
	if got := s.DesorbedCount(0); got != 7 {
		t.Errorf("DesorbedCount(0) = %v, want 7", got)
	}
	if got := s.DesorbedCount(-1); got != 0 {
		t.Errorf("DesorbedCount(-1) = %v, want 0", got)
	}
}

func TestGlobalsAndFacetGlobalsReturnCopies(t *testing.T) {
	m, id := buildModel(t)
	s := NewState(m)
	s.Moments[0].Global.Hits = 5
	s.Moments[0].Facets[id].Hits = 9

	g := s.Globals(0)
	g.Hits = 999 // mutating the returned copy must not affect state
	if s.Moments[0].Global.Hits != 5 {
		t.Errorf("Globals() leaked a reference: state Hits = %d", s.Moments[0].Global.Hits)
	}

	fg := s.FacetGlobals(0, id)
	if fg.Hits != 9 {
		t.Errorf("FacetGlobals() = %+v, want Hits=9", fg)
	}
	if unknown := s.FacetGlobals(0, geometry.FacetID{}); unknown.Hits != 0 {
		t.Errorf("FacetGlobals() for unknown facet = %+v, want zero value", unknown)
	}
}
