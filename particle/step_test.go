package particle

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/config"
	"github.com/vactrace-sim/vactrace/intersect"
)

func TestStepRunsToCompletionWithinBudget(t *testing.T) {
	w := newTestWorker(t, 20)
	for i := 0; i < 200; i++ {
		more, err := w.Step(1)
		if err != nil {
			t.Fatalf("Step() = %v", err)
		}
		if !more {
			var desorbed uint64
			for _, fc := range w.Buffer.Moments[0].Facets {
				desorbed += fc.Desorbed
			}
			if desorbed != 20 {
				t.Errorf("desorbed = %d, want 20 once the budget is exhausted", desorbed)
			}
			return
		}
	}
	t.Fatal("expected Step to exhaust a budget of 20 within 200 calls")
}

func TestStepAbsorptionMatchesGlobalHits(t *testing.T) {
	w := newTestWorker(t, 50)
	for i := 0; i < 1000; i++ {
		more, err := w.Step(1)
		if err != nil {
			t.Fatalf("Step() = %v", err)
		}
		if !more {
			break
		}
	}
	g := w.Buffer.Moments[0].Global
	if g.Desorbed != 50 {
		t.Fatalf("Desorbed = %d, want 50", g.Desorbed)
	}
	// every wall is fully sticking, so the first hit always absorbs: total
	// hits should equal total desorbed for this closed-cube scenario.
	if g.Hits != g.Desorbed {
		t.Errorf("Hits = %d, want equal to Desorbed (%d) for an all-absorbing cube", g.Hits, g.Desorbed)
	}
}

func TestAdvanceLeaksWhenRayMissesEveryFacet(t *testing.T) {
	m := buildCube(t, 1e-4, true)
	grid := intersect.BuildModelGrid(m)
	w := NewWorker(m, grid, config.OnTheFlyParams{NbProcess: 1, DesorptionLimit: 1}, 3, 0)

	st := NewState()
	st.Pos = r3.Vec{X: 5, Y: 5, Z: 5} // well outside the 2 m cube
	st.Dir = r3.Vec{X: 0, Y: 0, Z: 1} // pointing further away from every wall
	st.Speed = 100
	st.StructIdx = 0
	w.active = st

	if err := w.advance(); err != nil {
		t.Fatalf("advance() = %v", err)
	}
	if w.active != nil {
		t.Error("expected the particle to leak and clear the active slot")
	}
	if len(w.Buffer.LeakCache) != 1 {
		t.Errorf("LeakCache length = %d, want 1", len(w.Buffer.LeakCache))
	}
	if w.Buffer.Moments[0].Global.LeaksTotal != 1 {
		t.Errorf("Global.LeaksTotal = %d, want 1", w.Buffer.Moments[0].Global.LeaksTotal)
	}
}
