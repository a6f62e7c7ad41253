package particle

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/counters"
	"github.com/vactrace-sim/vactrace/geometry"
	"github.com/vactrace-sim/vactrace/intersect"
)

// Step advances the worker by n ray segments, starting a new particle from
// the source whenever none is currently in flight. It returns false once the
// desorption budget is exhausted and no particle remains active, signalling
// the controller to stop calling Step (spec.md §5 step(n)).
func (w *Worker) Step(n int) (bool, error) {
	for i := 0; i < n; i++ {
		if w.active == nil {
			started, err := w.StartFromSource()
			if err != nil {
				return false, err
			}
			if !started {
				return false, nil
			}
			continue
		}
		if err := w.advance(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// advance traces the active particle through exactly one ray segment:
// transparent facets along the way are counted and passed through, then the
// first stopping facet is classified, or the ray leaks out of the geometry
// (spec.md §4.3).
func (w *Worker) advance() error {
	st := w.active
	stops := intersect.StopTest(func(f *geometry.FacetData) bool {
		return w.RNG.Bool(f.Opacity.Eval(w.Model.Params, st.Time))
	})

	hit, ok, transparent := w.Intersector.Intersect(st.Pos, st.Dir, st.StructIdx, stops)
	for _, th := range transparent {
		w.applyTransparentPass(st, th)
	}

	if !ok {
		w.leak(st)
		w.active = nil
		return nil
	}

	segmentDist := hit.Distance
	oldTime := st.Time
	newTime := oldTime + segmentDist/st.Speed

	st.Pos = r3.Add(st.Pos, r3.Scale(segmentDist, st.Dir))

	if (!w.Model.Global.CalcConstantFlow && newTime > w.Model.LatestMoment) ||
		(w.Model.Global.EnableDecay && newTime > st.DecayTime) {
		w.terminateMidSegment(st, oldTime)
		return nil
	}

	st.Time = newTime
	st.Distance += segmentDist
	st.Bounces++

	return w.handleHit(st, hit, segmentDist)
}

// terminateMidSegment ends a particle whose current ray segment would carry
// it past the latest recorded moment or past its decay time: rather than
// dropping the remainder of the segment on the floor, it credits the
// distance the particle would have flown up to that limit and leaves a
// "last" marker in the hit cache before the particle is retired (mirroring
// _examples/original_source's remainderFlightPath handling in its main step
// loop). That original computes the remainder in centimeters; this
// codebase's distances are SI meters throughout, so the *100 conversion
// factor is intentionally dropped here (see DESIGN.md).
func (w *Worker) terminateMidSegment(st *State, oldTime float64) {
	remaining := w.Model.LatestMoment - oldTime
	if w.Model.Global.EnableDecay {
		remaining = math.Min(remaining, st.DecayTime-oldTime)
	}
	if remaining > 0 {
		dist := st.OriRatio * st.Speed * remaining
		for _, mi := range w.momentIndices(oldTime) {
			w.Buffer.Moments[mi].Global.DistanceTotal += dist
		}
	}
	w.Buffer.PushHit(counters.HitCacheEntry{Pos: st.Pos, Kind: counters.HitLast})
	w.active = nil
}

// applyTransparentPass records a facet the ray crossed without stopping
// (spec.md §4.3/§3 count_transparent), mirroring
// _examples/original_source's RegisterTransparentPass: texture and profile
// both use the (2,2) weight pair, profile and angle-map recording are
// unconditional, and direction/texture stay gated on the facet's own count
// flags. The crossed facet is generally not st.LastHit, so its local
// intersection coordinate (th.Local) is swapped into st.LastLocal for the
// duration of these calls and restored afterward.
func (w *Worker) applyTransparentPass(st *State, th intersect.Hit) {
	f := w.Model.Facet(th.Facet)
	savedLocal := st.LastLocal
	st.LastLocal = th.Local
	defer func() { st.LastLocal = savedLocal }()

	for _, mi := range w.momentIndices(st.Time) {
		fc := w.Buffer.Moments[mi].Facets[th.Facet]
		fc.Hits++
		fc.HitEquiv += st.OriRatio
		if f.Counts.Transparent {
			w.recordTexture(fc, f, st, true, 2.0, 2.0)
		}
		if f.Counts.Direction {
			recordDirection(fc, f, st)
		}
		w.recordProfile(fc, f, st, true, 2.0, 2.0)
		w.recordIncidentAngle(th.Facet, f, st)
	}
}

// leak records a particle that exited the geometry without hitting anything
// (spec.md §3 leak cache, §4.8 R2).
func (w *Worker) leak(st *State) {
	w.Buffer.PushLeak(counters.LeakCacheEntry{Pos: st.Pos, Dir: st.Dir})
	for _, mi := range w.momentIndices(st.Time) {
		w.Buffer.Moments[mi].Global.LeaksTotal++
	}
}
