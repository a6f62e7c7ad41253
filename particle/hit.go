package particle

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/counters"
	"github.com/vactrace-sim/vactrace/geometry"
	"github.com/vactrace-sim/vactrace/intersect"
	"github.com/vactrace-sim/vactrace/sampler"
)

// handleHit classifies a stopping hit into a link traversal, a facet-to-
// facet teleport, a volatile absorption, or an ordinary stick/bounce
// decision (spec.md §4.4).
func (w *Worker) handleHit(st *State, hit intersect.Hit, segmentDist float64) error {
	f := w.Model.Facet(hit.Facet)
	st.HasLastHit, st.LastHit, st.LastLocal = true, hit.Facet, hit.Local

	switch {
	case f.IsLink():
		w.teleportLink(st, hit.Facet, f)
		return nil
	case f.TeleportDest != 0:
		w.teleportFacet(st, hit.Facet, f)
		return nil
	case f.IsVolatile:
		return w.handleVolatile(st, hit.Facet, f, segmentDist)
	}

	if w.resolveSticking(st, hit.Facet, f) {
		w.absorb(st, hit.Facet, f, segmentDist)
		w.active = nil
		return nil
	}
	w.bounce(st, hit.Facet, f, segmentDist)
	return nil
}

// resolveSticking decides absorption for a facet's sticking coefficient. In
// low-flux mode the particle never truly dies here: its weight is reduced by
// the sticking probability and absorption is only declared once the weight
// drops below the cutoff (spec.md §4.9 P9 low-flux weighting).
func (w *Worker) resolveSticking(st *State, id geometry.FacetID, f *geometry.FacetData) bool {
	sticking := f.Sticking.Eval(w.Model.Params, st.Time)
	if sticking <= 0 {
		return false
	}
	if sticking >= 1 {
		return true
	}
	if !w.OnTheFly.LowFluxMode {
		return w.RNG.Uniform() < sticking
	}

	share := st.OriRatio * sticking
	for _, mi := range w.momentIndices(st.Time) {
		fc := w.Buffer.Moments[mi].Facets[id]
		fc.AbsEquiv += share
		w.Buffer.Moments[mi].Global.AbsEquiv += share
	}
	st.OriRatio *= 1 - sticking
	return st.OriRatio < w.OnTheFly.LowFluxCutoff
}

// handleVolatile implements the one-shot absorbing facet (Design Notes §9):
// the first particle to arrive while the facet is "ready" is absorbed and
// consumes the flag; every later arrival this run passes through as if
// transparent.
func (w *Worker) handleVolatile(st *State, id geometry.FacetID, f *geometry.FacetData, segmentDist float64) error {
	if w.Model.VolatileReady(id) {
		w.Model.ConsumeVolatile(id)
		w.absorb(st, id, f, segmentDist)
		w.active = nil
		return nil
	}
	for _, mi := range w.momentIndices(st.Time) {
		fc := w.Buffer.Moments[mi].Facets[id]
		fc.Hits++
		fc.HitEquiv += st.OriRatio
	}
	// nudge past the facet plane so the next Intersect call doesn't
	// re-report the same hit at distance ~0.
	st.Pos = r3.Add(st.Pos, r3.Scale(1e-6, st.Dir))
	return nil
}

// teleportLink crosses a link facet into its destination superstructure
// with position and direction unchanged (spec.md §3 SuperDest, §4.4).
func (w *Worker) teleportLink(st *State, id geometry.FacetID, f *geometry.FacetData) {
	for _, mi := range w.momentIndices(st.Time) {
		fc := w.Buffer.Moments[mi].Facets[id]
		fc.Hits++
		fc.HitEquiv += st.OriRatio
		if f.Counts.Transparent {
			w.recordTexture(fc, f, st, true, 2.0, 2.0)
		}
		if f.Counts.Direction {
			recordDirection(fc, f, st)
		}
		w.recordProfile(fc, f, st, true, 2.0, 2.0)
		w.recordIncidentAngle(id, f, st)
	}
	st.StructIdx = f.SuperDest - 1
	st.HasTeleportFrom, st.TeleportFrom = true, id
	st.Pos = r3.Add(st.Pos, r3.Scale(1e-6, st.Dir))
	w.Buffer.PushHit(counters.HitCacheEntry{Pos: st.Pos, Kind: counters.HitTeleportSource})
}

// teleportFacet implements named teleport-to-facet links (spec.md §3
// TeleportDest): the particle reappears at the corresponding local
// coordinate on the destination facet, keeping its direction.
func (w *Worker) teleportFacet(st *State, id geometry.FacetID, f *geometry.FacetData) {
	dest := w.resolveTeleportTarget(st, f)
	w.Buffer.PushHit(counters.HitCacheEntry{Pos: st.Pos, Kind: counters.HitTeleportSource})
	for _, mi := range w.momentIndices(st.Time) {
		fc := w.Buffer.Moments[mi].Facets[id]
		fc.Hits++
		fc.HitEquiv += st.OriRatio
	}
	if dest == nil {
		// Unresolvable destination: drop the particle rather than loop it
		// back into the same facet.
		w.active = nil
		return
	}
	for _, mi := range w.momentIndices(st.Time) {
		fc := w.Buffer.Moments[mi].Facets[id]
		if f.Counts.Transparent {
			w.recordTexture(fc, f, st, true, 2.0, 2.0)
		}
		if f.Counts.Direction {
			recordDirection(fc, f, st)
		}
		w.recordProfile(fc, f, st, true, 2.0, 2.0)
		w.recordIncidentAngle(id, f, st)
	}
	st.Pos = dest.World(st.LastLocal)
	st.Pos = r3.Add(st.Pos, r3.Scale(1e-6, st.Dir))
	st.StructIdx = startingStruct(dest)
	st.HasTeleportFrom, st.TeleportFrom = true, id
}

func (w *Worker) resolveTeleportTarget(st *State, f *geometry.FacetData) *geometry.FacetData {
	if f.TeleportDest == -1 {
		if !st.HasTeleportFrom {
			return nil
		}
		return w.Model.Facet(st.TeleportFrom)
	}
	if w.externalIdx == nil {
		w.externalIdx = make(map[int]geometry.FacetID, len(w.Model.Facets()))
		for _, id := range w.Model.Facets() {
			w.externalIdx[w.Model.Facet(id).ExternalID] = id
		}
	}
	if id, ok := w.externalIdx[f.TeleportDest]; ok {
		return w.Model.Facet(id)
	}
	return nil
}

// absorb finalizes a particle's life: records its bounce/distance/time
// histograms and terminates.
func (w *Worker) absorb(st *State, id geometry.FacetID, f *geometry.FacetData, segmentDist float64) {
	lifetime := st.Time - st.GenTime
	for _, mi := range w.momentIndices(st.Time) {
		mc := &w.Buffer.Moments[mi]
		mc.Global.Hits++
		mc.Global.HitEquiv += st.OriRatio
		mc.Global.AbsEquiv += st.OriRatio
		mc.Global.DistanceTotal += segmentDist
		mc.Global.DistanceFullHitsOnly += st.Distance

		fc := mc.Facets[id]
		fc.Hits++
		fc.HitEquiv += st.OriRatio
		fc.AbsEquiv += st.OriRatio
		fc.Histograms.Record(float64(st.Bounces), st.Distance, lifetime, st.OriRatio)
		w.recordTexture(fc, f, st, true, 2.0, 1.0)
		w.recordProfile(fc, f, st, true, 2.0, 1.0)
		if f.Counts.Direction {
			recordDirection(fc, f, st)
		}
		w.recordIncidentAngle(id, f, st)
	}
	w.Buffer.PushHit(counters.HitCacheEntry{Pos: st.Pos, Kind: counters.HitAbsorb})
}

// bounce draws the facet's reflection law, applies sojourn delay and the
// moving-facet velocity correction, and sends the particle on its way
// (spec.md §4.4, §4.6, S4).
func (w *Worker) bounce(st *State, id geometry.FacetID, f *geometry.FacetData, segmentDist float64) {
	for _, mi := range w.momentIndices(st.Time) {
		mc := &w.Buffer.Moments[mi]
		mc.Global.Hits++
		mc.Global.HitEquiv += st.OriRatio
		mc.Global.DistanceTotal += segmentDist

		fc := mc.Facets[id]
		fc.Hits++
		fc.HitEquiv += st.OriRatio
		if f.Counts.Reflection {
			w.recordTexture(fc, f, st, true, 1.0, 1.0)
		}
		if f.Counts.Direction {
			recordDirection(fc, f, st)
		}
		w.recordProfile(fc, f, st, true, 1.0, 1.0)
		w.recordIncidentAngle(id, f, st)
	}

	incomingDir, incomingSpeed := st.Dir, st.Speed
	if f.IsMoving {
		incomingDir, incomingSpeed = w.toFacetFrame(incomingDir, incomingSpeed, f)
	}

	incidentTheta, incidentPhi := sampler.ToLocal(f.Basis, incomingDir)
	branch := sampler.ChooseReflection(f.Reflection, w.RNG.Uniform())
	theta, phi := sampler.BounceAngles(branch, f.Reflection, incidentTheta, incidentPhi, w.RNG.Uniform(), w.RNG.Uniform())
	outDir := sampler.ToWorld(f.Basis, theta, phi)

	newSpeed := sampler.UpdateVelocity(incomingSpeed, accommodationOf(f), func() float64 {
		return sampler.DrawSpeed(w.Model.VelocityCDF(f.CDFID), w.Model.Global.UseMaxwell, f.Temperature, w.Model.Global.GasMass, w.RNG.Uniform())
	})

	if f.IsMoving {
		outDir, newSpeed = w.fromFacetFrame(outDir, newSpeed, f)
	}

	if f.Sojourn.Enabled {
		st.Time += SojournDelay(f.Sojourn, f.Temperature, w.RNG.Uniform())
	}

	st.Dir, st.Speed = outDir, newSpeed

	for _, mi := range w.momentIndices(st.Time) {
		fc := w.Buffer.Moments[mi].Facets[id]
		if f.Counts.Reflection {
			w.recordTexture(fc, f, st, false, 1.0, 1.0)
		}
		w.recordProfile(fc, f, st, false, 1.0, 1.0)
	}

	w.Buffer.PushHit(counters.HitCacheEntry{Pos: st.Pos, Kind: counters.HitReflect})
}

// accommodationOf is always 1 (full redraw): facet data carries no
// per-facet accommodation coefficient (spec.md §4.6), so every bounce fully
// redraws the speed.
func accommodationOf(f *geometry.FacetData) float64 { return 1 }

// toFacetFrame/fromFacetFrame implement TreatMovingFacet (S4): a moving
// facet's reflection law applies in its own rest frame, so the incoming
// velocity is shifted into that frame before sampling and the outgoing
// velocity is shifted back afterward. Only constant translation is modeled;
// MotionRotate facets use the same correction as an approximation.
func (w *Worker) toFacetFrame(dir r3.Vec, speed float64, f *geometry.FacetData) (r3.Vec, float64) {
	vIn := r3.Scale(speed, dir)
	vRel := r3.Sub(vIn, w.facetVelocity(f))
	relSpeed := r3.Norm(vRel)
	if relSpeed == 0 {
		return dir, speed
	}
	return r3.Scale(1/relSpeed, vRel), relSpeed
}

func (w *Worker) fromFacetFrame(dir r3.Vec, speed float64, f *geometry.FacetData) (r3.Vec, float64) {
	vRel := r3.Scale(speed, dir)
	vLab := r3.Add(vRel, w.facetVelocity(f))
	labSpeed := r3.Norm(vLab)
	if labSpeed == 0 {
		return dir, speed
	}
	return r3.Scale(1/labSpeed, vLab), labSpeed
}

func (w *Worker) facetVelocity(f *geometry.FacetData) r3.Vec {
	g := w.Model.Global
	v := g.MotionVector1
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
