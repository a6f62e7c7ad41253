package particle

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/anglemap"
	"github.com/vactrace-sim/vactrace/counters"
	"github.com/vactrace-sim/vactrace/geometry"
	"github.com/vactrace-sim/vactrace/sampler"
)

// nonMaxwellVFactor is the <v> correction applied to sum_v_ort when the
// Maxwell distribution is disabled (spec.md §4.2 step 7).
const nonMaxwellVFactor = 1.1781

const maxPositionTries = 1000

// StartFromSource implements spec.md §4.2: pick a source facet weighted by
// outgassing, sample its launch time/velocity/direction/position, and spawn
// a new particle. Returns false if there is no outgassing to draw from or
// the worker's desorption budget is exhausted.
func (w *Worker) StartFromSource() (bool, error) {
	if w.remainingDesorbed == 0 {
		return false, nil
	}
	total := w.Model.TotalDesorbedMolecules
	if total <= 0 {
		return false, nil
	}

	draw := w.RNG.UniformRange(0, total)
	facetID, cellIdx, ok := w.pickSourceFacet(draw)
	if !ok {
		return false, &SourceSelectionError{Draw: draw, Total: total}
	}
	f := w.Model.Facet(facetID)

	genTime := w.drawGenTime(f)
	speed := w.drawSpeed(f)
	decayTime := w.drawDecayTime(genTime)

	dir, theta, phi := w.drawDirection(f, facetID)
	if f.Is2Sided && w.RNG.Bool(0.5) {
		dir = r3.Scale(-1, dir)
	}

	pos, local := w.drawPosition(f, cellIdx)

	st := NewState()
	st.Pos, st.Dir, st.Speed = pos, dir, speed
	st.Time, st.GenTime = genTime, genTime
	st.DecayTime = decayTime
	st.StructIdx = startingStruct(f)
	st.LastHit, st.HasLastHit = facetID, true
	st.LastLocal = local
	w.active = st
	w.remainingDesorbed--

	w.recordDesorption(facetID, f, dir, speed, theta, phi)
	w.Buffer.PushHit(counters.HitCacheEntry{Pos: pos, Kind: counters.HitDesorb})
	return true, nil
}

func startingStruct(f *geometry.FacetData) int {
	if f.SuperIdx < 0 {
		return 0
	}
	return f.SuperIdx
}

// pickSourceFacet walks facets in build order accumulating each one's share
// of TotalDesorbedMolecules until draw falls inside one's interval
// (spec.md §4.2 step 1). For a file-backed facet it performs the second,
// inner lookup over the facet's outgassing cells.
func (w *Worker) pickSourceFacet(draw float64) (geometry.FacetID, int, bool) {
	var running float64
	for _, id := range w.Model.Facets() {
		f := w.Model.Facet(id)
		contribution, _ := w.Model.FacetOutgassingTotals(f)
		if contribution <= 0 {
			continue
		}
		if draw < running+contribution {
			if f.OutgassingMap != nil {
				return id, w.pickSourceCell(f, draw-running, contribution), true
			}
			return id, -1, true
		}
		running += contribution
	}
	return geometry.FacetID{}, -1, false
}

func (w *Worker) pickSourceCell(f *geometry.FacetData, withinFacet, facetTotal float64) int {
	m := f.OutgassingMap
	if len(m.Cumulative) == 0 || facetTotal <= 0 {
		return 0
	}
	target := withinFacet / facetTotal * m.Total()
	lo, hi := 0, len(m.Cumulative)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if m.Cumulative[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (w *Worker) drawGenTime(f *geometry.FacetData) float64 {
	if f.IDID < 0 {
		return w.RNG.UniformRange(0, w.Model.LatestMoment)
	}
	table := w.Model.IntegratedDesorption(f.IDID)
	_, cum := table.Back()
	u := w.RNG.UniformRange(0, cum)
	return table.Invert(u)
}

func (w *Worker) drawSpeed(f *geometry.FacetData) float64 {
	cdf := w.Model.VelocityCDF(f.CDFID)
	return sampler.DrawSpeed(cdf, w.Model.Global.UseMaxwell, f.Temperature, w.Model.Global.GasMass, w.RNG.Uniform())
}

func (w *Worker) drawDecayTime(genTime float64) float64 {
	if !w.Model.Global.EnableDecay {
		return math.Inf(1)
	}
	r := w.RNG.Uniform()
	for r <= 0 {
		r = w.RNG.Uniform()
	}
	return genTime + w.Model.Global.Halflife*(1/math.Ln2)*(-math.Log(r))
}

func (w *Worker) drawDirection(f *geometry.FacetData, id geometry.FacetID) (r3.Vec, float64, float64) {
	var theta, phi float64
	if f.DesorbType == geometry.DesorbAnglemap {
		var fb anglemap.NumericFallback
		rawTheta, rawPhi := w.Model.AngleMap(id).Sample(w.RNG.Uniform(), w.RNG.Uniform(), &fb)
		theta, phi = sampler.AnglemapEmission(rawTheta, rawPhi)
	} else {
		theta, phi = sampler.DesorbAngles(f.DesorbType, f.DesorbExponent, w.RNG.Uniform(), w.RNG.Uniform())
	}
	return sampler.ToWorld(f.Basis, theta, phi), theta, phi
}

// drawPosition implements spec.md §4.2 step 6: uniform within the chosen
// outgassing cell, or rejection sampling within the facet's polygon with a
// bounded budget, falling back to the facet center.
func (w *Worker) drawPosition(f *geometry.FacetData, cellIdx int) (r3.Vec, geometry.Point2D) {
	if cellIdx >= 0 {
		return w.drawPositionInCell(f, cellIdx)
	}
	for i := 0; i < maxPositionTries; i++ {
		u := f.BBoxMin.U + w.RNG.Uniform()*(f.BBoxMax.U-f.BBoxMin.U)
		v := f.BBoxMin.V + w.RNG.Uniform()*(f.BBoxMax.V-f.BBoxMin.V)
		p := geometry.Point2D{U: u, V: v}
		if f.ContainsLocal(p) {
			return f.World(p), p
		}
	}
	center := geometry.Point2D{U: (f.BBoxMin.U + f.BBoxMax.U) / 2, V: (f.BBoxMin.V + f.BBoxMax.V) / 2}
	return f.World(center), center
}

// drawPositionInCell samples uniformly inside a texture cell, clamping the
// subrange to the cell's true double-precision bounds rather than
// [k, k+1) so the last row/column never samples outside the facet
// (spec.md §4.2 Edge cases).
func (w *Worker) drawPositionInCell(f *geometry.FacetData, cellIdx int) (r3.Vec, geometry.Point2D) {
	m := f.OutgassingMap
	col := cellIdx % m.Width
	row := cellIdx / m.Width
	uLo, uHi := float64(col)/float64(m.Width), math.Min(float64(col+1)/float64(m.Width), 1.0)
	vLo, vHi := float64(row)/float64(m.Height), math.Min(float64(row+1)/float64(m.Height), 1.0)
	texU := uLo + w.RNG.Uniform()*(uHi-uLo)
	texV := vLo + w.RNG.Uniform()*(vHi-vLo)
	localU := f.BBoxMin.U + texU*(f.BBoxMax.U-f.BBoxMin.U)
	localV := f.BBoxMin.V + texV*(f.BBoxMax.V-f.BBoxMin.V)
	p := geometry.Point2D{U: localU, V: localV}
	return f.World(p), p
}

// recordDesorption applies spec.md §4.2 step 7's side effects. w.active
// already carries dir/speed/local as Dir/Speed/LastLocal, so the shared
// texture/profile/direction helpers apply unchanged at this site.
func (w *Worker) recordDesorption(id geometry.FacetID, f *geometry.FacetData, dir r3.Vec, speed, theta, phi float64) {
	st := w.active
	vOrt := speed * math.Abs(r3.Dot(dir, f.Basis.N))
	moments := w.momentIndices(st.GenTime)
	vFactor := w.maxwellFactor()

	for _, mi := range moments {
		mc := &w.Buffer.Moments[mi]
		mc.Global.Desorbed++
		fc := mc.Facets[id]
		fc.Desorbed++
		if vOrt > 0 {
			fc.Sum1PerVOrt += st.OriRatio * 2 / vOrt
		}
		fc.SumVOrt += st.OriRatio * vFactor * vOrt

		if f.Counts.Desorption {
			w.recordTexture(fc, f, st, true, 2.0, 1.0)
		}
		// Desorption doesn't contribute to angular/speed profiles
		// (countHit=false), only to the U/V pressure velocity sums.
		w.recordProfile(fc, f, st, false, 2.0, 1.0)
		if f.Counts.Direction {
			recordDirection(fc, f, st)
		}
	}

	// Open Question §9(a): the legacy engine records the incident angle at
	// source-emission time whenever the facet both desorbs and records an
	// angle map, even when DesorbType isn't anglemap. Kept as-is.
	if f.Anglemap.Record {
		thetaBin, phiBin := f.Anglemap.ToMapParams().Bin(theta, phi)
		w.Buffer.RecordAngle(id, thetaBin, phiBin, f.Anglemap.PhiWidth)
	}
}
