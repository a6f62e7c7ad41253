package particle

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/counters"
	"github.com/vactrace-sim/vactrace/geometry"
	"github.com/vactrace-sim/vactrace/sampler"
	"github.com/vactrace-sim/vactrace/tables"
)

// maxwellFactor is the <v> correction RecordHitOnTexture/ProfileFacet apply
// to an orthogonal-velocity sum whenever the Maxwell distribution is
// disabled, matching nonMaxwellVFactor's use in recordDesorption.
func (w *Worker) maxwellFactor() float64 {
	if w.Model.Global.UseMaxwell {
		return 1.0
	}
	return nonMaxwellVFactor
}

// maxSpeedFor returns the facet's velocity-profile normalization speed: the
// top of its velocity CDF table (4*v_prob), or the non-Maxwell shortcut
// speed's own 4*v_prob bound when the facet has no CDF.
func (w *Worker) maxSpeedFor(f *geometry.FacetData) float64 {
	if cdf := w.Model.VelocityCDF(f.CDFID); cdf != nil && len(cdf.Speed) > 0 {
		return cdf.Speed[len(cdf.Speed)-1]
	}
	vProb := math.Sqrt(2 * tables.GasConstant * f.Temperature / (w.Model.Global.GasMass * 1e-3))
	return 4 * vProb
}

// recordTexture updates a facet's texture cell at st.LastLocal with the
// weight pair the original engine's RecordHitOnTexture uses at each hit
// site: ordinary reflect (1,1); absorb/volatile-absorb (2,1);
// link/teleport/transparent-pass (2,2).
func (w *Worker) recordTexture(fc *counters.FacetCounters, f *geometry.FacetData, st *State, countHit bool, velocityFactor, ortSpeedFactor float64) {
	cell, in := f.Texture.CellIndex(f.TextureUV(st.LastLocal))
	if !in || cell >= len(fc.Texture) {
		return
	}
	ortVelocity := w.maxwellFactor() * st.Speed * math.Abs(r3.Dot(st.Dir, f.Basis.N))
	if ortVelocity <= 0 {
		return
	}
	t := &fc.Texture[cell]
	if countHit {
		t.CountEquiv += st.OriRatio
	}
	t.Sum1PerVOrt += st.OriRatio * velocityFactor / ortVelocity
	var inc float64
	if cell < len(f.Texture.Inc) {
		inc = f.Texture.Inc[cell]
	}
	t.SumVOrtPerArea += st.OriRatio * ortSpeedFactor * ortVelocity * inc
}

// recordDirection accumulates an ori_ratio*speed-weighted velocity vector
// into the texture cell at st.LastLocal (spec.md §3 count_direction).
func recordDirection(fc *counters.FacetCounters, f *geometry.FacetData, st *State) {
	cell, in := f.Texture.CellIndex(f.TextureUV(st.LastLocal))
	if !in || cell >= len(fc.Direction) {
		return
	}
	fc.Direction[cell].Sum = r3.Add(fc.Direction[cell].Sum, r3.Scale(st.OriRatio*st.Speed, st.Dir))
	fc.Direction[cell].Count += st.OriRatio
}

// recordIncidentAngle bins a hit's incident direction into a recording
// facet's worker-private angle-map counts, folding theta into [0, pi/2]
// exactly as _examples/original_source's RecordAngleMap does (spec.md §4.5).
func (w *Worker) recordIncidentAngle(id geometry.FacetID, f *geometry.FacetData, st *State) {
	if !f.Anglemap.Record {
		return
	}
	theta, phi := sampler.ToLocal(f.Basis, st.Dir)
	if theta > math.Pi/2 {
		theta = math.Abs(math.Pi - theta)
	}
	thetaBin, phiBin := f.Anglemap.ToMapParams().Bin(theta, phi)
	w.Buffer.RecordAngle(id, thetaBin, phiBin, f.Anglemap.PhiWidth)
}

// clampProfileBin saturates pos into [0, ProfileSize), matching
// ProfileFacet's Saturate call for the angular profile.
func clampProfileBin(pos int) int {
	if pos < 0 {
		return 0
	}
	if pos >= counters.ProfileSize {
		return counters.ProfileSize - 1
	}
	return pos
}

// recordProfile updates a facet's 1D profile per its ProfileKind, mirroring
// _examples/original_source's ProfileFacet: the angular and speed-family
// profiles only record on countHit, while the U/V pressure profiles always
// update their velocity sums and gate only CountEquiv on countHit.
func (w *Worker) recordProfile(fc *counters.FacetCounters, f *geometry.FacetData, st *State, countHit bool, velocityFactor, ortSpeedFactor float64) {
	if f.Profile == geometry.ProfileNone || len(fc.Profile) == 0 {
		return
	}
	switch f.Profile {
	case geometry.ProfileAngular:
		if !countHit {
			return
		}
		theta := math.Acos(math.Abs(r3.Dot(f.Basis.N, st.Dir)))
		pos := clampProfileBin(int(theta / (math.Pi / 2) * float64(counters.ProfileSize)))
		fc.Profile[pos].CountEquiv += st.OriRatio

	case geometry.ProfilePressureU, geometry.ProfilePressureV:
		u, v := f.TextureUV(st.LastLocal)
		frac := u
		if f.Profile == geometry.ProfilePressureV {
			frac = v
		}
		pos := int(frac * float64(counters.ProfileSize))
		if pos < 0 || pos >= counters.ProfileSize {
			return
		}
		slice := &fc.Profile[pos]
		if countHit {
			slice.CountEquiv += st.OriRatio
		}
		ortVelocity := st.Speed * math.Abs(r3.Dot(f.Basis.N, st.Dir))
		if ortVelocity > 0 {
			slice.Sum1PerVOrt += st.OriRatio * velocityFactor / ortVelocity
		}
		slice.SumVOrt += st.OriRatio * ortSpeedFactor * w.maxwellFactor() * ortVelocity

	case geometry.ProfileSpeed, geometry.ProfileOrthogonalSpeed, geometry.ProfileTangentialSpeed:
		if !countHit {
			return
		}
		var dot float64
		switch f.Profile {
		case geometry.ProfileSpeed:
			dot = 1
		case geometry.ProfileOrthogonalSpeed:
			dot = math.Abs(r3.Dot(f.Basis.N, st.Dir))
		default:
			cos := math.Abs(r3.Dot(f.Basis.N, st.Dir))
			dot = math.Sqrt(math.Max(0, 1-cos*cos))
		}
		maxSpeed := w.maxSpeedFor(f)
		if maxSpeed <= 0 {
			return
		}
		pos := int(dot * st.Speed / maxSpeed * float64(counters.ProfileSize))
		if pos < 0 || pos >= counters.ProfileSize {
			return
		}
		fc.Profile[pos].CountEquiv += st.OriRatio
	}
}
