package global

import "math"

// TextureLimit tracks one physical quantity's running min/max over every
// large-enough texture cell, on two tracks: "All" includes the steady-state
// moment, "MomentsOnly" excludes it so a time-dependent run can autoscale
// without the constant-flow moment dominating the range (spec.md §3, §4.8).
type TextureLimit struct {
	MinAll, MaxAll                 float64
	MinMomentsOnly, MaxMomentsOnly float64
}

// TextureLimits is the three autoscaled physical quantities the UI derives
// per texture cell (spec.md §4.8).
type TextureLimits struct {
	Pressure, Impingement, Density TextureLimit
}

func newTextureLimits() TextureLimits {
	lim := TextureLimits{}
	for _, q := range []*TextureLimit{&lim.Pressure, &lim.Impingement, &lim.Density} {
		q.MinAll, q.MinMomentsOnly = math.Inf(1), math.Inf(1)
	}
	return lim
}

// computeTextureLimits recomputes the autoscale min/max from the current
// merged state, matching _examples/original_source's UpdateMCHits: it is a
// fresh pass over every textured facet's cells on every merge, not an
// incremental accumulation, so a run that only shrinks in magnitude still
// reports a tight range.
func (s *State) computeTextureLimits() TextureLimits {
	lim := newTextureLimits()
	quantities := [3]*TextureLimit{&lim.Pressure, &lim.Impingement, &lim.Density}

	for _, id := range s.model.Facets() {
		f := s.model.Facet(id)
		if f.Texture.Width <= 0 || f.Texture.Height <= 0 {
			continue
		}
		for m := range s.Moments {
			fc, ok := s.Moments[m].Facets[id]
			if !ok || (fc.Hits == 0 && fc.Desorbed == 0) {
				continue
			}
			timeCorrection := s.TimeCorrection(m)
			for t := range fc.Texture {
				if t >= len(f.Texture.LargeEnough) || !f.Texture.LargeEnough[t] {
					continue
				}
				var inc float64
				if t < len(f.Texture.Inc) {
					inc = f.Texture.Inc[t]
				}
				vals := [3]float64{
					fc.Texture[t].SumVOrtPerArea * timeCorrection,
					fc.Texture[t].CountEquiv * inc * timeCorrection,
					inc * fc.Texture[t].Sum1PerVOrt * timeCorrection,
				}
				for v, val := range vals {
					q := quantities[v]
					if val > q.MaxAll {
						q.MaxAll = val
					}
					if val > 0 && val < q.MinAll {
						q.MinAll = val
					}
					if m != 0 {
						if val > q.MaxMomentsOnly {
							q.MaxMomentsOnly = val
						}
						if val > 0 && val < q.MinMomentsOnly {
							q.MinMomentsOnly = val
						}
					}
				}
			}
		}
	}
	return lim
}
