package counters

import "gonum.org/v1/gonum/spatial/r3"

// ProfileSize is the fixed slice count of a 1D profile, matching
// _examples/original_source's PROFILE_SIZE.
const ProfileSize = 100

// TextureCell is one cell of a facet's 2D texture (spec.md §3).
type TextureCell struct {
	CountEquiv     float64
	SumVOrtPerArea float64
	Sum1PerVOrt    float64
}

func (c *TextureCell) merge(src TextureCell) {
	c.CountEquiv += src.CountEquiv
	c.SumVOrtPerArea += src.SumVOrtPerArea
	c.Sum1PerVOrt += src.Sum1PerVOrt
}

// ProfileSlice is one bin of a facet's 1D profile (spec.md §3).
type ProfileSlice struct {
	CountEquiv  float64
	SumVOrt     float64
	Sum1PerVOrt float64
}

func (s *ProfileSlice) merge(src ProfileSlice) {
	s.CountEquiv += src.CountEquiv
	s.SumVOrt += src.SumVOrt
	s.Sum1PerVOrt += src.Sum1PerVOrt
}

// DirectionCell accumulates ori_ratio-weighted velocity vectors for a
// texture cell (spec.md §3).
type DirectionCell struct {
	Sum   r3.Vec
	Count float64
}

func (d *DirectionCell) merge(src DirectionCell) {
	d.Sum = r3.Add(d.Sum, src.Sum)
	d.Count += src.Count
}

// GlobalCounters is the aggregate counter shape shared by the global state
// and every per-facet counter block (spec.md §3).
type GlobalCounters struct {
	Hits        uint64
	HitEquiv    float64
	AbsEquiv    float64
	Desorbed    uint64
	SumVOrt     float64
	Sum1PerV    float64
	Sum1PerVOrt float64

	DistanceTotal         float64
	DistanceFullHitsOnly  float64
	LeaksTotal            uint64
}

// Merge adds src into c elementwise (spec.md §4.8).
func (c *GlobalCounters) Merge(src GlobalCounters) {
	c.Hits += src.Hits
	c.HitEquiv += src.HitEquiv
	c.AbsEquiv += src.AbsEquiv
	c.Desorbed += src.Desorbed
	c.SumVOrt += src.SumVOrt
	c.Sum1PerV += src.Sum1PerV
	c.Sum1PerVOrt += src.Sum1PerVOrt
	c.DistanceTotal += src.DistanceTotal
	c.DistanceFullHitsOnly += src.DistanceFullHitsOnly
	c.LeaksTotal += src.LeaksTotal
}

// FacetCounters is one facet's counters for one moment index.
type FacetCounters struct {
	GlobalCounters
	Histograms HistogramSet
	Texture    []TextureCell
	Profile    []ProfileSlice
	Direction  []DirectionCell
}

// Clone deep-copies fc, for safely reading a snapshot while the original
// keeps accumulating (spec.md §6 snapshot_state_to).
func (fc *FacetCounters) Clone() *FacetCounters {
	out := &FacetCounters{
		GlobalCounters: fc.GlobalCounters,
		Histograms:     fc.Histograms.Clone(),
		Texture:        append([]TextureCell(nil), fc.Texture...),
		Profile:        append([]ProfileSlice(nil), fc.Profile...),
		Direction:      append([]DirectionCell(nil), fc.Direction...),
	}
	return out
}

// Merge adds src into fc elementwise.
func (fc *FacetCounters) Merge(src *FacetCounters) {
	fc.GlobalCounters.Merge(src.GlobalCounters)
	fc.Histograms.Merge(src.Histograms)
	for i := range fc.Texture {
		if i < len(src.Texture) {
			fc.Texture[i].merge(src.Texture[i])
		}
	}
	for i := range fc.Profile {
		if i < len(src.Profile) {
			fc.Profile[i].merge(src.Profile[i])
		}
	}
	for i := range fc.Direction {
		if i < len(src.Direction) {
			fc.Direction[i].merge(src.Direction[i])
		}
	}
}
