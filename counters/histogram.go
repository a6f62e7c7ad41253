// Package counters holds the per-worker statistics buffers the particle
// loop writes into: global and per-facet hit counters, histograms, texture
// cells, profile slices, direction cells, and angle-map PDF counts, each
// replicated per moment window (spec.md §3 Counter buffers, §4.7
// Histograms).
package counters

import "github.com/vactrace-sim/vactrace/geometry"

// Histogram is a fixed-bin-width accumulator with a catch-all final bin.
type Histogram struct {
	binSize float64
	bins    []float64
}

// NewHistogram allocates a histogram with n bins of the given width; the
// last bin is the catch-all for any value at or beyond its lower edge.
func NewHistogram(binSize float64, n int) Histogram {
	if n < 1 {
		n = 1
	}
	return Histogram{binSize: binSize, bins: make([]float64, n)}
}

// Add increments the bin containing value by weight.
func (h *Histogram) Add(value, weight float64) {
	if len(h.bins) == 0 || h.binSize <= 0 {
		return
	}
	idx := int(value / h.binSize)
	if idx >= len(h.bins) {
		idx = len(h.bins) - 1
	}
	if idx < 0 {
		idx = 0
	}
	h.bins[idx] += weight
}

// Bins returns the accumulated per-bin totals.
func (h *Histogram) Bins() []float64 { return h.bins }

// Sum returns the total weight recorded across all bins.
func (h *Histogram) Sum() float64 {
	var s float64
	for _, b := range h.bins {
		s += b
	}
	return s
}

// Merge adds src's bins into h elementwise (spec.md §4.8).
func (h *Histogram) Merge(src Histogram) {
	for i := range h.bins {
		if i < len(src.bins) {
			h.bins[i] += src.bins[i]
		}
	}
}

// HistogramSet is the three hit-kind histograms recorded on absorption
// (spec.md §4.7): bounce count, cumulative distance, and lifetime.
type HistogramSet struct {
	Bounce   Histogram
	Distance Histogram
	Time     Histogram
}

// NewHistogramSet builds a zeroed set from facet (or global) parameters.
func NewHistogramSet(p geometry.HistogramParams) HistogramSet {
	return HistogramSet{
		Bounce:   NewHistogram(p.BounceBinSize, maxBins(p.BounceBins)),
		Distance: NewHistogram(p.DistanceBinSize, maxBins(p.DistanceBins)),
		Time:     NewHistogram(p.TimeBinSize, maxBins(p.TimeBins)),
	}
}

func maxBins(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Record adds one absorption event's bounce count, distance, and lifetime.
func (hs *HistogramSet) Record(bounces float64, distance, lifetime, weight float64) {
	hs.Bounce.Add(bounces, weight)
	hs.Distance.Add(distance, weight)
	hs.Time.Add(lifetime, weight)
}

// Merge adds src into hs elementwise.
func (hs *HistogramSet) Merge(src HistogramSet) {
	hs.Bounce.Merge(src.Bounce)
	hs.Distance.Merge(src.Distance)
	hs.Time.Merge(src.Time)
}

// Clone deep-copies hs.
func (hs HistogramSet) Clone() HistogramSet {
	return HistogramSet{
		Bounce:   Histogram{binSize: hs.Bounce.binSize, bins: append([]float64(nil), hs.Bounce.bins...)},
		Distance: Histogram{binSize: hs.Distance.binSize, bins: append([]float64(nil), hs.Distance.bins...)},
		Time:     Histogram{binSize: hs.Time.binSize, bins: append([]float64(nil), hs.Time.bins...)},
	}
}
