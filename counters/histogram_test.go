package counters

import (
	"testing"

	"github.com/vactrace-sim/vactrace/geometry"
)

func TestHistogramAddBucketsByBinSize(t *testing.T) {
	h := NewHistogram(2, 3) // bins: [0,2) [2,4) [4,inf)
	h.Add(0.5, 1)
	h.Add(2.5, 1)
	h.Add(2.9, 1)
	h.Add(100, 1) // overflow clamps to the catch-all last bin
	got := h.Bins()
	if got[0] != 1 || got[1] != 2 || got[2] != 1 {
		t.Errorf("Bins() = %v, want [1 2 1]", got)
	}
}

func TestHistogramAddNegativeClampsToFirstBin(t *testing.T) {
	h := NewHistogram(1, 2)
	h.Add(-5, 3)
	if got := h.Bins(); got[0] != 3 {
		t.Errorf("Bins()[0] = %v, want 3", got[0])
	}
}

func TestHistogramZeroBinSizeNoOps(t *testing.T) {
	h := NewHistogram(0, 3)
	h.Add(1, 5)
	if h.Sum() != 0 {
		t.Errorf("Sum() = %v, want 0 for a zero bin-size histogram", h.Sum())
	}
}

func TestHistogramNewClampsMinBins(t *testing.T) {
	h := NewHistogram(1, 0)
	if len(h.Bins()) != 1 {
		t.Errorf("Bins() length = %d, want 1", len(h.Bins()))
	}
}

func TestHistogramSumAndMerge(t *testing.T) {
	a := NewHistogram(1, 2)
	a.Add(0, 1)
	a.Add(1, 2)
	b := NewHistogram(1, 2)
	b.Add(0, 5)
	a.Merge(b)
	if a.Sum() != 8 {
		t.Errorf("Sum() after merge = %v, want 8", a.Sum())
	}
}

func TestHistogramSetCloneIsIndependent(t *testing.T) {
	hs := NewHistogramSet(geometry.HistogramParams{BounceBinSize: 1, BounceBins: 2, DistanceBinSize: 1, DistanceBins: 2, TimeBinSize: 1, TimeBins: 2})
	hs.Record(0, 0, 0, 4)
	clone := hs.Clone()
	hs.Record(0, 0, 0, 100)
	if clone.Bounce.Sum() != 4 {
		t.Errorf("clone.Bounce.Sum() = %v, want 4 (independent of later mutation)", clone.Bounce.Sum())
	}
}

func TestHistogramSetRecordAndMerge(t *testing.T) {
	hs := NewHistogramSet(geometry.HistogramParams{
		RecordBounce: true, BounceBinSize: 1, BounceBins: 5,
		RecordDistance: true, DistanceBinSize: 1, DistanceBins: 5,
		RecordTime: true, TimeBinSize: 1, TimeBins: 5,
	})
	hs.Record(2, 3, 4, 1)
	other := NewHistogramSet(geometry.HistogramParams{BounceBinSize: 1, BounceBins: 5, DistanceBinSize: 1, DistanceBins: 5, TimeBinSize: 1, TimeBins: 5})
	other.Record(2, 3, 4, 2)
	hs.Merge(other)
	if hs.Bounce.Sum() != 3 || hs.Distance.Sum() != 3 || hs.Time.Sum() != 3 {
		t.Errorf("merged sums = (%v,%v,%v), want all 3", hs.Bounce.Sum(), hs.Distance.Sum(), hs.Time.Sum())
	}
}
