package anglemap

import (
	"math"
	"testing"
)

func testParams() Params {
	return Params{PhiWidth: 8, ThetaLimit: math.Pi / 4, ThetaLowerRes: 5, ThetaHigherRes: 5}
}

func TestBinRoundTripsThroughGetTheta(t *testing.T) {
	p := testParams()
	m := New(p)
	cases := []struct{ theta, phi float64 }{
		{0.01, -3.0},
		{p.ThetaLimit - 0.01, 0},
		{p.ThetaLimit + 0.01, 1.5},
		{math.Pi/2 - 0.001, math.Pi - 0.001},
	}
	for _, c := range cases {
		ti, pi := p.Bin(c.theta, c.phi)
		if ti < 0 || ti >= p.nTheta() {
			t.Fatalf("Bin(%v, %v) theta index out of range: %d", c.theta, c.phi, ti)
		}
		if pi < 0 || pi >= p.PhiWidth {
			t.Fatalf("Bin(%v, %v) phi index out of range: %d", c.theta, c.phi, pi)
		}
		// Map.Record must use the same classification as Bin.
		m.Record(c.theta, c.phi)
	}
	var total uint64
	for _, c := range m.Counts {
		total += c
	}
	if total != uint64(len(cases)) {
		t.Errorf("recorded count = %d, want %d", total, len(cases))
	}
}

func TestMergeAddsAndInvalidatesBuild(t *testing.T) {
	p := testParams()
	m := New(p)
	m.Record(0.01, -3.0)
	m.Build()
	if !m.built {
		t.Fatal("expected built after Build()")
	}

	delta := make([]uint64, len(m.Counts))
	delta[0] = 5
	m.Merge(delta)

	if m.built {
		t.Error("Merge should invalidate the cached build")
	}
	if m.Counts[0] != 6 {
		t.Errorf("Counts[0] = %d, want 6 (1 recorded + 5 merged)", m.Counts[0])
	}
}

func TestSampleUniformWhenEmpty(t *testing.T) {
	p := testParams()
	m := New(p)
	var fb NumericFallback
	theta, phi := m.Sample(0.5, 0.5, &fb)
	if theta < 0 || theta > math.Pi/2 {
		t.Errorf("theta = %v, out of [0, pi/2]", theta)
	}
	if phi < -math.Pi || phi > math.Pi {
		t.Errorf("phi = %v, out of (-pi, pi]", phi)
	}
}

func TestSampleConcentratesNearRecordedBin(t *testing.T) {
	p := Params{PhiWidth: 4, ThetaLimit: math.Pi / 4, ThetaLowerRes: 4, ThetaHigherRes: 4}
	m := New(p)
	// Pile every count into theta bin 0 so sampling near u1=0 should stay
	// within the lower range of the map.
	ti, pi := p.Bin(0.01, -3.0)
	for i := 0; i < 1000; i++ {
		m.Counts[ti*p.PhiWidth+pi]++
	}
	var fb NumericFallback
	theta, _ := m.Sample(0.01, 0.01, &fb)
	if theta > p.ThetaLimit {
		t.Errorf("theta = %v should stay within the heavily recorded lower range (limit %v)", theta, p.ThetaLimit)
	}
}

func TestPhiWidthOneShortCircuitsToUniform(t *testing.T) {
	p := Params{PhiWidth: 1, ThetaLimit: math.Pi / 4, ThetaLowerRes: 2, ThetaHigherRes: 2}
	m := New(p)
	var fb NumericFallback
	_, phi := m.Sample(0.5, 0.75, &fb)
	want := -math.Pi + 2*math.Pi*0.75
	if math.Abs(phi-want) > 1e-9 {
		t.Errorf("phi = %v, want %v", phi, want)
	}
}
