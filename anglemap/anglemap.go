// Package anglemap implements the per-facet recorded angle map: a 2D
// (theta, phi) incidence histogram that can be recorded from hits and later
// sampled as an emission PDF, per spec.md §4.5.
package anglemap

import (
	"math"
	"sort"
)

// Params describes the map's resolution and angular domain, per spec.md §3
// anglemap_params.
type Params struct {
	PhiWidth      int
	ThetaLimit    float64 // in (0, pi/2)
	ThetaLowerRes int     // bins uniformly covering [0, ThetaLimit]
	ThetaHigherRes int    // bins uniformly covering [ThetaLimit, pi/2]
}

func (p Params) nTheta() int { return p.ThetaLowerRes + p.ThetaHigherRes }

// Map is the built angle map: raw incidence counts plus the derived CDFs
// used for inverse sampling. Built once per record/use transition and never
// mutated thereafter except by Record.
type Map struct {
	Params Params

	// Counts[i*PhiWidth+j] is the recorded hit count for (theta bin i, phi
	// bin j). Mutated by Record; everything else below is derived from it
	// by Build and is stale until Build is called again.
	Counts []uint64

	rowSum      []float64 // per-theta-bin total count
	thetaCDFSum float64
	thetaCDF    []float64            // size nTheta
	phiCDF      [][]float64          // [theta bin][phi bin], cumulative within row
	built       bool
}

// New allocates an empty map ready to Record into.
func New(p Params) *Map {
	n := p.nTheta() * p.PhiWidth
	return &Map{Params: p, Counts: make([]uint64, n)}
}

// Merge folds a worker-private count slice (same shape as Counts, built
// from anglemap.Params.Bin classifications) into the shared map and
// invalidates its cached CDFs (spec.md §4.8).
func (m *Map) Merge(counts []uint64) {
	for i, c := range counts {
		if i < len(m.Counts) {
			m.Counts[i] += c
		}
	}
	m.built = false
}

// Record increments the bin containing (theta, phi). theta must be in
// [0, pi/2]; phi in (-pi, pi].
func (m *Map) Record(theta, phi float64) {
	ti := m.thetaBin(theta)
	pi := m.phiBin(phi)
	m.Counts[ti*m.Params.PhiWidth+pi]++
	m.built = false
}

func (m *Map) thetaBin(theta float64) int { return m.Params.thetaBin(theta) }

func (m *Map) phiBin(phi float64) int { return m.Params.phiBin(phi) }

// Bin returns the (theta, phi) bin indices a hit at these angles falls into,
// the same computation Map.Record uses. Exported so callers that must defer
// the actual increment (worker-private angle-map counts, merged later) can
// still classify a hit using identical binning (spec.md §4.5).
func (p Params) Bin(theta, phi float64) (thetaIdx, phiIdx int) {
	return p.thetaBin(theta), p.phiBin(phi)
}

func (p Params) thetaBin(theta float64) int {
	var idx int
	if theta <= p.ThetaLimit {
		idx = int(theta / p.ThetaLimit * float64(p.ThetaLowerRes))
		if idx >= p.ThetaLowerRes {
			idx = p.ThetaLowerRes - 1
		}
	} else {
		frac := (theta - p.ThetaLimit) / (math.Pi/2 - p.ThetaLimit)
		idx = p.ThetaLowerRes + int(frac*float64(p.ThetaHigherRes))
		if idx >= p.nTheta() {
			idx = p.nTheta() - 1
		}
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func (p Params) phiBin(phi float64) int {
	width := p.PhiWidth
	frac := (phi + math.Pi) / (2 * math.Pi) // 0..1
	idx := int(frac * float64(width))
	if idx >= width {
		idx = width - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// Build (re)computes theta_CDF and the per-row phi CDFs from Counts using
// the same midpoint-trapezoid cumulative construction as
// _examples/original_source's GeometrySimu.cpp: each CDF point sits half a
// bin's weight past the previous one rather than a plain running sum, so
// GetTheta/GetPhi's +0.5 bin-center convention lines up with it.
func (m *Map) Build() {
	n := m.Params.nTheta()
	w := m.Params.PhiWidth
	m.rowSum = make([]float64, n)
	m.thetaCDF = make([]float64, n)
	m.phiCDF = make([][]float64, n)

	m.thetaCDFSum = 0
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < w; j++ {
			s += float64(m.Counts[i*w+j])
		}
		m.rowSum[i] = s
		m.thetaCDFSum += s
	}

	if m.thetaCDFSum == 0 {
		for i := 0; i < n; i++ {
			m.thetaCDF[i] = (0.5 + float64(i)) / float64(n)
		}
	} else {
		norm := 1.0 / m.thetaCDFSum
		m.thetaCDF[0] = 0.5 * m.rowSum[0] * norm
		for i := 1; i < n; i++ {
			m.thetaCDF[i] = m.thetaCDF[i-1] + 0.5*(m.rowSum[i-1]+m.rowSum[i])*norm
		}
	}

	for i := 0; i < n; i++ {
		row := make([]float64, w)
		if m.rowSum[i] == 0 {
			for j := 0; j < w; j++ {
				row[j] = (0.5 + float64(j)) / float64(w)
			}
		} else {
			rn := 1.0 / m.rowSum[i]
			row[0] = 0.5 * float64(m.Counts[i*w]) * rn
			for j := 1; j < w; j++ {
				row[j] = row[j-1] + 0.5*float64(m.Counts[i*w+j-1]+m.Counts[i*w+j])*rn
			}
		}
		m.phiCDF[i] = row
	}
	m.built = true
}

// NumericFallback counts sampling calls that hit a negative discriminant in
// the quadratic inversion and fell back to linear interpolation
// (spec.md §7).
type NumericFallback struct {
	Theta, Phi int
}

// Sample draws (theta, phi) from two independent uniforms in [0,1), per
// spec.md §4.5. theta is returned in [0, pi/2], phi in (-pi, pi).
func (m *Map) Sample(u1, u2 float64, fb *NumericFallback) (theta, phi float64) {
	if !m.built {
		m.Build()
	}
	theta, lowerIdx, overshoot := m.sampleTheta(u1, fb)
	phi = m.samplePhi(lowerIdx, overshoot, u2, fb)
	return theta, phi
}

func (m *Map) getTheta(idx float64) float64 {
	p := m.Params
	if idx < float64(p.ThetaLowerRes) {
		return p.ThetaLimit * idx / float64(p.ThetaLowerRes)
	}
	return p.ThetaLimit + (math.Pi/2-p.ThetaLimit)*(idx-float64(p.ThetaLowerRes))/float64(p.ThetaHigherRes)
}

func (m *Map) getPhi(idx float64) float64 {
	w := float64(m.Params.PhiWidth)
	corrected := idx
	if corrected >= w {
		corrected -= w
	}
	return -math.Pi + 2*math.Pi*corrected/w
}

// sampleTheta returns (theta, thetaLowerIndex, thetaOvershoot).
// thetaLowerIndex == -1 denotes the first half-section, nTheta-1 the last.
func (m *Map) sampleTheta(u1 float64, fb *NumericFallback) (float64, int, float64) {
	n := m.Params.nTheta()
	firstGE := sort.Search(n, func(i int) bool { return m.thetaCDF[i] >= u1 })
	li := firstGE - 1

	switch {
	case li == -1:
		overshoot := 0.5 + 0.5*u1/m.thetaCDF[0]
		return m.getTheta(-1 + 0.5 + overshoot), li, overshoot
	case li == n-1:
		overshoot := 0.5 * (u1 - m.thetaCDF[li]) / (1.0 - m.thetaCDF[li])
		return m.getTheta(float64(li) + 0.5 + overshoot), li, overshoot
	default:
		var overshoot float64
		if m.rowSum[li] == m.rowSum[li+1] {
			overshoot = (u1 - m.thetaCDF[li]) / (m.thetaCDF[li+1] - m.thetaCDF[li])
		} else {
			step := m.getTheta(float64(li)+1.5) - m.getTheta(float64(li)+0.5)
			c := m.thetaCDF[li]
			b := m.rowSum[li] / m.thetaCDFSum / step
			a := 0.5 * (m.rowSum[li+1] - m.rowSum[li]) / m.thetaCDFSum / (step * step)
			dy := u1 - c
			d := b*b + 4*a*dy
			if d < 0 {
				if fb != nil {
					fb.Theta++
				}
				overshoot = (u1 - m.thetaCDF[li]) / (m.thetaCDF[li+1] - m.thetaCDF[li])
			} else {
				dx := (-b + math.Sqrt(d)) / (2 * a)
				overshoot = dx / step
			}
		}
		return m.getTheta(float64(li) + 0.5 + overshoot), li, overshoot
	}
}

// rowPdfAt and rowCdfAt interpolate row i's histogram/CDF, including the
// periodic +1.0 wraparound for a phi index of exactly PhiWidth.
func (m *Map) rowPdfAt(row, phiIdx int) float64 {
	w := m.Params.PhiWidth
	if phiIdx >= w {
		phiIdx -= w
	}
	return float64(m.Counts[row*w+phiIdx])
}

func (m *Map) rowCdfAt(row, phiIdx int) float64 {
	w := m.Params.PhiWidth
	if phiIdx < w {
		return m.phiCDF[row][phiIdx]
	}
	return 1.0 + m.phiCDF[row][0]
}

func weigh(a, b, t float64) float64 { return a + (b-a)*t }

func (m *Map) samplePhi(thetaLowerIdx int, thetaOvershoot, u2 float64, fb *NumericFallback) float64 {
	p := m.Params
	if p.PhiWidth == 1 {
		return -math.Pi + 2*math.Pi*u2
	}
	n := p.nTheta()

	var phiLowerIndex int
	var weighVal float64
	var lookup float64

	findIndex := func(row int, lv float64) int {
		w := p.PhiWidth
		firstGE := sort.Search(w, func(j int) bool { return m.rowCdfAt(row, j) >= lv })
		return firstGE - 1
	}

	switch {
	case thetaLowerIdx == -1:
		lookup = u2 + m.rowCdfAt(0, 0)
		phiLowerIndex = findIndex(0, lookup)
		weighVal = thetaOvershoot
	case thetaLowerIdx == n-1:
		lookup = u2 + m.rowCdfAt(n-1, 0)
		phiLowerIndex = findIndex(n-1, lookup)
		weighVal = thetaOvershoot
	default:
		w1, w2 := m.rowSum[thetaLowerIdx], m.rowSum[thetaLowerIdx+1]
		w3, w4 := 1-thetaOvershoot, thetaOvershoot
		div := w1*w3 + w2*w4
		if div > 0 {
			weighVal = (w4 * w2) / div
		} else {
			weighVal = thetaOvershoot
		}
		lookup = u2 + weigh(m.rowCdfAt(thetaLowerIdx, 0), m.rowCdfAt(thetaLowerIdx+1, 0), weighVal)
		blended := make([]float64, p.PhiWidth)
		for j := 0; j < p.PhiWidth; j++ {
			blended[j] = weigh(m.rowCdfAt(thetaLowerIdx, j), m.rowCdfAt(thetaLowerIdx+1, j), weighVal)
		}
		firstGE := sort.Search(p.PhiWidth, func(j int) bool { return blended[j] >= lookup })
		phiLowerIndex = firstGE - 1
	}

	if phiLowerIndex < 0 {
		phiLowerIndex = 0
	}
	thetaIndex := float64(thetaLowerIdx) + 0.5 + weighVal

	pdfAt := func(phiIdx int) float64 {
		return m.blendedRowValue(thetaIndex, n, func(row int) float64 { return m.rowPdfAt(row, phiIdx) })
	}
	cdfAt := func(phiIdx int) float64 {
		return m.blendedRowValue(thetaIndex, n, func(row int) float64 { return m.rowCdfAt(row, phiIdx) })
	}
	sumAt := func() float64 {
		return m.blendedRowValue(thetaIndex, n, func(row int) float64 { return m.rowSum[row] })
	}

	phiStep := 2 * math.Pi / float64(p.PhiWidth)
	var phiOvershoot float64
	if pdfAt(phiLowerIndex) == pdfAt(phiLowerIndex+1) {
		phiOvershoot = (lookup - cdfAt(phiLowerIndex)) / (cdfAt(phiLowerIndex+1) - cdfAt(phiLowerIndex))
	} else {
		c := cdfAt(phiLowerIndex)
		b := pdfAt(phiLowerIndex) / sumAt() / phiStep
		a := 0.5 * (pdfAt(phiLowerIndex+1) - pdfAt(phiLowerIndex)) / sumAt() / (phiStep * phiStep)
		dy := lookup - c
		d := b*b + 4*a*dy
		if d < 0 {
			if fb != nil {
				fb.Phi++
			}
			phiOvershoot = (lookup - cdfAt(phiLowerIndex)) / (cdfAt(phiLowerIndex+1) - cdfAt(phiLowerIndex))
		} else {
			dx := (-b + math.Sqrt(d)) / (2 * a)
			phiOvershoot = dx / phiStep
		}
	}
	return m.getPhi(float64(phiLowerIndex) + 0.5 + phiOvershoot)
}

// blendedRowValue interpolates f across the two rows bracketing a fractional
// thetaIndex, mirroring GetPhipdfValue/GetPhiCDFValue/GetPhiCDFSum's
// edge-clamped linear blend.
func (m *Map) blendedRowValue(thetaIndex float64, nTheta int, f func(row int) float64) float64 {
	if thetaIndex < 0.5 {
		return f(0)
	}
	if thetaIndex > float64(nTheta)-0.5 {
		return f(nTheta - 1)
	}
	lo := int(thetaIndex - 0.5)
	overshoot := thetaIndex - 0.5 - float64(lo)
	return weigh(f(lo), f(lo+1), overshoot)
}
