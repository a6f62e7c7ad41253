package tables

import (
	"sort"

	"github.com/vactrace-sim/vactrace/param"
)

// MbarLPerSecToPaM3PerSec converts an outgassing rate curve sampled in
// mbar*l/s (the input unit) to Pa*m3/s (SI), matching
// _examples/original_source's `0.100` literal.
const MbarLPerSecToPaM3PerSec = 0.100

const mbarLPerSecToPaM3PerSec = MbarLPerSecToPaM3PerSec

// trapezoidSubdivisions is the per-segment subdivision count used when
// integrating a parameter curve whose endpoints differ (spec.md §4.1).
const trapezoidSubdivisions = 20

// IntegratedDesorption is the cumulative-molecules-over-time table built
// from a time-dependent outgassing parameter, per spec.md §3 and §4.1
// build_id.
type IntegratedDesorption struct {
	ID   int
	Time []float64 // x, ascending, Time[0] == 0
	Cum  []float64 // cumulative molecules desorbed by Time[i]
}

// BuildIntegratedDesorption integrates curve (in mbar*l/s) from 0 to
// latestMoment, converting the running Pa*m3 integral to molecules via
// division by k_B*temperature at each knot. Knots are the curve's own
// sample points clipped to [0, latestMoment]; segments between knots are
// integrated exactly when the endpoints have equal y (constant segment) or
// via trapezoidSubdivisions-piece trapezoid subdivision otherwise.
func BuildIntegratedDesorption(id int, curve *param.Curve, latestMoment, temperature float64) *IntegratedDesorption {
	knots := knotTimes(curve, latestMoment)

	times := make([]float64, len(knots))
	cum := make([]float64, len(knots))
	var runningPaM3 float64
	denom := Boltzmann * temperature

	for i, t := range knots {
		if i > 0 {
			t0, t1 := knots[i-1], t
			y0 := curve.Eval(t0) * mbarLPerSecToPaM3PerSec
			y1 := curve.Eval(t1) * mbarLPerSecToPaM3PerSec
			if y0 == y1 {
				runningPaM3 += y0 * (t1 - t0)
			} else {
				runningPaM3 += integrateSegment(curve, t0, t1, trapezoidSubdivisions)
			}
		}
		times[i] = t
		if denom > 0 {
			cum[i] = runningPaM3 / denom
		}
	}
	return &IntegratedDesorption{ID: id, Time: times, Cum: cum}
}

// integrateSegment trapezoid-integrates curve*mbarLPerSecToPaM3PerSec over
// [t0, t1] using n subdivisions.
func integrateSegment(curve *param.Curve, t0, t1 float64, n int) float64 {
	step := (t1 - t0) / float64(n)
	var sum float64
	prev := curve.Eval(t0) * mbarLPerSecToPaM3PerSec
	for i := 1; i <= n; i++ {
		t := t0 + float64(i)*step
		cur := curve.Eval(t) * mbarLPerSecToPaM3PerSec
		sum += 0.5 * (prev + cur) * step
		prev = cur
	}
	return sum
}

// knotTimes returns the sorted, deduplicated set of {0, curve.X within
// (0, latestMoment), latestMoment}.
func knotTimes(curve *param.Curve, latestMoment float64) []float64 {
	set := map[float64]struct{}{0: {}, latestMoment: {}}
	for _, x := range curve.X {
		if x > 0 && x < latestMoment {
			set[x] = struct{}{}
		}
	}
	out := make([]float64, 0, len(set))
	for x := range set {
		out = append(out, x)
	}
	sort.Float64s(out)
	return out
}

// Invert returns the time at which m molecules have cumulatively desorbed,
// by piecewise-linear interpolation; extrapolation is allowed at the tails
// (spec.md §4.2 step 2).
func (t *IntegratedDesorption) Invert(m float64) float64 {
	n := len(t.Cum)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return t.Time[0]
	}
	i := sort.Search(n, func(i int) bool { return t.Cum[i] >= m })
	if i <= 0 {
		i = 1
	}
	if i >= n {
		i = n - 1
	}
	c0, c1 := t.Cum[i-1], t.Cum[i]
	t0, t1 := t.Time[i-1], t.Time[i]
	if c1 == c0 {
		return t0
	}
	frac := (m - c0) / (c1 - c0)
	return t0 + frac*(t1-t0)
}

// Back returns the table's final (time, cumulative-molecules) point.
func (t *IntegratedDesorption) Back() (time, cum float64) {
	n := len(t.Time)
	if n == 0 {
		return 0, 0
	}
	return t.Time[n-1], t.Cum[n-1]
}
