// Package param implements the piecewise-linear (x, y) curves used for
// time-dependent facet properties (outgassing, opacity, sticking), per
// spec.md §6's Model interface.
package param

import (
	"math"

	"gonum.org/v1/gonum/interp"
)

// Curve is a piecewise-linear function of a parameter id, with optional
// logarithmic interpolation/extrapolation on either axis.
type Curve struct {
	ID   int
	X, Y []float64

	LogXInterp  bool
	LogYInterp  bool
	LogXExtrap  bool
	LogYExtrap  bool

	fit    interp.PiecewiseLinear
	fitted bool
}

// NewCurve builds a Curve from raw (x, y) samples, sorted ascending by x.
func NewCurve(id int, x, y []float64, logXInterp, logYInterp, logXExtrap, logYExtrap bool) *Curve {
	return &Curve{
		ID:         id,
		X:          x,
		Y:          y,
		LogXInterp: logXInterp,
		LogYInterp: logYInterp,
		LogXExtrap: logXExtrap,
		LogYExtrap: logYExtrap,
	}
}

func (c *Curve) ensureFit() {
	if c.fitted {
		return
	}
	xs, ys := c.X, c.Y
	if c.LogXInterp || c.LogYInterp {
		xs = make([]float64, len(c.X))
		ys = make([]float64, len(c.Y))
		for i := range c.X {
			xs[i] = c.X[i]
			ys[i] = c.Y[i]
			if c.LogXInterp {
				xs[i] = math.Log(math.Max(xs[i], minPositive))
			}
			if c.LogYInterp {
				ys[i] = math.Log(math.Max(ys[i], minPositive))
			}
		}
	}
	// PiecewiseLinear.Fit panics on non-strictly-increasing x; curves are
	// built from sorted, deduplicated samples by the geometry loader.
	c.fit.Fit(xs, ys)
	c.fitted = true
}

const minPositive = 1e-300

// Eval returns the curve's value at x, extrapolating via the first/last
// segment's slope (in log or linear space per the Extrap flags) outside the
// sampled domain.
func (c *Curve) Eval(x float64) float64 {
	if len(c.X) == 0 {
		return 0
	}
	if len(c.X) == 1 {
		return c.Y[0]
	}
	c.ensureFit()

	lo, hi := c.X[0], c.X[len(c.X)-1]
	if x < lo {
		return c.extrapolate(x, 0, 1)
	}
	if x > hi {
		n := len(c.X)
		return c.extrapolate(x, n-2, n-1)
	}

	xv := x
	if c.LogXInterp {
		xv = math.Log(math.Max(x, minPositive))
	}
	y := c.fit.Predict(xv)
	if c.LogYInterp {
		y = math.Exp(y)
	}
	return y
}

// extrapolate linearly (or log-linearly) continues the segment [i, j].
func (c *Curve) extrapolate(x float64, i, j int) float64 {
	x0, x1 := c.X[i], c.X[j]
	y0, y1 := c.Y[i], c.Y[j]

	xa, xb, xq := x0, x1, x
	if c.LogXExtrap {
		xa, xb, xq = math.Log(math.Max(x0, minPositive)), math.Log(math.Max(x1, minPositive)), math.Log(math.Max(x, minPositive))
	}
	ya, yb := y0, y1
	if c.LogYExtrap {
		ya, yb = math.Log(math.Max(y0, minPositive)), math.Log(math.Max(y1, minPositive))
	}

	if xb == xa {
		return y1
	}
	t := (xq - xa) / (xb - xa)
	y := ya + t*(yb-ya)
	if c.LogYExtrap {
		y = math.Exp(y)
	}
	return y
}

// Integrate computes ∫ from x0 to x1 by subdividing into n trapezoids,
// matching spec.md §4.1's build_id algorithm (tables.BuildIntegratedDesorption
// applies the same rule with its own integrator and does not call this
// method). Between two points with equal y the
// exact rectangle area is used instead of trapezoid subdivision.
func (c *Curve) Integrate(x0, x1 float64, n int) float64 {
	if n < 1 {
		n = 1
	}
	if x1 <= x0 {
		return 0
	}
	step := (x1 - x0) / float64(n)
	var sum float64
	prev := c.Eval(x0)
	for i := 1; i <= n; i++ {
		x := x0 + float64(i)*step
		cur := c.Eval(x)
		if cur == prev {
			sum += cur * step
		} else {
			sum += 0.5 * (prev + cur) * step
		}
		prev = cur
	}
	return sum
}
