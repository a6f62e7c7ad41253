// Package geometry is the immutable particle-transport model: vertices,
// facets, superstructures and the precompute pass that turns a loaded model
// into a form the particle loop can consume without further allocation
// (spec.md §3, §4.1).
package geometry

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/anglemap"
	"github.com/vactrace-sim/vactrace/param"
)

// Vertex is a point in world space.
type Vertex = r3.Vec

// FacetID is a stable handle to a facet, backed by an ECS entity
// (Design Notes §9: "model as an arena of facets with stable FacetId
// handles").
type FacetID ecs.Entity

// DesorbKind selects a source facet's emission law (spec.md §3).
type DesorbKind int

const (
	DesorbNone DesorbKind = iota
	DesorbUniform
	DesorbCosine
	DesorbCosineN
	DesorbAnglemap
)

// ProfileKind selects what a facet's 1D profile records.
type ProfileKind int

const (
	ProfileNone ProfileKind = iota
	ProfilePressureU
	ProfilePressureV
	ProfileAngular
	ProfileSpeed
	ProfileOrthogonalSpeed
	ProfileTangentialSpeed
)

// ReflectionLaw splits a bounce into diffuse / specular / cosine^N with
// exponent N; fractions must sum to <= 1 (the remainder is implicitly
// cosine^N per spec.md §3).
type ReflectionLaw struct {
	Diffuse   float64
	Specular  float64
	CosineN   float64 // not read: the cosine^N share is always 1 - Diffuse - Specular
	Exponent  float64 // N, used when the cosine^N branch is drawn
}

// HistogramParams configures the three hit-kind histograms (spec.md §4.7):
// bounce count, cumulative distance, and lifetime, each with a fixed-width
// bin size and a final catch-all bin.
type HistogramParams struct {
	RecordBounce  bool
	BounceBinSize float64
	BounceBins    int

	RecordDistance  bool
	DistanceBinSize float64
	DistanceBins    int

	RecordTime  bool
	TimeBinSize float64
	TimeBins    int
}

// SojournParams models a facet's physisorption residence time (spec.md §3).
type SojournParams struct {
	Enabled        bool
	FrequencyHz    float64
	BindingEnergyJ float64 // per mole
}

// AnglemapParams controls whether/how a facet records or uses an angle map.
type AnglemapParams struct {
	Record        bool
	HasRecorded   bool
	PhiWidth      int
	ThetaLimit    float64
	ThetaLowerRes int
	ThetaHigherRes int
}

// ToMapParams converts a facet's angle-map configuration into the anglemap
// package's Params, for building or binning against its Map.
func (p AnglemapParams) ToMapParams() anglemap.Params {
	return anglemap.Params{
		PhiWidth:       p.PhiWidth,
		ThetaLimit:     p.ThetaLimit,
		ThetaLowerRes:  p.ThetaLowerRes,
		ThetaHigherRes: p.ThetaHigherRes,
	}
}

// TextureGrid describes a facet's 2D texture cells.
type TextureGrid struct {
	Width, Height int
	// Inc[i] is the reciprocal cell area for cell i (row-major), precomputed
	// at build time; spec.md §9(b) allows omitting iw/rw/ih/rh in favor of
	// this.
	Inc []float64
	// LargeEnough[i] gates whether cell i participates in autoscale.
	LargeEnough []bool
}

func (g TextureGrid) cellCount() int { return g.Width * g.Height }

// CellIndex returns the cell containing texture coordinates (u, v) in
// [0,1)x[0,1), and false if they fall outside.
func (g TextureGrid) CellIndex(u, v float64) (int, bool) {
	if u < 0 || u >= 1 || v < 0 || v >= 1 || g.Width == 0 || g.Height == 0 {
		return 0, false
	}
	col := int(u * float64(g.Width))
	row := int(v * float64(g.Height))
	if col >= g.Width {
		col = g.Width - 1
	}
	if row >= g.Height {
		row = g.Height - 1
	}
	return row*g.Width + col, true
}

// CountFlags selects which hit kinds a facet textures/profiles/direction-
// counts, per spec.md §3 `count_*` flags.
type CountFlags struct {
	Desorption bool
	Reflection bool
	Transparent bool
	Direction   bool
}

// ParamRef is either a constant value or a reference into the model's
// parameter table.
type ParamRef struct {
	ParamID  int // -1 or 0 (the zero value) means constant; curves are referenced by positive ids
	Constant float64
}

func (r ParamRef) IsConstant() bool { return r.ParamID <= 0 }

// Eval returns r's value at time t, looking up its curve in params when r
// is not constant.
func (r ParamRef) Eval(params map[int]*param.Curve, t float64) float64 {
	if r.IsConstant() {
		return r.Constant
	}
	c := params[r.ParamID]
	if c == nil {
		return 0
	}
	return c.Eval(t)
}

// Basis is a facet's plane geometry: origin plus unit, mutually orthogonal
// in-plane axes U, V and unit normal N.
type Basis struct {
	O, U, V, N r3.Vec
}

// Point2D is a facet-local planar coordinate (projections onto U, V).
type Point2D struct{ U, V float64 }

// FacetData is everything about a facet that never changes once Prepare has
// run (spec.md §3 Facet).
type FacetData struct {
	Vertices []int // indices into the model's vertex array, in winding order

	Basis Basis
	Area  float64
	// Local holds each Vertices[i] projected into the (U, V) plane, used by
	// the ray/polygon test and by texture-coordinate normalization.
	Local      []Point2D
	BBoxMin    Point2D
	BBoxMax    Point2D

	Is2Sided    bool
	Temperature float64

	Opacity  ParamRef
	Sticking ParamRef

	Reflection ReflectionLaw
	DesorbType DesorbKind
	DesorbExponent float64 // N for DesorbCosineN
	Outgassing ParamRef    // steady value, or time-dependent via ParamID

	IsMoving   bool
	IsVolatile bool

	SuperIdx  int // -1 = member of every structure
	SuperDest int // 0 = not a link; else destination structure index

	TeleportDest int // -1 = from-whence, 0 = off, k = facet id (1-based external id)

	Sojourn SojournParams

	Texture    TextureGrid
	Profile    ProfileKind
	Counts     CountFlags
	Anglemap   AnglemapParams
	Histograms HistogramParams

	OutgassingMap *OutgassingMap // non-nil iff this facet desorbs from a file

	// Populated by Prepare:
	CDFID int // velocity CDF id for Temperature, or -1
	IDID  int // integrated-desorption id for time-dependent Outgassing, or -1

	// ExternalID is the 1-based id referenced by TeleportDest and used for
	// deterministic iteration order / export row identity.
	ExternalID int
}

// IsLink reports whether this facet transfers particles to another
// superstructure transparently (spec.md §3, §4.4).
func (f *FacetData) IsLink() bool { return f.SuperDest != 0 }

// TextureUV normalizes a facet-local planar point to the [0,1)x[0,1) range
// TextureGrid.CellIndex expects.
func (f *FacetData) TextureUV(p Point2D) (u, v float64) {
	du := f.BBoxMax.U - f.BBoxMin.U
	dv := f.BBoxMax.V - f.BBoxMin.V
	if du <= 0 || dv <= 0 {
		return 0, 0
	}
	return (p.U - f.BBoxMin.U) / du, (p.V - f.BBoxMin.V) / dv
}

// World maps a facet-local planar point back to world space.
func (f *FacetData) World(p Point2D) r3.Vec {
	return r3.Add(f.Basis.O, r3.Add(r3.Scale(p.U, f.Basis.U), r3.Scale(p.V, f.Basis.V)))
}

// ContainsLocal reports whether a facet-local planar point lies inside the
// facet's polygon, by the standard even-odd crossing-number test.
func (f *FacetData) ContainsLocal(p Point2D) bool {
	inside := false
	n := len(f.Local)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := f.Local[i], f.Local[j]
		if (a.V > p.V) != (b.V > p.V) {
			uAtV := a.U + (p.V-a.V)/(b.V-a.V)*(b.U-a.U)
			if p.U < uAtV {
				inside = !inside
			}
		}
	}
	return inside
}

// volatileState is the mutable per-run side-state attached to volatile
// facets, kept out of the otherwise-immutable FacetData per Design Notes §9
// ("place that flag in a small per-run side table keyed by FacetId").
type volatileState struct {
	Ready bool
}
