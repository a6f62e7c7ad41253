package geometry

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/param"
)

func TestIsLink(t *testing.T) {
	plain := &FacetData{SuperDest: 0}
	link := &FacetData{SuperDest: 3}
	if plain.IsLink() {
		t.Error("SuperDest=0 should not be a link")
	}
	if !link.IsLink() {
		t.Error("SuperDest!=0 should be a link")
	}
}

func TestParamRefConstant(t *testing.T) {
	r := ParamRef{ParamID: -1, Constant: 2.5}
	if !r.IsConstant() {
		t.Error("expected IsConstant true for ParamID -1")
	}
	if got := r.Eval(nil, 100); got != 2.5 {
		t.Errorf("Eval() = %v, want 2.5", got)
	}
}

func TestParamRefCurveLookup(t *testing.T) {
	c := param.NewCurve(5, []float64{0, 1}, []float64{10, 20}, false, false, false, false)
	params := map[int]*param.Curve{5: c}
	r := ParamRef{ParamID: 5}
	if r.IsConstant() {
		t.Error("expected IsConstant false for a curve reference")
	}
	if got := r.Eval(params, 0.5); math.Abs(got-15) > 1e-9 {
		t.Errorf("Eval(0.5) = %v, want 15", got)
	}
}

func TestParamRefMissingCurveReturnsZero(t *testing.T) {
	r := ParamRef{ParamID: 99}
	if got := r.Eval(map[int]*param.Curve{}, 1); got != 0 {
		t.Errorf("Eval() with missing curve = %v, want 0", got)
	}
}

func TestTextureGridCellIndex(t *testing.T) {
	g := TextureGrid{Width: 4, Height: 2}
	if idx, ok := g.CellIndex(0.1, 0.1); !ok || idx != 0 {
		t.Errorf("CellIndex(0.1,0.1) = (%d,%v), want (0,true)", idx, ok)
	}
	if idx, ok := g.CellIndex(0.99, 0.6); !ok || idx != 7 {
		t.Errorf("CellIndex(0.99,0.6) = (%d,%v), want (7,true)", idx, ok)
	}
	if _, ok := g.CellIndex(1.0, 0.5); ok {
		t.Error("CellIndex should reject u==1")
	}
	if _, ok := g.CellIndex(-0.1, 0.5); ok {
		t.Error("CellIndex should reject negative coordinates")
	}
}

func TestTextureGridCellCount(t *testing.T) {
	g := TextureGrid{Width: 3, Height: 5}
	if g.cellCount() != 15 {
		t.Errorf("cellCount() = %d, want 15", g.cellCount())
	}
}

func TestFacetTextureUVNormalizesToBBox(t *testing.T) {
	f := &FacetData{BBoxMin: Point2D{U: 0, V: 0}, BBoxMax: Point2D{U: 2, V: 4}}
	u, v := f.TextureUV(Point2D{U: 1, V: 1})
	if math.Abs(u-0.5) > 1e-9 || math.Abs(v-0.25) > 1e-9 {
		t.Errorf("TextureUV = (%v,%v), want (0.5,0.25)", u, v)
	}
}

func TestFacetTextureUVDegenerateBBoxReturnsZero(t *testing.T) {
	f := &FacetData{BBoxMin: Point2D{}, BBoxMax: Point2D{}}
	u, v := f.TextureUV(Point2D{U: 5, V: 5})
	if u != 0 || v != 0 {
		t.Errorf("TextureUV on degenerate bbox = (%v,%v), want (0,0)", u, v)
	}
}

func TestFacetWorldMapsLocalBackToOrigin(t *testing.T) {
	f := &FacetData{Basis: Basis{O: r3.Vec{X: 1, Y: 2, Z: 3}, U: r3.Vec{X: 1}, V: r3.Vec{Y: 1}, N: r3.Vec{Z: 1}}}
	got := f.World(Point2D{U: 0, V: 0})
	want := r3.Vec{X: 1, Y: 2, Z: 3}
	if got != want {
		t.Errorf("World(0,0) = %+v, want %+v", got, want)
	}
	got2 := f.World(Point2D{U: 2, V: 3})
	want2 := r3.Vec{X: 3, Y: 5, Z: 3}
	if got2 != want2 {
		t.Errorf("World(2,3) = %+v, want %+v", got2, want2)
	}
}

func TestFacetContainsLocalInsideAndOutside(t *testing.T) {
	f := &FacetData{Local: []Point2D{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
	if !f.ContainsLocal(Point2D{U: 0.5, V: 0.5}) {
		t.Error("expected center point to be inside the unit square")
	}
	if f.ContainsLocal(Point2D{U: 2, V: 2}) {
		t.Error("expected a far point to be outside the unit square")
	}
}

func TestAnglemapParamsToMapParams(t *testing.T) {
	p := AnglemapParams{PhiWidth: 8, ThetaLimit: 1.2, ThetaLowerRes: 3, ThetaHigherRes: 4}
	mp := p.ToMapParams()
	if mp.PhiWidth != 8 || mp.ThetaLimit != 1.2 || mp.ThetaLowerRes != 3 || mp.ThetaHigherRes != 4 {
		t.Errorf("ToMapParams() = %+v, want fields copied from %+v", mp, p)
	}
}
