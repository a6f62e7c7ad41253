package geometry

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/anglemap"
	"github.com/vactrace-sim/vactrace/config"
	"github.com/vactrace-sim/vactrace/param"
	"github.com/vactrace-sim/vactrace/tables"
)

// Superstructure is an ordered set of facets sharing an acceleration
// structure (spec.md §3).
type Superstructure struct {
	Facets []FacetID
}

// PreparationError reports a model defect found by Prepare (spec.md §7).
type PreparationError struct {
	Kind   PreparationErrorKind
	Facet  FacetID
	Detail string
}

type PreparationErrorKind int

const (
	InvalidParameterId PreparationErrorKind = iota
	AngleMapConflict
	NoRecordedAngleMap
	InconsistentStructureLink
	ZeroArea
)

func (e *PreparationError) Error() string {
	return fmt.Sprintf("prepare: facet %d: %s", e.Facet, e.Detail)
}

// Model is the immutable-after-Prepare particle-transport geometry: an arena
// of facets addressed by stable FacetID handles (Design Notes §9), plus the
// parameter curves, CDF/ID tables, and angle maps Prepare builds from them.
type Model struct {
	world    *ecs.World
	facetMap *ecs.Map1[FacetData]
	volMap   *ecs.Map1[volatileState]

	Vertices        []Vertex
	Superstructures []Superstructure
	order           []FacetID // build order == ExternalID order

	Params map[int]*param.Curve
	Global config.GlobalParams

	// GlobalHistograms configures the global (non-per-facet) hit-kind
	// histograms (spec.md §4.7).
	GlobalHistograms HistogramParams

	angleMaps map[FacetID]*anglemap.Map

	prepared bool

	LatestMoment           float64
	TotalDesorbedMolecules float64
	FinalOutgassingRate    float64

	cdfByTemp map[float64]*tables.VelocityCDF
	cdfByID   map[int]*tables.VelocityCDF
	idByKey   map[idKey]*tables.IntegratedDesorption
	idByID    map[int]*tables.IntegratedDesorption
	nextCDFID int
	nextIDID  int
}

type idKey struct {
	paramID int
	temp    float64
}

// NewModel creates an empty model with the given global physical
// parameters.
func NewModel(global config.GlobalParams) *Model {
	world := ecs.NewWorld()
	return &Model{
		world:     world,
		facetMap:  ecs.NewMap1[FacetData](world),
		volMap:    ecs.NewMap1[volatileState](world),
		Params:    make(map[int]*param.Curve),
		Global:    global,
		angleMaps: make(map[FacetID]*anglemap.Map),
		cdfByTemp: make(map[float64]*tables.VelocityCDF),
		cdfByID:   make(map[int]*tables.VelocityCDF),
		idByKey:   make(map[idKey]*tables.IntegratedDesorption),
		idByID:    make(map[int]*tables.IntegratedDesorption),
	}
}

// AddVertex appends a vertex and returns its index.
func (m *Model) AddVertex(v Vertex) int {
	m.Vertices = append(m.Vertices, v)
	return len(m.Vertices) - 1
}

// AddParam registers a piecewise-linear parameter curve, addressable from
// facets via ParamRef.ParamID.
func (m *Model) AddParam(c *param.Curve) { m.Params[c.ID] = c }

// AddFacet creates a facet from its immutable data, computing the plane
// basis and area from its vertex loop, and appends it to the given
// superstructure (-1 = every structure, handled at intersect time).
func (m *Model) AddFacet(data FacetData) FacetID {
	data.ExternalID = len(m.order) + 1
	data.Basis, data.Area, data.Local, data.BBoxMin, data.BBoxMax = m.computeBasis(data.Vertices)
	if data.Anglemap.PhiWidth == 0 {
		data.Anglemap.PhiWidth = 1
	}
	populateTextureIncrements(&data)

	entity := m.facetMap.NewEntity(&data)
	id := FacetID(entity)
	m.order = append(m.order, id)

	if data.IsVolatile {
		m.volMap.Add(entity, &volatileState{Ready: true})
	}

	if data.SuperIdx >= 0 {
		for len(m.Superstructures) <= data.SuperIdx {
			m.Superstructures = append(m.Superstructures, Superstructure{})
		}
		m.Superstructures[data.SuperIdx].Facets = append(m.Superstructures[data.SuperIdx].Facets, id)
	}

	if data.Anglemap.Record || data.Anglemap.HasRecorded {
		m.angleMaps[id] = anglemap.New(data.Anglemap.ToMapParams())
	}

	return id
}

// populateTextureIncrements fills a facet's per-cell reciprocal area and
// autoscale-eligibility flags from its bounding box when the caller left
// them unset. Cells are treated as uniform rectangles (no sub-polygon
// clipping against the facet's edges), so every cell is the same size and
// "large enough": _examples/original_source's textureCellIncrements comes
// from clipping each cell against the facet polygon, which this model
// doesn't reproduce (see DESIGN.md).
func populateTextureIncrements(data *FacetData) {
	n := data.Texture.cellCount()
	if n <= 0 || data.Texture.Inc != nil {
		return
	}
	du := (data.BBoxMax.U - data.BBoxMin.U) / float64(data.Texture.Width)
	dv := (data.BBoxMax.V - data.BBoxMin.V) / float64(data.Texture.Height)
	cellArea := du * dv

	data.Texture.Inc = make([]float64, n)
	data.Texture.LargeEnough = make([]bool, n)
	for i := range data.Texture.Inc {
		if cellArea > 0 {
			data.Texture.Inc[i] = 1 / cellArea
		}
		data.Texture.LargeEnough[i] = true
	}
}

// computeBasis derives (O, U, V, N) and the polygon area from an ordered
// vertex loop, matching the teacher's plane-fit style (Newell's method for
// the normal, first edge for U).
func (m *Model) computeBasis(idx []int) (Basis, float64, []Point2D, Point2D, Point2D) {
	if len(idx) < 3 {
		return Basis{}, 0, nil, Point2D{}, Point2D{}
	}
	pts := make([]r3.Vec, len(idx))
	for i, vi := range idx {
		pts[i] = m.Vertices[vi]
	}

	var normal r3.Vec
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		normal.X += (a.Y - b.Y) * (a.Z + b.Z)
		normal.Y += (a.Z - b.Z) * (a.X + b.X)
		normal.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	n := r3.Norm(normal)
	if n > 0 {
		normal = r3.Scale(1/n, normal)
	}

	o := pts[0]
	u := r3.Sub(pts[1], pts[0])
	ul := r3.Norm(u)
	if ul > 0 {
		u = r3.Scale(1/ul, u)
	}
	v := r3.Cross(normal, u)

	// Shoelace area projected onto the plane basis.
	local := make([]Point2D, len(pts))
	bboxMin := Point2D{U: math.Inf(1), V: math.Inf(1)}
	bboxMax := Point2D{U: math.Inf(-1), V: math.Inf(-1)}
	for i, p := range pts {
		lu, lv := r3.Dot(r3.Sub(p, o), u), r3.Dot(r3.Sub(p, o), v)
		local[i] = Point2D{U: lu, V: lv}
		bboxMin.U, bboxMax.U = math.Min(bboxMin.U, lu), math.Max(bboxMax.U, lu)
		bboxMin.V, bboxMax.V = math.Min(bboxMin.V, lv), math.Max(bboxMax.V, lv)
	}

	var area float64
	for i := range local {
		p0 := local[i]
		p1 := local[(i+1)%len(local)]
		area += p0.U*p1.V - p1.U*p0.V
	}
	area = math.Abs(area) / 2

	return Basis{O: o, U: u, V: v, N: normal}, area, local, bboxMin, bboxMax
}

// Facet returns the immutable data for id.
func (m *Model) Facet(id FacetID) *FacetData {
	return m.facetMap.Get(ecs.Entity(id))
}

// Facets returns every facet id in build order.
func (m *Model) Facets() []FacetID { return m.order }

// AngleMap returns the per-facet recorded angle map storage, or nil if the
// facet neither records nor uses one.
func (m *Model) AngleMap(id FacetID) *anglemap.Map { return m.angleMaps[id] }

// VolatileReady reports a volatile facet's one-shot absorption flag (Design
// Notes §9 per-run side table); ConsumeVolatile is what clears it.
func (m *Model) VolatileReady(id FacetID) bool {
	vs := m.volMap.Get(ecs.Entity(id))
	if vs == nil {
		return false
	}
	return vs.Ready
}

// ConsumeVolatile flips a volatile facet's ready flag off.
func (m *Model) ConsumeVolatile(id FacetID) {
	if vs := m.volMap.Get(ecs.Entity(id)); vs != nil {
		vs.Ready = false
	}
}

// ResetVolatile restores every volatile facet to ready, for a fresh run.
func (m *Model) ResetVolatile() {
	for _, id := range m.order {
		if vs := m.volMap.Get(ecs.Entity(id)); vs != nil {
			vs.Ready = true
		}
	}
}

// VelocityCDF returns the built table for a facet's CDFID.
func (m *Model) VelocityCDF(id int) *tables.VelocityCDF { return m.cdfByID[id] }

// IntegratedDesorption returns the built table for a facet's IDID.
func (m *Model) IntegratedDesorption(id int) *tables.IntegratedDesorption { return m.idByID[id] }
