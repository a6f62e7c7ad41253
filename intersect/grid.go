// Package intersect finds ray/facet intersections: the nearest opaque hit
// within a superstructure plus the ordered list of transparent facets
// crossed en route (spec.md §4, Design Notes "Intersection as
// collaborator").
//
// The spec deliberately leaves the acceleration structure unspecified; this
// implementation buckets facets into a uniform 3D grid per superstructure,
// generalizing the teacher's 2D toroidal SpatialGrid
// (_examples/pthm-soup/systems/spatial.go) from nearest-neighbor entity
// lookup to ray/bounding-box bucketing.
package intersect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/geometry"
)

const epsilon = 1e-9

// Hit is one candidate intersection along a ray, before opacity is
// resolved into opaque/transparent.
type Hit struct {
	Facet    geometry.FacetID
	Distance float64
	Local    geometry.Point2D
}

// StopTest decides, for one candidate facet along a ray, whether the ray
// stops there (true) or passes through transparently (false). Opacity can be
// a probability rather than a hard 0/1, so this is a caller-supplied
// closure (typically a Bernoulli draw against the facet's opacity at the
// ray's current time) rather than a static property of the facet.
type StopTest func(f *geometry.FacetData) bool

// Intersector finds the nearest opaque hit and the transparent passes that
// precede it along a ray.
type Intersector interface {
	Intersect(origin, dir r3.Vec, structIdx int, stops StopTest) (hit Hit, ok bool, transparent []Hit)
}

// aabb is an axis-aligned bounding box in world space.
type aabb struct{ min, max r3.Vec }

func facetBounds(m *geometry.Model, f *geometry.FacetData) aabb {
	box := aabb{min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}, max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}}
	for _, vi := range f.Vertices {
		p := m.Vertices[vi]
		box.min.X, box.max.X = math.Min(box.min.X, p.X), math.Max(box.max.X, p.X)
		box.min.Y, box.max.Y = math.Min(box.min.Y, p.Y), math.Max(box.max.Y, p.Y)
		box.min.Z, box.max.Z = math.Min(box.min.Z, p.Z), math.Max(box.max.Z, p.Z)
	}
	return box
}

// Grid is one uniform-cell acceleration structure, covering exactly the
// facets belonging to one superstructure (or membership-idx -1, "all").
type Grid struct {
	cellSize     float64
	origin       r3.Vec
	cols, rows, layers int
	cells        map[[3]int][]geometry.FacetID
	facetBounds  map[geometry.FacetID]aabb
}

// NewGrid buckets facets into cells sized to roughly the facet set's mean
// extent, following the teacher's "cellSize as a tuning constant" approach
// rather than a cost-model-fit BVH.
func NewGrid(model *geometry.Model, facets []geometry.FacetID) *Grid {
	g := &Grid{
		cells:       make(map[[3]int][]geometry.FacetID),
		facetBounds: make(map[geometry.FacetID]aabb),
	}
	if len(facets) == 0 {
		g.cellSize = 1
		return g
	}

	world := aabb{min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}, max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}}
	var totalExtent float64
	for _, id := range facets {
		f := model.Facet(id)
		b := facetBounds(model, f)
		g.facetBounds[id] = b
		world.min.X, world.max.X = math.Min(world.min.X, b.min.X), math.Max(world.max.X, b.max.X)
		world.min.Y, world.max.Y = math.Min(world.min.Y, b.min.Y), math.Max(world.max.Y, b.max.Y)
		world.min.Z, world.max.Z = math.Min(world.min.Z, b.min.Z), math.Max(world.max.Z, b.max.Z)
		totalExtent += math.Sqrt(f.Area)
	}
	g.origin = world.min
	g.cellSize = totalExtent / float64(len(facets))
	if g.cellSize <= 0 {
		g.cellSize = 1
	}

	g.cols = int((world.max.X-world.min.X)/g.cellSize) + 1
	g.rows = int((world.max.Y-world.min.Y)/g.cellSize) + 1
	g.layers = int((world.max.Z-world.min.Z)/g.cellSize) + 1

	for _, id := range facets {
		b := g.facetBounds[id]
		for _, c := range g.cellsOverlapping(b) {
			g.cells[c] = append(g.cells[c], id)
		}
	}
	return g
}

func (g *Grid) cellIndex(p r3.Vec) [3]int {
	return [3]int{
		int((p.X - g.origin.X) / g.cellSize),
		int((p.Y - g.origin.Y) / g.cellSize),
		int((p.Z - g.origin.Z) / g.cellSize),
	}
}

func (g *Grid) cellsOverlapping(b aabb) [][3]int {
	lo := g.cellIndex(b.min)
	hi := g.cellIndex(b.max)
	// Cells outside the grid's extent hold no facets, so the range is cut
	// to the grid; a long ray's box would otherwise span millions of cells.
	limit := [3]int{g.cols - 1, g.rows - 1, g.layers - 1}
	for a := range lo {
		lo[a] = max(lo[a], 0)
		hi[a] = min(hi[a], limit[a])
	}
	var out [][3]int
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				out = append(out, [3]int{x, y, z})
			}
		}
	}
	return out
}

// candidates returns the set of facets whose bounding box the ray's own
// bounding box (origin to a capped far distance) might cross, deduplicated.
func (g *Grid) candidates(origin, dir r3.Vec) []geometry.FacetID {
	const farDistance = 1e5
	far := r3.Add(origin, r3.Scale(farDistance, dir))
	box := aabb{
		min: r3.Vec{X: math.Min(origin.X, far.X), Y: math.Min(origin.Y, far.Y), Z: math.Min(origin.Z, far.Z)},
		max: r3.Vec{X: math.Max(origin.X, far.X), Y: math.Max(origin.Y, far.Y), Z: math.Max(origin.Z, far.Z)},
	}
	seen := make(map[geometry.FacetID]bool)
	var out []geometry.FacetID
	for _, c := range g.cellsOverlapping(box) {
		for _, id := range g.cells[c] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// ModelGrid holds one Grid per superstructure plus the universal ("all",
// super_idx == -1) facets, implementing Intersector.
type ModelGrid struct {
	model      *geometry.Model
	perStruct  []*Grid
	universal  *Grid
}

// BuildModelGrid indexes every facet of model into per-structure grids.
func BuildModelGrid(model *geometry.Model) *ModelGrid {
	mg := &ModelGrid{model: model}
	var all []geometry.FacetID
	for _, id := range model.Facets() {
		if model.Facet(id).SuperIdx < 0 {
			all = append(all, id)
		}
	}
	mg.universal = NewGrid(model, all)
	for _, s := range model.Superstructures {
		mg.perStruct = append(mg.perStruct, NewGrid(model, s.Facets))
	}
	return mg
}

// Intersect implements Intersector: nearest opaque hit plus ordered
// transparent passes strictly before it.
func (mg *ModelGrid) Intersect(origin, dir r3.Vec, structIdx int, stops StopTest) (Hit, bool, []Hit) {
	var ids []geometry.FacetID
	ids = append(ids, mg.universal.candidates(origin, dir)...)
	if structIdx >= 0 && structIdx < len(mg.perStruct) {
		ids = append(ids, mg.perStruct[structIdx].candidates(origin, dir)...)
	}

	var hits []Hit
	for _, id := range ids {
		f := mg.model.Facet(id)
		h, ok := rayFacet(mg.model, id, f, origin, dir)
		if ok {
			hits = append(hits, h)
		}
	}
	if len(hits) == 0 {
		return Hit{}, false, nil
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	var transparent []Hit
	for _, h := range hits {
		f := mg.model.Facet(h.Facet)
		if stops(f) {
			return h, true, transparent
		}
		transparent = append(transparent, h)
	}
	return Hit{}, false, transparent
}

// rayFacet intersects a ray with one planar polygon facet: plane
// intersection followed by a local-coordinate point-in-polygon test.
func rayFacet(m *geometry.Model, id geometry.FacetID, f *geometry.FacetData, origin, dir r3.Vec) (Hit, bool) {
	denom := r3.Dot(dir, f.Basis.N)
	if math.Abs(denom) < epsilon {
		return Hit{}, false
	}
	t := r3.Dot(r3.Sub(f.Basis.O, origin), f.Basis.N) / denom
	if t <= epsilon {
		return Hit{}, false
	}
	p := r3.Add(origin, r3.Scale(t, dir))
	local := geometry.Point2D{
		U: r3.Dot(r3.Sub(p, f.Basis.O), f.Basis.U),
		V: r3.Dot(r3.Sub(p, f.Basis.O), f.Basis.V),
	}
	if !f.ContainsLocal(local) {
		return Hit{}, false
	}
	return Hit{Facet: id, Distance: t, Local: local}, true
}
