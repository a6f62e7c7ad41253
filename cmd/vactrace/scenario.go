package main

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/config"
	"github.com/vactrace-sim/vactrace/geometry"
)

// buildClosedCube builds spec.md S1: a 2m cube with every wall opaque and
// fully sticking, plus one small interior facet that desorbs at a constant
// rate and never itself intercepts a ray (opacity 0), so that every desorbed
// particle's first and only hit is a cube wall.
func buildClosedCube(outgassingQ float64) *geometry.Model {
	model := geometry.NewModel(config.GlobalParams{
		GasMass:          28,
		UseMaxwell:       true,
		CalcConstantFlow: true,
	})

	const half = 1.0
	corners := [8]r3.Vec{
		{X: -half, Y: -half, Z: -half}, // 0
		{X: half, Y: -half, Z: -half},  // 1
		{X: half, Y: half, Z: -half},   // 2
		{X: -half, Y: half, Z: -half},  // 3
		{X: -half, Y: -half, Z: half},  // 4
		{X: half, Y: -half, Z: half},   // 5
		{X: half, Y: half, Z: half},    // 6
		{X: -half, Y: half, Z: half},   // 7
	}
	v := make([]int, len(corners))
	for i, c := range corners {
		v[i] = model.AddVertex(c)
	}

	wallLoops := [6][4]int{
		{v[0], v[1], v[2], v[3]}, // -Z
		{v[4], v[7], v[6], v[5]}, // +Z
		{v[0], v[4], v[5], v[1]}, // -Y
		{v[3], v[2], v[6], v[7]}, // +Y
		{v[0], v[3], v[7], v[4]}, // -X
		{v[1], v[5], v[6], v[2]}, // +X
	}
	for _, loop := range wallLoops {
		model.AddFacet(geometry.FacetData{
			Vertices:    loop[:],
			Is2Sided:    true,
			Temperature: 300,
			Opacity:     geometry.ParamRef{ParamID: -1, Constant: 1},
			Sticking:    geometry.ParamRef{ParamID: -1, Constant: 1},
			DesorbType:  geometry.DesorbNone,
			SuperIdx:    0,
		})
	}

	const srcHalf = 0.05
	src := [4]r3.Vec{
		{X: -srcHalf, Y: -srcHalf, Z: 0},
		{X: srcHalf, Y: -srcHalf, Z: 0},
		{X: srcHalf, Y: srcHalf, Z: 0},
		{X: -srcHalf, Y: srcHalf, Z: 0},
	}
	srcIdx := make([]int, len(src))
	for i, c := range src {
		srcIdx[i] = model.AddVertex(c)
	}
	model.AddFacet(geometry.FacetData{
		Vertices:    srcIdx,
		Is2Sided:    true,
		Temperature: 300,
		Opacity:     geometry.ParamRef{ParamID: -1, Constant: 0},
		Sticking:    geometry.ParamRef{ParamID: -1, Constant: 0},
		DesorbType:  geometry.DesorbCosine,
		Outgassing:  geometry.ParamRef{ParamID: -1, Constant: outgassingQ},
		SuperIdx:    0,
	})

	return model
}
