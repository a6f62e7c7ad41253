// Package sampler draws directions and speeds for desorption and bounce
// events (spec.md §4.2 step 5, §4.4, §4.6), converting the facet-local polar
// angles (θ from the normal, φ around it) to world-space vectors via the
// facet's plane basis.
package sampler

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/geometry"
)

// ToWorld converts local polar angles (θ from N, φ around N measured from U)
// into a unit world-space direction using the facet's basis.
func ToWorld(basis geometry.Basis, theta, phi float64) r3.Vec {
	st := math.Sin(theta)
	dir := r3.Add(
		r3.Add(r3.Scale(st*math.Cos(phi), basis.U), r3.Scale(st*math.Sin(phi), basis.V)),
		r3.Scale(math.Cos(theta), basis.N),
	)
	return r3.Unit(dir)
}

// ToLocal recovers (θ, φ) for a world-space unit direction in the facet's
// basis, the inverse of ToWorld.
func ToLocal(basis geometry.Basis, dir r3.Vec) (theta, phi float64) {
	cosTheta := r3.Dot(dir, basis.N)
	if cosTheta > 1 {
		cosTheta = 1
	} else if cosTheta < -1 {
		cosTheta = -1
	}
	theta = math.Acos(cosTheta)
	phi = math.Atan2(r3.Dot(dir, basis.V), r3.Dot(dir, basis.U))
	return theta, phi
}

// DesorbAngles draws (θ, φ) for a new particle leaving a source facet by the
// facet's desorption law (spec.md §4.2 step 5). Anglemap sampling is not
// handled here; callers use the facet's anglemap.Map directly since that
// needs two uniforms bound to the map, not this package's RNG-free API.
func DesorbAngles(kind geometry.DesorbKind, exponent, r1, r2 float64) (theta, phi float64) {
	phi = 2 * math.Pi * r2
	switch kind {
	case geometry.DesorbUniform:
		theta = math.Acos(r1)
	case geometry.DesorbCosineN:
		theta = math.Acos(math.Pow(r1, 1/(exponent+1)))
	default: // DesorbCosine and any other desorbing kind default to the cosine law
		theta = math.Acos(math.Sqrt(r1))
	}
	return theta, phi
}

// AnglemapEmission converts a recorded angle map's sampled incidence angles
// into an emission direction, per spec.md §4.5's post-condition: the map
// stores incident-to-normal angle, so emission uses θ' = π − θ.
func AnglemapEmission(theta, phi float64) (emitTheta, emitPhi float64) {
	return math.Pi - theta, phi
}

// ReflectionBranch is which of the three reflection laws a bounce drew.
type ReflectionBranch int

const (
	ReflectDiffuse ReflectionBranch = iota
	ReflectSpecular
	ReflectCosineN
)

// ChooseReflection draws which branch of the facet's reflection law applies,
// per spec.md §4.4's three-way split.
func ChooseReflection(law geometry.ReflectionLaw, r float64) ReflectionBranch {
	if r < law.Diffuse {
		return ReflectDiffuse
	}
	if r < law.Diffuse+law.Specular {
		return ReflectSpecular
	}
	return ReflectCosineN
}

// BounceAngles draws the outgoing (θ, φ) for a bounce given the incident
// local angles and the chosen branch (spec.md §4.4).
func BounceAngles(branch ReflectionBranch, law geometry.ReflectionLaw, incidentTheta, incidentPhi, r1, r2 float64) (theta, phi float64) {
	switch branch {
	case ReflectSpecular:
		return incidentTheta, incidentPhi
	case ReflectCosineN:
		return math.Acos(math.Pow(r1, 1/(law.Exponent+1))), 2 * math.Pi * r2
	default:
		return math.Acos(math.Sqrt(r1)), 2 * math.Pi * r2
	}
}
