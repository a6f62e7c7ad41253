// Package particle implements the core Monte Carlo state machine: starting
// a molecule from a source facet, tracing it through successive ray/facet
// intersections, classifying each hit, and updating counters, per spec.md
// §4.2–§4.4, §4.6.
package particle

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vactrace-sim/vactrace/geometry"
	"github.com/vactrace-sim/vactrace/tables"
)

// State is one live particle (spec.md §3 Particle state). It is owned
// exclusively by the worker that created it; nothing in this package shares
// particle state across goroutines.
type State struct {
	Pos   r3.Vec
	Dir   r3.Vec
	Speed float64

	Time    float64
	GenTime float64

	StructIdx int

	HasLastHit bool
	LastHit    geometry.FacetID
	LastLocal  geometry.Point2D

	HasTeleportFrom bool
	TeleportFrom    geometry.FacetID

	DecayTime float64 // +Inf when decay is disabled

	OriRatio float64

	Bounces  uint64
	Distance float64

	LastMoment int // monotonic cache, spec.md §3
}

// NewState initializes a just-desorbed particle's bookkeeping fields that
// don't depend on the sampled position/direction/velocity.
func NewState() *State {
	return &State{OriRatio: 1, DecayTime: math.Inf(1), LastMoment: 0}
}

// SojournDelay returns the extra residence time added when a bounce trips
// sojourn physisorption (spec.md §4.4): `-ln(r) / (A * f)` with
// `A = exp(-E / (R * T))`.
func SojournDelay(s geometry.SojournParams, temperature, r float64) float64 {
	if !s.Enabled || s.FrequencyHz <= 0 {
		return 0
	}
	a := math.Exp(-s.BindingEnergyJ / (tables.GasConstant * temperature))
	if a <= 0 {
		return 0
	}
	return -math.Log(r) / (a * s.FrequencyHz)
}
