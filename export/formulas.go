// Package export turns a merged global.State into the Result-interface
// values spec.md §6 names (impingement rate, particle/gas density, pressure,
// average speed) and a per-facet CSV report, grounded on
// _examples/original_source/src/FormulaEvaluator_MF.cpp and
// _examples/original_source/src/IO/CSVExporter.cpp. It is an external
// collaborator of the particle loop, not part of it: every function here
// reads a global.State snapshot and a geometry.Model, never a worker buffer.
package export

import (
	"github.com/vactrace-sim/vactrace/config"
	"github.com/vactrace-sim/vactrace/counters"
	"github.com/vactrace-sim/vactrace/geometry"
	"github.com/vactrace-sim/vactrace/global"
)

// Avogadro's number and the mbar/Pa scale factor CSVExporter.cpp bakes into
// its pressure and density formulas, carried exactly per SPEC_FULL.md §5's
// "MAGIC_CORRECTION_FACTOR-style dCoef" note.
const (
	avogadro      = 6.022e23
	cm2ToM2       = 1e4
	mbarPascalCoef = 0.0100
)

// EffectiveArea doubles a facet's area for 2-sided facets, matching
// CSVExporter.cpp's GetArea: a 2-sided facet is struck from both faces, so
// its exposed area for flux formulas is twice its geometric area.
func EffectiveArea(f *geometry.FacetData) float64 {
	if f.Is2Sided {
		return 2 * f.Area
	}
	return f.Area
}

// MoleculesPerTP converts one desorbed test particle into a real molecule
// count for momentIndex, matching CSVExporter.cpp's GetMoleculesPerTP: it
// takes global.State.TimeCorrection (the model's final outgassing rate for
// the steady-state moment 0, the total desorbed molecule count divided by
// the window width for a user moment) and divides it once by how many test
// particles actually desorbed this run, since every recorded count is in
// units of "per test particle".
func MoleculesPerTP(state *global.State, momentIndex int) float64 {
	desorbed := state.DesorbedCount(momentIndex)
	if desorbed == 0 {
		return 0
	}
	return state.TimeCorrection(momentIndex) / desorbed
}

// DensityCorrection implements CSVExporter.cpp's density_correction: a
// fudge factor that compensates for the fact that a 1-sided facet's
// "density" texture only ever sees particles approaching from one side,
// while a fully-absorbing facet's reflected population is by definition
// zero. It falls back to 1 (no correction) whenever there isn't enough
// signal yet (no hits and no desorptions, or no absorptions and no
// desorptions) to divide safely.
func DensityCorrection(g counters.GlobalCounters) float64 {
	if g.Hits == 0 && g.Desorbed == 0 {
		return 1
	}
	if g.AbsEquiv == 0 && g.Desorbed == 0 {
		return 1
	}
	return 1 - (g.AbsEquiv+float64(g.Desorbed))/(g.HitEquiv+float64(g.Desorbed))/2
}

// ImpingementRate is the molecules/s/cm^2 striking the facet (variable Z in
// FormulaEvaluator_MF.cpp).
func ImpingementRate(g counters.GlobalCounters, f *geometry.FacetData, moleculesPerTP float64) float64 {
	area := EffectiveArea(f)
	if area <= 0 {
		return 0
	}
	return g.HitEquiv / area * (cm2ToM2 * moleculesPerTP)
}

// Density1P is the particle number density in molecules/m^3 at the facet
// (variable DEN), correcting for single-sided sampling via densityCorr.
func Density1P(g counters.GlobalCounters, f *geometry.FacetData, moleculesPerTP, densityCorr float64) float64 {
	area := EffectiveArea(f)
	if area <= 0 {
		return 0
	}
	return densityCorr * g.Sum1PerVOrt / area * (cm2ToM2 * moleculesPerTP)
}

// DensityKgP converts Density1P into a mass density in kg/m^3, given the gas
// molar mass in g/mol.
func DensityKgP(g counters.GlobalCounters, f *geometry.FacetData, moleculesPerTP, densityCorr, gasMassGPerMol float64) float64 {
	return Density1P(g, f, moleculesPerTP, densityCorr) * gasMassGPerMol / 1000 / avogadro
}

// Pressure is the facet's surface pressure in mbar (variable P).
func Pressure(g counters.GlobalCounters, f *geometry.FacetData, moleculesPerTP, gasMassGPerMol float64) float64 {
	area := EffectiveArea(f)
	if area <= 0 {
		return 0
	}
	massKg := gasMassGPerMol / 1000 / avogadro
	return g.SumVOrt * (cm2ToM2 * moleculesPerTP * massKg * mbarPascalCoef) / area
}

// AvgSpeed is the mean molecular speed at the facet in m/s (variable V).
func AvgSpeed(g counters.GlobalCounters) float64 {
	if g.Sum1PerV == 0 {
		return 0
	}
	return (g.HitEquiv + float64(g.Desorbed)) / g.Sum1PerV
}

// FacetResult is every derived Result-interface value for one facet at one
// moment, the unit export.Report rows are built from.
type FacetResult struct {
	ID                 geometry.FacetID
	ExternalID         int
	Area               float64
	Hits               uint64
	HitEquiv           float64
	Desorbed           uint64
	AbsEquiv           float64
	ImpingementRate    float64
	Density1P          float64
	DensityKgP         float64
	Pressure           float64
	AvgSpeed           float64
}

// ComputeFacetResult derives every Result-interface value for one facet from
// its merged counters at momentIndex.
func ComputeFacetResult(model *geometry.Model, state *global.State, gas config.GlobalParams, id geometry.FacetID, momentIndex int) FacetResult {
	f := model.Facet(id)
	g := state.FacetGlobals(momentIndex, id)
	moleculesPerTP := MoleculesPerTP(state, momentIndex)
	corr := DensityCorrection(g)

	return FacetResult{
		ID:              id,
		ExternalID:      f.ExternalID,
		Area:            EffectiveArea(f),
		Hits:            g.Hits,
		HitEquiv:        g.HitEquiv,
		Desorbed:        g.Desorbed,
		AbsEquiv:        g.AbsEquiv,
		ImpingementRate: ImpingementRate(g, f, moleculesPerTP),
		Density1P:       Density1P(g, f, moleculesPerTP, corr),
		DensityKgP:      DensityKgP(g, f, moleculesPerTP, corr, gas.GasMass),
		Pressure:        Pressure(g, f, moleculesPerTP, gas.GasMass),
		AvgSpeed:        AvgSpeed(g),
	}
}
