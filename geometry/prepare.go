package geometry

import (
	"log/slog"
	"strconv"

	"github.com/vactrace-sim/vactrace/tables"
)

// Prepare finalizes the model for simulation (spec.md §4.1): computes
// latest_moment, validates parameter references, builds the velocity CDF
// and integrated-desorption tables each facet needs, enforces link-facet
// invariants (B5), and totals the steady-state outgassing.
func (m *Model) Prepare() error {
	m.LatestMoment = m.computeLatestMoment()

	for _, id := range m.order {
		f := m.Facet(id)

		if f.IsLink() {
			// B5: link facets always stop the ray (opacity 1) so handleHit can
			// hand the particle over, and never stick (sticking 0), enforced
			// here rather than merely validated.
			f.Opacity = ParamRef{ParamID: -1, Constant: 1}
			f.Sticking = ParamRef{ParamID: -1, Constant: 0}
		}

		if f.Area <= 0 {
			return &PreparationError{Kind: ZeroArea, Facet: id, Detail: "facet area is zero"}
		}

		for _, ref := range []struct {
			name string
			r    ParamRef
		}{{"opacity", f.Opacity}, {"sticking", f.Sticking}, {"outgassing", f.Outgassing}} {
			if !ref.r.IsConstant() {
				if _, ok := m.Params[ref.r.ParamID]; !ok {
					return &PreparationError{Kind: InvalidParameterId, Facet: id, Detail: ref.name + " references unknown parameter " + strconv.Itoa(ref.r.ParamID)}
				}
			}
		}

		if f.DesorbType == DesorbAnglemap {
			if f.Anglemap.Record {
				return &PreparationError{Kind: AngleMapConflict, Facet: id, Detail: "facet both records and uses an angle map"}
			}
			if !f.Anglemap.HasRecorded {
				return &PreparationError{Kind: NoRecordedAngleMap, Facet: id, Detail: "anglemap desorption without a recorded angle map"}
			}
		}

		if f.Temperature > 0 {
			f.CDFID = m.getOrBuildCDF(f.Temperature)
		} else {
			f.CDFID = -1
		}

		if !f.Outgassing.IsConstant() && f.DesorbType != DesorbNone {
			f.IDID = m.getOrBuildID(f.Outgassing.ParamID, f.Temperature)
		} else {
			f.IDID = -1
		}
	}

	m.TotalDesorbedMolecules, m.FinalOutgassingRate = m.calcTotalOutgassing()

	m.prepared = true
	slog.Info("model prepared",
		"facets", len(m.order),
		"latest_moment", m.LatestMoment,
		"total_desorbed_molecules", m.TotalDesorbedMolecules,
		"final_outgassing_rate", m.FinalOutgassingRate,
	)
	return nil
}

func (m *Model) computeLatestMoment() float64 {
	if len(m.Global.Moments) == 0 {
		if m.Global.LatestMoment <= 0 {
			// A zero window would make every steady-state source total zero,
			// so a steady-state-only run uses a tiny positive window instead.
			const minLatestMoment = 1e-10
			return minLatestMoment
		}
		return m.Global.LatestMoment
	}
	var max float64
	for _, mm := range m.Global.Moments {
		upper := mm.Center + mm.Width/2
		if upper > max {
			max = upper
		}
	}
	return max
}

func (m *Model) getOrBuildCDF(temperature float64) int {
	if existing, ok := m.cdfByTemp[temperature]; ok {
		return existing.ID
	}
	id := m.nextCDFID
	m.nextCDFID++
	cdf := tables.BuildVelocityCDF(id, temperature, m.Global.GasMass, tables.DefaultCDFBins)
	m.cdfByTemp[temperature] = cdf
	m.cdfByID[id] = cdf
	return id
}

func (m *Model) getOrBuildID(paramID int, temperature float64) int {
	key := idKey{paramID: paramID, temp: temperature}
	if existing, ok := m.idByKey[key]; ok {
		return existing.ID
	}
	id := m.nextIDID
	m.nextIDID++
	curve := m.Params[paramID]
	table := tables.BuildIntegratedDesorption(id, curve, m.LatestMoment, temperature)
	m.idByKey[key] = table
	m.idByID[id] = table
	return id
}

// calcTotalOutgassing implements _examples/original_source's
// CalcTotalOutgassing: two distinct accumulators, not one value scaled by
// time (see DESIGN.md's "§4.1 total_outgassing()" entry).
func (m *Model) calcTotalOutgassing() (totalDesorbedMolecules, finalOutgassingRate float64) {
	for _, id := range m.order {
		td, fr := m.FacetOutgassingTotals(m.Facet(id))
		totalDesorbedMolecules += td
		finalOutgassingRate += fr
	}
	return totalDesorbedMolecules, finalOutgassingRate
}

// FacetOutgassingTotals returns one facet's contribution to
// TotalDesorbedMolecules and FinalOutgassingRate, using whichever of the
// three source-parameterization cases applies (spec.md §4.1
// total_outgassing; see DESIGN.md for why these are two numbers, not one).
// StartFromSource calls this again per facet to find which one a draw
// landed in, rather than caching per-facet totals redundantly.
func (m *Model) FacetOutgassingTotals(f *FacetData) (totalDesorbedMolecules, finalOutgassingRate float64) {
	if f.DesorbType == DesorbNone {
		return 0, 0
	}
	denom := tables.Boltzmann * f.Temperature
	if denom <= 0 {
		return 0, 0
	}

	switch {
	case f.OutgassingMap != nil:
		for _, rate := range f.OutgassingMap.Cell {
			totalDesorbedMolecules += m.LatestMoment * rate / denom
			finalOutgassingRate += rate / denom
		}
	case f.Outgassing.IsConstant():
		totalDesorbedMolecules = m.LatestMoment * f.Outgassing.Constant / denom
		finalOutgassingRate = f.Outgassing.Constant / denom
	default:
		if table := m.idByID[f.IDID]; table != nil {
			_, cum := table.Back()
			totalDesorbedMolecules = cum
		}
		if curve := m.Params[f.Outgassing.ParamID]; curve != nil {
			finalRate := curve.Eval(m.LatestMoment) * tables.MbarLPerSecToPaM3PerSec
			finalOutgassingRate = finalRate / denom
		}
	}
	return totalDesorbedMolecules, finalOutgassingRate
}
