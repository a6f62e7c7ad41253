package export

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/vactrace-sim/vactrace/config"
	"github.com/vactrace-sim/vactrace/geometry"
	"github.com/vactrace-sim/vactrace/global"
)

// Row is one facet's line of a CSV detail report, column order and labels
// matching CSVExporter.cpp's tableDetail (F_ID through F_EQUIVABS).
type Row struct {
	ID          int     `csv:"#"`
	Sticking    float64 `csv:"Sticking"`
	Opacity     float64 `csv:"Opacity"`
	Structure   string  `csv:"Structure"`
	Link        int     `csv:"Link"`
	Desorption  string  `csv:"Desorption"`
	Reflection  string  `csv:"Reflection"`
	TwoSided    string  `csv:"2 Sided"`
	Vertices    int     `csv:"Vertex"`
	Area        string  `csv:"Area"`
	Temperature float64 `csv:"Temperature (K)"`
	Profile     string  `csv:"Profile"`
	Impingement float64 `csv:"Imping.rate"`
	Density1P   float64 `csv:"Density [1/m3]"`
	DensityKgP  float64 `csv:"Density [kg/m3]"`
	Pressure    float64 `csv:"Pressure [mbar]"`
	AvgSpeed    float64 `csv:"Av.mol.speed [m/s]"`
	MCHits      uint64  `csv:"MC Hits"`
	EquivHits   float64 `csv:"Equiv.hits"`
	Desorbed    uint64  `csv:"Des."`
	EquivAbs    float64 `csv:"Equiv.abs."`
}

var desorptionName = [...]string{"None", "Uniform", "Cosine", "Cosine^"}
var profileName = [...]string{"None", "Pressure (u)", "Pressure (v)", "Angular", "Speed distr.", "Ort. velocity", "Tan. velocity"}
var yesNo = [...]string{"No", "Yes"}

func yn(b bool) string {
	if b {
		return yesNo[1]
	}
	return yesNo[0]
}

// structureLabel matches CSVExporter.cpp's F_STRUCTURE: -1 means every
// structure, everything else is a 1-based index.
func structureLabel(superIdx int) string {
	if superIdx < 0 {
		return "All"
	}
	return fmt.Sprintf("%d", superIdx+1)
}

func desorptionLabel(f *geometry.FacetData) string {
	if f.DesorbType == geometry.DesorbCosineN {
		return fmt.Sprintf("%s%g", desorptionName[geometry.DesorbCosineN], f.DesorbExponent)
	}
	if f.DesorbType == geometry.DesorbAnglemap {
		return "Recorded angle map"
	}
	return desorptionName[f.DesorbType]
}

// reflectionLabel matches CSVExporter.cpp's F_REFLECTION: "%g diff. %g spec.
// %g cos^%g", where the cos^N share is whatever fraction isn't diffuse or
// specular.
func reflectionLabel(r geometry.ReflectionLaw) string {
	cosN := 1 - r.Diffuse - r.Specular
	return fmt.Sprintf("%g diff. %g spec. %g cos^%g", r.Diffuse, r.Specular, cosN, r.Exponent)
}

func areaLabel(f *geometry.FacetData) string {
	if f.Is2Sided {
		return fmt.Sprintf("2*%g", f.Area)
	}
	return fmt.Sprintf("%g", f.Area)
}

func profileLabel(p geometry.ProfileKind) string {
	if int(p) < 0 || int(p) >= len(profileName) {
		return profileName[0]
	}
	return profileName[p]
}

// BuildReport computes one Row per facet at momentIndex, in the model's
// build (ExternalID) order, matching CSVExporter.cpp's per-facet iteration.
func BuildReport(model *geometry.Model, state *global.State, gas config.GlobalParams, momentIndex int) []Row {
	ids := model.Facets()
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		f := model.Facet(id)
		res := ComputeFacetResult(model, state, gas, id, momentIndex)
		rows = append(rows, Row{
			ID:          f.ExternalID,
			Sticking:    f.Sticking.Constant,
			Opacity:     f.Opacity.Constant,
			Structure:   structureLabel(f.SuperIdx),
			Link:        f.SuperDest,
			Desorption:  desorptionLabel(f),
			Reflection:  reflectionLabel(f.Reflection),
			TwoSided:    yn(f.Is2Sided),
			Vertices:    len(f.Vertices),
			Area:        areaLabel(f),
			Temperature: f.Temperature,
			Profile:     profileLabel(f.Profile),
			Impingement: res.ImpingementRate,
			Density1P:   res.Density1P,
			DensityKgP:  res.DensityKgP,
			Pressure:    res.Pressure,
			AvgSpeed:    res.AvgSpeed,
			MCHits:      res.Hits,
			EquivHits:   res.HitEquiv,
			Desorbed:    res.Desorbed,
			EquivAbs:    res.AbsEquiv,
		})
	}
	return rows
}

// WriteCSV marshals rows to w with a header row, following the teacher's
// gocsv.Marshal convention for a one-shot (non-appending) report
// (_examples/pthm-soup/telemetry/output.go's first-write path).
func WriteCSV(w io.Writer, rows []Row) error {
	return gocsv.Marshal(rows, w)
}

// GlobalSummary is the run-wide sums CSVExporter.cpp reports alongside the
// per-facet table (SUMDES, SUMABS, SUMMCHIT).
type GlobalSummary struct {
	TotalDesorbed  uint64  `csv:"SUMDES"`
	TotalAbsEquiv  float64 `csv:"SUMABS"`
	TotalMCHits    uint64  `csv:"SUMMCHIT"`
}

// BuildGlobalSummary reads the run-wide totals at momentIndex.
func BuildGlobalSummary(state *global.State, momentIndex int) GlobalSummary {
	g := state.Globals(momentIndex)
	return GlobalSummary{
		TotalDesorbed: g.Desorbed,
		TotalAbsEquiv: g.AbsEquiv,
		TotalMCHits:   g.Hits,
	}
}
