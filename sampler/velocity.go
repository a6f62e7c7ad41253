package sampler

import (
	"math"

	"github.com/vactrace-sim/vactrace/tables"
)

// accommodationFullRedraw is the accommodation-coefficient threshold above
// which UpdateVelocity discards the old speed entirely (spec.md §4.6).
const accommodationFullRedraw = 0.9999

// DrawSpeed samples a speed at temperature/gas mass, either by inverting the
// facet's velocity CDF (Maxwell enabled) or via the deterministic
// non-Maxwell shortcut (spec.md §4.2 step 3).
func DrawSpeed(cdf *tables.VelocityCDF, useMaxwell bool, temperature, gasMass, u float64) float64 {
	if useMaxwell && cdf != nil {
		return cdf.Invert(u)
	}
	return tables.NonMaxwellSpeed(temperature, gasMass)
}

// UpdateVelocity implements spec.md §4.6: at full accommodation the old
// speed is discarded; otherwise the new and old kinetic energies are
// combined by the accommodation coefficient.
func UpdateVelocity(oldSpeed, accommodation float64, drawNew func() float64) float64 {
	newSpeed := drawNew()
	if accommodation >= accommodationFullRedraw {
		return newSpeed
	}
	return math.Sqrt(oldSpeed*oldSpeed + (newSpeed*newSpeed-oldSpeed*oldSpeed)*accommodation)
}
