package particle

import (
	"log/slog"

	"github.com/vactrace-sim/vactrace/config"
	"github.com/vactrace-sim/vactrace/counters"
	"github.com/vactrace-sim/vactrace/geometry"
	"github.com/vactrace-sim/vactrace/intersect"
	"github.com/vactrace-sim/vactrace/rng"
)

// SourceSelectionError reports that total outgassing was positive but no
// facet's interval contained the draw — per spec.md §7, this should be
// unreachable and signals model corruption.
type SourceSelectionError struct {
	Draw, Total float64
}

func (e *SourceSelectionError) Error() string {
	return "particle: source selection failed despite positive total outgassing (model corrupted)"
}

// Worker runs one simulation thread's particle loop against a private
// counter buffer and RNG stream (spec.md §5).
type Worker struct {
	Model       *geometry.Model
	Intersector intersect.Intersector
	Buffer      *counters.Buffer
	RNG         *rng.Source
	OnTheFly    config.OnTheFlyParams

	active            *State
	remainingDesorbed uint64
	externalIdx       map[int]geometry.FacetID // lazily built by resolveTeleportTarget
	log               *slog.Logger
}

// NewWorker builds a worker ready to Step, with its desorption budget set
// from otf.DesorptionLimit.
func NewWorker(model *geometry.Model, isect intersect.Intersector, otf config.OnTheFlyParams, seed int64, workerIndex int) *Worker {
	return &Worker{
		Model:             model,
		Intersector:       isect,
		Buffer:            counters.NewBuffer(model),
		RNG:               rng.New(seed, workerIndex),
		OnTheFly:          otf,
		remainingDesorbed: otf.DesorptionLimit,
		log:               slog.Default().With("worker", workerIndex),
	}
}

// momentIndices returns every moment index a sample at time t attributes to
// (spec.md §3 Moments, P7): index 0 whenever calc_constant_flow is set, plus
// any user moment window containing t.
func (w *Worker) momentIndices(t float64) []int {
	var out []int
	if w.Model.Global.CalcConstantFlow {
		out = append(out, 0)
	}
	for i, m := range w.Model.Global.Moments {
		if t >= m.Center-m.Width/2 && t <= m.Center+m.Width/2 {
			out = append(out, i+1)
		}
	}
	return out
}
