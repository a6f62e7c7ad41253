// Command vactrace is a headless CLI that runs the closed-cube scenario
// (spec.md S1) to completion across N worker goroutines with periodic
// merges, following the teacher's flag-parsed entry point
// (_examples/pthm-soup/main.go) and worker-goroutine/sync.WaitGroup fan-out
// (_examples/pthm-soup/game/parallel.go).
package main

import (
	"flag"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vactrace-sim/vactrace/config"
	"github.com/vactrace-sim/vactrace/controller"
	"github.com/vactrace-sim/vactrace/export"
	"github.com/vactrace-sim/vactrace/geometry"
	"github.com/vactrace-sim/vactrace/global"
	"github.com/vactrace-sim/vactrace/intersect"
)

const stepChunk = 256

func main() {
	workers := flag.Int("workers", 4, "number of worker goroutines")
	desorptions := flag.Uint64("desorptions", 1_000_000, "stop once this many test particles have desorbed")
	timeLimit := flag.Float64("time-limit", 0, "stored as OnTheFlyParams.TimeLimit; no worker reads it, so it stops nothing")
	outgassing := flag.Float64("outgassing", 1e-4, "source facet outgassing rate, Pa*m^3/s")
	seed := flag.Int64("seed", 42, "master RNG seed")
	mergeTimeout := flag.Duration("merge-timeout", 50*time.Millisecond, "per-merge lock acquisition timeout")
	csvPath := flag.String("csv", "", "write a per-facet CSV report to this path (empty = skip)")
	flag.Parse()

	perWorkerBudget := *desorptions / uint64(*workers)
	if perWorkerBudget == 0 {
		perWorkerBudget = 1
	}

	model := buildClosedCube(*outgassing)
	if err := model.Prepare(); err != nil {
		slog.Error("prepare failed", "err", err)
		os.Exit(1)
	}

	grid := intersect.BuildModelGrid(model)
	state := global.NewState(model)
	otf := config.OnTheFlyParams{
		NbProcess:       *workers,
		DesorptionLimit: perWorkerBudget,
		TimeLimit:       *timeLimit,
	}

	controllers := make([]*controller.Controller, *workers)
	for i := range controllers {
		c := controller.New(model, grid, state, otf, *seed, i)
		if err := c.Prepare(); err != nil {
			slog.Error("controller prepare failed", "worker", i, "err", err)
			os.Exit(1)
		}
		c.Start()
		controllers[i] = c
	}

	slog.Info("run starting", "workers", *workers, "desorption_budget", *desorptions)
	start := time.Now()

	var wg sync.WaitGroup
	for i, c := range controllers {
		wg.Add(1)
		go runWorker(&wg, i, c, *mergeTimeout)
	}
	wg.Wait()

	slog.Info("run complete", "elapsed", time.Since(start))

	totals := state.Globals(0)
	slog.Info("steady-state totals",
		"desorbed", totals.Desorbed,
		"hit_equiv", totals.HitEquiv,
		"abs_equiv", totals.AbsEquiv,
		"leaks", totals.LeaksTotal,
	)

	if *csvPath != "" {
		if err := writeReport(model, state, model.Global, *csvPath); err != nil {
			slog.Error("csv export failed", "err", err)
			os.Exit(1)
		}
	}
}

// writeReport renders the steady-state (moment 0) per-facet report to path.
func writeReport(model *geometry.Model, state *global.State, gas config.GlobalParams, path string) error {
	rows := export.BuildReport(model, state, gas, 0)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.WriteCSV(f, rows)
}

// runWorker drives one controller's particle loop in fixed-size chunks,
// merging into the shared state after every chunk so no worker accumulates
// an unbounded private backlog, then merges once more after its last step.
func runWorker(wg *sync.WaitGroup, id int, c *controller.Controller, mergeTimeout time.Duration) {
	defer wg.Done()
	for {
		more, err := c.Step(stepChunk)
		if err != nil {
			slog.Error("step failed", "worker", id, "err", err)
			return
		}
		if err := c.Merge(mergeTimeout); err != nil {
			slog.Warn("merge timed out, continuing", "worker", id, "err", err)
		}
		if !more {
			return
		}
	}
}
