// Package controller wraps one worker's particle loop with the explicit
// start/stop/step/merge lifecycle spec.md §6's Controller interface names,
// generalizing the teacher's fire-and-forget goroutine-per-chunk pattern
// (_examples/pthm-soup/game/parallel.go) into a long-running per-worker
// handle a caller drives interactively rather than waits on once.
package controller

import (
	"time"

	"github.com/vactrace-sim/vactrace/config"
	"github.com/vactrace-sim/vactrace/geometry"
	"github.com/vactrace-sim/vactrace/global"
	"github.com/vactrace-sim/vactrace/intersect"
	"github.com/vactrace-sim/vactrace/particle"
)

// Controller drives one particle.Worker against a shared global.State. It is
// not safe for concurrent use by multiple callers; one goroutine per
// Controller mirrors one worker thread in the original engine.
type Controller struct {
	worker *particle.Worker
	state  *global.State

	prepared bool
	running  bool
}

// New builds a controller for one worker, seeded deterministically from
// masterSeed and workerIndex so repeated runs reproduce bit-identical
// streams (rng.New's contract).
func New(model *geometry.Model, isect intersect.Intersector, state *global.State, otf config.OnTheFlyParams, masterSeed int64, workerIndex int) *Controller {
	return &Controller{
		worker: particle.NewWorker(model, isect, otf, masterSeed, workerIndex),
		state:  state,
	}
}

// Prepare marks the controller ready to Start. The model itself is prepared
// once, up front, by geometry.Model.Prepare before any Controller is built;
// this only records that the controller is prepared, with no further
// check, and never returns an error.
func (c *Controller) Prepare() error {
	c.prepared = true
	return nil
}

// Start allows Step to run; a controller that hasn't been prepared yet
// starts anyway, since Prepare here carries no required side effect.
func (c *Controller) Start() {
	c.running = true
}

// Stop halts further Step calls until Start is called again. In-flight
// particle state is preserved, so a later Start resumes exactly where the
// worker left off.
func (c *Controller) Stop() {
	c.running = false
}

// Step runs up to n ray segments (spec.md §5 step(n)). It returns false
// once stopped, or once the worker's desorption budget and active particle
// are both exhausted, signalling the caller to stop driving this
// controller.
func (c *Controller) Step(n int) (bool, error) {
	if !c.running {
		return false, nil
	}
	more, err := c.worker.Step(n)
	if err != nil {
		return false, err
	}
	if !more {
		c.running = false
	}
	return more, nil
}

// Merge folds this worker's private counter buffer into the shared global
// state, bounded by timeout (spec.md §4.8 merge(timeout)).
func (c *Controller) Merge(timeout time.Duration) error {
	return c.state.Merge(c.worker.Buffer, timeout)
}

// ResetCounters clears every merged counter in the shared state (spec.md §4.8
// R2). It does not touch this controller's own worker buffer, which Merge
// already reset on its last successful call.
func (c *Controller) ResetCounters() {
	c.state.ResetCounters()
}

// SnapshotStateTo copies the shared state's current counters into out,
// without merging anything new into it (spec.md §6 snapshot_state_to).
func (c *Controller) SnapshotStateTo(out *global.State) {
	c.state.SnapshotInto(out)
}
