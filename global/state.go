// Package global holds the simulation-wide merged result every worker folds
// its private counter buffer into, and the timed-mutex transaction that
// guards it (spec.md §4.8 merge(timeout)).
package global

import (
	"errors"
	"sync"
	"time"

	"github.com/vactrace-sim/vactrace/counters"
	"github.com/vactrace-sim/vactrace/geometry"
)

// ErrMergeTimeout is returned by Merge when it could not acquire the state
// lock within the given timeout, matching the original engine's
// timed_mutex-based merge that skips a round rather than blocking a worker
// indefinitely.
var ErrMergeTimeout = errors.New("global: merge timed out acquiring state lock")

// State is the cross-worker accumulated simulation result: one
// counters.MomentCounters per moment index, the UI hit/leak ring caches, and
// the model's shared angle maps.
type State struct {
	mu sync.Mutex

	model *geometry.Model

	Moments       []counters.MomentCounters
	HitCache      []counters.HitCacheEntry
	LeakCache     []counters.LeakCacheEntry
	TextureLimits TextureLimits
}

// NewState allocates a zeroed merged result sized from model.
func NewState(model *geometry.Model) *State {
	s := &State{
		model:         model,
		Moments:       make([]counters.MomentCounters, len(model.Global.Moments)+1),
		TextureLimits: newTextureLimits(),
	}
	for i := range s.Moments {
		s.Moments[i] = counters.NewMomentCounters(model)
	}
	return s
}

// Merge folds one worker's buffer into the shared state, resetting the
// buffer on success so the worker can keep accumulating into it
// immediately. It tries to acquire the lock for up to timeout before giving
// up, mirroring the original engine's bounded timed_mutex wait so one slow
// merge never blocks every worker's next step call.
func (s *State) Merge(buf *counters.Buffer, timeout time.Duration) error {
	if !s.tryLock(timeout) {
		return ErrMergeTimeout
	}
	defer s.mu.Unlock()

	for i := range s.Moments {
		if i < len(buf.Moments) {
			s.Moments[i].Merge(buf.Moments[i])
		}
	}
	for id, amc := range buf.AngleMaps {
		if m := s.model.AngleMap(id); m != nil {
			m.Merge(amc.Counts)
		}
	}

	s.mergeHitCache(buf.HitCache)
	s.LeakCache = appendRing(s.LeakCache, buf.LeakCache, counters.LeakCacheSize)
	s.TextureLimits = s.computeTextureLimits()

	buf.Reset(s.model)
	return nil
}

// mergeHitCache appends a worker's hit events, then appends one HitLast
// marker so UI replay can tell where this merge round's events end,
// matching _examples/original_source's UpdateMCHits HIT_LAST behavior.
func (s *State) mergeHitCache(events []counters.HitCacheEntry) {
	if len(events) == 0 {
		return
	}
	s.HitCache = appendRing(s.HitCache, events, counters.HitCacheSize)
	last := counters.HitCacheEntry{Pos: events[len(events)-1].Pos, Kind: counters.HitLast}
	s.HitCache = appendRing(s.HitCache, []counters.HitCacheEntry{last}, counters.HitCacheSize)
}

func appendRing[T any](dst, src []T, limit int) []T {
	dst = append(dst, src...)
	if len(dst) > limit {
		dst = dst[len(dst)-limit:]
	}
	return dst
}

// tryLock polls TryLock for up to timeout, matching the bounded-wait
// semantics of a C++ std::timed_mutex without pulling in a new dependency
// for it.
func (s *State) tryLock(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if s.mu.TryLock() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// ResetCounters zeroes every merged counter (not the hit/leak caches, which
// are UI history, and not the model's angle maps, which persist across a
// counter reset per spec.md §4.8 R2).
func (s *State) ResetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Moments {
		s.Moments[i] = counters.NewMomentCounters(s.model)
	}
	s.TextureLimits = newTextureLimits()
}

// SnapshotInto deep-copies s's current counters into dst, safe to call while
// other workers continue merging into s (spec.md §6 snapshot_state_to).
func (s *State) SnapshotInto(dst *State) {
	s.mu.Lock()
	moments := make([]counters.MomentCounters, len(s.Moments))
	for i, mc := range s.Moments {
		moments[i] = mc.Clone()
	}
	hitCache := append([]counters.HitCacheEntry(nil), s.HitCache...)
	leakCache := append([]counters.LeakCacheEntry(nil), s.LeakCache...)
	limits := s.TextureLimits
	model := s.model
	s.mu.Unlock()

	dst.mu.Lock()
	defer dst.mu.Unlock()
	dst.model = model
	dst.Moments = moments
	dst.HitCache = hitCache
	dst.LeakCache = leakCache
	dst.TextureLimits = limits
}

// TimeCorrection returns the per-moment scale factor spec.md's texture
// autoscale uses to turn a cell's accumulated equivalent count into a rate:
// FinalOutgassingRate for the steady-state moment (index 0), and
// TotalDesorbedMolecules/width for a user moment window (index m), per
// DESIGN.md's "§4.1 total_outgassing()" entry.
func (s *State) TimeCorrection(momentIndex int) float64 {
	if momentIndex == 0 {
		return s.model.FinalOutgassingRate
	}
	i := momentIndex - 1
	if i < 0 || i >= len(s.model.Global.Moments) {
		return 0
	}
	width := s.model.Global.Moments[i].Width
	if width <= 0 {
		return 0
	}
	return s.model.TotalDesorbedMolecules / width
}

// DesorbedCount returns how many test particles have desorbed so far at
// momentIndex, the divisor export.MoleculesPerTP needs to turn
// TimeCorrection's rate-or-total into a per-test-particle molecule count
// (CSVExporter.cpp's GetMoleculesPerTP divides by nbDesorbed).
func (s *State) DesorbedCount(momentIndex int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if momentIndex < 0 || momentIndex >= len(s.Moments) {
		return 0
	}
	return float64(s.Moments[momentIndex].Global.Desorbed)
}

// Globals returns a copy of the run-wide global counters at momentIndex,
// safe to call while workers continue merging into s.
func (s *State) Globals(momentIndex int) counters.GlobalCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	if momentIndex < 0 || momentIndex >= len(s.Moments) {
		return counters.GlobalCounters{}
	}
	return s.Moments[momentIndex].Global
}

// FacetGlobals returns a copy of one facet's global counters at momentIndex,
// safe to call while workers continue merging into s.
func (s *State) FacetGlobals(momentIndex int, id geometry.FacetID) counters.GlobalCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	if momentIndex < 0 || momentIndex >= len(s.Moments) {
		return counters.GlobalCounters{}
	}
	fc, ok := s.Moments[momentIndex].Facets[id]
	if !ok {
		return counters.GlobalCounters{}
	}
	return fc.GlobalCounters
}
