package ray

import "sync/atomic"

// Stats holds the rolling render counters: rays rx/tx, queue depths per
// kind, rays produced/killed per kind, bytes rx, and the fraction of
// primary rays generated so far. All fields are updated from the single
// event-loop goroutine, so plain fields would do; atomics are used anyway
// because RENDER_STATS encoding may run concurrently with the next tick's
// updates once dispatched to the network write path.
type Stats struct {
	RaysRx atomic.Uint64
	RaysTx atomic.Uint64

	BytesRx atomic.Uint64

	Produced [numKinds]atomic.Uint64
	Killed   [numKinds]atomic.Uint64

	PrimaryGenerated atomic.Uint64
	PrimaryTotal     atomic.Uint64
}

// NewStats returns a zeroed Stats, with PrimaryTotal set so
// PrimaryProgress is meaningful before any primaries are generated.
func NewStats(primaryTotal uint64) *Stats {
	s := &Stats{}
	s.PrimaryTotal.Store(primaryTotal)
	return s
}

// PrimaryProgress returns the fraction of primary rays generated so far,
// in [0,1]. Returns 0 if PrimaryTotal is 0 (nothing to render).
func (s *Stats) PrimaryProgress() float64 {
	total := s.PrimaryTotal.Load()
	if total == 0 {
		return 0
	}
	return float64(s.PrimaryGenerated.Load()) / float64(total)
}

// Apply folds one job's WorkResults counters into the rolling stats.
func (s *Stats) Apply(res *WorkResults) {
	for k := 0; k < numKinds; k++ {
		s.Produced[k].Add(uint64(res.Produced[k]))
		s.Killed[k].Add(uint64(res.Killed[k]))
	}
}

// Snapshot is the point-in-time value shipped in a RENDER_STATS message.
type Snapshot struct {
	RaysRx, RaysTx   uint64
	BytesRx          uint64
	Produced, Killed [numKinds]uint64
	QueueDepth       [numKinds]int
	PrimaryProgress  float64
	WorkersTouched   map[uint32]int
}

// Snapshot captures the current counters plus the queue's pending depths.
func (s *Stats) Snapshot(q *Queue, touched map[uint32]int) Snapshot {
	snap := Snapshot{
		RaysRx:          s.RaysRx.Load(),
		RaysTx:          s.RaysTx.Load(),
		BytesRx:         s.BytesRx.Load(),
		QueueDepth:      q.Depths(),
		PrimaryProgress: s.PrimaryProgress(),
		WorkersTouched:  touched,
	}
	for k := 0; k < numKinds; k++ {
		snap.Produced[k] = s.Produced[k].Load()
		snap.Killed[k] = s.Killed[k].Load()
	}
	return snap
}
