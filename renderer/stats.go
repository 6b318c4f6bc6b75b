package renderer

import "github.com/flexrender/flexrender/protocol"

// pauseStreakLimit is the number of consecutive RENDER_STATS intervals a
// worker may report queue growth without a matching kill before the
// renderer issues RENDER_PAUSE to it.
const pauseStreakLimit = 10

// DefaultIdleIntervals is the "-i intervals" CLI flag's default: how many
// consecutive stats reports a worker must show full primary progress and
// an empty queue before the renderer considers it finished and sends it
// RENDER_STOP.
const DefaultIdleIntervals = 4

// workerStats is the renderer's view of one worker's rolling counters,
// derived entirely from its RENDER_STATS reports.
type workerStats struct {
	last        protocol.RenderStatsPayload
	haveLast    bool
	pauseStreak int
	idleStreak  int
	paused      bool
}

// observe folds in a new RENDER_STATS report and returns (shouldPause,
// shouldResume, idle): the three decisions the renderer's event loop acts
// on.
func (s *workerStats) observe(p protocol.RenderStatsPayload, idleIntervals int) (shouldPause, shouldResume, idle bool) {
	depth := p.QueueDepth[0] + p.QueueDepth[1] + p.QueueDepth[2]
	killed := p.Killed[0] + p.Killed[1] + p.Killed[2]

	if s.haveLast {
		lastDepth := s.last.QueueDepth[0] + s.last.QueueDepth[1] + s.last.QueueDepth[2]
		lastKilled := s.last.Killed[0] + s.last.Killed[1] + s.last.Killed[2]
		if depth > lastDepth && killed == lastKilled {
			s.pauseStreak++
		} else {
			s.pauseStreak = 0
		}
	}

	if !s.paused && s.pauseStreak >= pauseStreakLimit {
		s.paused = true
		shouldPause = true
	} else if s.paused && s.pauseStreak == 0 {
		s.paused = false
		shouldResume = true
	}

	if p.PrimaryProgress >= 1 && depth == 0 {
		s.idleStreak++
	} else {
		s.idleStreak = 0
	}
	idle = s.idleStreak >= idleIntervals

	s.last, s.haveLast = p, true
	return shouldPause, shouldResume, idle
}
