package orchestration

import (
	"fmt"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

type playbackUnit struct {
	start    time.Duration
	duration time.Duration
	handle   audio.PlaybackHandle
}

// playbackScheduler lays fragments back to back on the output clock. It is
// not safe for concurrent use; the session loop owns it.
type playbackScheduler struct {
	output    audio.Output
	nextStart time.Duration
	active    map[*playbackUnit]struct{}

	// onUnitEnded is handed every unit whose playback finished or was
	// stopped. It runs on whatever goroutine the output reports from and is
	// expected to route the unit back to unitEnded.
	onUnitEnded func(*playbackUnit)
}

func newPlaybackScheduler(output audio.Output, onUnitEnded func(*playbackUnit)) *playbackScheduler {
	if onUnitEnded == nil {
		onUnitEnded = func(*playbackUnit) {}
	}
	return &playbackScheduler{
		output:      output,
		active:      map[*playbackUnit]struct{}{},
		onUnitEnded: onUnitEnded,
	}
}

// schedule starts buf where the previous fragment ends, or at the current
// output time if the timeline has fallen behind the clock.
func (s *playbackScheduler) schedule(buf audio.Buffer) (*playbackUnit, error) {
	if buf.Len() == 0 {
		return nil, fmt.Errorf("refusing to schedule an empty buffer")
	}

	s.nextStart = max(s.nextStart, s.output.CurrentTime())

	unit := &playbackUnit{start: s.nextStart, duration: buf.Duration()}
	handle, err := s.output.Schedule(buf, unit.start, func() { s.onUnitEnded(unit) })
	if err != nil {
		return nil, fmt.Errorf("failed to schedule playback: %w", err)
	}
	unit.handle = handle

	s.active[unit] = struct{}{}
	s.nextStart += unit.duration
	return unit, nil
}

func (s *playbackScheduler) unitEnded(unit *playbackUnit) {
	delete(s.active, unit)
}

// interrupt stops everything that is scheduled and restarts the timeline.
// It returns the number of units that were stopped.
func (s *playbackScheduler) interrupt() int {
	stopped := len(s.active)
	for unit := range s.active {
		if unit.handle != nil {
			unit.handle.Stop()
		}
	}
	clear(s.active)
	s.nextStart = 0
	return stopped
}

func (s *playbackScheduler) activeUnits() int { return len(s.active) }
