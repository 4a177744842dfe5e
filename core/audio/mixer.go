package audio

import (
	"fmt"
	"sync"
	"time"
)

// Probe observes a signal without consuming it.
type Probe interface {
	Write(samples []float32)
}

// Mixer is a sample-accurate output timeline. Its clock is the number of
// frames rendered so far, so it only advances while a device pulls audio.
//
// Buffers are scheduled at absolute positions on that clock and mixed into
// the device output as the clock passes them.
type Mixer struct {
	mu sync.Mutex

	sampleRate int
	rendered   int64
	voices     []*Voice
	probe      Probe
}

func NewMixer(sampleRate int) *Mixer {
	return &Mixer{sampleRate: sampleRate}
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

func (m *Mixer) CurrentTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return FramesToDuration(m.rendered, m.sampleRate)
}

func (m *Mixer) AttachProbe(probe Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probe = probe
}

// Schedule queues buf to start playing at the given clock time. A start time
// in the past plays from the next rendered frame. onEnded is called once,
// off the audio thread, when the buffer finishes or is stopped.
func (m *Mixer) Schedule(buf Buffer, at time.Duration, onEnded func()) (*Voice, error) {
	if buf.SampleRate != m.sampleRate {
		return nil, fmt.Errorf("buffer sample rate %d does not match output sample rate %d", buf.SampleRate, m.sampleRate)
	}
	if onEnded == nil {
		onEnded = func() {}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := DurationToFrames(at, m.sampleRate)
	if start < m.rendered {
		start = m.rendered
	}
	voice := &Voice{
		mixer:   m,
		samples: buf.Samples,
		start:   start,
		onEnded: onEnded,
	}
	m.voices = append(m.voices, voice)
	return voice, nil
}

// ActiveVoices returns the number of scheduled voices that have not ended.
func (m *Mixer) ActiveVoices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Render mixes every voice overlapping the next len(out) frames into out and
// advances the clock. It is meant to be called from the device callback.
func (m *Mixer) Render(out []float32) {
	clear(out)

	m.mu.Lock()
	windowStart := m.rendered
	windowEnd := windowStart + int64(len(out))

	var ended []func()
	remaining := m.voices[:0]
	for _, voice := range m.voices {
		if voice.stopped {
			ended = append(ended, voice.onEnded)
			continue
		}

		voiceEnd := voice.start + int64(len(voice.samples))
		from := max(voice.start, windowStart)
		to := min(voiceEnd, windowEnd)
		for frame := from; frame < to; frame++ {
			out[frame-windowStart] += voice.samples[frame-voice.start]
		}

		if voiceEnd <= windowEnd {
			ended = append(ended, voice.onEnded)
			continue
		}
		remaining = append(remaining, voice)
	}
	clear(m.voices[len(remaining):])
	m.voices = remaining
	m.rendered = windowEnd
	probe := m.probe
	m.mu.Unlock()

	for i, s := range out {
		if s > 1 {
			out[i] = 1
		} else if s < -1 {
			out[i] = -1
		}
	}

	if probe != nil {
		probe.Write(out)
	}

	if len(ended) > 0 {
		go func() {
			for _, onEnded := range ended {
				onEnded()
			}
		}()
	}
}

// Reset drops every voice without notifying and rewinds the clock.
func (m *Mixer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = nil
	m.rendered = 0
}

// Voice is one buffer scheduled on a Mixer.
type Voice struct {
	mixer   *Mixer
	samples []float32
	start   int64
	onEnded func()

	stopped bool
}

// Start returns the clock time the voice was scheduled at.
func (v *Voice) Start() time.Duration {
	return FramesToDuration(v.start, v.mixer.sampleRate)
}

// Stop silences the voice immediately. Stopping twice is a no-op.
func (v *Voice) Stop() {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()
	v.stopped = true
}
