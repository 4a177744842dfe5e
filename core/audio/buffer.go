package audio

import "time"

// Buffer is a single-channel block of playable samples in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

func (b Buffer) Len() int { return len(b.Samples) }

func (b Buffer) Duration() time.Duration {
	return FramesToDuration(int64(len(b.Samples)), b.SampleRate)
}

func FramesToDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(sampleRate))
}

// DurationToFrames rounds to the nearest frame so that values produced by
// FramesToDuration map back onto the same frame.
func DurationToFrames(d time.Duration, sampleRate int) int64 {
	if sampleRate <= 0 || d <= 0 {
		return 0
	}
	return (int64(d)*int64(sampleRate) + int64(time.Second)/2) / int64(time.Second)
}
