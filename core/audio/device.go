package audio

import (
	"context"
	"time"
)

// Input is an acquired capture device.
type Input interface {
	EncodingInfo() EncodingInfo
	// StartCapture begins delivering raw samples to onAudio. The slice is
	// only valid for the duration of the call.
	StartCapture(ctx context.Context, onAudio func(samples []float32)) error
	StopCapture() error
	// Close releases the device. It is safe to call more than once.
	Close() error
}

// Output is an acquired playback device with its own clock.
type Output interface {
	EncodingInfo() EncodingInfo
	CurrentTime() time.Duration
	Schedule(buf Buffer, at time.Duration, onEnded func()) (PlaybackHandle, error)
	AttachProbe(probe Probe)
	// Close releases the device. It is safe to call more than once.
	Close() error
}

type PlaybackHandle interface {
	Stop()
}

// Devices acquires capture and playback devices. Both calls may block, for
// example on a permission prompt, and must honour ctx cancellation where
// the backend allows it.
type Devices interface {
	OpenInput(ctx context.Context, encodingInfo EncodingInfo) (Input, error)
	OpenOutput(ctx context.Context, encodingInfo EncodingInfo) (Output, error)
}
