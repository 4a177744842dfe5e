package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-live/core/audio"
)

// capturePipeline windows device callbacks into fixed-size frames, encodes
// them and hands them on without waiting for anything downstream.
type capturePipeline struct {
	input        audio.Input
	encodingInfo audio.EncodingInfo
	frameSize    int

	// mu guards pending; device callbacks may race with Close.
	mu      sync.Mutex
	pending []float32

	// probe observes every raw frame before encoding.
	probe audio.Probe
	// onFrame receives every encoded frame in capture order. It must not
	// block.
	onFrame func(raw []float32, blob audio.Blob)

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newCapturePipeline(input audio.Input, frameSize int, probe audio.Probe, onFrame func(raw []float32, blob audio.Blob)) *capturePipeline {
	if frameSize <= 0 {
		frameSize = audio.DefaultFrameSize
	}
	if onFrame == nil {
		onFrame = func([]float32, audio.Blob) {}
	}

	encodingInfo := input.EncodingInfo()
	if encodingInfo.IsZero() {
		encodingInfo = audio.GetDefaultEncodingInfo()
	}

	return &capturePipeline{
		input:        input,
		encodingInfo: encodingInfo,
		frameSize:    frameSize,
		pending:      make([]float32, 0, frameSize),
		probe:        probe,
		onFrame:      onFrame,
	}
}

func (p *capturePipeline) Start(ctx context.Context) error {
	if p.closed.Load() {
		return errors.New("capture pipeline already closed")
	}
	if err := p.input.StartCapture(ctx, p.onAudio); err != nil {
		return &audio.DeviceError{Device: "input", Err: fmt.Errorf("failed to start capture: %w", err)}
	}
	return nil
}

func (p *capturePipeline) onAudio(samples []float32) {
	if p.closed.Load() {
		return
	}

	p.mu.Lock()
	var frames [][]float32
	for len(samples) > 0 {
		n := min(p.frameSize-len(p.pending), len(samples))
		p.pending = append(p.pending, samples[:n]...)
		samples = samples[n:]

		if len(p.pending) == p.frameSize {
			frames = append(frames, p.pending)
			p.pending = make([]float32, 0, p.frameSize)
		}
	}
	p.mu.Unlock()

	for _, frame := range frames {
		if p.probe != nil {
			p.probe.Write(frame)
		}
		p.onFrame(frame, audio.NewBlob(frame, p.encodingInfo))
	}
}

// Close stops the device and drops any partial frame. It is safe to call
// more than once.
func (p *capturePipeline) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)

		var errs error
		if err := p.input.StopCapture(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to stop capture: %w", err))
		}
		if err := p.input.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close input device: %w", err))
		}

		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()

		p.closeErr = errs
	})
	return p.closeErr
}
