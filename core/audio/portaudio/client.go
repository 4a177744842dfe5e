package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-live/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-live/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

var _ audio.Devices = (*Devices)(nil)

// Devices opens PortAudio default devices. PortAudio reference counts
// Initialize/Terminate, so every opened stream holds its own reference.
type Devices struct {
	framesPerBuffer int
}

func NewDevices(framesPerBuffer int) *Devices {
	if framesPerBuffer <= 0 {
		framesPerBuffer = audio.DefaultFrameSize
	}
	return &Devices{framesPerBuffer: framesPerBuffer}
}

func (d *Devices) OpenInput(ctx context.Context, encodingInfo audio.EncodingInfo) (audio.Input, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if encodingInfo.IsZero() {
		encodingInfo = audio.GetDefaultEncodingInfo()
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, &audio.DeviceError{Device: "capture", Err: fmt.Errorf("failed to initialize PortAudio: %w", err)}
	}

	in := make([]float32, d.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(encodingInfo.SampleRate), d.framesPerBuffer, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, &audio.DeviceError{Device: "capture", Err: fmt.Errorf("failed to open PortAudio stream: %w", err)}
	}

	return &captureClient{stream: stream, in: in, encodingInfo: encodingInfo}, nil
}

func (d *Devices) OpenOutput(ctx context.Context, encodingInfo audio.EncodingInfo) (audio.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if encodingInfo.IsZero() {
		encodingInfo = audio.GetDefaultPlaybackEncodingInfo()
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, &audio.DeviceError{Device: "playback", Err: fmt.Errorf("failed to initialize PortAudio: %w", err)}
	}

	mixer := audio.NewMixer(encodingInfo.SampleRate)
	framesPerBuffer := encodingInfo.SampleRate / 50 // ~20ms of audio
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(encodingInfo.SampleRate), framesPerBuffer, func(out []float32) {
		mixer.Render(out)
	})
	if err != nil {
		_ = portaudio.Terminate()
		return nil, &audio.DeviceError{Device: "playback", Err: fmt.Errorf("failed to open PortAudio stream: %w", err)}
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, &audio.DeviceError{Device: "playback", Err: fmt.Errorf("failed to start PortAudio stream: %w", err)}
	}

	return &playbackClient{stream: stream, mixer: mixer, encodingInfo: encodingInfo}, nil
}

type captureClient struct {
	stream       *portaudio.Stream
	in           []float32
	encodingInfo audio.EncodingInfo

	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

func (c *captureClient) EncodingInfo() audio.EncodingInfo { return c.encodingInfo }

func (c *captureClient) StartCapture(ctx context.Context, onAudio func(samples []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("device closed")
	} else if c.cancel != nil {
		return nil
	}

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start PortAudio stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.read(ctx, c.done, onAudio)
	return nil
}

func (c *captureClient) read(ctx context.Context, done chan struct{}, onAudio func(samples []float32)) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				logger.Debug("capture input overflowed")
			} else {
				logger.Warn("failed to read from PortAudio stream", "error", err)
				return
			}
		}
		onAudio(c.in)
	}
}

func (c *captureClient) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *captureClient) stopLocked() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	c.cancel = nil
	err := c.stream.Stop()
	<-c.done
	if err != nil {
		return fmt.Errorf("failed to stop PortAudio stream: %w", err)
	}
	return nil
}

func (c *captureClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	errs := c.stopLocked()
	if err := c.stream.Close(); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to close PortAudio stream: %w", err))
	}
	_ = portaudio.Terminate()
	return errs
}

type playbackClient struct {
	stream       *portaudio.Stream
	mixer        *audio.Mixer
	encodingInfo audio.EncodingInfo

	closeOnce sync.Once
}

func (c *playbackClient) EncodingInfo() audio.EncodingInfo { return c.encodingInfo }

func (c *playbackClient) CurrentTime() time.Duration { return c.mixer.CurrentTime() }

func (c *playbackClient) AttachProbe(probe audio.Probe) { c.mixer.AttachProbe(probe) }

func (c *playbackClient) Schedule(buf audio.Buffer, at time.Duration, onEnded func()) (audio.PlaybackHandle, error) {
	voice, err := c.mixer.Schedule(buf, at, onEnded)
	if err != nil {
		return nil, err
	}
	return voice, nil
}

func (c *playbackClient) Close() error {
	var errs error
	c.closeOnce.Do(func() {
		if err := c.stream.Abort(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to abort PortAudio stream: %w", err))
		}
		if err := c.stream.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close PortAudio stream: %w", err))
		}
		_ = portaudio.Terminate()
		c.mixer.Reset()
	})
	return errs
}
