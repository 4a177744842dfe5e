package miniaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig
	encodingInfo audio.EncodingInfo

	mixer *audio.Mixer

	mu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, encodingInfo audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if encodingInfo.IsZero() {
		encodingInfo = audio.GetDefaultPlaybackEncodingInfo()
	}
	c.encodingInfo = encodingInfo
	c.mixer = audio.NewMixer(encodingInfo.SampleRate)

	channels := 1
	format := malgo.FormatF32
	bytesPerFrame := audio.EncodingFloat32.ByteSize() * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = uint32(encodingInfo.SampleRate)
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = uint32(encodingInfo.SampleRate) / 50 // ~20ms of audio
	c.config.Periods = 3

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
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
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		if c.device.IsStarted() {
			_ = c.device.Stop()
		}
		c.device.Uninit()
		c.device = nil
	}
	if c.audioContext != nil {
		uninitContext(c.audioContext)
		c.audioContext = nil
	}
	if c.mixer != nil {
		c.mixer.Reset()
	}

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	var samples []float32
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame
		if len(pOutput) < need {
			return
		}

		if cap(samples) < int(frameCount) {
			samples = make([]float32, frameCount)
		}
		samples = samples[:frameCount]
		c.mixer.Render(samples)

		for i, s := range samples {
			binary.LittleEndian.PutUint32(pOutput[i*bytesPerFrame:], math.Float32bits(s))
		}
	}
}
