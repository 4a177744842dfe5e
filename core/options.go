package orchestration

import (
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
)

type OrchestratorOption func(*Orchestrator)

// WithAudioDevices sets where capture and playback devices are acquired
// from on every connect.
func WithAudioDevices(devices audio.Devices) OrchestratorOption {
	return func(o *Orchestrator) { o.devices = devices }
}

func WithRealtimeClient(client realtime.Client) OrchestratorOption {
	return func(o *Orchestrator) { o.client = client }
}

func WithConnectConfig(config realtime.ConnectConfig) OrchestratorOption {
	return func(o *Orchestrator) { o.connectConfig = config }
}

func WithMetrics(metrics *Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = metrics }
}

// WithCaptureSampleRate sets the rate the input device is opened at.
func WithCaptureSampleRate(rate int) OrchestratorOption {
	return func(o *Orchestrator) {
		if rate > 0 {
			o.captureEncoding.SampleRate = rate
		}
	}
}

// WithPlaybackSampleRate sets the rate the output device is opened at.
// Speech fragments at any other rate are dropped.
func WithPlaybackSampleRate(rate int) OrchestratorOption {
	return func(o *Orchestrator) {
		if rate > 0 {
			o.playbackEncoding.SampleRate = rate
		}
	}
}

// WithFrameSize sets the number of samples per capture frame.
func WithFrameSize(frameSize int) OrchestratorOption {
	return func(o *Orchestrator) {
		if frameSize > 0 {
			o.frameSize = frameSize
		}
	}
}

// WithSendQueueSize sets how many capture frames may wait for the remote
// session before new frames are dropped.
func WithSendQueueSize(size int) OrchestratorOption {
	return func(o *Orchestrator) {
		if size > 0 {
			o.sendQueueSize = size
		}
	}
}

// WithVolumeRefreshRate sets how many times per second the volume is
// sampled.
func WithVolumeRefreshRate(rate int) OrchestratorOption {
	return func(o *Orchestrator) {
		if rate > 0 {
			o.volumeRefreshRate = rate
		}
	}
}

// Callbacks run synchronously on orchestrator goroutines. They must return
// quickly and must not call Connect or Disconnect directly.

// WithConnectionStateCallback registers a callback invoked with every
// connection state, in transition order.
func WithConnectionStateCallback(callback func(state ConnectionState)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onConnectionState = callback }
}

// WithTranscriptCallback registers a callback invoked with the messages
// appended by each completed turn, user first.
func WithTranscriptCallback(callback func(messages []conversations.Message)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onTranscript = callback }
}

func WithVolumeCallback(callback func(level VolumeLevel)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onVolume = callback }
}

// WithErrorCallback registers a callback invoked with the error that moved
// the orchestrator to ERROR.
func WithErrorCallback(callback func(err error)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onError = callback }
}

// WithEventCallback registers a callback invoked with every event a session
// handles, in the order it handles them.
func WithEventCallback(callback func(event events.Event)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onEvent = callback }
}
