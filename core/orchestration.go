// Package orchestration runs a realtime voice conversation: it captures the
// microphone, streams it to a remote speech session, plays the synthesized
// reply back without gaps and keeps the transcript of every turn.
package orchestration

import (
	"context"
	"errors"
	"sync"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
)

const defaultSendQueueSize = 64

var (
	ErrNoAudioDevices   = errors.New("no audio devices configured")
	ErrNoRealtimeClient = errors.New("no realtime client configured")
)

type Orchestrator struct {
	devices           audio.Devices
	client            realtime.Client
	connectConfig     realtime.ConnectConfig
	captureEncoding   audio.EncodingInfo
	playbackEncoding  audio.EncodingInfo
	metrics           *Metrics
	frameSize         int
	sendQueueSize     int
	volumeRefreshRate int

	callbacks callbacks
	emit      eventEmitter

	// transitionMu serializes state changes together with their
	// notification so callbacks observe transitions in order.
	transitionMu sync.Mutex

	mu          sync.Mutex
	state       ConnectionState
	session     *session
	volume      VolumeLevel
	transcripts conversations.Log
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		connectConfig:     realtime.NewConnectConfig(),
		captureEncoding:   audio.GetDefaultEncodingInfo(),
		playbackEncoding:  audio.GetDefaultPlaybackEncodingInfo(),
		frameSize:         audio.DefaultFrameSize,
		sendQueueSize:     defaultSendQueueSize,
		volumeRefreshRate: DefaultVolumeRefreshRate,
		state:             StateDisconnected,
	}

	for _, opt := range opts {
		opt(o)
	}
	o.emit = newCallbackEventEmitter(o.callbacks)

	return o
}

// Connect starts a new session unless one is already connecting or
// connected. It returns as soon as the orchestrator is CONNECTING; devices
// and the remote session are acquired in the background and the outcome is
// reported through the connection state.
//
// Cancelling ctx ends the session as if Disconnect was called.
func (o *Orchestrator) Connect(ctx context.Context) error {
	if o.devices == nil {
		return ErrNoAudioDevices
	}
	if o.client == nil {
		return ErrNoRealtimeClient
	}

	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	o.mu.Lock()
	if o.state.IsActive() {
		o.mu.Unlock()
		return nil
	}
	s := newSession(ctx, o)
	o.session = s
	from := o.state
	o.state = StateConnecting
	o.transcripts.Clear()
	o.mu.Unlock()

	o.publishState(from, StateConnecting)
	go s.run()
	return nil
}

// Disconnect ends the current session, if any, and releases everything it
// acquired. It is safe to call in any state. Acquisitions still in flight
// are released as soon as they resolve.
func (o *Orchestrator) Disconnect() error {
	o.mu.Lock()
	s := o.session
	o.mu.Unlock()

	if s != nil {
		o.endSession(s, StateDisconnected, nil)
		return nil
	}

	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	o.mu.Lock()
	from := o.state
	changed := o.session == nil && from == StateError
	if changed {
		o.state = StateDisconnected
	}
	o.mu.Unlock()

	if changed {
		o.publishState(from, StateDisconnected)
	}
	return nil
}

func (o *Orchestrator) ConnectionState() ConnectionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Volume() VolumeLevel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// Transcripts returns a copy of the transcript log, oldest message first.
func (o *Orchestrator) Transcripts() []conversations.Message {
	return o.transcripts.Snapshot()
}

// sessionOpened moves s from CONNECTING to CONNECTED.
func (o *Orchestrator) sessionOpened(s *session) {
	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	o.mu.Lock()
	if o.session != s || o.state != StateConnecting {
		o.mu.Unlock()
		return
	}
	o.state = StateConnected
	o.mu.Unlock()

	o.publishState(StateConnecting, StateConnected)
}

// endSession tears s down and, if it is still the current session, moves
// the orchestrator to the given state.
func (o *Orchestrator) endSession(s *session, to ConnectionState, cause error) {
	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	o.mu.Lock()
	current := o.session == s
	from := o.state
	if current {
		o.session = nil
		o.volume = VolumeLevel{}
		if canTransition(from, to) {
			o.state = to
		}
	}
	o.mu.Unlock()

	s.teardown()

	if !current {
		return
	}
	if cause != nil {
		logger.Error("session failed", "error", cause)
		o.emit(events.NewSessionFailed(cause))
	}
	if o.callbacks.onVolume != nil {
		o.callbacks.onVolume(VolumeLevel{})
	}
	if from != to && canTransition(from, to) {
		o.publishState(from, to)
	}
}

func (o *Orchestrator) publishState(from, to ConnectionState) {
	logger.Info("connection state changed", "from", from.String(), "to", to.String())
	o.metrics.stateChanged(to)
	if o.callbacks.onConnectionState != nil {
		o.callbacks.onConnectionState(to)
	}
}

func (o *Orchestrator) setVolume(s *session, level VolumeLevel) {
	o.mu.Lock()
	if o.session != s {
		o.mu.Unlock()
		return
	}
	o.volume = level
	o.mu.Unlock()

	if o.callbacks.onVolume != nil {
		o.callbacks.onVolume(level)
	}
}

func (o *Orchestrator) appendTranscripts(s *session, messages []conversations.Message) {
	o.mu.Lock()
	if o.session != s {
		o.mu.Unlock()
		return
	}
	o.transcripts.Append(messages...)
	o.mu.Unlock()

	o.metrics.turnCompleted()
	o.emit(events.NewTranscriptAppended(messages...))
}
