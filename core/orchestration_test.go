package orchestration

import (
	"context"
	"encoding/base64"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
)

type orchestratorRecorder struct {
	mu          sync.Mutex
	states      []ConnectionState
	transcripts [][]conversations.Message
	errs        []error
}

func (r *orchestratorRecorder) options() []OrchestratorOption {
	return []OrchestratorOption{
		WithConnectionStateCallback(func(state ConnectionState) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, state)
		}),
		WithTranscriptCallback(func(messages []conversations.Message) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.transcripts = append(r.transcripts, messages)
		}),
		WithErrorCallback(func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		}),
	}
}

func (r *orchestratorRecorder) stateHistory() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.states)
}

func (r *orchestratorRecorder) errorList() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.errs)
}

type orchestratorHarness struct {
	orchestrator *Orchestrator
	devices      *testAudioDevices
	client       *testRealtimeClient
	recorder     *orchestratorRecorder
}

func newOrchestratorHarness(t *testing.T, opts ...OrchestratorOption) *orchestratorHarness {
	t.Helper()

	h := &orchestratorHarness{
		devices:  newTestAudioDevices(),
		client:   newTestRealtimeClient(),
		recorder: &orchestratorRecorder{},
	}
	options := append([]OrchestratorOption{
		WithAudioDevices(h.devices),
		WithRealtimeClient(h.client),
	}, h.recorder.options()...)
	h.orchestrator = NewOrchestrator(append(options, opts...)...)
	t.Cleanup(func() { _ = h.orchestrator.Disconnect() })
	return h
}

func (h *orchestratorHarness) connect(t *testing.T) {
	t.Helper()
	if err := h.orchestrator.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	waitFor(t, "realtime connect", func() bool { return h.client.calls.Load() == 1 })
	h.client.session.incoming <- &realtime.ServerMessage{SetupComplete: &realtime.SetupComplete{}}
	waitFor(t, "connected state", func() bool { return h.orchestrator.ConnectionState() == StateConnected })
}

func (h *orchestratorHarness) serverContent(content realtime.ServerContent) {
	h.client.session.incoming <- &realtime.ServerMessage{ServerContent: &content}
}

func testPayload(d time.Duration) string {
	samples := make([]float32, audio.DurationToFrames(d, audio.DefaultPlaybackSampleRate))
	return base64.StdEncoding.EncodeToString(audio.EncodeLinear16(samples))
}

func audioTurn(payloads ...string) *realtime.Content {
	content := &realtime.Content{}
	for _, payload := range payloads {
		content.Parts = append(content.Parts, realtime.Part{InlineData: &realtime.InlineData{
			MIMEType: "audio/pcm;rate=24000",
			Data:     payload,
		}})
	}
	return content
}

func TestConnectRequiresDependencies(t *testing.T) {
	if err := NewOrchestrator(WithRealtimeClient(newTestRealtimeClient())).Connect(context.Background()); !errors.Is(err, ErrNoAudioDevices) {
		t.Fatalf("expected ErrNoAudioDevices, got %v", err)
	}
	if err := NewOrchestrator(WithAudioDevices(newTestAudioDevices())).Connect(context.Background()); !errors.Is(err, ErrNoRealtimeClient) {
		t.Fatalf("expected ErrNoRealtimeClient, got %v", err)
	}
}

func TestDevicesOpenAtConfiguredRates(t *testing.T) {
	h := newOrchestratorHarness(t, WithCaptureSampleRate(48000), WithPlaybackSampleRate(24000))
	h.connect(t)

	requested := h.devices.requestedEncodings()
	if len(requested) != 2 {
		t.Fatalf("expected output and input to be opened, got %d", len(requested))
	}
	if requested[0].SampleRate != 24000 || requested[1].SampleRate != 48000 {
		t.Fatalf("expected output at 24000 and input at 48000, got %+v", requested)
	}
	if requested[1].Format != audio.EncodingLinear16 {
		t.Fatalf("expected linear16 capture, got %q", requested[1].Format)
	}
}

func TestConnectOpensSessionAndRecordsTurn(t *testing.T) {
	h := newOrchestratorHarness(t, WithConnectConfig(realtime.NewConnectConfig(realtime.WithVoice("Puck"))))

	if state := h.orchestrator.ConnectionState(); state != StateDisconnected {
		t.Fatalf("expected initial state DISCONNECTED, got %s", state)
	}
	h.connect(t)

	if config := <-h.client.configs; config.Voice != "Puck" {
		t.Fatalf("expected configured voice, got %q", config.Voice)
	}

	h.serverContent(realtime.ServerContent{InputTranscription: &realtime.Transcription{Text: "Hello"}})
	h.serverContent(realtime.ServerContent{OutputTranscription: &realtime.Transcription{Text: "Hi there"}})
	h.serverContent(realtime.ServerContent{TurnComplete: true})

	waitFor(t, "transcripts", func() bool { return len(h.orchestrator.Transcripts()) == 2 })

	transcripts := h.orchestrator.Transcripts()
	if transcripts[0].Sender != conversations.SenderUser || transcripts[0].Text != "Hello" {
		t.Fatalf("expected user Hello first, got %+v", transcripts[0])
	}
	if transcripts[1].Sender != conversations.SenderModel || transcripts[1].Text != "Hi there" {
		t.Fatalf("expected model Hi there second, got %+v", transcripts[1])
	}

	expected := []ConnectionState{StateConnecting, StateConnected}
	if got := h.recorder.stateHistory(); !slices.Equal(got, expected) {
		t.Fatalf("expected states %v, got %v", expected, got)
	}
	if got := len(h.recorder.transcripts); got != 1 {
		t.Fatalf("expected one transcript callback, got %d", got)
	}
}

func TestEmptyTurnAppendsNothing(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.connect(t)

	h.serverContent(realtime.ServerContent{TurnComplete: true})
	h.serverContent(realtime.ServerContent{InputTranscription: &realtime.Transcription{Text: "Still there?"}})
	h.serverContent(realtime.ServerContent{TurnComplete: true})

	waitFor(t, "transcripts", func() bool { return len(h.orchestrator.Transcripts()) == 2 })
	transcripts := h.orchestrator.Transcripts()
	if transcripts[0].Text != "Still there?" || transcripts[1].Text != "" {
		t.Fatalf("expected user text and an empty model message, got %+v", transcripts)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.connect(t)

	for range 3 {
		if err := h.orchestrator.Connect(context.Background()); err != nil {
			t.Fatalf("failed to connect: %v", err)
		}
	}
	time.Sleep(20 * time.Millisecond)

	if calls := h.client.calls.Load(); calls != 1 {
		t.Fatalf("expected a single remote session, got %d", calls)
	}
	if state := h.orchestrator.ConnectionState(); state != StateConnected {
		t.Fatalf("expected CONNECTED, got %s", state)
	}
}

func TestDisconnectWhileConnectingReleasesEverything(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.devices.inputGate = make(chan struct{})

	if err := h.orchestrator.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	<-h.devices.inputOpen

	if err := h.orchestrator.Disconnect(); err != nil {
		t.Fatalf("failed to disconnect: %v", err)
	}
	if state := h.orchestrator.ConnectionState(); state != StateDisconnected {
		t.Fatalf("expected DISCONNECTED, got %s", state)
	}

	waitFor(t, "input release", func() bool { return h.devices.input.closeCalls.Load() == 1 })
	waitFor(t, "output release", func() bool { return h.devices.output.closeCalls.Load() == 1 })

	time.Sleep(20 * time.Millisecond)
	if calls := h.client.calls.Load(); calls != 0 {
		t.Fatalf("expected remote session to never be requested, got %d calls", calls)
	}
	if state := h.orchestrator.ConnectionState(); state != StateDisconnected {
		t.Fatalf("expected to stay DISCONNECTED, got %s", state)
	}
	expected := []ConnectionState{StateConnecting, StateDisconnected}
	if got := h.recorder.stateHistory(); !slices.Equal(got, expected) {
		t.Fatalf("expected states %v, got %v", expected, got)
	}
}

func TestDisconnectWhileAwaitingRemoteSession(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.client.gate = make(chan struct{})

	if err := h.orchestrator.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	waitFor(t, "realtime connect", func() bool { return h.client.calls.Load() == 1 })

	if err := h.orchestrator.Disconnect(); err != nil {
		t.Fatalf("failed to disconnect: %v", err)
	}

	waitFor(t, "input release", func() bool { return h.devices.input.closeCalls.Load() == 1 })
	waitFor(t, "output release", func() bool { return h.devices.output.closeCalls.Load() == 1 })
	if state := h.orchestrator.ConnectionState(); state != StateDisconnected {
		t.Fatalf("expected DISCONNECTED, got %s", state)
	}
}

func TestDisconnectReleasesOpenSession(t *testing.T) {
	h := newOrchestratorHarness(t, WithVolumeRefreshRate(200))
	h.connect(t)

	if err := h.orchestrator.Disconnect(); err != nil {
		t.Fatalf("failed to disconnect: %v", err)
	}
	if err := h.orchestrator.Disconnect(); err != nil {
		t.Fatalf("expected second disconnect to be a no-op, got %v", err)
	}

	waitFor(t, "session release", func() bool { return h.client.session.closeCalls.Load() == 1 })
	if got := h.devices.input.closeCalls.Load(); got != 1 {
		t.Fatalf("expected input to be closed once, got %d", got)
	}
	if got := h.devices.output.closeCalls.Load(); got != 1 {
		t.Fatalf("expected output to be closed once, got %d", got)
	}
	if h.devices.input.emit([]float32{0}) {
		t.Fatalf("expected capture to be stopped")
	}

	time.Sleep(20 * time.Millisecond)
	if volume := h.orchestrator.Volume(); volume != (VolumeLevel{}) {
		t.Fatalf("expected volume to be reset, got %+v", volume)
	}
	expected := []ConnectionState{StateConnecting, StateConnected, StateDisconnected}
	if got := h.recorder.stateHistory(); !slices.Equal(got, expected) {
		t.Fatalf("expected states %v, got %v", expected, got)
	}
}

func TestRemoteErrorMovesToErrorAndTearsDown(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.connect(t)

	h.client.session.failures <- &realtime.RemoteError{Code: 1011, Reason: "internal"}

	waitFor(t, "error state", func() bool { return h.orchestrator.ConnectionState() == StateError })
	waitFor(t, "session release", func() bool { return h.client.session.closeCalls.Load() == 1 })
	if got := h.devices.input.closeCalls.Load(); got != 1 {
		t.Fatalf("expected input to be released, got %d closes", got)
	}
	if got := h.devices.output.closeCalls.Load(); got != 1 {
		t.Fatalf("expected output to be released, got %d closes", got)
	}

	errs := h.recorder.errorList()
	var remoteErr *realtime.RemoteError
	if len(errs) != 1 || !errors.As(errs[0], &remoteErr) {
		t.Fatalf("expected one RemoteError, got %v", errs)
	}

	if err := h.orchestrator.Disconnect(); err != nil {
		t.Fatalf("failed to disconnect: %v", err)
	}
	expected := []ConnectionState{StateConnecting, StateConnected, StateError, StateDisconnected}
	if got := h.recorder.stateHistory(); !slices.Equal(got, expected) {
		t.Fatalf("expected states %v, got %v", expected, got)
	}
}

func TestRemoteCloseDisconnects(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.connect(t)

	h.client.session.failures <- realtime.ErrSessionClosed

	waitFor(t, "disconnected state", func() bool { return h.orchestrator.ConnectionState() == StateDisconnected })
	waitFor(t, "output release", func() bool { return h.devices.output.closeCalls.Load() == 1 })
	if errs := h.recorder.errorList(); len(errs) != 0 {
		t.Fatalf("expected no errors for a clean close, got %v", errs)
	}
}

func TestProtocolErrorsDoNotEndSession(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.connect(t)

	h.client.session.failures <- &realtime.ProtocolError{Err: errors.New("garbled")}
	h.serverContent(realtime.ServerContent{InputTranscription: &realtime.Transcription{Text: "ok"}})
	h.serverContent(realtime.ServerContent{TurnComplete: true})

	waitFor(t, "transcripts", func() bool { return len(h.orchestrator.Transcripts()) == 2 })
	if state := h.orchestrator.ConnectionState(); state != StateConnected {
		t.Fatalf("expected to stay CONNECTED, got %s", state)
	}
}

func TestAcquisitionFailuresMoveToError(t *testing.T) {
	testCases := []struct {
		name    string
		prepare func(h *orchestratorHarness)
		check   func(err error) bool
	}{
		{
			name:    "input device denied",
			prepare: func(h *orchestratorHarness) { h.devices.inputErr = errors.New("permission denied") },
			check: func(err error) bool {
				var deviceErr *audio.DeviceError
				return errors.As(err, &deviceErr) && deviceErr.Device == "input"
			},
		},
		{
			name:    "output device missing",
			prepare: func(h *orchestratorHarness) { h.devices.outputErr = errors.New("no device") },
			check: func(err error) bool {
				var deviceErr *audio.DeviceError
				return errors.As(err, &deviceErr) && deviceErr.Device == "output"
			},
		},
		{
			name:    "remote session refused",
			prepare: func(h *orchestratorHarness) { h.client.err = errors.New("refused") },
			check: func(err error) bool {
				var connectErr *realtime.ConnectError
				return errors.As(err, &connectErr)
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			h := newOrchestratorHarness(t)
			testCase.prepare(h)

			if err := h.orchestrator.Connect(context.Background()); err != nil {
				t.Fatalf("failed to connect: %v", err)
			}
			waitFor(t, "error state", func() bool { return h.orchestrator.ConnectionState() == StateError })

			errs := h.recorder.errorList()
			if len(errs) != 1 || !testCase.check(errs[0]) {
				t.Fatalf("unexpected errors %v", errs)
			}
			if h.devices.outputErr == nil {
				waitFor(t, "output release", func() bool { return h.devices.output.closeCalls.Load() == 1 })
			}
		})
	}
}

func TestReconnectFromError(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.devices.inputErr = errors.New("permission denied")

	if err := h.orchestrator.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	waitFor(t, "error state", func() bool { return h.orchestrator.ConnectionState() == StateError })

	h.devices.inputErr = nil
	h.connect(t)

	expected := []ConnectionState{StateConnecting, StateError, StateConnecting, StateConnected}
	if got := h.recorder.stateHistory(); !slices.Equal(got, expected) {
		t.Fatalf("expected states %v, got %v", expected, got)
	}
}

func TestConnectClearsTranscripts(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.connect(t)
	h.serverContent(realtime.ServerContent{InputTranscription: &realtime.Transcription{Text: "Hello"}, TurnComplete: true})
	waitFor(t, "transcripts", func() bool { return len(h.orchestrator.Transcripts()) == 2 })

	if err := h.orchestrator.Disconnect(); err != nil {
		t.Fatalf("failed to disconnect: %v", err)
	}
	if got := len(h.orchestrator.Transcripts()); got != 2 {
		t.Fatalf("expected transcripts to survive disconnect, got %d", got)
	}

	h.client.session = newTestRealtimeSession()
	h.client.calls.Store(0)
	if err := h.orchestrator.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if got := len(h.orchestrator.Transcripts()); got != 0 {
		t.Fatalf("expected transcripts to be cleared on connect, got %d", got)
	}
}

func TestFramesCapturedBeforeOpenAreSentInOrder(t *testing.T) {
	h := newOrchestratorHarness(t, WithFrameSize(2))
	h.client.gate = make(chan struct{})

	if err := h.orchestrator.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	waitFor(t, "realtime connect", func() bool { return h.client.calls.Load() == 1 })

	frames := [][]float32{{0.1, 0.1}, {0.2, 0.2}, {0.3, 0.3}}
	for _, frame := range frames {
		if !h.devices.input.emit(frame) {
			t.Fatalf("expected capture to be running before the session opens")
		}
	}
	close(h.client.gate)

	waitFor(t, "frames sent", func() bool { return len(h.client.session.sentBlobs()) == len(frames) })
	for i, blob := range h.client.session.sentBlobs() {
		expected := audio.EncodeLinear16(frames[i])
		if string(blob.Data) != string(expected) {
			t.Fatalf("frame %d: expected %v, got %v", i, expected, blob.Data)
		}
	}
}

func TestFullSendQueueDropsFrames(t *testing.T) {
	h := newOrchestratorHarness(t, WithFrameSize(1), WithSendQueueSize(2))
	h.client.gate = make(chan struct{})

	if err := h.orchestrator.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	waitFor(t, "realtime connect", func() bool { return h.client.calls.Load() == 1 })

	h.devices.input.emit([]float32{0.1, 0.2, 0.3, 0.4})
	close(h.client.gate)

	waitFor(t, "frames sent", func() bool { return len(h.client.session.sentBlobs()) == 2 })
	time.Sleep(20 * time.Millisecond)
	if got := len(h.client.session.sentBlobs()); got != 2 {
		t.Fatalf("expected overflowing frames to be dropped, got %d sent", got)
	}
}

func TestAudioFragmentsArePlayedGapless(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.devices.output.setTime(time.Second)
	h.connect(t)

	h.serverContent(realtime.ServerContent{ModelTurn: audioTurn(testPayload(500 * time.Millisecond))})
	h.serverContent(realtime.ServerContent{ModelTurn: audioTurn(testPayload(300 * time.Millisecond))})

	waitFor(t, "scheduled fragments", func() bool { return len(h.devices.output.snapshot()) == 2 })
	scheduled := h.devices.output.snapshot()
	if scheduled[0].at != time.Second {
		t.Fatalf("expected first fragment at the clock time, got %v", scheduled[0].at)
	}
	if scheduled[1].at != scheduled[0].at+500*time.Millisecond {
		t.Fatalf("expected second fragment right after the first, got %v", scheduled[1].at)
	}
}

func TestInterruptionStopsPlaybackAndResetsTimeline(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.devices.output.setTime(time.Second)
	h.connect(t)

	h.serverContent(realtime.ServerContent{ModelTurn: audioTurn(testPayload(500*time.Millisecond), testPayload(500*time.Millisecond))})
	waitFor(t, "scheduled fragments", func() bool { return len(h.devices.output.snapshot()) == 2 })

	h.devices.output.setTime(1200 * time.Millisecond)
	h.serverContent(realtime.ServerContent{Interrupted: true})
	h.serverContent(realtime.ServerContent{ModelTurn: audioTurn(testPayload(100 * time.Millisecond))})

	waitFor(t, "fragment after interruption", func() bool { return len(h.devices.output.snapshot()) == 3 })
	scheduled := h.devices.output.snapshot()
	for i := range 2 {
		if !scheduled[i].handle.stopped.Load() {
			t.Fatalf("expected fragment %d to be stopped", i)
		}
	}
	if scheduled[2].at != 1200*time.Millisecond {
		t.Fatalf("expected new timeline at the clock time, got %v", scheduled[2].at)
	}
	if h.orchestrator.ConnectionState() != StateConnected {
		t.Fatalf("expected interruption to keep the session")
	}
}

func TestAudioInterruptedInSameMessageIsDropped(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.connect(t)

	h.serverContent(realtime.ServerContent{ModelTurn: audioTurn(testPayload(500 * time.Millisecond)), Interrupted: true})
	h.serverContent(realtime.ServerContent{ModelTurn: audioTurn(testPayload(100 * time.Millisecond))})

	waitFor(t, "fresh fragment", func() bool { return len(h.devices.output.snapshot()) == 1 })
	if d := h.devices.output.snapshot()[0].duration; d != 100*time.Millisecond {
		t.Fatalf("expected only the fragment after the interruption to play, got %v", d)
	}
}

func TestMalformedFragmentIsDropped(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.connect(t)

	h.serverContent(realtime.ServerContent{ModelTurn: audioTurn("%%%not-base64", base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), testPayload(100*time.Millisecond))})

	waitFor(t, "valid fragment", func() bool { return len(h.devices.output.snapshot()) == 1 })
	if h.orchestrator.ConnectionState() != StateConnected {
		t.Fatalf("expected malformed audio to keep the session")
	}
}

func TestDecodeFragmentUsesMIMERate(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(audio.EncodeLinear16(make([]float32, 16000)))

	buf, err := decodeFragment(events.NewAssistantAudioPayload("audio/pcm;rate=16000", payload), audio.DefaultPlaybackSampleRate)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if buf.SampleRate != 16000 || buf.Duration() != time.Second {
		t.Fatalf("expected one second at 16kHz, got %d Hz %v", buf.SampleRate, buf.Duration())
	}

	buf, err = decodeFragment(events.NewAssistantAudioPayload("", payload), audio.DefaultPlaybackSampleRate)
	if err != nil || buf.SampleRate != audio.DefaultPlaybackSampleRate {
		t.Fatalf("expected default rate, got %d (%v)", buf.SampleRate, err)
	}

	var codecErr *audio.CodecError
	if _, err := decodeFragment(events.NewAssistantAudioPayload("audio/mpeg", payload), audio.DefaultPlaybackSampleRate); !errors.As(err, &codecErr) {
		t.Fatalf("expected CodecError for unsupported media, got %v", err)
	}
}
