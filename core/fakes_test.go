package orchestration

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/realtime"
)

type testPlaybackHandle struct {
	stopped atomic.Bool
}

func (h *testPlaybackHandle) Stop() { h.stopped.Store(true) }

type scheduledPlayback struct {
	at       time.Duration
	duration time.Duration
	handle   *testPlaybackHandle
	onEnded  func()
}

type testAudioOutput struct {
	mu        sync.Mutex
	now       time.Duration
	scheduled []scheduledPlayback
	probe     audio.Probe

	closeCalls atomic.Int32
}

func newTestAudioOutput() *testAudioOutput { return &testAudioOutput{} }

func (o *testAudioOutput) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultPlaybackEncodingInfo()
}

func (o *testAudioOutput) CurrentTime() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *testAudioOutput) setTime(now time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = now
}

func (o *testAudioOutput) Schedule(buf audio.Buffer, at time.Duration, onEnded func()) (audio.PlaybackHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	handle := &testPlaybackHandle{}
	o.scheduled = append(o.scheduled, scheduledPlayback{at: at, duration: buf.Duration(), handle: handle, onEnded: onEnded})
	return handle, nil
}

func (o *testAudioOutput) AttachProbe(probe audio.Probe) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.probe = probe
}

func (o *testAudioOutput) Close() error {
	o.closeCalls.Add(1)
	return nil
}

func (o *testAudioOutput) snapshot() []scheduledPlayback {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]scheduledPlayback(nil), o.scheduled...)
}

type testAudioInput struct {
	mu      sync.Mutex
	onAudio func([]float32)

	startCalls atomic.Int32
	stopCalls  atomic.Int32
	closeCalls atomic.Int32
}

func (i *testAudioInput) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (i *testAudioInput) StartCapture(_ context.Context, onAudio func([]float32)) error {
	i.startCalls.Add(1)
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onAudio = onAudio
	return nil
}

func (i *testAudioInput) StopCapture() error {
	i.stopCalls.Add(1)
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onAudio = nil
	return nil
}

func (i *testAudioInput) Close() error {
	i.closeCalls.Add(1)
	return nil
}

// emit delivers samples as the device callback would. It reports false when
// capture is not running.
func (i *testAudioInput) emit(samples []float32) bool {
	i.mu.Lock()
	onAudio := i.onAudio
	i.mu.Unlock()
	if onAudio == nil {
		return false
	}
	onAudio(samples)
	return true
}

type testAudioDevices struct {
	input  *testAudioInput
	output *testAudioOutput

	inputErr  error
	outputErr error

	// inputGate, when set, blocks OpenInput until it is closed or the
	// context is cancelled.
	inputGate chan struct{}
	inputOpen chan struct{}

	mu        sync.Mutex
	requested []audio.EncodingInfo
}

func (d *testAudioDevices) record(info audio.EncodingInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requested = append(d.requested, info)
}

func (d *testAudioDevices) requestedEncodings() []audio.EncodingInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.requested)
}

func newTestAudioDevices() *testAudioDevices {
	return &testAudioDevices{
		input:     &testAudioInput{},
		output:    newTestAudioOutput(),
		inputOpen: make(chan struct{}, 1),
	}
}

func (d *testAudioDevices) OpenInput(ctx context.Context, info audio.EncodingInfo) (audio.Input, error) {
	d.record(info)
	select {
	case d.inputOpen <- struct{}{}:
	default:
	}
	if d.inputGate != nil {
		select {
		case <-d.inputGate:
		case <-ctx.Done():
			// The device resolves anyway, as a permission prompt would.
		}
	}
	if d.inputErr != nil {
		return nil, d.inputErr
	}
	return d.input, nil
}

func (d *testAudioDevices) OpenOutput(_ context.Context, info audio.EncodingInfo) (audio.Output, error) {
	d.record(info)
	if d.outputErr != nil {
		return nil, d.outputErr
	}
	return d.output, nil
}

type testRealtimeSession struct {
	incoming chan *realtime.ServerMessage
	failures chan error
	done     chan struct{}

	mu   sync.Mutex
	sent []audio.Blob

	closeOnce  sync.Once
	closeCalls atomic.Int32
}

func newTestRealtimeSession() *testRealtimeSession {
	return &testRealtimeSession{
		incoming: make(chan *realtime.ServerMessage, 64),
		failures: make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (s *testRealtimeSession) SendAudio(_ context.Context, blob audio.Blob) error {
	select {
	case <-s.done:
		return realtime.ErrSessionClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, blob)
	return nil
}

func (s *testRealtimeSession) Receive(ctx context.Context) (*realtime.ServerMessage, error) {
	select {
	case msg := <-s.incoming:
		return msg, nil
	case err := <-s.failures:
		return nil, err
	case <-s.done:
		return nil, realtime.ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *testRealtimeSession) Close() error {
	s.closeCalls.Add(1)
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *testRealtimeSession) sentBlobs() []audio.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audio.Blob(nil), s.sent...)
}

type testRealtimeClient struct {
	session *testRealtimeSession
	err     error

	// gate, when set, holds Connect until it is closed.
	gate    chan struct{}
	configs chan realtime.ConnectConfig
	calls   atomic.Int32
}

func newTestRealtimeClient() *testRealtimeClient {
	return &testRealtimeClient{
		session: newTestRealtimeSession(),
		configs: make(chan realtime.ConnectConfig, 4),
	}
}

func (c *testRealtimeClient) Connect(ctx context.Context, config realtime.ConnectConfig) (realtime.Session, error) {
	c.calls.Add(1)
	select {
	case c.configs <- config:
	default:
	}
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.session, nil
}

func waitFor(t interface {
	Helper()
	Fatalf(string, ...any)
}, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
