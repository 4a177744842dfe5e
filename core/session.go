package orchestration

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	inboxSize       = 256
	decodeQueueSize = 256
)

const (
	kindMessageReceived   events.Kind = "session.message_received"
	kindFragmentDecoded   events.Kind = "assistant_playback.fragment_decoded"
	kindPlaybackUnitEnded events.Kind = "assistant_playback.unit_ended"
)

// messageReceived carries every event routed from one inbound message so
// the loop applies them without anything interleaving.
type messageReceived struct {
	events.Base
	routed []events.Event
}

// fragmentDecoded carries a decoded speech fragment back to the loop,
// tagged with the interruption epoch it was received in.
type fragmentDecoded struct {
	events.Base
	epoch  uint64
	buffer audio.Buffer
}

type playbackUnitEnded struct {
	events.Base
	unit *playbackUnit
}

type decodeJob struct {
	epoch   uint64
	payload events.AssistantAudioPayload
}

type releaser struct {
	name    string
	release func() error
}

// session is one connect/disconnect cycle. Everything it acquires is
// released by teardown, including resources that resolve after teardown
// already ran.
//
// The turn accumulator, the playback scheduler and the epoch are only
// touched by the loop goroutine. Every other goroutine posts into inbox.
type session struct {
	id     string
	o      *Orchestrator
	ctx    context.Context
	cancel context.CancelFunc

	inbox       chan events.Event
	sendQueue   chan audio.Blob
	decodeQueue chan decodeJob

	inputAnalyser  *audio.Analyser
	outputAnalyser *audio.Analyser

	turn         turnAccumulator
	scheduler    *playbackScheduler
	playbackRate int
	epoch        uint64

	mu        sync.Mutex
	released  bool
	releasers []releaser

	teardownOnce sync.Once
}

func newSession(ctx context.Context, o *Orchestrator) *session {
	ctx, cancel := context.WithCancel(ctx)
	return &session{
		id:             uuid.NewString(),
		o:              o,
		ctx:            ctx,
		cancel:         cancel,
		inbox:          make(chan events.Event, inboxSize),
		sendQueue:      make(chan audio.Blob, o.sendQueueSize),
		decodeQueue:    make(chan decodeJob, decodeQueueSize),
		inputAnalyser:  audio.NewAnalyser(),
		outputAnalyser: audio.NewAnalyser(),
	}
}

func (s *session) run() {
	meter := newVolumeMeter(s.inputAnalyser, s.outputAnalyser, s.o.volumeRefreshRate, func(level VolumeLevel) {
		s.o.setVolume(s, level)
	})
	go meter.run(s.ctx)

	remote, err := s.open()
	if err != nil {
		if s.ctx.Err() != nil {
			s.o.endSession(s, StateDisconnected, nil)
			return
		}
		s.o.endSession(s, StateError, err)
		return
	}

	go s.send(remote)
	go s.receive(remote)
	go s.decode()
	s.loop()
}

func (s *session) open() (realtime.Session, error) {
	ctx, span := tracer.Start(s.ctx, "open realtime session",
		trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()

	remote, err := s.acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return remote, nil
}

// acquire opens the output device, the input device and the remote session,
// in that order.
func (s *session) acquire(ctx context.Context) (realtime.Session, error) {
	output, err := s.o.devices.OpenOutput(ctx, s.o.playbackEncoding)
	if err != nil {
		return nil, asDeviceError("output", err)
	}
	if !s.adopt("output device", output.Close) {
		return nil, context.Canceled
	}
	output.AttachProbe(s.outputAnalyser)
	s.playbackRate = output.EncodingInfo().SampleRate
	if s.playbackRate <= 0 {
		s.playbackRate = audio.DefaultPlaybackSampleRate
	}
	s.scheduler = newPlaybackScheduler(output, func(unit *playbackUnit) {
		s.post(playbackUnitEnded{Base: events.NewBase(kindPlaybackUnitEnded), unit: unit})
	})

	input, err := s.o.devices.OpenInput(ctx, s.o.captureEncoding)
	if err != nil {
		return nil, asDeviceError("input", err)
	}
	pipeline := newCapturePipeline(input, s.o.frameSize, s.inputAnalyser, s.enqueueFrame)
	if !s.adopt("capture pipeline", pipeline.Close) {
		return nil, context.Canceled
	}
	if err := pipeline.Start(s.ctx); err != nil {
		return nil, err
	}

	remote, err := s.o.client.Connect(ctx, s.o.connectConfig)
	if err != nil {
		var connectErr *realtime.ConnectError
		if !errors.As(err, &connectErr) {
			err = &realtime.ConnectError{Err: err}
		}
		return nil, err
	}
	if !s.adopt("realtime session", remote.Close) {
		return nil, context.Canceled
	}

	return remote, nil
}

func asDeviceError(device string, err error) error {
	var deviceErr *audio.DeviceError
	if errors.As(err, &deviceErr) {
		return err
	}
	return &audio.DeviceError{Device: device, Err: err}
}

// adopt registers a resource for teardown. If the session was already torn
// down the resource is released immediately and adopt reports false.
func (s *session) adopt(name string, release func() error) bool {
	s.mu.Lock()
	if !s.released {
		s.releasers = append(s.releasers, releaser{name: name, release: release})
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	logger.Debug("releasing resource acquired after teardown", "resource", name)
	if err := release(); err != nil {
		logger.Warn("failed to release "+name, "error", err)
	}
	return false
}

// teardown cancels the session and releases what it acquired, most recent
// first. It is safe to call more than once and from any goroutine.
func (s *session) teardown() {
	s.teardownOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		s.released = true
		releasers := s.releasers
		s.releasers = nil
		s.mu.Unlock()

		for i := len(releasers) - 1; i >= 0; i-- {
			if err := releasers[i].release(); err != nil {
				logger.Warn("failed to release "+releasers[i].name, "error", err)
			}
		}
	})
}

func (s *session) post(event events.Event) bool {
	select {
	case s.inbox <- event:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// enqueueFrame runs on the capture thread and never blocks. Frames wait in
// sendQueue until the remote session resolves.
func (s *session) enqueueFrame(raw []float32, blob audio.Blob) {
	if s.ctx.Err() != nil {
		return
	}
	s.o.emit(events.NewUserAudioFrame(raw))

	select {
	case s.sendQueue <- blob:
	default:
		s.o.metrics.frameDropped()
		logger.Warn("dropping capture frame, send queue is full", "queue_size", cap(s.sendQueue))
	}
}

func (s *session) send(remote realtime.Session) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case blob := <-s.sendQueue:
			if err := remote.SendAudio(s.ctx, blob); err != nil {
				if s.ctx.Err() != nil || errors.Is(err, realtime.ErrSessionClosed) {
					return
				}
				s.o.metrics.frameDropped()
				logger.Warn("failed to send capture frame", "error", err)
				continue
			}
			s.o.metrics.frameSent()
		}
	}
}

func (s *session) receive(remote realtime.Session) {
	for {
		msg, err := remote.Receive(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}

			var protocolErr *realtime.ProtocolError
			switch {
			case errors.As(err, &protocolErr):
				logger.Warn("skipping unexpected realtime message", "error", err)
				continue
			case errors.Is(err, realtime.ErrSessionClosed):
				s.post(events.NewSessionClosed())
			default:
				s.post(events.NewSessionFailed(err))
			}
			return
		}

		if msg.GoAway != nil {
			logger.Info("realtime session is going away", "session_id", s.id, "time_left", msg.GoAway.TimeLeft)
		}
		routed := routeServerMessage(msg)
		if len(routed) == 0 {
			continue
		}
		if !s.post(messageReceived{Base: events.NewBase(kindMessageReceived), routed: routed}) {
			return
		}
	}
}

// decode turns audio payloads into playable buffers one at a time, in
// arrival order, off the loop goroutine.
func (s *session) decode() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.decodeQueue:
			buffer, err := decodeFragment(job.payload, s.playbackRate)
			if err != nil {
				s.o.metrics.fragmentDropped(dropReasonCodec)
				logger.Warn("dropping malformed speech fragment", "error", err)
				continue
			}
			s.post(fragmentDecoded{Base: events.NewBase(kindFragmentDecoded), epoch: job.epoch, buffer: buffer})
		}
	}
}

// decodeFragment decodes a linear16 payload at the rate named by its MIME
// type, or at defaultRate when none is given.
func decodeFragment(payload events.AssistantAudioPayload, defaultRate int) (audio.Buffer, error) {
	rate := defaultRate
	if payload.MIMEType != "" {
		mediaType, params, err := mime.ParseMediaType(payload.MIMEType)
		if err != nil {
			return audio.Buffer{}, &audio.CodecError{Reason: "malformed mime type", Err: err}
		}
		if mediaType != "audio/pcm" && mediaType != "audio/l16" {
			return audio.Buffer{}, &audio.CodecError{Reason: fmt.Sprintf("unsupported media type %q", mediaType)}
		}
		if value, ok := params["rate"]; ok {
			rate, err = strconv.Atoi(value)
			if err != nil {
				return audio.Buffer{}, &audio.CodecError{Reason: "malformed sample rate", Err: err}
			}
		}
	}

	return audio.DecodeBase64Linear16(payload.Data, rate)
}

func (s *session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.o.endSession(s, StateDisconnected, nil)
			return
		case event := <-s.inbox:
			if !s.handle(event) {
				return
			}
		}
	}
}

// handle applies one event to the session state. It reports false once the
// session has ended.
func (s *session) handle(event events.Event) bool {
	switch typedEvent := event.(type) {
	case messageReceived:
		for _, routed := range typedEvent.routed {
			if !s.handle(routed) {
				return false
			}
		}
		return true
	case fragmentDecoded:
		s.schedule(typedEvent)
		return true
	case playbackUnitEnded:
		s.scheduler.unitEnded(typedEvent.unit)
		return true
	case events.SessionFailed:
		s.o.endSession(s, StateError, typedEvent.Err)
		return false
	}

	s.o.emit(event)

	switch typedEvent := event.(type) {
	case events.SessionOpened:
		s.o.sessionOpened(s)
	case events.SessionClosed:
		s.o.endSession(s, StateDisconnected, nil)
		return false
	case events.UserTranscriptDelta:
		s.turn.appendInput(typedEvent.Delta)
	case events.AssistantTranscriptDelta:
		s.turn.appendOutput(typedEvent.Delta)
	case events.AssistantGroundingUpdated:
		s.turn.setGrounding(typedEvent.Metadata)
	case events.TurnCompleted:
		if messages := s.turn.complete(time.Now()); messages != nil {
			s.o.appendTranscripts(s, messages)
		}
	case events.AssistantAudioPayload:
		s.queueDecode(typedEvent)
	case events.AssistantPlaybackInterrupted:
		s.interrupt()
	}
	return true
}

func (s *session) queueDecode(payload events.AssistantAudioPayload) {
	select {
	case s.decodeQueue <- decodeJob{epoch: s.epoch, payload: payload}:
	default:
		s.o.metrics.fragmentDropped(dropReasonBacklog)
		logger.Warn("dropping speech fragment, decode queue is full", "queue_size", cap(s.decodeQueue))
	}
}

func (s *session) schedule(fragment fragmentDecoded) {
	if fragment.epoch != s.epoch {
		s.o.metrics.fragmentDropped(dropReasonStale)
		return
	}

	unit, err := s.scheduler.schedule(fragment.buffer)
	if err != nil {
		s.o.metrics.fragmentDropped(dropReasonSchedule)
		logger.Warn("dropping speech fragment", "error", err)
		return
	}
	s.o.metrics.fragmentScheduled()
	logger.Debug("scheduled speech fragment", "start", unit.start, "duration", unit.duration)
}

func (s *session) interrupt() {
	s.epoch++
	stopped := s.scheduler.interrupt()
	s.o.metrics.interrupted()

	_, span := tracer.Start(s.ctx, "interrupt playback")
	span.SetAttributes(attribute.String("session.id", s.id), attribute.Int("stopped_units", stopped))
	span.End()
}
