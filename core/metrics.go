package orchestration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what flows through a session. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	FramesSent         prometheus.Counter
	FramesDropped      prometheus.Counter
	FragmentsScheduled prometheus.Counter
	FragmentsDropped   *prometheus.CounterVec
	Interruptions      prometheus.Counter
	TurnsCompleted     prometheus.Counter
	StateTransitions   *prometheus.CounterVec
}

// NewMetrics creates the session metrics and registers them on reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ema_live",
			Name:      "capture_frames_sent_total",
			Help:      "Capture frames submitted to the remote session",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ema_live",
			Name:      "capture_frames_dropped_total",
			Help:      "Capture frames dropped because the send queue was full or the session failed",
		}),
		FragmentsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ema_live",
			Name:      "playback_fragments_scheduled_total",
			Help:      "Speech fragments scheduled for playback",
		}),
		FragmentsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ema_live",
			Name:      "playback_fragments_dropped_total",
			Help:      "Speech fragments that were never scheduled",
		}, []string{"reason"}),
		Interruptions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ema_live",
			Name:      "playback_interruptions_total",
			Help:      "Interruptions received from the remote session",
		}),
		TurnsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ema_live",
			Name:      "turns_completed_total",
			Help:      "Turns that produced transcript messages",
		}),
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ema_live",
			Name:      "connection_state_transitions_total",
			Help:      "Connection state transitions by target state",
		}, []string{"state"}),
	}
}

func (m *Metrics) frameSent() {
	if m != nil {
		m.FramesSent.Inc()
	}
}

func (m *Metrics) frameDropped() {
	if m != nil {
		m.FramesDropped.Inc()
	}
}

func (m *Metrics) fragmentScheduled() {
	if m != nil {
		m.FragmentsScheduled.Inc()
	}
}

const (
	dropReasonCodec    = "codec"
	dropReasonStale    = "stale"
	dropReasonBacklog  = "backlog"
	dropReasonSchedule = "schedule"
)

func (m *Metrics) fragmentDropped(reason string) {
	if m != nil {
		m.FragmentsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) interrupted() {
	if m != nil {
		m.Interruptions.Inc()
	}
}

func (m *Metrics) turnCompleted() {
	if m != nil {
		m.TurnsCompleted.Inc()
	}
}

func (m *Metrics) stateChanged(state ConnectionState) {
	if m != nil {
		m.StateTransitions.WithLabelValues(state.String()).Inc()
	}
}
