package events

const (
	// KindUserAudioFrame identifies a raw capture window.
	KindUserAudioFrame Kind = "user_input.audio_frame"
	// KindUserTranscriptDelta identifies transcribed user speech.
	KindUserTranscriptDelta Kind = "user_input.transcript_delta"
)

// UserAudioFrame carries one capture window before encoding.
type UserAudioFrame struct {
	Base
	Samples []float32
}

// NewUserAudioFrame creates a user input audio frame event.
func NewUserAudioFrame(samples []float32) UserAudioFrame {
	return UserAudioFrame{Base: NewBase(KindUserAudioFrame), Samples: samples}
}

// UserTranscriptDelta carries text to append to the user's side of the
// current turn.
type UserTranscriptDelta struct {
	Base
	Delta string
}

// NewUserTranscriptDelta creates a user transcript delta event.
func NewUserTranscriptDelta(delta string) UserTranscriptDelta {
	return UserTranscriptDelta{Base: NewBase(KindUserTranscriptDelta), Delta: delta}
}
