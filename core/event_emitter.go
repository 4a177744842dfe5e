package orchestration

import (
	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/events"
)

type callbacks struct {
	onConnectionState func(state ConnectionState)
	onTranscript      func(messages []conversations.Message)
	onVolume          func(level VolumeLevel)
	onError           func(err error)
	onEvent           func(event events.Event)
}

type eventEmitter func(events.Event)

func newCallbackEventEmitter(callbacks callbacks) eventEmitter {
	return func(event events.Event) {
		if callbacks.onEvent != nil {
			callbacks.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.TranscriptAppended:
			if callbacks.onTranscript != nil {
				callbacks.onTranscript(typedEvent.Messages)
			}
		case events.SessionFailed:
			if callbacks.onError != nil && typedEvent.Err != nil {
				callbacks.onError(typedEvent.Err)
			}
		}
	}
}
