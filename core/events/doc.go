// Package events defines the typed event contract of a realtime session.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_playback.*
//   - turn_state.*
//
// Semantics used across the package:
//
//   - Delta: append-only text piece emitted in arrival order.
//   - Updated: replacement of a previously delivered value.
//   - Payload: encoded media as delivered by the remote session.
//
// session events
//
//   - SessionOpened (session.opened): the remote session finished its setup.
//   - SessionClosed (session.closed): the remote session closed cleanly.
//   - SessionFailed (session.failed): the session could not continue.
//
// user_input events
//
//   - UserAudioFrame (user_input.audio_frame): one fixed-size capture window.
//   - UserTranscriptDelta (user_input.transcript_delta): transcription of
//     the user's speech.
//
// assistant_response events
//
//   - AssistantTranscriptDelta (assistant_response.transcript_delta):
//     transcription of the synthesized speech.
//   - AssistantGroundingUpdated (assistant_response.grounding_updated):
//     citations for the current turn; replaces any earlier value.
//   - AssistantAudioPayload (assistant_response.audio_payload): base64
//     encoded linear16 speech fragment.
//
// assistant_playback events
//
//   - AssistantPlaybackInterrupted (assistant_playback.interrupted): the
//     user spoke over playback; everything scheduled must stop.
//
// turn_state events
//
//   - TurnCompleted (turn_state.completed): the exchange ended.
//   - TranscriptAppended (turn_state.transcript_appended): messages frozen
//     from a completed turn were added to the transcript log.
package events
