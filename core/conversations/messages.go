package conversations

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type Sender string

const (
	SenderUser  Sender = "user"
	SenderModel Sender = "model"
)

// Message is one side of a completed turn. It is frozen once appended to a
// Log.
type Message struct {
	ID         string
	Sender     Sender
	Text       string
	IsComplete bool
	Timestamp  time.Time

	// GroundingMetadata is only ever set on model messages and is carried
	// exactly as the remote service delivered it.
	GroundingMetadata *GroundingMetadata
}

// GroundingMetadata is the set of sources the remote service cited for a
// response.
type GroundingMetadata struct {
	GroundingChunks []GroundingChunk `json:"groundingChunks,omitempty"`
}

type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty"`
}

type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Sources returns the web sources in citation order, skipping chunks that
// carry no web reference.
func (g *GroundingMetadata) Sources() []WebSource {
	if g == nil {
		return nil
	}

	sources := make([]WebSource, 0, len(g.GroundingChunks))
	for _, chunk := range g.GroundingChunks {
		if chunk.Web != nil {
			sources = append(sources, *chunk.Web)
		}
	}
	return sources
}

// NewTurnMessages freezes one exchange into its user and model messages, in
// that order.
func NewTurnMessages(userText, modelText string, grounding *GroundingMetadata, now time.Time) [2]Message {
	return [2]Message{
		{
			ID:         uuid.NewString(),
			Sender:     SenderUser,
			Text:       userText,
			IsComplete: true,
			Timestamp:  now,
		},
		{
			ID:                uuid.NewString(),
			Sender:            SenderModel,
			Text:              modelText,
			IsComplete:        true,
			Timestamp:         now,
			GroundingMetadata: grounding,
		},
	}
}

// Clone returns a deep copy so callers can hold onto metadata without
// sharing it with the log.
func (g *GroundingMetadata) Clone() *GroundingMetadata {
	if g == nil {
		return nil
	}

	clone := &GroundingMetadata{}
	if err := copier.CopyWithOption(clone, g, copier.Option{DeepCopy: true}); err != nil {
		return g
	}
	return clone
}
