package orchestration

import (
	"strings"
	"time"

	"github.com/koscakluka/ema-live/core/conversations"
)

// turnAccumulator collects everything the remote session says about the
// current exchange until the turn completes.
type turnAccumulator struct {
	input     strings.Builder
	output    strings.Builder
	grounding *conversations.GroundingMetadata
}

func (t *turnAccumulator) appendInput(delta string)  { t.input.WriteString(delta) }
func (t *turnAccumulator) appendOutput(delta string) { t.output.WriteString(delta) }

// setGrounding replaces, never merges, the citations of the current turn.
func (t *turnAccumulator) setGrounding(grounding *conversations.GroundingMetadata) {
	t.grounding = grounding
}

func (t *turnAccumulator) isEmpty() bool {
	return t.input.Len() == 0 && t.output.Len() == 0
}

// complete freezes the turn and resets the accumulator. When either side has
// text both a user and a model message are returned, user first, even if the
// other side is empty. Nothing is returned for a turn without text.
func (t *turnAccumulator) complete(now time.Time) []conversations.Message {
	defer t.reset()

	if t.isEmpty() {
		return nil
	}

	pair := conversations.NewTurnMessages(t.input.String(), t.output.String(), t.grounding, now)
	return pair[:]
}

func (t *turnAccumulator) reset() {
	t.input.Reset()
	t.output.Reset()
	t.grounding = nil
}
