package events

import (
	"strings"
	"time"
)

// Kind names an event as "<domain>.<name>", for example
// "assistant_response.transcript_delta".
type Kind string

// Domain returns the part of the kind before the first dot.
func (k Kind) Domain() string {
	domain, _, _ := strings.Cut(string(k), ".")
	return domain
}

type Event interface {
	Kind() Kind
	// Timestamp is when the event was created on this side of the wire.
	Timestamp() time.Time
}

// Base is embedded by every event to satisfy Event.
type Base struct {
	kind      Kind
	createdAt time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, createdAt: time.Now()}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.createdAt }
