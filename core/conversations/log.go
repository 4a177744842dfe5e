package conversations

import "sync"

// Log is the ordered, append-only transcript of a conversation. It is safe
// for concurrent use; readers always receive deep copies.
type Log struct {
	mu       sync.RWMutex
	messages []Message
}

func (l *Log) Append(messages ...Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, messages...)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Snapshot returns a deep copy of the log, oldest message first.
func (l *Log) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snapshot := make([]Message, len(l.messages))
	copy(snapshot, l.messages)
	for i := range snapshot {
		snapshot[i].GroundingMetadata = snapshot[i].GroundingMetadata.Clone()
	}
	return snapshot
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}
