package realtime

import "sync"

// MessageLog keeps received chat messages in arrival order. It never drops
// or deduplicates entries.
type MessageLog struct {
	mu       sync.RWMutex
	messages []ChatMessage
}

func (l *MessageLog) Append(msg ChatMessage) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Messages returns a copy of the log.
func (l *MessageLog) Messages() []ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]ChatMessage(nil), l.messages...)
}
