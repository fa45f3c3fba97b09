package chatclient

import (
	"sync"

	"drone_chat/internal/domain"
)

// Timeline remembers which messages were already shown. A message that arrives
// while joining can reach the client as new-message and again inside
// conversation-history, so both paths go through one Timeline.
type Timeline struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[string]struct{})}
}

// Add reports whether msg has not been shown before and records it.
func (t *Timeline) Add(msg domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(msg.ID)
}

// Merge returns the history entries not shown yet, keeping their order.
func (t *Timeline) Merge(history []domain.Message) []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.Message, 0, len(history))
	for _, msg := range history {
		if t.add(msg.ID) {
			out = append(out, msg)
		}
	}
	return out
}

func (t *Timeline) add(id string) bool {
	if id == "" {
		return true
	}
	if _, ok := t.seen[id]; ok {
		return false
	}
	t.seen[id] = struct{}{}
	return true
}
