package chatclient

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"drone_chat/internal/domain"
	"drone_chat/internal/protocol"
)

// pendingReadLimit caps read receipts held for messages not yet acknowledged.
const pendingReadLimit = 256

// OutboxEntry is the local copy of a message this client sent.
type OutboxEntry struct {
	TempID    string
	MessageID string
	Body      string
	Status    domain.MessageStatus
	Error     string
	CreatedAt time.Time
}

// Outbox tracks optimistic messages until the server confirms them. Entries
// are matched by tempId, never by content, and statuses only move forward.
type Outbox struct {
	mu      sync.Mutex
	entries map[string]*OutboxEntry
	order   []string
	byID    map[string]string
	// reads that arrived before the ack carrying the message id, oldest first
	pendingRead  map[string]struct{}
	pendingOrder []string
}

func NewOutbox() *Outbox {
	return &Outbox{
		entries:     make(map[string]*OutboxEntry),
		byID:        make(map[string]string),
		pendingRead: make(map[string]struct{}),
	}
}

// Add records a new outgoing message in status sending and returns it with a fresh tempId.
func (o *Outbox) Add(body string, now time.Time) OutboxEntry {
	entry := &OutboxEntry{
		TempID:    "temp-" + uuid.NewString(),
		Body:      strings.TrimSpace(body),
		Status:    domain.StatusSending,
		CreatedAt: now,
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[entry.TempID] = entry
	o.order = append(o.order, entry.TempID)
	return *entry
}

// Ack applies message-delivered.
func (o *Outbox) Ack(p protocol.MessageDeliveredPayload) (OutboxEntry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.entries[p.TempID]
	if !ok {
		return OutboxEntry{}, false
	}
	if p.MessageID != "" {
		entry.MessageID = p.MessageID
		o.byID[p.MessageID] = p.TempID
	}
	status := p.Status
	if status == "" {
		status = domain.StatusSent
	}
	advance(entry, status)
	if _, read := o.pendingRead[p.MessageID]; read {
		o.dropPendingRead(p.MessageID)
		advance(entry, domain.StatusRead)
	}
	return *entry, true
}

// Fail applies message-failed.
func (o *Outbox) Fail(p protocol.MessageFailedPayload) (OutboxEntry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.entries[p.TempID]
	if !ok {
		return OutboxEntry{}, false
	}
	if advance(entry, domain.StatusFailed) {
		entry.Error = p.Error
	}
	return *entry, true
}

// MarkRead applies messages-read and returns the entries that changed.
func (o *Outbox) MarkRead(messageIDs []string) []OutboxEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	var changed []OutboxEntry
	for _, id := range messageIDs {
		tempID, ok := o.byID[id]
		if !ok {
			o.holdRead(id)
			continue
		}
		entry := o.entries[tempID]
		if advance(entry, domain.StatusRead) {
			changed = append(changed, *entry)
		}
	}
	return changed
}

// Resend drops a failed entry and queues its body again under a fresh tempId.
// Nothing is resent automatically.
func (o *Outbox) Resend(tempID string, now time.Time) (OutboxEntry, bool) {
	o.mu.Lock()
	entry, ok := o.entries[tempID]
	if !ok || entry.Status != domain.StatusFailed {
		o.mu.Unlock()
		return OutboxEntry{}, false
	}
	body := entry.Body
	delete(o.entries, tempID)
	for i, id := range o.order {
		if id == tempID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	o.mu.Unlock()

	return o.Add(body, now), true
}

// Get returns the entry for tempID.
func (o *Outbox) Get(tempID string) (OutboxEntry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.entries[tempID]
	if !ok {
		return OutboxEntry{}, false
	}
	return *entry, true
}

// Entries returns every entry in send order.
func (o *Outbox) Entries() []OutboxEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]OutboxEntry, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, *o.entries[id])
	}
	return out
}

// holdRead remembers a read receipt for an id this client has not seen acked.
// Receipts are only held while some message awaits its ack; an admin client
// also receives receipts for other admins' messages, which never match.
func (o *Outbox) holdRead(id string) {
	if _, ok := o.pendingRead[id]; ok || !o.awaitingAck() {
		return
	}
	if len(o.pendingOrder) >= pendingReadLimit {
		delete(o.pendingRead, o.pendingOrder[0])
		o.pendingOrder = o.pendingOrder[1:]
	}
	o.pendingRead[id] = struct{}{}
	o.pendingOrder = append(o.pendingOrder, id)
}

func (o *Outbox) dropPendingRead(id string) {
	delete(o.pendingRead, id)
	for i, pending := range o.pendingOrder {
		if pending == id {
			o.pendingOrder = append(o.pendingOrder[:i], o.pendingOrder[i+1:]...)
			break
		}
	}
}

func (o *Outbox) awaitingAck() bool {
	for _, entry := range o.entries {
		if entry.MessageID == "" && entry.Status == domain.StatusSending {
			return true
		}
	}
	return false
}

func advance(entry *OutboxEntry, next domain.MessageStatus) bool {
	if !entry.Status.CanAdvanceTo(next) {
		return false
	}
	entry.Status = next
	return true
}
