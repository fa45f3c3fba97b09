package chatclient

import (
	"sync"
	"time"
)

// DefaultTypingIdle is how long after the last keystroke typing stops.
const DefaultTypingIdle = 2 * time.Second

// TypingDebouncer turns keystrokes into one start signal and one stop signal.
// Every keystroke restarts the idle timer; stop fires after idle of silence or on Flush.
type TypingDebouncer struct {
	idle    time.Duration
	onStart func()
	onStop  func()

	mu     sync.Mutex
	active bool
	gen    uint64
	timer  *time.Timer
}

func NewTypingDebouncer(idle time.Duration, onStart, onStop func()) *TypingDebouncer {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingDebouncer{idle: idle, onStart: onStart, onStop: onStop}
}

func (d *TypingDebouncer) Keystroke() {
	d.mu.Lock()
	started := !d.active
	d.active = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, func() { d.expire(gen) })
	d.mu.Unlock()

	if started {
		d.onStart()
	}
}

// Flush stops typing now, typically because the message was sent.
func (d *TypingDebouncer) Flush() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	d.onStop()
}

func (d *TypingDebouncer) expire(gen uint64) {
	d.mu.Lock()
	if !d.active || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.mu.Unlock()

	d.onStop()
}
