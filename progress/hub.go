// Package progress fans live sync log lines out to any number of stream
// subscribers while keeping a bounded backlog for late joiners.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity bounds the backlog kept for subscribers that join after
// lines were published.
const DefaultCapacity = 200

// ErrClosed is returned by Next once a subscription has been closed and its
// remaining queue drained.
var ErrClosed = errors.New("progress: subscription closed")

// Hub receives progress messages from the sync engine, timestamps them and
// delivers them to every subscriber. Publishing never blocks: each
// subscriber owns its queue, so a stalled stream cannot hold up a run or
// another stream.
type Hub struct {
	mu       sync.Mutex
	capacity int
	backlog  []string
	subs     map[*Subscription]struct{}

	now func() time.Time
}

// NewHub returns a hub whose backlog keeps at most capacity lines, oldest
// evicted first. Non-positive capacities fall back to DefaultCapacity.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
		now:      time.Now,
	}
}

// Publish timestamps msg as "[HH:MM:SS] msg", appends it to the backlog and
// hands it to every live subscriber in publish order.
func (h *Hub) Publish(msg string) {
	line := fmt.Sprintf("[%s] %s", h.now().Format("15:04:05"), msg)

	h.mu.Lock()
	h.backlog = append(h.backlog, line)
	if len(h.backlog) > h.capacity {
		h.backlog = append(h.backlog[:0], h.backlog[len(h.backlog)-h.capacity:]...)
	}
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.enqueue(line)
	}
}

// Publishf is Publish with fmt.Sprintf formatting.
func (h *Hub) Publishf(format string, args ...interface{}) {
	h.Publish(fmt.Sprintf(format, args...))
}

// Subscribe registers a new subscriber. Its queue starts with a snapshot of
// the backlog, so a late joiner replays recent history before live lines.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		hub:    h,
		signal: make(chan struct{}, 1),
	}

	h.mu.Lock()
	s.queue = append(s.queue, h.backlog...)
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	if len(s.queue) > 0 {
		s.notify()
	}
	return s
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Subscription is one consumer's private view of the hub: a FIFO queue of
// lines it has not read yet.
type Subscription struct {
	hub    *Hub
	signal chan struct{}

	mu     sync.Mutex
	queue  []string
	closed bool
}

// Next returns the next unread line. Queued lines are delivered even when
// ctx is already cancelled; once the queue is empty Next blocks until a new
// line arrives, ctx is done, or the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (string, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			line := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return line, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return "", ErrClosed
		}
		select {
		case <-s.signal:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Close unregisters the subscription from its hub. Other subscribers and the
// hub itself are unaffected; a blocked Next wakes up and returns ErrClosed
// after the queue drains.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.notify()
}

func (s *Subscription) enqueue(line string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, line)
	s.mu.Unlock()
	s.notify()
}

func (s *Subscription) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}
