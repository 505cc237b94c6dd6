package jobs

import (
	"sync"

	"videofetch/internal/domain"
)

// subscriberBuffer bounds how many undelivered events one subscriber
// may hold before updates are dropped for it.
const subscriberBuffer = 16

type subscriber struct {
	ch     chan domain.ProgressEvent
	closed bool
}

// Broadcaster fans one job's progress events out to its current
// subscribers. Publishing never blocks the job runner: a stalled
// subscriber loses updates instead of queueing them unboundedly.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a listener for one job. The first event on the
// returned channel is always the supplied current snapshot, so late
// joiners are never starved waiting for the next update. If the job is
// already terminal the channel is closed right after that snapshot.
// The returned func unsubscribes and is safe to call more than once.
func (b *Broadcaster) Subscribe(jobID string, first domain.ProgressEvent, terminal bool) (<-chan domain.ProgressEvent, func()) {
	sub := &subscriber{ch: make(chan domain.ProgressEvent, subscriberBuffer)}
	sub.ch <- first

	b.mu.Lock()
	defer b.mu.Unlock()

	if terminal {
		sub.closed = true
		close(sub.ch)
		return sub.ch, func() {}
	}

	set, ok := b.subs[jobID]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[jobID] = set
	}
	set[sub] = struct{}{}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[jobID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, jobID)
			}
		}
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	return sub.ch, unsubscribe
}

// Publish delivers an event to every current subscriber of jobID, in
// emission order, dropping it for subscribers whose buffer is full.
func (b *Broadcaster) Publish(jobID string, ev domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[jobID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Close sends the terminal event and closes every subscriber channel
// for the job. Subscribers arriving afterwards get the terminal
// snapshot directly from Subscribe.
func (b *Broadcaster) Close(jobID string, final domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[jobID] {
		select {
		case sub.ch <- final:
		default:
		}
		sub.closed = true
		close(sub.ch)
	}
	delete(b.subs, jobID)
}
