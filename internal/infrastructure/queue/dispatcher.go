package queue

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

// Dispatcher fans provider state changes out to subscribers. Each subscriber
// gets its own mailbox and goroutine, so one slow listener never reorders or
// delays events for another and every listener sees events in publish order.
//
// Publish only appends to mailboxes under mu and never waits for a listener.
type Dispatcher struct {
	mu      sync.Mutex
	workers map[int]*mailbox
	nextID  int
	// current is replayed to new subscribers once the first state is known.
	current *domain.ProviderPrincipal
	known   bool
	closed  bool
	wg      sync.WaitGroup
	log     zerolog.Logger
}

type stateEvent struct {
	principal *domain.ProviderPrincipal
}

// mailbox is an unbounded per-subscriber queue. Its fields are guarded by
// Dispatcher.mu; wake holds at most one pending signal.
type mailbox struct {
	pending []stateEvent
	wake    chan struct{}
	// done stops the worker once pending is drained.
	done bool
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

// push must be called with Dispatcher.mu held.
func (m *mailbox) push(ev stateEvent) {
	m.pending = append(m.pending, ev)
	m.signal()
}

func (m *mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		workers: make(map[int]*mailbox),
		log:     log,
	}
}

// Subscribe registers fn. If a state has already been published, fn receives
// it first.
func (d *Dispatcher) Subscribe(fn ports.StateChangeFunc) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return func() {}
	}

	id := d.nextID
	d.nextID++
	mb := newMailbox()
	d.workers[id] = mb
	if d.known {
		mb.push(stateEvent{principal: clonePrincipal(d.current)})
	}

	d.wg.Add(1)
	go d.runWorker(id, mb, fn)

	return func() { d.remove(id) }
}

// Publish records p as the current state and enqueues it for every
// subscriber. A nil p means signed out.
func (d *Dispatcher) Publish(p *domain.ProviderPrincipal) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.current = clonePrincipal(p)
	d.known = true
	for _, mb := range d.workers {
		mb.push(stateEvent{principal: clonePrincipal(p)})
	}
}

// Current returns the last published state and whether one exists.
func (d *Dispatcher) Current() (*domain.ProviderPrincipal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return clonePrincipal(d.current), d.known
}

// Close stops every worker after it drained its queue.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for id, mb := range d.workers {
		mb.done = true
		mb.signal()
		delete(d.workers, id)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// remove drops the subscriber together with anything still queued for it.
func (d *Dispatcher) remove(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mb, ok := d.workers[id]; ok {
		mb.pending = nil
		mb.done = true
		mb.signal()
		delete(d.workers, id)
	}
}

func (d *Dispatcher) runWorker(id int, mb *mailbox, fn ports.StateChangeFunc) {
	defer d.wg.Done()
	for range mb.wake {
		d.mu.Lock()
		batch := mb.pending
		mb.pending = nil
		done := mb.done
		d.mu.Unlock()

		for _, ev := range batch {
			d.deliver(id, ev, fn)
		}
		if done {
			d.mu.Lock()
			drained := len(mb.pending) == 0
			d.mu.Unlock()
			if drained {
				return
			}
		}
	}
}

func (d *Dispatcher) deliver(id int, ev stateEvent, fn ports.StateChangeFunc) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Interface("panic", r).
				Int("subscriber_id", id).
				Msg("state change listener panicked")
		}
	}()
	fn(ev.principal)
}

func clonePrincipal(p *domain.ProviderPrincipal) *domain.ProviderPrincipal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
