package endpoint

import "sync"

// pubsubCapacity bounds each subscriber's inbox, the pubsub counterpart to
// the teacher's 100-entry Topic.Messages history buffer.
const pubsubCapacity = 100

// PubSub is a publish-only fan-out endpoint backing internal/publisher: one
// Publish reaches every currently-subscribed Endpoint. It generalizes the
// teacher's Topic type (Name, Subscribers []*Connection, broadcast-on-publish
// loop) from a set of live TCP connections to a set of generic Endpoints, and
// drops Topic's message-history buffer since events here have no replay
// requirement.
type PubSub struct {
	mu          sync.RWMutex
	subscribers map[string]*pubsubEndpoint
}

// NewPubSub returns an empty publish/subscribe hub.
func NewPubSub() *PubSub {
	return &PubSub{subscribers: make(map[string]*pubsubEndpoint)}
}

// Subscribe registers a new subscriber and returns its receiving Endpoint.
// id must be unique per subscriber; closing the returned Endpoint removes it.
func (p *PubSub) Subscribe(id string) Endpoint {
	ep := &pubsubEndpoint{id: id, hub: p, inbox: make(chan [][]byte, pubsubCapacity), closed: make(chan struct{})}
	p.mu.Lock()
	p.subscribers[id] = ep
	p.mu.Unlock()
	return ep
}

// Publish delivers parts to every current subscriber on a best-effort basis:
// a subscriber whose inbox is full is skipped rather than blocking the
// publisher. Delivery order across destinations is not guaranteed.
func (p *PubSub) Publish(parts [][]byte) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, sub := range p.subscribers {
		select {
		case sub.inbox <- parts:
		default:
		}
	}
}

func (p *PubSub) unsubscribe(id string) {
	p.mu.Lock()
	delete(p.subscribers, id)
	p.mu.Unlock()
}

// pubsubEndpoint is one subscriber's receive-only view of a PubSub hub.
type pubsubEndpoint struct {
	id    string
	hub   *PubSub
	inbox chan [][]byte

	closeOnce sync.Once
	closed    chan struct{}
}

// SendMultipart is not supported on a subscriber endpoint; publishing goes
// through PubSub.Publish so every subscriber receives the same frame.
func (e *pubsubEndpoint) SendMultipart(parts [][]byte) error {
	return errSendNotSupported
}

func (e *pubsubEndpoint) RecvMultipart() ([][]byte, error) {
	select {
	case parts, ok := <-e.inbox:
		if !ok {
			return nil, ErrClosed
		}
		return parts, nil
	case <-e.closed:
		return nil, ErrClosed
	}
}

func (e *pubsubEndpoint) Close() error {
	e.closeOnce.Do(func() {
		e.hub.unsubscribe(e.id)
		close(e.closed)
	})
	return nil
}

func (e *pubsubEndpoint) Address() string {
	return "pubsub://" + e.id
}
