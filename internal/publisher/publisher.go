// Package publisher implements best-effort event fan-out from a Thing to
// its subscribed clients, generalizing the teacher's Topic (name, subscriber
// list, broadcast-with-per-subscriber-error-tolerance) from a JSON-RPC topic
// keyed by topic name to a topic keyed by "thing-id/event-name".
package publisher

import (
	"fmt"
	"log"
	"sync"

	"github.com/tenzoki/wotbroker/internal/endpoint"
	"github.com/tenzoki/wotbroker/internal/frame"
	"github.com/tenzoki/wotbroker/internal/thing"
)

// Publisher owns one PubSub per topic; this is the one place an Endpoint
// is shared across goroutines, and it stays safe because PubSub guards its
// subscriber set with a lock and delivers over per-subscriber channels.
type Publisher struct {
	mu     sync.Mutex
	topics map[string]*endpoint.PubSub
	debug  bool
}

// New returns an empty Publisher.
func New(debug bool) *Publisher {
	return &Publisher{topics: make(map[string]*endpoint.PubSub), debug: debug}
}

// topicName builds the "thing-id/event-name" key a client's subscription
// and a Thing's publish both address.
func topicName(thingID, event string) string {
	return fmt.Sprintf("%s/%s", thingID, event)
}

// Subscribe returns an Endpoint that receives every payload published under
// (thingID, event), creating the underlying PubSub on first use.
func (p *Publisher) Subscribe(thingID, event, subscriberID string) endpoint.Endpoint {
	return p.topic(topicName(thingID, event)).Subscribe(subscriberID)
}

func (p *Publisher) topic(name string) *endpoint.PubSub {
	p.mu.Lock()
	defer p.mu.Unlock()
	ps, ok := p.topics[name]
	if !ok {
		ps = endpoint.NewPubSub()
		p.topics[name] = ps
	}
	return ps
}

// BindThing installs a thing.PublishFunc on t that fans payloads out to
// subscribers of the "thing-id/event-name" topic, wrapped as a 5-part REPLY
// frame so subscribers receive the same multipart shape as an operation reply.
func (p *Publisher) BindThing(thingID string, t thing.Thing) {
	t.SetPublish(func(event string, payload []byte) {
		reply := &frame.Reply{
			Type: frame.Reply,
			Data: frame.Payload{ContentType: "application/json", Bytes: payload},
		}
		p.topic(topicName(thingID, event)).Publish(reply.Build())
		if p.debug {
			log.Printf("publisher: %s/%s: published %d bytes", thingID, event, len(payload))
		}
	})
}
