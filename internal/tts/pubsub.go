package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Publisher is the narrow pub/sub transport contract PubSubBackend is built
// on. No MQTT client library exists anywhere in this module's example
// corpus, so the default implementation (InProcessBroker) is an in-process
// channel broker matching the topic layout (say/cancel/status) a real MQTT
// client would use; swap in a real github.com/eclipse/paho.mqtt.golang (or
// similar) Publisher when deploying against an actual broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string) (<-chan []byte, error)
}

const (
	topicSay    = "coglet/tts/say"
	topicCancel = "coglet/tts/cancel"
	topicStatus = "coglet/tts/status"
)

type sayCommand struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type cancelCommand struct {
	ID string `json:"id"` // "" or "last" cancels the most recent utterance
}

type statusMessage struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// PubSubBackend implements Backend over a Publisher.
type PubSubBackend struct {
	pub      Publisher
	events   chan Event
	lastID   string
	mu       sync.Mutex
}

// NewPubSubBackend subscribes to the status topic and returns a ready
// Backend.
func NewPubSubBackend(pub Publisher) (*PubSubBackend, error) {
	statusCh, err := pub.Subscribe(topicStatus)
	if err != nil {
		return nil, fmt.Errorf("tts: subscribe status: %w", err)
	}

	b := &PubSubBackend{pub: pub, events: make(chan Event, 16)}
	go b.relayStatus(statusCh)
	return b, nil
}

func (b *PubSubBackend) relayStatus(statusCh <-chan []byte) {
	for raw := range statusCh {
		var msg statusMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		b.events <- Event{ID: msg.ID, Kind: parseKind(msg.Kind)}
	}
}

func parseKind(s string) EventKind {
	switch s {
	case "READY":
		return Ready
	case "START":
		return Start
	case "SPEAKING":
		return Speaking
	case "DONE":
		return Done
	case "CANCELLED":
		return Cancelled
	default:
		return Error
	}
}

// Say publishes a say command. id is generated if empty.
func (b *PubSubBackend) Say(ctx context.Context, id, text string) error {
	if id == "" {
		id = uuid.NewString()
	}
	payload, err := json.Marshal(sayCommand{ID: id, Text: text})
	if err != nil {
		return fmt.Errorf("tts: marshal say command: %w", err)
	}
	b.mu.Lock()
	b.lastID = id
	b.mu.Unlock()
	return b.pub.Publish(topicSay, payload)
}

// Cancel publishes a cancel command; id="" cancels the most recently said
// utterance.
func (b *PubSubBackend) Cancel(id string) error {
	if id == "" {
		b.mu.Lock()
		id = b.lastID
		b.mu.Unlock()
	}
	payload, err := json.Marshal(cancelCommand{ID: id})
	if err != nil {
		return fmt.Errorf("tts: marshal cancel command: %w", err)
	}
	return b.pub.Publish(topicCancel, payload)
}

// Events returns the lifecycle event stream.
func (b *PubSubBackend) Events() <-chan Event { return b.events }

// Close is a no-op; the broker owns subscription lifetime.
func (b *PubSubBackend) Close() error { return nil }
