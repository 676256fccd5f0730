package tts

import "sync"

// InProcessBroker is the default Publisher: an in-process fan-out over
// channels, standing in for an MQTT broker when none is configured. Useful
// for single-process deployments and tests.
type InProcessBroker struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

// NewInProcessBroker returns an empty broker.
func NewInProcessBroker() *InProcessBroker {
	return &InProcessBroker{subs: make(map[string][]chan []byte)}
}

func (b *InProcessBroker) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *InProcessBroker) Subscribe(topic string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 16)
	b.subs[topic] = append(b.subs[topic], ch)
	return ch, nil
}
