package platform

import (
	"errors"
	"slices"
	"sync"
)

// MessageHandler is the callback signature for transport messages.
type MessageHandler = func(topic string, payload []byte) error

// Transport is the MQTT surface the platform needs. *mqtt.Client satisfies it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

type topicHandlers struct {
	qos      byte
	handlers map[uint64]MessageHandler
	order    []uint64
}

// Mux lets several entities subscribe to the same topic.
//
// The underlying transport keeps one handler per topic, so Mux holds one
// transport subscription per topic and fans messages out to every local
// handler in subscription order. The transport subscription is dropped
// when the last local handler unsubscribes.
//
// The QoS of a topic is fixed by its first subscriber.
type Mux struct {
	transport Transport

	// opMu serialises transport subscribe/unsubscribe calls. It is never
	// taken by the message path.
	opMu sync.Mutex

	mu     sync.RWMutex
	topics map[string]*topicHandlers
	nextID uint64
}

// NewMux wraps transport.
func NewMux(transport Transport) *Mux {
	return &Mux{
		transport: transport,
		topics:    make(map[string]*topicHandlers),
	}
}

// Publish forwards to the transport.
func (m *Mux) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return m.transport.Publish(topic, payload, qos, retained)
}

// IsConnected forwards to the transport.
func (m *Mux) IsConnected() bool {
	return m.transport.IsConnected()
}

// Subscribe adds handler for topic.
//
// Returns:
//   - func() error: Removes this handler; safe to call more than once
//   - error: The transport error if this was the first handler and the
//     broker subscription failed
func (m *Mux) Subscribe(topic string, qos byte, handler MessageHandler) (func() error, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	th, exists := m.topics[topic]
	if !exists {
		th = &topicHandlers{qos: qos, handlers: make(map[uint64]MessageHandler)}
		m.topics[topic] = th
	}
	m.nextID++
	id := m.nextID
	th.handlers[id] = handler
	th.order = append(th.order, id)
	m.mu.Unlock()

	if !exists {
		if err := m.transport.Subscribe(topic, qos, m.dispatcher(topic)); err != nil {
			m.mu.Lock()
			delete(m.topics, topic)
			m.mu.Unlock()
			return nil, err
		}
	}

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() { err = m.remove(topic, id) })
		return err
	}, nil
}

// TopicCount returns the number of topics with at least one handler.
func (m *Mux) TopicCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics)
}

func (m *Mux) remove(topic string, id uint64) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	th, ok := m.topics[topic]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(th.handlers, id)
	th.order = slices.DeleteFunc(th.order, func(v uint64) bool { return v == id })
	last := len(th.handlers) == 0
	if last {
		delete(m.topics, topic)
	}
	m.mu.Unlock()

	if last {
		return m.transport.Unsubscribe(topic)
	}
	return nil
}

// dispatcher returns the transport handler for topic.
func (m *Mux) dispatcher(topic string) MessageHandler {
	return func(msgTopic string, payload []byte) error {
		m.mu.RLock()
		th, ok := m.topics[topic]
		var handlers []MessageHandler
		if ok {
			handlers = make([]MessageHandler, 0, len(th.order))
			for _, id := range th.order {
				handlers = append(handlers, th.handlers[id])
			}
		}
		m.mu.RUnlock()

		var errs []error
		for _, h := range handlers {
			if err := h(msgTopic, payload); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
