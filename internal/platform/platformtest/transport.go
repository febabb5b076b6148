// Package platformtest provides an in-memory MQTT transport for tests of
// entities built on the platform package.
package platformtest

import (
	"errors"
	"sync"
)

// ErrNotSubscribed is returned by Deliver for a topic nobody subscribed to.
var ErrNotSubscribed = errors.New("platformtest: topic not subscribed")

// Message is one recorded publish.
type Message struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

type subscription struct {
	qos     byte
	handler func(topic string, payload []byte) error
}

// Transport records publishes and lets tests deliver messages to
// subscribed handlers. It satisfies platform.Transport.
type Transport struct {
	mu            sync.Mutex
	published     []Message
	subs          map[string]subscription
	subscribeLog  []string
	unsubscribed  []string
	disconnected  bool
	PublishErr    error
	SubscribeErrs map[string]error
}

// NewTransport creates a connected transport.
func NewTransport() *Transport {
	return &Transport{
		subs:          make(map[string]subscription),
		SubscribeErrs: make(map[string]error),
	}
}

// Publish records the message.
func (t *Transport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.PublishErr != nil {
		return t.PublishErr
	}
	t.published = append(t.published, Message{
		Topic:    topic,
		Payload:  string(payload),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

// Subscribe stores handler for topic, replacing any previous one.
func (t *Transport) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.SubscribeErrs[topic]; err != nil {
		return err
	}
	t.subs[topic] = subscription{qos: qos, handler: handler}
	t.subscribeLog = append(t.subscribeLog, topic)
	return nil
}

// Unsubscribe drops the handler for topic.
func (t *Transport) Unsubscribe(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, topic)
	t.unsubscribed = append(t.unsubscribed, topic)
	return nil
}

// IsConnected reports false after SetConnected(false).
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.disconnected
}

// SetConnected changes the reported connection state.
func (t *Transport) SetConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnected = !connected
}

// Deliver invokes the handler subscribed to topic on the calling goroutine.
func (t *Transport) Deliver(topic, payload string) error {
	t.mu.Lock()
	sub, ok := t.subs[topic]
	t.mu.Unlock()
	if !ok {
		return ErrNotSubscribed
	}
	return sub.handler(topic, []byte(payload))
}

// Published returns a copy of every recorded publish.
func (t *Transport) Published() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.published))
	copy(out, t.published)
	return out
}

// PublishedTo returns the payloads published to topic, in order.
func (t *Transport) PublishedTo(topic string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, m := range t.published {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

// Reset forgets recorded publishes.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.published = nil
}

// Subscribed reports whether topic currently has a handler.
func (t *Transport) Subscribed(topic string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.subs[topic]
	return ok
}

// SubscribedQoS returns the QoS topic was subscribed with.
func (t *Transport) SubscribedQoS(topic string) (byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := t.subs[topic]
	return sub.qos, ok
}

// SubscribeCalls returns every topic passed to Subscribe, in order.
func (t *Transport) SubscribeCalls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.subscribeLog))
	copy(out, t.subscribeLog)
	return out
}

// UnsubscribeCalls returns every topic passed to Unsubscribe, in order.
func (t *Transport) UnsubscribeCalls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.unsubscribed))
	copy(out, t.unsubscribed)
	return out
}
