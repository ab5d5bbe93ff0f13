package broadcast

import (
	"log/slog"
	"sync"
	"time"
)

// maxConsecutiveFailures is the slow-client disconnect threshold: balances
// false positives from brief hiccups against wasting resources on a client
// that genuinely cannot keep up.
const maxConsecutiveFailures = 3

// Socket is the minimal surface the broadcast manager needs from a
// connected client. wsserver.Client implements this.
type Socket interface {
	ID() string
	Enqueue(msg []byte) bool // false means the send queue was full
	Close(code int, reason string)
}

type subscriber struct {
	socket    Socket
	failures  int
	send      chan []byte
}

// Manager tracks topic subscriptions and delivers published messages via
// per-socket FIFO queues, never blocking the publisher on a slow client.
// Grounded on the ws_poc broadcast's non-blocking select/default plus the
// pokerchain Hub's register/unregister/broadcast channel shape.
type Manager struct {
	mu       sync.Mutex
	byTopic  map[string]map[string]*subscriber // topic -> socketID -> subscriber
	byID     map[string]*subscriber
	topicsOf map[string]map[string]struct{} // socketID -> topics
	log      *slog.Logger
}

// NewManager builds an empty broadcast manager.
func NewManager(log *slog.Logger) *Manager {
	return &Manager{
		byTopic:  make(map[string]map[string]*subscriber),
		byID:     make(map[string]*subscriber),
		topicsOf: make(map[string]map[string]struct{}),
		log:      log,
	}
}

func (m *Manager) subFor(s Socket) *subscriber {
	sub, ok := m.byID[s.ID()]
	if !ok {
		sub = &subscriber{socket: s}
		m.byID[s.ID()] = sub
		m.topicsOf[s.ID()] = make(map[string]struct{})
	}
	return sub
}

// Subscribe adds socket s to each topic in topics.
func (m *Manager) Subscribe(s Socket, topics []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := m.subFor(s)
	for _, t := range topics {
		if m.byTopic[t] == nil {
			m.byTopic[t] = make(map[string]*subscriber)
		}
		m.byTopic[t][s.ID()] = sub
		m.topicsOf[s.ID()][t] = struct{}{}
	}
}

// UnsubscribeFromTopic removes s from a single topic.
func (m *Manager) UnsubscribeFromTopic(s Socket, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byTopic[topic], s.ID())
	if len(m.byTopic[topic]) == 0 {
		delete(m.byTopic, topic)
	}
	delete(m.topicsOf[s.ID()], topic)
}

// Unsubscribe removes s from every topic and its registry entirely.
func (m *Manager) Unsubscribe(s Socket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for t := range m.topicsOf[s.ID()] {
		delete(m.byTopic[t], s.ID())
		if len(m.byTopic[t]) == 0 {
			delete(m.byTopic, t)
		}
	}
	delete(m.topicsOf, s.ID())
	delete(m.byID, s.ID())
}

// IsSubscribed reports whether s is subscribed to topic.
func (m *Manager) IsSubscribed(s Socket, topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.topicsOf[s.ID()][topic]
	return ok
}

// Subscriptions returns the requesting socket's own current topics only.
func (m *Manager) Subscriptions(s Socket) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.topicsOf[s.ID()]))
	for t := range m.topicsOf[s.ID()] {
		out = append(out, t)
	}
	return out
}

// PublishToTopic enqueues msg for every socket currently subscribed to
// topic. A socket whose queue is full is not blocked on; it accumulates a
// consecutive-failure count and is disconnected after
// maxConsecutiveFailures, mirroring the non-blocking slow-client policy.
func (m *Manager) PublishToTopic(topic string, msg []byte) {
	m.mu.Lock()
	subs := make([]*subscriber, 0, len(m.byTopic[topic]))
	for _, sub := range m.byTopic[topic] {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		if sub.socket.Enqueue(msg) {
			sub.failures = 0
			continue
		}
		sub.failures++
		if sub.failures == 1 {
			m.log.Warn("client is slow", "socket", sub.socket.ID(), "topic", topic)
		}
		if sub.failures >= maxConsecutiveFailures {
			m.log.Warn("disconnecting slow client", "socket", sub.socket.ID(), "failures", sub.failures)
			sub.socket.Close(1008, "client too slow to process messages")
			m.Unsubscribe(sub.socket)
		}
	}
}

// DefaultFlushInterval is a suggested cadence for driving queued sends; the
// Manager itself holds no timer and does not read this constant — the
// wsserver write pump drains Enqueue'd messages continuously.
const DefaultFlushInterval = 50 * time.Millisecond
