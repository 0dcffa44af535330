package metrics

import "sync"

// Event names used across the relay. Keeping them in one place makes the
// /metrics output greppable and avoids typo'd counters.
const (
	RoomCreated        = "room_created"
	ListenerJoined     = "listener_joined"
	RoomNotFound       = "room_not_found"
	SignalForwarded    = "signal_forwarded"
	ChatDelivered      = "chat_delivered"
	TargetUnreachable  = "target_unreachable"
	MalformedMessage   = "malformed_message"
	UnknownMessageType = "unknown_message_type"
	SendFailed         = "send_failed"
	RateLimited        = "rate_limited"
	RoomReaped         = "room_reaped"
	RoomReapedMaxAge   = "room_reaped_max_age"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// The relay's entire observable surface is a handful of counters, so an
// in-process map exposed via the Prometheus text handler is enough.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Add(name string, delta uint64) {
	if m == nil || delta == 0 {
		return
	}
	m.mu.Lock()
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
