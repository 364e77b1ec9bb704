package events

import (
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/monitoring"
)

// Handler receives dispatched payloads.
type Handler func(Payload)

// UnsubscribeFunc removes a subscription. Calling it more than once is a
// no-op.
type UnsubscribeFunc func()

// DefaultHistorySize is the history ring capacity when none is configured.
const DefaultHistorySize = 100

type subscription struct {
	key  uintptr // func identity, used to de-duplicate registration
	fn   Handler
	once bool
}

// Bus is the shell's publish/subscribe hub.
type Bus struct {
	mu        sync.Mutex
	listeners map[Type][]*subscription

	history     []Payload // ring buffer, oldest evicted first
	historyCap  int
	historyHead int // index of oldest entry
	historyLen  int

	log     *logging.Logger
	metrics *monitoring.Metrics
}

// Option configures a Bus.
type Option func(*Bus)

// WithHistorySize overrides the history ring capacity.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.historyCap = n
		}
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// NewBus creates a new event bus.
func NewBus(log *logging.Logger, opts ...Option) *Bus {
	b := &Bus{
		listeners:  make(map[Type][]*subscription),
		historyCap: DefaultHistorySize,
		log:        log.Named("events"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.history = make([]Payload, b.historyCap)
	return b
}

// Subscribe registers handler for eventType and returns an idempotent
// unsubscribe function. Registering the identical handler func twice for
// the same type has no additional effect: the first registration wins,
// including its delivery mode, and the returned remover targets it. To
// change a handler from persistent to once (or back), unsubscribe first.
func (b *Bus) Subscribe(eventType Type, handler Handler) UnsubscribeFunc {
	return b.subscribe(eventType, handler, false)
}

// SubscribeOnce registers handler for a single delivery; it is removed
// automatically after the first matching emit. De-duplication follows the
// same rule as Subscribe: if the func is already registered for the type,
// the existing subscription keeps its delivery mode and the returned
// remover targets it.
func (b *Bus) SubscribeOnce(eventType Type, handler Handler) UnsubscribeFunc {
	return b.subscribe(eventType, handler, true)
}

func (b *Bus) subscribe(eventType Type, handler Handler, once bool) UnsubscribeFunc {
	if handler == nil {
		return func() {}
	}
	if !eventType.Known() {
		b.log.Warn("subscription for unknown event type", zap.String("type", string(eventType)))
	}

	sub := &subscription{
		key:  reflect.ValueOf(handler).Pointer(),
		fn:   handler,
		once: once,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.listeners[eventType] {
		if existing.key == sub.key {
			// Same func already registered; hand back a remover for it.
			return b.removerFor(eventType, existing)
		}
	}
	b.listeners[eventType] = append(b.listeners[eventType], sub)
	return b.removerFor(eventType, sub)
}

// removerFor builds an idempotent unsubscribe closure for sub.
func (b *Bus) removerFor(eventType Type, sub *subscription) UnsubscribeFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.remove(eventType, sub)
		})
	}
}

// remove must be called with the lock held.
func (b *Bus) remove(eventType Type, sub *subscription) {
	subs := b.listeners[eventType]
	for i, s := range subs {
		if s == sub {
			b.listeners[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit constructs a payload, records it in history, then synchronously
// delivers it to every listener currently registered for eventType, in
// registration order. Emitting with no listeners is a no-op, not an error.
func (b *Bus) Emit(eventType Type, data any, source string) {
	payload := Payload{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
	}

	b.mu.Lock()
	b.record(payload)
	subs := make([]*subscription, len(b.listeners[eventType]))
	copy(subs, b.listeners[eventType])
	for _, sub := range subs {
		if sub.once {
			b.remove(eventType, sub)
		}
	}
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.EventsEmitted.WithLabelValues(string(eventType)).Inc()
	}

	for _, sub := range subs {
		b.deliver(sub, payload)
	}
}

// deliver invokes one listener, isolating panics so a broken subscriber
// cannot block delivery to the rest.
func (b *Bus) deliver(sub *subscription, payload Payload) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event listener panicked",
				zap.String("type", string(payload.Type)),
				zap.Any("panic", r),
			)
			if b.metrics != nil {
				b.metrics.ListenerPanics.Inc()
			}
		}
	}()
	sub.fn(payload)
	if b.metrics != nil {
		b.metrics.EventsDelivered.Inc()
	}
}

// UnsubscribeAll clears listeners for the given types, or for every type
// when called with no arguments.
func (b *Bus) UnsubscribeAll(eventTypes ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(eventTypes) == 0 {
		b.listeners = make(map[Type][]*subscription)
		return
	}
	for _, t := range eventTypes {
		delete(b.listeners, t)
	}
}

// record appends to the history ring. Must be called with the lock held.
func (b *Bus) record(p Payload) {
	if b.historyLen < b.historyCap {
		b.history[(b.historyHead+b.historyLen)%b.historyCap] = p
		b.historyLen++
		return
	}
	// Full: overwrite the oldest entry.
	b.history[b.historyHead] = p
	b.historyHead = (b.historyHead + 1) % b.historyCap
}

// History returns a snapshot of recorded payloads, oldest first. A non-empty
// filter restricts by type; limit > 0 keeps only the most recent entries.
func (b *Bus) History(filter Type, limit int) []Payload {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Payload, 0, b.historyLen)
	for i := 0; i < b.historyLen; i++ {
		p := b.history[(b.historyHead+i)%b.historyCap]
		if filter == "" || p.Type == filter {
			out = append(out, p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// ListenerCount reports how many listeners are registered for eventType.
func (b *Bus) ListenerCount(eventType Type) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[eventType])
}
