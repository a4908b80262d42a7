package world

import "sync"

const mailboxOverflowMetricKey = "world_mailbox_overflow_total"

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// Mailbox is a bounded deque of pending messages. Pop and Drain hand out the
// newest message first under MailboxLIFO and the oldest first under
// MailboxFIFO. It is safe for concurrent producers and a single consumer.
type Mailbox[T any] struct {
	mu      sync.Mutex
	data    []T
	head    int
	count   int
	order   MailboxOrder
	metrics telemetryMetrics
	gauge   string
}

// NewMailbox constructs a mailbox with the provided capacity. A non-empty
// gauge names the metric that tracks its occupancy.
func NewMailbox[T any](capacity int, order MailboxOrder, metrics telemetryMetrics, gauge string) *Mailbox[T] {
	if capacity < 1 {
		capacity = 1
	}
	if order != MailboxFIFO {
		order = MailboxLIFO
	}
	return &Mailbox[T]{
		data:    make([]T, capacity),
		order:   order,
		metrics: metrics,
		gauge:   gauge,
	}
}

// Capacity reports the maximum number of messages the mailbox can hold.
func (b *Mailbox[T]) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Push stores a message, returning false if the mailbox is full.
func (b *Mailbox[T]) Push(v T) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		b.overflowLocked()
		return false
	}
	b.appendLocked(v)
	return true
}

// PushEvict stores a message, discarding the oldest one when the mailbox is
// full. It reports whether a message was discarded.
func (b *Mailbox[T]) PushEvict(v T) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	evicted := false
	if b.count == len(b.data) {
		var zero T
		b.data[b.head] = zero
		b.head = (b.head + 1) % len(b.data)
		b.count--
		b.overflowLocked()
		evicted = true
	}
	b.appendLocked(v)
	return evicted
}

// Pop removes one message in drain order.
func (b *Mailbox[T]) Pop() (T, bool) {
	var zero T
	if b == nil {
		return zero, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return zero, false
	}
	var idx int
	if b.order == MailboxFIFO {
		idx = b.head
		b.head = (b.head + 1) % len(b.data)
	} else {
		idx = (b.head + b.count - 1) % len(b.data)
	}
	v := b.data[idx]
	b.data[idx] = zero
	b.count--
	b.storeOccupancyLocked()
	return v, true
}

// Drain returns every pending message in drain order and empties the mailbox.
func (b *Mailbox[T]) Drain() []T {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	var zero T
	out := make([]T, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head + i) % len(b.data)
		if b.order == MailboxFIFO {
			out[i] = b.data[idx]
		} else {
			out[b.count-1-i] = b.data[idx]
		}
		b.data[idx] = zero
	}
	b.head = 0
	b.count = 0
	b.storeOccupancyLocked()
	return out
}

// Len reports the number of pending messages.
func (b *Mailbox[T]) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Reconfigure changes the capacity and drain order in place. Pending
// messages are kept in arrival order; when they no longer fit the oldest are
// discarded and counted as overflow. It returns the number discarded.
func (b *Mailbox[T]) Reconfigure(capacity int, order MailboxOrder) int {
	if b == nil {
		return 0
	}
	if capacity < 1 {
		capacity = 1
	}
	if order != MailboxFIFO {
		order = MailboxLIFO
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	if b.count > capacity {
		dropped = b.count - capacity
	}
	data := make([]T, capacity)
	for i := dropped; i < b.count; i++ {
		data[i-dropped] = b.data[(b.head+i)%len(b.data)]
	}
	for i := 0; i < dropped; i++ {
		b.overflowLocked()
	}
	b.data = data
	b.head = 0
	b.count -= dropped
	b.order = order
	b.storeOccupancyLocked()
	return dropped
}

func (b *Mailbox[T]) appendLocked(v T) {
	tail := (b.head + b.count) % len(b.data)
	b.data[tail] = v
	b.count++
	b.storeOccupancyLocked()
}

func (b *Mailbox[T]) overflowLocked() {
	if b.metrics != nil {
		b.metrics.Add(mailboxOverflowMetricKey, 1)
	}
}

func (b *Mailbox[T]) storeOccupancyLocked() {
	if b.metrics == nil || b.gauge == "" {
		return
	}
	b.metrics.Store(b.gauge, uint64(b.count))
}
