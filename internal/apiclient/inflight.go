package apiclient

import (
	"sync"
	"time"
)

// call is one pending (or recently settled) backend request. Every caller
// that joined the call observes the same resp/err once done closes.
type call struct {
	done chan struct{}
	resp *Response
	err  error
}

// inflightRegistry collapses concurrent requests with the same signature
// onto a single backend call. The registry is bounded; when full, the oldest
// entry is evicted in FIFO insertion order. Eviction only drops the dedup
// entry, never the underlying request. Settled entries linger for a
// retention window so rapid-fire duplicates still coalesce.
type inflightRegistry struct {
	mu        sync.Mutex
	capacity  int
	retention time.Duration
	calls     map[string]*call
	order     []string
	onEvict   func()
}

func newInflightRegistry(capacity int, retention time.Duration, onEvict func()) *inflightRegistry {
	if capacity <= 0 {
		capacity = defaultInflightCapacity
	}
	return &inflightRegistry{
		capacity:  capacity,
		retention: retention,
		calls:     make(map[string]*call),
		onEvict:   onEvict,
	}
}

// join returns the pending call for signature when one exists; otherwise it
// registers a fresh call, evicting the oldest entry if the registry is full.
// The boolean reports whether the caller joined an existing entry.
func (r *inflightRegistry) join(signature string) (*call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.calls[signature]; ok {
		return existing, true
	}

	if len(r.calls) >= r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.calls, oldest)
		if r.onEvict != nil {
			r.onEvict()
		}
	}

	c := &call{done: make(chan struct{})}
	r.calls[signature] = c
	r.order = append(r.order, signature)
	return c, false
}

// settle records the outcome and schedules removal of the entry after the
// retention window. The entry keeps answering joins until then.
func (r *inflightRegistry) settle(signature string, c *call, resp *Response, err error) {
	c.resp = resp
	c.err = err
	close(c.done)

	if r.retention <= 0 {
		r.forget(signature, c)
		return
	}
	time.AfterFunc(r.retention, func() {
		r.forget(signature, c)
	})
}

// forget removes the entry only if it still maps to this call; the signature
// may have been reused by a newer request after eviction.
func (r *inflightRegistry) forget(signature string, c *call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.calls[signature]; ok && current == c {
		delete(r.calls, signature)
		for i, sig := range r.order {
			if sig == signature {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// clear drops every entry. Pending calls keep running; their callers still
// observe the eventual outcome.
func (r *inflightRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make(map[string]*call)
	r.order = nil
}

// size reports the current number of registered signatures.
func (r *inflightRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
