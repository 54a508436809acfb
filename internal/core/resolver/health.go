package resolver

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultHealthTTL is how long a healthy probe result is trusted
const DefaultHealthTTL = time.Minute

// ProbeFunc checks backend liveness, nil meaning healthy. It must bound
// itself; the ctx it receives is never cancelled by callers.
type ProbeFunc func(ctx context.Context) error

// Status is a snapshot of the cached backend liveness
type Status struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"lastCheck"`
}

// Health caches the outcome of liveness probes. A healthy result is reused
// for the TTL; an unhealthy one is re-probed on the next Check so recovery
// is noticed. Concurrent Checks share one in-flight probe.
type Health struct {
	probe ProbeFunc
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	healthy   bool
	lastCheck time.Time

	group singleflight.Group
}

// NewHealth creates a health cache. A nil clock uses time.Now.
func NewHealth(probe ProbeFunc, ttl time.Duration, now func() time.Time) *Health {
	if ttl <= 0 {
		ttl = DefaultHealthTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Health{probe: probe, ttl: ttl, now: now}
}

// Check reports whether the backend is reachable, probing only when the
// cached result is unhealthy or older than the TTL. The shared probe is
// detached from any single caller, so one caller giving up never records
// the backend as down for the others; a caller whose ctx ends first sees
// false.
func (h *Health) Check(ctx context.Context) bool {
	if h.fresh() {
		return true
	}

	probeCtx := context.WithoutCancel(ctx)
	ch := h.group.DoChan("probe", func() (any, error) {
		started := h.now()
		err := h.probe(probeCtx)
		h.record(err == nil, started)
		return err == nil, nil
	})

	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

// Status returns the last recorded result without probing
func (h *Health) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{Healthy: h.healthy, LastCheck: h.lastCheck}
}

func (h *Health) fresh() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.healthy && h.now().Sub(h.lastCheck) < h.ttl
}

// record is the only writer of the cached state
func (h *Health) record(healthy bool, at time.Time) {
	h.mu.Lock()
	h.healthy = healthy
	h.lastCheck = at
	h.mu.Unlock()
}
