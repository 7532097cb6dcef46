// Package transport provides the shared outbound HTTP layer: per-host rate
// limits, a global cap on in-flight requests, retries and default headers.
package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// LimitConfig configures a HostLimiter.
type LimitConfig struct {
	// RequestsPerSecond is the sustained per-host request rate. Zero disables
	// rate limiting.
	RequestsPerSecond float64

	// Burst is the per-host burst size. Defaults to 1 when a rate is set.
	Burst int

	// MaxInFlight caps concurrent requests across all hosts. Zero means no cap.
	MaxInFlight int

	// HostRates overrides RequestsPerSecond for specific hosts.
	HostRates map[string]float64
}

// HostLimiter hands out permission to issue a request to a host. Each host
// gets its own token bucket; all hosts share the in-flight semaphore.
// It is safe for concurrent use.
type HostLimiter struct {
	cfg LimitConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	slots chan struct{}
}

// NewHostLimiter creates a HostLimiter.
func NewHostLimiter(cfg LimitConfig) *HostLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	h := &HostLimiter{
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
	if cfg.MaxInFlight > 0 {
		h.slots = make(chan struct{}, cfg.MaxInFlight)
	}
	return h
}

// Unlimited returns a HostLimiter that never blocks.
func Unlimited() *HostLimiter {
	return NewHostLimiter(LimitConfig{})
}

// Acquire blocks until a request to host may start. The returned release
// function must be called exactly once when the request, including reading
// its body, is finished.
func (h *HostLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	if err := h.limiter(host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait for %s: %w", host, err)
	}

	if h.slots == nil {
		return func() {}, nil
	}
	select {
	case h.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-h.slots })
	}, nil
}

// InFlight returns the number of requests currently holding a slot.
func (h *HostLimiter) InFlight() int {
	if h.slots == nil {
		return 0
	}
	return len(h.slots)
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	host = strings.ToLower(host)

	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.limiters[host]; ok {
		return l
	}

	rps := h.cfg.RequestsPerSecond
	if override, ok := h.cfg.HostRates[host]; ok {
		rps = override
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	l := rate.NewLimiter(limit, h.cfg.Burst)
	h.limiters[host] = l
	return l
}
