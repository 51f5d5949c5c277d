package server

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements per-connection rate limiting using a sliding
// window: old timestamps fall out of the window, remaining ones count
// against the limit. One abusive client does not affect others.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time // connectionID -> recent request times
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow reports whether a connection may send another message.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[connectionID]

	valid := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= r.maxRequests {
		r.requests[connectionID] = valid
		return false
	}

	valid = append(valid, now)
	r.requests[connectionID] = valid
	return true
}

// RemoveConnection drops rate limit data when a websocket disconnects.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

// Cleanup removes connections with no activity inside the window.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	for connID, timestamps := range r.requests {
		allOld := true
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				allOld = false
				break
			}
		}
		if allOld {
			delete(r.requests, connID)
		}
	}
}

// PokeLimiter enforces the poke cooldown on the authority side with a
// token bucket per connection. The client has its own cooldown, but
// that is a courtesy, not a security boundary.
type PokeLimiter struct {
	cooldown time.Duration
	limiters map[string]*rate.Limiter // connectionID -> bucket
	mu       sync.Mutex
}

func NewPokeLimiter(cooldown time.Duration) *PokeLimiter {
	return &PokeLimiter{
		cooldown: cooldown,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (p *PokeLimiter) Allow(connectionID string) bool {
	p.mu.Lock()
	limiter, exists := p.limiters[connectionID]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(p.cooldown), 1)
		p.limiters[connectionID] = limiter
	}
	p.mu.Unlock()

	return limiter.Allow()
}

func (p *PokeLimiter) RemoveConnection(connectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.limiters, connectionID)
}

// ValidateMessageType returns a clear error for typos and unknown
// message types before any payload parsing happens.
func ValidateMessageType(msgType string) error {
	validTypes := map[string]bool{
		"ping":         true,
		"create_room":  true,
		"join_room":    true,
		"spectate":     true,
		"leave_room":   true,
		"secret":       true,
		"submit_guess": true,
		"restart":      true,
		"poke":         true,
		"reconnect":    true,
	}

	if !validTypes[msgType] {
		return fmt.Errorf("INVALID_MESSAGE_TYPE: Unknown message type '%s'", msgType)
	}
	return nil
}
