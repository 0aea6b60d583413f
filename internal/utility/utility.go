package utility

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IPExtractor decides where c.RealIP() takes the client address from.
// Without trusted proxies the peer address is used and forwarding headers are
// ignored. With trusted proxies (CIDRs) X-Forwarded-For is honoured only for
// hops coming from those ranges.
func IPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect(), nil
	}

	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", cidr, err)
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

// GetSessionIDFromContext retrieves the wizard session id set by the session middleware.
func GetSessionIDFromContext(c echo.Context) (string, error) {
	id, ok := c.Get("session_id").(string)
	if !ok || id == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return id, nil
}

// LoggerFromContext returns the request logger set by LoggerMiddleware, or
// the global logger.
func LoggerFromContext(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get("logger").(*zerolog.Logger); ok && l != nil {
		return l
	}
	return &log.Logger
}

func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ErrRateLimited is returned by Allow for a key over its limit.
var ErrRateLimited = errors.New("too many attempts, please try again later")

// RateLimiter allows at most Max attempts per key within Window.
type RateLimiter struct {
	Window time.Duration
	Max    int

	mu        sync.Mutex
	attempts  map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	return &RateLimiter{Window: window, Max: limit, attempts: make(map[string][]time.Time), now: time.Now}
}

// Allow records an attempt for key, or returns ErrRateLimited when the key is over its limit.
func (l *RateLimiter) Allow(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.now != nil {
		now = l.now()
	}
	if l.attempts == nil {
		l.attempts = make(map[string][]time.Time)
	}
	if now.Sub(l.lastSweep) >= l.Window {
		l.sweep(now)
	}

	// Drop attempts outside the window
	recent := l.recent(l.attempts[key], now)
	if len(recent) >= l.Max {
		l.attempts[key] = recent
		return ErrRateLimited
	}

	l.attempts[key] = append(recent, now)
	return nil
}

// sweep forgets keys with no attempt inside the window.
func (l *RateLimiter) sweep(now time.Time) {
	for key, times := range l.attempts {
		if recent := l.recent(times, now); len(recent) == 0 {
			delete(l.attempts, key)
		} else {
			l.attempts[key] = recent
		}
	}
	l.lastSweep = now
}

func (l *RateLimiter) recent(times []time.Time, now time.Time) []time.Time {
	var recent []time.Time
	for _, t := range times {
		if now.Sub(t) < l.Window {
			recent = append(recent, t)
		}
	}
	return recent
}

// Keys is the number of keys currently tracked.
func (l *RateLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}
