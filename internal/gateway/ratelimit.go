package gateway

import (
	"net"
	"sync"
	"time"
)

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000 // cap on tracked IPs
)

// authRateLimiter throttles handshake attempts per source IP so gateway
// credentials cannot be brute-forced.
//
// Failures are counted in fixed windows: each IP keeps a counter and the
// time its window opened. Once the counter reaches authRateMaxFails the IP
// is refused until the window expires.
type authRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*failWindow
}

type failWindow struct {
	openedAt time.Time
	fails    int
}

func newAuthRateLimiter() *authRateLimiter {
	rl := &authRateLimiter{windows: make(map[string]*failWindow)}
	go rl.sweep()
	return rl
}

// sweep drops expired windows once a minute so idle IPs do not accumulate.
func (l *authRateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		for ip, w := range l.windows {
			if time.Since(w.openedAt) > authRateWindow {
				delete(l.windows, ip)
			}
		}
		l.mu.Unlock()
	}
}

// allow reports whether remoteAddr may attempt a handshake.
func (l *authRateLimiter) allow(remoteAddr string) bool {
	ip := hostOnly(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[ip]
	if !ok {
		return true
	}
	if time.Since(w.openedAt) > authRateWindow {
		delete(l.windows, ip)
		return true
	}
	return w.fails < authRateMaxFails
}

// recordFailure counts a failed handshake against remoteAddr.
func (l *authRateLimiter) recordFailure(remoteAddr string) {
	ip := hostOnly(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, tracked := l.windows[ip]
	if tracked && time.Since(w.openedAt) <= authRateWindow {
		w.fails++
		return
	}
	if !tracked && len(l.windows) >= authRateMaxIPs {
		l.evictOldestLocked()
	}
	l.windows[ip] = &failWindow{openedAt: time.Now(), fails: 1}
}

// evictOldestLocked removes the window that opened first. Caller holds mu.
func (l *authRateLimiter) evictOldestLocked() {
	var oldest string
	var openedAt time.Time
	for ip, w := range l.windows {
		if oldest == "" || w.openedAt.Before(openedAt) {
			oldest = ip
			openedAt = w.openedAt
		}
	}
	if oldest != "" {
		delete(l.windows, oldest)
	}
}

func hostOnly(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}
