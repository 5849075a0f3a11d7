package bridge

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedKeys caps limiter memory when many conversations are active.
const maxTrackedKeys = 4096

// KeyLimiter rate limits events per session identity key.
type KeyLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewKeyLimiter allows perMinute events per key. perMinute <= 0 disables limiting.
func NewKeyLimiter(perMinute int) *KeyLimiter {
	if perMinute <= 0 {
		return &KeyLimiter{limit: rate.Inf}
	}
	return &KeyLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *KeyLimiter) Allow(key string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedKeys {
			// full limiters have refilled and can be forgotten
			for k, v := range l.limiters {
				if v.Tokens() >= float64(l.burst) {
					delete(l.limiters, k)
				}
			}
			for len(l.limiters) >= maxTrackedKeys {
				for k := range l.limiters {
					delete(l.limiters, k)
					break
				}
			}
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
