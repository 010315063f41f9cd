package admission

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

var ErrAdmissionDenied = errors.New("rate limit exceeded")

type Category string

const (
	CategoryHTTP    Category = "http"
	CategoryJoin    Category = "join"
	CategoryControl Category = "control"
)

type Config struct {
	// Limit is the number of events per second refilled into each bucket. Zero
	// disables admission control.
	Limit float64
	Burst int
	// Size bounds the number of buckets kept at once.
	Size int
}

// Limiter keeps one token bucket per key and category. Buckets of keys that have
// not been seen for a while are evicted, which resets them.
type Limiter struct {
	mu      sync.Mutex
	buckets *lru.ARCCache
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

func NewLimiter(cfg *Config) (*Limiter, error) {
	buckets, err := lru.NewARC(cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket cache: %w", err)
	}

	return &Limiter{
		buckets: buckets,
		limit:   rate.Limit(cfg.Limit),
		burst:   cfg.Burst,
		now:     time.Now,
	}, nil
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.buckets.Get(key); ok {
		return v.(*rate.Limiter)
	}

	b := rate.NewLimiter(l.limit, l.burst)
	l.buckets.Add(key, b)

	return b
}

// CheckAdmission takes a token from the bucket of key in category and reports
// whether the event may proceed.
func (l *Limiter) CheckAdmission(key string, category Category) bool {
	if l.limit <= 0 {
		return true
	}

	return l.bucket(string(category) + ":" + key).AllowN(l.now(), 1)
}
