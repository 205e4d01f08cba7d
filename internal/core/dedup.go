package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// AlertDedup is a short-lived deduplication cache that prevents the same
// verdict from raising an alert twice in quick succession (e.g., a caller
// retrying the same conversation). Keyed on a hash of
// (detector + type + title + indicator fingerprint) with a TTL window; the
// LRU bounds memory without a sweeper goroutine.
type AlertDedup struct {
	mu   sync.Mutex
	seen *lru.Cache[string, time.Time]
	ttl  time.Duration
}

// NewAlertDedup creates a dedup cache. ttl controls how long a fingerprint is
// remembered; maxSize caps memory by evicting the least recently used.
func NewAlertDedup(ttl time.Duration, maxSize int) *AlertDedup {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 50000
	}
	cache, _ := lru.New[string, time.Time](maxSize)
	return &AlertDedup{
		seen: cache,
		ttl:  ttl,
	}
}

// IsDuplicate returns true if an equivalent alert was seen within the TTL
// window. If not a duplicate, it records the fingerprint.
func (d *AlertDedup) IsDuplicate(alert *Alert) bool {
	fp := d.fingerprint(alert)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if seenAt, ok := d.seen.Get(fp); ok && now.Sub(seenAt) < d.ttl {
		return true
	}
	d.seen.Add(fp, now)
	return false
}

// Len returns the number of remembered fingerprints.
func (d *AlertDedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen.Len()
}

func (d *AlertDedup) fingerprint(alert *Alert) string {
	h := sha256.New()
	h.Write([]byte(alert.Detector))
	h.Write([]byte{0})
	h.Write([]byte(alert.Type))
	h.Write([]byte{0})
	h.Write([]byte(alert.Title))
	for _, ind := range alert.Indicators {
		h.Write([]byte{0})
		h.Write([]byte(ind))
	}
	return hex.EncodeToString(h.Sum(nil))
}
