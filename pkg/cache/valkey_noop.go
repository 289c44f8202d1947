package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// noopValkey is an in-memory, process-local fallback satisfying Valkey when
// the external cache is unavailable or disabled. Best-effort: entries honor
// TTL lazily and are lost on restart.
type noopValkey struct {
	mu     sync.RWMutex
	m      map[string]noopEntry
	logger logger.Logger
}

type noopEntry struct {
	data    []byte
	expires time.Time
}

func NewNoopValkey(log logger.Logger) Valkey {
	log.Warn("Valkey cache disabled or unavailable; using in-memory fallback")
	return &noopValkey{m: make(map[string]noopEntry), logger: log}
}

func (n *noopValkey) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	entry, ok := n.m[key]
	n.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		n.mu.Lock()
		delete(n.m, key)
		n.mu.Unlock()
		return nil, ErrNotFound
	}
	return entry.data, nil
}

func (n *noopValkey) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		jb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		b = jb
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	n.mu.Lock()
	n.m[key] = noopEntry{data: b, expires: expires}
	n.mu.Unlock()
	return nil
}

func (n *noopValkey) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.m, key)
	n.mu.Unlock()
	return nil
}
