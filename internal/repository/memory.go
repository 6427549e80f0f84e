package repository

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

type memoryEntry struct {
	token     *oauth2.Token
	expiresAt time.Time
}

// MemoryTokenStore is the process-local fallback for RedisTokenStore.
type MemoryTokenStore struct {
	entries    sync.Map // map[string]memoryEntry
	defaultTTL time.Duration
	now        func() time.Time
}

func NewMemoryTokenStore(defaultTTL time.Duration) *MemoryTokenStore {
	return &MemoryTokenStore{defaultTTL: defaultTTL, now: time.Now}
}

func (r *MemoryTokenStore) GetToken(_ context.Context, key string) (*oauth2.Token, error) {
	val, ok := r.entries.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(memoryEntry)
	if r.now().After(entry.expiresAt) {
		r.entries.Delete(key)
		return nil, nil
	}
	tok := *entry.token
	return &tok, nil
}

func (r *MemoryTokenStore) SetToken(_ context.Context, key string, token *oauth2.Token) error {
	tok := *token
	r.entries.Store(key, memoryEntry{
		token:     &tok,
		expiresAt: r.now().Add(ttlFor(token, r.defaultTTL)),
	})
	return nil
}

func (r *MemoryTokenStore) DeleteToken(_ context.Context, key string) error {
	r.entries.Delete(key)
	return nil
}
