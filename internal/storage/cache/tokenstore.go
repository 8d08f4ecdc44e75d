// Package cache adds a Redis read-aside layer in front of the token store.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedTokenStore is a decorator that adds read-aside caching to any
// TokenStorage. Every write path invalidates, so a pruned token stops
// receiving notifications immediately rather than at TTL expiry.
type CachedTokenStore struct {
	realStore dispatch.TokenStorage
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedTokenStore(realStore dispatch.TokenStorage, cache CacheClient, ttl time.Duration) *CachedTokenStore {
	return &CachedTokenStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedTokenStore) TokensFor(ctx context.Context, userID string) ([]string, error) {
	key := s.cacheKey(userID)

	var cached []string
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.realStore.TokensFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization, not a transaction: if Redis is down we
	// just serve from the document store.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedTokenStore) AddToken(ctx context.Context, userID, token string) error {
	if err := s.realStore.AddToken(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedTokenStore) RemoveTokens(ctx context.Context, userID string, tokens []string) error {
	if err := s.realStore.RemoveTokens(ctx, userID, tokens); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedTokenStore) SetTokens(ctx context.Context, userID string, tokens []string) error {
	if err := s.realStore.SetTokens(ctx, userID, tokens); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedTokenStore) ForEachUser(ctx context.Context, fn func(userID string, tokens []string) error) error {
	// The sweep reads the source of truth directly; cached copies converge
	// via the SetTokens invalidation.
	return s.realStore.ForEachUser(ctx, fn)
}

// --- Helpers ---

func (s *CachedTokenStore) invalidate(ctx context.Context, userID string) error {
	return s.cache.Del(ctx, s.cacheKey(userID))
}

func (s *CachedTokenStore) cacheKey(userID string) string {
	return fmt.Sprintf("notify:tokens:%s", userID)
}
