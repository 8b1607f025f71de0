package persistence

import (
	"context"
	"fmt"
	"time"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/cache"
)

// PolicyCache caches the per-user provider matrix in Redis. A nil
// cache falls through to the repository on every call.
type PolicyCache struct {
	cache *cache.RedisCache
}

func NewPolicyCache(c *cache.RedisCache) *PolicyCache {
	return &PolicyCache{cache: c}
}

func matrixKey(userID string) string {
	return fmt.Sprintf("provider:matrix:%s", userID)
}

func (p *PolicyCache) GetMatrix(ctx context.Context, userID string) (*domain.PolicyMatrix, bool, error) {
	if p.cache == nil {
		return nil, false, nil
	}

	var matrix domain.PolicyMatrix
	found, err := p.cache.GetJSON(ctx, matrixKey(userID), &matrix)
	if err != nil || !found {
		return nil, false, err
	}
	return &matrix, true, nil
}

func (p *PolicyCache) SetMatrix(ctx context.Context, userID string, matrix *domain.PolicyMatrix, ttl time.Duration) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.SetJSON(ctx, matrixKey(userID), matrix, ttl)
}

func (p *PolicyCache) Invalidate(ctx context.Context, userID string) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Delete(ctx, matrixKey(userID))
}

var _ out.PolicyCache = (*PolicyCache)(nil)
