package roles

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/cache"
	"github.com/nikhilbhutani/contractorhub/internal/metrics"
)

type SnapshotCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Counter(ctx context.Context, key string) (int64, error)
	Increment(ctx context.Context, key string) (int64, error)
}

// CachedSource caches role snapshots and member role ids per contractor under
// a version counter. Invalidate bumps the counter so every key written under
// the previous version is never read again and ages out by TTL.
//
// Cache failures fall through to the underlying Source.
type CachedSource struct {
	src   Source
	cache SnapshotCache
	ttl   time.Duration
}

func NewCachedSource(src Source, c SnapshotCache, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, cache: c, ttl: ttl}
}

func versionKey(contractorID uuid.UUID) string {
	return fmt.Sprintf("roles:%s:version", contractorID)
}

func snapshotKey(contractorID uuid.UUID, version int64) string {
	return fmt.Sprintf("roles:%s:v%d:snapshot", contractorID, version)
}

func memberKey(contractorID uuid.UUID, version int64, userID uuid.UUID) string {
	return fmt.Sprintf("roles:%s:v%d:member:%s", contractorID, version, userID)
}

func (c *CachedSource) version(ctx context.Context, contractorID uuid.UUID) (int64, bool) {
	v, err := c.cache.Counter(ctx, versionKey(contractorID))
	if err != nil {
		metrics.RoleCacheLookupsTotal.WithLabelValues("error").Inc()
		slog.Debug("role cache version lookup failed", "contractor_id", contractorID, "error", err)
		return 0, false
	}
	return v, true
}

func (c *CachedSource) Snapshot(ctx context.Context, contractorID uuid.UUID) (*Snapshot, error) {
	v, ok := c.version(ctx, contractorID)
	if !ok {
		return c.src.Snapshot(ctx, contractorID)
	}

	key := snapshotKey(contractorID, v)
	var snap Snapshot
	if hit := c.lookup(ctx, key, &snap); hit {
		return &snap, nil
	}

	fresh, err := c.src.Snapshot(ctx, contractorID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, fresh)
	return fresh, nil
}

func (c *CachedSource) MemberRoleIDs(ctx context.Context, contractorID, userID uuid.UUID) ([]uuid.UUID, error) {
	v, ok := c.version(ctx, contractorID)
	if !ok {
		return c.src.MemberRoleIDs(ctx, contractorID, userID)
	}

	key := memberKey(contractorID, v, userID)
	var ids []uuid.UUID
	if hit := c.lookup(ctx, key, &ids); hit {
		return ids, nil
	}

	fresh, err := c.src.MemberRoleIDs(ctx, contractorID, userID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		fresh = []uuid.UUID{}
	}
	c.store(ctx, key, fresh)
	return fresh, nil
}

// Members is not cached: it is only read on the notification fan-out path.
func (c *CachedSource) Members(ctx context.Context, contractorID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	return c.src.Members(ctx, contractorID)
}

// Invalidate must be called after any committed change to a contractor's
// roles or memberships.
func (c *CachedSource) Invalidate(ctx context.Context, contractorID uuid.UUID) error {
	if _, err := c.cache.Increment(ctx, versionKey(contractorID)); err != nil {
		return fmt.Errorf("bump role snapshot version: %w", err)
	}
	return nil
}

func (c *CachedSource) lookup(ctx context.Context, key string, dest any) bool {
	err := c.cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		metrics.RoleCacheLookupsTotal.WithLabelValues("hit").Inc()
		return true
	case cache.IsMiss(err):
		metrics.RoleCacheLookupsTotal.WithLabelValues("miss").Inc()
	default:
		metrics.RoleCacheLookupsTotal.WithLabelValues("error").Inc()
		slog.Debug("role cache read failed", "key", key, "error", err)
	}
	return false
}

func (c *CachedSource) store(ctx context.Context, key string, value any) {
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		slog.Debug("role cache write failed", "key", key, "error", err)
	}
}
