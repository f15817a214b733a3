package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-router/internal/domain"
	"github.com/spec-kit/incident-router/internal/observability"
	"github.com/spec-kit/incident-router/internal/repository"
)

// Capability lookup sources reported to metrics.
const (
	SourceMemory = "memory"
	SourceRedis  = "redis"
	SourceStore  = "store"
	SourceError  = "error"
)

const (
	redisKeyPrefix      = "capabilities:role:"
	invalidationChannel = "capabilities:invalidate"
)

// Gate answers whether a role holds a capability.
type Gate interface {
	Allows(ctx context.Context, roleID int64, capability domain.Capability) bool
}

// GateDependencies wires the capability gate.
type GateDependencies struct {
	Permissions repository.PermissionRepository
	Redis       *redis.Client
	TTL         time.Duration
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Now         func() time.Time
}

type cachedSet struct {
	capabilities map[domain.Capability]struct{}
	expiresAt    time.Time
}

// CapabilityGate resolves role capabilities from the permission tables, caching
// each role's set in process memory and, when configured, in Redis. Lookup
// failures deny.
type CapabilityGate struct {
	permissions repository.PermissionRepository
	redis       *redis.Client
	ttl         time.Duration
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time

	mu    sync.RWMutex
	cache map[int64]cachedSet
}

// NewCapabilityGate builds the gate.
func NewCapabilityGate(deps GateDependencies) *CapabilityGate {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &CapabilityGate{
		permissions: deps.Permissions,
		redis:       deps.Redis,
		ttl:         deps.TTL,
		logger:      logger,
		metrics:     deps.Metrics,
		now:         now,
		cache:       make(map[int64]cachedSet),
	}
}

// Allows reports whether roleID is granted capability.
func (g *CapabilityGate) Allows(ctx context.Context, roleID int64, capability domain.Capability) bool {
	set, err := g.capabilities(ctx, roleID)
	if err != nil {
		g.logger.Warn("capability lookup failed, denying",
			zap.Int64("role_id", roleID),
			zap.String("capability", string(capability)),
			zap.Error(err))
		return false
	}
	_, ok := set[capability]
	return ok
}

// Invalidate drops any cached capability set for roleID so the next check
// reads the permission tables. With Redis configured, the shared entry is
// deleted and every instance running Listen drops its memory copy too.
func (g *CapabilityGate) Invalidate(ctx context.Context, roleID int64) error {
	g.forget(roleID)
	if g.redis == nil {
		return nil
	}
	return errors.Join(
		g.redis.Del(ctx, redisKey(roleID)).Err(),
		g.redis.Publish(ctx, invalidationChannel, strconv.FormatInt(roleID, 10)).Err(),
	)
}

// Listen applies invalidations published by other instances until ctx is
// cancelled. Messages missed while disconnected are bounded by the cache TTL.
func (g *CapabilityGate) Listen(ctx context.Context) error {
	if g.redis == nil {
		return nil
	}
	sub := g.redis.Subscribe(ctx, invalidationChannel)
	defer sub.Close()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			g.applyInvalidation(msg.Payload)
		}
	}
}

func (g *CapabilityGate) applyInvalidation(payload string) {
	roleID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		g.logger.Warn("ignoring malformed capability invalidation", zap.String("payload", payload))
		return
	}
	g.forget(roleID)
}

func (g *CapabilityGate) forget(roleID int64) {
	g.mu.Lock()
	delete(g.cache, roleID)
	g.mu.Unlock()
}

func (g *CapabilityGate) capabilities(ctx context.Context, roleID int64) (map[domain.Capability]struct{}, error) {
	if g.ttl > 0 {
		if set, ok := g.fromMemory(roleID); ok {
			g.metrics.RecordCapabilityLookup(SourceMemory)
			return set, nil
		}
		if set, remaining, ok := g.fromRedis(ctx, roleID); ok {
			g.metrics.RecordCapabilityLookup(SourceRedis)
			g.remember(roleID, set, g.lifetime(remaining))
			return set, nil
		}
	}

	if g.permissions == nil {
		g.metrics.RecordCapabilityLookup(SourceError)
		return nil, errors.New("permission repository not configured")
	}
	list, err := g.permissions.CapabilitiesForRole(ctx, roleID)
	if err != nil {
		g.metrics.RecordCapabilityLookup(SourceError)
		return nil, err
	}
	g.metrics.RecordCapabilityLookup(SourceStore)

	set := make(map[domain.Capability]struct{}, len(list))
	for _, c := range list {
		set[c] = struct{}{}
	}
	if g.ttl > 0 {
		g.remember(roleID, set, g.ttl)
		g.storeRedis(ctx, roleID, list)
	}
	return set, nil
}

func (g *CapabilityGate) fromMemory(roleID int64) (map[domain.Capability]struct{}, bool) {
	g.mu.RLock()
	entry, ok := g.cache[roleID]
	g.mu.RUnlock()
	if !ok || !g.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.capabilities, true
}

func (g *CapabilityGate) remember(roleID int64, set map[domain.Capability]struct{}, lifetime time.Duration) {
	if lifetime <= 0 {
		return
	}
	g.mu.Lock()
	g.cache[roleID] = cachedSet{capabilities: set, expiresAt: g.now().Add(lifetime)}
	g.mu.Unlock()
}

// lifetime caps a memory entry copied from Redis at the shared entry's
// remaining TTL, so a set is never served longer than one TTL after it was
// read from the permission tables.
func (g *CapabilityGate) lifetime(remaining time.Duration) time.Duration {
	if remaining <= 0 || remaining > g.ttl {
		return g.ttl
	}
	return remaining
}

func (g *CapabilityGate) fromRedis(ctx context.Context, roleID int64) (map[domain.Capability]struct{}, time.Duration, bool) {
	if g.redis == nil {
		return nil, 0, false
	}
	key := redisKey(roleID)
	pipe := g.redis.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		if !errors.Is(err, redis.Nil) {
			g.logger.Debug("capability cache read failed", zap.Int64("role_id", roleID), zap.Error(err))
		}
		return nil, 0, false
	}
	set := make(map[domain.Capability]struct{})
	for _, name := range strings.Split(get.Val(), ",") {
		if name != "" {
			set[domain.Capability(name)] = struct{}{}
		}
	}
	return set, ttl.Val(), true
}

func (g *CapabilityGate) storeRedis(ctx context.Context, roleID int64, list []domain.Capability) {
	if g.redis == nil {
		return
	}
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, string(c))
	}
	if err := g.redis.Set(ctx, redisKey(roleID), strings.Join(names, ","), g.ttl).Err(); err != nil {
		g.logger.Debug("capability cache write failed", zap.Int64("role_id", roleID), zap.Error(err))
	}
}

func redisKey(roleID int64) string {
	return redisKeyPrefix + strconv.FormatInt(roleID, 10)
}
