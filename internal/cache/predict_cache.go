package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/partpilot/forecast/internal/config"
	"github.com/partpilot/forecast/internal/domain"
)

const predictKeyPrefix = "forecast:predict"

// PredictionCache stores whole predict responses keyed by request shape and
// bundle version. Inference never mutates persistent state, so a response is
// valid until the bundle artifact changes; including the bundle mtime in the
// key makes invalidation implicit.
type PredictionCache interface {
	Get(ctx context.Context, key string) (*domain.PredictResponse, bool, error)
	Set(ctx context.Context, key string, resp *domain.PredictResponse) error
}

type redisPredictionCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPredictionCache struct{}

// NewPredictionCache returns a redis-backed cache, or a noop cache when
// caching is disabled.
func NewPredictionCache(cfg config.CacheConfig) (PredictionCache, error) {
	if !cfg.Enabled {
		return &noopPredictionCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisPredictionCache{client: client, ttl: ttl}, nil
}

// NewNoopPredictionCache returns a cache that never hits.
func NewNoopPredictionCache() PredictionCache {
	return &noopPredictionCache{}
}

func (c *redisPredictionCache) Get(ctx context.Context, key string) (*domain.PredictResponse, bool, error) {
	payload, err := c.client.Get(ctx, predictKeyPrefix+":"+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var resp domain.PredictResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, false, fmt.Errorf("decode predict cache: %w", err)
	}
	return &resp, true, nil
}

func (c *redisPredictionCache) Set(ctx context.Context, key string, resp *domain.PredictResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode predict cache: %w", err)
	}
	if err := c.client.Set(ctx, predictKeyPrefix+":"+key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopPredictionCache) Get(ctx context.Context, key string) (*domain.PredictResponse, bool, error) {
	return nil, false, nil
}

func (n *noopPredictionCache) Set(ctx context.Context, key string, resp *domain.PredictResponse) error {
	return nil
}

// PredictRequestKey hashes the request's effective parameters, the part ids,
// and the bundle version into a stable cache key.
func PredictRequestKey(req domain.PredictRequest, bundleModTime time.Time) string {
	parts := []string{
		"limit=" + strconv.Itoa(req.Limit),
		"bundle=" + strconv.FormatInt(bundleModTime.UnixNano(), 10),
	}
	if req.Horizon != nil {
		parts = append(parts, "horizon="+strconv.Itoa(*req.Horizon))
	}
	if req.ServiceDays != nil {
		parts = append(parts, "service_days="+strconv.Itoa(*req.ServiceDays))
	}
	if req.HoldingRatePerDay != nil {
		parts = append(parts, fmt.Sprintf("holding_rate=%g", *req.HoldingRatePerDay))
	}
	if req.PenaltyMultiplier != nil {
		parts = append(parts, fmt.Sprintf("penalty=%g", *req.PenaltyMultiplier))
	}
	if req.PackSize != nil {
		parts = append(parts, "pack_size="+strconv.Itoa(*req.PackSize))
	}
	if req.MOQ != nil {
		parts = append(parts, "moq="+strconv.Itoa(*req.MOQ))
	}
	for i, row := range req.Parts {
		payload, err := json.Marshal(row)
		if err != nil {
			payload = []byte(fmt.Sprintf("%d:%d", i, row.PartID))
		}
		// Index-prefixed so request order survives the sort below; item order
		// is part of the response contract.
		parts = append(parts, fmt.Sprintf("part%06d=%s", i, payload))
	}

	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
