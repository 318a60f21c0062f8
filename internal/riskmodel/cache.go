package riskmodel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/common/metrics"
	"health-risk-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "risk:prediction:"

// PredictionCache stores validated model output per model version and
// feature vector. Cache errors are logged and treated as misses.
type PredictionCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewPredictionCache(client redis.Cmdable, ttl time.Duration, log logger.Logger) *PredictionCache {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &PredictionCache{client: client, ttl: ttl, logger: log}
}

// CacheKey is stable for equal version and features.
func CacheKey(version string, features []float64) string {
	parts := make([]string, len(features))
	for i, f := range features {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return cacheKeyPrefix + version + ":" + hex.EncodeToString(sum[:])
}

func (c *PredictionCache) Get(ctx context.Context, version string, features []float64) (models.ModelOutput, bool) {
	key := CacheKey(version, features)
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			c.logger.Warn("prediction cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		metrics.RiskModelCacheMisses.Inc()
		return models.ModelOutput{}, false
	}

	var out models.ModelOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out.Validate() != nil {
		metrics.RiskModelCacheMisses.Inc()
		return models.ModelOutput{}, false
	}
	metrics.RiskModelCacheHits.Inc()
	return out, true
}

func (c *PredictionCache) Set(ctx context.Context, version string, features []float64, out models.ModelOutput) {
	payload, err := json.Marshal(out)
	if err != nil {
		return
	}
	key := CacheKey(version, features)
	if err := c.client.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
		c.logger.Warn("prediction cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
