// Package cache keeps audience previews in redis so repeated previews skip the customer scan
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

// AudienceCache stores one preview per campaign version. Versions are
// immutable once superseded so entries never need invalidating, only expiry.
type AudienceCache struct {
	rc     redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewAudienceCache(rc redis.Cmdable, prefix string, ttl time.Duration) *AudienceCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &AudienceCache{rc: rc, prefix: prefix, ttl: ttl}
}

// Get returns nil, nil on a miss
func (c *AudienceCache) Get(ctx context.Context, campaignID uint, version int) (*dto.AudienceResult, error) {
	raw, err := c.rc.Get(ctx, c.key(campaignID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audience preview: %w", err)
	}

	var result dto.AudienceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// a corrupt entry is treated as a miss and overwritten on the next Set
		log.Printf("Dropping unreadable audience preview for campaign %d v%d: %v", campaignID, version, err)
		return nil, nil
	}
	return &result, nil
}

func (c *AudienceCache) Set(ctx context.Context, result *dto.AudienceResult) error {
	stored := *result
	stored.Cached = false
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal audience preview: %w", err)
	}
	if err := c.rc.Set(ctx, c.key(result.CampaignID, result.Version), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write audience preview: %w", err)
	}
	return nil
}

func (c *AudienceCache) key(campaignID uint, version int) string {
	return Key(c.prefix, campaignID, version)
}

// Key is the redis key of a campaign version's preview
func Key(prefix string, campaignID uint, version int) string {
	if prefix == "" {
		return fmt.Sprintf("audience:%d:v%d", campaignID, version)
	}
	return fmt.Sprintf("%s:audience:%d:v%d", prefix, campaignID, version)
}

// Connect parses url, pings the server and returns the client
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rc := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Printf("Redis connection established (db=%d)", opt.DB)
	return rc, nil
}
