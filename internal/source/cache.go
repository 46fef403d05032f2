package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

const (
	extractKeyPrefix  = "slidepilot:extract:"
	defaultExtractTTL = 24 * time.Hour
)

// Cache stores extracted document text by location.
type Cache interface {
	Get(ctx context.Context, ref string) (string, bool, error)
	Set(ctx context.Context, ref, text string) error
}

// ValkeyCache keeps extracted text in Valkey under slidepilot:extract:{sha256(ref)}.
type ValkeyCache struct {
	client valkey.Client
	ttl    time.Duration
}

func NewValkeyCache(client valkey.Client, ttl time.Duration) *ValkeyCache {
	if ttl <= 0 {
		ttl = defaultExtractTTL
	}
	return &ValkeyCache{client: client, ttl: ttl}
}

// CacheKey is the Valkey key for a document location.
func CacheKey(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return extractKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *ValkeyCache) Get(ctx context.Context, ref string) (string, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(CacheKey(ref)).Build())
	text, err := resp.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get extraction %s: %w", ref, err)
	}
	return text, true, nil
}

func (c *ValkeyCache) Set(ctx context.Context, ref, text string) error {
	resp := c.client.Do(ctx, c.client.B().Set().Key(CacheKey(ref)).Value(text).Ex(c.ttl).Build())
	if err := resp.Error(); err != nil {
		return fmt.Errorf("save extraction %s: %w", ref, err)
	}
	return nil
}
