// Package valkey opens the client shared by the render stream and the
// extraction cache.
package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/slidepilot/internal/config"
)

const pingTimeout = 5 * time.Second

// NewClient connects and verifies the server answers PING.
func NewClient(ctx context.Context, cfg config.ValkeyConfig) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey client %s: %w", cfg.Addr, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey %s: %w", cfg.Addr, err)
	}
	return client, nil
}
