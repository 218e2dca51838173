package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/consul/api"
)

const (
	// consulWaitTime is the long-poll window for blocking queries.
	consulWaitTime = 5 * time.Minute

	// consulRetryDelay paces retries after a failed blocking query.
	consulRetryDelay = time.Second
)

// ConsulProvider loads config from a Consul KV key and watches it with
// blocking queries.
type ConsulProvider struct {
	kv  *api.KV
	key string
}

// NewConsulProvider creates a provider backed by a Consul KV key.
// The first endpoint overrides the default agent address; the rest of the
// client settings come from the standard CONSUL_* environment variables.
func NewConsulProvider(key string, endpoints []string) (*ConsulProvider, error) {
	if key == "" {
		return nil, fmt.Errorf("consul key is required")
	}

	cfg := api.DefaultConfig()
	if len(endpoints) > 0 {
		cfg.Address = endpoints[0]
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulProvider{
		kv:  client.KV(),
		key: key,
	}, nil
}

// Type returns TypeConsul.
func (p *ConsulProvider) Type() Type {
	return TypeConsul
}

// Load reads the config value from Consul.
func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	opts := (&api.QueryOptions{}).WithContext(ctx)
	pair, _, err := p.kv.Get(p.key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	return pair.Value, nil
}

// Watch starts a blocking-query loop against the key.
// Returns a channel that receives a value when the key's modify index moves.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, ch)
	return ch, nil
}

func (p *ConsulProvider) watchLoop(ctx context.Context, ch chan<- struct{}) {
	defer close(ch)

	var lastIndex uint64
	for ctx.Err() == nil {
		opts := (&api.QueryOptions{
			WaitIndex: lastIndex,
			WaitTime:  consulWaitTime,
		}).WithContext(ctx)

		pair, meta, err := p.kv.Get(p.key, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Consul watch query failed", "key", p.key, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(consulRetryDelay):
			}
			continue
		}
		if meta == nil {
			continue
		}

		switch {
		case meta.LastIndex < lastIndex:
			// Index moved backwards (e.g. KV store restore); re-sync.
			lastIndex = 0

		case meta.LastIndex > lastIndex:
			first := lastIndex == 0
			lastIndex = meta.LastIndex
			if first || pair == nil {
				// Baseline pass or deleted key, nothing to reload yet
				continue
			}
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Close releases resources. The Consul client is plain HTTP, so there is
// nothing to tear down beyond stopping Watch via its context.
func (p *ConsulProvider) Close() error {
	return nil
}

var _ Provider = (*ConsulProvider)(nil)
