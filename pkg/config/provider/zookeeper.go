package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-zookeeper/zk"
)

const (
	// zkSessionTimeout is the zookeeper session timeout.
	zkSessionTimeout = 10 * time.Second

	// zkRetryDelay paces re-arming a watch after an error.
	zkRetryDelay = time.Second
)

// ZookeeperProvider loads config from a zookeeper node and watches it for
// data changes.
type ZookeeperProvider struct {
	conn *zk.Conn
	path string
}

// NewZookeeperProvider creates a provider backed by a zookeeper node.
// The connection is established in the background; Load blocks until the
// session is up or fails.
func NewZookeeperProvider(path string, endpoints []string) (*ZookeeperProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("zookeeper path is required")
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("zookeeper endpoints are required")
	}

	conn, _, err := zk.Connect(endpoints, zkSessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	return &ZookeeperProvider{
		conn: conn,
		path: path,
	}, nil
}

// Type returns TypeZookeeper.
func (p *ZookeeperProvider) Type() Type {
	return TypeZookeeper
}

// Load reads the config data from the node.
func (p *ZookeeperProvider) Load(ctx context.Context) ([]byte, error) {
	data, _, err := p.conn.Get(p.path)
	if err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			return nil, fmt.Errorf("zookeeper node %s not found", p.path)
		}
		return nil, fmt.Errorf("failed to read zookeeper node %s: %w", p.path, err)
	}
	return data, nil
}

// Watch arms a data watch on the node. Zookeeper watches are one-shot, so
// the loop re-arms after every event.
func (p *ZookeeperProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, ch)
	return ch, nil
}

func (p *ZookeeperProvider) watchLoop(ctx context.Context, ch chan<- struct{}) {
	defer close(ch)

	for ctx.Err() == nil {
		_, _, events, err := p.conn.GetW(p.path)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Zookeeper watch failed", "path", p.path, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(zkRetryDelay):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch ev.Type {
			case zk.EventNodeDataChanged, zk.EventNodeCreated:
				select {
				case ch <- struct{}{}:
				default:
				}
			case zk.EventNodeDeleted:
				// Keep looping; GetW fails until the node reappears and
				// the retry delay paces the polling in the meantime.
				slog.Warn("Zookeeper node was deleted", "path", p.path)
			case zk.EventNotWatching:
				slog.Warn("Zookeeper watch lost, re-arming", "path", p.path)
			}
		}
	}
}

// Close tears down the zookeeper connection.
func (p *ZookeeperProvider) Close() error {
	p.conn.Close()
	return nil
}

var _ Provider = (*ZookeeperProvider)(nil)
