// Package revoke broadcasts API-key cache invalidations to sibling
// processes over UDP peer discovery, shortening the cross-process
// staleness window below the validation cache's TTL when a cluster is
// configured. It is adapted from the encryption-key-rotation broadcast
// this codebase used to carry; the wire envelope and peer-join/leave
// logging are unchanged, the message payload and handler are not.
package revoke

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/rakunlabs/alan"
)

const msgTypeRevoke = "revoke-api-key"

// message is the JSON envelope sent between peers.
type message struct {
	Type    string `json:"type"`
	KeyHash string `json:"key_hash"`
}

// Broadcaster wraps an alan instance for API-key revoke gossip. A nil
// *Broadcaster is valid and a no-op, matching single-instance deployments
// that don't configure peer discovery.
type Broadcaster struct {
	alan *alan.Alan
}

// New creates a Broadcaster from the server's alan configuration. Returns
// nil, nil if cfg is nil (clustering disabled).
func New(cfg *alan.Config) (*Broadcaster, error) {
	if cfg == nil {
		return nil, nil
	}

	a, err := alan.New(*cfg)
	if err != nil {
		return nil, fmt.Errorf("create alan instance: %w", err)
	}

	return &Broadcaster{alan: a}, nil
}

// Start begins peer discovery in the background. onRevoke is invoked with
// the key hash whenever a peer broadcasts a revocation. Start blocks until
// ctx is cancelled; run it in a goroutine.
func (b *Broadcaster) Start(ctx context.Context, onRevoke func(keyHash string)) error {
	b.alan.OnPeerJoin(func(addr *net.UDPAddr) {
		slog.Info("revoke broadcast: peer joined", "addr", addr.String())
	})
	b.alan.OnPeerLeave(func(addr *net.UDPAddr) {
		slog.Info("revoke broadcast: peer left", "addr", addr.String())
	})

	handler := func(_ context.Context, msg alan.Message) {
		var m message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			slog.Warn("revoke broadcast: invalid message", "from", msg.Addr, "error", err)
			return
		}

		if m.Type != msgTypeRevoke {
			slog.Debug("revoke broadcast: unknown message type", "type", m.Type, "from", msg.Addr)
			return
		}

		if onRevoke != nil {
			onRevoke(m.KeyHash)
		}

		if msg.IsRequest() {
			b.alan.Reply(msg, []byte("ok")) //nolint:errcheck
		}
	}

	return b.alan.Start(ctx, handler)
}

// Stop gracefully leaves the cluster.
func (b *Broadcaster) Stop() error {
	return b.alan.Stop()
}

// BroadcastRevoke notifies all peers that keyHash was revoked so they can
// evict it from their local validation cache immediately instead of
// waiting out the TTL.
func (b *Broadcaster) BroadcastRevoke(ctx context.Context, keyHash string) error {
	peers := b.alan.Peers()
	if len(peers) == 0 {
		return nil
	}

	data, err := json.Marshal(message{Type: msgTypeRevoke, KeyHash: keyHash})
	if err != nil {
		return fmt.Errorf("marshal revoke message: %w", err)
	}

	broadcastCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := b.alan.SendAndWaitReply(broadcastCtx, data); err != nil {
		slog.Warn("revoke broadcast: not all peers acknowledged", "error", err)
	}

	return nil
}

// Ready returns a channel closed when the cluster is ready.
func (b *Broadcaster) Ready() <-chan struct{} {
	return b.alan.Ready()
}
