package p2p

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/uhyunpark/hyperlicked/pkg/consensus"
)

const dedupCacheSize = 4096

// CombinedNetwork fans sends out over two underlying ConnectedNetworks
// (e.g. libp2p mesh + web relay) and merges their inbound streams,
// deduping on (sender, view, message digest) so a message delivered
// twice by two transports surfaces to the core once. Grounded on
// original_source's CombinedNetworks/UnderlyingCombinedNetworks.
type CombinedNetwork struct {
	primary, secondary consensus.ConnectedNetwork

	mu    sync.Mutex
	order []dedupKey
	seen  map[dedupKey]struct{}

	outCh chan consensus.Message
}

type dedupKey struct {
	sender consensus.NodeID
	view   consensus.View
	digest [32]byte
}

func NewCombinedNetwork(primary, secondary consensus.ConnectedNetwork) *CombinedNetwork {
	return &CombinedNetwork{
		primary:   primary,
		secondary: secondary,
		seen:      make(map[dedupKey]struct{}),
		outCh:     make(chan consensus.Message, 256),
	}
}

func (c *CombinedNetwork) Broadcast(ctx context.Context, msg consensus.Message, recipients []consensus.NodeID) error {
	err1 := c.primary.Broadcast(ctx, msg, recipients)
	err2 := c.secondary.Broadcast(ctx, msg, recipients)
	if err1 != nil {
		return err1
	}
	return err2
}

func (c *CombinedNetwork) DirectMessage(ctx context.Context, msg consensus.Message, recipient consensus.NodeID) error {
	err1 := c.primary.DirectMessage(ctx, msg, recipient)
	err2 := c.secondary.DirectMessage(ctx, msg, recipient)
	if err1 != nil {
		return err1
	}
	return err2
}

func (c *CombinedNetwork) RecvMsgs(ctx context.Context) (<-chan consensus.Message, error) {
	primaryCh, err := c.primary.RecvMsgs(ctx)
	if err != nil {
		return nil, fmt.Errorf("primary recv_msgs: %w", err)
	}
	secondaryCh, err := c.secondary.RecvMsgs(ctx)
	if err != nil {
		return nil, fmt.Errorf("secondary recv_msgs: %w", err)
	}

	go c.mergeLoop(ctx, primaryCh, secondaryCh)
	return c.outCh, nil
}

func (c *CombinedNetwork) mergeLoop(ctx context.Context, a, b <-chan consensus.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-a:
			if !ok {
				a = nil
				continue
			}
			c.forwardUnlessDup(ctx, msg)
		case msg, ok := <-b:
			if !ok {
				b = nil
				continue
			}
			c.forwardUnlessDup(ctx, msg)
		}
	}
}

func (c *CombinedNetwork) forwardUnlessDup(ctx context.Context, msg consensus.Message) {
	key := digestOf(msg)

	c.mu.Lock()
	if _, dup := c.seen[key]; dup {
		c.mu.Unlock()
		return
	}
	c.seen[key] = struct{}{}
	c.order = append(c.order, key)
	if len(c.order) > dedupCacheSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
	c.mu.Unlock()

	select {
	case c.outCh <- msg:
	case <-ctx.Done():
	}
}

func digestOf(msg consensus.Message) dedupKey {
	data, _ := gobEncode(msg)
	var view [8]byte
	binary.BigEndian.PutUint64(view[:], uint64(msg.View))
	return dedupKey{sender: msg.Sender, view: msg.View, digest: sha256.Sum256(append(view[:], data...))}
}

func (c *CombinedNetwork) WaitForReady(ctx context.Context) error {
	if err := c.primary.WaitForReady(ctx); err != nil {
		return err
	}
	return c.secondary.WaitForReady(ctx)
}

func (c *CombinedNetwork) ShutDown() error {
	err1 := c.primary.ShutDown()
	err2 := c.secondary.ShutDown()
	if err1 != nil {
		return err1
	}
	return err2
}

var _ consensus.ConnectedNetwork = (*CombinedNetwork)(nil)
