package network

import (
	"context"
	"fmt"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"

	"empower1.com/empower1blockchain/internal/core"
)

// GossipConfig configures a production GossipNode.
type GossipConfig struct {
	ListenAddr     string
	BootstrapPeers []string
}

// GossipNode is the libp2p/GossipSub-backed production transport. It joins
// the three well-known topics (TopicBlocks, TopicTransactions, TopicSync) and
// exposes the same reception-channel shape as SimulatedNetwork, so node
// runtime code can be written against either transport interchangeably.
type GossipNode struct {
	host   host.Host
	pubsub *pubsub.PubSub
	ctx    context.Context
	cancel context.CancelFunc

	topicLock sync.Mutex
	topics    map[string]*pubsub.Topic
	subs      map[string]*pubsub.Subscription

	blockCh chan []byte
	txCh    chan []byte
	syncCh  chan []byte
}

// NewGossipNode creates and bootstraps a libp2p host running GossipSub, joins
// the blocks/transactions/sync topics, and starts forwarding inbound messages
// onto the reception channels.
func NewGossipNode(cfg GossipConfig) (*GossipNode, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("network: failed to create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("network: failed to create gossipsub: %w", err)
	}

	gn := &GossipNode{
		host:    h,
		pubsub:  ps,
		ctx:     ctx,
		cancel:  cancel,
		topics:  make(map[string]*pubsub.Topic),
		subs:    make(map[string]*pubsub.Subscription),
		blockCh: make(chan []byte, 100),
		txCh:    make(chan []byte, 100),
		syncCh:  make(chan []byte, 100),
	}

	for _, addr := range cfg.BootstrapPeers {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			logrus.WithError(err).Warnf("network: invalid bootstrap addr %s", addr)
			continue
		}
		if err := h.Connect(ctx, *pi); err != nil {
			logrus.WithError(err).Warnf("network: failed to dial bootstrap peer %s", addr)
			continue
		}
	}

	if err := gn.subscribe(TopicBlocks, gn.blockCh); err != nil {
		gn.Close()
		return nil, err
	}
	if err := gn.subscribe(TopicTransactions, gn.txCh); err != nil {
		gn.Close()
		return nil, err
	}
	if err := gn.subscribe(TopicSync, gn.syncCh); err != nil {
		gn.Close()
		return nil, err
	}

	return gn, nil
}

func (gn *GossipNode) joinTopic(topic string) (*pubsub.Topic, error) {
	gn.topicLock.Lock()
	defer gn.topicLock.Unlock()
	if t, ok := gn.topics[topic]; ok {
		return t, nil
	}
	t, err := gn.pubsub.Join(topic)
	if err != nil {
		return nil, fmt.Errorf("network: join topic %s: %w", topic, err)
	}
	gn.topics[topic] = t
	return t, nil
}

func (gn *GossipNode) subscribe(topic string, out chan<- []byte) error {
	t, err := gn.joinTopic(topic)
	if err != nil {
		return err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return fmt.Errorf("network: subscribe topic %s: %w", topic, err)
	}
	gn.topicLock.Lock()
	gn.subs[topic] = sub
	gn.topicLock.Unlock()

	go func() {
		selfID := gn.host.ID()
		for {
			msg, err := sub.Next(gn.ctx)
			if err != nil {
				return // context cancelled on Close
			}
			if msg.GetFrom() == selfID {
				continue
			}
			select {
			case out <- msg.Data:
			default:
				logrus.Warnf("network: reception channel full for topic %s, dropping message", topic)
			}
		}
	}()
	return nil
}

func (gn *GossipNode) publish(topic string, data []byte) error {
	t, err := gn.joinTopic(topic)
	if err != nil {
		return err
	}
	if err := t.Publish(gn.ctx, data); err != nil {
		return fmt.Errorf("network: publish topic %s: %w", topic, err)
	}
	return nil
}

// BroadcastBlock serializes and publishes a block on the blocks topic. It
// satisfies consensus.BlockBroadcaster.
func (gn *GossipNode) BroadcastBlock(block *core.Block) error {
	data, err := block.Serialize()
	if err != nil {
		return err
	}
	return gn.publish(TopicBlocks, data)
}

// BroadcastTransaction serializes and publishes a transaction on the
// transactions topic.
func (gn *GossipNode) BroadcastTransaction(tx *core.Transaction) error {
	data, err := tx.Serialize()
	if err != nil {
		return err
	}
	return gn.publish(TopicTransactions, data)
}

// BroadcastSyncMessage publishes a pre-encoded sync-protocol message on the
// sync topic.
func (gn *GossipNode) BroadcastSyncMessage(data []byte) error {
	return gn.publish(TopicSync, data)
}

// GetBlockReceptionChannel returns a read-only channel of raw block payloads
// received from peers.
func (gn *GossipNode) GetBlockReceptionChannel() <-chan []byte {
	return gn.blockCh
}

// GetTransactionReceptionChannel returns a read-only channel of raw
// transaction payloads received from peers.
func (gn *GossipNode) GetTransactionReceptionChannel() <-chan []byte {
	return gn.txCh
}

// GetSyncReceptionChannel returns a read-only channel of raw sync-protocol
// payloads received from peers.
func (gn *GossipNode) GetSyncReceptionChannel() <-chan []byte {
	return gn.syncCh
}

// ID returns this node's libp2p peer ID as a string.
func (gn *GossipNode) ID() string {
	return gn.host.ID().String()
}

// Close tears down subscriptions, topics, and the underlying libp2p host.
func (gn *GossipNode) Close() error {
	gn.cancel()
	gn.topicLock.Lock()
	for _, sub := range gn.subs {
		sub.Cancel()
	}
	for _, t := range gn.topics {
		_ = t.Close()
	}
	gn.topicLock.Unlock()
	return gn.host.Close()
}
