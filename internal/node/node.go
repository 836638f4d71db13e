// Package node wires together storage, state, mempool, consensus, and
// network transport into a runnable EmPower1 node, following the
// initialization order, lock-ordering discipline, and message-dispatch
// shape of the specification's node runtime component.
package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"empower1.com/empower1blockchain/internal/config"
	"empower1.com/empower1blockchain/internal/consensus"
	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/genesis"
	"empower1.com/empower1blockchain/internal/mempool"
	"empower1.com/empower1blockchain/internal/network"
	"empower1.com/empower1blockchain/internal/rpc"
	"empower1.com/empower1blockchain/internal/state"
	"empower1.com/empower1blockchain/internal/storage"
	"empower1.com/empower1blockchain/internal/wallet"
)

// Transport abstracts over network.GossipNode (production) and
// network.SimulatedNetwork (tests / single-process simulation), the two
// concrete gossip implementations this node can be run against.
type Transport interface {
	BroadcastBlock(block *core.Block) error
	BroadcastTransaction(tx *core.Transaction) error
	BroadcastSyncMessage(data []byte) error
	GetBlockReceptionChannel() <-chan []byte
	GetTransactionReceptionChannel() <-chan []byte
	GetSyncReceptionChannel() <-chan []byte
}

// Node owns one running instance of every component and drives the
// incoming-message dispatch loop.
type Node struct {
	cfg       *config.NodeConfig
	storage   *storage.Engine
	state     *state.Machine
	mempool   *mempool.Mempool
	consensus *consensus.Engine
	transport Transport
	rpc       *rpc.Server
	wallet    *wallet.Wallet // nil in observer mode

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Node from cfg: opens storage, loads and bootstraps genesis,
// builds the validator set, optionally loads a validator wallet, and wires
// the consensus engine to transport.
func New(cfg *config.NodeConfig, transport Transport) (*Node, error) {
	st, err := storage.Open(cfg.DataDir, nil)
	if err != nil {
		return nil, fmt.Errorf("node: open storage: %w", err)
	}

	sm := state.New()
	desc, err := genesis.Load(cfg.GenesisPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("node: load genesis: %w", err)
	}
	if err := genesis.Bootstrap(desc, st, sm); err != nil {
		st.Close()
		return nil, fmt.Errorf("node: bootstrap genesis: %w", err)
	}

	validatorKeys, err := desc.ValidatorKeys()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("node: decode validator set: %w", err)
	}
	validators := consensus.NewValidatorSet(validatorKeys)

	var w *wallet.Wallet
	if cfg.IsValidator() {
		w, err = wallet.LoadFromFile(cfg.KeyfilePath)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("node: load validator keyfile: %w", err)
		}
		if !validators.Contains(w.Address()) {
			logrus.Warnf("node: validator key %s is not a member of the genesis validator set", w.Address())
		}
	}

	mp := mempool.New(mempool.DefaultConfig())

	engine := consensus.New(consensus.Config{
		Validators:  validators,
		Storage:     st,
		State:       sm,
		Mempool:     mp,
		Broadcast:   transport,
		Wallet:      w,
		BlockTime:   cfg.BlockInterval,
		MaxBlockTxs: cfg.MaxBlockTxs,
	})

	n := &Node{
		cfg:       cfg,
		storage:   st,
		state:     sm,
		mempool:   mp,
		consensus: engine,
		transport: transport,
		wallet:    w,
		stop:      make(chan struct{}),
	}

	if cfg.HTTPBindAddr != "" {
		n.rpc = rpc.NewServer(cfg.HTTPBindAddr, st)
	}

	return n, nil
}

// Run starts the consensus engine, the optional HTTP query facade, requests
// an initial sync from the network, and blocks the dispatch loop until ctx
// is cancelled or Stop is called.
func (n *Node) Run(ctx context.Context) error {
	n.consensus.Start(ctx)

	if n.rpc != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.rpc.ListenAndServe(); err != nil {
				logrus.WithError(err).Error("node: query facade stopped")
			}
		}()
	}

	if err := n.requestInitialSync(); err != nil {
		logrus.WithError(err).Warn("node: failed to request initial sync")
	}

	n.wg.Add(1)
	go n.dispatchLoop(ctx)

	<-ctx.Done()
	return n.shutdown()
}

func (n *Node) shutdown() error {
	n.consensus.Stop()
	close(n.stop)
	n.wg.Wait()
	if n.rpc != nil {
		_ = n.rpc.Shutdown(context.Background())
	}
	return n.storage.Close()
}

// requestInitialSync asks peers for any blocks past our current tip.
func (n *Node) requestInitialSync() error {
	_, height, found, err := n.storage.ChainTip()
	if err != nil {
		return err
	}
	from := height
	if found {
		from++
	}
	req := network.SyncRequest{FromHeight: from}
	return n.transport.BroadcastSyncMessage(req.Encode())
}

// dispatchLoop reads from the transport's reception channels and routes
// each message into the appropriate component, honoring the lock ordering
// documented on consensus.Engine.HandleReceivedBlock.
func (n *Node) dispatchLoop(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stop:
			return
		case data := <-n.transport.GetBlockReceptionChannel():
			n.handleIncomingBlock(data)
		case data := <-n.transport.GetTransactionReceptionChannel():
			n.handleIncomingTransaction(data)
		case data := <-n.transport.GetSyncReceptionChannel():
			n.handleSyncMessage(data)
		}
	}
}

func (n *Node) handleIncomingBlock(data []byte) {
	block, err := core.DeserializeBlock(data)
	if err != nil {
		logrus.WithError(err).Warn("node: failed to deserialize incoming block")
		return
	}
	if err := n.consensus.HandleReceivedBlock(block); err != nil {
		logrus.WithError(err).WithField("height", block.Header.BlockNumber).Warn("node: rejected incoming block")
	}
}

func (n *Node) handleIncomingTransaction(data []byte) {
	tx, err := core.DeserializeTransaction(data)
	if err != nil {
		logrus.WithError(err).Warn("node: failed to deserialize incoming transaction")
		return
	}
	if _, err := n.mempool.Add(tx); err != nil {
		logrus.WithError(err).Debug("node: rejected incoming transaction")
	}
}

func (n *Node) handleSyncMessage(data []byte) {
	if len(data) == 0 {
		return
	}
	if network.IsSyncResponseNoBlocks(data) {
		return
	}
	if resp, err := network.DecodeSyncResponseBlocks(data); err == nil {
		for _, raw := range resp.Blocks {
			n.handleIncomingBlock(raw)
		}
		return
	}
	if req, err := network.DecodeSyncRequest(data); err == nil {
		n.respondToSyncRequest(req)
	}
}

// maxSyncBlocks bounds how many blocks a single sync response carries, per
// the node runtime's documented sync response cap.
const maxSyncBlocks = 50

func (n *Node) respondToSyncRequest(req network.SyncRequest) {
	_, tip, found, err := n.storage.ChainTip()
	if err != nil || !found || req.FromHeight > tip {
		if err := n.transport.BroadcastSyncMessage(network.EncodeSyncResponseNoBlocks()); err != nil {
			logrus.WithError(err).Warn("node: failed to send sync no-blocks response")
		}
		return
	}

	var blocks [][]byte
	for h := req.FromHeight; h <= tip && len(blocks) < maxSyncBlocks; h++ {
		header, err := n.storage.GetHeaderByHeight(h)
		if err != nil {
			break
		}
		block, err := n.storage.GetBlock(header.Hash())
		if err != nil {
			break
		}
		data, err := block.Serialize()
		if err != nil {
			continue
		}
		blocks = append(blocks, data)
	}
	if len(blocks) == 0 {
		if err := n.transport.BroadcastSyncMessage(network.EncodeSyncResponseNoBlocks()); err != nil {
			logrus.WithError(err).Warn("node: failed to send sync no-blocks response")
		}
		return
	}
	resp := network.SyncResponseBlocks{Blocks: blocks}
	if err := n.transport.BroadcastSyncMessage(resp.Encode()); err != nil {
		logrus.WithError(err).Warn("node: failed to send sync response")
	}
}
