package consensus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/core/types"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
	"empower1.com/empower1blockchain/internal/mempool"
	"empower1.com/empower1blockchain/internal/state"
	"empower1.com/empower1blockchain/internal/storage"
	"empower1.com/empower1blockchain/internal/wallet"
)

// BlockBroadcaster publishes a locally produced block to the rest of the
// network. The concrete implementation (gossip transport or in-memory test
// transport) lives in internal/network.
type BlockBroadcaster interface {
	BroadcastBlock(block *core.Block) error
}

// Engine drives proposal, validation, and chain-head tracking for one node.
// It holds no network transport details of its own beyond the
// BlockBroadcaster it is given at construction.
type Engine struct {
	validators *ValidatorSet
	storage    *storage.Engine
	state      *state.Machine
	mempool    *mempool.Mempool
	broadcast  BlockBroadcaster
	wallet     *wallet.Wallet // nil means this node runs in observer mode
	blockTime  time.Duration
	maxTxs     int

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// Config collects an Engine's dependencies.
type Config struct {
	Validators  *ValidatorSet
	Storage     *storage.Engine
	State       *state.Machine
	Mempool     *mempool.Mempool
	Broadcast   BlockBroadcaster
	Wallet      *wallet.Wallet // optional; nil runs the engine in observer mode
	BlockTime   time.Duration
	MaxBlockTxs int // <= 0 falls back to MaxBlockTransactions
}

// New constructs an Engine from cfg. A nil Wallet is valid and puts the
// engine into observer mode: it still validates and applies blocks it
// receives, but never proposes.
func New(cfg Config) *Engine {
	blockTime := cfg.BlockTime
	if blockTime <= 0 {
		blockTime = 10 * time.Second
	}
	maxTxs := cfg.MaxBlockTxs
	if maxTxs <= 0 {
		maxTxs = MaxBlockTransactions
	}
	return &Engine{
		validators: cfg.Validators,
		storage:    cfg.Storage,
		state:      cfg.State,
		mempool:    cfg.Mempool,
		broadcast:  cfg.Broadcast,
		wallet:     cfg.Wallet,
		blockTime:  blockTime,
		maxTxs:     maxTxs,
		stop:       make(chan struct{}),
	}
}

// Start begins the proposal ticker in a background goroutine. Cancel ctx or
// call Stop to shut it down.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.blockTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case <-ticker.C:
				e.tryPropose()
			}
		}
	}()
}

// Stop signals the proposal loop to exit and waits for it to finish.
func (e *Engine) Stop() {
	close(e.stop)
	e.wg.Wait()
}

// tryPropose attempts to build and broadcast a block if this node is the
// proposer for the next height. It is a no-op in observer mode.
func (e *Engine) tryPropose() {
	if e.wallet == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tipHash, tipHeight, found, err := e.storage.ChainTip()
	if err != nil {
		logrus.WithError(err).Error("consensus: failed to read chain tip")
		return
	}
	var nextHeight types.BlockHeight
	var parentHash types.Hash
	if found {
		nextHeight = tipHeight + 1
		parentHash = tipHash
	} else {
		nextHeight = 0
		parentHash = types.Hash{}
	}

	proposerPK, err := e.validators.Proposer(nextHeight)
	if err != nil {
		logrus.WithError(err).Error("consensus: failed to determine proposer")
		return
	}
	if proposerPK.Address() != e.wallet.Address() {
		return
	}

	block, err := BuildProposal(e.wallet, nextHeight, parentHash, e.mempool, time.Now(), e.maxTxs)
	if err != nil {
		logrus.WithError(err).Error("consensus: failed to build proposal")
		return
	}

	if err := e.commitAndBroadcast(block); err != nil {
		logrus.WithError(err).WithField("height", nextHeight).Error("consensus: failed to commit own proposal")
	}
}

// HandleReceivedBlock validates a block received from the network against
// the round-robin schedule and, if valid, applies and commits it. Each
// component lock is taken on its own, in the order consensus -> state
// (Delta) -> storage -> state (Commit) -> mempool; see applyAndCommit.
func (e *Engine) HandleReceivedBlock(block *core.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !block.Header.IsGenesis() {
		if err := e.validators.ValidateBlock(block); err != nil {
			return err
		}
	}
	if err := block.VerifyMerkleRoot(); err != nil {
		return err
	}

	tipHash, tipHeight, found, err := e.storage.ChainTip()
	if err != nil {
		return err
	}
	if found && block.Header.BlockNumber != tipHeight+1 {
		return fmt.Errorf("%w: expected height %d, got %d", internalerrors.ErrInvalidBlockHeight, tipHeight+1, block.Header.BlockNumber)
	}
	if found && block.Header.ParentHash != tipHash {
		return fmt.Errorf("%w: expected parent %s, got %s", internalerrors.ErrInvalidParentHash, tipHash, block.Header.ParentHash)
	}

	return e.applyAndCommit(block)
}

func (e *Engine) commitAndBroadcast(block *core.Block) error {
	if err := e.applyAndCommit(block); err != nil {
		return err
	}
	if e.broadcast != nil {
		if err := e.broadcast.BroadcastBlock(block); err != nil {
			logrus.WithError(err).Error("consensus: failed to broadcast own block")
		}
	}
	return nil
}

// applyAndCommit validates the block's effects against a trial copy of the
// WorldState, persists those effects first, and only after storage confirms
// does it install the delta into the live state and drop the included
// transactions from the mempool. On any failure - trial application or
// storage commit - the live state and mempool are left untouched.
func (e *Engine) applyAndCommit(block *core.Block) error {
	delta, err := e.state.Delta(block)
	if err != nil {
		return err
	}

	if err := e.storage.CommitBlock(block, delta); err != nil {
		return err
	}

	e.state.Commit(delta)

	ids := make([]types.Hash, len(block.Transactions))
	for i := range block.Transactions {
		ids[i] = block.Transactions[i].ID()
	}
	e.mempool.Remove(ids)

	logrus.WithFields(logrus.Fields{
		"height": block.Header.BlockNumber,
		"txs":    len(block.Transactions),
	}).Info("consensus: committed block")
	return nil
}
