// Package mempool implements the node's bounded FIFO staging area for
// admitted, not-yet-committed transactions. Admission assumes the caller
// (network layer or RPC handler) has already verified the transaction's
// signature; the mempool only enforces capacity, duplication, and the
// zero-amount sanity check.
package mempool

import (
	"sync"

	"github.com/sirupsen/logrus"

	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/core/types"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
)

// DefaultMaxTransactions is the default pool capacity when a node does not
// override it via configuration.
const DefaultMaxTransactions = 1000

// Config controls mempool admission limits.
type Config struct {
	MaxTransactions int
}

// DefaultConfig returns the mempool configuration used when a node does not
// supply its own.
func DefaultConfig() Config {
	return Config{MaxTransactions: DefaultMaxTransactions}
}

// Status reports the mempool's current occupancy.
type Status struct {
	Count    int
	Capacity int
}

// Mempool is a bounded FIFO set of transactions keyed by ID, with a
// separate queue recording arrival order. Both structures are kept in sync
// under a single lock so that pending() and remove() agree on ordering.
type Mempool struct {
	config Config

	mu           sync.RWMutex
	transactions map[types.Hash]*core.Transaction
	queue        []types.Hash
}

// New creates an empty mempool with the given configuration.
func New(config Config) *Mempool {
	if config.MaxTransactions <= 0 {
		config.MaxTransactions = DefaultMaxTransactions
	}
	return &Mempool{
		config:       config,
		transactions: make(map[types.Hash]*core.Transaction),
		queue:        make([]types.Hash, 0, config.MaxTransactions),
	}
}

// Add admits tx into the pool, returning its ID on success. Checks run in
// this order: pool-full, duplicate, zero-amount. The mempool does not
// re-verify the transaction's signature.
func (mp *Mempool) Add(tx *core.Transaction) (types.Hash, error) {
	id := tx.ID()

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if len(mp.queue) >= mp.config.MaxTransactions {
		logrus.WithField("tx_id", id).Debug("mempool full, rejecting transaction")
		return types.Hash{}, internalerrors.ErrPoolFull
	}

	if _, exists := mp.transactions[id]; exists {
		logrus.WithField("tx_id", id).Debug("duplicate transaction, rejecting")
		return types.Hash{}, internalerrors.ErrDuplicateTransaction
	}

	if tx.Amount == 0 {
		logrus.WithField("tx_id", id).Debug("zero-amount transaction, rejecting")
		return types.Hash{}, internalerrors.ErrZeroAmount
	}

	mp.transactions[id] = tx
	mp.queue = append(mp.queue, id)
	logrus.WithFields(logrus.Fields{"tx_id": id, "pending": len(mp.queue)}).Debug("admitted transaction to mempool")
	return id, nil
}

// Pending returns up to maxN transactions in arrival order, without
// removing them from the pool. maxN <= 0 means "no limit".
func (mp *Mempool) Pending(maxN int) []*core.Transaction {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	n := len(mp.queue)
	if maxN > 0 && maxN < n {
		n = maxN
	}

	out := make([]*core.Transaction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, mp.transactions[mp.queue[i]])
	}
	return out
}

// Remove deletes the given IDs from both the map and the queue, preserving
// the arrival order of survivors. Unknown IDs are silently ignored.
func (mp *Mempool) Remove(ids []types.Hash) {
	if len(ids) == 0 {
		return
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	toRemove := make(map[types.Hash]struct{}, len(ids))
	for _, id := range ids {
		toRemove[id] = struct{}{}
	}

	survivors := mp.queue[:0:0]
	for _, id := range mp.queue {
		if _, drop := toRemove[id]; drop {
			delete(mp.transactions, id)
			continue
		}
		survivors = append(survivors, id)
	}
	mp.queue = survivors
}

// Contains reports whether id is currently staged in the pool.
func (mp *Mempool) Contains(id types.Hash) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	_, ok := mp.transactions[id]
	return ok
}

// Status reports the current occupancy and configured capacity.
func (mp *Mempool) Status() Status {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return Status{Count: len(mp.queue), Capacity: mp.config.MaxTransactions}
}
