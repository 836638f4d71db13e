// Package state owns the node's account-based WorldState: the mapping from
// address to balance and nonce, and the transaction/block application rules
// that advance it.
package state

import (
	"fmt"
	"sync"

	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/core/types"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
)

// Account holds a single address's balance and replay-protection nonce.
type Account struct {
	Balance uint64
	Nonce   types.Nonce
}

// Machine owns the in-memory WorldState and applies transactions/blocks to
// it under a single read-write lock.
type Machine struct {
	mu    sync.RWMutex
	world map[types.Address]Account
}

// New creates an empty state machine.
func New() *Machine {
	return &Machine{world: make(map[types.Address]Account)}
}

// SetAccount installs or overwrites an account, used during genesis
// initialization and in tests.
func (m *Machine) SetAccount(addr types.Address, acc Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.world[addr] = acc
}

// GetAccount returns the account at addr and whether it exists.
func (m *Machine) GetAccount(addr types.Address) (Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.world[addr]
	return acc, ok
}

// ApplyTransaction debits the sender, credits the recipient (creating the
// recipient account if absent), and increments the sender's nonce. It is
// all-or-nothing: any rejection leaves the WorldState untouched.
func (m *Machine) ApplyTransaction(tx *core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyTransactionLocked(tx)
}

func (m *Machine) applyTransactionLocked(tx *core.Transaction) error {
	return applyTransactionToWorld(m.world, tx)
}

// applyTransactionToWorld mutates world in place per tx's effects: debit the
// sender, credit the recipient (creating it if absent), and bump the
// sender's nonce. It is the single rule set shared by the live state
// machine and by Delta's non-mutating trial application.
func applyTransactionToWorld(world map[types.Address]Account, tx *core.Transaction) error {
	senderAddr := tx.SenderAddress()

	sender, ok := world[senderAddr]
	if !ok {
		return fmt.Errorf("%w: %s", internalerrors.ErrAccountNotFound, senderAddr)
	}
	if sender.Balance < tx.Amount {
		return fmt.Errorf("%w: have %d, need %d", internalerrors.ErrInsufficientBalance, sender.Balance, tx.Amount)
	}
	if sender.Nonce != tx.Nonce {
		return fmt.Errorf("%w: expected %d, got %d", internalerrors.ErrInvalidNonce, sender.Nonce, tx.Nonce)
	}

	sender.Balance -= tx.Amount
	sender.Nonce++

	recipient := world[tx.Recipient]
	if tx.Recipient == senderAddr {
		recipient = sender
	}
	newRecipientBalance := recipient.Balance + tx.Amount
	if newRecipientBalance < recipient.Balance {
		return fmt.Errorf("%w: recipient %s", internalerrors.ErrBalanceOverflow, tx.Recipient)
	}

	world[senderAddr] = sender

	recipient.Balance = newRecipientBalance
	world[tx.Recipient] = recipient

	return nil
}

// ApplyBlock applies every transaction in block in order. On the first
// failure, the WorldState is restored to its pre-block snapshot and the
// originating error is returned; on success every transaction's effects are
// reflected in the WorldState.
func (m *Machine) ApplyBlock(block *core.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[types.Address]Account, len(m.world))
	for addr, acc := range m.world {
		snapshot[addr] = acc
	}

	for i := range block.Transactions {
		if err := m.applyTransactionLocked(&block.Transactions[i]); err != nil {
			m.world = snapshot
			return err
		}
	}
	return nil
}

// Delta computes, without mutating the live state, the account balances
// that would result from applying block's transactions in order. It returns
// the post-application state of every address touched by the block (the
// shape storage.Engine.CommitBlock expects), or the first validation error
// encountered. Callers must durably persist the returned delta before
// calling Commit to install it - this is what lets a failed storage commit
// leave the live WorldState, and therefore the mempool read that follows
// it, untouched.
func (m *Machine) Delta(block *core.Block) (map[types.Address]Account, error) {
	m.mu.RLock()
	trial := make(map[types.Address]Account, len(m.world))
	for addr, acc := range m.world {
		trial[addr] = acc
	}
	m.mu.RUnlock()

	touched := make(map[types.Address]struct{}, len(block.Transactions)*2)
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if err := applyTransactionToWorld(trial, tx); err != nil {
			return nil, err
		}
		touched[tx.SenderAddress()] = struct{}{}
		touched[tx.Recipient] = struct{}{}
	}

	delta := make(map[types.Address]Account, len(touched))
	for addr := range touched {
		delta[addr] = trial[addr]
	}
	return delta, nil
}

// Commit installs a WorldState delta previously computed by Delta into the
// live state. Callers must only do this after the same delta has been
// durably persisted via storage.Engine.CommitBlock.
func (m *Machine) Commit(delta map[types.Address]Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for addr, acc := range delta {
		m.world[addr] = acc
	}
}

// Snapshot returns a copy of the current WorldState, primarily for tests
// and read-only queries.
func (m *Machine) Snapshot() map[types.Address]Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[types.Address]Account, len(m.world))
	for addr, acc := range m.world {
		out[addr] = acc
	}
	return out
}
