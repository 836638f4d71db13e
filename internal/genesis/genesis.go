// Package genesis loads a genesis descriptor and bootstraps a fresh node's
// storage and state machine from it.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"

	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/core/types"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
	"empower1.com/empower1blockchain/internal/state"
	"empower1.com/empower1blockchain/internal/storage"
)

// Descriptor is the JSON wire shape of a genesis file: the fixed validator
// set, initial account balances, and a human-readable timestamp/message.
type Descriptor struct {
	Validators      []string          `json:"validators"`       // hex-encoded public keys, proposer order
	InitialBalances map[string]uint64 `json:"initial_balances"` // hex address -> balance
	Timestamp       uint64            `json:"timestamp"`
	Message         string            `json:"message"`
}

// Load reads and parses a genesis descriptor from a JSON file.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read descriptor: %w", err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("genesis: parse descriptor: %w", err)
	}
	if len(d.Validators) == 0 {
		return nil, fmt.Errorf("%w: genesis descriptor has no validators", internalerrors.ErrEmptyValidatorSet)
	}
	return &d, nil
}

// ValidatorKeys decodes the descriptor's hex-encoded validator public keys
// in genesis order.
func (d *Descriptor) ValidatorKeys() ([]types.PublicKey, error) {
	out := make([]types.PublicKey, len(d.Validators))
	for i, hexKey := range d.Validators {
		pk, err := types.PublicKeyFromHex(hexKey)
		if err != nil {
			return nil, fmt.Errorf("genesis: validator %d: %w", i, err)
		}
		out[i] = pk
	}
	return out, nil
}

// Block constructs the canonical genesis block for this descriptor: height
// 0, all-zero parent hash, empty transaction list, validator = address of
// validators[0], and an all-zero (unchecked) signature.
func (d *Descriptor) Block() (*core.Block, error) {
	validators, err := d.ValidatorKeys()
	if err != nil {
		return nil, err
	}
	header := core.BlockHeader{
		ParentHash:  types.Hash{},
		BlockNumber: 0,
		Timestamp:   types.Timestamp(d.Timestamp),
		TxRoot:      core.MerkleRoot(nil),
		Validator:   validators[0].Address(),
		Signature:   types.Signature{},
	}
	return &core.Block{Header: header, Transactions: nil}, nil
}

// InitialAccounts decodes the descriptor's hex-address initial balance map
// into a state.Account snapshot, each account starting at nonce 0.
func (d *Descriptor) InitialAccounts() (map[types.Address]state.Account, error) {
	out := make(map[types.Address]state.Account, len(d.InitialBalances))
	for hexAddr, balance := range d.InitialBalances {
		addr, err := types.AddressFromHex(hexAddr)
		if err != nil {
			return nil, fmt.Errorf("genesis: initial balance address %q: %w", hexAddr, err)
		}
		out[addr] = state.Account{Balance: balance, Nonce: 0}
	}
	return out, nil
}

// Bootstrap synthesizes and commits the genesis block and initial accounts
// if storage has no chain tip yet. If a tip already exists, Bootstrap is a
// no-op: the node is resuming an existing chain, not starting fresh.
func Bootstrap(d *Descriptor, st *storage.Engine, sm *state.Machine) error {
	_, _, found, err := st.ChainTip()
	if err != nil {
		return fmt.Errorf("genesis: read chain tip: %w", err)
	}
	if found {
		return nil
	}

	accounts, err := d.InitialAccounts()
	if err != nil {
		return err
	}
	for addr, acc := range accounts {
		sm.SetAccount(addr, acc)
	}

	block, err := d.Block()
	if err != nil {
		return err
	}
	if err := sm.ApplyBlock(block); err != nil {
		return fmt.Errorf("genesis: apply genesis block: %w", err)
	}
	if err := st.CommitBlock(block, accounts); err != nil {
		return fmt.Errorf("genesis: commit genesis block: %w", err)
	}
	return nil
}
