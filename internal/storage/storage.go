// Package storage persists blocks, headers, account state, and chain-tip
// metadata in a single embedded key/value database. Four logical column
// families (blocks, headers-by-height, state, meta) are modeled as
// single-byte key prefixes, since the underlying store has no native column
// family concept. commit_block writes a new block, every touched account,
// and the tip/height meta keys inside one transaction so that a crash
// midway through a commit can never leave a partially-applied tip visible.
package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v2"
	"go.uber.org/zap"

	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/core/types"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
	"empower1.com/empower1blockchain/internal/state"
)

const (
	prefixBlocks  byte = 'b'
	prefixHeaders byte = 'h'
	prefixState   byte = 's'
	prefixMeta    byte = 'm'
)

var (
	tipKey    = metaKey("tip")
	heightKey = metaKey("height")
)

func metaKey(name string) []byte {
	return append([]byte{prefixMeta}, []byte(name)...)
}

func blockKey(hash types.Hash) []byte {
	return append([]byte{prefixBlocks}, hash.Bytes()...)
}

func headerKey(height types.BlockHeight) []byte {
	return append([]byte{prefixHeaders}, types.HeightKey(height)...)
}

func stateKey(addr types.Address) []byte {
	return append([]byte{prefixState}, addr.Bytes()...)
}

// Engine is the node's persistent store, backed by an embedded badger
// database.
type Engine struct {
	db     *badger.DB
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if necessary) a badger database rooted at dir.
func Open(dir string, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is noisy at default level; we log at the call sites we care about.
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %s: %v", internalerrors.ErrStorageIO, dir, err)
	}
	return &Engine{db: db, logger: logger}, nil
}

// checkOpen reports ErrStorageClosed once Close has been called, so every
// accessor fails fast instead of racing badger's own post-close errors.
func (e *Engine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return internalerrors.ErrStorageClosed
	}
	return nil
}

// Close releases the underlying database handle. Calling Close more than
// once is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("%w: %v", internalerrors.ErrStorageIO, err)
	}
	e.closed = true
	return nil
}

// PutBlock stores a block keyed by its header hash.
func (e *Engine) PutBlock(block *core.Block) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	data, err := block.Serialize()
	if err != nil {
		return err
	}
	hash := block.Header.Hash()
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(hash), data)
	})
}

// GetBlock retrieves a block by its header hash.
func (e *Engine) GetBlock(hash types.Hash) (*core.Block, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var data []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: block %s", internalerrors.ErrNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerrors.ErrStorageIO, err)
	}
	return core.DeserializeBlock(data)
}

// PutHeaderByHeight indexes a header by its block height, preserving
// big-endian key ordering so a range scan visits headers in height order.
func (e *Engine) PutHeaderByHeight(height types.BlockHeight, header *core.BlockHeader) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	data, err := serializeHeader(header)
	if err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(headerKey(height), data)
	})
}

// GetHeaderByHeight retrieves the header stored at height.
func (e *Engine) GetHeaderByHeight(height types.BlockHeight) (*core.BlockHeader, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var data []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(headerKey(height))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: header at height %d", internalerrors.ErrNotFound, height)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerrors.ErrStorageIO, err)
	}
	return deserializeHeader(data)
}

// PutAccount stores a single account's state.
func (e *Engine) PutAccount(addr types.Address, acc state.Account) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey(addr), serializeAccount(acc))
	})
}

// GetAccount retrieves a single account's state.
func (e *Engine) GetAccount(addr types.Address) (state.Account, bool, error) {
	if err := e.checkOpen(); err != nil {
		return state.Account{}, false, err
	}
	var acc state.Account
	found := false
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(addr))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			a, derr := deserializeAccount(val)
			if derr != nil {
				return derr
			}
			acc = a
			return nil
		})
	})
	if err != nil {
		return state.Account{}, false, fmt.Errorf("%w: %v", internalerrors.ErrStorageIO, err)
	}
	return acc, found, nil
}

// ChainTip reports the current tip hash and height, if any block has ever
// been committed.
func (e *Engine) ChainTip() (types.Hash, types.BlockHeight, bool, error) {
	if err := e.checkOpen(); err != nil {
		return types.Hash{}, 0, false, err
	}
	var tip types.Hash
	var height types.BlockHeight
	found := false
	err := e.db.View(func(txn *badger.Txn) error {
		tipItem, err := txn.Get(tipKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tipItem.Value(func(val []byte) error {
			h, herr := types.HashFromBytes(val)
			if herr != nil {
				return herr
			}
			tip = h
			return nil
		}); err != nil {
			return err
		}

		heightItem, err := txn.Get(heightKey)
		if err != nil {
			return err
		}
		return heightItem.Value(func(val []byte) error {
			height = types.BlockHeight(binary.BigEndian.Uint64(val))
			found = true
			return nil
		})
	})
	if err != nil {
		return types.Hash{}, 0, false, fmt.Errorf("%w: %v", internalerrors.ErrStorageIO, err)
	}
	return tip, height, found, nil
}

// CommitBlock atomically persists block, every account in worldState, and
// the new chain tip/height in a single badger transaction. Either all of
// these writes become visible together, or (on any failure, including a
// crash before the transaction commits) none of them do.
func (e *Engine) CommitBlock(block *core.Block, worldState map[types.Address]state.Account) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	blockData, err := block.Serialize()
	if err != nil {
		return err
	}
	headerData, err := serializeHeader(&block.Header)
	if err != nil {
		return err
	}
	hash := block.Header.Hash()

	heightBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBuf, uint64(block.Header.BlockNumber))

	err = e.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(hash), blockData); err != nil {
			return err
		}
		if err := txn.Set(headerKey(block.Header.BlockNumber), headerData); err != nil {
			return err
		}
		for addr, acc := range worldState {
			if err := txn.Set(stateKey(addr), serializeAccount(acc)); err != nil {
				return err
			}
		}
		if err := txn.Set(tipKey, hash.Bytes()); err != nil {
			return err
		}
		return txn.Set(heightKey, heightBuf)
	})
	if err != nil {
		e.logger.Error("commit_block failed", zap.Uint64("height", uint64(block.Header.BlockNumber)), zap.Error(err))
		return fmt.Errorf("%w: commit block %s: %v", internalerrors.ErrStorageIO, hash, err)
	}
	e.logger.Info("committed block", zap.Uint64("height", uint64(block.Header.BlockNumber)), zap.String("hash", hash.String()))
	return nil
}

func serializeAccount(acc state.Account) []byte {
	return types.NewEncoder().WriteUint64(acc.Balance).WriteUint64(uint64(acc.Nonce)).Bytes()
}

func deserializeAccount(data []byte) (state.Account, error) {
	if len(data) != 16 {
		return state.Account{}, fmt.Errorf("%w: account record has %d bytes, want 16", internalerrors.ErrDeserializationError, len(data))
	}
	return state.Account{
		Balance: binary.LittleEndian.Uint64(data[0:8]),
		Nonce:   types.Nonce(binary.LittleEndian.Uint64(data[8:16])),
	}, nil
}

func serializeHeader(h *core.BlockHeader) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(h.ParentHash.Bytes())
	var heightBuf [8]byte
	binary.LittleEndian.PutUint64(heightBuf[:], uint64(h.BlockNumber))
	buf.Write(heightBuf[:])
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(h.Timestamp))
	buf.Write(tsBuf[:])
	buf.Write(h.TxRoot.Bytes())
	buf.Write(h.Validator.Bytes())
	buf.Write(h.Signature.Bytes())
	return buf.Bytes(), nil
}

func deserializeHeader(data []byte) (*core.BlockHeader, error) {
	const want = types.HashSize*3 + types.AddressSize + types.SignatureSize + 16
	if len(data) != want {
		return nil, fmt.Errorf("%w: header record has %d bytes, want %d", internalerrors.ErrDeserializationError, len(data), want)
	}
	var h core.BlockHeader
	offset := 0
	parentHash, err := types.HashFromBytes(data[offset : offset+types.HashSize])
	if err != nil {
		return nil, err
	}
	h.ParentHash = parentHash
	offset += types.HashSize

	h.BlockNumber = types.BlockHeight(binary.LittleEndian.Uint64(data[offset : offset+8]))
	offset += 8
	h.Timestamp = types.Timestamp(binary.LittleEndian.Uint64(data[offset : offset+8]))
	offset += 8

	txRoot, err := types.HashFromBytes(data[offset : offset+types.HashSize])
	if err != nil {
		return nil, err
	}
	h.TxRoot = txRoot
	offset += types.HashSize

	addr, err := types.AddressFromBytes(data[offset : offset+types.AddressSize])
	if err != nil {
		return nil, err
	}
	h.Validator = addr
	offset += types.AddressSize

	sig, err := types.SignatureFromBytes(data[offset : offset+types.SignatureSize])
	if err != nil {
		return nil, err
	}
	h.Signature = sig

	return &h, nil
}
