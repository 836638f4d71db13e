package core

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"empower1.com/empower1blockchain/internal/core/types"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
)

// BlockHeader is the signed envelope of a block: everything needed to
// verify proposer legitimacy and body integrity without touching the
// transaction list itself.
type BlockHeader struct {
	ParentHash  types.Hash
	BlockNumber types.BlockHeight
	Timestamp   types.Timestamp
	TxRoot      types.Hash
	Validator   types.Address
	Signature   types.Signature
}

// SigningPayload returns the canonical encoding of the header fields with
// the signature cleared. This is both the signing target and the block
// hash.
func (h *BlockHeader) SigningPayload() []byte {
	return types.NewEncoder().
		WriteBytes(h.ParentHash.Bytes()).
		WriteUint64(uint64(h.BlockNumber)).
		WriteUint64(uint64(h.Timestamp)).
		WriteBytes(h.TxRoot.Bytes()).
		WriteBytes(h.Validator.Bytes()).
		WriteBytes(nil). // signature cleared for signing/hashing
		Bytes()
}

// Hash is the SHA-256 of the header's signing payload; it uniquely
// identifies the block and is the value the proposer signs.
func (h *BlockHeader) Hash() types.Hash {
	return types.SumSHA256(h.SigningPayload())
}

// IsGenesis reports whether this header is the genesis header (height 0),
// which carries an all-zero signature and is not consensus-validated.
func (h *BlockHeader) IsGenesis() bool {
	return h.BlockNumber == 0
}

// Block is a header plus its ordered list of transactions.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}

// VerifyMerkleRoot recomputes the Merkle root over the block's transactions
// and compares it against the header's recorded TxRoot.
func (b *Block) VerifyMerkleRoot() error {
	got := MerkleRoot(b.Transactions)
	if got != b.Header.TxRoot {
		return fmt.Errorf("%w: header has %s, body computes %s", internalerrors.ErrMerkleRootMismatch, b.Header.TxRoot, got)
	}
	return nil
}

// MerkleRoot computes the Merkle root of an ordered sequence of
// transactions by pairwise SHA-256 hashing of their IDs, duplicating the
// last element at any level of odd length (except when already reduced to
// a single hash).
func MerkleRoot(txs []Transaction) types.Hash {
	if len(txs) == 0 {
		return types.SumSHA256(nil)
	}

	level := make([]types.Hash, len(txs))
	for i := range txs {
		level[i] = txs[i].ID()
	}

	if len(level) == 1 {
		return hashPair(level[0], level[0])
	}

	if len(level)%2 != 0 {
		level = append(level, level[len(level)-1])
	}

	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		level = next
		if len(level)%2 != 0 && len(level) > 1 {
			level = append(level, level[len(level)-1])
		}
	}
	return level[0]
}

func hashPair(left, right types.Hash) types.Hash {
	buf := make([]byte, 0, types.HashSize*2)
	buf = append(buf, left.Bytes()...)
	buf = append(buf, right.Bytes()...)
	return types.SumSHA256(buf)
}

// Serialize gob-encodes the block for storage and network transport.
func (b *Block) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerrors.ErrSerializationError, err)
	}
	return buf.Bytes(), nil
}

// DeserializeBlock decodes a block previously produced by Serialize.
func DeserializeBlock(data []byte) (*Block, error) {
	var b Block
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerrors.ErrDeserializationError, err)
	}
	return &b, nil
}
