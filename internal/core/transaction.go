package core

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"empower1.com/empower1blockchain/internal/core/types"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
)

// Transaction is a signed transfer of value from one account to another.
// The sender is identified by its public key rather than its address: the
// address is recovered by deriving it from the key, which also lets
// signature verification and address derivation share the same field.
type Transaction struct {
	Sender    types.PublicKey
	Recipient types.Address
	Amount    uint64
	Nonce     types.Nonce
	Signature types.Signature
}

// NewTransaction constructs an unsigned transaction payload. Callers
// typically use Wallet.CreateSignedTransaction instead of this directly.
func NewTransaction(sender types.PublicKey, recipient types.Address, amount uint64, nonce types.Nonce) *Transaction {
	return &Transaction{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Nonce:     nonce,
	}
}

// SigningPayload returns the canonical encoding of the fields that are
// signed and hashed for transaction identity: sender, recipient, amount,
// nonce. The signature itself is never part of this payload.
func (tx *Transaction) SigningPayload() []byte {
	return types.NewEncoder().
		WriteBytes(tx.Sender.Bytes()).
		WriteBytes(tx.Recipient.Bytes()).
		WriteUint64(tx.Amount).
		WriteUint64(uint64(tx.Nonce)).
		Bytes()
}

// ID is the SHA-256 of the signing payload. It is both the transaction's
// identifier and the hash that the sender's signature covers; two
// differently-signed copies of the same payload share the same ID.
func (tx *Transaction) ID() types.Hash {
	return types.SumSHA256(tx.SigningPayload())
}

// SenderAddress derives the sender's address from its public key.
func (tx *Transaction) SenderAddress() types.Address {
	return tx.Sender.Address()
}

// VerifySignature checks that Signature is a valid Ed25519 signature by
// Sender over the transaction ID.
func (tx *Transaction) VerifySignature() error {
	if !tx.Sender.Verify(tx.ID().Bytes(), tx.Signature) {
		return internalerrors.ErrInvalidSignature
	}
	return nil
}

// Validate performs intrinsic (stateless) validation: nonzero amount and a
// signature that verifies under the declared sender key. It does not touch
// any world-state.
func (tx *Transaction) Validate() error {
	if tx.Amount == 0 {
		return internalerrors.ErrZeroAmount
	}
	return tx.VerifySignature()
}

// Serialize gob-encodes the transaction for storage and network transport.
func (tx *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tx); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerrors.ErrSerializationError, err)
	}
	return buf.Bytes(), nil
}

// DeserializeTransaction decodes a transaction previously produced by Serialize.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&tx); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerrors.ErrDeserializationError, err)
	}
	return &tx, nil
}
