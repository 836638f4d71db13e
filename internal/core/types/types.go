// Package types defines the fixed-width primitive types shared by every
// other package in the node: hashes, addresses, key material, and the
// canonical binary encoding used for both signing targets and wire
// messages.
package types

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	internalerrors "empower1.com/empower1blockchain/internal/errors"
)

// HashSize is the length in bytes of a SHA-256 digest.
const HashSize = 32

// AddressSize is the length in bytes of an address (identical to a raw
// Ed25519 public key).
const AddressSize = 32

// PublicKeySize is the length in bytes of an Ed25519 public key.
const PublicKeySize = ed25519.PublicKeySize

// SignatureSize is the length in bytes of an Ed25519 signature.
const SignatureSize = ed25519.SignatureSize

// Hash is a 32-byte SHA-256 digest with a total byte-lexicographic order.
type Hash [HashSize]byte

// String renders the hash as lowercase hex.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Bytes returns the hash's byte slice view.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether the hash is the all-zero value (used for genesis'
// parent hash).
func (h Hash) IsZero() bool { return h == Hash{} }

// Less reports whether h sorts before o under lexicographic byte compare.
func (h Hash) Less(o Hash) bool {
	for i := range h {
		if h[i] != o[i] {
			return h[i] < o[i]
		}
	}
	return false
}

// HashFromBytes copies b into a Hash, erroring if the length is wrong.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: hash must be %d bytes, got %d", internalerrors.ErrDeserializationError, HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// SumSHA256 hashes b and wraps the digest in a Hash.
func SumSHA256(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// Address is a 32-byte account identifier. By design it is bit-identical to
// the raw bytes of the owning Ed25519 public key: address derivation is the
// identity function, not a hash.
type Address [AddressSize]byte

// String renders the address as "0x"-prefixed lowercase hex.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// Bytes returns the address's byte slice view.
func (a Address) Bytes() []byte { return a[:] }

// AddressFromBytes copies b into an Address, erroring if the length is wrong.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("%w: address must be %d bytes, got %d", internalerrors.ErrDeserializationError, AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromHex parses a hex-encoded address, with or without a "0x" prefix.
func AddressFromHex(s string) (Address, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", internalerrors.ErrDeserializationError, err)
	}
	return AddressFromBytes(b)
}

// PublicKey is an Ed25519 verifying key.
type PublicKey [PublicKeySize]byte

// String renders the public key as lowercase hex.
func (pk PublicKey) String() string { return hex.EncodeToString(pk[:]) }

// Bytes returns the public key's byte slice view.
func (pk PublicKey) Bytes() []byte { return pk[:] }

// PublicKeyFromBytes copies b into a PublicKey, erroring if the length is wrong.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("%w: public key must be %d bytes, got %d", internalerrors.ErrDeserializationError, PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// PublicKeyFromHex parses a hex-encoded public key.
func PublicKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", internalerrors.ErrDeserializationError, err)
	}
	return PublicKeyFromBytes(b)
}

// Address derives this public key's address. Address derivation is the
// identity function on the raw public key bytes (see Address).
func (pk PublicKey) Address() Address {
	return Address(pk)
}

// Verify reports whether sig is a valid Ed25519 signature by pk over msg.
func (pk PublicKey) Verify(msg []byte, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), msg, sig[:])
}

// Signature is an Ed25519 signature.
type Signature [SignatureSize]byte

// String renders the signature as lowercase hex.
func (s Signature) String() string { return hex.EncodeToString(s[:]) }

// Bytes returns the signature's byte slice view.
func (s Signature) Bytes() []byte { return s[:] }

// SignatureFromBytes copies b into a Signature, erroring if the length is wrong.
func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != SignatureSize {
		return s, fmt.Errorf("%w: signature must be %d bytes, got %d", internalerrors.ErrInvalidSignatureLength, SignatureSize, len(b))
	}
	copy(s[:], b)
	return s, nil
}

// Nonce is a per-sender replay-protection counter. It starts at 0 and
// increases by exactly 1 on each successful transaction from that sender.
type Nonce uint64

// BlockHeight is the sequential index of a block; genesis is height 0.
type BlockHeight uint64

// Timestamp is a Unix time in whole seconds.
type Timestamp uint64

// Encoder builds the canonical, deterministic binary encoding used for both
// signing targets and wire messages: length-prefixed byte strings and
// little-endian fixed-width integers, in a fixed field order agreed by every
// peer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty canonical encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// WriteBytes appends a uint32 little-endian length prefix followed by b.
func (e *Encoder) WriteBytes(b []byte) *Encoder {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	e.buf = append(e.buf, lenBuf[:]...)
	e.buf = append(e.buf, b...)
	return e
}

// WriteUint64 appends v as 8 little-endian bytes.
func (e *Encoder) WriteUint64(v uint64) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// Bytes returns the accumulated canonical encoding.
func (e *Encoder) Bytes() []byte { return e.buf }

// Sum256 hashes the accumulated canonical encoding with SHA-256.
func (e *Encoder) Sum256() Hash { return SumSHA256(e.buf) }

// HeightKey returns the big-endian 8-byte key used to index the headers
// column family by block height, preserving sorted iteration order.
func HeightKey(h BlockHeight) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(h))
	return b[:]
}
