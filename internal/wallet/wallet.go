// Package wallet contains the core logic for EmPower1 wallets: Ed25519
// keypair lifecycle, address derivation, message/transaction signing, and
// keyfile persistence. A node loads at most one wallet to sign blocks in
// the validator role; nodes without one run in observer mode.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tyler-smith/go-bip39"

	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/core/types"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
)

// Wallet holds an Ed25519 keypair and the address it derives.
type Wallet struct {
	signingKey ed25519.PrivateKey
	publicKey  types.PublicKey
	address    types.Address
}

// New generates a fresh wallet with a random Ed25519 keypair.
func New() (*Wallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return fromSigningKey(priv, pub)
}

// NewRandomMnemonic generates a fresh wallet and returns it alongside its
// 12-word BIP-39 mnemonic, so the operator can back up the validator key as
// a phrase instead of (or in addition to) the raw keyfile.
func NewRandomMnemonic() (*Wallet, string, error) {
	entropy, err := bip39.NewEntropy(128) // 128 bits -> 12 words
	if err != nil {
		return nil, "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("derive mnemonic: %w", err)
	}
	w, err := FromMnemonic(mnemonic)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// FromMnemonic recovers a wallet from a BIP-39 mnemonic phrase. The first
// 32 bytes of the mnemonic's seed material become the Ed25519 secret seed.
func FromMnemonic(mnemonic string) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, internalerrors.ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	signingKey := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	return fromSigningKey(signingKey, signingKey.Public().(ed25519.PublicKey))
}

func fromSigningKey(signingKey ed25519.PrivateKey, pub ed25519.PublicKey) (*Wallet, error) {
	pk, err := types.PublicKeyFromBytes(pub)
	if err != nil {
		return nil, err
	}
	return &Wallet{
		signingKey: signingKey,
		publicKey:  pk,
		address:    pk.Address(),
	}, nil
}

// PublicKey returns the wallet's public key.
func (w *Wallet) PublicKey() types.PublicKey { return w.publicKey }

// Address returns the wallet's address (identical to its public key bytes).
func (w *Wallet) Address() types.Address { return w.address }

// Sign signs a 32-byte message hash with the wallet's private key.
func (w *Wallet) Sign(messageHash []byte) (types.Signature, error) {
	if len(messageHash) != types.HashSize {
		return types.Signature{}, internalerrors.ErrInvalidHashLength
	}
	raw := ed25519.Sign(w.signingKey, messageHash)
	return types.SignatureFromBytes(raw)
}

// CreateSignedTransaction builds and signs a transaction sending amount to
// recipient at the given nonce.
func (w *Wallet) CreateSignedTransaction(recipient types.Address, amount uint64, nonce types.Nonce) (*core.Transaction, error) {
	tx := core.NewTransaction(w.publicKey, recipient, amount, nonce)
	sig, err := w.Sign(tx.ID().Bytes())
	if err != nil {
		return nil, err
	}
	tx.Signature = sig
	return tx, nil
}

// SaveToFile writes the raw 32-byte Ed25519 secret seed to path. This is a
// development/testing-grade key store: the seed is written unencrypted, so
// file permissions are the only protection.
func (w *Wallet) SaveToFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create keyfile directory: %w", err)
		}
	}
	seed := w.signingKey.Seed()
	if err := os.WriteFile(path, seed, 0o600); err != nil {
		return fmt.Errorf("write keyfile: %w", err)
	}
	return nil
}

// LoadFromFile reads a raw 32-byte Ed25519 secret seed from path.
func LoadFromFile(path string) (*Wallet, error) {
	seed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyfile: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: keyfile must hold a %d-byte seed, got %d", internalerrors.ErrInvalidKeyLength, ed25519.SeedSize, len(seed))
	}
	signingKey := ed25519.NewKeyFromSeed(seed)
	return fromSigningKey(signingKey, signingKey.Public().(ed25519.PublicKey))
}
