package core_test

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/core/types"
)

func TestMerkleRootEmpty(t *testing.T) {
	got := core.MerkleRoot(nil)
	want := types.SumSHA256(nil)
	if got != want {
		t.Fatalf("empty merkle root = %s, want sha256(\"\") = %s", got, want)
	}
}

func TestMerkleRootSingleTransaction(t *testing.T) {
	tx, _ := signedTestTx(t, 100, 1)
	got := core.MerkleRoot([]core.Transaction{*tx})

	id := tx.ID()
	h := sha256.New()
	h.Write(id.Bytes())
	h.Write(id.Bytes())
	want := types.SumSHA256(nil)
	copy(want[:], h.Sum(nil))

	if got != want {
		t.Fatalf("single-tx merkle root = %s, want doubled hash %s", got, want)
	}
}

func TestMerkleRootThreeTransactions(t *testing.T) {
	tx1, _ := signedTestTx(t, 100, 1)
	tx2, _ := signedTestTx(t, 200, 2)
	tx3, _ := signedTestTx(t, 300, 3)

	got := core.MerkleRoot([]core.Transaction{*tx1, *tx2, *tx3})

	pair := func(a, b types.Hash) types.Hash {
		h := sha256.New()
		h.Write(a.Bytes())
		h.Write(b.Bytes())
		var out types.Hash
		copy(out[:], h.Sum(nil))
		return out
	}
	h12 := pair(tx1.ID(), tx2.ID())
	h33 := pair(tx3.ID(), tx3.ID())
	want := pair(h12, h33)

	if got != want {
		t.Fatalf("three-tx merkle root = %s, want %s", got, want)
	}
}

func TestMerkleRootDeterministic(t *testing.T) {
	tx1, _ := signedTestTx(t, 100, 1)
	tx2, _ := signedTestTx(t, 200, 2)
	txs := []core.Transaction{*tx1, *tx2}

	if core.MerkleRoot(txs) != core.MerkleRoot(txs) {
		t.Fatal("merkle root must be deterministic across calls")
	}
}

func signedHeaderSig(t *testing.T, priv ed25519.PrivateKey, h *core.BlockHeader) types.Signature {
	t.Helper()
	sig, err := types.SignatureFromBytes(ed25519.Sign(priv, h.Hash().Bytes()))
	if err != nil {
		t.Fatalf("SignatureFromBytes: %v", err)
	}
	return sig
}

func TestBlockHeaderHashConsistency(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pk, _ := types.PublicKeyFromBytes(pub)

	h1 := core.BlockHeader{
		ParentHash:  types.Hash{1},
		BlockNumber: 1,
		Timestamp:   100,
		TxRoot:      types.Hash{2},
		Validator:   pk.Address(),
	}
	h1.Signature = signedHeaderSig(t, priv, &h1)

	h2 := h1
	if h1.Hash() != h2.Hash() {
		t.Fatal("identical headers must hash identically")
	}

	h3 := h1
	h3.Timestamp = 101
	if h1.Hash() == h3.Hash() {
		t.Fatal("differing headers must hash differently")
	}
}

func TestVerifyMerkleRootMismatch(t *testing.T) {
	tx1, _ := signedTestTx(t, 50, 1)
	tx2, _ := signedTestTx(t, 70, 2)
	b := &core.Block{
		Header: core.BlockHeader{
			TxRoot: types.Hash{9},
		},
		Transactions: []core.Transaction{*tx1, *tx2},
	}
	if err := b.VerifyMerkleRoot(); err == nil {
		t.Fatal("expected mismatch error for wrong tx_root")
	}

	b.Header.TxRoot = core.MerkleRoot(b.Transactions)
	if err := b.VerifyMerkleRoot(); err != nil {
		t.Fatalf("expected correct tx_root to verify, got %v", err)
	}
}

func TestBlockSerializeRoundTrip(t *testing.T) {
	tx, _ := signedTestTx(t, 10, 1)
	b := &core.Block{
		Header: core.BlockHeader{
			ParentHash:  types.Hash{0},
			BlockNumber: 1,
			Timestamp:   123,
			TxRoot:      core.MerkleRoot([]core.Transaction{*tx}),
			Validator:   types.Address{3},
		},
		Transactions: []core.Transaction{*tx},
	}
	data, err := b.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := core.DeserializeBlock(data)
	if err != nil {
		t.Fatalf("DeserializeBlock: %v", err)
	}
	if got.Header.Hash() != b.Header.Hash() {
		t.Fatal("round-tripped block has a different header hash")
	}
}
