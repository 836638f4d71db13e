package mempool_test

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/core/types"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
	"empower1.com/empower1blockchain/internal/mempool"
)

func signedTx(t *testing.T, amount uint64, nonce types.Nonce) *core.Transaction {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pk, err := types.PublicKeyFromBytes(pub)
	if err != nil {
		t.Fatalf("PublicKeyFromBytes: %v", err)
	}
	tx := core.NewTransaction(pk, types.Address{0x01}, amount, nonce)
	sig, err := types.SignatureFromBytes(ed25519.Sign(priv, tx.ID().Bytes()))
	if err != nil {
		t.Fatalf("SignatureFromBytes: %v", err)
	}
	tx.Signature = sig
	return tx
}

func TestAddReturnsID(t *testing.T) {
	mp := mempool.New(mempool.DefaultConfig())
	tx := signedTx(t, 10, 0)
	id, err := mp.Add(tx)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id != tx.ID() {
		t.Fatal("Add must return the transaction's own ID")
	}
	if !mp.Contains(id) {
		t.Fatal("pool must contain the admitted transaction")
	}
}

func TestAddRejectsZeroAmount(t *testing.T) {
	mp := mempool.New(mempool.DefaultConfig())
	tx := signedTx(t, 0, 0)
	if _, err := mp.Add(tx); !errors.Is(err, internalerrors.ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	mp := mempool.New(mempool.DefaultConfig())
	tx := signedTx(t, 10, 0)
	if _, err := mp.Add(tx); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := mp.Add(tx); !errors.Is(err, internalerrors.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestAddRejectsWhenFull(t *testing.T) {
	mp := mempool.New(mempool.Config{MaxTransactions: 1})
	if _, err := mp.Add(signedTx(t, 10, 0)); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := mp.Add(signedTx(t, 20, 1)); !errors.Is(err, internalerrors.ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
}

// TestFullCheckPrecedesDuplicateCheck matches the admission order from the
// reference implementation: a pool at capacity rejects with PoolFull even
// when the incoming transaction is also a duplicate.
func TestFullCheckPrecedesDuplicateCheck(t *testing.T) {
	mp := mempool.New(mempool.Config{MaxTransactions: 1})
	tx := signedTx(t, 10, 0)
	if _, err := mp.Add(tx); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	filler := signedTx(t, 20, 1)
	if _, err := mp.Add(filler); !errors.Is(err, internalerrors.ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull for filler, got %v", err)
	}
	if _, err := mp.Add(tx); !errors.Is(err, internalerrors.ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull to take precedence over duplicate check, got %v", err)
	}
}

func TestPendingPreservesArrivalOrder(t *testing.T) {
	mp := mempool.New(mempool.DefaultConfig())
	var ids []types.Hash
	for i := uint64(0); i < 5; i++ {
		tx := signedTx(t, 10+i, types.Nonce(i))
		id, err := mp.Add(tx)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		ids = append(ids, id)
	}

	pending := mp.Pending(10)
	if len(pending) != 5 {
		t.Fatalf("expected 5 pending transactions, got %d", len(pending))
	}
	for i, tx := range pending {
		if tx.ID() != ids[i] {
			t.Fatalf("pending[%d] out of arrival order", i)
		}
	}
}

// TestRemovalPreservesOrder implements scenario S5: admit five transactions,
// remove the 2nd and 4th, and confirm pending() returns the rest in their
// original arrival order.
func TestRemovalPreservesOrder(t *testing.T) {
	mp := mempool.New(mempool.DefaultConfig())
	ids := make([]types.Hash, 5)
	for i := uint64(0); i < 5; i++ {
		tx := signedTx(t, 10+i, types.Nonce(i))
		id, err := mp.Add(tx)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		ids[i] = id
	}

	mp.Remove([]types.Hash{ids[1], ids[3]})

	want := []types.Hash{ids[0], ids[2], ids[4]}
	got := mp.Pending(10)
	if len(got) != len(want) {
		t.Fatalf("expected %d survivors, got %d", len(want), len(got))
	}
	for i, tx := range got {
		if tx.ID() != want[i] {
			t.Fatalf("survivor[%d] = %s, want %s", i, tx.ID(), want[i])
		}
	}
	for _, removed := range []types.Hash{ids[1], ids[3]} {
		if mp.Contains(removed) {
			t.Fatalf("removed ID %s must no longer be present", removed)
		}
	}
}

func TestRemoveUnknownIDsAreSilentlyIgnored(t *testing.T) {
	mp := mempool.New(mempool.DefaultConfig())
	tx := signedTx(t, 10, 0)
	id, err := mp.Add(tx)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	mp.Remove([]types.Hash{{0xff}})
	if !mp.Contains(id) {
		t.Fatal("removing an unrelated ID must not disturb existing entries")
	}
}

func TestStatus(t *testing.T) {
	mp := mempool.New(mempool.Config{MaxTransactions: 3})
	if s := mp.Status(); s.Count != 0 || s.Capacity != 3 {
		t.Fatalf("expected empty status, got %+v", s)
	}
	if _, err := mp.Add(signedTx(t, 10, 0)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if s := mp.Status(); s.Count != 1 || s.Capacity != 3 {
		t.Fatalf("expected count=1 capacity=3, got %+v", s)
	}
}
