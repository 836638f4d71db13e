package genesis_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"empower1.com/empower1blockchain/internal/genesis"
	"empower1.com/empower1blockchain/internal/state"
	"empower1.com/empower1blockchain/internal/storage"
)

func writeDescriptor(t *testing.T, pubHex, addrHex string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	content := `{
		"validators": ["` + pubHex + `"],
		"initial_balances": {"` + addrHex + `": 1000},
		"timestamp": 1700000000,
		"message": "test genesis"
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAndBootstrap(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubHex := hex.EncodeToString(pub)

	// Address equals the raw public key bytes (spec.md §9).
	addrHex := pubHex

	path := writeDescriptor(t, pubHex, addrHex)
	d, err := genesis.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(d.Validators) != 1 {
		t.Fatalf("got %d validators, want 1", len(d.Validators))
	}

	block, err := d.Block()
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !block.Header.IsGenesis() {
		t.Fatal("expected genesis block to report IsGenesis() == true")
	}

	st, err := storage.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer st.Close()
	sm := state.New()

	if err := genesis.Bootstrap(d, st, sm); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	_, height, found, err := st.ChainTip()
	if err != nil {
		t.Fatalf("ChainTip: %v", err)
	}
	if !found || height != 0 {
		t.Fatalf("expected chain tip at height 0 after bootstrap, found=%v height=%d", found, height)
	}
}

func TestBootstrapIsNoOpWhenTipExists(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubHex := hex.EncodeToString(pub)
	path := writeDescriptor(t, pubHex, pubHex)
	d, err := genesis.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	st, err := storage.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer st.Close()
	sm := state.New()

	if err := genesis.Bootstrap(d, st, sm); err != nil {
		t.Fatalf("first Bootstrap: %v", err)
	}
	if err := genesis.Bootstrap(d, st, sm); err != nil {
		t.Fatalf("second Bootstrap should be a no-op, got error: %v", err)
	}
	_, height, _, err := st.ChainTip()
	if err != nil {
		t.Fatalf("ChainTip: %v", err)
	}
	if height != 0 {
		t.Fatalf("expected height to remain 0 after no-op bootstrap, got %d", height)
	}
}

func TestLoadRejectsEmptyValidators(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	if err := os.WriteFile(path, []byte(`{"validators": [], "initial_balances": {}}`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := genesis.Load(path); err == nil {
		t.Fatal("expected error loading a descriptor with no validators")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := genesis.Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error loading a nonexistent genesis file")
	}
}
