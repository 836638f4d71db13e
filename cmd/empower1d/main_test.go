package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeTestGenesis(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubHex := hex.EncodeToString(pub)
	doc := map[string]interface{}{
		"validators":       []string{pubHex},
		"initial_balances": map[string]uint64{pubHex: 1000},
		"timestamp":        1700000000,
		"message":          "cmd test genesis",
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal genesis: %v", err)
	}
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	return path
}

func TestRunCmdRegistersFlags(t *testing.T) {
	cmd := runCmd()
	for _, name := range []string{
		"config", "listen-addr", "data-dir", "genesis-path",
		"keyfile-path", "seed-peers", "block-interval", "max-block-txs",
		"http-bind-addr",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected run command to register flag %q", name)
		}
	}
	if cmd.Use != "run" {
		t.Errorf("expected command Use to be %q, got %q", "run", cmd.Use)
	}
}

// TestRunNodeFailsFastOnMissingGenesis exercises runNode's config-loading and
// node-construction wiring without reaching the blocking Run loop: a missing
// genesis file makes node.New return before Run is ever called, so the
// command returns promptly instead of waiting on an OS signal.
func TestRunNodeFailsFastOnMissingGenesis(t *testing.T) {
	dataDir := t.TempDir()
	missingGenesis := filepath.Join(dataDir, "does-not-exist.json")

	cmd := runCmd()
	cmd.SetArgs([]string{
		"--listen-addr", "/ip4/127.0.0.1/tcp/0",
		"--data-dir", dataDir,
		"--genesis-path", missingGenesis,
		"--block-interval", "1h",
		"--max-block-txs", "10",
	})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected run command to fail when the genesis file is missing")
	}
}

func TestRunNodeFailsOnInvalidMaxBlockTxs(t *testing.T) {
	genesisPath := writeTestGenesis(t)
	dataDir := t.TempDir()

	cmd := runCmd()
	cmd.SetArgs([]string{
		"--listen-addr", "/ip4/127.0.0.1/tcp/0",
		"--data-dir", dataDir,
		"--genesis-path", genesisPath,
		"--block-interval", "1h",
		"--max-block-txs", "0",
	})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected run command to fail config validation with max-block-txs=0")
	}
}

func TestRootCommandHasRunSubcommand(t *testing.T) {
	var found bool
	for _, c := range newRootCmd().Commands() {
		if c.Use == "run" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected root command to register a \"run\" subcommand")
	}
}
