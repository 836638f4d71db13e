package rpc_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/core/types"
	"empower1.com/empower1blockchain/internal/rpc"
	"empower1.com/empower1blockchain/internal/state"
	"empower1.com/empower1blockchain/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.Engine) {
	t.Helper()
	st, err := storage.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	srv := rpc.NewServer("", st)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, st
}

func TestHandleTipNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/tip")
	if err != nil {
		t.Fatalf("GET /tip: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleTipAfterCommit(t *testing.T) {
	ts, st := newTestServer(t)

	block := &core.Block{Header: core.BlockHeader{BlockNumber: 0, TxRoot: core.MerkleRoot(nil)}}
	if err := st.CommitBlock(block, nil); err != nil {
		t.Fatalf("CommitBlock: %v", err)
	}

	resp, err := http.Get(ts.URL + "/tip")
	if err != nil {
		t.Fatalf("GET /tip: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["height"].(float64) != 0 {
		t.Errorf("height = %v, want 0", body["height"])
	}
}

func TestHandleAccountFound(t *testing.T) {
	ts, st := newTestServer(t)

	var addr types.Address
	addr[0] = 0xAB
	if err := st.PutAccount(addr, state.Account{Balance: 500, Nonce: 2}); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	resp, err := http.Get(ts.URL + "/accounts/" + addr.String()[2:]) // strip 0x
	if err != nil {
		t.Fatalf("GET /accounts: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["balance"].(float64) != 500 {
		t.Errorf("balance = %v, want 500", body["balance"])
	}
}

func TestHandleAccountNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	var addr types.Address
	resp, err := http.Get(ts.URL + "/accounts/" + addr.String()[2:])
	if err != nil {
		t.Fatalf("GET /accounts: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleAccountInvalidAddress(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/accounts/not-hex")
	if err != nil {
		t.Fatalf("GET /accounts: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleBlockByHeight(t *testing.T) {
	ts, st := newTestServer(t)
	block := &core.Block{Header: core.BlockHeader{BlockNumber: 0, TxRoot: core.MerkleRoot(nil)}}
	if err := st.CommitBlock(block, nil); err != nil {
		t.Fatalf("CommitBlock: %v", err)
	}

	resp, err := http.Get(ts.URL + "/blocks/height/0")
	if err != nil {
		t.Fatalf("GET /blocks/height/0: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleBlockByHeightNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/blocks/height/99")
	if err != nil {
		t.Fatalf("GET /blocks/height/99: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
