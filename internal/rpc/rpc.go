// Package rpc exposes a minimal read-only HTTP query facade over a node's
// storage engine: account balances, chain tip, and block lookup by hash or
// height. It never mutates mempool, state, or storage — submitting
// transactions happens over the gossip network, not this facade.
package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"empower1.com/empower1blockchain/internal/core/types"
	"empower1.com/empower1blockchain/internal/storage"
)

// Server wraps a chi router and http.Server over a node's storage engine.
type Server struct {
	storage *storage.Engine
	router  chi.Router
	httpSrv *http.Server
}

// NewServer builds a Server bound to addr, backed by st.
func NewServer(addr string, st *storage.Engine) *Server {
	s := &Server{storage: st}

	r := chi.NewRouter()
	r.Get("/tip", s.handleTip)
	r.Get("/accounts/{address}", s.handleAccount)
	r.Get("/blocks/{hash}", s.handleBlockByHash)
	r.Get("/blocks/height/{height}", s.handleBlockByHeight)
	s.router = r

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the server's HTTP handler, primarily for tests that want
// to drive it via httptest without binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving HTTP requests until the server is shut down.
func (s *Server) ListenAndServe() error {
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) {
	tip, height, found, err := s.storage.ChainTip()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "chain has no blocks yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hash":   tip.String(),
		"height": uint64(height),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := types.AddressFromHex(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	acc, found, err := s.storage.GetAccount(addr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": addr.String(),
		"balance": acc.Balance,
		"nonce":   uint64(acc.Nonce),
	})
}

func (s *Server) handleBlockByHash(w http.ResponseWriter, r *http.Request) {
	raw, err := hex.DecodeString(chi.URLParam(r, "hash"))
	if err != nil {
		http.Error(w, "invalid hash", http.StatusBadRequest)
		return
	}
	hash, err := types.HashFromBytes(raw)
	if err != nil {
		http.Error(w, "invalid hash", http.StatusBadRequest)
		return
	}
	block, err := s.storage.GetBlock(hash)
	if err != nil {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleBlockByHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(chi.URLParam(r, "height"), 10, 64)
	if err != nil {
		http.Error(w, "invalid height", http.StatusBadRequest)
		return
	}
	header, err := s.storage.GetHeaderByHeight(types.BlockHeight(height))
	if err != nil {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}
	block, err := s.storage.GetBlock(header.Hash())
	if err != nil {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, block)
}
