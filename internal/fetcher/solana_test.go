package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const (
	wallet    = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	reference = "H6ARHf6YXhGYeQfUzQNGk6rDNnLBQKrenN712K4AQJEG"
)

func rpcServer(t *testing.T, handle func(method string, params []json.RawMessage) (any, int)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode rpc request: %v", err)
		}
		result, status := handle(req.Method, req.Params)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
}

func TestSolanaGetSignatures(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage) (any, int) {
		if method != "getSignaturesForAddress" {
			t.Fatalf("unexpected method %s", method)
		}
		var cfg map[string]int
		_ = json.Unmarshal(params[1], &cfg)
		if cfg["limit"] != 50 {
			t.Fatalf("limit should default to 50, got %d", cfg["limit"])
		}
		return []map[string]any{
			{"signature": "sig1", "slot": 10, "err": nil},
			{"signature": "sig2", "slot": 9, "err": map[string]any{"InstructionError": []any{0, "x"}}},
		}, http.StatusOK
	})
	defer srv.Close()

	s := NewSolana(SolanaOptions{RPCURL: srv.URL, Timeout: time.Second}, noopLogger())
	sigs, err := s.GetSignaturesForAddress(context.Background(), wallet, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 2 || sigs[0].Signature != "sig1" {
		t.Fatalf("unexpected signatures %+v", sigs)
	}
	if sigs[0].Failed() || !sigs[1].Failed() {
		t.Fatal("err field should drive Failed()")
	}
}

func TestSolanaGetTransactionParsesMixedAccountKeys(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage) (any, int) {
		var cfg map[string]any
		_ = json.Unmarshal(params[1], &cfg)
		if cfg["encoding"] != "jsonParsed" {
			t.Fatalf("encoding should be jsonParsed, got %v", cfg["encoding"])
		}
		return map[string]any{
			"slot": 42,
			"meta": map[string]any{
				"err":          nil,
				"preBalances":  []uint64{5_000_000_000, 1_000, 0},
				"postBalances": []uint64{3_999_995_000, 1_001_000_000, 0},
				"preTokenBalances": []map[string]any{
					{"accountIndex": 2, "mint": "M", "owner": wallet, "uiTokenAmount": map[string]any{"amount": "100", "decimals": 6}},
				},
				"postTokenBalances": []map[string]any{
					{"accountIndex": 2, "mint": "M", "owner": wallet, "uiTokenAmount": map[string]any{"amount": "2500100", "decimals": 6}},
					{"accountIndex": 3, "mint": "M", "owner": wallet, "uiTokenAmount": map[string]any{"amount": "bogus", "decimals": 6}},
				},
			},
			"transaction": map[string]any{
				"message": map[string]any{
					"accountKeys": []any{
						map[string]any{"pubkey": "payer", "signer": true},
						wallet,
						map[string]any{"pubkey": reference, "signer": false},
					},
				},
			},
		}, http.StatusOK
	})
	defer srv.Close()

	s := NewSolana(SolanaOptions{RPCURL: srv.URL, Timeout: time.Second}, noopLogger())
	tx, err := s.GetTransaction(context.Background(), "sig")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Signature != "sig" || tx.Slot != 42 || tx.Failed {
		t.Fatalf("unexpected header %+v", tx)
	}
	if !tx.HasAccount(reference) || tx.AccountIndex(wallet) != 1 {
		t.Fatalf("account keys not normalised: %v", tx.AccountKeys)
	}
	if len(tx.PostTokenBalances) != 1 || tx.PostTokenBalances[0].Amount != 2_500_100 {
		t.Fatalf("token balances not parsed: %+v", tx.PostTokenBalances)
	}
}

func TestSolanaGetTransactionNotFound(t *testing.T) {
	srv := rpcServer(t, func(string, []json.RawMessage) (any, int) { return nil, http.StatusOK })
	defer srv.Close()

	s := NewSolana(SolanaOptions{RPCURL: srv.URL}, noopLogger())
	if _, err := s.GetTransaction(context.Background(), "missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestSolanaRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := rpcServer(t, func(string, []json.RawMessage) (any, int) {
		if calls.Add(1) < 3 {
			return nil, http.StatusBadGateway
		}
		return map[string]any{"context": map[string]any{"slot": 1}, "value": 1_500_000_000}, http.StatusOK
	})
	defer srv.Close()

	s := NewSolana(SolanaOptions{RPCURL: srv.URL, MaxAttempts: 3}, noopLogger())
	lamports, err := s.GetBalance(context.Background(), wallet)
	if err != nil {
		t.Fatalf("balance should succeed after retries: %v", err)
	}
	if lamports != 1_500_000_000 {
		t.Fatalf("unexpected balance %d", lamports)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSolanaRPCErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]any{"code": -32602, "message": "Invalid param"},
		})
	}))
	defer srv.Close()

	s := NewSolana(SolanaOptions{RPCURL: srv.URL, MaxAttempts: 5}, noopLogger())
	_, err := s.GetBalance(context.Background(), "bad")
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32602 {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("rpc errors should not be retried, got %d calls", calls.Load())
	}
}
