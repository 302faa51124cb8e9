package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testMint = "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestDexScreenerFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tokensPath+testMint {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "test" {
			t.Fatalf("user agent not forwarded: %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":[
			{"chainId":"solana","dexId":"raydium","baseToken":{"address":"` + testMint + `"},
			 "quoteToken":{"symbol":"SOL"},"fdv":"12345.5","marketCap":1000,"liquidity":{"usd":"oops"}}
		]}`))
	}))
	defer srv.Close()

	d := NewDexScreener(DexScreenerOptions{BaseURL: srv.URL + "/", Timeout: time.Second, UserAgent: "test"}, noopLogger())
	pairs, ok := d.Fetch(context.Background(), testMint)
	if !ok {
		t.Fatal("successful response should report ok")
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if !pairs[0].FDV.Valid || pairs[0].FDV.Value != 12345.5 {
		t.Fatalf("string fdv should decode, got %+v", pairs[0].FDV)
	}
	if pairs[0].Liquidity.USD.Valid {
		t.Fatal("non-numeric liquidity should be treated as absent")
	}
}

func TestDexScreenerFetchFailuresCollapse(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
		"body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		},
		"slow": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_ = json.NewEncoder(w).Encode(map[string]any{"pairs": []any{}})
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			d := NewDexScreener(DexScreenerOptions{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, noopLogger())
			pairs, ok := d.Fetch(context.Background(), testMint)
			if ok || pairs != nil {
				t.Fatalf("%s: expected no data, got ok=%v pairs=%v", name, ok, pairs)
			}
		})
	}
}

func TestDexScreenerFetchEmptyToken(t *testing.T) {
	d := NewDexScreener(DexScreenerOptions{BaseURL: "http://127.0.0.1:1"}, noopLogger())
	if _, ok := d.Fetch(context.Background(), strings.Repeat(" ", 3)); ok {
		t.Fatal("blank token should not be fetched")
	}
}
