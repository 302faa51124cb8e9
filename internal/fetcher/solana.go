package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/portto/solana-go-sdk/rpc"
	"github.com/rs/zerolog"
)

var (
	// ErrTransactionNotFound is returned when the node has no record of a signature.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("solana rpc error (%d): %s", e.Code, e.Message)
}

// SignatureInfo is one entry of getSignaturesForAddress, newest first.
type SignatureInfo struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime *int64          `json:"blockTime"`
	Err       json.RawMessage `json:"err"`
}

// Failed reports whether the transaction was executed with an error.
func (s SignatureInfo) Failed() bool {
	raw := bytes.TrimSpace(s.Err)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// TokenBalance is a token account balance captured before or after a transaction.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       int64
	Decimals     int
}

// Transaction is the subset of a parsed transaction needed to verify payments.
type Transaction struct {
	Signature         string
	Slot              uint64
	BlockTime         *int64
	Failed            bool
	AccountKeys       []string
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// HasAccount reports whether key appears in the transaction account list.
func (t *Transaction) HasAccount(key string) bool {
	return t.AccountIndex(key) >= 0
}

// AccountIndex returns the position of key in the account list, or -1.
func (t *Transaction) AccountIndex(key string) int {
	for i, k := range t.AccountKeys {
		if k == key {
			return i
		}
	}
	return -1
}

// SolanaOptions parameterise the JSON-RPC ledger client.
type SolanaOptions struct {
	RPCURL      string
	Timeout     time.Duration
	MaxAttempts int
}

// Solana wraps the SDK RPC client with per-call timeouts and retries.
type Solana struct {
	opts   SolanaOptions
	logger zerolog.Logger
	rpc    rpc.RpcClient
}

// NewSolana constructs a ledger client.
func NewSolana(opts SolanaOptions, logger zerolog.Logger) *Solana {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	endpoint := strings.TrimSpace(opts.RPCURL)
	if endpoint == "" {
		endpoint = rpc.MainnetRPCEndpoint
	}

	return &Solana{
		opts:   opts,
		logger: logger.With().Str("component", "solana_rpc").Logger(),
		rpc:    rpc.NewRpcClient(endpoint),
	}
}

// GetSignaturesForAddress lists up to limit recent signatures touching address.
func (s *Solana) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []SignatureInfo
	err := s.call(ctx, "getSignaturesForAddress", func(ctx context.Context) error {
		res, err := s.rpc.GetSignaturesForAddressWithConfig(ctx, address, rpc.GetSignaturesForAddressConfig{Limit: limit})
		if err != nil {
			return err
		}
		if res.Error != nil {
			return &RPCError{Code: int(res.Error.Code), Message: res.Error.Message}
		}
		out = make([]SignatureInfo, 0, len(res.Result))
		for _, sig := range res.Result {
			info := SignatureInfo{Signature: sig.Signature, Slot: sig.Slot, BlockTime: sig.BlockTime}
			if sig.Err != nil {
				info.Err, _ = json.Marshal(sig.Err)
			}
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get signatures for %s: %w", address, err)
	}
	return out, nil
}

// GetTransaction loads a transaction in jsonParsed form.
func (s *Solana) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	var tx *Transaction
	version := uint8(0)
	err := s.call(ctx, "getTransaction", func(ctx context.Context) error {
		res, err := s.rpc.GetTransactionWithConfig(ctx, signature, rpc.GetTransactionConfig{
			Encoding:                       rpc.TransactionEncodingJsonParsed,
			MaxSupportedTransactionVersion: &version,
		})
		if err != nil {
			return err
		}
		if res.Error != nil {
			return &RPCError{Code: int(res.Error.Code), Message: res.Error.Message}
		}
		if res.Result == nil {
			return ErrTransactionNotFound
		}
		tx, err = toTransaction(signature, res.Result)
		return err
	})
	if errors.Is(err, ErrTransactionNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", signature, err)
	}
	return tx, nil
}

// GetBalance returns the native balance of address in lamports.
func (s *Solana) GetBalance(ctx context.Context, address string) (uint64, error) {
	var lamports uint64
	err := s.call(ctx, "getBalance", func(ctx context.Context) error {
		res, err := s.rpc.GetBalanceWithConfig(ctx, address, rpc.GetBalanceConfig{Commitment: rpc.CommitmentProcessed})
		if err != nil {
			return err
		}
		if res.Error != nil {
			return &RPCError{Code: int(res.Error.Code), Message: res.Error.Message}
		}
		lamports = res.Result.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get balance for %s: %w", address, err)
	}
	return lamports, nil
}

// call runs fn with a per-attempt timeout. Transport failures are retried with backoff;
// JSON-RPC error objects and missing transactions are returned at once.
func (s *Solana) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	b := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		lastErr = fn(attemptCtx)
		cancel()
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == s.opts.MaxAttempts {
			break
		}

		wait := b.Duration()
		s.logger.Debug().Err(lastErr).Str("method", method).Int("attempt", attempt).Dur("wait", wait).Msg("retrying rpc call")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func retryable(err error) bool {
	var rpcErr *RPCError
	return !errors.As(err, &rpcErr) && !errors.Is(err, ErrTransactionNotFound)
}

// accountKey accepts both the legacy string form and the jsonParsed object form.
type accountKey string

func (k *accountKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = accountKey(s)
		return nil
	}
	var obj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*k = accountKey(obj.Pubkey)
	return nil
}

// parsedMessage is the part of the jsonParsed transaction body the SDK leaves untyped.
type parsedMessage struct {
	Message struct {
		AccountKeys []accountKey `json:"accountKeys"`
	} `json:"message"`
}

func toTransaction(signature string, res *rpc.GetTransaction) (*Transaction, error) {
	tx := &Transaction{
		Signature: signature,
		Slot:      res.Slot,
		BlockTime: res.BlockTime,
	}

	raw, err := json.Marshal(res.Transaction)
	if err != nil {
		return nil, fmt.Errorf("encode transaction body: %w", err)
	}
	var body parsedMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode account keys: %w", err)
	}
	for _, k := range body.Message.AccountKeys {
		tx.AccountKeys = append(tx.AccountKeys, string(k))
	}

	meta := res.Meta
	if meta == nil {
		return tx, nil
	}
	tx.Failed = meta.Err != nil
	for _, v := range meta.PreBalances {
		tx.PreBalances = append(tx.PreBalances, uint64(v))
	}
	for _, v := range meta.PostBalances {
		tx.PostBalances = append(tx.PostBalances, uint64(v))
	}
	tx.PreTokenBalances = convertTokenBalances(meta.PreTokenBalances)
	tx.PostTokenBalances = convertTokenBalances(meta.PostTokenBalances)
	return tx, nil
}

// convertTokenBalances drops entries whose amount does not parse.
func convertTokenBalances(in []rpc.TransactionMetaTokenBalance) []TokenBalance {
	out := make([]TokenBalance, 0, len(in))
	for _, tb := range in {
		amount := strings.TrimSpace(tb.UITokenAmount.Amount)
		if amount == "" {
			amount = "0"
		}
		v, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, TokenBalance{
			AccountIndex: int(tb.AccountIndex),
			Mint:         tb.Mint,
			Owner:        tb.Owner,
			Amount:       v,
			Decimals:     int(tb.UITokenAmount.Decimals),
		})
	}
	return out
}

var _ Ledger = (*Solana)(nil)
