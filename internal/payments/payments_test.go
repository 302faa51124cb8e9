package payments

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"mcwatch/internal/chain"
	"mcwatch/internal/fetcher"
	"mcwatch/internal/storage"
)

const (
	wallet   = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	refKey   = "H6ARHf6YXhGYeQfUzQNGk6rDNnLBQKrenN712K4AQJEG"
)

func TestParseAsset(t *testing.T) {
	require.Equal(t, AssetSpec{Asset: storage.AssetUSDC, Decimals: 6, Mint: usdcMint}, ParseAsset(" usdc ", usdcMint))
	require.Equal(t, AssetSpec{Asset: storage.AssetSOL, Decimals: 9}, ParseAsset("", usdcMint))
	require.Equal(t, storage.AssetSOL, ParseAsset("doge", usdcMint).Asset)
}

func TestNewInvoice(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	inv, err := NewInvoice(Request{Amount: decimal.RequireFromString("0.25"), UserID: 4, ChannelID: 3, Note: " tip "}, ParseAsset("SOL", usdcMint), now)
	require.NoError(t, err)

	require.Equal(t, int64(250_000_000), inv.AmountBase)
	require.Equal(t, storage.InvoicePending, inv.Status)
	require.True(t, chain.IsSolanaAddress(inv.Reference), "reference %q should be base58", inv.Reference)
	require.Equal(t, inv.Reference[:6], inv.ID)
	require.Equal(t, "tip", inv.Note)
	require.Equal(t, now, inv.CreatedAt)

	other, err := NewInvoice(Request{Amount: decimal.NewFromInt(1)}, ParseAsset("SOL", usdcMint), now)
	require.NoError(t, err)
	require.NotEqual(t, inv.Reference, other.Reference)
}

func TestNewInvoiceRoundsToBaseUnits(t *testing.T) {
	inv, err := NewInvoice(Request{Amount: decimal.RequireFromString("1.2345675")}, ParseAsset("USDC", usdcMint), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1_234_568), inv.AmountBase)
	require.Equal(t, usdcMint, inv.Mint)
}

func TestNewInvoiceRejectsNonPositive(t *testing.T) {
	for _, amount := range []string{"0", "-1", "0.0000001"} {
		_, err := NewInvoice(Request{Amount: decimal.RequireFromString(amount)}, ParseAsset("USDC", usdcMint), time.Now())
		require.True(t, errors.Is(err, ErrInvalidAmount), "amount %s", amount)
	}
}

func TestPayLink(t *testing.T) {
	inv := storage.Invoice{Reference: refKey, Asset: storage.AssetSOL, AmountBase: 1_500_000_000, Decimals: 9, Note: "coffee & cake"}
	link := PayLink(wallet, inv, "McCap Bot")
	require.Equal(t, "solana:"+wallet+"?amount=1.500000000&reference="+refKey+"&label=McCap%20Bot&message=coffee%20%26%20cake", link)

	usdc := storage.Invoice{Reference: refKey, Asset: storage.AssetUSDC, Mint: usdcMint, AmountBase: 5_000_000, Decimals: 6}
	link = PayLink(wallet, usdc, "")
	require.True(t, strings.HasSuffix(link, "&spl-token="+usdcMint), link)
	require.Contains(t, link, "amount=5.000000")
	require.NotContains(t, link, "label=")
}

func TestQRAndWalletLinks(t *testing.T) {
	link := "solana:abc?amount=1&reference=x"
	require.Equal(t, "https://api.qrserver.com/v1/create-qr-code/?size=260x260&data=solana%3Aabc%3Famount%3D1%26reference%3Dx", QRURL(link, 0))

	links := LinksFor(link)
	require.Equal(t, "https://phantom.app/ul/v1/pay?link=solana%3Aabc%3Famount%3D1%26reference%3Dx", links.Phantom)
	require.True(t, strings.HasPrefix(links.Solflare, "https://solflare.com/ul/v1/solanaPay?link=solana%3A"))
}

func nativeTx(keys []string, pre, post []uint64) *fetcher.Transaction {
	return &fetcher.Transaction{Signature: "sig", AccountKeys: keys, PreBalances: pre, PostBalances: post}
}

func TestMatchNative(t *testing.T) {
	inv := storage.Invoice{Reference: refKey, Asset: storage.AssetSOL, AmountBase: 1_000}

	tx := nativeTx([]string{"payer", wallet, refKey}, []uint64{5_000, 10, 0}, []uint64{3_000, 1_010, 0})
	require.True(t, Match(tx, inv, wallet, 6))

	short := nativeTx([]string{"payer", wallet, refKey}, []uint64{5_000, 10, 0}, []uint64{3_000, 1_009, 0})
	require.False(t, Match(short, inv, wallet, 6))

	noRef := nativeTx([]string{"payer", wallet}, []uint64{5_000, 10}, []uint64{3_000, 5_000})
	require.False(t, Match(noRef, inv, wallet, 6), "reference is mandatory")

	missingBalance := nativeTx([]string{"payer", refKey, wallet}, []uint64{5_000, 0}, []uint64{3_000, 0})
	require.False(t, Match(missingBalance, inv, wallet, 6))

	failed := nativeTx([]string{"payer", wallet, refKey}, []uint64{5_000, 10, 0}, []uint64{3_000, 1_010, 0})
	failed.Failed = true
	require.False(t, Match(failed, inv, wallet, 6))
}

func TestTokenDelta(t *testing.T) {
	tx := &fetcher.Transaction{
		AccountKeys: []string{"payer", refKey},
		PreTokenBalances: []fetcher.TokenBalance{
			{AccountIndex: 2, Mint: usdcMint, Owner: wallet, Amount: 100, Decimals: 6},
			{AccountIndex: 3, Mint: usdcMint, Owner: wallet, Amount: 900, Decimals: 6},
			{AccountIndex: 4, Mint: usdcMint, Owner: "someone", Amount: 0, Decimals: 6},
		},
		PostTokenBalances: []fetcher.TokenBalance{
			{AccountIndex: 2, Mint: usdcMint, Owner: wallet, Amount: 600, Decimals: 6},
			{AccountIndex: 3, Mint: usdcMint, Owner: wallet, Amount: 400, Decimals: 6},
			{AccountIndex: 4, Mint: usdcMint, Owner: "someone", Amount: 10_000, Decimals: 6},
			{AccountIndex: 5, Mint: usdcMint, Owner: wallet, Amount: 250, Decimals: 6},
			{AccountIndex: 6, Mint: "other", Owner: wallet, Amount: 9_999, Decimals: 6},
			{AccountIndex: 7, Mint: usdcMint, Owner: wallet, Amount: 9_999, Decimals: 9},
		},
	}

	// +500 on index 2, +250 on a fresh account 5; the debit on 3 is not netted.
	require.Equal(t, int64(750), TokenDelta(tx, wallet, usdcMint, 6))

	inv := storage.Invoice{Reference: refKey, Asset: storage.AssetUSDC, Mint: usdcMint, AmountBase: 750}
	require.True(t, Match(tx, inv, wallet, 6))
	inv.AmountBase = 751
	require.False(t, Match(tx, inv, wallet, 6))
}

func TestTokenOwnerFallsBackToPre(t *testing.T) {
	tx := &fetcher.Transaction{
		PreTokenBalances:  []fetcher.TokenBalance{{AccountIndex: 1, Mint: usdcMint, Owner: wallet, Amount: 0, Decimals: 6}},
		PostTokenBalances: []fetcher.TokenBalance{{AccountIndex: 1, Mint: usdcMint, Amount: 42, Decimals: 6}},
	}
	require.Equal(t, int64(42), TokenDelta(tx, wallet, usdcMint, 6))
}
