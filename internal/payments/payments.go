package payments

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/portto/solana-go-sdk/types"
	"github.com/shopspring/decimal"

	"mcwatch/internal/storage"
)

// SOLDecimals is the lamport precision of native SOL.
const SOLDecimals int32 = 9

// ErrInvalidAmount rejects amounts that round to zero or less in base units.
var ErrInvalidAmount = errors.New("payments: amount must be positive")

// AssetSpec pins down how an asset is denominated on chain.
type AssetSpec struct {
	Asset    storage.Asset
	Decimals int32
	Mint     string
}

// ParseAsset maps a user choice to an asset. Anything other than USDC means SOL.
func ParseAsset(choice, usdcMint string) AssetSpec {
	if strings.EqualFold(strings.TrimSpace(choice), string(storage.AssetUSDC)) {
		return AssetSpec{Asset: storage.AssetUSDC, Decimals: 6, Mint: usdcMint}
	}
	return AssetSpec{Asset: storage.AssetSOL, Decimals: SOLDecimals}
}

// NewReference returns a fresh base58 public key used once to correlate a payment.
func NewReference() string {
	return types.NewAccount().PublicKey.ToBase58()
}

// Request carries the caller's side of a new invoice.
type Request struct {
	Amount    decimal.Decimal
	UserID    int64
	ChannelID int64
	GuildID   int64
	Note      string
}

// NewInvoice builds a pending invoice keyed by a fresh reference.
func NewInvoice(req Request, spec AssetSpec, now time.Time) (storage.Invoice, error) {
	base := req.Amount.Shift(spec.Decimals).Round(0)
	if !base.IsPositive() {
		return storage.Invoice{}, fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}

	ref := NewReference()
	return storage.Invoice{
		ID:         ref[:6],
		Reference:  ref,
		Asset:      spec.Asset,
		Mint:       spec.Mint,
		AmountBase: base.IntPart(),
		Decimals:   spec.Decimals,
		UserID:     req.UserID,
		ChannelID:  req.ChannelID,
		GuildID:    req.GuildID,
		Note:       strings.TrimSpace(req.Note),
		CreatedAt:  now.UTC(),
		Status:     storage.InvoicePending,
	}, nil
}

// PayLink renders the Solana Pay transfer URI for inv.
func PayLink(recipient string, inv storage.Invoice, label string) string {
	var b strings.Builder
	b.WriteString("solana:")
	b.WriteString(recipient)
	fmt.Fprintf(&b, "?amount=%s", inv.Amount().StringFixed(inv.Decimals))
	fmt.Fprintf(&b, "&reference=%s", escape(inv.Reference))
	if label != "" {
		fmt.Fprintf(&b, "&label=%s", escape(label))
	}
	if inv.Note != "" {
		fmt.Fprintf(&b, "&message=%s", escape(inv.Note))
	}
	if inv.Asset != storage.AssetSOL && inv.Mint != "" {
		fmt.Fprintf(&b, "&spl-token=%s", escape(inv.Mint))
	}
	return b.String()
}

// QRURL points at a rendered QR code image of data.
func QRURL(data string, size int) string {
	if size <= 0 {
		size = 260
	}
	return fmt.Sprintf("https://api.qrserver.com/v1/create-qr-code/?size=%dx%d&data=%s", size, size, escape(data))
}

// WalletLinks are wallet deep links that open a pay URI.
type WalletLinks struct {
	Phantom  string `json:"phantom"`
	Solflare string `json:"solflare"`
}

// LinksFor wraps a pay URI in wallet deep links.
func LinksFor(link string) WalletLinks {
	encoded := escape(link)
	return WalletLinks{
		Phantom:  "https://phantom.app/ul/v1/pay?link=" + encoded,
		Solflare: "https://solflare.com/ul/v1/solanaPay?link=" + encoded,
	}
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
