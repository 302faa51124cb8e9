package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidTransition rejects state changes out of a terminal state.
	ErrInvalidTransition = errors.New("storage: invalid state transition")
)

// Direction says which side of the target a rule watches.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Meets is the firing predicate. A nil current value never fires.
func (d Direction) Meets(current *float64, target float64) bool {
	if current == nil {
		return false
	}
	if d == DirectionAbove {
		return *current >= target
	}
	return *current <= target
}

// DirectionFor picks the direction for a new rule: below when the target is under the
// current value, above otherwise or when the current value is unknown.
func DirectionFor(target float64, current *float64) Direction {
	if current != nil && target < *current {
		return DirectionBelow
	}
	return DirectionAbove
}

// RuleState tracks an AlertRule lifecycle.
type RuleState string

const (
	RuleActive    RuleState = "active"
	RuleFired     RuleState = "fired"
	RuleCancelled RuleState = "cancelled"
)

// AlertRule is a standing threshold watch on one token.
type AlertRule struct {
	ID        string    `json:"id"`
	TokenID   string    `json:"token_id"`
	Target    float64   `json:"target"`
	Direction Direction `json:"direction"`
	ChannelID int64     `json:"channel_id"`
	CreatorID int64     `json:"creator_id"`
	GuildID   int64     `json:"guild_id"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	State     RuleState `json:"state"`
}

// Label returns the symbol, falling back to the name.
func (r AlertRule) Label() string {
	if r.Symbol != "" {
		return r.Symbol
	}
	return r.Name
}

// AlertEvent is the immutable record of a fired rule.
type AlertEvent struct {
	Time      time.Time `json:"ts"`
	RuleID    string    `json:"rule_id,omitempty"`
	TokenID   string    `json:"token_id"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Target    float64   `json:"target"`
	Observed  *float64  `json:"observed"`
	ChannelID int64     `json:"channel_id"`
	GuildID   int64     `json:"guild_id"`
	CreatorID int64     `json:"creator_id"`
}

// EventFromRule builds the history record for a rule firing at observed.
func EventFromRule(rule AlertRule, observed *float64, at time.Time) AlertEvent {
	var obs *float64
	if observed != nil {
		v := *observed
		obs = &v
	}
	return AlertEvent{
		Time:      at,
		RuleID:    rule.ID,
		TokenID:   rule.TokenID,
		Name:      rule.Name,
		Symbol:    rule.Symbol,
		Direction: rule.Direction,
		Target:    rule.Target,
		Observed:  obs,
		ChannelID: rule.ChannelID,
		GuildID:   rule.GuildID,
		CreatorID: rule.CreatorID,
	}
}

// Asset is a supported payment asset.
type Asset string

const (
	AssetSOL  Asset = "SOL"
	AssetUSDC Asset = "USDC"
)

// InvoiceStatus is the invoice state machine: pending, then paid or expired.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceExpired InvoiceStatus = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoicePaid || s == InvoiceExpired
}

// Invoice is a payment request tracked until it is paid or expires.
type Invoice struct {
	ID          string        `json:"id"`
	Reference   string        `json:"reference"`
	Asset       Asset         `json:"asset"`
	Mint        string        `json:"mint,omitempty"`
	AmountBase  int64         `json:"amount_base"`
	Decimals    int32         `json:"decimals"`
	UserID      int64         `json:"user_id"`
	ChannelID   int64         `json:"channel_id"`
	GuildID     int64         `json:"guild_id"`
	Note        string        `json:"note,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Status      InvoiceStatus `json:"status"`
	TxSignature string        `json:"tx_sig,omitempty"`
}

// Amount converts AmountBase into asset units.
func (inv Invoice) Amount() decimal.Decimal {
	return decimal.New(inv.AmountBase, -inv.Decimals)
}

// Transition moves a pending invoice to paid or expired. Paid transitions record sig.
func (inv *Invoice) Transition(to InvoiceStatus, sig string) error {
	if inv.Status != InvoicePending || !to.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, to)
	}
	inv.Status = to
	if to == InvoicePaid {
		inv.TxSignature = sig
	}
	return nil
}
