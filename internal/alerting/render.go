package alerting

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"mcwatch/internal/storage"
)

var moneyUnits = []string{"", "K", "M", "B", "T"}

// Money formats x with two decimals and a K/M/B/T suffix. Non-finite values render as a dash.
func Money(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "—"
	}
	n := x
	for _, unit := range moneyUnits {
		if math.Abs(n) < 1000 {
			return Grouped(decimal.NewFromFloat(n), 2) + unit
		}
		n /= 1000
	}
	return Grouped(decimal.NewFromFloat(n), 2) + "P"
}

// Humanize formats an optional value, using a dash when unknown.
func Humanize(x *float64) string {
	if x == nil {
		return "—"
	}
	return Money(*x)
}

// Grouped renders d with places decimals and comma thousands separators.
func Grouped(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + frac
}

// AlertFired renders the notification for a rule that crossed its target.
func AlertFired(rule storage.AlertRule, current *float64, url, imageURL, creatorName string) Message {
	verb := "fell below"
	if rule.Direction == storage.DirectionAbove {
		verb = "rose above"
	}
	body := fmt.Sprintf("%s $%s MC\nCurrent: $%s", verb, Money(rule.Target), Humanize(current))
	if rule.Note != "" {
		body += "\n\n📝 " + rule.Note
	}
	return Message{
		ChannelID: rule.ChannelID,
		Mention:   rule.CreatorID,
		Title:     fmt.Sprintf("%s (%s)", rule.Name, rule.Symbol),
		Body:      body,
		URL:       url,
		ImageURL:  imageURL,
		Footer:    "Set by " + creatorName,
	}
}

// InvoiceAmount formats an invoice amount as "1,234.5000 SOL".
func InvoiceAmount(inv storage.Invoice) string {
	return fmt.Sprintf("%s %s", Grouped(inv.Amount(), 4), inv.Asset)
}

// PaymentReceived renders the confirmation for a paid invoice.
func PaymentReceived(inv storage.Invoice) Message {
	return Message{
		ChannelID: inv.ChannelID,
		Mention:   inv.UserID,
		Title:     "✅ Payment received",
		Body:      fmt.Sprintf("%s to bot wallet\n%s", InvoiceAmount(inv), inv.TxSignature),
	}
}

// PaymentExpired renders the notice for an invoice that timed out.
func PaymentExpired(inv storage.Invoice) Message {
	return Message{
		ChannelID: inv.ChannelID,
		Body:      fmt.Sprintf("⌛ Payment %s expired.", inv.ID),
	}
}
