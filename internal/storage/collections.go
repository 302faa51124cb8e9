package storage

import (
	"sort"
	"sync"
)

// DefaultHistoryCapacity bounds the alert history.
const DefaultHistoryCapacity = 1000

// RuleBook is the ordered collection of active alert rules.
type RuleBook struct {
	mu    sync.Mutex
	rules []AlertRule
}

// NewRuleBook seeds a book with the active rules from a loaded snapshot.
func NewRuleBook(rules []AlertRule) *RuleBook {
	b := &RuleBook{}
	for _, r := range rules {
		if r.State == "" {
			r.State = RuleActive
		}
		if r.State == RuleActive {
			b.rules = append(b.rules, r)
		}
	}
	return b
}

// Add appends an active rule.
func (b *RuleBook) Add(rule AlertRule) {
	rule.State = RuleActive
	b.mu.Lock()
	b.rules = append(b.rules, rule)
	b.mu.Unlock()
}

// Active returns a copy of the active rules in insertion order.
func (b *RuleBook) Active() []AlertRule {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]AlertRule(nil), b.rules...)
}

// Len returns the number of active rules.
func (b *RuleBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rules)
}

// Get returns the active rule with id.
func (b *RuleBook) Get(id string) (AlertRule, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(id); i >= 0 {
		return b.rules[i], true
	}
	return AlertRule{}, false
}

// Take removes the rule because it fired. Only the first caller for an id succeeds.
func (b *RuleBook) Take(id string) (AlertRule, error) {
	return b.remove(id, RuleFired)
}

// Cancel removes the rule on request.
func (b *RuleBook) Cancel(id string) (AlertRule, error) {
	return b.remove(id, RuleCancelled)
}

func (b *RuleBook) remove(id string, state RuleState) (AlertRule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return AlertRule{}, ErrNotFound
	}
	rule := b.rules[i]
	b.rules = append(b.rules[:i], b.rules[i+1:]...)
	rule.State = state
	return rule, nil
}

func (b *RuleBook) indexOf(id string) int {
	for i := range b.rules {
		if b.rules[i].ID == id {
			return i
		}
	}
	return -1
}

// InvoiceBook is the ordered collection of invoices, oldest first.
type InvoiceBook struct {
	mu       sync.Mutex
	invoices []Invoice
}

// NewInvoiceBook seeds a book from a loaded snapshot.
func NewInvoiceBook(invoices []Invoice) *InvoiceBook {
	return &InvoiceBook{invoices: append([]Invoice(nil), invoices...)}
}

// Add appends a new invoice.
func (b *InvoiceBook) Add(inv Invoice) {
	b.mu.Lock()
	b.invoices = append(b.invoices, inv)
	b.mu.Unlock()
}

// List returns a copy of every invoice.
func (b *InvoiceBook) List() []Invoice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Invoice(nil), b.invoices...)
}

// Pending returns a copy of the invoices still awaiting payment.
func (b *InvoiceBook) Pending() []Invoice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Invoice, 0, len(b.invoices))
	for _, inv := range b.invoices {
		if inv.Status == InvoicePending {
			out = append(out, inv)
		}
	}
	return out
}

// Get finds an invoice by id.
func (b *InvoiceBook) Get(id string) (Invoice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, inv := range b.invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return Invoice{}, false
}

// Query returns up to limit invoices accepted by keep, newest first. A limit of zero or
// less means no limit.
func (b *InvoiceBook) Query(keep func(Invoice) bool, limit int) []Invoice {
	b.mu.Lock()
	out := make([]Invoice, 0, len(b.invoices))
	for _, inv := range b.invoices {
		if keep == nil || keep(inv) {
			out = append(out, inv)
		}
	}
	b.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Transition applies a state change to the invoice with id and returns the result.
func (b *InvoiceBook) Transition(id string, to InvoiceStatus, sig string) (Invoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.invoices {
		if b.invoices[i].ID != id {
			continue
		}
		if err := b.invoices[i].Transition(to, sig); err != nil {
			return b.invoices[i], err
		}
		return b.invoices[i], nil
	}
	return Invoice{}, ErrNotFound
}

// History is the capped, newest-first alert event log.
type History struct {
	mu       sync.Mutex
	events   []AlertEvent
	capacity int
}

// NewHistory sorts loaded events newest first and applies the capacity.
func NewHistory(capacity int, events []AlertEvent) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	sorted := append([]AlertEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.After(sorted[j].Time)
	})
	if len(sorted) > capacity {
		sorted = sorted[:capacity]
	}
	return &History{events: sorted, capacity: capacity}
}

// Prepend inserts ev as the newest entry and evicts the oldest past capacity.
func (h *History) Prepend(ev AlertEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, AlertEvent{})
	copy(h.events[1:], h.events)
	h.events[0] = ev
	if len(h.events) > h.capacity {
		h.events = h.events[:h.capacity]
	}
}

// All returns a copy of the full history.
func (h *History) All() []AlertEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]AlertEvent(nil), h.events...)
}

// Len returns the number of stored events.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

// Recent returns up to n newest events accepted by keep. A nil keep accepts everything.
func (h *History) Recent(n int, keep func(AlertEvent) bool) []AlertEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]AlertEvent, 0, n)
	for _, ev := range h.events {
		if len(out) >= n {
			break
		}
		if keep == nil || keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}
