package consensus

import (
	"math"
	"sort"
	"strings"
	"time"

	"mcwatch/internal/cache"
	"mcwatch/internal/chain"
	"mcwatch/internal/market"
	"mcwatch/internal/numeric"
)

const iqrMultiplier = 1.5

// Candidate is one selected pair with its resolved value. Value is NaN when the pair
// yielded nothing usable.
type Candidate struct {
	Pair      market.Pair
	Value     float64
	Source    market.Source
	Liquidity float64
	Volume    float64
}

// HasValue reports whether the candidate contributed to the statistical sample.
func (c Candidate) HasValue() bool {
	return !math.IsNaN(c.Value) && c.Value > 0
}

// Result is the outcome of a consensus run.
type Result struct {
	Best       *market.Pair
	Value      float64
	Candidates []Candidate
}

// Options tune the engine.
type Options struct {
	PreferFDV bool
	Blacklist []string
}

// Engine turns a token's trading pairs into a single robust valuation.
type Engine struct {
	preferFDV bool
	blacklist map[string]struct{}
}

// New constructs an Engine.
func New(opts Options) *Engine {
	bl := make(map[string]struct{}, len(opts.Blacklist))
	for _, id := range opts.Blacklist {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			bl[id] = struct{}{}
		}
	}
	return &Engine{preferFDV: opts.PreferFDV, blacklist: bl}
}

// PreferFDV exposes the configured valuation preference.
func (e *Engine) PreferFDV() bool {
	return e.preferFDV
}

// SelectPairs keeps pairs whose base token is tokenID and whose venue is not blacklisted.
// Solana mints must match exactly on the solana chain; other addresses match
// case-insensitively.
func (e *Engine) SelectPairs(all []market.Pair, tokenID string) []market.Pair {
	solana := chain.IsSolanaAddress(tokenID)
	out := make([]market.Pair, 0, len(all))
	for _, p := range all {
		if solana {
			if p.ChainID != chain.Solana || p.BaseToken.Address != tokenID {
				continue
			}
		} else if !strings.EqualFold(p.BaseToken.Address, tokenID) {
			continue
		}
		if _, banned := e.blacklist[strings.ToLower(p.DexID)]; banned {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Consensus resolves one value per pair, rejects log-scale outliers with an IQR fence when
// at least three values are available, takes the median and picks the pair closest to it.
func (e *Engine) Consensus(filtered []market.Pair, tokenID string) Result {
	if len(filtered) == 0 {
		return Result{}
	}

	cands := make([]Candidate, 0, len(filtered))
	valid := make([]float64, 0, len(filtered))
	for _, p := range filtered {
		liq, vol, _ := market.Metrics(p)
		c := Candidate{Pair: p, Value: math.NaN(), Source: market.SourceNone, Liquidity: liq, Volume: vol}
		if v, src, ok := market.ResolveValue(p, tokenID, e.preferFDV); ok {
			c.Value = v
			c.Source = src
			valid = append(valid, v)
		}
		cands = append(cands, c)
	}

	if len(valid) == 0 {
		return Result{Candidates: cands}
	}

	value := numeric.Median(fenceOutliers(valid))
	return Result{
		Best:       pickBest(cands, value),
		Value:      value,
		Candidates: cands,
	}
}

// fenceOutliers drops values whose log10 lies outside [Q1-1.5·IQR, Q3+1.5·IQR]. The full
// sample is returned when it is too small or when fewer than two values survive.
func fenceOutliers(values []float64) []float64 {
	if len(values) < 3 {
		return values
	}

	sorted := numeric.Sorted(values)
	logs := make([]float64, len(sorted))
	for i, v := range sorted {
		logs[i] = math.Log10(v)
	}

	q1 := numeric.Percentile(logs, 0.25)
	q3 := numeric.Percentile(logs, 0.75)
	iqr := q3 - q1
	lo := q1 - iqrMultiplier*iqr
	hi := q3 + iqrMultiplier*iqr

	kept := make([]float64, 0, len(sorted))
	for i, x := range logs {
		if x >= lo && x <= hi {
			kept = append(kept, sorted[i])
		}
	}
	if len(kept) < 2 {
		return values
	}
	return kept
}

func pickBest(cands []Candidate, consensus float64) *market.Pair {
	type ranked struct {
		idx      int
		distance float64
	}

	pool := make([]ranked, 0, len(cands))
	for i, c := range cands {
		if !c.HasValue() {
			continue
		}
		d := math.Abs(c.Value - consensus)
		if consensus > 0 {
			d /= consensus
		}
		pool = append(pool, ranked{idx: i, distance: d})
	}
	if len(pool) == 0 {
		return nil
	}

	sort.SliceStable(pool, func(i, j int) bool {
		a, b := cands[pool[i].idx], cands[pool[j].idx]
		if pool[i].distance != pool[j].distance {
			return pool[i].distance < pool[j].distance
		}
		if a.Liquidity != b.Liquidity {
			return a.Liquidity > b.Liquidity
		}
		return a.Volume > b.Volume
	})

	best := cands[pool[0].idx].Pair
	return &best
}

// Snapshot runs selection and consensus for tokenID and builds the cache entry. Empty or
// unusable pair sets yield a snapshot with no value.
func (e *Engine) Snapshot(tokenID string, pairs []market.Pair, now time.Time) cache.TokenSnapshot {
	snap := cache.TokenSnapshot{
		URL:       market.TokenURL(tokenID, nil),
		UpdatedAt: now,
		Source:    market.SourceNone,
	}
	if len(pairs) == 0 {
		return snap
	}

	res := e.Consensus(e.SelectPairs(pairs, tokenID), tokenID)
	snap.Consensus = res.Value
	if res.Best == nil {
		return snap
	}

	best := *res.Best
	if v, src, ok := market.ResolveValue(best, tokenID, e.preferFDV); ok {
		snap.MarketCap = &v
		snap.Source = src
	}
	snap.URL = market.TokenURL(tokenID, &best)
	snap.Dex = best.DexID
	snap.Chain = best.ChainID
	snap.Quote = market.QuoteSymbol(best)
	snap.ImageURL = market.ImageURL(best, tokenID)
	snap.Name = best.BaseToken.Name
	snap.Symbol = best.BaseToken.Symbol
	snap.Delta = cache.DeltaFor(snap.MarketCap, snap.Consensus)
	return snap
}
