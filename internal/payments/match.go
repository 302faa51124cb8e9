package payments

import (
	"mcwatch/internal/fetcher"
	"mcwatch/internal/storage"
)

// MatchNative reports whether tx credits wallet with at least amount lamports.
func MatchNative(tx *fetcher.Transaction, wallet string, amount int64) bool {
	idx := tx.AccountIndex(wallet)
	if idx < 0 || idx >= len(tx.PreBalances) || idx >= len(tx.PostBalances) {
		return false
	}
	delta := int64(tx.PostBalances[idx]) - int64(tx.PreBalances[idx])
	return delta >= amount
}

// TokenDelta sums the positive balance changes of wallet-owned token accounts for mint.
// Accounts whose decimals differ from decimals are ignored.
func TokenDelta(tx *fetcher.Transaction, wallet, mint string, decimals int) int64 {
	type side struct {
		pre, post *fetcher.TokenBalance
	}
	accounts := make(map[int]*side)
	at := func(i int) *side {
		s, ok := accounts[i]
		if !ok {
			s = &side{}
			accounts[i] = s
		}
		return s
	}
	for i := range tx.PreTokenBalances {
		if b := &tx.PreTokenBalances[i]; b.Mint == mint {
			at(b.AccountIndex).pre = b
		}
	}
	for i := range tx.PostTokenBalances {
		if b := &tx.PostTokenBalances[i]; b.Mint == mint {
			at(b.AccountIndex).post = b
		}
	}

	var total int64
	for _, s := range accounts {
		ref := s.post
		if ref == nil {
			ref = s.pre
		}
		owner := ref.Owner
		if owner == "" && s.pre != nil {
			owner = s.pre.Owner
		}
		if owner != wallet || ref.Decimals != decimals {
			continue
		}
		var pre, post int64
		if s.pre != nil {
			pre = s.pre.Amount
		}
		if s.post != nil {
			post = s.post.Amount
		}
		if d := post - pre; d > 0 {
			total += d
		}
	}
	return total
}

// MatchToken reports whether tx moves at least amount of mint into wallet-owned accounts.
func MatchToken(tx *fetcher.Transaction, wallet, mint string, decimals int, amount int64) bool {
	return TokenDelta(tx, wallet, mint, decimals) >= amount
}

// Match decides whether tx settles inv. The invoice reference must be among the
// transaction accounts regardless of the amounts moved.
func Match(tx *fetcher.Transaction, inv storage.Invoice, wallet string, tokenDecimals int) bool {
	if tx == nil || tx.Failed || !tx.HasAccount(inv.Reference) {
		return false
	}
	if inv.Asset == storage.AssetSOL {
		return MatchNative(tx, wallet, inv.AmountBase)
	}
	return MatchToken(tx, wallet, inv.Mint, tokenDecimals, inv.AmountBase)
}
