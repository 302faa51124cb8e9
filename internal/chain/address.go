package chain

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Solana is the chain id the market data provider uses for Solana pairs.
const Solana = "solana"

var base58Pattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

// IsSolanaAddress reports whether s looks like a base58 Solana account or mint.
func IsSolanaAddress(s string) bool {
	if s == "" || strings.HasPrefix(s, "0x") {
		return false
	}
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	return base58Pattern.MatchString(s)
}

// IsEVMAddress reports whether s is a 20-byte hex address with optional 0x prefix.
func IsEVMAddress(s string) bool {
	return common.IsHexAddress(s)
}

// IsTokenID reports whether s is an identifier the market data provider can resolve.
func IsTokenID(s string) bool {
	s = strings.TrimSpace(s)
	return IsSolanaAddress(s) || IsEVMAddress(s)
}

// SameAddress compares two token addresses. Solana addresses are case sensitive,
// everything else is compared case-insensitively.
func SameAddress(tokenID, other string) bool {
	if IsSolanaAddress(tokenID) {
		return tokenID == other
	}
	return strings.EqualFold(tokenID, other)
}

// Short renders an abbreviated address for log lines and tables.
func Short(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:4] + "…" + s[len(s)-4:]
}
