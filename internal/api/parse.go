package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidTarget rejects unparseable market cap targets.
var ErrInvalidTarget = errors.New("invalid target")

var targetMultipliers = map[byte]int64{
	'k': 1_000,
	'm': 1_000_000,
	'b': 1_000_000_000,
	't': 1_000_000_000_000,
}

// ParseTarget reads a market cap such as 2500000, 250k, 2.5m, 1b or 1t.
func ParseTarget(s string) (float64, error) {
	v := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(s), ",", ""))
	mult := int64(1)
	if v != "" {
		if m, ok := targetMultipliers[v[len(v)-1]]; ok {
			mult, v = m, strings.TrimSpace(v[:len(v)-1])
		}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}
	out, _ := d.Mul(decimal.NewFromInt(mult)).Float64()
	if out <= 0 || math.IsInf(out, 0) {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidTarget, s)
	}
	return out, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

func queryInt64(r *http.Request, key string) (int64, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer", key)
	}
	return v, true, nil
}
