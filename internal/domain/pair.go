// Package domain defines the venue metadata shared by loaders, the market cache and the precision helpers.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base currency symbol.
	From string `json:"from"`
	// To quote currency symbol.
	To string `json:"to"`
}

// String returns the string representation.
func (p *Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation used by venue APIs.
func (p *Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// Unified returns the venue-neutral "BASE/QUOTE" symbol.
func (p *Pair) Unified() string {
	return fmt.Sprintf("%s/%s", p.From, p.To)
}

// ParsePair parses "BTC/USDT" or "BTC_USDT".
func ParsePair(s string) (Pair, error) {
	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "_"
	}
	parts := strings.Split(strings.TrimSpace(s), sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, errors.Errorf("invalid pair %q, expected BASE/QUOTE", s)
	}
	return Pair{From: strings.ToUpper(parts[0]), To: strings.ToUpper(parts[1])}, nil
}
