package domain

import (
	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

// Network is a transfer network of a currency, e.g. ERC20 or TRC20.
type Network struct {
	ID        string          `json:"id"`
	Precision decimal.Decimal `json:"precision"`
}

// Currency describes one asset and the networks it can move over.
type Currency struct {
	Code      string             `json:"code"`
	Precision decimal.Decimal    `json:"precision"`
	Networks  map[string]Network `json:"networks,omitempty"`
}

// PrecisionFor returns the precision of the given network, falling back to
// the currency precision when the network is unknown or declares none.
func (c Currency) PrecisionFor(network string) decimal.Decimal {
	if n, ok := c.Networks[network]; ok && !n.Precision.IsZero() {
		return n.Precision
	}
	return c.Precision
}
