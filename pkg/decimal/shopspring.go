package decimal

import (
	shopspring "github.com/shopspring/decimal"
)

// FromShopspring converts a shopspring decimal without loss.
func FromShopspring(d shopspring.Decimal) Decimal {
	return Decimal{mant: d.Coefficient(), exp: -d.Exponent()}
}

// Shopspring converts d for code paths that still work with shopspring decimals.
func (d Decimal) Shopspring() shopspring.Decimal {
	return shopspring.NewFromBigInt(d.Mantissa(), -d.exp)
}
