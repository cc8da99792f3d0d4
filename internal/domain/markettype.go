package domain

// MarketType type of market for trading.
type MarketType string

const (
	// MarketTypeSpot spot trading.
	MarketTypeSpot MarketType = "spot"
	// MarketTypeMargin margin trading.
	MarketTypeMargin MarketType = "margin"
	// MarketTypePerp perpetual futures.
	MarketTypePerp MarketType = "perp"
)

// String returns the string representation.
func (m MarketType) String() string {
	return string(m)
}

// IsValid checks if the MarketType value is valid.
func (m MarketType) IsValid() bool {
	return m == MarketTypeSpot || m == MarketTypeMargin || m == MarketTypePerp
}
