package domain

// DefaultEndpointCost is the admission cost of an endpoint with no declared weight.
const DefaultEndpointCost = 1.0

// Endpoint is a venue API endpoint with its static rate limit weight.
type Endpoint struct {
	Name string  `json:"name" yaml:"name"`
	Cost float64 `json:"cost" yaml:"cost"`
}

// Endpoints maps endpoint names to their declared weights.
type Endpoints map[string]Endpoint

// Cost returns the weight of the named endpoint, or DefaultEndpointCost.
func (e Endpoints) Cost(name string) float64 {
	if ep, ok := e[name]; ok && ep.Cost > 0 {
		return ep.Cost
	}
	return DefaultEndpointCost
}
