package providers

// DefaultFallbackPrice is used when no fallback is configured.
const DefaultFallbackPrice = 90000

// PricePolicy reconciles missing upstream fares. Every adapter resolves
// prices through the same policy so fallback segments look identical
// regardless of where they came from.
type PricePolicy struct {
	Fallback int
}

// Resolve returns raw when it is a usable price, otherwise the fallback price
// and true.
func (p PricePolicy) Resolve(raw int) (int, bool) {
	if raw > 0 {
		return raw, false
	}
	if p.Fallback > 0 {
		return p.Fallback, true
	}
	return DefaultFallbackPrice, true
}
