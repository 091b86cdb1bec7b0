package carbon

// DefaultCreditPriceCents is the advisory per-credit quote served when no
// external oracle is configured.
const DefaultCreditPriceCents int64 = 1_250

// PriceFeed supplies advisory carbon pricing context to read surfaces. The
// conversion arithmetic never consults it; factors stay admin-configured.
type PriceFeed interface {
	CreditPriceUSDCents() (int64, error)
}

// StaticPriceFeed returns a fixed quote. Used when no external oracle is wired.
type StaticPriceFeed struct {
	Cents int64
}

// CreditPriceUSDCents implements the PriceFeed interface.
func (f StaticPriceFeed) CreditPriceUSDCents() (int64, error) {
	return f.Cents, nil
}
