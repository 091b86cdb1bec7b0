package carbon

import (
	"math/big"

	nativecommon "circnexus/native/common"
	"circnexus/native/waste"
)

const (
	// MaxConversionFeeBps caps the conversion fee at 10%.
	MaxConversionFeeBps uint32 = 1_000
	// MinSeasonalAdjustmentBps bounds the seasonal scalar at 50%.
	MinSeasonalAdjustmentBps uint32 = 5_000
	// MaxSeasonalAdjustmentBps bounds the seasonal scalar at 200%.
	MaxSeasonalAdjustmentBps uint32 = 20_000
	// MaxCarbonFactorBps caps per-material emission factors at 10x.
	MaxCarbonFactorBps uint32 = 100_000
	// BatchLimit bounds how many entries a single batch conversion may carry.
	BatchLimit = 10
	// tokensPerKilogram converts gram-denominated waste tokens to kilograms
	// for the emission arithmetic.
	tokensPerKilogram = 1_000
)

// Params holds the admin-configurable conversion arithmetic. Emission factors
// are basis-point fractions of one credit per kilogram (10,000 = 1.0).
type Params struct {
	CarbonFactorBps         map[waste.WasteType]uint32 `json:"carbonFactorBps"`
	SeasonalAdjustmentBps   uint32                     `json:"seasonalAdjustmentBps"`
	ConversionFeeBps        uint32                     `json:"conversionFeeBps"`
	MinimumConversionAmount *big.Int                   `json:"minimumConversionAmount"`
	VerificationThreshold   *big.Int                   `json:"verificationThreshold"`
}

// DefaultParams returns the launch configuration. Factors follow the
// platform's published emission tables.
func DefaultParams() *Params {
	return &Params{
		CarbonFactorBps: map[waste.WasteType]uint32{
			waste.WastePET:          15_000,
			waste.WasteAluminum:     21_000,
			waste.WasteGlass:        8_000,
			waste.WastePaper:        12_000,
			waste.WasteCardboard:    11_000,
			waste.WasteEWaste:       35_000,
			waste.WasteOrganic:      4_000,
			waste.WasteMixedPlastic: 10_000,
		},
		SeasonalAdjustmentBps: 10_000,
		ConversionFeeBps:      100,
		// 100 gram-tokens minimum per conversion request.
		MinimumConversionAmount: new(big.Int).Mul(big.NewInt(100), nativecommon.Scale),
		// Conversions grossing 50+ credits require a verifier.
		VerificationThreshold: new(big.Int).Mul(big.NewInt(50), nativecommon.Scale),
	}
}

// Clone returns a deep copy of the parameter set.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := &Params{
		CarbonFactorBps:         make(map[waste.WasteType]uint32, len(p.CarbonFactorBps)),
		SeasonalAdjustmentBps:   p.SeasonalAdjustmentBps,
		ConversionFeeBps:        p.ConversionFeeBps,
		MinimumConversionAmount: nativecommon.CloneBigInt(p.MinimumConversionAmount),
		VerificationThreshold:   nativecommon.CloneBigInt(p.VerificationThreshold),
	}
	for t, bps := range p.CarbonFactorBps {
		clone.CarbonFactorBps[t] = bps
	}
	return clone
}

func (p *Params) carbonFactor(t waste.WasteType) uint32 {
	if p == nil || p.CarbonFactorBps == nil {
		return 0
	}
	return p.CarbonFactorBps[t]
}
