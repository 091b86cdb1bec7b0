package waste

import (
	"math/big"

	nativecommon "circnexus/native/common"
)

const (
	// MaxTypeMultiplierBps caps waste-type multipliers at 5.0x.
	MaxTypeMultiplierBps uint32 = 50_000
	// MaxQualityMultiplierBps caps quality multipliers at 1.0x.
	MaxQualityMultiplierBps uint32 = 10_000
)

// Params holds the admin-configurable tokenization arithmetic. Multipliers are
// basis-point fractions (10,000 = 1.0x) applied to the per-gram base rate.
type Params struct {
	BaseRatePerGram      *big.Int             `json:"baseRatePerGram"`
	TypeMultiplierBps    map[WasteType]uint32 `json:"typeMultiplierBps"`
	QualityMultiplierBps map[Quality]uint32   `json:"qualityMultiplierBps"`
}

// DefaultParams returns the launch configuration: 1000 tokens per gram at the
// 18-decimal scale, with multiplier tables mirroring the platform's material
// and quality grading.
func DefaultParams() *Params {
	return &Params{
		BaseRatePerGram: new(big.Int).Mul(big.NewInt(1000), nativecommon.Scale),
		TypeMultiplierBps: map[WasteType]uint32{
			WastePET:          12_000,
			WasteAluminum:     25_000,
			WasteGlass:        8_000,
			WastePaper:        7_000,
			WasteCardboard:    6_000,
			WasteEWaste:       35_000,
			WasteOrganic:      5_000,
			WasteMixedPlastic: 10_000,
		},
		QualityMultiplierBps: map[Quality]uint32{
			QualityExcellent: 10_000,
			QualityGood:      8_000,
			QualityFair:      6_000,
			QualityPoor:      3_000,
			QualityUnusable:  0,
		},
	}
}

// Clone returns a deep copy of the parameter set.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := &Params{
		BaseRatePerGram:      nativecommon.CloneBigInt(p.BaseRatePerGram),
		TypeMultiplierBps:    make(map[WasteType]uint32, len(p.TypeMultiplierBps)),
		QualityMultiplierBps: make(map[Quality]uint32, len(p.QualityMultiplierBps)),
	}
	for t, bps := range p.TypeMultiplierBps {
		clone.TypeMultiplierBps[t] = bps
	}
	for q, bps := range p.QualityMultiplierBps {
		clone.QualityMultiplierBps[q] = bps
	}
	return clone
}

func (p *Params) typeMultiplier(t WasteType) uint32 {
	if p == nil || p.TypeMultiplierBps == nil {
		return 0
	}
	return p.TypeMultiplierBps[t]
}

func (p *Params) qualityMultiplier(q Quality) uint32 {
	if p == nil || p.QualityMultiplierBps == nil {
		return 0
	}
	return p.QualityMultiplierBps[q]
}
