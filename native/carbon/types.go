package carbon

import (
	"math/big"

	"circnexus/native/waste"
)

// ConversionStatus tracks the verification lifecycle of a conversion record.
type ConversionStatus uint8

const (
	// ConversionPending awaits a verifier verdict before credits mint.
	ConversionPending ConversionStatus = iota
	// ConversionAutoVerified minted immediately because the gross credit
	// amount fell below the verification threshold.
	ConversionAutoVerified
	// ConversionApproved was confirmed by a verifier.
	ConversionApproved
	// ConversionRejected was rejected; the waste balance was refunded.
	ConversionRejected
)

func (s ConversionStatus) String() string {
	switch s {
	case ConversionAutoVerified:
		return "AUTO_VERIFIED"
	case ConversionApproved:
		return "APPROVED"
	case ConversionRejected:
		return "REJECTED"
	default:
		return "PENDING"
	}
}

// Final reports whether the record can no longer change.
func (s ConversionStatus) Final() bool {
	return s != ConversionPending
}

// Conversion records one waste-to-carbon-credit request.
type Conversion struct {
	ID             uint64           `json:"id"`
	User           [20]byte         `json:"user"`
	WasteAmount    *big.Int         `json:"wasteAmount"`
	WasteType      waste.WasteType  `json:"wasteType"`
	GrossCredits   *big.Int         `json:"grossCredits"`
	Fee            *big.Int         `json:"fee"`
	NetCredits     *big.Int         `json:"netCredits"`
	MethodologyTag string           `json:"methodologyTag"`
	Timestamp      int64            `json:"timestamp"`
	Status         ConversionStatus `json:"status"`
}

// Clone returns a deep copy so callers can mutate the result safely.
func (c *Conversion) Clone() *Conversion {
	if c == nil {
		return nil
	}
	clone := *c
	clone.WasteAmount = cloneAmount(c.WasteAmount)
	clone.GrossCredits = cloneAmount(c.GrossCredits)
	clone.Fee = cloneAmount(c.Fee)
	clone.NetCredits = cloneAmount(c.NetCredits)
	return &clone
}

// Retirement records an irreversible carbon-credit burn used to claim an
// offset.
type Retirement struct {
	ID        uint64   `json:"id"`
	User      [20]byte `json:"user"`
	Amount    *big.Int `json:"amount"`
	Reason    string   `json:"reason"`
	Timestamp int64    `json:"timestamp"`
}

// Clone returns a deep copy so callers can mutate the result safely.
func (r *Retirement) Clone() *Retirement {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Amount = cloneAmount(r.Amount)
	return &clone
}

// UserStats aggregates a user's conversion history.
type UserStats struct {
	TotalConverted *big.Int `json:"totalConverted"`
	TotalCredits   *big.Int `json:"totalCredits"`
	TotalRetired   *big.Int `json:"totalRetired"`
	Conversions    uint64   `json:"conversions"`
}

// Clone returns a deep copy with non-nil totals.
func (s *UserStats) Clone() *UserStats {
	if s == nil {
		return &UserStats{
			TotalConverted: big.NewInt(0),
			TotalCredits:   big.NewInt(0),
			TotalRetired:   big.NewInt(0),
		}
	}
	clone := *s
	clone.TotalConverted = cloneAmount(s.TotalConverted)
	clone.TotalCredits = cloneAmount(s.TotalCredits)
	clone.TotalRetired = cloneAmount(s.TotalRetired)
	return &clone
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
