package waste

import (
	"fmt"
	"math/big"
	"strings"
)

// WasteType enumerates the material categories accepted by the platform.
type WasteType uint8

const (
	WastePET WasteType = iota
	WasteAluminum
	WasteGlass
	WastePaper
	WasteCardboard
	WasteEWaste
	WasteOrganic
	WasteMixedPlastic
)

var wasteTypeNames = map[WasteType]string{
	WastePET:          "PET",
	WasteAluminum:     "ALUMINUM",
	WasteGlass:        "GLASS",
	WastePaper:        "PAPER",
	WasteCardboard:    "CARDBOARD",
	WasteEWaste:       "EWASTE",
	WasteOrganic:      "ORGANIC",
	WasteMixedPlastic: "MIXED_PLASTIC",
}

// WasteTypes lists every supported material category.
func WasteTypes() []WasteType {
	return []WasteType{
		WastePET, WasteAluminum, WasteGlass, WastePaper,
		WasteCardboard, WasteEWaste, WasteOrganic, WasteMixedPlastic,
	}
}

func (t WasteType) String() string {
	if name, ok := wasteTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("WASTE_TYPE_%d", uint8(t))
}

// Valid reports whether the value names a supported material category.
func (t WasteType) Valid() bool {
	_, ok := wasteTypeNames[t]
	return ok
}

// ParseWasteType maps the canonical uppercase name onto its enum value.
func ParseWasteType(name string) (WasteType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	for t, n := range wasteTypeNames {
		if n == normalized {
			return t, nil
		}
	}
	return 0, fmt.Errorf("waste: unknown waste type %q", name)
}

// Quality grades a submission. The ordering is EXCELLENT > GOOD > FAIR >
// POOR > UNUSABLE; UNUSABLE submissions mint nothing.
type Quality uint8

const (
	QualityExcellent Quality = iota
	QualityGood
	QualityFair
	QualityPoor
	QualityUnusable
)

var qualityNames = map[Quality]string{
	QualityExcellent: "EXCELLENT",
	QualityGood:      "GOOD",
	QualityFair:      "FAIR",
	QualityPoor:      "POOR",
	QualityUnusable:  "UNUSABLE",
}

func (q Quality) String() string {
	if name, ok := qualityNames[q]; ok {
		return name
	}
	return fmt.Sprintf("QUALITY_%d", uint8(q))
}

// Valid reports whether the value names a supported quality grade.
func (q Quality) Valid() bool {
	_, ok := qualityNames[q]
	return ok
}

// ParseQuality maps the canonical uppercase name onto its enum value.
func ParseQuality(name string) (Quality, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	for q, n := range qualityNames {
		if n == normalized {
			return q, nil
		}
	}
	return 0, fmt.Errorf("waste: unknown quality %q", name)
}

// Verdict captures the tri-state verification outcome of a submission.
type Verdict uint8

const (
	VerdictUnset Verdict = iota
	VerdictApproved
	VerdictRejected
)

func (v Verdict) String() string {
	switch v {
	case VerdictApproved:
		return "APPROVED"
	case VerdictRejected:
		return "REJECTED"
	default:
		return "UNSET"
	}
}

// Submission records one verified-waste deposit. Submissions are identified by
// a monotonically increasing id and are never deleted.
type Submission struct {
	ID           uint64    `json:"id"`
	Submitter    [20]byte  `json:"submitter"`
	Type         WasteType `json:"type"`
	Quality      Quality   `json:"quality"`
	WeightGrams  uint64    `json:"weightGrams"`
	TokensMinted *big.Int  `json:"tokensMinted"`
	EvidenceRef  string    `json:"evidenceRef"`
	LocationTag  string    `json:"locationTag,omitempty"`
	Timestamp    int64     `json:"timestamp"`
	Verdict      Verdict   `json:"verdict"`
}

// Clone returns a deep copy so callers can mutate the result safely.
func (s *Submission) Clone() *Submission {
	if s == nil {
		return nil
	}
	clone := *s
	if s.TokensMinted != nil {
		clone.TokensMinted = new(big.Int).Set(s.TokensMinted)
	} else {
		clone.TokensMinted = big.NewInt(0)
	}
	return &clone
}

// UserStats aggregates the tokenization history for one submitter.
type UserStats struct {
	TotalWeightGrams uint64   `json:"totalWeightGrams"`
	TotalMinted      *big.Int `json:"totalMinted"`
	Submissions      uint64   `json:"submissions"`
}

// Clone returns a deep copy with a non-nil minted total.
func (s *UserStats) Clone() *UserStats {
	if s == nil {
		return &UserStats{TotalMinted: big.NewInt(0)}
	}
	clone := *s
	if s.TotalMinted != nil {
		clone.TotalMinted = new(big.Int).Set(s.TotalMinted)
	} else {
		clone.TotalMinted = big.NewInt(0)
	}
	return &clone
}

// TypeStats aggregates platform-wide totals for one material category.
type TypeStats struct {
	TotalWeightGrams uint64   `json:"totalWeightGrams"`
	TotalMinted      *big.Int `json:"totalMinted"`
	Submissions      uint64   `json:"submissions"`
}

// Clone returns a deep copy with a non-nil minted total.
func (s *TypeStats) Clone() *TypeStats {
	if s == nil {
		return &TypeStats{TotalMinted: big.NewInt(0)}
	}
	clone := *s
	if s.TotalMinted != nil {
		clone.TotalMinted = new(big.Int).Set(s.TotalMinted)
	} else {
		clone.TotalMinted = big.NewInt(0)
	}
	return &clone
}
