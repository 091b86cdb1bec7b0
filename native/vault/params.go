package vault

// MaxRewardFeeBps caps the platform fee skimmed from reward claims at 10%.
const MaxRewardFeeBps uint32 = 1_000

// Params holds the vault-wide admin-configurable knobs. Per-pool settings
// live on the Pool record itself.
type Params struct {
	RewardFeeBps uint32 `json:"rewardFeeBps"`
}

// DefaultParams returns the launch configuration: a 1% claim fee.
func DefaultParams() *Params {
	return &Params{RewardFeeBps: 100}
}

// Clone returns a copy of the parameter set.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
