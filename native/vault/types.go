package vault

import "math/big"

// Pool is an independently configured staking relationship between a
// staking-token kind and a reward-token kind. Pools are never deleted, only
// deactivated.
type Pool struct {
	ID                   uint64   `json:"id"`
	StakingToken         string   `json:"stakingToken"`
	RewardToken          string   `json:"rewardToken"`
	TotalStaked          *big.Int `json:"totalStaked"`
	RewardRate           *big.Int `json:"rewardRate"`
	LastUpdateTime       int64    `json:"lastUpdateTime"`
	RewardPerTokenStored *big.Int `json:"rewardPerTokenStored"`
	MinStakingPeriod     int64    `json:"minStakingPeriod"`
	MaxStakePerUser      *big.Int `json:"maxStakePerUser"`
	Active               bool     `json:"active"`
	Partner              [20]byte `json:"partner"`
	Name                 string   `json:"name"`
	RewardFunds          *big.Int `json:"rewardFunds"`
}

// Clone returns a deep copy so callers can mutate the result safely.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalStaked = cloneAmount(p.TotalStaked)
	clone.RewardRate = cloneAmount(p.RewardRate)
	clone.RewardPerTokenStored = cloneAmount(p.RewardPerTokenStored)
	clone.MaxStakePerUser = cloneAmount(p.MaxStakePerUser)
	clone.RewardFunds = cloneAmount(p.RewardFunds)
	return &clone
}

// UserStake is a single account's position in one pool. The record persists
// after a full unstake.
type UserStake struct {
	Amount             *big.Int `json:"amount"`
	RewardPerTokenPaid *big.Int `json:"rewardPerTokenPaid"`
	PendingRewards     *big.Int `json:"pendingRewards"`
	StakeTimestamp     int64    `json:"stakeTimestamp"`
	LastClaimTimestamp int64    `json:"lastClaimTimestamp"`
}

// Clone returns a deep copy with non-nil amounts. A nil receiver yields a
// zero-valued position.
func (s *UserStake) Clone() *UserStake {
	if s == nil {
		return &UserStake{
			Amount:             big.NewInt(0),
			RewardPerTokenPaid: big.NewInt(0),
			PendingRewards:     big.NewInt(0),
		}
	}
	clone := *s
	clone.Amount = cloneAmount(s.Amount)
	clone.RewardPerTokenPaid = cloneAmount(s.RewardPerTokenPaid)
	clone.PendingRewards = cloneAmount(s.PendingRewards)
	return &clone
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
