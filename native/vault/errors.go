package vault

import "errors"

var (
	ErrInvalidInput            = errors.New("vault: invalid input")
	ErrPoolNotFound            = errors.New("vault: pool not found")
	ErrPoolInactive            = errors.New("vault: pool inactive")
	ErrExceedsMaxStake         = errors.New("vault: stake exceeds per-user cap")
	ErrInsufficientStake       = errors.New("vault: insufficient staked amount")
	ErrLockNotExpired          = errors.New("vault: minimum staking period not met")
	ErrNoRewards               = errors.New("vault: no rewards to claim")
	ErrInsufficientRewardFunds = errors.New("vault: pool reward funds exhausted")
	ErrValueOutOfRange         = errors.New("vault: value out of range")
	ErrNotPaused               = errors.New("vault: vault is not paused")
	ErrUnknownToken            = errors.New("vault: token kind not registered")
	errNilState                = errors.New("vault: state not configured")
	errNilLedger               = errors.New("vault: ledger not configured")
	errNilPauses               = errors.New("vault: pause registry not configured")
)
