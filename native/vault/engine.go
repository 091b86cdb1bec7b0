package vault

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"circnexus/core/events"
	nativecommon "circnexus/native/common"
)

const moduleName = "vault"

// Ledger is the balance surface the vault needs: staked balance and reward
// funds move through the vault custody account.
type Ledger interface {
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
	Registered(symbol string) bool
}

// PauseController is the vault-wide emergency switch. Unlike the other
// engines the vault owns its pause flag, so it needs the mutating side too.
type PauseController interface {
	nativecommon.PauseView
	Pause(module string)
	Resume(module string)
}

type engineState interface {
	VaultParams() (*Params, error)
	SetVaultParams(*Params) error
	Pool(id uint64) (*Pool, bool, error)
	PutPool(*Pool) error
	PoolCount() (uint64, error)
	SetPoolCount(count uint64) error
	UserStake(poolID uint64, addr [20]byte) (*UserStake, bool, error)
	SetUserStake(poolID uint64, addr [20]byte, stake *UserStake) error
}

// Engine is the multi-pool staking vault. Each pool streams its reward token
// to stakers proportional to stake-time using a lazily updated
// reward-per-token accumulator.
type Engine struct {
	state        engineState
	ledger       Ledger
	roles        nativecommon.RoleView
	pauses       PauseController
	emitter      events.Emitter
	nowFn        func() int64
	custody      [20]byte
	feeCollector [20]byte
}

// NewEngine constructs a vault engine. The custody address holds staked
// balance and funded rewards; the fee collector receives the claim fee split.
func NewEngine(custody, feeCollector [20]byte) *Engine {
	return &Engine{
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
		custody:      custody,
		feeCollector: feeCollector,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the token ledger.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetRoles configures the authorization table consulted by gated operations.
func (e *Engine) SetRoles(roles nativecommon.RoleView) { e.roles = roles }

// SetPauses wires the vault-wide pause switch.
func (e *Engine) SetPauses(p PauseController) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) loadParams() (*Params, error) {
	params, err := e.state.VaultParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return DefaultParams(), nil
	}
	return params, nil
}

// rewardPerToken computes the accumulator as of now without mutating the
// pool. Frozen while nothing is staked.
func rewardPerToken(pool *Pool, now int64) *big.Int {
	stored := nativecommon.CloneBigInt(pool.RewardPerTokenStored)
	if pool.TotalStaked == nil || pool.TotalStaked.Sign() == 0 {
		return stored
	}
	elapsed := now - pool.LastUpdateTime
	if elapsed <= 0 {
		return stored
	}
	accrued := new(big.Int).Mul(big.NewInt(elapsed), nativecommon.CloneBigInt(pool.RewardRate))
	delta, err := nativecommon.MulDiv(accrued, nativecommon.Scale, pool.TotalStaked)
	if err != nil {
		return stored
	}
	return stored.Add(stored, delta)
}

// checkpoint advances the pool accumulator and folds the user's live accrual
// into pending rewards. Mandatory before every mutation so past accrual stays
// exact across rate changes and stake churn.
func checkpoint(pool *Pool, stake *UserStake, now int64) {
	rpt := rewardPerToken(pool, now)
	pool.RewardPerTokenStored = rpt
	pool.LastUpdateTime = now
	if stake == nil {
		return
	}
	if stake.Amount.Sign() > 0 {
		owed := new(big.Int).Sub(rpt, stake.RewardPerTokenPaid)
		if owed.Sign() > 0 {
			earned, err := nativecommon.MulDiv(stake.Amount, owed, nativecommon.Scale)
			if err == nil {
				stake.PendingRewards.Add(stake.PendingRewards, earned)
			}
		}
	}
	stake.RewardPerTokenPaid = new(big.Int).Set(rpt)
}

// CreatePool registers a new staking pool. Partner or owner only.
func (e *Engine) CreatePool(caller [20]byte, stakingToken, rewardToken string, rewardRate *big.Int, minStakingPeriod int64, maxStakePerUser *big.Int, name string) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.AuthorizeAny(e.roles, caller, nativecommon.RolePartner, nativecommon.RoleOwner); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" || minStakingPeriod < 0 {
		return nil, ErrInvalidInput
	}
	if rewardRate == nil || rewardRate.Sign() <= 0 {
		return nil, ErrValueOutOfRange
	}
	if maxStakePerUser != nil && maxStakePerUser.Sign() < 0 {
		return nil, ErrValueOutOfRange
	}
	if !e.ledger.Registered(stakingToken) || !e.ledger.Registered(rewardToken) {
		return nil, ErrUnknownToken
	}
	count, err := e.state.PoolCount()
	if err != nil {
		return nil, err
	}
	pool := &Pool{
		ID:                   count + 1,
		StakingToken:         stakingToken,
		RewardToken:          rewardToken,
		TotalStaked:          big.NewInt(0),
		RewardRate:           nativecommon.CloneBigInt(rewardRate),
		LastUpdateTime:       e.nowFn(),
		RewardPerTokenStored: big.NewInt(0),
		MinStakingPeriod:     minStakingPeriod,
		MaxStakePerUser:      nativecommon.CloneBigInt(maxStakePerUser),
		Active:               true,
		Partner:              caller,
		Name:                 strings.TrimSpace(name),
		RewardFunds:          big.NewInt(0),
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	if err := e.state.SetPoolCount(pool.ID); err != nil {
		return nil, err
	}
	e.emit(newPoolCreatedEvent(pool))
	return pool.Clone(), nil
}

func (e *Engine) loadPool(id uint64) (*Pool, error) {
	pool, ok, err := e.state.Pool(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

func (e *Engine) loadStake(poolID uint64, addr [20]byte) (*UserStake, error) {
	stake, ok, err := e.state.UserStake(poolID, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		stake = nil
	}
	return stake.Clone(), nil
}

// Stake moves staking-token balance into vault custody and begins accrual.
// Adding to an existing position resets the lock timestamp for the whole
// position.
func (e *Engine) Stake(user [20]byte, poolID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidInput
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if !pool.Active {
		return ErrPoolInactive
	}
	stake, err := e.loadStake(poolID, user)
	if err != nil {
		return err
	}
	now := e.nowFn()
	checkpoint(pool, stake, now)
	newAmount := new(big.Int).Add(stake.Amount, amount)
	if pool.MaxStakePerUser != nil && pool.MaxStakePerUser.Sign() > 0 && newAmount.Cmp(pool.MaxStakePerUser) > 0 {
		return ErrExceedsMaxStake
	}
	if err := e.ledger.Transfer(pool.StakingToken, user, e.custody, amount); err != nil {
		return err
	}
	stake.Amount = newAmount
	stake.StakeTimestamp = now
	pool.TotalStaked.Add(pool.TotalStaked, amount)
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	if err := e.state.SetUserStake(poolID, user, stake); err != nil {
		return err
	}
	e.emit(newStakedEvent(pool, user, amount, stake.Amount))
	return nil
}

// Unstake returns staked balance after the lock expires, auto-claiming any
// pending reward the pool can cover. When reward funds are short the
// principal still moves and the pending reward is preserved.
func (e *Engine) Unstake(user [20]byte, poolID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidInput
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	stake, err := e.loadStake(poolID, user)
	if err != nil {
		return err
	}
	if stake.Amount.Cmp(amount) < 0 {
		return ErrInsufficientStake
	}
	now := e.nowFn()
	if now < stake.StakeTimestamp+pool.MinStakingPeriod {
		return ErrLockNotExpired
	}
	checkpoint(pool, stake, now)
	payout, err := e.prepareClaim(pool, stake, now, false)
	if err != nil {
		// An underfunded pool must not hold unlocked principal hostage.
		// The pending reward stays on the stake until the pool is topped
		// up and claimed explicitly.
		if !errors.Is(err, ErrInsufficientRewardFunds) {
			return err
		}
		payout = nil
	}
	stake.Amount = new(big.Int).Sub(stake.Amount, amount)
	pool.TotalStaked.Sub(pool.TotalStaked, amount)
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	if err := e.state.SetUserStake(poolID, user, stake); err != nil {
		return err
	}
	if err := e.ledger.Transfer(pool.StakingToken, e.custody, user, amount); err != nil {
		return err
	}
	if err := e.payClaim(pool, user, payout); err != nil {
		return err
	}
	e.emit(newUnstakedEvent(pool, user, amount, stake.Amount, payout))
	return nil
}

// claimPayout is the fee-split result of a reward settlement, computed during
// bookkeeping and transferred only after state persists.
type claimPayout struct {
	gross *big.Int
	fee   *big.Int
	net   *big.Int
}

// prepareClaim settles pending rewards against pool custody inside the
// in-memory records. Requires the caller to have checkpointed first. When
// required is false a zero pending balance is a no-op instead of ErrNoRewards.
func (e *Engine) prepareClaim(pool *Pool, stake *UserStake, now int64, required bool) (*claimPayout, error) {
	if stake.PendingRewards.Sign() == 0 {
		if required {
			return nil, ErrNoRewards
		}
		return nil, nil
	}
	if pool.RewardFunds.Cmp(stake.PendingRewards) < 0 {
		return nil, ErrInsufficientRewardFunds
	}
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	gross := nativecommon.CloneBigInt(stake.PendingRewards)
	fee := nativecommon.ApplyBps(gross, params.RewardFeeBps)
	payout := &claimPayout{
		gross: gross,
		fee:   fee,
		net:   new(big.Int).Sub(gross, fee),
	}
	pool.RewardFunds.Sub(pool.RewardFunds, gross)
	stake.PendingRewards = big.NewInt(0)
	stake.LastClaimTimestamp = now
	return payout, nil
}

// payClaim performs the reward transfers for a settled claim. Runs strictly
// after all state writes.
func (e *Engine) payClaim(pool *Pool, user [20]byte, payout *claimPayout) error {
	if payout == nil {
		return nil
	}
	if payout.net.Sign() > 0 {
		if err := e.ledger.Transfer(pool.RewardToken, e.custody, user, payout.net); err != nil {
			return err
		}
	}
	if payout.fee.Sign() > 0 {
		if err := e.ledger.Transfer(pool.RewardToken, e.custody, e.feeCollector, payout.fee); err != nil {
			return err
		}
	}
	return nil
}

// Claim pays out the user's pending rewards minus the platform fee.
func (e *Engine) Claim(user [20]byte, poolID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	stake, err := e.loadStake(poolID, user)
	if err != nil {
		return nil, err
	}
	now := e.nowFn()
	checkpoint(pool, stake, now)
	payout, err := e.prepareClaim(pool, stake, now, true)
	if err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	if err := e.state.SetUserStake(poolID, user, stake); err != nil {
		return nil, err
	}
	if err := e.payClaim(pool, user, payout); err != nil {
		return nil, err
	}
	e.emit(newClaimedEvent(pool, user, payout))
	return payout.net, nil
}

// FundPool deposits reward-token balance into vault custody to back future
// payouts. Only the pool's partner or the owner may fund.
func (e *Engine) FundPool(caller [20]byte, poolID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidInput
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := e.authorizePoolAdmin(caller, pool); err != nil {
		return err
	}
	if err := e.ledger.Transfer(pool.RewardToken, caller, e.custody, amount); err != nil {
		return err
	}
	pool.RewardFunds.Add(pool.RewardFunds, amount)
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(newFundedEvent(pool, caller, amount))
	return nil
}

// UpdateRewardRate swaps the emission rate after checkpointing, preserving
// accrual at the old rate exactly.
func (e *Engine) UpdateRewardRate(caller [20]byte, poolID uint64, newRate *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if newRate == nil || newRate.Sign() <= 0 {
		return ErrValueOutOfRange
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := e.authorizePoolAdmin(caller, pool); err != nil {
		return err
	}
	checkpoint(pool, nil, e.nowFn())
	pool.RewardRate = nativecommon.CloneBigInt(newRate)
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(newRateUpdatedEvent(pool))
	return nil
}

// TogglePool flips the pool between active and inactive.
func (e *Engine) TogglePool(caller [20]byte, poolID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := e.authorizePoolAdmin(caller, pool); err != nil {
		return err
	}
	pool.Active = !pool.Active
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(newPoolToggledEvent(pool))
	return nil
}

func (e *Engine) authorizePoolAdmin(caller [20]byte, pool *Pool) error {
	if caller == pool.Partner {
		return nativecommon.Authorize(e.roles, caller, nativecommon.RolePartner)
	}
	return nativecommon.Authorize(e.roles, caller, nativecommon.RoleOwner)
}

// Pause halts all stake, unstake, and claim entry points. Owner only.
func (e *Engine) Pause(caller [20]byte) error {
	if e == nil || e.pauses == nil {
		return errNilPauses
	}
	if err := nativecommon.Authorize(e.roles, caller, nativecommon.RoleOwner); err != nil {
		return err
	}
	e.pauses.Pause(moduleName)
	return nil
}

// Unpause reopens the vault entry points. Owner only.
func (e *Engine) Unpause(caller [20]byte) error {
	if e == nil || e.pauses == nil {
		return errNilPauses
	}
	if err := nativecommon.Authorize(e.roles, caller, nativecommon.RoleOwner); err != nil {
		return err
	}
	e.pauses.Resume(moduleName)
	return nil
}

// EmergencyWithdraw moves custodied balance to the owner, bypassing pool
// accounting. Last-resort recovery; requires the vault to be paused.
func (e *Engine) EmergencyWithdraw(caller [20]byte, symbol string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if err := nativecommon.Authorize(e.roles, caller, nativecommon.RoleOwner); err != nil {
		return err
	}
	if e.pauses == nil || !e.pauses.IsPaused(moduleName) {
		return ErrNotPaused
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidInput
	}
	if err := e.ledger.Transfer(symbol, e.custody, caller, amount); err != nil {
		return err
	}
	e.emit(newEmergencyWithdrawalEvent(caller, symbol, amount))
	return nil
}

// SetRewardFee updates the claim fee, capped at 10%. Owner only.
func (e *Engine) SetRewardFee(caller [20]byte, bps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Authorize(e.roles, caller, nativecommon.RoleOwner); err != nil {
		return err
	}
	if bps > MaxRewardFeeBps {
		return ErrValueOutOfRange
	}
	params, err := e.loadParams()
	if err != nil {
		return err
	}
	params = params.Clone()
	params.RewardFeeBps = bps
	return e.state.SetVaultParams(params)
}

// Pool returns the stored pool record.
func (e *Engine) Pool(id uint64) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// StakeInfo returns the user's position in the pool. Users without a position
// get a zero-valued record.
func (e *Engine) StakeInfo(poolID uint64, addr [20]byte) (*UserStake, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadPool(poolID); err != nil {
		return nil, err
	}
	return e.loadStake(poolID, addr)
}

// Earned returns the user's live earned-but-unclaimed reward as of now,
// without mutating state.
func (e *Engine) Earned(poolID uint64, addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	stake, err := e.loadStake(poolID, addr)
	if err != nil {
		return nil, err
	}
	checkpoint(pool, stake, e.nowFn())
	return stake.PendingRewards, nil
}

// Params returns the active vault parameters.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	return params.Clone(), nil
}
