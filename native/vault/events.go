package vault

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"circnexus/core/types"
)

const (
	EventTypePoolCreated         = "vault.poolCreated"
	EventTypeStaked              = "vault.staked"
	EventTypeUnstaked            = "vault.unstaked"
	EventTypeClaimed             = "vault.claimed"
	EventTypeFunded              = "vault.funded"
	EventTypeRateUpdated         = "vault.rateUpdated"
	EventTypePoolToggled         = "vault.poolToggled"
	EventTypeEmergencyWithdrawal = "vault.emergencyWithdrawal"
)

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: evt})
}

func newPoolCreatedEvent(pool *Pool) *types.Event {
	return &types.Event{Type: EventTypePoolCreated, Attributes: map[string]string{
		"poolId":       strconv.FormatUint(pool.ID, 10),
		"stakingToken": pool.StakingToken,
		"rewardToken":  pool.RewardToken,
		"rewardRate":   pool.RewardRate.String(),
		"partner":      hex.EncodeToString(pool.Partner[:]),
		"name":         pool.Name,
	}}
}

func newStakedEvent(pool *Pool, user [20]byte, amount, total *big.Int) *types.Event {
	return &types.Event{Type: EventTypeStaked, Attributes: map[string]string{
		"poolId": strconv.FormatUint(pool.ID, 10),
		"user":   hex.EncodeToString(user[:]),
		"amount": amount.String(),
		"staked": total.String(),
	}}
}

func newUnstakedEvent(pool *Pool, user [20]byte, amount, remaining *big.Int, payout *claimPayout) *types.Event {
	claimed := "0"
	if payout != nil {
		claimed = payout.net.String()
	}
	return &types.Event{Type: EventTypeUnstaked, Attributes: map[string]string{
		"poolId":    strconv.FormatUint(pool.ID, 10),
		"user":      hex.EncodeToString(user[:]),
		"amount":    amount.String(),
		"remaining": remaining.String(),
		"claimed":   claimed,
	}}
}

func newClaimedEvent(pool *Pool, user [20]byte, payout *claimPayout) *types.Event {
	return &types.Event{Type: EventTypeClaimed, Attributes: map[string]string{
		"poolId": strconv.FormatUint(pool.ID, 10),
		"user":   hex.EncodeToString(user[:]),
		"gross":  payout.gross.String(),
		"fee":    payout.fee.String(),
		"net":    payout.net.String(),
	}}
}

func newFundedEvent(pool *Pool, funder [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFunded, Attributes: map[string]string{
		"poolId": strconv.FormatUint(pool.ID, 10),
		"funder": hex.EncodeToString(funder[:]),
		"amount": amount.String(),
		"funds":  pool.RewardFunds.String(),
	}}
}

func newRateUpdatedEvent(pool *Pool) *types.Event {
	return &types.Event{Type: EventTypeRateUpdated, Attributes: map[string]string{
		"poolId":     strconv.FormatUint(pool.ID, 10),
		"rewardRate": pool.RewardRate.String(),
	}}
}

func newPoolToggledEvent(pool *Pool) *types.Event {
	return &types.Event{Type: EventTypePoolToggled, Attributes: map[string]string{
		"poolId": strconv.FormatUint(pool.ID, 10),
		"active": strconv.FormatBool(pool.Active),
	}}
}

func newEmergencyWithdrawalEvent(owner [20]byte, symbol string, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeEmergencyWithdrawal, Attributes: map[string]string{
		"owner":  hex.EncodeToString(owner[:]),
		"token":  symbol,
		"amount": amount.String(),
	}}
}
