package ledger

import (
	"encoding/hex"
	"math/big"

	"circnexus/core/types"
)

const (
	EventTypeMinted      = "ledger.minted"
	EventTypeBurned      = "ledger.burned"
	EventTypeTransferred = "ledger.transferred"
)

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(ledgerEvent{evt: evt})
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newMintedEvent(symbol string, addr [20]byte, amount, balance, supply *big.Int) *types.Event {
	return &types.Event{Type: EventTypeMinted, Attributes: map[string]string{
		"symbol":  symbol,
		"account": hex.EncodeToString(addr[:]),
		"amount":  formatAmount(amount),
		"balance": formatAmount(balance),
		"supply":  formatAmount(supply),
	}}
}

func newBurnedEvent(symbol string, addr [20]byte, amount, balance, supply *big.Int) *types.Event {
	return &types.Event{Type: EventTypeBurned, Attributes: map[string]string{
		"symbol":  symbol,
		"account": hex.EncodeToString(addr[:]),
		"amount":  formatAmount(amount),
		"balance": formatAmount(balance),
		"supply":  formatAmount(supply),
	}}
}

func newTransferredEvent(symbol string, from, to [20]byte, amount, fromBalance *big.Int) *types.Event {
	return &types.Event{Type: EventTypeTransferred, Attributes: map[string]string{
		"symbol":      symbol,
		"from":        hex.EncodeToString(from[:]),
		"to":          hex.EncodeToString(to[:]),
		"amount":      formatAmount(amount),
		"fromBalance": formatAmount(fromBalance),
	}}
}
