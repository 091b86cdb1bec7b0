package ledger

import (
	"math/big"
	"strings"

	"circnexus/core/events"
	nativecommon "circnexus/native/common"
)

type engineState interface {
	LedgerBalance(symbol string, addr [20]byte) (*big.Int, error)
	SetLedgerBalance(symbol string, addr [20]byte, amount *big.Int) error
	LedgerSupply(symbol string) (*big.Int, error)
	SetLedgerSupply(symbol string, amount *big.Int) error
}

// Engine tracks balances and total supply for every registered token kind.
// It is the only mutator of ledger state; the other engines interact with it
// through explicit mint/burn/transfer calls.
type Engine struct {
	state   engineState
	emitter events.Emitter
	symbols map[string]struct{}
}

// NewEngine constructs a ledger accepting the supplied token symbols.
func NewEngine(symbols ...string) *Engine {
	registered := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		normalized := NormalizeSymbol(symbol)
		if normalized != "" {
			registered[normalized] = struct{}{}
		}
	}
	return &Engine{
		emitter: events.NoopEmitter{},
		symbols: registered,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// NormalizeSymbol maps a token symbol onto its canonical uppercase form.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Registered reports whether the symbol is an accepted token kind.
func (e *Engine) Registered(symbol string) bool {
	if e == nil {
		return false
	}
	_, ok := e.symbols[NormalizeSymbol(symbol)]
	return ok
}

func (e *Engine) resolveSymbol(symbol string) (string, error) {
	normalized := NormalizeSymbol(symbol)
	if _, ok := e.symbols[normalized]; !ok {
		return "", ErrUnknownToken
	}
	return normalized, nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Mint credits amount to the account and grows the supply. Zero amounts are
// accepted; rejecting them is caller policy, not a ledger concern.
func (e *Engine) Mint(symbol string, addr [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	normalized, err := e.resolveSymbol(symbol)
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	balance, err := e.state.LedgerBalance(normalized, addr)
	if err != nil {
		return err
	}
	supply, err := e.state.LedgerSupply(normalized)
	if err != nil {
		return err
	}
	newBalance := new(big.Int).Add(nativecommon.CloneBigInt(balance), amount)
	newSupply := new(big.Int).Add(nativecommon.CloneBigInt(supply), amount)
	if err := e.state.SetLedgerBalance(normalized, addr, newBalance); err != nil {
		return err
	}
	if err := e.state.SetLedgerSupply(normalized, newSupply); err != nil {
		return err
	}
	e.emit(newMintedEvent(normalized, addr, amount, newBalance, newSupply))
	return nil
}

// Burn debits amount from the account and shrinks the supply.
func (e *Engine) Burn(symbol string, addr [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	normalized, err := e.resolveSymbol(symbol)
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	balance, err := e.state.LedgerBalance(normalized, addr)
	if err != nil {
		return err
	}
	balance = nativecommon.CloneBigInt(balance)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	supply, err := e.state.LedgerSupply(normalized)
	if err != nil {
		return err
	}
	newBalance := new(big.Int).Sub(balance, amount)
	newSupply := new(big.Int).Sub(nativecommon.CloneBigInt(supply), amount)
	if err := e.state.SetLedgerBalance(normalized, addr, newBalance); err != nil {
		return err
	}
	if err := e.state.SetLedgerSupply(normalized, newSupply); err != nil {
		return err
	}
	e.emit(newBurnedEvent(normalized, addr, amount, newBalance, newSupply))
	return nil
}

// Transfer moves amount between two accounts. Both balance updates are applied
// together; a failed precondition leaves the ledger untouched.
func (e *Engine) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	normalized, err := e.resolveSymbol(symbol)
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	fromBalance, err := e.state.LedgerBalance(normalized, from)
	if err != nil {
		return err
	}
	fromBalance = nativecommon.CloneBigInt(fromBalance)
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		e.emit(newTransferredEvent(normalized, from, to, amount, fromBalance))
		return nil
	}
	toBalance, err := e.state.LedgerBalance(normalized, to)
	if err != nil {
		return err
	}
	newFrom := new(big.Int).Sub(fromBalance, amount)
	newTo := new(big.Int).Add(nativecommon.CloneBigInt(toBalance), amount)
	if err := e.state.SetLedgerBalance(normalized, from, newFrom); err != nil {
		return err
	}
	if err := e.state.SetLedgerBalance(normalized, to, newTo); err != nil {
		return err
	}
	e.emit(newTransferredEvent(normalized, from, to, amount, newFrom))
	return nil
}

// BalanceOf returns the balance for the account, zero when unset.
func (e *Engine) BalanceOf(symbol string, addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := e.resolveSymbol(symbol)
	if err != nil {
		return nil, err
	}
	balance, err := e.state.LedgerBalance(normalized, addr)
	if err != nil {
		return nil, err
	}
	return nativecommon.CloneBigInt(balance), nil
}

// TotalSupply returns the circulating supply for the token kind.
func (e *Engine) TotalSupply(symbol string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := e.resolveSymbol(symbol)
	if err != nil {
		return nil, err
	}
	supply, err := e.state.LedgerSupply(normalized)
	if err != nil {
		return nil, err
	}
	return nativecommon.CloneBigInt(supply), nil
}
