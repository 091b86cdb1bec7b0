package carbon

import (
	"math/big"
	"strings"
	"time"

	"circnexus/core/events"
	nativecommon "circnexus/native/common"
	"circnexus/native/waste"
)

const moduleName = "carbon"

// Ledger is the balance surface the conversion engine needs: waste tokens move
// through the engine custody account and carbon credits mint on finalization.
type Ledger interface {
	Mint(symbol string, addr [20]byte, amount *big.Int) error
	Burn(symbol string, addr [20]byte, amount *big.Int) error
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
}

// Snapshotter provides the all-or-nothing boundary used by batch conversion.
type Snapshotter interface {
	Snapshot() int
	RevertTo(snapshot int)
}

type engineState interface {
	CarbonParams() (*Params, error)
	SetCarbonParams(*Params) error
	Conversion(id uint64) (*Conversion, bool, error)
	PutConversion(*Conversion) error
	ConversionCount() (uint64, error)
	SetConversionCount(count uint64) error
	PutRetirement(*Retirement) error
	RetirementCount() (uint64, error)
	SetRetirementCount(count uint64) error
	CarbonUserStats(addr [20]byte) (*UserStats, error)
	SetCarbonUserStats(addr [20]byte, stats *UserStats) error
}

// ConvertRequest is one entry of a batch conversion.
type ConvertRequest struct {
	WasteAmount    *big.Int
	WasteType      waste.WasteType
	MethodologyTag string
}

// Engine converts waste-token balance into carbon credits using per-material
// emission factors, with a verification gate above a configurable threshold.
type Engine struct {
	state        engineState
	ledger       Ledger
	roles        nativecommon.RoleView
	pauses       nativecommon.PauseView
	emitter      events.Emitter
	snapshots    Snapshotter
	nowFn        func() int64
	wasteSymbol  string
	creditSymbol string
	custody      [20]byte
	feeCollector [20]byte
}

// NewEngine constructs a conversion engine. The custody address holds debited
// waste balance while a conversion is pending; the fee collector receives the
// conversion fee split.
func NewEngine(wasteSymbol, creditSymbol string, custody, feeCollector [20]byte) *Engine {
	return &Engine{
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
		wasteSymbol:  wasteSymbol,
		creditSymbol: creditSymbol,
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

// SetPauses wires the administrative pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetSnapshotter wires the state snapshot boundary used by BatchConvert.
func (e *Engine) SetSnapshotter(s Snapshotter) { e.snapshots = s }

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
	params, err := e.state.CarbonParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return DefaultParams(), nil
	}
	return params, nil
}

// GrossCredits applies the emission arithmetic without touching state:
// gram-denominated waste tokens scaled to kilograms, the per-material factor,
// then the bounded seasonal scalar.
func GrossCredits(params *Params, t waste.WasteType, wasteAmount *big.Int) (*big.Int, error) {
	if params == nil || wasteAmount == nil || !t.Valid() {
		return nil, ErrInvalidInput
	}
	perKg := new(big.Int).Mul(nativecommon.BpsDenominator, big.NewInt(tokensPerKilogram))
	base, err := nativecommon.MulDiv(wasteAmount, new(big.Int).SetUint64(uint64(params.carbonFactor(t))), perKg)
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(base, new(big.Int).SetUint64(uint64(params.SeasonalAdjustmentBps)), nativecommon.BpsDenominator)
}

// Convert debits the user's waste balance immediately and either mints carbon
// credits (below the verification threshold) or parks the record pending a
// verifier verdict.
func (e *Engine) Convert(user [20]byte, wasteAmount *big.Int, t waste.WasteType, methodologyTag string) (*Conversion, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if wasteAmount == nil || wasteAmount.Sign() <= 0 || !t.Valid() {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(methodologyTag) == "" {
		return nil, ErrInvalidInput
	}
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	if params.MinimumConversionAmount != nil && wasteAmount.Cmp(params.MinimumConversionAmount) < 0 {
		return nil, ErrBelowMinimum
	}
	gross, err := GrossCredits(params, t, wasteAmount)
	if err != nil {
		return nil, err
	}
	fee := nativecommon.ApplyBps(gross, params.ConversionFeeBps)
	net := new(big.Int).Sub(gross, fee)

	if err := e.ledger.Transfer(e.wasteSymbol, user, e.custody, wasteAmount); err != nil {
		return nil, err
	}

	count, err := e.state.ConversionCount()
	if err != nil {
		return nil, err
	}
	record := &Conversion{
		ID:             count + 1,
		User:           user,
		WasteAmount:    nativecommon.CloneBigInt(wasteAmount),
		WasteType:      t,
		GrossCredits:   gross,
		Fee:            fee,
		NetCredits:     net,
		MethodologyTag: strings.TrimSpace(methodologyTag),
		Timestamp:      e.nowFn(),
		Status:         ConversionPending,
	}
	autoVerify := params.VerificationThreshold == nil || gross.Cmp(params.VerificationThreshold) < 0
	if autoVerify {
		record.Status = ConversionAutoVerified
	}
	if err := e.state.PutConversion(record); err != nil {
		return nil, err
	}
	if err := e.state.SetConversionCount(record.ID); err != nil {
		return nil, err
	}
	if err := e.adjustStats(record.User, func(stats *UserStats) {
		stats.TotalConverted.Add(stats.TotalConverted, record.WasteAmount)
		stats.Conversions++
		if autoVerify {
			stats.TotalCredits.Add(stats.TotalCredits, record.NetCredits)
		}
	}); err != nil {
		return nil, err
	}
	if autoVerify {
		if err := e.settleCredits(record); err != nil {
			return nil, err
		}
	}
	e.emit(newConvertedEvent(record))
	return record.Clone(), nil
}

// settleCredits burns the custodied waste and mints the credit split. Internal
// bookkeeping always completes before the mint calls.
func (e *Engine) settleCredits(record *Conversion) error {
	if err := e.ledger.Burn(e.wasteSymbol, e.custody, record.WasteAmount); err != nil {
		return err
	}
	if record.NetCredits.Sign() > 0 {
		if err := e.ledger.Mint(e.creditSymbol, record.User, record.NetCredits); err != nil {
			return err
		}
	}
	if record.Fee.Sign() > 0 {
		if err := e.ledger.Mint(e.creditSymbol, e.feeCollector, record.Fee); err != nil {
			return err
		}
	}
	return nil
}

// VerifyConversion records the verifier verdict for a pending conversion.
func (e *Engine) VerifyConversion(verifier [20]byte, id uint64, approved bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if err := nativecommon.Authorize(e.roles, verifier, nativecommon.RoleVerifier); err != nil {
		return err
	}
	record, ok, err := e.state.Conversion(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConversionNotFound
	}
	switch record.Status {
	case ConversionAutoVerified:
		if approved {
			return ErrBelowVerificationThreshold
		}
		return ErrAlreadyVerified
	case ConversionApproved, ConversionRejected:
		return ErrAlreadyVerified
	}
	if approved {
		record.Status = ConversionApproved
		if err := e.state.PutConversion(record); err != nil {
			return err
		}
		if err := e.adjustStats(record.User, func(stats *UserStats) {
			stats.TotalCredits.Add(stats.TotalCredits, record.NetCredits)
		}); err != nil {
			return err
		}
		if err := e.settleCredits(record); err != nil {
			return err
		}
		e.emit(newConversionVerifiedEvent(record, true))
		return nil
	}
	record.Status = ConversionRejected
	if err := e.state.PutConversion(record); err != nil {
		return err
	}
	if err := e.adjustStats(record.User, func(stats *UserStats) {
		stats.TotalConverted.Sub(stats.TotalConverted, record.WasteAmount)
		stats.Conversions--
	}); err != nil {
		return err
	}
	if err := e.ledger.Transfer(e.wasteSymbol, e.custody, record.User, record.WasteAmount); err != nil {
		return err
	}
	e.emit(newConversionVerifiedEvent(record, false))
	return nil
}

// BatchConvert applies Convert over a bounded list of entries, all-or-nothing.
func (e *Engine) BatchConvert(user [20]byte, entries []ConvertRequest) ([]*Conversion, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if len(entries) == 0 {
		return nil, ErrInvalidInput
	}
	if len(entries) > BatchLimit {
		return nil, ErrBatchTooLarge
	}
	if e.snapshots == nil {
		return nil, errNoSnapshots
	}
	snapshot := e.snapshots.Snapshot()
	records := make([]*Conversion, 0, len(entries))
	for _, entry := range entries {
		record, err := e.Convert(user, entry.WasteAmount, entry.WasteType, entry.MethodologyTag)
		if err != nil {
			e.snapshots.RevertTo(snapshot)
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Retire permanently burns carbon credits to claim an offset.
func (e *Engine) Retire(user [20]byte, amount *big.Int, reason string) (*Retirement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 || strings.TrimSpace(reason) == "" {
		return nil, ErrInvalidInput
	}
	if err := e.ledger.Burn(e.creditSymbol, user, amount); err != nil {
		return nil, err
	}
	count, err := e.state.RetirementCount()
	if err != nil {
		return nil, err
	}
	retirement := &Retirement{
		ID:        count + 1,
		User:      user,
		Amount:    nativecommon.CloneBigInt(amount),
		Reason:    strings.TrimSpace(reason),
		Timestamp: e.nowFn(),
	}
	if err := e.state.PutRetirement(retirement); err != nil {
		return nil, err
	}
	if err := e.state.SetRetirementCount(retirement.ID); err != nil {
		return nil, err
	}
	if err := e.adjustStats(user, func(stats *UserStats) {
		stats.TotalRetired.Add(stats.TotalRetired, retirement.Amount)
	}); err != nil {
		return nil, err
	}
	e.emit(newRetiredEvent(retirement))
	return retirement.Clone(), nil
}

func (e *Engine) adjustStats(addr [20]byte, apply func(*UserStats)) error {
	stats, err := e.state.CarbonUserStats(addr)
	if err != nil {
		return err
	}
	stats = stats.Clone()
	apply(stats)
	return e.state.SetCarbonUserStats(addr, stats)
}

// SetConversionFee updates the conversion fee, capped at 10%.
func (e *Engine) SetConversionFee(caller [20]byte, bps uint32) error {
	return e.updateParams(caller, func(params *Params) error {
		if bps > MaxConversionFeeBps {
			return ErrValueOutOfRange
		}
		params.ConversionFeeBps = bps
		return nil
	})
}

// SetSeasonalAdjustment updates the seasonal scalar, bounded 50%-200%.
func (e *Engine) SetSeasonalAdjustment(caller [20]byte, bps uint32) error {
	return e.updateParams(caller, func(params *Params) error {
		if bps < MinSeasonalAdjustmentBps || bps > MaxSeasonalAdjustmentBps {
			return ErrValueOutOfRange
		}
		params.SeasonalAdjustmentBps = bps
		return nil
	})
}

// SetCarbonFactor updates a per-material emission factor, capped at 10x.
func (e *Engine) SetCarbonFactor(caller [20]byte, t waste.WasteType, bps uint32) error {
	return e.updateParams(caller, func(params *Params) error {
		if !t.Valid() {
			return ErrInvalidInput
		}
		if bps > MaxCarbonFactorBps {
			return ErrValueOutOfRange
		}
		params.CarbonFactorBps[t] = bps
		return nil
	})
}

// SetMinimumConversionAmount updates the smallest accepted conversion.
func (e *Engine) SetMinimumConversionAmount(caller [20]byte, amount *big.Int) error {
	return e.updateParams(caller, func(params *Params) error {
		if amount == nil || amount.Sign() < 0 {
			return ErrValueOutOfRange
		}
		params.MinimumConversionAmount = nativecommon.CloneBigInt(amount)
		return nil
	})
}

// SetVerificationThreshold updates the auto-verification gate.
func (e *Engine) SetVerificationThreshold(caller [20]byte, amount *big.Int) error {
	return e.updateParams(caller, func(params *Params) error {
		if amount == nil || amount.Sign() < 0 {
			return ErrValueOutOfRange
		}
		params.VerificationThreshold = nativecommon.CloneBigInt(amount)
		return nil
	})
}

func (e *Engine) updateParams(caller [20]byte, apply func(*Params) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Authorize(e.roles, caller, nativecommon.RoleOwner); err != nil {
		return err
	}
	params, err := e.loadParams()
	if err != nil {
		return err
	}
	params = params.Clone()
	if err := apply(params); err != nil {
		return err
	}
	return e.state.SetCarbonParams(params)
}

// Conversion returns the stored record for the given id.
func (e *Engine) Conversion(id uint64) (*Conversion, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok, err := e.state.Conversion(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversionNotFound
	}
	return record.Clone(), nil
}

// UserStats returns the user's conversion aggregates.
func (e *Engine) UserStats(addr [20]byte) (*UserStats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stats, err := e.state.CarbonUserStats(addr)
	if err != nil {
		return nil, err
	}
	return stats.Clone(), nil
}

// Params returns the active conversion parameters.
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
