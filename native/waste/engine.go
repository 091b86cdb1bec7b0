package waste

import (
	"math/big"
	"strings"
	"time"

	"circnexus/core/events"
	nativecommon "circnexus/native/common"
)

const moduleName = "waste"

// Ledger is the balance surface the tokenization engine needs. Mint happens
// optimistically at submission time; Burn reverses a rejected submission.
type Ledger interface {
	Mint(symbol string, addr [20]byte, amount *big.Int) error
	Burn(symbol string, addr [20]byte, amount *big.Int) error
}

type engineState interface {
	WasteParams() (*Params, error)
	SetWasteParams(*Params) error
	WasteSubmission(id uint64) (*Submission, bool, error)
	PutWasteSubmission(*Submission) error
	WasteSubmissionCount() (uint64, error)
	SetWasteSubmissionCount(count uint64) error
	WasteUserStats(addr [20]byte) (*UserStats, error)
	SetWasteUserStats(addr [20]byte, stats *UserStats) error
	WasteTypeStats(t WasteType) (*TypeStats, error)
	SetWasteTypeStats(t WasteType, stats *TypeStats) error
}

// Engine converts verified waste submissions into minted token balance and
// lets an authorized verifier reverse fraudulent mints after the fact.
type Engine struct {
	state       engineState
	ledger      Ledger
	roles       nativecommon.RoleView
	pauses      nativecommon.PauseView
	emitter     events.Emitter
	nowFn       func() int64
	tokenSymbol string
}

// NewEngine constructs a tokenization engine minting the given ledger symbol.
func NewEngine(tokenSymbol string) *Engine {
	return &Engine{
		emitter:     events.NoopEmitter{},
		nowFn:       func() int64 { return time.Now().Unix() },
		tokenSymbol: tokenSymbol,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the token ledger used for minting and burn-on-reject.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetRoles configures the authorization table consulted by gated operations.
func (e *Engine) SetRoles(roles nativecommon.RoleView) { e.roles = roles }

// SetPauses wires the administrative pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

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

func (e *Engine) now() int64 { return e.nowFn() }

func (e *Engine) loadParams() (*Params, error) {
	params, err := e.state.WasteParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return DefaultParams(), nil
	}
	return params, nil
}

// CalculateTokens applies the tokenization arithmetic without touching state:
// weight x base rate, then the type and quality multipliers as two sequential
// fixed-point mul-div steps.
func CalculateTokens(params *Params, t WasteType, q Quality, weightGrams uint64) (*big.Int, error) {
	if params == nil || !t.Valid() || !q.Valid() {
		return nil, ErrInvalidInput
	}
	base := new(big.Int).Mul(new(big.Int).SetUint64(weightGrams), nativecommon.CloneBigInt(params.BaseRatePerGram))
	scaled, err := nativecommon.MulDiv(base, new(big.Int).SetUint64(uint64(params.typeMultiplier(t))), nativecommon.BpsDenominator)
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(scaled, new(big.Int).SetUint64(uint64(params.qualityMultiplier(q))), nativecommon.BpsDenominator)
}

// Submit records a waste submission and mints tokens for the submitter.
// UNUSABLE quality records the submission with nothing minted.
func (e *Engine) Submit(submitter [20]byte, t WasteType, q Quality, weightGrams uint64, evidenceRef, locationTag string) (*Submission, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if weightGrams == 0 || strings.TrimSpace(evidenceRef) == "" {
		return nil, ErrInvalidInput
	}
	if !t.Valid() || !q.Valid() {
		return nil, ErrInvalidInput
	}
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	tokens, err := CalculateTokens(params, t, q, weightGrams)
	if err != nil {
		return nil, err
	}
	count, err := e.state.WasteSubmissionCount()
	if err != nil {
		return nil, err
	}
	submission := &Submission{
		ID:           count + 1,
		Submitter:    submitter,
		Type:         t,
		Quality:      q,
		WeightGrams:  weightGrams,
		TokensMinted: tokens,
		EvidenceRef:  strings.TrimSpace(evidenceRef),
		LocationTag:  strings.TrimSpace(locationTag),
		Timestamp:    e.now(),
		Verdict:      VerdictUnset,
	}
	if q != QualityUnusable && tokens.Sign() > 0 {
		if err := e.ledger.Mint(e.tokenSymbol, submitter, tokens); err != nil {
			return nil, err
		}
	}
	if err := e.state.PutWasteSubmission(submission); err != nil {
		return nil, err
	}
	if err := e.state.SetWasteSubmissionCount(submission.ID); err != nil {
		return nil, err
	}
	if err := e.applyAggregates(submission, false); err != nil {
		return nil, err
	}
	e.emit(newSubmittedEvent(submission))
	return submission.Clone(), nil
}

// Verify records the verifier's verdict exactly once. A rejection burns the
// optimistically minted tokens and reverses the running aggregates.
func (e *Engine) Verify(verifier [20]byte, id uint64, approved bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if err := nativecommon.Authorize(e.roles, verifier, nativecommon.RoleVerifier); err != nil {
		return err
	}
	submission, ok, err := e.state.WasteSubmission(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSubmissionNotFound
	}
	if submission.Verdict != VerdictUnset {
		return ErrAlreadyVerified
	}
	if approved {
		submission.Verdict = VerdictApproved
		if err := e.state.PutWasteSubmission(submission); err != nil {
			return err
		}
		e.emit(newVerifiedEvent(submission, true))
		return nil
	}
	if submission.TokensMinted != nil && submission.TokensMinted.Sign() > 0 {
		if err := e.ledger.Burn(e.tokenSymbol, submission.Submitter, submission.TokensMinted); err != nil {
			return err
		}
	}
	submission.Verdict = VerdictRejected
	if err := e.state.PutWasteSubmission(submission); err != nil {
		return err
	}
	if err := e.applyAggregates(submission, true); err != nil {
		return err
	}
	e.emit(newVerifiedEvent(submission, false))
	return nil
}

func (e *Engine) applyAggregates(submission *Submission, reverse bool) error {
	userStats, err := e.state.WasteUserStats(submission.Submitter)
	if err != nil {
		return err
	}
	typeStats, err := e.state.WasteTypeStats(submission.Type)
	if err != nil {
		return err
	}
	userStats = userStats.Clone()
	typeStats = typeStats.Clone()
	minted := nativecommon.CloneBigInt(submission.TokensMinted)
	if reverse {
		userStats.TotalWeightGrams -= submission.WeightGrams
		userStats.TotalMinted.Sub(userStats.TotalMinted, minted)
		userStats.Submissions--
		typeStats.TotalWeightGrams -= submission.WeightGrams
		typeStats.TotalMinted.Sub(typeStats.TotalMinted, minted)
		typeStats.Submissions--
	} else {
		userStats.TotalWeightGrams += submission.WeightGrams
		userStats.TotalMinted.Add(userStats.TotalMinted, minted)
		userStats.Submissions++
		typeStats.TotalWeightGrams += submission.WeightGrams
		typeStats.TotalMinted.Add(typeStats.TotalMinted, minted)
		typeStats.Submissions++
	}
	if err := e.state.SetWasteUserStats(submission.Submitter, userStats); err != nil {
		return err
	}
	return e.state.SetWasteTypeStats(submission.Type, typeStats)
}

// SetTypeMultiplier updates a waste-type multiplier, capped at 5.0x.
func (e *Engine) SetTypeMultiplier(caller [20]byte, t WasteType, bps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Authorize(e.roles, caller, nativecommon.RoleOwner); err != nil {
		return err
	}
	if !t.Valid() {
		return ErrInvalidInput
	}
	if bps > MaxTypeMultiplierBps {
		return ErrValueOutOfRange
	}
	params, err := e.loadParams()
	if err != nil {
		return err
	}
	params = params.Clone()
	params.TypeMultiplierBps[t] = bps
	if err := e.state.SetWasteParams(params); err != nil {
		return err
	}
	e.emit(newMultiplierUpdatedEvent("type", t.String(), bps))
	return nil
}

// SetQualityMultiplier updates a quality multiplier, capped at 1.0x.
func (e *Engine) SetQualityMultiplier(caller [20]byte, q Quality, bps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Authorize(e.roles, caller, nativecommon.RoleOwner); err != nil {
		return err
	}
	if !q.Valid() {
		return ErrInvalidInput
	}
	if bps > MaxQualityMultiplierBps {
		return ErrValueOutOfRange
	}
	params, err := e.loadParams()
	if err != nil {
		return err
	}
	params = params.Clone()
	params.QualityMultiplierBps[q] = bps
	if err := e.state.SetWasteParams(params); err != nil {
		return err
	}
	e.emit(newMultiplierUpdatedEvent("quality", q.String(), bps))
	return nil
}

// SetBaseRate updates the per-gram base mint rate.
func (e *Engine) SetBaseRate(caller [20]byte, rate *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Authorize(e.roles, caller, nativecommon.RoleOwner); err != nil {
		return err
	}
	if rate == nil || rate.Sign() <= 0 {
		return ErrValueOutOfRange
	}
	params, err := e.loadParams()
	if err != nil {
		return err
	}
	params = params.Clone()
	params.BaseRatePerGram = nativecommon.CloneBigInt(rate)
	return e.state.SetWasteParams(params)
}

// Submission returns the stored record for the given id.
func (e *Engine) Submission(id uint64) (*Submission, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	submission, ok, err := e.state.WasteSubmission(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	return submission.Clone(), nil
}

// UserStats returns the submitter's running aggregates.
func (e *Engine) UserStats(addr [20]byte) (*UserStats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stats, err := e.state.WasteUserStats(addr)
	if err != nil {
		return nil, err
	}
	return stats.Clone(), nil
}

// TypeStats returns the platform aggregates for a material category.
func (e *Engine) TypeStats(t WasteType) (*TypeStats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !t.Valid() {
		return nil, ErrInvalidInput
	}
	stats, err := e.state.WasteTypeStats(t)
	if err != nil {
		return nil, err
	}
	return stats.Clone(), nil
}

// Params returns the active tokenization parameters.
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
