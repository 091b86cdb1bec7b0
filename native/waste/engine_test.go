package waste

import (
	"math/big"
	"testing"

	nativecommon "circnexus/native/common"
)

type mockWasteState struct {
	params      *Params
	submissions map[uint64]*Submission
	count       uint64
	userStats   map[[20]byte]*UserStats
	typeStats   map[WasteType]*TypeStats
}

func newMockWasteState() *mockWasteState {
	return &mockWasteState{
		submissions: make(map[uint64]*Submission),
		userStats:   make(map[[20]byte]*UserStats),
		typeStats:   make(map[WasteType]*TypeStats),
	}
}

func (m *mockWasteState) WasteParams() (*Params, error)      { return m.params, nil }
func (m *mockWasteState) SetWasteParams(p *Params) error     { m.params = p; return nil }
func (m *mockWasteState) WasteSubmissionCount() (uint64, error) { return m.count, nil }
func (m *mockWasteState) SetWasteSubmissionCount(c uint64) error {
	m.count = c
	return nil
}

func (m *mockWasteState) WasteSubmission(id uint64) (*Submission, bool, error) {
	s, ok := m.submissions[id]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

func (m *mockWasteState) PutWasteSubmission(s *Submission) error {
	m.submissions[s.ID] = s.Clone()
	return nil
}

func (m *mockWasteState) WasteUserStats(addr [20]byte) (*UserStats, error) {
	return m.userStats[addr].Clone(), nil
}

func (m *mockWasteState) SetWasteUserStats(addr [20]byte, stats *UserStats) error {
	m.userStats[addr] = stats.Clone()
	return nil
}

func (m *mockWasteState) WasteTypeStats(t WasteType) (*TypeStats, error) {
	return m.typeStats[t].Clone(), nil
}

func (m *mockWasteState) SetWasteTypeStats(t WasteType, stats *TypeStats) error {
	m.typeStats[t] = stats.Clone()
	return nil
}

type fakeLedger struct {
	balances map[[20]byte]*big.Int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[[20]byte]*big.Int)}
}

func (l *fakeLedger) balance(addr [20]byte) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (l *fakeLedger) Mint(_ string, addr [20]byte, amount *big.Int) error {
	l.balances[addr] = new(big.Int).Add(l.balance(addr), amount)
	return nil
}

func (l *fakeLedger) Burn(_ string, addr [20]byte, amount *big.Int) error {
	l.balances[addr] = new(big.Int).Sub(l.balance(addr), amount)
	return nil
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newTestEngine() (*Engine, *mockWasteState, *fakeLedger, *nativecommon.RoleRegistry) {
	engine := NewEngine("WST")
	state := newMockWasteState()
	ledger := newFakeLedger()
	roles := nativecommon.NewRoleRegistry(addr(0xAA))
	engine.SetState(state)
	engine.SetLedger(ledger)
	engine.SetRoles(roles)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, state, ledger, roles
}

func scaled(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), nativecommon.Scale)
}

func TestSubmitPETExcellentScenario(t *testing.T) {
	engine, _, ledger, _ := newTestEngine()
	submitter := addr(0x01)

	submission, err := engine.Submit(submitter, WastePET, QualityExcellent, 1000, "ipfs://evidence", "zone-4")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// 1000 g x 1000/g x 1.2 x 1.0
	want := scaled(1_200_000)
	if submission.TokensMinted.Cmp(want) != 0 {
		t.Fatalf("expected %s minted, got %s", want, submission.TokensMinted)
	}
	if ledger.balance(submitter).Cmp(want) != 0 {
		t.Fatalf("ledger balance mismatch: %s", ledger.balance(submitter))
	}
	if submission.ID != 1 {
		t.Fatalf("expected first submission id 1, got %d", submission.ID)
	}
}

func TestSubmitUnusableMintsNothing(t *testing.T) {
	engine, state, ledger, _ := newTestEngine()
	submitter := addr(0x01)

	for _, wt := range WasteTypes() {
		submission, err := engine.Submit(submitter, wt, QualityUnusable, 5000, "ipfs://evidence", "")
		if err != nil {
			t.Fatalf("submit %s: %v", wt, err)
		}
		if submission.TokensMinted.Sign() != 0 {
			t.Fatalf("%s UNUSABLE should mint zero, got %s", wt, submission.TokensMinted)
		}
	}
	if ledger.balance(submitter).Sign() != 0 {
		t.Fatalf("balance should stay zero, got %s", ledger.balance(submitter))
	}
	if state.count != uint64(len(WasteTypes())) {
		t.Fatalf("submissions should still be recorded, count %d", state.count)
	}
}

func TestSubmitInvalidInput(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	if _, err := engine.Submit(addr(0x01), WastePET, QualityGood, 0, "ipfs://evidence", ""); err != ErrInvalidInput {
		t.Fatalf("zero weight should fail with ErrInvalidInput, got %v", err)
	}
	if _, err := engine.Submit(addr(0x01), WastePET, QualityGood, 100, "   ", ""); err != ErrInvalidInput {
		t.Fatalf("empty evidence should fail with ErrInvalidInput, got %v", err)
	}
}

func TestVerifyRejectionReversesMint(t *testing.T) {
	engine, _, ledger, roles := newTestEngine()
	submitter := addr(0x01)
	verifier := addr(0x02)
	roles.Grant(verifier, nativecommon.RoleVerifier)

	submission, err := engine.Submit(submitter, WasteAluminum, QualityGood, 250, "ipfs://evidence", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := engine.Verify(verifier, submission.ID, false); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ledger.balance(submitter).Sign() != 0 {
		t.Fatalf("rejection should restore pre-submission balance, got %s", ledger.balance(submitter))
	}
	stats, err := engine.UserStats(submitter)
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if stats.Submissions != 0 || stats.TotalWeightGrams != 0 || stats.TotalMinted.Sign() != 0 {
		t.Fatalf("aggregates should be reversed, got %+v", stats)
	}
}

func TestVerifyApprovalMintsNothingFurther(t *testing.T) {
	engine, _, ledger, roles := newTestEngine()
	submitter := addr(0x01)
	verifier := addr(0x02)
	roles.Grant(verifier, nativecommon.RoleVerifier)

	submission, err := engine.Submit(submitter, WastePET, QualityExcellent, 100, "ipfs://evidence", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	before := new(big.Int).Set(ledger.balance(submitter))
	if err := engine.Verify(verifier, submission.ID, true); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ledger.balance(submitter).Cmp(before) != 0 {
		t.Fatalf("approval must not mint again: before %s after %s", before, ledger.balance(submitter))
	}
}

func TestDoubleVerificationRejected(t *testing.T) {
	engine, _, _, roles := newTestEngine()
	verifier := addr(0x02)
	roles.Grant(verifier, nativecommon.RoleVerifier)

	submission, err := engine.Submit(addr(0x01), WastePET, QualityGood, 100, "ipfs://evidence", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := engine.Verify(verifier, submission.ID, true); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if err := engine.Verify(verifier, submission.ID, false); err != ErrAlreadyVerified {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	stored, err := engine.Submission(submission.ID)
	if err != nil {
		t.Fatalf("submission: %v", err)
	}
	if stored.Verdict != VerdictApproved {
		t.Fatalf("first verdict must stand, got %s", stored.Verdict)
	}
}

func TestVerifyRequiresVerifierRole(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	submission, err := engine.Submit(addr(0x01), WastePET, QualityGood, 100, "ipfs://evidence", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := engine.Verify(addr(0x03), submission.ID, true); err != nativecommon.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMultiplierBounds(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	owner := addr(0xAA)
	if err := engine.SetTypeMultiplier(owner, WastePET, MaxTypeMultiplierBps+1); err != ErrValueOutOfRange {
		t.Fatalf("expected ErrValueOutOfRange, got %v", err)
	}
	if err := engine.SetQualityMultiplier(owner, QualityGood, MaxQualityMultiplierBps+1); err != ErrValueOutOfRange {
		t.Fatalf("expected ErrValueOutOfRange, got %v", err)
	}
	if err := engine.SetTypeMultiplier(addr(0x05), WastePET, 10_000); err != nativecommon.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for non-owner, got %v", err)
	}
	if err := engine.SetTypeMultiplier(owner, WastePET, 15_000); err != nil {
		t.Fatalf("in-range update should succeed: %v", err)
	}
	params, err := engine.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.TypeMultiplierBps[WastePET] != 15_000 {
		t.Fatalf("multiplier not persisted, got %d", params.TypeMultiplierBps[WastePET])
	}
}

func TestPausedModuleRejectsSubmit(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	pauses := nativecommon.NewPauseRegistry()
	pauses.Pause(moduleName)
	engine.SetPauses(pauses)
	if _, err := engine.Submit(addr(0x01), WastePET, QualityGood, 100, "ipfs://evidence", ""); err != nativecommon.ErrModulePaused {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
