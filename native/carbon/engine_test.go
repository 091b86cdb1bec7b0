package carbon

import (
	"errors"
	"math/big"
	"testing"

	nativecommon "circnexus/native/common"
	"circnexus/native/waste"
)

var errInsufficient = errors.New("insufficient balance")

// harness backs the engine with an in-memory state and ledger that both
// support deep-copy snapshots, mirroring how the state manager provides the
// batch boundary in the daemon.
type harness struct {
	params      *Params
	conversions map[uint64]*Conversion
	convCount   uint64
	retirements map[uint64]*Retirement
	retCount    uint64
	stats       map[[20]byte]*UserStats
	balances    map[string]map[[20]byte]*big.Int
	snaps       []*harness
}

func newHarness() *harness {
	return &harness{
		conversions: make(map[uint64]*Conversion),
		retirements: make(map[uint64]*Retirement),
		stats:       make(map[[20]byte]*UserStats),
		balances:    make(map[string]map[[20]byte]*big.Int),
	}
}

func (h *harness) copyState() *harness {
	clone := newHarness()
	clone.params = h.params.Clone()
	clone.convCount = h.convCount
	clone.retCount = h.retCount
	for id, c := range h.conversions {
		clone.conversions[id] = c.Clone()
	}
	for id, r := range h.retirements {
		clone.retirements[id] = r.Clone()
	}
	for addr, s := range h.stats {
		clone.stats[addr] = s.Clone()
	}
	for symbol, accounts := range h.balances {
		cloned := make(map[[20]byte]*big.Int, len(accounts))
		for addr, balance := range accounts {
			cloned[addr] = new(big.Int).Set(balance)
		}
		clone.balances[symbol] = cloned
	}
	return clone
}

func (h *harness) Snapshot() int {
	h.snaps = append(h.snaps, h.copyState())
	return len(h.snaps) - 1
}

func (h *harness) RevertTo(snapshot int) {
	restored := h.snaps[snapshot]
	h.params = restored.params
	h.conversions = restored.conversions
	h.convCount = restored.convCount
	h.retirements = restored.retirements
	h.retCount = restored.retCount
	h.stats = restored.stats
	h.balances = restored.balances
	h.snaps = h.snaps[:snapshot]
}

func (h *harness) CarbonParams() (*Params, error)  { return h.params, nil }
func (h *harness) SetCarbonParams(p *Params) error { h.params = p; return nil }

func (h *harness) Conversion(id uint64) (*Conversion, bool, error) {
	c, ok := h.conversions[id]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (h *harness) PutConversion(c *Conversion) error {
	h.conversions[c.ID] = c.Clone()
	return nil
}

func (h *harness) ConversionCount() (uint64, error)    { return h.convCount, nil }
func (h *harness) SetConversionCount(c uint64) error   { h.convCount = c; return nil }
func (h *harness) RetirementCount() (uint64, error)    { return h.retCount, nil }
func (h *harness) SetRetirementCount(c uint64) error   { h.retCount = c; return nil }

func (h *harness) PutRetirement(r *Retirement) error {
	h.retirements[r.ID] = r.Clone()
	return nil
}

func (h *harness) CarbonUserStats(addr [20]byte) (*UserStats, error) {
	return h.stats[addr].Clone(), nil
}

func (h *harness) SetCarbonUserStats(addr [20]byte, stats *UserStats) error {
	h.stats[addr] = stats.Clone()
	return nil
}

func (h *harness) balance(symbol string, addr [20]byte) *big.Int {
	if accounts, ok := h.balances[symbol]; ok {
		if balance, ok := accounts[addr]; ok {
			return balance
		}
	}
	return big.NewInt(0)
}

func (h *harness) setBalance(symbol string, addr [20]byte, amount *big.Int) {
	accounts, ok := h.balances[symbol]
	if !ok {
		accounts = make(map[[20]byte]*big.Int)
		h.balances[symbol] = accounts
	}
	accounts[addr] = new(big.Int).Set(amount)
}

func (h *harness) Mint(symbol string, addr [20]byte, amount *big.Int) error {
	h.setBalance(symbol, addr, new(big.Int).Add(h.balance(symbol, addr), amount))
	return nil
}

func (h *harness) Burn(symbol string, addr [20]byte, amount *big.Int) error {
	balance := h.balance(symbol, addr)
	if balance.Cmp(amount) < 0 {
		return errInsufficient
	}
	h.setBalance(symbol, addr, new(big.Int).Sub(balance, amount))
	return nil
}

func (h *harness) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	if err := h.Burn(symbol, from, amount); err != nil {
		return err
	}
	return h.Mint(symbol, to, amount)
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

var (
	custody   = addr(0xC0)
	collector = addr(0xFE)
	owner     = addr(0xAA)
)

func newTestEngine() (*Engine, *harness, *nativecommon.RoleRegistry) {
	engine := NewEngine("WST", "CCT", custody, collector)
	h := newHarness()
	roles := nativecommon.NewRoleRegistry(owner)
	engine.SetState(h)
	engine.SetLedger(h)
	engine.SetRoles(roles)
	engine.SetSnapshotter(h)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, h, roles
}

func scaled(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), nativecommon.Scale)
}

// milli returns n/1000 at the 18-decimal scale.
func milli(n int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(n), nativecommon.Scale)
	return out.Quo(out, big.NewInt(1000))
}

func TestConvertPETKilogramScenario(t *testing.T) {
	engine, h, _ := newTestEngine()
	user := addr(0x01)
	h.setBalance("WST", user, scaled(1000))

	record, err := engine.Convert(user, scaled(1000), waste.WastePET, "VCS-2023")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if record.GrossCredits.Cmp(milli(1500)) != 0 {
		t.Fatalf("expected gross 1.5 credits, got %s", record.GrossCredits)
	}
	if record.Fee.Cmp(milli(15)) != 0 {
		t.Fatalf("expected fee 0.015, got %s", record.Fee)
	}
	if record.NetCredits.Cmp(milli(1485)) != 0 {
		t.Fatalf("expected net 1.485, got %s", record.NetCredits)
	}
	if record.Status != ConversionAutoVerified {
		t.Fatalf("small conversion should auto-verify, got %s", record.Status)
	}
	if h.balance("CCT", user).Cmp(milli(1485)) != 0 {
		t.Fatalf("user credit balance mismatch: %s", h.balance("CCT", user))
	}
	if h.balance("CCT", collector).Cmp(milli(15)) != 0 {
		t.Fatalf("collector fee balance mismatch: %s", h.balance("CCT", collector))
	}
	if h.balance("WST", user).Sign() != 0 {
		t.Fatalf("waste balance should be debited, got %s", h.balance("WST", user))
	}
}

func TestConvertBelowMinimum(t *testing.T) {
	engine, h, _ := newTestEngine()
	user := addr(0x01)
	h.setBalance("WST", user, scaled(1000))
	if _, err := engine.Convert(user, scaled(10), waste.WastePET, "VCS-2023"); err != ErrBelowMinimum {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
	if h.balance("WST", user).Cmp(scaled(1000)) != 0 {
		t.Fatalf("failed conversion must not debit, got %s", h.balance("WST", user))
	}
}

func TestConvertEmptyMethodology(t *testing.T) {
	engine, h, _ := newTestEngine()
	user := addr(0x01)
	h.setBalance("WST", user, scaled(1000))
	if _, err := engine.Convert(user, scaled(1000), waste.WastePET, "  "); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestConvertAboveThresholdHeldPending(t *testing.T) {
	engine, h, roles := newTestEngine()
	user := addr(0x01)
	verifier := addr(0x02)
	roles.Grant(verifier, nativecommon.RoleVerifier)
	h.setBalance("WST", user, scaled(100_000))

	// 100 kg of PET grosses 150 credits, above the 50-credit threshold.
	record, err := engine.Convert(user, scaled(100_000), waste.WastePET, "VCS-2023")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if record.Status != ConversionPending {
		t.Fatalf("expected pending, got %s", record.Status)
	}
	if h.balance("CCT", user).Sign() != 0 {
		t.Fatalf("pending conversion must not mint, got %s", h.balance("CCT", user))
	}
	if h.balance("WST", custody).Cmp(scaled(100_000)) != 0 {
		t.Fatalf("custody should hold the debited waste, got %s", h.balance("WST", custody))
	}

	if err := engine.VerifyConversion(verifier, record.ID, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if h.balance("CCT", user).Cmp(record.NetCredits) != 0 {
		t.Fatalf("approval should mint net credits, got %s", h.balance("CCT", user))
	}
	if h.balance("WST", custody).Sign() != 0 {
		t.Fatalf("custody waste should burn on approval, got %s", h.balance("WST", custody))
	}
}

func TestConversionRejectionRefunds(t *testing.T) {
	engine, h, roles := newTestEngine()
	user := addr(0x01)
	verifier := addr(0x02)
	roles.Grant(verifier, nativecommon.RoleVerifier)
	h.setBalance("WST", user, scaled(100_000))

	record, err := engine.Convert(user, scaled(100_000), waste.WastePET, "VCS-2023")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if err := engine.VerifyConversion(verifier, record.ID, false); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if h.balance("WST", user).Cmp(scaled(100_000)) != 0 {
		t.Fatalf("rejection should refund waste, got %s", h.balance("WST", user))
	}
	stats, err := engine.UserStats(user)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Conversions != 0 || stats.TotalConverted.Sign() != 0 {
		t.Fatalf("aggregates should reverse on rejection, got %+v", stats)
	}
}

func TestDoubleConversionVerification(t *testing.T) {
	engine, h, roles := newTestEngine()
	user := addr(0x01)
	verifier := addr(0x02)
	roles.Grant(verifier, nativecommon.RoleVerifier)
	h.setBalance("WST", user, scaled(100_000))

	record, err := engine.Convert(user, scaled(100_000), waste.WastePET, "VCS-2023")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if err := engine.VerifyConversion(verifier, record.ID, true); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if err := engine.VerifyConversion(verifier, record.ID, true); err != ErrAlreadyVerified {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestApprovingAutoVerifiedRecord(t *testing.T) {
	engine, h, roles := newTestEngine()
	user := addr(0x01)
	verifier := addr(0x02)
	roles.Grant(verifier, nativecommon.RoleVerifier)
	h.setBalance("WST", user, scaled(1000))

	record, err := engine.Convert(user, scaled(1000), waste.WastePET, "VCS-2023")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if err := engine.VerifyConversion(verifier, record.ID, true); err != ErrBelowVerificationThreshold {
		t.Fatalf("expected ErrBelowVerificationThreshold, got %v", err)
	}
}

func TestBatchConvertAllOrNothing(t *testing.T) {
	engine, h, _ := newTestEngine()
	user := addr(0x01)
	h.setBalance("WST", user, scaled(2000))

	entries := []ConvertRequest{
		{WasteAmount: scaled(1000), WasteType: waste.WastePET, MethodologyTag: "VCS-2023"},
		{WasteAmount: scaled(1000), WasteType: waste.WastePET, MethodologyTag: "  "},
	}
	if _, err := engine.BatchConvert(user, entries); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput from second entry, got %v", err)
	}
	if h.balance("WST", user).Cmp(scaled(2000)) != 0 {
		t.Fatalf("aborted batch must not debit, got %s", h.balance("WST", user))
	}
	if h.convCount != 0 {
		t.Fatalf("aborted batch must not record conversions, got %d", h.convCount)
	}

	entries[1].MethodologyTag = "VCS-2023"
	records, err := engine.BatchConvert(user, entries)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestBatchConvertSizeCap(t *testing.T) {
	engine, _, _ := newTestEngine()
	entries := make([]ConvertRequest, BatchLimit+1)
	for i := range entries {
		entries[i] = ConvertRequest{WasteAmount: scaled(1000), WasteType: waste.WastePET, MethodologyTag: "VCS-2023"}
	}
	if _, err := engine.BatchConvert(addr(0x01), entries); err != ErrBatchTooLarge {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestRetire(t *testing.T) {
	engine, h, _ := newTestEngine()
	user := addr(0x01)
	h.setBalance("CCT", user, scaled(10))

	retirement, err := engine.Retire(user, scaled(4), "2025 scope-1 offset")
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if retirement.ID != 1 {
		t.Fatalf("expected retirement id 1, got %d", retirement.ID)
	}
	if h.balance("CCT", user).Cmp(scaled(6)) != 0 {
		t.Fatalf("retire should burn credits, got %s", h.balance("CCT", user))
	}
	if _, err := engine.Retire(user, scaled(1), ""); err != ErrInvalidInput {
		t.Fatalf("empty reason should fail, got %v", err)
	}
	if _, err := engine.Retire(user, scaled(100), "too much"); err != errInsufficient {
		t.Fatalf("expected ledger error, got %v", err)
	}
}

func TestParamBounds(t *testing.T) {
	engine, _, _ := newTestEngine()
	if err := engine.SetConversionFee(owner, MaxConversionFeeBps+1); err != ErrValueOutOfRange {
		t.Fatalf("expected fee cap rejection, got %v", err)
	}
	if err := engine.SetSeasonalAdjustment(owner, MinSeasonalAdjustmentBps-1); err != ErrValueOutOfRange {
		t.Fatalf("expected seasonal lower bound rejection, got %v", err)
	}
	if err := engine.SetSeasonalAdjustment(owner, MaxSeasonalAdjustmentBps+1); err != ErrValueOutOfRange {
		t.Fatalf("expected seasonal upper bound rejection, got %v", err)
	}
	if err := engine.SetCarbonFactor(owner, waste.WastePET, MaxCarbonFactorBps+1); err != ErrValueOutOfRange {
		t.Fatalf("expected factor cap rejection, got %v", err)
	}
	if err := engine.SetConversionFee(addr(0x09), 100); err != nativecommon.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for non-owner, got %v", err)
	}
	if err := engine.SetSeasonalAdjustment(owner, 15_000); err != nil {
		t.Fatalf("in-range seasonal update should succeed: %v", err)
	}
}
