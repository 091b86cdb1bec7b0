package state

import (
	"math/big"
	"testing"

	"circnexus/native/carbon"
	nativecommon "circnexus/native/common"
	"circnexus/native/ledger"
	"circnexus/native/vault"
	"circnexus/native/waste"
	"circnexus/storage"
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func scaled(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), nativecommon.Scale)
}

func TestLedgerRecordRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	user := addr(0x01)

	balance, err := m.LedgerBalance("WST", user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("unset balance should read zero, got %s", balance)
	}
	if err := m.SetLedgerBalance("WST", user, scaled(42)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := m.SetLedgerSupply("WST", scaled(42)); err != nil {
		t.Fatalf("set supply: %v", err)
	}
	balance, err = m.LedgerBalance("WST", user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(scaled(42)) != 0 {
		t.Fatalf("balance round trip mismatch: %s", balance)
	}
	supply, err := m.LedgerSupply("WST")
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Cmp(scaled(42)) != 0 {
		t.Fatalf("supply round trip mismatch: %s", supply)
	}
}

func TestRecordRoundTrips(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	user := addr(0x02)

	submission := &waste.Submission{
		ID:           7,
		Submitter:    user,
		Type:         waste.WastePET,
		Quality:      waste.QualityGood,
		WeightGrams:  500,
		TokensMinted: scaled(10),
		EvidenceRef:  "ipfs://evidence",
		LocationTag:  "berlin",
		Timestamp:    1_700_000_000,
	}
	if err := m.PutWasteSubmission(submission); err != nil {
		t.Fatalf("put submission: %v", err)
	}
	got, ok, err := m.WasteSubmission(7)
	if err != nil || !ok {
		t.Fatalf("submission lookup: ok=%v err=%v", ok, err)
	}
	if got.TokensMinted.Cmp(scaled(10)) != 0 || got.Type != waste.WastePET {
		t.Fatalf("submission round trip mismatch: %+v", got)
	}
	if _, ok, _ := m.WasteSubmission(8); ok {
		t.Fatalf("missing submission should report absence")
	}

	pool := &vault.Pool{
		ID:                   3,
		StakingToken:         "WST",
		RewardToken:          "CCT",
		TotalStaked:          scaled(100),
		RewardRate:           scaled(1),
		LastUpdateTime:       1_700_000_000,
		RewardPerTokenStored: big.NewInt(123),
		Active:               true,
		Name:                 "pool",
		RewardFunds:          scaled(50),
	}
	if err := m.PutPool(pool); err != nil {
		t.Fatalf("put pool: %v", err)
	}
	gotPool, ok, err := m.Pool(3)
	if err != nil || !ok {
		t.Fatalf("pool lookup: ok=%v err=%v", ok, err)
	}
	if gotPool.TotalStaked.Cmp(scaled(100)) != 0 || !gotPool.Active {
		t.Fatalf("pool round trip mismatch: %+v", gotPool)
	}

	record := &carbon.Conversion{
		ID:           1,
		User:         user,
		WasteAmount:  scaled(1000),
		WasteType:    waste.WastePET,
		GrossCredits: scaled(1),
		Fee:          big.NewInt(0),
		NetCredits:   scaled(1),
		Status:       carbon.ConversionApproved,
	}
	if err := m.PutConversion(record); err != nil {
		t.Fatalf("put conversion: %v", err)
	}
	gotRecord, ok, err := m.Conversion(1)
	if err != nil || !ok {
		t.Fatalf("conversion lookup: ok=%v err=%v", ok, err)
	}
	if gotRecord.Status != carbon.ConversionApproved {
		t.Fatalf("conversion round trip mismatch: %+v", gotRecord)
	}

	count, err := m.ConversionCount()
	if err != nil || count != 0 {
		t.Fatalf("unset counter should read zero, got %d err=%v", count, err)
	}
	if err := m.SetConversionCount(9); err != nil {
		t.Fatalf("set counter: %v", err)
	}
	count, err = m.ConversionCount()
	if err != nil || count != 9 {
		t.Fatalf("counter round trip mismatch: %d err=%v", count, err)
	}
}

func TestSnapshotRevert(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	user := addr(0x01)
	if err := m.SetLedgerBalance("WST", user, scaled(100)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snapshot := m.Snapshot()
	if err := m.SetLedgerBalance("WST", user, scaled(1)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := m.SetWasteSubmissionCount(5); err != nil {
		t.Fatalf("new key: %v", err)
	}
	m.RevertTo(snapshot)

	balance, err := m.LedgerBalance("WST", user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(scaled(100)) != 0 {
		t.Fatalf("revert should restore overwritten value, got %s", balance)
	}
	count, err := m.WasteSubmissionCount()
	if err != nil || count != 0 {
		t.Fatalf("revert should delete keys created after the mark, got %d err=%v", count, err)
	}
}

func TestCommitMakesWritesPermanent(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	user := addr(0x01)
	snapshot := m.Snapshot()
	if err := m.SetLedgerBalance("WST", user, scaled(7)); err != nil {
		t.Fatalf("write: %v", err)
	}
	m.Commit()
	m.RevertTo(snapshot)
	balance, err := m.LedgerBalance("WST", user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(scaled(7)) != 0 {
		t.Fatalf("revert must not cross a commit, got %s", balance)
	}
}

// TestFullFlow wires every engine to one manager and walks the platform's
// happy path: submit waste, convert part of the minted balance, stake the
// rest, accrue, claim.
func TestFullFlow(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	now := int64(1_700_000_000)
	clock := func() int64 { return now }

	owner := addr(0xAA)
	user := addr(0x01)
	custody := addr(0xC0)
	collector := addr(0xFE)

	roles := nativecommon.NewRoleRegistry(owner)
	roles.Grant(user, nativecommon.RolePartner)
	pauses := nativecommon.NewPauseRegistry()

	tokens := ledger.NewEngine("WST", "CCT")
	tokens.SetState(m)

	wasteEng := waste.NewEngine("WST")
	wasteEng.SetState(m)
	wasteEng.SetLedger(tokens)
	wasteEng.SetRoles(roles)
	wasteEng.SetPauses(pauses)
	wasteEng.SetNowFunc(clock)

	carbonEng := carbon.NewEngine("WST", "CCT", custody, collector)
	carbonEng.SetState(m)
	carbonEng.SetLedger(tokens)
	carbonEng.SetRoles(roles)
	carbonEng.SetPauses(pauses)
	carbonEng.SetSnapshotter(m)
	carbonEng.SetNowFunc(clock)

	vaultEng := vault.NewEngine(custody, collector)
	vaultEng.SetState(m)
	vaultEng.SetLedger(tokens)
	vaultEng.SetRoles(roles)
	vaultEng.SetPauses(pauses)
	vaultEng.SetNowFunc(clock)

	submission, err := wasteEng.Submit(user, waste.WastePET, waste.QualityExcellent, 1000, "ipfs://evidence", "berlin")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	balance, err := tokens.BalanceOf("WST", user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(submission.TokensMinted) != 0 {
		t.Fatalf("minted balance mismatch: %s vs %s", balance, submission.TokensMinted)
	}

	record, err := carbonEng.Convert(user, scaled(1000), waste.WastePET, "VCS-2023")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	credits, err := tokens.BalanceOf("CCT", user)
	if err != nil {
		t.Fatalf("credits: %v", err)
	}
	if credits.Cmp(record.NetCredits) != 0 {
		t.Fatalf("credit balance mismatch: %s vs %s", credits, record.NetCredits)
	}

	pool, err := vaultEng.CreatePool(user, "WST", "WST", scaled(1), 0, nil, "reinvest")
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if err := vaultEng.FundPool(user, pool.ID, scaled(10_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := vaultEng.Stake(user, pool.ID, scaled(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	now += 100
	net, err := vaultEng.Claim(user, pool.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if net.Cmp(scaled(99)) != 0 {
		t.Fatalf("expected 99 net after default fee, got %s", net)
	}

	supply, err := tokens.TotalSupply("WST")
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Sign() <= 0 {
		t.Fatalf("supply should remain positive, got %s", supply)
	}
}

func TestRegistriesSurviveRestart(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)

	roles := nativecommon.NewRoleRegistry(addr(0xAA))
	roles.Grant(addr(0x01), nativecommon.RoleVerifier)
	roles.Grant(addr(0x02), nativecommon.RolePartner)
	if err := m.SetRoleSnapshot(roles.Snapshot()); err != nil {
		t.Fatalf("persist roles: %v", err)
	}
	pauses := nativecommon.NewPauseRegistry()
	pauses.Pause("vault")
	if err := m.SetPauseSnapshot(pauses.Snapshot()); err != nil {
		t.Fatalf("persist pauses: %v", err)
	}
	m.Commit()

	// A fresh manager over the same database stands in for a restarted
	// daemon: grants and pause flags must come back, not reset.
	restarted := NewManager(db)
	restoredRoles := nativecommon.NewRoleRegistry(addr(0xAA))
	snap, ok, err := restarted.RoleSnapshot()
	if err != nil || !ok {
		t.Fatalf("load roles: ok=%v err=%v", ok, err)
	}
	restoredRoles.Restore(snap)
	if !restoredRoles.HasRole(addr(0x01), nativecommon.RoleVerifier) {
		t.Fatalf("verifier grant lost across restart")
	}
	if !restoredRoles.HasRole(addr(0x02), nativecommon.RolePartner) {
		t.Fatalf("partner grant lost across restart")
	}
	if restoredRoles.Owner() != addr(0xAA) {
		t.Fatalf("owner changed across restart")
	}

	restoredPauses := nativecommon.NewPauseRegistry()
	modules, ok, err := restarted.PauseSnapshot()
	if err != nil || !ok {
		t.Fatalf("load pauses: ok=%v err=%v", ok, err)
	}
	restoredPauses.Restore(modules)
	if !restoredPauses.IsPaused("vault") {
		t.Fatalf("pause flag lost across restart")
	}
	if restoredPauses.IsPaused("waste") {
		t.Fatalf("unexpected pause flag after restore")
	}
}
