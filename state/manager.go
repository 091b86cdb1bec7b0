package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"circnexus/native/carbon"
	nativecommon "circnexus/native/common"
	"circnexus/native/vault"
	"circnexus/native/waste"
	"circnexus/storage"
)

// Key prefixes. Every record lives under its owning engine's namespace so the
// keyspace can be inspected and migrated per module.
const (
	keyLedgerBalance   = "ledger/balance/%s/%s"
	keyLedgerSupply    = "ledger/supply/%s"
	keyWasteParams     = "waste/params"
	keyWasteSubmission = "waste/submission/%d"
	keyWasteCount      = "waste/submissionCount"
	keyWasteUserStats  = "waste/userStats/%s"
	keyWasteTypeStats  = "waste/typeStats/%d"
	keyCarbonParams    = "carbon/params"
	keyConversion      = "carbon/conversion/%d"
	keyConversionCount = "carbon/conversionCount"
	keyRetirement      = "carbon/retirement/%d"
	keyRetirementCount = "carbon/retirementCount"
	keyCarbonUserStats = "carbon/userStats/%s"
	keyVaultParams     = "vault/params"
	keyVaultPool       = "vault/pool/%d"
	keyVaultPoolCount  = "vault/poolCount"
	keyVaultStake      = "vault/stake/%d/%s"
	keyRoleSnapshot    = "common/roles"
	keyPauseSnapshot   = "common/pauses"
)

type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// Manager persists every engine's records as JSON under prefixed keys and
// keeps a write journal so a batch of operations can be reverted as a unit.
// It assumes serialized execution and carries no locking.
type Manager struct {
	db      storage.Database
	journal []journalEntry
}

// NewManager wraps the database in a journaling state manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Snapshot marks the current journal position. Pair with RevertTo to undo
// every write made after the mark.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertTo undoes all writes made after the snapshot mark, most recent first.
func (m *Manager) RevertTo(snapshot int) {
	if snapshot < 0 || snapshot > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= snapshot; i-- {
		entry := m.journal[i]
		if entry.existed {
			_ = m.db.Put([]byte(entry.key), entry.prev)
		} else {
			_ = m.db.Delete([]byte(entry.key))
		}
	}
	m.journal = m.journal[:snapshot]
}

// Commit discards the journal, making every write since the last commit
// permanent.
func (m *Manager) Commit() {
	m.journal = m.journal[:0]
}

func (m *Manager) get(key string, out any) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	prev, err := m.db.Get([]byte(key))
	existed := true
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		existed = false
		prev = nil
	}
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, existed: existed})
	return m.db.Put([]byte(key), raw)
}

func (m *Manager) getCounter(key string) (uint64, error) {
	var count uint64
	if _, err := m.get(key, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func addrKey(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

// --- registry records ---
//
// Roles and pause flags are owner-mutated state like any other record. The
// daemon persists them on every mutation and restores them at boot so a
// restart cannot revoke grants or clear an emergency pause.

// RoleSnapshot loads the persisted role table, if any.
func (m *Manager) RoleSnapshot() (nativecommon.RoleSnapshot, bool, error) {
	var snap nativecommon.RoleSnapshot
	ok, err := m.get(keyRoleSnapshot, &snap)
	return snap, ok, err
}

// SetRoleSnapshot persists the role table.
func (m *Manager) SetRoleSnapshot(snap nativecommon.RoleSnapshot) error {
	return m.put(keyRoleSnapshot, snap)
}

// PauseSnapshot loads the persisted set of paused module names, if any.
func (m *Manager) PauseSnapshot() ([]string, bool, error) {
	var modules []string
	ok, err := m.get(keyPauseSnapshot, &modules)
	return modules, ok, err
}

// SetPauseSnapshot persists the set of paused module names.
func (m *Manager) SetPauseSnapshot(modules []string) error {
	if modules == nil {
		modules = []string{}
	}
	return m.put(keyPauseSnapshot, modules)
}

// --- ledger records ---

func (m *Manager) LedgerBalance(symbol string, addr [20]byte) (*big.Int, error) {
	var balance big.Int
	ok, err := m.get(fmt.Sprintf(keyLedgerBalance, symbol, addrKey(addr)), &balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return &balance, nil
}

func (m *Manager) SetLedgerBalance(symbol string, addr [20]byte, amount *big.Int) error {
	return m.put(fmt.Sprintf(keyLedgerBalance, symbol, addrKey(addr)), amount)
}

func (m *Manager) LedgerSupply(symbol string) (*big.Int, error) {
	var supply big.Int
	ok, err := m.get(fmt.Sprintf(keyLedgerSupply, symbol), &supply)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return &supply, nil
}

func (m *Manager) SetLedgerSupply(symbol string, amount *big.Int) error {
	return m.put(fmt.Sprintf(keyLedgerSupply, symbol), amount)
}

// --- waste records ---

func (m *Manager) WasteParams() (*waste.Params, error) {
	var params waste.Params
	ok, err := m.get(keyWasteParams, &params)
	if err != nil || !ok {
		return nil, err
	}
	return &params, nil
}

func (m *Manager) SetWasteParams(params *waste.Params) error {
	return m.put(keyWasteParams, params)
}

func (m *Manager) WasteSubmission(id uint64) (*waste.Submission, bool, error) {
	var submission waste.Submission
	ok, err := m.get(fmt.Sprintf(keyWasteSubmission, id), &submission)
	if err != nil || !ok {
		return nil, false, err
	}
	return &submission, true, nil
}

func (m *Manager) PutWasteSubmission(submission *waste.Submission) error {
	return m.put(fmt.Sprintf(keyWasteSubmission, submission.ID), submission)
}

func (m *Manager) WasteSubmissionCount() (uint64, error) {
	return m.getCounter(keyWasteCount)
}

func (m *Manager) SetWasteSubmissionCount(count uint64) error {
	return m.put(keyWasteCount, count)
}

func (m *Manager) WasteUserStats(addr [20]byte) (*waste.UserStats, error) {
	var stats waste.UserStats
	ok, err := m.get(fmt.Sprintf(keyWasteUserStats, addrKey(addr)), &stats)
	if err != nil || !ok {
		return nil, err
	}
	return &stats, nil
}

func (m *Manager) SetWasteUserStats(addr [20]byte, stats *waste.UserStats) error {
	return m.put(fmt.Sprintf(keyWasteUserStats, addrKey(addr)), stats)
}

func (m *Manager) WasteTypeStats(t waste.WasteType) (*waste.TypeStats, error) {
	var stats waste.TypeStats
	ok, err := m.get(fmt.Sprintf(keyWasteTypeStats, t), &stats)
	if err != nil || !ok {
		return nil, err
	}
	return &stats, nil
}

func (m *Manager) SetWasteTypeStats(t waste.WasteType, stats *waste.TypeStats) error {
	return m.put(fmt.Sprintf(keyWasteTypeStats, t), stats)
}

// --- carbon records ---

func (m *Manager) CarbonParams() (*carbon.Params, error) {
	var params carbon.Params
	ok, err := m.get(keyCarbonParams, &params)
	if err != nil || !ok {
		return nil, err
	}
	return &params, nil
}

func (m *Manager) SetCarbonParams(params *carbon.Params) error {
	return m.put(keyCarbonParams, params)
}

func (m *Manager) Conversion(id uint64) (*carbon.Conversion, bool, error) {
	var record carbon.Conversion
	ok, err := m.get(fmt.Sprintf(keyConversion, id), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &record, true, nil
}

func (m *Manager) PutConversion(record *carbon.Conversion) error {
	return m.put(fmt.Sprintf(keyConversion, record.ID), record)
}

func (m *Manager) ConversionCount() (uint64, error) {
	return m.getCounter(keyConversionCount)
}

func (m *Manager) SetConversionCount(count uint64) error {
	return m.put(keyConversionCount, count)
}

func (m *Manager) PutRetirement(record *carbon.Retirement) error {
	return m.put(fmt.Sprintf(keyRetirement, record.ID), record)
}

func (m *Manager) RetirementCount() (uint64, error) {
	return m.getCounter(keyRetirementCount)
}

func (m *Manager) SetRetirementCount(count uint64) error {
	return m.put(keyRetirementCount, count)
}

func (m *Manager) CarbonUserStats(addr [20]byte) (*carbon.UserStats, error) {
	var stats carbon.UserStats
	ok, err := m.get(fmt.Sprintf(keyCarbonUserStats, addrKey(addr)), &stats)
	if err != nil || !ok {
		return nil, err
	}
	return &stats, nil
}

func (m *Manager) SetCarbonUserStats(addr [20]byte, stats *carbon.UserStats) error {
	return m.put(fmt.Sprintf(keyCarbonUserStats, addrKey(addr)), stats)
}

// --- vault records ---

func (m *Manager) VaultParams() (*vault.Params, error) {
	var params vault.Params
	ok, err := m.get(keyVaultParams, &params)
	if err != nil || !ok {
		return nil, err
	}
	return &params, nil
}

func (m *Manager) SetVaultParams(params *vault.Params) error {
	return m.put(keyVaultParams, params)
}

func (m *Manager) Pool(id uint64) (*vault.Pool, bool, error) {
	var pool vault.Pool
	ok, err := m.get(fmt.Sprintf(keyVaultPool, id), &pool)
	if err != nil || !ok {
		return nil, false, err
	}
	return &pool, true, nil
}

func (m *Manager) PutPool(pool *vault.Pool) error {
	return m.put(fmt.Sprintf(keyVaultPool, pool.ID), pool)
}

func (m *Manager) PoolCount() (uint64, error) {
	return m.getCounter(keyVaultPoolCount)
}

func (m *Manager) SetPoolCount(count uint64) error {
	return m.put(keyVaultPoolCount, count)
}

func (m *Manager) UserStake(poolID uint64, addr [20]byte) (*vault.UserStake, bool, error) {
	var stake vault.UserStake
	ok, err := m.get(fmt.Sprintf(keyVaultStake, poolID, addrKey(addr)), &stake)
	if err != nil || !ok {
		return nil, false, err
	}
	return &stake, true, nil
}

func (m *Manager) SetUserStake(poolID uint64, addr [20]byte, stake *vault.UserStake) error {
	return m.put(fmt.Sprintf(keyVaultStake, poolID, addrKey(addr)), stake)
}

var _ carbon.Snapshotter = (*Manager)(nil)
