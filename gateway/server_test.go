package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"circnexus/native/carbon"
	nativecommon "circnexus/native/common"
	"circnexus/native/ledger"
	"circnexus/native/vault"
	"circnexus/native/waste"
	"circnexus/state"
	"circnexus/storage"
)

var testSecret = []byte("gateway-test-secret")

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func signToken(t *testing.T, subject [20]byte, scopes ...string) string {
	t.Helper()
	claims := tokenClaims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: bech32Addr(subject),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func newTestServer(t *testing.T) (*httptest.Server, [20]byte, [20]byte) {
	t.Helper()
	ts, owner, user, _ := newTestServerWithState(t)
	return ts, owner, user
}

func newTestServerWithState(t *testing.T) (*httptest.Server, [20]byte, [20]byte, *state.Manager) {
	t.Helper()
	owner := testAddr(0xAA)
	user := testAddr(0x01)
	custody := testAddr(0xC0)
	collector := testAddr(0xFE)

	manager := state.NewManager(storage.NewMemDB())
	roles := nativecommon.NewRoleRegistry(owner)
	pauses := nativecommon.NewPauseRegistry()

	tokens := ledger.NewEngine("WST", "CCT")
	tokens.SetState(manager)

	clock := func() int64 { return 1_700_000_000 }

	wasteEng := waste.NewEngine("WST")
	wasteEng.SetState(manager)
	wasteEng.SetLedger(tokens)
	wasteEng.SetRoles(roles)
	wasteEng.SetPauses(pauses)
	wasteEng.SetNowFunc(clock)

	carbonEng := carbon.NewEngine("WST", "CCT", custody, collector)
	carbonEng.SetState(manager)
	carbonEng.SetLedger(tokens)
	carbonEng.SetRoles(roles)
	carbonEng.SetPauses(pauses)
	carbonEng.SetSnapshotter(manager)
	carbonEng.SetNowFunc(clock)

	vaultEng := vault.NewEngine(custody, collector)
	vaultEng.SetState(manager)
	vaultEng.SetLedger(tokens)
	vaultEng.SetRoles(roles)
	vaultEng.SetPauses(pauses)
	vaultEng.SetNowFunc(clock)

	server := NewServer(Deps{
		Ledger: tokens,
		Waste:  wasteEng,
		Carbon: carbonEng,
		Vault:  vaultEng,
		Prices: carbon.StaticPriceFeed{Cents: 1250},
		State:  manager,
		Roles:  roles,
		Pauses: pauses,
		Auth:   NewAuthenticator(testSecret),
	})
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts, owner, user, manager
}

func doJSON(t *testing.T, method, url, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealthAndAuthGates(t *testing.T) {
	ts, _, user := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// No token.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/waste/submissions", "", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Read scope cannot write.
	readToken := signToken(t, user, ScopeRead)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/waste/submissions", readToken, map[string]any{
		"wasteType": "PET", "quality": "EXCELLENT", "weightGrams": 100, "evidenceRef": "ipfs://x",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Write scope cannot reach admin routes.
	writeToken := signToken(t, user, ScopeWrite)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/carbon/fee", writeToken, map[string]any{"bps": 100})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSubmitVerifyFlow(t *testing.T) {
	ts, owner, user := newTestServer(t)
	userToken := signToken(t, user, ScopeRead, ScopeWrite)
	adminToken := signToken(t, owner, ScopeAdmin)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/waste/submissions", userToken, map[string]any{
		"wasteType":   "PET",
		"quality":     "EXCELLENT",
		"weightGrams": 1000,
		"evidenceRef": "ipfs://bafy",
		"locationTag": "berlin",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "PET", body["type"])
	minted := body["tokensMinted"].(string)
	require.NotEqual(t, "0", minted)

	// Balance reflects the optimistic mint.
	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/v1/ledger/WST/balances/%s", ts.URL, bech32Addr(user)), userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, minted, body["balance"])

	// Owner grants the verifier role, verifier rejects, mint reverses.
	verifier := testAddr(0x05)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/roles/grant", adminToken, map[string]any{
		"address": bech32Addr(verifier), "role": "verifier",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	verifierToken := signToken(t, verifier, ScopeWrite)
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/waste/submissions/1/verify", verifierToken, map[string]any{"approved": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "REJECTED", body["verdict"])

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/v1/ledger/WST/balances/%s", ts.URL, bech32Addr(user)), userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "0", body["balance"])

	// Double verification conflicts.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/waste/submissions/1/verify", verifierToken, map[string]any{"approved": true})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestConvertAndRetireFlow(t *testing.T) {
	ts, _, user := newTestServer(t)
	userToken := signToken(t, user, ScopeRead, ScopeWrite)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/waste/submissions", userToken, map[string]any{
		"wasteType": "PET", "quality": "EXCELLENT", "weightGrams": 1000, "evidenceRef": "ipfs://bafy",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/carbon/conversions", userToken, map[string]any{
		"wasteAmount":    "1000000000000000000000",
		"wasteType":      "PET",
		"methodologyTag": "VCS-2023",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "AUTO_VERIFIED", body["status"])
	require.Equal(t, "1485000000000000000", body["netCredits"])

	// Below-minimum conversion fails and leaves balances untouched.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/carbon/conversions", userToken, map[string]any{
		"wasteAmount":    "1",
		"wasteType":      "PET",
		"methodologyTag": "VCS-2023",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/carbon/retirements", userToken, map[string]any{
		"amount": "1000000000000000000", "reason": "2025 offset claim",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1000000000000000000", body["amount"])

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/v1/carbon/users/%s/stats", ts.URL, bech32Addr(user)), userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1000000000000000000", body["totalRetired"])

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/carbon/price", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1250), body["usdCents"])
}

func TestVaultFlowOverHTTP(t *testing.T) {
	ts, owner, user := newTestServer(t)
	userToken := signToken(t, user, ScopeRead, ScopeWrite)
	adminToken := signToken(t, owner, ScopeAdmin)

	// Mint balance via a submission, then let the user run a pool.
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/waste/submissions", userToken, map[string]any{
		"wasteType": "PET", "quality": "EXCELLENT", "weightGrams": 1000, "evidenceRef": "ipfs://bafy",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/roles/grant", adminToken, map[string]any{
		"address": bech32Addr(user), "role": "partner",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/vault/pools", userToken, map[string]any{
		"stakingToken": "WST",
		"rewardToken":  "WST",
		"rewardRate":   "1000000000000000000",
		"name":         "reinvest",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["id"])

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/vault/pools/1/fund", userToken, map[string]any{
		"amount": "1000000000000000000000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/vault/pools/1/stake", userToken, map[string]any{
		"amount": "100000000000000000000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "100000000000000000000", body["amount"])

	// Claiming immediately conflicts: nothing accrued yet.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/vault/pools/1/claim", userToken, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/v1/vault/pools/1/stakes/%s", ts.URL, bech32Addr(user)), userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "100000000000000000000", body["amount"])

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/vault/pools/1", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["active"])
}

func TestAdminMutationsPersistRegistries(t *testing.T) {
	ts, owner, _, manager := newTestServerWithState(t)
	adminToken := signToken(t, owner, ScopeAdmin)

	verifier := testAddr(0x07)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/roles/grant", adminToken, map[string]any{
		"address": bech32Addr(verifier), "role": "verifier",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/pause/waste", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A restarted daemon rebuilds its registries from the persisted
	// snapshots; both mutations must come back.
	snap, ok, err := manager.RoleSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	restoredRoles := nativecommon.NewRoleRegistry(owner)
	restoredRoles.Restore(snap)
	require.True(t, restoredRoles.HasRole(verifier, nativecommon.RoleVerifier))

	modules, ok, err := manager.PauseSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	restoredPauses := nativecommon.NewPauseRegistry()
	restoredPauses.Restore(modules)
	require.True(t, restoredPauses.IsPaused("waste"))

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/roles/revoke", adminToken, map[string]any{
		"address": bech32Addr(verifier), "role": "verifier",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap, _, err = manager.RoleSnapshot()
	require.NoError(t, err)
	restoredRoles.Restore(snap)
	require.False(t, restoredRoles.HasRole(verifier, nativecommon.RoleVerifier))
}
