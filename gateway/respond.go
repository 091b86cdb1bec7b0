package gateway

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"circnexus/crypto"
	"circnexus/native/carbon"
	nativecommon "circnexus/native/common"
	"circnexus/native/ledger"
	"circnexus/native/vault"
	"circnexus/native/waste"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps engine sentinel errors to HTTP status codes: bad input 400,
// missing records 404, authorization 403, state conflicts 409, paused 423.
func statusFor(err error) int {
	switch {
	case errors.Is(err, waste.ErrInvalidInput),
		errors.Is(err, carbon.ErrInvalidInput),
		errors.Is(err, vault.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, carbon.ErrBelowMinimum),
		errors.Is(err, carbon.ErrBatchTooLarge),
		errors.Is(err, waste.ErrValueOutOfRange),
		errors.Is(err, carbon.ErrValueOutOfRange),
		errors.Is(err, vault.ErrValueOutOfRange),
		errors.Is(err, ledger.ErrUnknownToken),
		errors.Is(err, vault.ErrUnknownToken):
		return http.StatusBadRequest
	case errors.Is(err, nativecommon.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, waste.ErrSubmissionNotFound),
		errors.Is(err, carbon.ErrConversionNotFound),
		errors.Is(err, vault.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusLocked
	case errors.Is(err, waste.ErrAlreadyVerified),
		errors.Is(err, carbon.ErrAlreadyVerified),
		errors.Is(err, carbon.ErrBelowVerificationThreshold),
		errors.Is(err, vault.ErrPoolInactive),
		errors.Is(err, vault.ErrExceedsMaxStake),
		errors.Is(err, vault.ErrInsufficientStake),
		errors.Is(err, vault.ErrLockNotExpired),
		errors.Is(err, vault.ErrNoRewards),
		errors.Is(err, vault.ErrInsufficientRewardFunds),
		errors.Is(err, vault.ErrNotPaused),
		errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func bech32Addr(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.CNXPrefix, addr[:]).String()
}

func parseAddressParam(raw string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(raw)
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Array(), nil
}

func parseIDParam(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}

var errBadAmount = errors.New("gateway: amount must be a non-negative integer")

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		return nil, errBadAmount
	}
	return amount, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
