package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddressParam(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	balance, err := s.ledger.BalanceOf(chi.URLParam(r, "symbol"), addr)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": amountString(balance)})
}

func (s *Server) handleGetSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := s.ledger.TotalSupply(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"supply": amountString(supply)})
}
