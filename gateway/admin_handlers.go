package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	nativecommon "circnexus/native/common"
	"circnexus/native/waste"
)

var errUnknownRole = errors.New("gateway: unknown role")

type bpsRequest struct {
	WasteType string `json:"wasteType,omitempty"`
	Quality   string `json:"quality,omitempty"`
	Bps       uint32 `json:"bps"`
}

func (s *Server) handleSetBaseRate(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rate, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		return nil, s.waste.SetBaseRate(caller, rate)
	})
}

func (s *Server) handleSetTypeMultiplier(w http.ResponseWriter, r *http.Request) {
	var req bpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wasteType, err := waste.ParseWasteType(req.WasteType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		return nil, s.waste.SetTypeMultiplier(caller, wasteType, req.Bps)
	})
}

func (s *Server) handleSetQualityMultiplier(w http.ResponseWriter, r *http.Request) {
	var req bpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	quality, err := waste.ParseQuality(req.Quality)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		return nil, s.waste.SetQualityMultiplier(caller, quality, req.Bps)
	})
}

func (s *Server) handleSetConversionFee(w http.ResponseWriter, r *http.Request) {
	var req bpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		return nil, s.carbon.SetConversionFee(caller, req.Bps)
	})
}

func (s *Server) handleSetSeasonalAdjustment(w http.ResponseWriter, r *http.Request) {
	var req bpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		return nil, s.carbon.SetSeasonalAdjustment(caller, req.Bps)
	})
}

func (s *Server) handleSetCarbonFactor(w http.ResponseWriter, r *http.Request) {
	var req bpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wasteType, err := waste.ParseWasteType(req.WasteType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		return nil, s.carbon.SetCarbonFactor(caller, wasteType, req.Bps)
	})
}

func (s *Server) handleSetMinimumConversion(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		return nil, s.carbon.SetMinimumConversionAmount(caller, amount)
	})
}

func (s *Server) handleSetVerificationThreshold(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		return nil, s.carbon.SetVerificationThreshold(caller, amount)
	})
}

func (s *Server) handleSetRewardFee(w http.ResponseWriter, r *http.Request) {
	var req bpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		return nil, s.vault.SetRewardFee(caller, req.Bps)
	})
}

func (s *Server) handlePauseVault(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		if err := s.vault.Pause(caller); err != nil {
			return nil, err
		}
		return nil, s.state.SetPauseSnapshot(s.pauses.Snapshot())
	})
}

func (s *Server) handleUnpauseVault(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		if err := s.vault.Unpause(caller); err != nil {
			return nil, err
		}
		return nil, s.state.SetPauseSnapshot(s.pauses.Snapshot())
	})
}

type emergencyWithdrawRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var req emergencyWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		return nil, s.vault.EmergencyWithdraw(caller, req.Token, amount)
	})
}

type roleRequest struct {
	Address string `json:"address"`
	Role    string `json:"role"`
}

func parseRole(raw string) (nativecommon.Role, error) {
	switch nativecommon.Role(strings.ToLower(strings.TrimSpace(raw))) {
	case nativecommon.RoleOwner:
		return nativecommon.RoleOwner, nil
	case nativecommon.RoleVerifier:
		return nativecommon.RoleVerifier, nil
	case nativecommon.RolePartner:
		return nativecommon.RolePartner, nil
	default:
		return "", errUnknownRole
	}
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	s.roleOp(w, r, s.roles.Grant)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	s.roleOp(w, r, s.roles.Revoke)
}

// roleOp applies a role registry mutation after checking the caller holds the
// owner role, then persists the updated table so grants survive a restart.
func (s *Server) roleOp(w http.ResponseWriter, r *http.Request, apply func([20]byte, nativecommon.Role)) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	target, err := parseAddressParam(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	role, err := parseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		if err := nativecommon.Authorize(s.roles, caller, nativecommon.RoleOwner); err != nil {
			return nil, err
		}
		apply(target, role)
		return nil, s.state.SetRoleSnapshot(s.roles.Snapshot())
	})
}

func (s *Server) handlePauseModule(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		if err := nativecommon.Authorize(s.roles, caller, nativecommon.RoleOwner); err != nil {
			return nil, err
		}
		s.pauses.Pause(module)
		return nil, s.state.SetPauseSnapshot(s.pauses.Snapshot())
	})
}

func (s *Server) handleResumeModule(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		if err := nativecommon.Authorize(s.roles, caller, nativecommon.RoleOwner); err != nil {
			return nil, err
		}
		s.pauses.Resume(module)
		return nil, s.state.SetPauseSnapshot(s.pauses.Snapshot())
	})
}
