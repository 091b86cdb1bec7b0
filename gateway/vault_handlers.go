package gateway

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"circnexus/native/vault"
)

type poolResponse struct {
	ID                   uint64 `json:"id"`
	StakingToken         string `json:"stakingToken"`
	RewardToken          string `json:"rewardToken"`
	TotalStaked          string `json:"totalStaked"`
	RewardRate           string `json:"rewardRate"`
	LastUpdateTime       int64  `json:"lastUpdateTime"`
	RewardPerTokenStored string `json:"rewardPerTokenStored"`
	MinStakingPeriod     int64  `json:"minStakingPeriod"`
	MaxStakePerUser      string `json:"maxStakePerUser"`
	Active               bool   `json:"active"`
	Partner              string `json:"partner"`
	Name                 string `json:"name"`
	RewardFunds          string `json:"rewardFunds"`
}

func newPoolResponse(p *vault.Pool) poolResponse {
	return poolResponse{
		ID:                   p.ID,
		StakingToken:         p.StakingToken,
		RewardToken:          p.RewardToken,
		TotalStaked:          amountString(p.TotalStaked),
		RewardRate:           amountString(p.RewardRate),
		LastUpdateTime:       p.LastUpdateTime,
		RewardPerTokenStored: amountString(p.RewardPerTokenStored),
		MinStakingPeriod:     p.MinStakingPeriod,
		MaxStakePerUser:      amountString(p.MaxStakePerUser),
		Active:               p.Active,
		Partner:              bech32Addr(p.Partner),
		Name:                 p.Name,
		RewardFunds:          amountString(p.RewardFunds),
	}
}

type createPoolRequest struct {
	StakingToken     string `json:"stakingToken"`
	RewardToken      string `json:"rewardToken"`
	RewardRate       string `json:"rewardRate"`
	MinStakingPeriod int64  `json:"minStakingPeriod"`
	MaxStakePerUser  string `json:"maxStakePerUser"`
	Name             string `json:"name"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rate, err := parseAmount(req.RewardRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var maxPerUser *big.Int
	if req.MaxStakePerUser != "" {
		maxPerUser, err = parseAmount(req.MaxStakePerUser)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		pool, err := s.vault.CreatePool(caller, req.StakingToken, req.RewardToken, rate, req.MinStakingPeriod, maxPerUser, req.Name)
		if err != nil {
			return nil, err
		}
		return newPoolResponse(pool), nil
	})
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) poolAmountOp(w http.ResponseWriter, r *http.Request, op func(caller [20]byte, poolID uint64, amount *big.Int) (any, error)) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
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
		return op(caller, id, amount)
	})
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	s.poolAmountOp(w, r, func(caller [20]byte, poolID uint64, amount *big.Int) (any, error) {
		if err := s.vault.Stake(caller, poolID, amount); err != nil {
			return nil, err
		}
		stake, err := s.vault.StakeInfo(poolID, caller)
		if err != nil {
			return nil, err
		}
		return newStakeResponse(stake), nil
	})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	s.poolAmountOp(w, r, func(caller [20]byte, poolID uint64, amount *big.Int) (any, error) {
		if err := s.vault.Unstake(caller, poolID, amount); err != nil {
			return nil, err
		}
		stake, err := s.vault.StakeInfo(poolID, caller)
		if err != nil {
			return nil, err
		}
		return newStakeResponse(stake), nil
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		net, err := s.vault.Claim(caller, id)
		if err != nil {
			return nil, err
		}
		return map[string]string{"claimed": amountString(net)}, nil
	})
}

func (s *Server) handleFundPool(w http.ResponseWriter, r *http.Request) {
	s.poolAmountOp(w, r, func(caller [20]byte, poolID uint64, amount *big.Int) (any, error) {
		if err := s.vault.FundPool(caller, poolID, amount); err != nil {
			return nil, err
		}
		pool, err := s.vault.Pool(poolID)
		if err != nil {
			return nil, err
		}
		return newPoolResponse(pool), nil
	})
}

type rateRequest struct {
	Rate string `json:"rate"`
}

func (s *Server) handleUpdateRewardRate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rate, err := parseAmount(req.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		if err := s.vault.UpdateRewardRate(caller, id, rate); err != nil {
			return nil, err
		}
		pool, err := s.vault.Pool(id)
		if err != nil {
			return nil, err
		}
		return newPoolResponse(pool), nil
	})
}

func (s *Server) handleTogglePool(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		if err := s.vault.TogglePool(caller, id); err != nil {
			return nil, err
		}
		pool, err := s.vault.Pool(id)
		if err != nil {
			return nil, err
		}
		return newPoolResponse(pool), nil
	})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pool, err := s.vault.Pool(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolResponse(pool))
}

type stakeResponse struct {
	Amount             string `json:"amount"`
	RewardPerTokenPaid string `json:"rewardPerTokenPaid"`
	PendingRewards     string `json:"pendingRewards"`
	StakeTimestamp     int64  `json:"stakeTimestamp"`
	LastClaimTimestamp int64  `json:"lastClaimTimestamp"`
}

func newStakeResponse(s *vault.UserStake) stakeResponse {
	return stakeResponse{
		Amount:             amountString(s.Amount),
		RewardPerTokenPaid: amountString(s.RewardPerTokenPaid),
		PendingRewards:     amountString(s.PendingRewards),
		StakeTimestamp:     s.StakeTimestamp,
		LastClaimTimestamp: s.LastClaimTimestamp,
	}
}

func (s *Server) handleGetStake(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := parseAddressParam(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stake, err := s.vault.StakeInfo(id, addr)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newStakeResponse(stake))
}

func (s *Server) handleGetEarned(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := parseAddressParam(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	earned, err := s.vault.Earned(id, addr)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"earned": amountString(earned)})
}
