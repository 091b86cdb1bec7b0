package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"circnexus/native/waste"
)

type submissionResponse struct {
	ID           uint64 `json:"id"`
	Submitter    string `json:"submitter"`
	Type         string `json:"type"`
	Quality      string `json:"quality"`
	WeightGrams  uint64 `json:"weightGrams"`
	TokensMinted string `json:"tokensMinted"`
	EvidenceRef  string `json:"evidenceRef"`
	LocationTag  string `json:"locationTag,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	Verdict      string `json:"verdict"`
}

func newSubmissionResponse(s *waste.Submission) submissionResponse {
	return submissionResponse{
		ID:           s.ID,
		Submitter:    bech32Addr(s.Submitter),
		Type:         s.Type.String(),
		Quality:      s.Quality.String(),
		WeightGrams:  s.WeightGrams,
		TokensMinted: amountString(s.TokensMinted),
		EvidenceRef:  s.EvidenceRef,
		LocationTag:  s.LocationTag,
		Timestamp:    s.Timestamp,
		Verdict:      s.Verdict.String(),
	}
}

type submitWasteRequest struct {
	WasteType   string `json:"wasteType"`
	Quality     string `json:"quality"`
	WeightGrams uint64 `json:"weightGrams"`
	EvidenceRef string `json:"evidenceRef"`
	LocationTag string `json:"locationTag"`
}

func (s *Server) handleSubmitWaste(w http.ResponseWriter, r *http.Request) {
	var req submitWasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wasteType, err := waste.ParseWasteType(req.WasteType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	quality, err := waste.ParseQuality(req.Quality)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		submission, err := s.waste.Submit(caller, wasteType, quality, req.WeightGrams, req.EvidenceRef, req.LocationTag)
		if err != nil {
			return nil, err
		}
		return newSubmissionResponse(submission), nil
	})
}

type verdictRequest struct {
	Approved bool `json:"approved"`
}

func (s *Server) handleVerifyWaste(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req verdictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		if err := s.waste.Verify(caller, id, req.Approved); err != nil {
			return nil, err
		}
		submission, err := s.waste.Submission(id)
		if err != nil {
			return nil, err
		}
		return newSubmissionResponse(submission), nil
	})
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	submission, err := s.waste.Submission(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newSubmissionResponse(submission))
}

type wasteStatsResponse struct {
	TotalWeightGrams uint64 `json:"totalWeightGrams"`
	TotalMinted      string `json:"totalMinted"`
	Submissions      uint64 `json:"submissions"`
}

func (s *Server) handleGetWasteUserStats(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddressParam(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stats, err := s.waste.UserStats(addr)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, wasteStatsResponse{
		TotalWeightGrams: stats.TotalWeightGrams,
		TotalMinted:      amountString(stats.TotalMinted),
		Submissions:      stats.Submissions,
	})
}

func (s *Server) handleGetWasteTypeStats(w http.ResponseWriter, r *http.Request) {
	wasteType, err := waste.ParseWasteType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stats, err := s.waste.TypeStats(wasteType)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, wasteStatsResponse{
		TotalWeightGrams: stats.TotalWeightGrams,
		TotalMinted:      amountString(stats.TotalMinted),
		Submissions:      stats.Submissions,
	})
}

type wasteParamsResponse struct {
	BaseRatePerGram      string            `json:"baseRatePerGram"`
	TypeMultiplierBps    map[string]uint32 `json:"typeMultiplierBps"`
	QualityMultiplierBps map[string]uint32 `json:"qualityMultiplierBps"`
}

func (s *Server) handleGetWasteParams(w http.ResponseWriter, r *http.Request) {
	params, err := s.waste.Params()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp := wasteParamsResponse{
		BaseRatePerGram:      amountString(params.BaseRatePerGram),
		TypeMultiplierBps:    make(map[string]uint32, len(params.TypeMultiplierBps)),
		QualityMultiplierBps: make(map[string]uint32, len(params.QualityMultiplierBps)),
	}
	for t, bps := range params.TypeMultiplierBps {
		resp.TypeMultiplierBps[t.String()] = bps
	}
	for q, bps := range params.QualityMultiplierBps {
		resp.QualityMultiplierBps[q.String()] = bps
	}
	writeJSON(w, http.StatusOK, resp)
}
