package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"circnexus/native/carbon"
	"circnexus/native/waste"
)

type conversionResponse struct {
	ID             uint64 `json:"id"`
	User           string `json:"user"`
	WasteAmount    string `json:"wasteAmount"`
	WasteType      string `json:"wasteType"`
	GrossCredits   string `json:"grossCredits"`
	Fee            string `json:"fee"`
	NetCredits     string `json:"netCredits"`
	MethodologyTag string `json:"methodologyTag"`
	Timestamp      int64  `json:"timestamp"`
	Status         string `json:"status"`
}

func newConversionResponse(c *carbon.Conversion) conversionResponse {
	return conversionResponse{
		ID:             c.ID,
		User:           bech32Addr(c.User),
		WasteAmount:    amountString(c.WasteAmount),
		WasteType:      c.WasteType.String(),
		GrossCredits:   amountString(c.GrossCredits),
		Fee:            amountString(c.Fee),
		NetCredits:     amountString(c.NetCredits),
		MethodologyTag: c.MethodologyTag,
		Timestamp:      c.Timestamp,
		Status:         c.Status.String(),
	}
}

type convertRequest struct {
	WasteAmount    string `json:"wasteAmount"`
	WasteType      string `json:"wasteType"`
	MethodologyTag string `json:"methodologyTag"`
}

func (req convertRequest) decode() (waste.WasteType, *carbon.ConvertRequest, error) {
	wasteType, err := waste.ParseWasteType(req.WasteType)
	if err != nil {
		return 0, nil, err
	}
	amount, err := parseAmount(req.WasteAmount)
	if err != nil {
		return 0, nil, err
	}
	return wasteType, &carbon.ConvertRequest{
		WasteAmount:    amount,
		WasteType:      wasteType,
		MethodologyTag: req.MethodologyTag,
	}, nil
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wasteType, entry, err := req.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		record, err := s.carbon.Convert(caller, entry.WasteAmount, wasteType, entry.MethodologyTag)
		if err != nil {
			return nil, err
		}
		return newConversionResponse(record), nil
	})
}

type batchConvertRequest struct {
	Entries []convertRequest `json:"entries"`
}

func (s *Server) handleBatchConvert(w http.ResponseWriter, r *http.Request) {
	var req batchConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entries := make([]carbon.ConvertRequest, 0, len(req.Entries))
	for _, raw := range req.Entries {
		_, entry, err := raw.decode()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		entries = append(entries, *entry)
	}
	s.mutate(w, r, func(caller [20]byte) (any, error) {
		records, err := s.carbon.BatchConvert(caller, entries)
		if err != nil {
			return nil, err
		}
		out := make([]conversionResponse, 0, len(records))
		for _, record := range records {
			out = append(out, newConversionResponse(record))
		}
		return out, nil
	})
}

func (s *Server) handleVerifyConversion(w http.ResponseWriter, r *http.Request) {
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
		if err := s.carbon.VerifyConversion(caller, id, req.Approved); err != nil {
			return nil, err
		}
		record, err := s.carbon.Conversion(id)
		if err != nil {
			return nil, err
		}
		return newConversionResponse(record), nil
	})
}

type retireRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type retirementResponse struct {
	ID        uint64 `json:"id"`
	User      string `json:"user"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleRetire(w http.ResponseWriter, r *http.Request) {
	var req retireRequest
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
		retirement, err := s.carbon.Retire(caller, amount, req.Reason)
		if err != nil {
			return nil, err
		}
		return retirementResponse{
			ID:        retirement.ID,
			User:      bech32Addr(retirement.User),
			Amount:    amountString(retirement.Amount),
			Reason:    retirement.Reason,
			Timestamp: retirement.Timestamp,
		}, nil
	})
}

func (s *Server) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	record, err := s.carbon.Conversion(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newConversionResponse(record))
}

type carbonStatsResponse struct {
	TotalConverted string `json:"totalConverted"`
	TotalCredits   string `json:"totalCredits"`
	TotalRetired   string `json:"totalRetired"`
	Conversions    uint64 `json:"conversions"`
}

func (s *Server) handleGetCarbonUserStats(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddressParam(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stats, err := s.carbon.UserStats(addr)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, carbonStatsResponse{
		TotalConverted: amountString(stats.TotalConverted),
		TotalCredits:   amountString(stats.TotalCredits),
		TotalRetired:   amountString(stats.TotalRetired),
		Conversions:    stats.Conversions,
	})
}

type carbonParamsResponse struct {
	CarbonFactorBps         map[string]uint32 `json:"carbonFactorBps"`
	SeasonalAdjustmentBps   uint32            `json:"seasonalAdjustmentBps"`
	ConversionFeeBps        uint32            `json:"conversionFeeBps"`
	MinimumConversionAmount string            `json:"minimumConversionAmount"`
	VerificationThreshold   string            `json:"verificationThreshold"`
}

func (s *Server) handleGetCarbonParams(w http.ResponseWriter, r *http.Request) {
	params, err := s.carbon.Params()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp := carbonParamsResponse{
		CarbonFactorBps:         make(map[string]uint32, len(params.CarbonFactorBps)),
		SeasonalAdjustmentBps:   params.SeasonalAdjustmentBps,
		ConversionFeeBps:        params.ConversionFeeBps,
		MinimumConversionAmount: amountString(params.MinimumConversionAmount),
		VerificationThreshold:   amountString(params.VerificationThreshold),
	}
	for t, bps := range params.CarbonFactorBps {
		resp.CarbonFactorBps[t.String()] = bps
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCreditPrice(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		writeError(w, http.StatusNotFound, carbon.ErrConversionNotFound)
		return
	}
	cents, err := s.prices.CreditPriceUSDCents()
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"usdCents": cents})
}
