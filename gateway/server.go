package gateway

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"circnexus/native/carbon"
	nativecommon "circnexus/native/common"
	"circnexus/native/ledger"
	"circnexus/native/vault"
	"circnexus/native/waste"
	"circnexus/state"
)

// Server exposes the native engines over HTTP. Mutating requests are
// serialized and wrapped in a state snapshot so a failed operation leaves no
// partial writes, matching the engines' single-threaded execution model.
type Server struct {
	mu sync.Mutex

	ledger *ledger.Engine
	waste  *waste.Engine
	carbon *carbon.Engine
	vault  *vault.Engine
	prices carbon.PriceFeed
	state  *state.Manager
	roles  *nativecommon.RoleRegistry
	pauses *nativecommon.PauseRegistry
	auth   *Authenticator
	logger *slog.Logger
}

// Deps carries the wired engine set for the server.
type Deps struct {
	Ledger *ledger.Engine
	Waste  *waste.Engine
	Carbon *carbon.Engine
	Vault  *vault.Engine
	Prices carbon.PriceFeed
	State  *state.Manager
	Roles  *nativecommon.RoleRegistry
	Pauses *nativecommon.PauseRegistry
	Auth   *Authenticator
	Logger *slog.Logger
}

// NewServer constructs the gateway around the wired engines.
func NewServer(deps Deps) *Server {
	return &Server{
		ledger: deps.Ledger,
		waste:  deps.Waste,
		carbon: deps.Carbon,
		vault:  deps.Vault,
		prices: deps.Prices,
		state:  deps.State,
		roles:  deps.Roles,
		pauses: deps.Pauses,
		auth:   deps.Auth,
		logger: deps.Logger,
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(observe(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(read chi.Router) {
			read.Use(s.auth.Middleware(ScopeRead))
			read.Get("/waste/submissions/{id}", s.handleGetSubmission)
			read.Get("/waste/users/{addr}/stats", s.handleGetWasteUserStats)
			read.Get("/waste/types/{type}/stats", s.handleGetWasteTypeStats)
			read.Get("/waste/params", s.handleGetWasteParams)
			read.Get("/carbon/conversions/{id}", s.handleGetConversion)
			read.Get("/carbon/users/{addr}/stats", s.handleGetCarbonUserStats)
			read.Get("/carbon/params", s.handleGetCarbonParams)
			read.Get("/carbon/price", s.handleGetCreditPrice)
			read.Get("/vault/pools/{id}", s.handleGetPool)
			read.Get("/vault/pools/{id}/stakes/{addr}", s.handleGetStake)
			read.Get("/vault/pools/{id}/earned/{addr}", s.handleGetEarned)
			read.Get("/ledger/{symbol}/balances/{addr}", s.handleGetBalance)
			read.Get("/ledger/{symbol}/supply", s.handleGetSupply)
		})

		v1.Group(func(write chi.Router) {
			write.Use(s.auth.Middleware(ScopeWrite))
			write.Post("/waste/submissions", s.handleSubmitWaste)
			write.Post("/waste/submissions/{id}/verify", s.handleVerifyWaste)
			write.Post("/carbon/conversions", s.handleConvert)
			write.Post("/carbon/conversions/batch", s.handleBatchConvert)
			write.Post("/carbon/conversions/{id}/verify", s.handleVerifyConversion)
			write.Post("/carbon/retirements", s.handleRetire)
			write.Post("/vault/pools", s.handleCreatePool)
			write.Post("/vault/pools/{id}/stake", s.handleStake)
			write.Post("/vault/pools/{id}/unstake", s.handleUnstake)
			write.Post("/vault/pools/{id}/claim", s.handleClaim)
			write.Post("/vault/pools/{id}/fund", s.handleFundPool)
			write.Post("/vault/pools/{id}/rate", s.handleUpdateRewardRate)
			write.Post("/vault/pools/{id}/toggle", s.handleTogglePool)
		})

		v1.Group(func(admin chi.Router) {
			admin.Use(s.auth.Middleware(ScopeAdmin))
			admin.Post("/admin/waste/base-rate", s.handleSetBaseRate)
			admin.Post("/admin/waste/type-multiplier", s.handleSetTypeMultiplier)
			admin.Post("/admin/waste/quality-multiplier", s.handleSetQualityMultiplier)
			admin.Post("/admin/carbon/fee", s.handleSetConversionFee)
			admin.Post("/admin/carbon/seasonal", s.handleSetSeasonalAdjustment)
			admin.Post("/admin/carbon/factor", s.handleSetCarbonFactor)
			admin.Post("/admin/carbon/minimum", s.handleSetMinimumConversion)
			admin.Post("/admin/carbon/threshold", s.handleSetVerificationThreshold)
			admin.Post("/admin/vault/reward-fee", s.handleSetRewardFee)
			admin.Post("/admin/vault/pause", s.handlePauseVault)
			admin.Post("/admin/vault/unpause", s.handleUnpauseVault)
			admin.Post("/admin/vault/emergency-withdraw", s.handleEmergencyWithdraw)
			admin.Post("/admin/roles/grant", s.handleGrantRole)
			admin.Post("/admin/roles/revoke", s.handleRevokeRole)
			admin.Post("/admin/pause/{module}", s.handlePauseModule)
			admin.Post("/admin/resume/{module}", s.handleResumeModule)
		})
	})

	return r
}

// mutate runs fn under the serialization lock with snapshot semantics: an
// error reverts every state write the operation made.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(caller [20]byte) (any, error)) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errMissingToken)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.state.Snapshot()
	result, err := fn(caller)
	if err != nil {
		s.state.RevertTo(snapshot)
		writeError(w, statusFor(err), err)
		return
	}
	s.state.Commit()
	if result == nil {
		result = map[string]string{"status": "ok"}
	}
	writeJSON(w, http.StatusOK, result)
}
