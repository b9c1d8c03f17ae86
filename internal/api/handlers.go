package api

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stakevault-io/staking-vault/internal/observability/tracing"
	"github.com/stakevault-io/staking-vault/internal/types"
)

// maxDurationSeconds is the largest second count representable as a
// time.Duration; anything above it would wrap on conversion
const maxDurationSeconds = uint64(math.MaxInt64 / int64(time.Second))

type stakeRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
	// Duration is the lock window in seconds on a fresh stake, or the
	// lock extension on a restake
	Duration uint64 `json:"duration"`
}

type accountRequest struct {
	Account string `json:"account"`
}

type adminRequest struct {
	Authority  string `json:"authority"`
	Amount     uint64 `json:"amount,omitempty"`
	ApyRateBps uint64 `json:"apy_rate_bps,omitempty"`
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeError(w, r, types.NewInternalServiceError(err))
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVaultStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.GetVaultStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) handleStakeSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.svc.GetStakeSnapshot(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, snapshot)
}

func (s *Server) handleUnstakeEligibility(w http.ResponseWriter, r *http.Request) {
	eligibility, err := s.svc.GetUnstakeEligibility(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, eligibility)
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decode(w, r, &req) {
		return
	}
	lock, errLock := lockDuration(req.Duration)
	if errLock != nil {
		writeError(w, r, errLock)
		return
	}
	result, err := s.svc.Stake(r.Context(), req.Account, req.Amount, lock)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleRestake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decode(w, r, &req) {
		return
	}
	lock, errLock := lockDuration(req.Duration)
	if errLock != nil {
		writeError(w, r, errLock)
		return
	}
	result, err := s.svc.Restake(r.Context(), req.Account, req.Amount, lock)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func lockDuration(seconds uint64) (time.Duration, *types.Error) {
	if seconds > maxDurationSeconds {
		return 0, types.NewValidationError("lock duration is out of range")
	}
	return time.Duration(seconds) * time.Second, nil
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.svc.Unstake(r.Context(), req.Account)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.svc.ClaimRewards(r.Context(), req.Account)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleInitVault(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.InitVault(r.Context(), req.Authority, req.ApyRateBps); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]string{"status": "initialized"})
}

func (s *Server) handleAdminDeposit(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.AdminDeposit(r.Context(), req.Authority, req.Amount); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "deposited"})
}

func (s *Server) handleAdminWithdraw(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.svc.AdminWithdraw(r.Context(), req.Authority, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.Configure(r.Context(), req.Authority, req.ApyRateBps); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "configured"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.Pause(r.Context(), req.Authority); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.Unpause(r.Context(), req.Authority); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "unpaused"})
}

type dataResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Message          string `json:"message"`
	RemainingSeconds uint64 `json:"remaining_seconds,omitempty"`
	TraceID          string `json:"trace_id,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, types.NewValidationError("invalid request body"))
		return false
	}
	return true
}

func writeData(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	//nolint:errcheck
	json.NewEncoder(w).Encode(dataResponse{Data: v})
}

func writeError(w http.ResponseWriter, r *http.Request, err *types.Error) {
	resp := errorResponse{
		ErrorCode:        err.ErrorCode.String(),
		Message:          err.Error(),
		RemainingSeconds: err.RemainingSeconds,
	}
	// internal faults reference the trace id so operators can find the
	// matching log lines without exposing the underlying error
	if err.StatusCode >= http.StatusInternalServerError {
		resp.Message = "internal service error"
		resp.TraceID = tracing.TraceIDFromContext(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	//nolint:errcheck
	json.NewEncoder(w).Encode(resp)
}
