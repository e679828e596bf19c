package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	governanceengine "consortium/contexts/governance/governance-engine"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	governancehttp "consortium/contexts/governance/governance-engine/transport/http"

	_ "consortium/internal/platform/httpserver/docs"
	"github.com/ethereum/go-ethereum/common"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Consortium governance API
// @version 1.0
// @BasePath /

const callerHeader = "X-Caller-Address"

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	governance governanceengine.Module
	metrics    http.Handler
	httpServer *http.Server
}

func New(
	governance governanceengine.Module,
	metrics http.Handler,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		governance: governance,
		metrics:    metrics,
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux.HandleFunc("POST /v1/governance/transactions", s.handleSubmitTransaction)
	s.mux.HandleFunc("GET /v1/governance/transactions", s.handleListTransactions)
	s.mux.HandleFunc("GET /v1/governance/transactions/count", s.handleTransactionCount)
	s.mux.HandleFunc("GET /v1/governance/transactions/{id}", s.handleGetTransaction)
	s.mux.HandleFunc("POST /v1/governance/transactions/{id}/confirm", s.handleConfirmTransaction)
	s.mux.HandleFunc("POST /v1/governance/transactions/{id}/revoke", s.handleRevokeTransaction)
	s.mux.HandleFunc("POST /v1/governance/transactions/{id}/evaluate", s.handleEvaluateOutcome)

	s.mux.HandleFunc("GET /v1/governance/confirmations", s.handleConfirmations)
	s.mux.HandleFunc("GET /v1/governance/revocations", s.handleRevocations)
	s.mux.HandleFunc("GET /v1/governance/statuses", s.handleStatuses)
	s.mux.HandleFunc("GET /v1/governance/timestamps", s.handleTimestamps)

	s.mux.HandleFunc("GET /v1/governance/members", s.handleMembers)
	s.mux.HandleFunc("POST /v1/governance/members/leave", s.handleLeave)
	s.mux.HandleFunc("GET /v1/governance/invitees", s.handleInvitees)
	s.mux.HandleFunc("GET /v1/governance/applicants", s.handleApplicants)
	s.mux.HandleFunc("POST /v1/governance/applications", s.handleSubmitApplication)
	s.mux.HandleFunc("GET /v1/governance/addresses/{address}", s.handleMembership)

	s.mux.HandleFunc("GET /v1/governance/actions", s.handleActions)
	s.mux.HandleFunc("GET /v1/governance/actions/{key}", s.handleAction)

	s.mux.HandleFunc("GET /v1/governance/balance", s.handleBalance)
	s.mux.HandleFunc("POST /v1/governance/deposits", s.handleDeposit)
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req governancehttp.SubmitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.governance.Handler.SubmitTransactionHandler(r.Context(), caller, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathTransactionID(w, r)
	if !ok {
		return
	}
	resp, err := s.governance.Handler.ConfirmTransactionHandler(r.Context(), caller, id)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevokeTransaction(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathTransactionID(w, r)
	if !ok {
		return
	}
	resp, err := s.governance.Handler.RevokeTransactionHandler(r.Context(), caller, id)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvaluateOutcome(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTransactionID(w, r)
	if !ok {
		return
	}
	resp, err := s.governance.Handler.EvaluateOutcomeHandler(r.Context(), id)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTransactionID(w, r)
	if !ok {
		return
	}
	resp, err := s.governance.Handler.TransactionHandler(r.Context(), id)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransactionCount(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.TransactionCountHandler(r.Context())
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	resp, err := s.governance.Handler.TransactionsHandler(r.Context(), from, to)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfirmations(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	resp, err := s.governance.Handler.ConfirmationsHandler(r.Context(), from, to)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevocations(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	resp, err := s.governance.Handler.RevocationsHandler(r.Context(), from, to)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	resp, err := s.governance.Handler.StatusesHandler(r.Context(), from, to)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTimestamps(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	resp, err := s.governance.Handler.TimestampsHandler(r.Context(), from, to)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.MembersHandler(r.Context())
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInvitees(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.InviteesHandler(r.Context())
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApplicants(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.ApplicantsHandler(r.Context())
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMembership(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("address")
	if !common.IsHexAddress(raw) {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_address", "address must be a 20-byte hex string")
		return
	}
	resp, err := s.governance.Handler.MembershipHandler(r.Context(), common.HexToAddress(raw))
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := s.governance.Handler.LeaveHandler(r.Context(), caller); err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := s.governance.Handler.SubmitApplicationHandler(r.Context(), caller); err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.ActionsHandler(r.Context())
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.ActionHandler(r.Context(), r.PathValue("key"))
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.BalanceHandler(r.Context())
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req governancehttp.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.governance.Handler.DepositHandler(r.Context(), caller, req)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeGovernanceDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var dispatchErr *domainerrors.DispatchError
	switch {
	case errors.As(err, &dispatchErr):
		writeJSON(w, http.StatusBadGateway, governancehttp.ErrorResponse{
			Code:       "dispatch_failure",
			Message:    err.Error(),
			ReturnData: dispatchErr.ReturnData,
		})
	case errors.Is(err, domainerrors.ErrAuthorization):
		writeGovernanceError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domainerrors.ErrIdempotencyConflict):
		writeGovernanceError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, domainerrors.ErrStateConflict):
		writeGovernanceError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domainerrors.ErrNotFound):
		writeGovernanceError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domainerrors.ErrInvariantViolation):
		writeGovernanceError(w, http.StatusUnprocessableEntity, "invariant_violation", err.Error())
	case errors.Is(err, domainerrors.ErrDispatchFailure):
		writeGovernanceError(w, http.StatusBadGateway, "dispatch_failure", err.Error())
	default:
		s.logger.Error("governance request failed",
			"event", "http_governance_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeGovernanceError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func requireCaller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := strings.TrimSpace(r.Header.Get(callerHeader))
	if raw == "" {
		writeGovernanceError(w, http.StatusUnauthorized, "missing_caller", callerHeader+" header is required")
		return common.Address{}, false
	}
	if !common.IsHexAddress(raw) {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_caller", callerHeader+" must be a 20-byte hex address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func pathTransactionID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_transaction_id", "transaction id must be a non-negative integer")
		return 0, false
	}
	return id, true
}

func queryRange(w http.ResponseWriter, r *http.Request) (uint64, uint64, bool) {
	query := r.URL.Query()
	from, errFrom := strconv.ParseUint(query.Get("from"), 10, 64)
	to, errTo := strconv.ParseUint(query.Get("to"), 10, 64)
	if errFrom != nil || errTo != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_range", "from and to must be non-negative integers")
		return 0, 0, false
	}
	return from, to, true
}

func writeGovernanceError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, governancehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
