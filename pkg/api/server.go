// Package api exposes the engine over HTTP JSON: intent registration,
// execution, lifecycle updates, withdrawal, record reads, and the event
// stream, plus health and Prometheus metrics endpoints.
package api

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gabikreal1/AlgoFlow/pkg/authz"
	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/circuitbreaker"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/ledger"
	"github.com/gabikreal1/AlgoFlow/pkg/logger"
	"github.com/gabikreal1/AlgoFlow/pkg/router"
)

// Engine bundles the sandbox runtime with the deployed app ids the API
// operates on.
type Engine struct {
	Env         *chain.Env
	Ledger      *ledger.Ledger
	LedgerAppID uint64
	RouterAppID uint64
	// DefaultKeeper is used as the execute sender when a request names
	// none.
	DefaultKeeper codec.Address
}

// Server is the engine's HTTP front end.
type Server struct {
	port          string
	engine        *Engine
	breakers      *circuitbreaker.Set
	log           logger.Logger
	metricsAPIKey string
	mux           *http.ServeMux
	httpServer    *http.Server
}

// ErrBreakerOpen is returned for execute requests on a tripped intent.
var ErrBreakerOpen = errors.New("api: circuit breaker open for intent")

// NewServer creates the API server. breakers guard the execute endpoint
// per intent id.
func NewServer(port string, engine *Engine, breakers *circuitbreaker.Set, metricsAPIKey string, log logger.Logger) *Server {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	s := &Server{
		port:          port,
		engine:        engine,
		breakers:      breakers,
		log:           log,
		metricsAPIKey: metricsAPIKey,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/v1/intents", s.handleRegister)
	s.mux.HandleFunc("GET /api/v1/intents/{id}", s.handleGetIntent)
	s.mux.HandleFunc("POST /api/v1/intents/{id}/execute", s.handleExecute)
	s.mux.HandleFunc("POST /api/v1/intents/{id}/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/v1/intents/{id}/withdraw", s.handleWithdraw)
	s.mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	s.mux.Handle("GET /metrics", s.metricsAuthMiddleware(promhttp.Handler()))
}

// Handler returns the server's routing handler, wrapped with request ids.
func (s *Server) Handler() http.Handler {
	return s.requestIDMiddleware(s.mux)
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{Addr: ":" + s.port, Handler: s.Handler()}
	s.log.Info("[API] listening on port %s", s.port)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// requestIDMiddleware tags every request with a uuid for log correlation.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		s.log.Debug("[API] %s %s %s request_id=%s", r.RemoteAddr, r.Method, r.URL.Path, requestID)
		next.ServeHTTP(w, r)
	})
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}
		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	owner, err := codec.AddressFromHex(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid owner address: %v", err))
		return
	}
	keeper := codec.ZeroAddress
	if req.Keeper != "" {
		if keeper, err = codec.AddressFromHex(req.Keeper); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid keeper address: %v", err))
			return
		}
	}
	version := req.Version
	if version == 0 {
		version = 1
	}

	hash := codec.PlanHash(req.Plan)
	result, err := s.engine.Env.Submit([]chain.Txn{
		chain.Payment{
			Sender:   owner,
			Receiver: chain.AppAddress(s.engine.LedgerAppID),
			Amount:   req.Collateral,
		},
		chain.AppCall{Sender: owner, AppID: s.engine.LedgerAppID, Args: [][]byte{
			chain.MethodSelector(ledger.SigRegisterIntent),
			hash.Bytes(),
			req.Plan,
			req.Trigger,
			chain.Itob(req.Collateral),
			keeper.Bytes(),
			chain.Itob(version),
			chain.Itob(req.AppEscrowID),
			chain.Itob(req.AppASAID),
		}},
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	ret, err := chain.AppReturn(result.Logs[1])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	id, err := decodeUint64(ret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterResponse{
		IntentID:     id,
		WorkflowHash: hash.Hex(),
	})
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	record, err := s.engine.Ledger.ExportIntent(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, intentJSON(id, record))
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	breaker := s.breakers.For(id)
	if breaker.IsOpen() {
		writeError(w, http.StatusTooManyRequests, fmt.Errorf("%w %d", ErrBreakerOpen, id))
		return
	}

	sender := s.engine.DefaultKeeper
	if req.Sender != "" {
		if sender, err = codec.AddressFromHex(req.Sender); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sender address: %v", err))
			return
		}
	}
	feeRecipient := codec.ZeroAddress
	if req.FeeRecipient != "" {
		if feeRecipient, err = codec.AddressFromHex(req.FeeRecipient); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid fee recipient address: %v", err))
			return
		}
	}

	_, err = s.engine.Env.Submit([]chain.Txn{
		chain.AppCall{Sender: sender, AppID: s.engine.RouterAppID, Args: [][]byte{
			chain.MethodSelector(router.SigExecuteIntent),
			chain.Itob(id),
			req.Plan,
			feeRecipient.Bytes(),
		}},
	})
	if err != nil {
		breaker.RecordFailure()
		writeError(w, statusFor(err), err)
		return
	}

	record, err := s.engine.Ledger.ExportIntent(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, intentJSON(id, record))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}
	sender, err := codec.AddressFromHex(req.Sender)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sender address: %v", err))
		return
	}

	_, err = s.engine.Env.Submit([]chain.Txn{
		chain.AppCall{Sender: sender, AppID: s.engine.LedgerAppID, Args: [][]byte{
			chain.MethodSelector(ledger.SigUpdateIntentStatus),
			chain.Itob(id),
			chain.Itob(req.Status),
			req.Detail,
		}},
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	record, err := s.engine.Ledger.ExportIntent(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, intentJSON(id, record))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}
	sender, err := codec.AddressFromHex(req.Sender)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sender address: %v", err))
		return
	}
	recipient := codec.ZeroAddress
	if req.Recipient != "" {
		if recipient, err = codec.AddressFromHex(req.Recipient); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid recipient address: %v", err))
			return
		}
	}

	_, err = s.engine.Env.Submit([]chain.Txn{
		chain.AppCall{Sender: sender, AppID: s.engine.LedgerAppID, Args: [][]byte{
			chain.MethodSelector(ledger.SigWithdrawIntent),
			chain.Itob(id),
			recipient.Bytes(),
		}},
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	record, err := s.engine.Ledger.ExportIntent(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, intentJSON(id, record))
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	events := s.engine.Env.Events()
	out := make([]EventJSON, 0, len(events))
	for _, payload := range events {
		out = append(out, EventJSON{
			Topic:   eventTopic(payload),
			Payload: hexutil.Bytes(payload),
		})
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: out})
}

// eventTopic extracts the known topic prefix of an event payload, if any.
func eventTopic(payload []byte) string {
	for _, topic := range []string{
		chain.TopicIntentCreated,
		chain.TopicIntentStatus,
		chain.TopicExecutionResult,
	} {
		if chain.HasTopic(payload, topic) {
			return topic
		}
	}
	return ""
}

func pathID(r *http.Request) (uint64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid intent id %q", raw)
	}
	return id, nil
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("return value is %d bytes, want 8", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// statusFor maps the engine's error classes to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrIntentNotFound):
		return http.StatusNotFound
	case errors.Is(err, authz.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrBadTransition),
		errors.Is(err, ledger.ErrNotTerminal),
		errors.Is(err, ledger.ErrNothingToWithdraw),
		errors.Is(err, router.ErrWrongStatus),
		errors.Is(err, router.ErrTriggerNotMet),
		errors.Is(err, router.ErrOracleValueMissing):
		return http.StatusConflict
	case errors.Is(err, router.ErrHashMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrBlobTooLarge),
		errors.Is(err, ledger.ErrCollateralTooLow),
		errors.Is(err, ledger.ErrMissingPaymentLeg),
		errors.Is(err, authz.ErrFeeOutOfBounds),
		errors.Is(err, router.ErrEmptyPlan),
		errors.Is(err, router.ErrUnknownOpcode),
		errors.Is(err, router.ErrZeroAmount),
		errors.Is(err, router.ErrBadStep):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
