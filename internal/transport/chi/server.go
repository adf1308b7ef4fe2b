package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/polyqa/internal/domain"
	healthuc "github.com/kailas-cloud/polyqa/internal/usecase/health"
	usageuc "github.com/kailas-cloud/polyqa/internal/usecase/usage"
)

const defaultTurnsLimit = 50

// QueryProcessor answers a helpdesk question.
type QueryProcessor interface {
	Process(ctx context.Context, q domain.Query) (domain.QueryResult, error)
}

// DocumentService manages knowledge-base documents.
type DocumentService interface {
	Ingest(ctx context.Context, docs []domain.Document) (int, error)
	Document(ctx context.Context, id string) (domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// TurnReader reads a session's conversation history.
type TurnReader interface {
	History(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports completion budget consumption.
type UsageReporter interface {
	GetReport(ctx context.Context, period usageuc.Period) usageuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the HTTP API.
type Server struct {
	query         QueryProcessor
	documents     DocumentService
	turns         TurnReader
	health        HealthReporter
	usage         UsageReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. turns may be nil when conversation memory is off.
func NewServer(
	query QueryProcessor,
	documents DocumentService,
	turns TurnReader,
	health HealthReporter,
	logger *zap.Logger,
) *Server {
	s := &Server{
		query:     query,
		documents: documents,
		turns:     turns,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrBatchTooLarge, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrCompletionQuotaExceeded, http.StatusPaymentRequired, ErrorCodeQuotaExceeded),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, ErrorCodeProviderError),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeProviderError),
		sentinelHandler(domain.ErrTranslationFailed, http.StatusBadGateway, ErrorCodeProviderError),
		sentinelHandler(domain.ErrMemoryUnavailable, http.StatusServiceUnavailable, ErrorCodeMemoryUnavailable),
	}
	return s
}

// WithUsage enables GET /v1/usage.
func (s *Server) WithUsage(u UsageReporter) *Server {
	s.usage = u
	return s
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.answer(w, r, req.toDomain())
}

// QueryGet handles GET /v1/query?q=...&language=...&session_id=...
func (s *Server) QueryGet(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	params := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, true, "q", params, &req.Query); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid query parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "language", params, &req.Language); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid query parameter language: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "session_id", params, &req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid query parameter session_id: "+err.Error())
		return
	}

	s.answer(w, r, req.toDomain())
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request, q domain.Query) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	result, err := s.query.Process(ctx, q)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// IngestDocuments handles POST /v1/documents.
func (s *Server) IngestDocuments(w http.ResponseWriter, r *http.Request) {
	var req DocumentsRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "documents must not be empty")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	n, err := s.documents.Ingest(ctx, req.toDomain())
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentsResponse{Indexed: n})
}

// GetDocument handles GET /v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(doc))
}

// DeleteDocument handles DELETE /v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTurns handles GET /v1/sessions/{id}/turns?limit=
func (s *Server) ListTurns(w http.ResponseWriter, r *http.Request) {
	if s.turns == nil {
		s.handleDomainError(w, domain.ErrMemoryUnavailable)
		return
	}

	sessionID := chi.URLParam(r, "id")
	limit := defaultTurnsLimit
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid query parameter limit: "+err.Error())
		return
	}
	if limit <= 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "limit must be positive")
		return
	}

	turns, err := s.turns.History(r.Context(), sessionID, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if len(turns) == 0 {
		s.handleDomainError(w, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, turnsToResponse(sessionID, turns))
}

// GetUsage handles GET /v1/usage?period=day|month
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "usage reporting is disabled")
		return
	}

	var raw string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &raw); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid query parameter period: "+err.Error())
		return
	}
	period, err := usageuc.ParsePeriod(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, usageToResponse(s.usage.GetReport(r.Context(), period)))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: report.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if usage == nil {
		return
	}
	if usage.EmbeddingTokens > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	}
	if usage.CompletionTokens > 0 {
		w.Header().Set("X-Completion-Tokens", strconv.Itoa(usage.CompletionTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrInvalidDocument,
		domain.ErrBatchTooLarge,
		domain.ErrNotFound,
		domain.ErrCompletionQuotaExceeded,
		domain.ErrCompletionProviderError,
		domain.ErrEmbeddingProviderError,
		domain.ErrTranslationFailed,
		domain.ErrMemoryUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
