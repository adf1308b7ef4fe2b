package chi

import (
	"time"

	"github.com/kailas-cloud/polyqa/internal/domain"
	usageuc "github.com/kailas-cloud/polyqa/internal/usecase/usage"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeQuotaExceeded     ErrorCode = "completion_quota_exceeded"
	ErrorCodeProviderError     ErrorCode = "provider_error"
	ErrorCodeMemoryUnavailable ErrorCode = "memory_unavailable"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query     string `json:"query"`
	Language  string `json:"language,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (r QueryRequest) toDomain() domain.Query {
	return domain.Query{Text: r.Query, Language: r.Language, SessionID: r.SessionID}
}

// DocumentItem is one knowledge-base document in POST /v1/documents.
type DocumentItem struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentsRequest is the body of POST /v1/documents.
type DocumentsRequest struct {
	Documents []DocumentItem `json:"documents"`
}

func (r DocumentsRequest) toDomain() []domain.Document {
	docs := make([]domain.Document, len(r.Documents))
	for i, d := range r.Documents {
		docs[i] = domain.Document{ID: d.ID, Content: d.Content, Metadata: d.Metadata}
	}
	return docs
}

func documentToResponse(d domain.Document) DocumentItem {
	return DocumentItem{ID: d.ID, Content: d.Content, Metadata: d.Metadata}
}

// DocumentsResponse reports how many documents were indexed.
type DocumentsResponse struct {
	Indexed int `json:"indexed"`
}

// TurnResponse is one conversation turn.
type TurnResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Original  string    `json:"original,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnsResponse lists a session's turns, oldest first.
type TurnsResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []TurnResponse `json:"turns"`
}

func turnsToResponse(sessionID string, turns []domain.Turn) TurnsResponse {
	out := make([]TurnResponse, len(turns))
	for i, t := range turns {
		out[i] = TurnResponse{
			ID:        t.ID,
			Role:      string(t.Role),
			Content:   t.Content,
			Original:  t.Original,
			CreatedAt: t.CreatedAt,
		}
	}
	return TurnsResponse{SessionID: sessionID, Turns: out}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// UsageResponse is the body of GET /v1/usage. tokens_remaining is -1 when unlimited.
type UsageResponse struct {
	Period          string    `json:"period"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensRemaining int64     `json:"tokens_remaining"`
	Exhausted       bool      `json:"exhausted"`
}

func usageToResponse(r usageuc.Report) UsageResponse {
	return UsageResponse{
		Period:          string(r.Period),
		PeriodStart:     r.PeriodStart,
		PeriodEnd:       r.PeriodEnd,
		TokensLimit:     r.TokensLimit,
		TokensUsed:      r.TokensUsed,
		TokensRemaining: r.TokensRemaining,
		Exhausted:       r.Exhausted,
	}
}
