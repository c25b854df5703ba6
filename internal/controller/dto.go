package controller

import (
	"time"

	"github.com/biopro/interface-exception-collector/internal/domain/exception"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (string enums, validation tags).
// Controllers convert these to application layer requests before calling
// business logic.

// AcknowledgeRequest holds the input for acknowledging an exception.
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" validate:"required"`
	Notes          string `json:"notes,omitempty"`
}

// ResolveRequest holds the input for manually resolving an exception.
type ResolveRequest struct {
	ResolvedBy string `json:"resolved_by" validate:"required"`
	Method     string `json:"resolution_method,omitempty" validate:"omitempty,oneof=RETRY_SUCCESS MANUAL_RESOLUTION CUSTOMER_RESOLVED"`
	Notes      string `json:"resolution_notes,omitempty"`
}

// InitiateRetryRequest holds the input for initiating a retry attempt.
type InitiateRetryRequest struct {
	InitiatedBy string `json:"initiated_by" validate:"required"`
	Reason      string `json:"reason,omitempty"`
	Priority    string `json:"priority,omitempty" validate:"omitempty,oneof=LOW NORMAL HIGH"`
}

// --- Response DTOs ---

// ExceptionResponse represents an exception in API responses.
type ExceptionResponse struct {
	ID               string     `json:"id"`
	TransactionID    string     `json:"transaction_id"`
	InterfaceType    string     `json:"interface_type"`
	ExceptionReason  string     `json:"exception_reason"`
	Operation        string     `json:"operation"`
	ExternalID       string     `json:"external_id,omitempty"`
	CustomerID       string     `json:"customer_id,omitempty"`
	LocationCode     string     `json:"location_code,omitempty"`
	Category         string     `json:"category"`
	Severity         string     `json:"severity"`
	Status           string     `json:"status"`
	Retryable        bool       `json:"retryable"`
	RetryCount       int        `json:"retry_count"`
	MaxRetries       int        `json:"max_retries"`
	Timestamp        time.Time  `json:"timestamp"`
	ProcessedAt      time.Time  `json:"processed_at"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy   *string    `json:"acknowledged_by,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy       *string    `json:"resolved_by,omitempty"`
	ResolutionMethod *string    `json:"resolution_method,omitempty"`
	ResolutionNotes  *string    `json:"resolution_notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// RetryAttemptResponse represents a retry attempt in API responses.
type RetryAttemptResponse struct {
	ID                 string     `json:"id"`
	TransactionID      string     `json:"transaction_id"`
	AttemptNumber      int        `json:"attempt_number"`
	Status             string     `json:"status"`
	InitiatedBy        string     `json:"initiated_by"`
	Reason             string     `json:"reason,omitempty"`
	Priority           string     `json:"priority,omitempty"`
	InitiatedAt        time.Time  `json:"initiated_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	ResultSuccess      bool       `json:"result_success"`
	ResultMessage      *string    `json:"result_message,omitempty"`
	ResultResponseCode *int       `json:"result_response_code,omitempty"`
	ResultErrorDetails *string    `json:"result_error_details,omitempty"`
}

// InitiateRetryResponse acknowledges an accepted retry request.
type InitiateRetryResponse struct {
	RetryID       string `json:"retry_id"`
	TransactionID string `json:"transaction_id"`
	AttemptNumber int    `json:"attempt_number"`
	Status        string `json:"status"`
}

// RetryStatisticsResponse aggregates attempt counts for a transaction.
type RetryStatisticsResponse struct {
	TransactionID string     `json:"transaction_id"`
	Total         int        `json:"total_attempts"`
	Pending       int        `json:"pending"`
	Retrying      int        `json:"retrying"`
	Successful    int        `json:"successful"`
	Failed        int        `json:"failed"`
	Cancelled     int        `json:"cancelled"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromException converts a domain exception to API response.
func FromException(ex *exception.Exception) *ExceptionResponse {
	resp := &ExceptionResponse{
		ID:              ex.ID.String(),
		TransactionID:   ex.TransactionID,
		InterfaceType:   string(ex.InterfaceType),
		ExceptionReason: ex.ExceptionReason,
		Operation:       ex.Operation,
		ExternalID:      ex.ExternalID,
		CustomerID:      ex.CustomerID,
		LocationCode:    ex.LocationCode,
		Category:        string(ex.Category),
		Severity:        string(ex.Severity),
		Status:          string(ex.Status),
		Retryable:       ex.Retryable,
		RetryCount:      ex.RetryCount,
		MaxRetries:      ex.MaxRetries,
		Timestamp:       ex.Timestamp,
		ProcessedAt:     ex.ProcessedAt,
		AcknowledgedAt:  ex.AcknowledgedAt,
		AcknowledgedBy:  ex.AcknowledgedBy,
		ResolvedAt:      ex.ResolvedAt,
		ResolvedBy:      ex.ResolvedBy,
		ResolutionNotes: ex.ResolutionNotes,
		CreatedAt:       ex.CreatedAt,
		UpdatedAt:       ex.UpdatedAt,
	}
	if ex.ResolutionMethod != nil {
		m := string(*ex.ResolutionMethod)
		resp.ResolutionMethod = &m
	}
	return resp
}

// FromAttempt converts a domain retry attempt to API response.
func FromAttempt(a *exception.RetryAttempt) *RetryAttemptResponse {
	return &RetryAttemptResponse{
		ID:                 a.ID.String(),
		TransactionID:      a.TransactionID,
		AttemptNumber:      a.AttemptNumber,
		Status:             string(a.Status),
		InitiatedBy:        a.InitiatedBy,
		Reason:             a.Reason,
		Priority:           a.Priority,
		InitiatedAt:        a.InitiatedAt,
		StartedAt:          a.StartedAt,
		CompletedAt:        a.CompletedAt,
		ResultSuccess:      a.ResultSuccess,
		ResultMessage:      a.ResultMessage,
		ResultResponseCode: a.ResultResponseCode,
		ResultErrorDetails: a.ResultErrorDetails,
	}
}

// FromStatistics converts attempt statistics to API response.
func FromStatistics(s *exception.AttemptStatistics) *RetryStatisticsResponse {
	return &RetryStatisticsResponse{
		TransactionID: s.TransactionID,
		Total:         s.Total,
		Pending:       s.Pending,
		Retrying:      s.Retrying,
		Successful:    s.Successful,
		Failed:        s.Failed,
		Cancelled:     s.Cancelled,
		LastAttemptAt: s.LastAttemptAt,
	}
}
