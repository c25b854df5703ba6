package controller

import (
	"net/http"
	"strconv"

	appRetry "github.com/biopro/interface-exception-collector/internal/application/retry"
	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RetryController handles retry orchestration HTTP requests.
type RetryController struct {
	initiate *appRetry.InitiateRetryUseCase
	cancel   *appRetry.CancelRetryUseCase
	queries  *appRetry.Queries
}

// NewRetryController creates a new RetryController.
func NewRetryController(
	initiate *appRetry.InitiateRetryUseCase,
	cancel *appRetry.CancelRetryUseCase,
	queries *appRetry.Queries,
) *RetryController {
	return &RetryController{
		initiate: initiate,
		cancel:   cancel,
		queries:  queries,
	}
}

// Initiate handles POST /api/v1/exceptions/{transactionId}/retry.
// Acceptance is asynchronous: 202 means the attempt is queued, not done.
func (h *RetryController) Initiate(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	var req InitiateRetryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.initiate.Execute(r.Context(), appRetry.InitiateRetryRequest{
		TransactionID: transactionID,
		Reason:        req.Reason,
		Priority:      req.Priority,
		InitiatedBy:   req.InitiatedBy,
		TriggerID:     uuid.New().String(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, InitiateRetryResponse{
		RetryID:       resp.RetryID,
		TransactionID: transactionID,
		AttemptNumber: resp.AttemptNumber,
		Status:        string(resp.Status),
	})
}

// History handles GET /api/v1/exceptions/{transactionId}/retry-history
func (h *RetryController) History(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	attempts, err := h.queries.History(r.Context(), transactionID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*RetryAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, FromAttempt(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Latest handles GET /api/v1/exceptions/{transactionId}/retry/latest
func (h *RetryController) Latest(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	attempt, err := h.queries.Latest(r.Context(), transactionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAttempt(attempt))
}

// Statistics handles GET /api/v1/exceptions/{transactionId}/retry/statistics
func (h *RetryController) Statistics(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	stats, err := h.queries.Statistics(r.Context(), transactionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromStatistics(stats))
}

// Cancel handles DELETE /api/v1/exceptions/{transactionId}/retry/{attemptNumber}
func (h *RetryController) Cancel(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	attemptNumber, err := strconv.Atoi(chi.URLParam(r, "attemptNumber"))
	if err != nil || attemptNumber < 1 {
		writeError(w, domainErrors.NewValidationError("attempt_number", "must be a positive integer"))
		return
	}

	attempt, err := h.cancel.Execute(r.Context(), transactionID, attemptNumber, uuid.New().String())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAttempt(attempt))
}
