package controller

import (
	"net/http"

	appException "github.com/biopro/interface-exception-collector/internal/application/exception"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ExceptionController handles exception lifecycle HTTP requests.
type ExceptionController struct {
	exceptionRepo exception.Repository
	acknowledge   *appException.AcknowledgeUseCase
	resolve       *appException.ResolveUseCase
}

// NewExceptionController creates a new ExceptionController.
func NewExceptionController(
	exceptionRepo exception.Repository,
	acknowledge *appException.AcknowledgeUseCase,
	resolve *appException.ResolveUseCase,
) *ExceptionController {
	return &ExceptionController{
		exceptionRepo: exceptionRepo,
		acknowledge:   acknowledge,
		resolve:       resolve,
	}
}

// List handles GET /api/v1/exceptions
func (h *ExceptionController) List(w http.ResponseWriter, r *http.Request) {
	filter := exception.ListFilter{}

	if s := r.URL.Query().Get("interface_type"); s != "" {
		it := exception.InterfaceType(s)
		filter.InterfaceType = &it
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := exception.Status(s)
		filter.Status = &status
	}
	if s := r.URL.Query().Get("severity"); s != "" {
		sev := exception.Severity(s)
		filter.Severity = &sev
	}
	if s := r.URL.Query().Get("customer_id"); s != "" {
		filter.CustomerID = &s
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, err)
		return
	}
	filter.SortBy = r.URL.Query().Get("sort_by")
	filter.SortOrder = r.URL.Query().Get("sort_order")

	exceptions, err := h.exceptionRepo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*ExceptionResponse, 0, len(exceptions))
	for _, ex := range exceptions {
		resp = append(resp, FromException(ex))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/exceptions/{transactionId}
func (h *ExceptionController) Get(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	ex, err := h.exceptionRepo.GetByTransactionID(r.Context(), transactionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromException(ex))
}

// Acknowledge handles PUT /api/v1/exceptions/{transactionId}/acknowledge
func (h *ExceptionController) Acknowledge(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	var req AcknowledgeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ex, err := h.acknowledge.Execute(r.Context(), transactionID, req.AcknowledgedBy, uuid.New().String())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromException(ex))
}

// Resolve handles PUT /api/v1/exceptions/{transactionId}/resolve
func (h *ExceptionController) Resolve(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	var req ResolveRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ex, err := h.resolve.Execute(r.Context(), appException.ResolveRequest{
		TransactionID: transactionID,
		ResolvedBy:    req.ResolvedBy,
		Method:        exception.ResolutionMethod(req.Method),
		Notes:         req.Notes,
		TriggerID:     uuid.New().String(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromException(ex))
}
