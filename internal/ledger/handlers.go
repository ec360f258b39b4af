package ledger

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/types"
)

// Handlers handles HTTP requests for the ledger service
type Handlers struct {
	service *Service
	logger  *logger.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(service *Service, log *logger.Logger) *Handlers {
	return &Handlers{service: service, logger: log}
}

// RegisterRoutes registers HTTP routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/records", h.BuildRecord).Methods("POST")
	router.HandleFunc("/records", h.ListRecords).Methods("GET")
	router.HandleFunc("/records/{recordID}", h.GetRecord).Methods("GET")
	router.HandleFunc("/verify", h.Verify).Methods("POST")
	router.HandleFunc("/transactions/{txHash}", h.TransactionStatus).Methods("GET")
}

// buildRecordRequest is the body for record creation
type buildRecordRequest struct {
	SubjectType types.SubjectType      `json:"subject_type"`
	Payload     map[string]interface{} `json:"payload"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// verifyRequest is the body for integrity verification
type verifyRequest struct {
	SubjectType types.SubjectType      `json:"subject_type"`
	Payload     map[string]interface{} `json:"payload"`
	RecordID    string                 `json:"record_id"`
}

// BuildRecord handles integrity record creation
func (h *Handlers) BuildRecord(w http.ResponseWriter, r *http.Request) {
	userID := h.getUserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	var req buildRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	if req.Payload == nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Payload is required")
		return
	}

	record, err := h.service.BuildRecord(r.Context(), req.SubjectType, req.Payload, userID, req.Metadata)
	if err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Failed to build integrity record")
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, record)
}

// GetRecord handles integrity record retrieval
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	recordID := mux.Vars(r)["recordID"]

	record, err := h.service.GetRecord(r.Context(), recordID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// ListRecords handles per-user record listing
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	userID := h.getUserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := h.service.ListRecords(r.Context(), userID, limit)
	if err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Failed to list integrity records")
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, records)
}

// Verify handles integrity verification. A negative verification is a 200
// with verified=false; only a missing record is an error status.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	if req.RecordID == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Record ID is required")
		return
	}
	if req.Payload == nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Payload is required")
		return
	}

	outcome, err := h.service.Verify(r.Context(), req.SubjectType, req.Payload, req.RecordID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, outcome)
}

// TransactionStatus handles anchoring transaction lookups
func (h *Handlers) TransactionStatus(w http.ResponseWriter, r *http.Request) {
	txHash := mux.Vars(r)["txHash"]

	status, err := h.service.TransactionStatus(r.Context(), txHash)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// getUserID extracts the user ID stamped by the auth middleware
func (h *Handlers) getUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// writeServiceError maps a structured service error to an HTTP status
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	if e, ok := err.(*types.Error); ok {
		switch e.Type {
		case types.ErrorTypeValidation:
			h.writeError(w, http.StatusBadRequest, e.Code, e.Message)
		case types.ErrorTypeNotFound:
			h.writeError(w, http.StatusNotFound, e.Code, e.Message)
		case types.ErrorTypeExternal, types.ErrorTypeTimeout:
			h.writeError(w, http.StatusBadGateway, e.Code, e.Message)
		default:
			h.writeError(w, http.StatusInternalServerError, e.Code, e.Message)
		}
		return
	}
	h.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	errorResponse := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	h.writeJSON(w, status, errorResponse)
}
