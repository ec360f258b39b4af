package diagnosis

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/types"
)

// Recommender supplies medicines treating a condition; implemented by the
// medicine service.
type Recommender interface {
	MedicinesForCondition(ctx context.Context, condition, location string, limit, offset int) ([]*types.Medicine, error)
}

// Handlers handles HTTP requests for the diagnosis service
type Handlers struct {
	service     *Service
	recommender Recommender
	logger      *logger.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(service *Service, recommender Recommender, log *logger.Logger) *Handlers {
	return &Handlers{service: service, recommender: recommender, logger: log}
}

// RegisterRoutes registers HTTP routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/analyze", h.Analyze).Methods("POST")
	router.HandleFunc("/history", h.History).Methods("GET")
	router.HandleFunc("/{diagnosisID}", h.GetDiagnosis).Methods("GET")
	router.HandleFunc("/{diagnosisID}/medicines", h.RecommendedMedicines).Methods("GET")
}

// Analyze handles symptom analysis requests
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	userID := h.getUserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	var req types.DiagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := h.service.ProduceDiagnosis(r.Context(), userID, &req)
	if err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Failed to produce diagnosis")
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// History handles diagnosis history retrieval
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	userID := h.getUserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	docs, err := h.service.ListUserDiagnoses(r.Context(), userID, limit)
	if err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Failed to list diagnoses")
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, docs)
}

// GetDiagnosis handles single diagnosis retrieval
func (h *Handlers) GetDiagnosis(w http.ResponseWriter, r *http.Request) {
	userID := h.getUserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	diagnosisID := mux.Vars(r)["diagnosisID"]

	doc, err := h.service.GetDiagnosis(r.Context(), diagnosisID, userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// RecommendedMedicines lists medicines treating a diagnosis's condition
func (h *Handlers) RecommendedMedicines(w http.ResponseWriter, r *http.Request) {
	userID := h.getUserID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	diagnosisID := mux.Vars(r)["diagnosisID"]

	doc, err := h.service.GetDiagnosis(r.Context(), diagnosisID, userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if doc.ConditionName == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Diagnosis has no condition name")
		return
	}

	medicines, err := h.recommender.MedicinesForCondition(r.Context(), doc.ConditionName, r.URL.Query().Get("location"), 10, 0)
	if err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Failed to list recommended medicines")
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, medicines)
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
