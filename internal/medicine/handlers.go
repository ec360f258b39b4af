package medicine

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/types"
)

// Handlers handles HTTP requests for the medicine service
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
	router.HandleFunc("/search", h.Search).Methods("GET")
	router.HandleFunc("/popular", h.Popular).Methods("GET")
	router.HandleFunc("/{medicineID}", h.Get).Methods("GET")
	router.HandleFunc("/{medicineID}/alternatives", h.Alternatives).Methods("GET")
	router.HandleFunc("/{medicineID}/verify", h.Verify).Methods("POST")
}

// Search handles catalog search
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	criteria := &types.MedicineSearchCriteria{
		Condition: q.Get("condition"),
		Name:      q.Get("name"),
		Location:  q.Get("location"),
		Limit:     intParam(q.Get("limit"), 0),
		Offset:    intParam(q.Get("offset"), 0),
	}
	if raw := q.Get("ingredients"); raw != "" {
		for _, ing := range strings.Split(raw, ",") {
			if ing = strings.TrimSpace(ing); ing != "" {
				criteria.Ingredients = append(criteria.Ingredients, ing)
			}
		}
	}

	meds, err := h.service.Search(r.Context(), criteria)
	if err != nil {
		h.logger.WithError(err).Error("Failed to search medicines")
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, meds)
}

// Popular handles popular-medicine listing
func (h *Handlers) Popular(w http.ResponseWriter, r *http.Request) {
	meds, err := h.service.Popular(r.Context(),
		intParam(r.URL.Query().Get("limit"), 0), r.URL.Query().Get("location"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list popular medicines")
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, meds)
}

// Get handles single medicine retrieval
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	med, err := h.service.Get(r.Context(), mux.Vars(r)["medicineID"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, med)
}

// Alternatives handles alternative-medicine lookup
func (h *Handlers) Alternatives(w http.ResponseWriter, r *http.Request) {
	meds, err := h.service.Alternatives(r.Context(), mux.Vars(r)["medicineID"],
		r.URL.Query().Get("location"), intParam(r.URL.Query().Get("limit"), 0))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, meds)
}

// Verify handles medicine ledger verification
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	record, err := h.service.VerifyOnLedger(r.Context(), mux.Vars(r)["medicineID"], userID)
	if err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Failed to verify medicine")
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
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
