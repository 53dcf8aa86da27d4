/**
 * @description
 * This file contains the HTTP handlers for the credit-score endpoints. Handlers
 * parse the request, call the credit service, and map its error kinds onto HTTP
 * status codes with a JSON `{"error": "..."}` body.
 *
 * @dependencies
 * - encoding/json, errors, log/slog, net/http, strconv, strings: Standard Go libraries.
 * - internal/app, internal/store: For service logic and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/credible/credit-service/internal/app"
	"github.com/credible/credit-service/internal/store"
	"github.com/credible/credit-service/pkg/scoringclient"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxRequestBodyBytes = 1 << 20

// CreditScoreHandlers holds the application service that handlers will use.
type CreditScoreHandlers struct {
	service *app.Service
	logger  *slog.Logger
}

// NewCreditScoreHandlers creates a new instance of CreditScoreHandlers.
func NewCreditScoreHandlers(service *app.Service, logger *slog.Logger) *CreditScoreHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreditScoreHandlers{service: service, logger: logger}
}

// calculateCreditScoreRequest accepts both the snake_case field and the camelCase
// field the web client sends.
type calculateCreditScoreRequest struct {
	UserID      string `json:"user_id"`
	UserIDCamel string `json:"userId"`
}

func (req calculateCreditScoreRequest) userID() string {
	if id := strings.TrimSpace(req.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(req.UserIDCamel)
}

// CalculateCreditScoreHandler runs the scoring flow and returns the stored score.
func (h *CreditScoreHandlers) CalculateCreditScoreHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	var req calculateCreditScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, err := uuid.Parse(req.userID())
	if err != nil {
		writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}
	if !authorizeUser(w, r, userID) {
		return
	}

	if err := h.service.AllowCalculation(r.Context(), userID); err != nil {
		var rlErr *app.RateLimitError
		if errors.As(err, &rlErr) {
			w.Header().Set("Retry-After", strconv.Itoa(rlErr.RetryAfterSeconds))
		}
		writeError(w, http.StatusTooManyRequests, "Too many credit score requests. Please try again later.")
		return
	}

	score, err := h.service.CalculateCreditScore(r.Context(), userID, app.TriggerAPI)
	if err != nil {
		status, message := calculationErrorResponse(err)
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusOK, score)
}

// calculationErrorResponse maps a flow error to its HTTP status and a message
// safe to show the caller.
func calculationErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, scoringclient.ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."
	case errors.Is(err, scoringclient.ErrQuotaExhausted):
		return http.StatusPaymentRequired, "Payment required. Please add funds to continue."
	case errors.Is(err, app.ErrScoringNotConfigured):
		return http.StatusInternalServerError, "Credit scoring is not configured"
	case errors.Is(err, scoringclient.ErrMalformedResponse):
		return http.StatusInternalServerError, "Credit scoring returned an invalid response"
	case errors.Is(err, scoringclient.ErrUpstream):
		return http.StatusInternalServerError, "Credit scoring service error"
	case errors.Is(err, app.ErrPersistence):
		return http.StatusInternalServerError, "Failed to save credit score"
	default:
		return http.StatusInternalServerError, "Failed to calculate credit score"
	}
}

// LatestCreditScoreHandler returns the user's most recent credit score.
func (h *CreditScoreHandlers) LatestCreditScoreHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok || !authorizeUser(w, r, userID) {
		return
	}

	score, err := h.service.LatestCreditScore(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrCreditScoreNotFound) {
			writeError(w, http.StatusNotFound, "No credit score found")
			return
		}
		h.logger.Error("failed to load latest credit score", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load credit score")
		return
	}

	writeJSON(w, http.StatusOK, score)
}

// CreditScoreHistoryHandler returns the user's credit scores, newest first.
func (h *CreditScoreHandlers) CreditScoreHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok || !authorizeUser(w, r, userID) {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	scores, err := h.service.CreditScoreHistory(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to load credit score history", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load credit scores")
		return
	}

	writeJSON(w, http.StatusOK, scores)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return uuid.Nil, false
	}
	return userID, true
}

// authorizeUser lets internal callers act for any user and JWT callers act
// only for themselves. With auth disabled there is no subject and all pass.
func authorizeUser(w http.ResponseWriter, r *http.Request, userID uuid.UUID) bool {
	if IsInternalCall(r.Context()) {
		return true
	}
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		return true
	}
	if !strings.EqualFold(subject, userID.String()) {
		writeError(w, http.StatusForbidden, "You can only access your own credit score")
		return false
	}
	return true
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
