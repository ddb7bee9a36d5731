package analytics_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kerm1977/rifas/internal/analytics"
	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/selections/selection_api"
	"github.com/kerm1977/rifas/internal/utils"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterRoutes registers the analytics routes on a chi router. Callers put
// it behind administrator auth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics/raffles", func(r chi.Router) {
		r.Get("/{raffleId}", h.GetRaffleAnalytics)
		r.Post("/batch", h.GetBatchAnalytics)
	})
}

func (h *Handler) GetRaffleAnalytics(w http.ResponseWriter, r *http.Request) {
	raffleID, err := selection_api.RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	result, err := h.Service.GetRaffleAnalytics(r.Context(), raffleID)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to get analytics for raffle %d: %v", raffleID, err))
		utils.WriteError(w, "Could not load analytics", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle analytics", result))
}

// GetBatchAnalytics expects {"raffle_ids": [1, 2, 3]}.
func (h *Handler) GetBatchAnalytics(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RaffleIDs []int64 `json:"raffle_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%v: %w", err, models.ErrValidation))
		return
	}
	if len(body.RaffleIDs) == 0 {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("raffle_ids is required: %w", models.ErrValidation))
		return
	}

	result, err := h.Service.GetBatchAnalytics(r.Context(), body.RaffleIDs)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to get batch analytics: %v", err))
		utils.WriteError(w, "Could not load analytics", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle analytics", result))
}
