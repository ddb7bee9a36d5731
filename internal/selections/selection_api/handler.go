package selection_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kerm1977/rifas/internal/auth"
	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/selections"
	"github.com/kerm1977/rifas/internal/utils"
)

type Handler struct {
	Service *selections.Service
	Logger  *logger.Logger
}

func NewHandler(service *selections.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RaffleID reads the {raffleId} URL parameter.
func RaffleID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "raffleId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid raffle id %q: %w", raw, models.ErrValidation)
	}
	return id, nil
}

func (h *Handler) ListSelections(w http.ResponseWriter, r *http.Request) {
	raffleID, err := RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	rows, err := h.Service.ListForRaffle(r.Context(), raffleID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListSelections: raffle %d: %v", raffleID, err))
		utils.WriteError(w, "Could not list selections", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Selections", rows))
}

// Claim expects {"numbers": [...], "customer_name", "customer_phone", "secret", ...}.
// Numbers that were taken come back in the response, not as an error.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	raffleID, err := RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	var req models.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Claim: failed to decode request body: %v", err))
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%v: %w", err, models.ErrValidation))
		return
	}
	req.RaffleID = raffleID

	result, err := h.Service.Claim(r.Context(), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Claim: raffle %d: %v", raffleID, err))
		utils.WriteError(w, "Claim failed", err)
		return
	}

	status := http.StatusCreated
	message := "Numbers claimed"
	if len(result.Claimed) == 0 {
		status = http.StatusConflict
		message = "None of the requested numbers is available"
	}
	_ = utils.WriteJSON(w, status, utils.SuccessResponse(message, result))
}

// Release expects {"selection_ids": [...], "secret": "..."}.
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	raffleID, err := RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	var req models.ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%v: %w", err, models.ErrValidation))
		return
	}
	req.RaffleID = raffleID

	n, err := h.Service.Release(r.Context(), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Release: raffle %d: %v", raffleID, err))
		utils.WriteError(w, "Release failed", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Selections released", map[string]int{"released": n}))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	raffleID, err := RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	var req models.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%v: %w", err, models.ErrValidation))
		return
	}
	req.RaffleID = raffleID
	req.RequesterIsAdmin = auth.IsAdmin(r.Context())

	n, err := h.Service.Cancel(r.Context(), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Cancel: raffle %d: %v", raffleID, err))
		utils.WriteError(w, "Cancel failed", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Selections canceled", map[string]int{"canceled": n}))
}

func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	raffleID, err := RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	var req models.PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%v: %w", err, models.ErrValidation))
		return
	}
	req.RaffleID = raffleID
	req.RequesterIsAdmin = auth.IsAdmin(r.Context())

	n, err := h.Service.Purge(r.Context(), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Purge: raffle %d: %v", raffleID, err))
		utils.WriteError(w, "Purge failed", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Selections deleted", map[string]int{"deleted": n}))
}

// ---------------- WINNERS ----------------

func (h *Handler) GetWinners(w http.ResponseWriter, r *http.Request) {
	raffleID, err := RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	winners, err := h.Service.ResolveAll(r.Context(), raffleID)
	if err != nil {
		utils.WriteError(w, "Could not load winners", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Winners", winners))
}

// AnnounceWinners expects {"numbers": ["07", "23"]}; entries may also be
// comma separated lists.
func (h *Handler) AnnounceWinners(w http.ResponseWriter, r *http.Request) {
	raffleID, err := RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	var body struct {
		Numbers []string `json:"numbers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%v: %w", err, models.ErrValidation))
		return
	}

	result, err := h.Service.Announce(r.Context(), raffleID, body.Numbers)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("AnnounceWinners: raffle %d: %v", raffleID, err))
		utils.WriteError(w, "Could not announce winners", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Winners announced", result))
}

func (h *Handler) ResetWinners(w http.ResponseWriter, r *http.Request) {
	raffleID, err := RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	if err := h.Service.ResetWinners(r.Context(), raffleID); err != nil {
		utils.WriteError(w, "Could not reset winners", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
