package raffle_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/raffles"
	"github.com/kerm1977/rifas/internal/report"
	"github.com/kerm1977/rifas/internal/selections"
	"github.com/kerm1977/rifas/internal/selections/selection_api"
	"github.com/kerm1977/rifas/internal/utils"
)

const defaultQRSize = 256

type Handler struct {
	Raffles       *raffles.Service
	Selections    *selections.Service
	PublicBaseURL string
	Logger        *logger.Logger
}

func NewHandler(raffleService *raffles.Service, selectionService *selections.Service, publicBaseURL string, log *logger.Logger) *Handler {
	return &Handler{
		Raffles:       raffleService,
		Selections:    selectionService,
		PublicBaseURL: publicBaseURL,
		Logger:        log,
	}
}

// RaffleDetail is everything the public raffle page shows.
type RaffleDetail struct {
	Raffle    *models.Raffle         `json:"raffle"`
	Occupancy models.Occupancy       `json:"occupancy"`
	Board     []models.BoardCell     `json:"board"`
	Customers []models.CustomerGroup `json:"customers"`
	Winners   []models.WinnerInfo    `json:"winners"`
}

func (h *Handler) ListRaffles(w http.ResponseWriter, r *http.Request) {
	list, err := h.Raffles.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListRaffles: %v", err))
		utils.WriteError(w, "Could not list raffles", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffles", list))
}

func (h *Handler) GetRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID, err := selection_api.RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}
	ctx := r.Context()

	raffle, err := h.Raffles.Get(ctx, raffleID)
	if err != nil {
		utils.WriteError(w, "Raffle not found", err)
		return
	}
	rows, err := h.Selections.ListForRaffle(ctx, raffleID)
	if err != nil {
		utils.WriteError(w, "Could not load selections", err)
		return
	}
	occ, err := h.Selections.Occupancy(ctx, raffleID)
	if err != nil {
		utils.WriteError(w, "Could not load occupancy", err)
		return
	}

	winners := make([]models.WinnerInfo, 0, len(raffle.WinningNumbers))
	for _, num := range raffle.WinningNumbers {
		winners = append(winners, h.Selections.ResolveWinner(ctx, raffleID, num))
	}

	detail := RaffleDetail{
		Raffle:    raffle,
		Occupancy: occ,
		Board:     selections.BuildBoard(rows),
		Customers: selections.GroupByCustomer(rows),
		Winners:   winners,
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle", detail))
}

func (h *Handler) CreateRaffle(w http.ResponseWriter, r *http.Request) {
	var in models.RaffleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%v: %w", err, models.ErrValidation))
		return
	}

	raffle, err := h.Raffles.Create(r.Context(), in)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateRaffle: %v", err))
		utils.WriteError(w, "Could not create raffle", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Raffle created", raffle))
}

func (h *Handler) UpdateRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID, err := selection_api.RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	var in models.RaffleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%v: %w", err, models.ErrValidation))
		return
	}

	raffle, err := h.Raffles.Update(r.Context(), raffleID, in)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdateRaffle: raffle %d: %v", raffleID, err))
		utils.WriteError(w, "Could not update raffle", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle updated", raffle))
}

func (h *Handler) DeleteRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID, err := selection_api.RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}

	if err := h.Raffles.Delete(r.Context(), raffleID); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("DeleteRaffle: raffle %d: %v", raffleID, err))
		utils.WriteError(w, "Could not delete raffle", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- EXPORTS ----------------

func (h *Handler) ReportText(w http.ResponseWriter, r *http.Request) {
	raffle, rows, ok := h.loadForReport(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.TextFilename(raffle)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Text(raffle, rows)))
}

func (h *Handler) ReportCSV(w http.ResponseWriter, r *http.Request) {
	raffle, rows, ok := h.loadForReport(w, r)
	if !ok {
		return
	}

	body, err := report.CSV(rows)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ReportCSV: raffle %d: %v", raffle.ID, err))
		utils.WriteError(w, "Could not build report", fmt.Errorf("%v: %w", err, models.ErrStorage))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.CSVFilename(raffle)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// SharePNG returns a QR code pointing at the public raffle page. ?size= sets
// the edge in pixels.
func (h *Handler) SharePNG(w http.ResponseWriter, r *http.Request) {
	raffleID, err := selection_api.RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return
	}
	ok, err := h.Raffles.Exists(r.Context(), raffleID)
	if err != nil {
		utils.WriteError(w, "Could not load raffle", err)
		return
	}
	if !ok {
		utils.WriteError(w, "Raffle not found", fmt.Errorf("raffle %d: %w", raffleID, models.ErrNotFound))
		return
	}

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 1024 {
			utils.WriteError(w, "Invalid size", fmt.Errorf("size must be between 64 and 1024: %w", models.ErrValidation))
			return
		}
		size = n
	}

	png, err := report.ShareQR(report.ShareURL(h.PublicBaseURL, raffleID), size)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("SharePNG: raffle %d: %v", raffleID, err))
		utils.WriteError(w, "Could not build QR code", fmt.Errorf("%v: %w", err, models.ErrStorage))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) loadForReport(w http.ResponseWriter, r *http.Request) (*models.Raffle, []models.Selection, bool) {
	raffleID, err := selection_api.RaffleID(r)
	if err != nil {
		utils.WriteError(w, "Invalid raffle", err)
		return nil, nil, false
	}
	raffle, err := h.Raffles.Get(r.Context(), raffleID)
	if err != nil {
		utils.WriteError(w, "Raffle not found", err)
		return nil, nil, false
	}
	rows, err := h.Selections.ListForRaffle(r.Context(), raffleID)
	if err != nil {
		utils.WriteError(w, "Could not load selections", err)
		return nil, nil, false
	}
	return raffle, rows, true
}
