package selection_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/sse"
	"github.com/kerm1977/rifas/internal/utils"
)

type RaffleChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// SSEHandler streams board changes of one raffle to browsers.
type SSEHandler struct {
	Logger  *logger.Logger
	Emitter *sse.BoardEventEmitter
	Raffles RaffleChecker
}

func NewSSEHandler(log *logger.Logger, emitter *sse.BoardEventEmitter, raffles RaffleChecker) *SSEHandler {
	return &SSEHandler{Logger: log, Emitter: emitter, Raffles: raffles}
}

// HandleBoardEvents streams ledger and winner events for {raffleId}.
func (h *SSEHandler) HandleBoardEvents(w http.ResponseWriter, r *http.Request) {
	raffleID, err := RaffleID(r)
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	h.setupSSEHeaders(w)

	ctx := r.Context()
	eventChan := h.Emitter.Subscribe(ctx, raffleID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"raffle_id\":%d}\n\n", raffleID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to board events for raffle %d", raffleID))

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for raffle %d", raffleID))
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize board event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from board events for raffle %d", raffleID))
			return
		}
	}
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
