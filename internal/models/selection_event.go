package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSelectionClaimed  EventType = "selection.claimed"
	EventSelectionReleased EventType = "selection.released"
	EventSelectionCanceled EventType = "selection.canceled"
	EventWinnersAnnounced  EventType = "winners.announced"
	EventWinnersReset      EventType = "winners.reset"
)

// SelectionEvent is published to Kafka and pushed to board subscribers
// whenever the ledger or the winners of a raffle change.
type SelectionEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	Type         EventType `json:"type"`
	RaffleID     int64     `json:"raffle_id"`
	Numbers      []string  `json:"numbers"`
	SelectionIDs []int64   `json:"selection_ids,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewSelectionEvent stamps a fresh event id and time.
func NewSelectionEvent(eventType EventType, raffleID int64, numbers []string, selectionIDs []int64) SelectionEvent {
	if numbers == nil {
		numbers = []string{}
	}
	return SelectionEvent{
		EventID:      uuid.New(),
		Type:         eventType,
		RaffleID:     raffleID,
		Numbers:      numbers,
		SelectionIDs: selectionIDs,
		OccurredAt:   time.Now().UTC(),
	}
}
