package sse

import (
	"context"
	"sync"

	"github.com/kerm1977/rifas/internal/models"
)

// BoardEventEmitter fans ledger events out to SSE clients watching a raffle.
type BoardEventEmitter struct {
	clients map[int64][]chan models.SelectionEvent
	mu      sync.RWMutex
}

func NewBoardEventEmitter() *BoardEventEmitter {
	return &BoardEventEmitter{
		clients: make(map[int64][]chan models.SelectionEvent),
	}
}

// Subscribe registers a client for raffleID until ctx is done. The channel is
// closed on removal.
func (e *BoardEventEmitter) Subscribe(ctx context.Context, raffleID int64) <-chan models.SelectionEvent {
	clientChan := make(chan models.SelectionEvent, 10)

	e.mu.Lock()
	e.clients[raffleID] = append(e.clients[raffleID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(raffleID, clientChan)
	}()

	return clientChan
}

// Emit sends the event to every subscriber of its raffle. Slow clients with a
// full buffer miss the event.
func (e *BoardEventEmitter) Emit(event models.SelectionEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[event.RaffleID] {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *BoardEventEmitter) removeClient(raffleID int64, clientChan chan models.SelectionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[raffleID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[raffleID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[raffleID]) == 0 {
		delete(e.clients, raffleID)
	}
}

// ClientCount returns the number of clients watching a raffle.
func (e *BoardEventEmitter) ClientCount(raffleID int64) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[raffleID])
}
