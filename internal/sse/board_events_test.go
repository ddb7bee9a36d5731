package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerm1977/rifas/internal/models"
)

func TestEmit_OnlyReachesSameRaffle(t *testing.T) {
	e := NewBoardEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	one := e.Subscribe(ctx, 1)
	two := e.Subscribe(ctx, 2)

	e.Emit(models.NewSelectionEvent(models.EventSelectionClaimed, 1, []string{"05"}, nil))

	select {
	case ev := <-one:
		assert.Equal(t, []string{"05"}, ev.Numbers)
	case <-time.After(time.Second):
		t.Fatal("subscriber of raffle 1 got nothing")
	}

	select {
	case ev := <-two:
		t.Fatalf("raffle 2 should not see %v", ev)
	default:
	}
}

func TestEmit_FullBufferDoesNotBlock(t *testing.T) {
	e := NewBoardEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = e.Subscribe(ctx, 1)
	for i := 0; i < 50; i++ {
		e.Emit(models.NewSelectionEvent(models.EventSelectionClaimed, 1, nil, nil))
	}
}

func TestSubscribe_RemovedOnCancel(t *testing.T) {
	e := NewBoardEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := e.Subscribe(ctx, 7)
	require.Equal(t, 1, e.ClientCount(7))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel is closed after removal")
	case <-time.After(time.Second):
		t.Fatal("client was not removed")
	}
	assert.Equal(t, 0, e.ClientCount(7))
}
