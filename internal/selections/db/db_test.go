package db_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/kerm1977/rifas/internal/database/testdb"
	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/selections/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB, int64) {
	bunDB := testdb.New(t)
	raffle := &models.Raffle{
		RaffleNumber: "001",
		Name:         "Rifa",
		Price:        1000,
		Prize:        "Bicicleta",
		DrawDate:     time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:    time.Now().UTC(),
	}
	_, err := bunDB.NewInsert().Model(raffle).Exec(context.Background())
	require.NoError(t, err)
	return &db.DB{Bun: bunDB}, bunDB, raffle.ID
}

func template(raffleID int64, name, phone string) models.Selection {
	return models.Selection{
		RaffleID:      raffleID,
		CustomerName:  name,
		CustomerPhone: phone,
		SecretHash:    "hash-" + name,
		CreatedAt:     time.Now().UTC(),
		PaymentMethod: models.DefaultPaymentMethod,
	}
}

func TestClaimNumbers_InsertsAndRejects(t *testing.T) {
	selDB, _, raffleID := setupTestDB(t)
	ctx := context.Background()

	claimed, rejected, err := selDB.ClaimNumbers(ctx, template(raffleID, "Ana", "8888-0000"), []string{"05", "17"})
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, claimed, 2)
	assert.Equal(t, "05", claimed[0].Number)
	assert.Equal(t, "17", claimed[1].Number)
	assert.NotZero(t, claimed[0].ID)
	assert.False(t, claimed[0].IsCanceled)

	claimed, rejected, err = selDB.ClaimNumbers(ctx, template(raffleID, "Luis", "7777-0000"), []string{"05", "23"})
	require.NoError(t, err)
	assert.Equal(t, []string{"05"}, rejected)
	require.Len(t, claimed, 1)
	assert.Equal(t, "23", claimed[0].Number)

	holder, err := selDB.FindByNumber(ctx, raffleID, "05")
	require.NoError(t, err)
	assert.Equal(t, "Ana", holder.CustomerName, "the first holder is untouched")
}

func TestClaimNumbers_AllTaken(t *testing.T) {
	selDB, _, raffleID := setupTestDB(t)
	ctx := context.Background()

	_, _, err := selDB.ClaimNumbers(ctx, template(raffleID, "Ana", "1"), []string{"01"})
	require.NoError(t, err)

	claimed, rejected, err := selDB.ClaimNumbers(ctx, template(raffleID, "Luis", "2"), []string{"01"})
	require.NoError(t, err)
	assert.Empty(t, claimed)
	assert.Equal(t, []string{"01"}, rejected)
}

func TestClaimNumbers_ConcurrentClaimsOneWinner(t *testing.T) {
	selDB, bunDB, raffleID := setupTestDB(t)
	ctx := context.Background()

	const contenders = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := fmt.Sprintf("customer-%d", n)
			claimed, rejected, err := selDB.ClaimNumbers(ctx, template(raffleID, name, name), []string{"42"})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if len(claimed) == 1 {
				winners = append(winners, name)
			}
			losers += len(rejected)
		}(i)
	}
	wg.Wait()

	assert.Len(t, winners, 1)
	assert.Equal(t, contenders-1, losers)

	count, err := bunDB.NewSelect().Model((*models.Selection)(nil)).Where("number = ?", "42").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClaimNumbers_SameNumberOtherRaffle(t *testing.T) {
	selDB, bunDB, raffleID := setupTestDB(t)
	ctx := context.Background()

	other := &models.Raffle{RaffleNumber: "002", Name: "Otra", Price: 1, Prize: "x", DrawDate: time.Now(), CreatedAt: time.Now()}
	_, err := bunDB.NewInsert().Model(other).Exec(ctx)
	require.NoError(t, err)

	_, rejected, err := selDB.ClaimNumbers(ctx, template(raffleID, "Ana", "1"), []string{"07"})
	require.NoError(t, err)
	assert.Empty(t, rejected)

	_, rejected, err = selDB.ClaimNumbers(ctx, template(other.ID, "Ana", "1"), []string{"07"})
	require.NoError(t, err)
	assert.Empty(t, rejected)
}

func TestReleaseSelections(t *testing.T) {
	selDB, _, raffleID := setupTestDB(t)
	ctx := context.Background()

	claimed, _, err := selDB.ClaimNumbers(ctx, template(raffleID, "Ana", "1"), []string{"05", "17"})
	require.NoError(t, err)
	ids := []int64{claimed[0].ID, claimed[1].ID}

	// veto leaves everything in place
	veto := errors.New("nope")
	_, err = selDB.ReleaseSelections(ctx, ids, func(rows []models.Selection) error {
		assert.Len(t, rows, 2)
		return veto
	})
	assert.ErrorIs(t, err, veto)
	rows, err := selDB.ListByRaffle(ctx, raffleID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	n, err := selDB.ReleaseSelections(ctx, ids, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err = selDB.ListByRaffle(ctx, raffleID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// freed numbers can be claimed again
	claimed, rejected, err := selDB.ClaimNumbers(ctx, template(raffleID, "Luis", "2"), []string{"05"})
	require.NoError(t, err)
	assert.Empty(t, rejected)
	assert.Len(t, claimed, 1)
}

func TestReleaseSelections_MissingIDRollsBack(t *testing.T) {
	selDB, _, raffleID := setupTestDB(t)
	ctx := context.Background()

	claimed, _, err := selDB.ClaimNumbers(ctx, template(raffleID, "Ana", "1"), []string{"05"})
	require.NoError(t, err)

	_, err = selDB.ReleaseSelections(ctx, []int64{claimed[0].ID, 9999}, nil)
	assert.ErrorIs(t, err, db.ErrMissingRows)

	rows, err := selDB.ListByRaffle(ctx, raffleID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCancelSelections(t *testing.T) {
	selDB, _, raffleID := setupTestDB(t)
	ctx := context.Background()

	claimed, _, err := selDB.ClaimNumbers(ctx, template(raffleID, "Ana", "1"), []string{"05", "17"})
	require.NoError(t, err)

	rows, err := selDB.CancelSelections(ctx, raffleID, []int64{claimed[1].ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsCanceled)

	// canceling again keeps it canceled
	_, err = selDB.CancelSelections(ctx, raffleID, []int64{claimed[1].ID})
	require.NoError(t, err)

	holder, err := selDB.FindByNumber(ctx, raffleID, "17")
	require.NoError(t, err)
	assert.True(t, holder.IsCanceled)

	occ, err := selDB.Occupancy(ctx, raffleID)
	require.NoError(t, err)
	assert.Equal(t, models.Occupancy{Active: 1, Canceled: 1, Total: 2}, occ)

	// canceled numbers stay occupied
	_, rejected, err := selDB.ClaimNumbers(ctx, template(raffleID, "Luis", "2"), []string{"17"})
	require.NoError(t, err)
	assert.Equal(t, []string{"17"}, rejected)
}

func TestCancelSelections_ForeignAndMissing(t *testing.T) {
	selDB, _, raffleID := setupTestDB(t)
	ctx := context.Background()

	claimed, _, err := selDB.ClaimNumbers(ctx, template(raffleID, "Ana", "1"), []string{"05"})
	require.NoError(t, err)

	_, err = selDB.CancelSelections(ctx, raffleID+1, []int64{claimed[0].ID})
	assert.ErrorIs(t, err, db.ErrForeignRaffle)

	_, err = selDB.CancelSelections(ctx, raffleID, []int64{claimed[0].ID, 4242})
	assert.ErrorIs(t, err, db.ErrMissingRows)

	holder, err := selDB.FindByNumber(ctx, raffleID, "05")
	require.NoError(t, err)
	assert.False(t, holder.IsCanceled, "failed cancel changed nothing")
}

func TestPurgeSelections_CanceledRows(t *testing.T) {
	selDB, _, raffleID := setupTestDB(t)
	ctx := context.Background()

	claimed, _, err := selDB.ClaimNumbers(ctx, template(raffleID, "Ana", "1"), []string{"05"})
	require.NoError(t, err)
	_, err = selDB.CancelSelections(ctx, raffleID, []int64{claimed[0].ID})
	require.NoError(t, err)

	rows, err := selDB.PurgeSelections(ctx, raffleID, []int64{claimed[0].ID})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = selDB.FindByNumber(ctx, raffleID, "05")
	assert.True(t, db.IsNoRows(err))
}

func TestListByRaffle_OrderedByNumber(t *testing.T) {
	selDB, _, raffleID := setupTestDB(t)
	ctx := context.Background()

	_, _, err := selDB.ClaimNumbers(ctx, template(raffleID, "Ana", "1"), []string{"40", "03"})
	require.NoError(t, err)
	_, _, err = selDB.ClaimNumbers(ctx, template(raffleID, "Luis", "2"), []string{"17"})
	require.NoError(t, err)

	rows, err := selDB.ListByRaffle(ctx, raffleID)
	require.NoError(t, err)
	var numbers []string
	for _, r := range rows {
		numbers = append(numbers, r.Number)
	}
	assert.Equal(t, []string{"03", "17", "40"}, numbers)
}

func TestBulkInsert_KeepsCanceledFlag(t *testing.T) {
	selDB, bunDB, raffleID := setupTestDB(t)
	ctx := context.Background()

	rows := []models.Selection{
		template(raffleID, "Ana", "1"),
		template(raffleID, "Ana", "1"),
		template(raffleID, "Luis", "2"),
	}
	rows[0].Number, rows[1].Number, rows[2].Number = "07", "13", "42"
	rows[2].IsCanceled = true
	_, err := bunDB.NewInsert().Model(&rows).Exec(ctx)
	require.NoError(t, err)

	occ, err := selDB.Occupancy(ctx, raffleID)
	require.NoError(t, err)
	assert.Equal(t, 2, occ.Active)
	assert.Equal(t, 1, occ.Canceled)

	got, err := selDB.FindByNumber(ctx, raffleID, "42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsCanceled)
}
