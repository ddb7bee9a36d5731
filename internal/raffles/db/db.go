package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/kerm1977/rifas/internal/models"
)

type DB struct {
	Bun *bun.DB
}

type occupancyRow struct {
	RaffleID   int64 `bun:"raffle_id"`
	IsCanceled bool  `bun:"is_canceled"`
	Count      int   `bun:"count"`
}

// ---------------- RAFFLES ----------------

// CreateRaffle inserts the raffle and fills its ID.
func (d *DB) CreateRaffle(ctx context.Context, raffle *models.Raffle) error {
	_, err := d.Bun.NewInsert().Model(raffle).Exec(ctx)
	return err
}

// GetRaffle → fetch one raffle by id, sql.ErrNoRows when absent
func (d *DB) GetRaffle(ctx context.Context, id int64) (*models.Raffle, error) {
	var raffle models.Raffle
	err := d.Bun.NewSelect().
		Model(&raffle).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

func (d *DB) RaffleExists(ctx context.Context, id int64) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Raffle)(nil)).
		Where("id = ?", id).
		Exists(ctx)
}

// RaffleNumberTaken reports whether another raffle already uses raffleNumber.
func (d *DB) RaffleNumberTaken(ctx context.Context, raffleNumber string, exceptID int64) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Raffle)(nil)).
		Where("raffle_number = ?", raffleNumber).
		Where("id <> ?", exceptID).
		Exists(ctx)
}

// ListRaffles → newest draw first, each with its live occupancy
func (d *DB) ListRaffles(ctx context.Context) ([]models.RaffleSummary, error) {
	var raffles []models.Raffle
	err := d.Bun.NewSelect().
		Model(&raffles).
		OrderExpr("draw_date DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var counts []occupancyRow
	err = d.Bun.NewSelect().
		Model((*models.Selection)(nil)).
		Column("raffle_id", "is_canceled").
		ColumnExpr("count(*) AS count").
		Group("raffle_id", "is_canceled").
		Scan(ctx, &counts)
	if err != nil {
		return nil, err
	}

	byRaffle := make(map[int64]*models.Occupancy, len(raffles))
	for _, c := range counts {
		occ := byRaffle[c.RaffleID]
		if occ == nil {
			occ = &models.Occupancy{}
			byRaffle[c.RaffleID] = occ
		}
		if c.IsCanceled {
			occ.Canceled += c.Count
		} else {
			occ.Active += c.Count
		}
		occ.Total += c.Count
	}

	out := make([]models.RaffleSummary, 0, len(raffles))
	for _, r := range raffles {
		summary := models.RaffleSummary{Raffle: r}
		if occ := byRaffle[r.ID]; occ != nil {
			summary.Occupancy = *occ
		}
		out = append(out, summary)
	}
	return out, nil
}

// UpdateRaffle rewrites the editable columns. Winning numbers are left alone.
func (d *DB) UpdateRaffle(ctx context.Context, raffle *models.Raffle) error {
	res, err := d.Bun.NewUpdate().
		Model(raffle).
		Column("raffle_number", "name", "price", "prize", "detail", "draw_date", "draw_time",
			"image_filename", "payment_contact_name", "payment_contact_phone").
		Where("id = ?", raffle.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res)
}

// DeleteRaffle removes the raffle and every selection of it in one transaction.
func (d *DB) DeleteRaffle(ctx context.Context, id int64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Selection)(nil)).
			Where("raffle_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete selections: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*models.Raffle)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete raffle: %w", err)
		}
		return expectRows(res)
	})
}

// SetWinningNumbers replaces the whole winning list.
func (d *DB) SetWinningNumbers(ctx context.Context, id int64, numbers models.WinningNumbers) error {
	if numbers == nil {
		numbers = models.WinningNumbers{}
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Raffle)(nil)).
		Set("winning_numbers = ?", numbers).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res)
}

func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsNoRows reports whether err means the row was absent.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
