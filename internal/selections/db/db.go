package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/kerm1977/rifas/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ErrMissingRows means some of the referenced selections do not exist.
var ErrMissingRows = errors.New("selections not found")

// ---------------- CLAIMS ----------------

// ClaimNumbers inserts one row per number, copying everything but Number
// from template, all in one transaction. A number whose (raffle_id, number)
// key is already present is skipped by the store and returned in rejected.
// Any other error rolls the whole batch back.
func (d *DB) ClaimNumbers(ctx context.Context, template models.Selection, numbers []string) ([]models.Selection, []string, error) {
	var (
		claimed  []models.Selection
		rejected []string
	)

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		inserted := make([]string, 0, len(numbers))
		for _, num := range numbers {
			row := template
			row.ID = 0
			row.Number = num

			res, err := tx.NewInsert().
				Model(&row).
				On("CONFLICT (raffle_id, number) DO NOTHING").
				Returning("NULL").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("insert %s: %w", num, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				rejected = append(rejected, num)
				continue
			}
			inserted = append(inserted, num)
		}

		if len(inserted) == 0 {
			return nil
		}
		return tx.NewSelect().
			Model(&claimed).
			Where("raffle_id = ?", template.RaffleID).
			Where("number IN (?)", bun.In(inserted)).
			Order("number ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, nil, err
	}
	return claimed, rejected, nil
}

// ---------------- RELEASE / CANCEL ----------------

// ReleaseSelections deletes the given rows in one transaction. check sees the
// locked rows first and may veto the delete. Returns ErrMissingRows when any
// id is absent.
func (d *DB) ReleaseSelections(ctx context.Context, ids []int64, check func(rows []models.Selection) error) (int, error) {
	var released int
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rows, err := lockRows(ctx, tx, ids)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(rows); err != nil {
				return err
			}
		}
		if len(rows) != len(ids) {
			return ErrMissingRows
		}

		res, err := tx.NewDelete().
			Model((*models.Selection)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if int(n) != len(ids) {
			return ErrMissingRows
		}
		released = int(n)
		return nil
	})
	return released, err
}

// CancelSelections flags the rows canceled in one transaction. Rows already
// canceled stay canceled. All ids must belong to raffleID.
func (d *DB) CancelSelections(ctx context.Context, raffleID int64, ids []int64) ([]models.Selection, error) {
	var rows []models.Selection
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		rows, err = lockRows(ctx, tx, ids)
		if err != nil {
			return err
		}
		if err := sameRaffle(rows, raffleID, len(ids)); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*models.Selection)(nil)).
			Set("is_canceled = ?", true).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx); err != nil {
			return err
		}
		for i := range rows {
			rows[i].IsCanceled = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PurgeSelections deletes rows of raffleID regardless of state.
func (d *DB) PurgeSelections(ctx context.Context, raffleID int64, ids []int64) ([]models.Selection, error) {
	var rows []models.Selection
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		rows, err = lockRows(ctx, tx, ids)
		if err != nil {
			return err
		}
		if err := sameRaffle(rows, raffleID, len(ids)); err != nil {
			return err
		}
		_, err = tx.NewDelete().
			Model((*models.Selection)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ErrForeignRaffle means a referenced row belongs to another raffle.
var ErrForeignRaffle = errors.New("selection belongs to another raffle")

func sameRaffle(rows []models.Selection, raffleID int64, want int) error {
	if len(rows) != want {
		return ErrMissingRows
	}
	for _, r := range rows {
		if r.RaffleID != raffleID {
			return ErrForeignRaffle
		}
	}
	return nil
}

// lockRows loads the rows by id, locking them on postgres.
func lockRows(ctx context.Context, tx bun.Tx, ids []int64) ([]models.Selection, error) {
	var rows []models.Selection
	q := tx.NewSelect().
		Model(&rows).
		Where("id IN (?)", bun.In(ids)).
		Order("id ASC")
	if tx.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// ---------------- QUERIES ----------------

// ListByRaffle → every live selection of a raffle, ordered by number
func (d *DB) ListByRaffle(ctx context.Context, raffleID int64) ([]models.Selection, error) {
	rows := []models.Selection{}
	err := d.Bun.NewSelect().
		Model(&rows).
		Where("raffle_id = ?", raffleID).
		Order("number ASC").
		Scan(ctx)
	return rows, err
}

func (d *DB) Occupancy(ctx context.Context, raffleID int64) (models.Occupancy, error) {
	var occ models.Occupancy

	total, err := d.Bun.NewSelect().
		Model((*models.Selection)(nil)).
		Where("raffle_id = ?", raffleID).
		Count(ctx)
	if err != nil {
		return occ, err
	}
	canceled, err := d.Bun.NewSelect().
		Model((*models.Selection)(nil)).
		Where("raffle_id = ?", raffleID).
		Where("is_canceled = ?", true).
		Count(ctx)
	if err != nil {
		return occ, err
	}

	occ.Total = total
	occ.Canceled = canceled
	occ.Active = total - canceled
	return occ, nil
}

// FindByNumber returns the holder of a number, preferring an active row over
// a canceled one. sql.ErrNoRows when the number is free.
func (d *DB) FindByNumber(ctx context.Context, raffleID int64, number string) (*models.Selection, error) {
	var row models.Selection
	err := d.Bun.NewSelect().
		Model(&row).
		Where("raffle_id = ?", raffleID).
		Where("number = ?", number).
		OrderExpr("is_canceled ASC, id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// IsNoRows reports whether err means the row was absent.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
