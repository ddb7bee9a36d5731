package selections

import (
	"context"
	"fmt"

	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/selections/db"
	"github.com/kerm1977/rifas/internal/utils"
)

// ResolveWinner reports who holds number in a raffle: an active holder first,
// else a canceled one, else Unclaimed. It never fails; a storage error comes
// back as StorageFailure so display paths always have something to render.
func (s *Service) ResolveWinner(ctx context.Context, raffleID int64, number string) models.WinnerInfo {
	num, err := utils.Canonicalize(number)
	if err != nil {
		return models.WinnerInfo{Number: number, Status: models.WinnerUnclaimed}
	}

	row, err := s.DB.FindByNumber(ctx, raffleID, num)
	if err != nil {
		if db.IsNoRows(err) {
			return models.WinnerInfo{Number: num, Status: models.WinnerUnclaimed}
		}
		s.Logger.Error("WINNERS", fmt.Sprintf("raffle %d: lookup of %s failed: %v", raffleID, num, err))
		return models.WinnerInfo{Number: num, Status: models.WinnerStorageFailure}
	}

	info := models.WinnerInfo{
		Number:        num,
		Status:        models.WinnerActive,
		SelectionID:   row.ID,
		CustomerName:  row.CustomerName,
		CustomerPhone: row.CustomerPhone,
	}
	if row.IsCanceled {
		info.Status = models.WinnerCanceled
	}
	return info
}

// ResolveAll resolves every announced number of the raffle, in announced order.
func (s *Service) ResolveAll(ctx context.Context, raffleID int64) ([]models.WinnerInfo, error) {
	raffle, err := s.Raffles.Get(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	out := make([]models.WinnerInfo, 0, len(raffle.WinningNumbers))
	for _, num := range raffle.WinningNumbers {
		out = append(out, s.ResolveWinner(ctx, raffleID, num))
	}
	return out, nil
}

// Announce replaces the winning numbers of a raffle. Tokens may be single
// numbers or comma separated lists; the ones that are not 00-99 are ignored.
func (s *Service) Announce(ctx context.Context, raffleID int64, tokens []string) (*models.AnnounceResult, error) {
	numbers, ignored := utils.CanonicalizeAll(utils.FlattenNumbers(tokens))
	if len(numbers) == 0 {
		return nil, fmt.Errorf("no valid winning number in %v: %w", tokens, models.ErrValidation)
	}
	if len(ignored) > 0 {
		s.Logger.Warn("WINNERS", fmt.Sprintf("raffle %d: ignoring invalid numbers %v", raffleID, ignored))
	}

	if err := s.Raffles.SetWinningNumbers(ctx, raffleID, numbers); err != nil {
		return nil, err
	}

	s.Logger.Info("WINNERS", fmt.Sprintf("raffle %d: winners announced %v", raffleID, numbers))
	s.notify(ctx, models.NewSelectionEvent(models.EventWinnersAnnounced, raffleID, numbers, nil))
	return &models.AnnounceResult{Numbers: numbers, Ignored: ignored}, nil
}

// ResetWinners clears the winning numbers. Clearing an empty list is fine.
func (s *Service) ResetWinners(ctx context.Context, raffleID int64) error {
	if err := s.Raffles.SetWinningNumbers(ctx, raffleID, []string{}); err != nil {
		return err
	}
	s.Logger.Info("WINNERS", fmt.Sprintf("raffle %d: winners cleared", raffleID))
	s.notify(ctx, models.NewSelectionEvent(models.EventWinnersReset, raffleID, nil, nil))
	return nil
}
