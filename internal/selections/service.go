package selections

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/selections/db"
	"github.com/kerm1977/rifas/internal/utils"
)

type DBLayer interface {
	ClaimNumbers(ctx context.Context, template models.Selection, numbers []string) ([]models.Selection, []string, error)
	ReleaseSelections(ctx context.Context, ids []int64, check func(rows []models.Selection) error) (int, error)
	CancelSelections(ctx context.Context, raffleID int64, ids []int64) ([]models.Selection, error)
	PurgeSelections(ctx context.Context, raffleID int64, ids []int64) ([]models.Selection, error)
	ListByRaffle(ctx context.Context, raffleID int64) ([]models.Selection, error)
	Occupancy(ctx context.Context, raffleID int64) (models.Occupancy, error)
	FindByNumber(ctx context.Context, raffleID int64, number string) (*models.Selection, error)
}

// RaffleRegistry is the part of the raffle registry the ledger depends on.
type RaffleRegistry interface {
	Get(ctx context.Context, id int64) (*models.Raffle, error)
	Exists(ctx context.Context, id int64) (bool, error)
	SetWinningNumbers(ctx context.Context, id int64, numbers []string) error
}

type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

type NumberLocker interface {
	LockNumbers(ctx context.Context, raffleID int64, numbers []string, owner string) (locked []string, busy []string, err error)
	UnlockNumbers(ctx context.Context, raffleID int64, numbers []string, owner string) error
}

type EventPublisher interface {
	PublishSelectionEvent(ctx context.Context, event models.SelectionEvent) error
}

type BoardEmitter interface {
	Emit(event models.SelectionEvent)
}

// Service is the selection ledger: the only writer of selection rows.
type Service struct {
	DB          DBLayer
	Raffles     RaffleRegistry
	Hasher      SecretHasher
	Locks       NumberLocker
	Publisher   EventPublisher // optional
	BoardEvents BoardEmitter   // optional
	Logger      *logger.Logger
}

func NewService(dbLayer DBLayer, raffles RaffleRegistry, hasher SecretHasher, locks NumberLocker, publisher EventPublisher, board BoardEmitter, log *logger.Logger) *Service {
	return &Service{
		DB:          dbLayer,
		Raffles:     raffles,
		Hasher:      hasher,
		Locks:       locks,
		Publisher:   publisher,
		BoardEvents: board,
		Logger:      log,
	}
}

// ---------------- CLAIM ----------------

// Claim books every requested number that is still free. Numbers already
// taken come back in Rejected and tokens that are not 00-99 in Invalid; neither
// is an error. All inserts commit together.
func (s *Service) Claim(ctx context.Context, req models.ClaimRequest) (*models.ClaimResult, error) {
	name := strings.TrimSpace(req.CustomerName)
	phone := strings.TrimSpace(req.CustomerPhone)
	if name == "" || phone == "" || req.Secret == "" {
		return nil, fmt.Errorf("customer name, phone and secret are required: %w", models.ErrValidation)
	}

	numbers, invalid := utils.CanonicalizeAll(utils.FlattenNumbers(req.Numbers))
	if len(numbers) == 0 {
		return nil, fmt.Errorf("no valid number in %v: %w", req.Numbers, models.ErrValidation)
	}
	if len(invalid) > 0 {
		s.Logger.Warn("LEDGER", fmt.Sprintf("raffle %d: ignoring invalid numbers %v", req.RaffleID, invalid))
	}

	if err := s.requireRaffle(ctx, req.RaffleID); err != nil {
		return nil, err
	}

	hash, err := s.Hasher.Hash(req.Secret)
	if err != nil {
		return nil, fmt.Errorf("secret cannot be used: %v: %w", err, models.ErrValidation)
	}

	owner := uuid.NewString()
	locked, busy, err := s.Locks.LockNumbers(ctx, req.RaffleID, numbers, owner)
	if err != nil {
		s.Logger.Warn("REDIS", fmt.Sprintf("claim holds unavailable, relying on the store: %v", err))
		locked = nil
	} else if len(busy) > 0 {
		// A hold may outlive the claim that took it; the store decides.
		s.Logger.Debug("REDIS", fmt.Sprintf("raffle %d: numbers %v held elsewhere, checking the store", req.RaffleID, busy))
	}
	defer func() {
		if err := s.Locks.UnlockNumbers(context.Background(), req.RaffleID, locked, owner); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("failed to drop claim holds: %v", err))
		}
	}()

	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = models.DefaultPaymentMethod
	}
	template := models.Selection{
		RaffleID:            req.RaffleID,
		CustomerName:        name,
		CustomerPhone:       phone,
		SecretHash:          hash,
		CreatedAt:           time.Now().UTC(),
		PaymentMethod:       paymentMethod,
		PaymentContactName:  strings.TrimSpace(req.PaymentContactName),
		PaymentContactPhone: strings.TrimSpace(req.PaymentContactPhone),
	}

	claimed, rejected, err := s.DB.ClaimNumbers(ctx, template, numbers)
	if err != nil {
		s.Logger.Error("LEDGER", fmt.Sprintf("raffle %d: claim rolled back: %v", req.RaffleID, err))
		return nil, fmt.Errorf("claim numbers: %v: %w", err, models.ErrStorage)
	}

	result := &models.ClaimResult{
		Claimed:  claimed,
		Rejected: inRequestOrder(numbers, rejected),
		Invalid:  invalid,
	}
	if result.Claimed == nil {
		result.Claimed = []models.Selection{}
	}

	s.Logger.LogLedger("CLAIM", req.RaffleID, fmt.Sprintf("claimed=%v rejected=%v invalid=%v", result.ClaimedNumbers(), result.Rejected, result.Invalid))
	if len(claimed) > 0 {
		s.notify(ctx, models.NewSelectionEvent(models.EventSelectionClaimed, req.RaffleID, result.ClaimedNumbers(), selectionIDs(claimed)))
	}
	return result, nil
}

// ---------------- RELEASE ----------------

// Release deletes the given selections once the secret matches, freeing their
// numbers. The secret must match the first id's hash and every other distinct
// hash in the batch. Canceled selections are not releasable by secret.
func (s *Service) Release(ctx context.Context, req models.ReleaseRequest) (int, error) {
	ids := uniqueIDs(req.SelectionIDs)
	if len(ids) == 0 || req.Secret == "" {
		return 0, fmt.Errorf("selection ids and secret are required: %w", models.ErrValidation)
	}

	var (
		raffleID int64
		numbers  []string
	)
	n, err := s.DB.ReleaseSelections(ctx, ids, func(rows []models.Selection) error {
		byID := make(map[int64]models.Selection, len(rows))
		for _, r := range rows {
			byID[r.ID] = r
		}

		first, ok := byID[ids[0]]
		if !ok {
			return fmt.Errorf("selection %d does not exist: %w", ids[0], models.ErrAuth)
		}
		if req.RaffleID != 0 && first.RaffleID != req.RaffleID {
			return fmt.Errorf("selection %d is not part of raffle %d: %w", first.ID, req.RaffleID, models.ErrNotFound)
		}
		if !s.Hasher.Verify(req.Secret, first.SecretHash) {
			return fmt.Errorf("secret does not match: %w", models.ErrAuth)
		}

		checked := map[string]bool{first.SecretHash: true}
		for _, id := range ids[1:] {
			row, ok := byID[id]
			if !ok {
				return fmt.Errorf("selection %d: %w", id, models.ErrNotFound)
			}
			if row.RaffleID != first.RaffleID {
				return fmt.Errorf("selections must belong to one raffle: %w", models.ErrValidation)
			}
			if !checked[row.SecretHash] {
				if !s.Hasher.Verify(req.Secret, row.SecretHash) {
					return fmt.Errorf("secret does not match selection %d: %w", id, models.ErrAuth)
				}
				checked[row.SecretHash] = true
			}
		}

		for _, id := range ids {
			row := byID[id]
			if row.IsCanceled {
				return fmt.Errorf("selection %d (number %s) is canceled: %w", id, row.Number, models.ErrValidation)
			}
			numbers = append(numbers, row.Number)
		}
		raffleID = first.RaffleID
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAuth) {
			s.Logger.LogSecurity("RELEASE", fmt.Sprintf("rejected release of %v: %v", ids, err))
		}
		return 0, s.ledgerError("release", err)
	}

	sort.Strings(numbers)
	s.Logger.LogLedger("RELEASE", raffleID, fmt.Sprintf("released numbers %v", numbers))
	s.notify(ctx, models.NewSelectionEvent(models.EventSelectionReleased, raffleID, numbers, ids))
	return n, nil
}

// ---------------- ADMIN ----------------

// Cancel flags selections canceled. The numbers stay occupied.
func (s *Service) Cancel(ctx context.Context, req models.CancelRequest) (int, error) {
	if !req.RequesterIsAdmin {
		return 0, fmt.Errorf("cancel requires an administrator: %w", models.ErrAuth)
	}
	ids := uniqueIDs(req.SelectionIDs)
	if len(ids) == 0 {
		return 0, fmt.Errorf("selection ids are required: %w", models.ErrValidation)
	}

	rows, err := s.DB.CancelSelections(ctx, req.RaffleID, ids)
	if err != nil {
		return 0, s.ledgerError("cancel", err)
	}

	numbers := numbersOf(rows)
	s.Logger.LogLedger("CANCEL", req.RaffleID, fmt.Sprintf("canceled numbers %v", numbers))
	s.notify(ctx, models.NewSelectionEvent(models.EventSelectionCanceled, req.RaffleID, numbers, ids))
	return len(rows), nil
}

// Purge deletes selections in any state without a secret.
func (s *Service) Purge(ctx context.Context, req models.PurgeRequest) (int, error) {
	if !req.RequesterIsAdmin {
		return 0, fmt.Errorf("purge requires an administrator: %w", models.ErrAuth)
	}
	ids := uniqueIDs(req.SelectionIDs)
	if len(ids) == 0 {
		return 0, fmt.Errorf("selection ids are required: %w", models.ErrValidation)
	}

	rows, err := s.DB.PurgeSelections(ctx, req.RaffleID, ids)
	if err != nil {
		return 0, s.ledgerError("purge", err)
	}

	numbers := numbersOf(rows)
	s.Logger.LogLedger("PURGE", req.RaffleID, fmt.Sprintf("purged numbers %v", numbers))
	s.notify(ctx, models.NewSelectionEvent(models.EventSelectionReleased, req.RaffleID, numbers, ids))
	return len(rows), nil
}

// ---------------- QUERIES ----------------

// ListForRaffle returns the live selections of a raffle ordered by number.
func (s *Service) ListForRaffle(ctx context.Context, raffleID int64) ([]models.Selection, error) {
	if err := s.requireRaffle(ctx, raffleID); err != nil {
		return nil, err
	}
	rows, err := s.DB.ListByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("list selections: %v: %w", err, models.ErrStorage)
	}
	return rows, nil
}

func (s *Service) Occupancy(ctx context.Context, raffleID int64) (models.Occupancy, error) {
	occ, err := s.DB.Occupancy(ctx, raffleID)
	if err != nil {
		return occ, fmt.Errorf("occupancy: %v: %w", err, models.ErrStorage)
	}
	return occ, nil
}

// Board returns the state of all 100 numbers.
func (s *Service) Board(ctx context.Context, raffleID int64) ([]models.BoardCell, error) {
	rows, err := s.ListForRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	return BuildBoard(rows), nil
}

// BuildBoard lays selections over the 00-99 pool.
func BuildBoard(rows []models.Selection) []models.BoardCell {
	byNumber := make(map[string]models.Selection, len(rows))
	for _, r := range rows {
		byNumber[r.Number] = r
	}

	cells := make([]models.BoardCell, 0, models.NumberPoolSize)
	for _, num := range utils.AllNumbers() {
		cell := models.BoardCell{Number: num, Status: models.SelectionAvailable}
		if r, ok := byNumber[num]; ok {
			cell.Status = r.Status()
			cell.SelectionID = r.ID
			cell.CustomerName = r.CustomerName
		}
		cells = append(cells, cell)
	}
	return cells
}

// GroupByCustomer groups selections by contact phone, in order of first
// appearance.
func GroupByCustomer(rows []models.Selection) []models.CustomerGroup {
	index := map[string]int{}
	groups := []models.CustomerGroup{}
	for _, r := range rows {
		i, ok := index[r.CustomerPhone]
		if !ok {
			i = len(groups)
			index[r.CustomerPhone] = i
			groups = append(groups, models.CustomerGroup{
				CustomerPhone: r.CustomerPhone,
				CustomerName:  r.CustomerName,
			})
		}
		groups[i].Numbers = append(groups[i].Numbers, r.Number)
		groups[i].Selections = append(groups[i].Selections, r)
	}
	return groups
}

// ---------------- HELPERS ----------------

func (s *Service) requireRaffle(ctx context.Context, raffleID int64) error {
	ok, err := s.Raffles.Exists(ctx, raffleID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("raffle %d: %w", raffleID, models.ErrNotFound)
	}
	return nil
}

// ledgerError keeps taxonomy errors and turns anything else into ErrStorage.
func (s *Service) ledgerError(op string, err error) error {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrAuth), errors.Is(err, models.ErrNotFound):
		return err
	case errors.Is(err, db.ErrMissingRows), errors.Is(err, db.ErrForeignRaffle):
		return fmt.Errorf("%s: %v: %w", op, err, models.ErrNotFound)
	}
	s.Logger.Error("LEDGER", fmt.Sprintf("%s rolled back: %v", op, err))
	return fmt.Errorf("%s: %v: %w", op, err, models.ErrStorage)
}

func (s *Service) notify(ctx context.Context, event models.SelectionEvent) {
	if s.Publisher != nil {
		if err := s.Publisher.PublishSelectionEvent(ctx, event); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish %s for raffle %d: %v", event.Type, event.RaffleID, err))
		}
	}
	if s.BoardEvents != nil {
		s.BoardEvents.Emit(event)
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func inRequestOrder(requested, subset []string) []string {
	in := make(map[string]bool, len(subset))
	for _, n := range subset {
		in[n] = true
	}
	out := []string{}
	for _, n := range requested {
		if in[n] {
			out = append(out, n)
		}
	}
	return out
}

func numbersOf(rows []models.Selection) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Number)
	}
	sort.Strings(out)
	return out
}

func selectionIDs(rows []models.Selection) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
