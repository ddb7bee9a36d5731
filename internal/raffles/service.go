package raffles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/raffles/db"
	"github.com/kerm1977/rifas/internal/utils"
)

type DBLayer interface {
	CreateRaffle(ctx context.Context, raffle *models.Raffle) error
	GetRaffle(ctx context.Context, id int64) (*models.Raffle, error)
	RaffleExists(ctx context.Context, id int64) (bool, error)
	RaffleNumberTaken(ctx context.Context, raffleNumber string, exceptID int64) (bool, error)
	ListRaffles(ctx context.Context) ([]models.RaffleSummary, error)
	UpdateRaffle(ctx context.Context, raffle *models.Raffle) error
	DeleteRaffle(ctx context.Context, id int64) error
	SetWinningNumbers(ctx context.Context, id int64, numbers models.WinningNumbers) error
}

// Service is the raffle registry.
type Service struct {
	DB        DBLayer
	UploadDir string
	Logger    *logger.Logger
}

func NewService(dbLayer DBLayer, uploadDir string, log *logger.Logger) *Service {
	return &Service{DB: dbLayer, UploadDir: uploadDir, Logger: log}
}

func (s *Service) Create(ctx context.Context, in models.RaffleInput) (*models.Raffle, error) {
	raffle, err := s.fromInput(in)
	if err != nil {
		return nil, err
	}

	taken, err := s.DB.RaffleNumberTaken(ctx, raffle.RaffleNumber, 0)
	if err != nil {
		return nil, fmt.Errorf("check raffle number: %v: %w", err, models.ErrStorage)
	}
	if taken {
		return nil, fmt.Errorf("raffle number %q already exists: %w", raffle.RaffleNumber, models.ErrValidation)
	}

	raffle.WinningNumbers = models.WinningNumbers{}
	raffle.CreatedAt = time.Now().UTC()
	if err := s.DB.CreateRaffle(ctx, raffle); err != nil {
		return nil, fmt.Errorf("create raffle: %v: %w", err, models.ErrStorage)
	}

	s.Logger.Info("RAFFLE", fmt.Sprintf("Created raffle %d (%s)", raffle.ID, raffle.RaffleNumber))
	return raffle, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Raffle, error) {
	raffle, err := s.DB.GetRaffle(ctx, id)
	if err != nil {
		return nil, wrapLookup(id, err)
	}
	return raffle, nil
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := s.DB.RaffleExists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("raffle %d: %v: %w", id, err, models.ErrStorage)
	}
	return ok, nil
}

func (s *Service) List(ctx context.Context) ([]models.RaffleSummary, error) {
	list, err := s.DB.ListRaffles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list raffles: %v: %w", err, models.ErrStorage)
	}
	return list, nil
}

// Update rewrites the editable fields. The image reference is kept when the
// input leaves it empty.
func (s *Service) Update(ctx context.Context, id int64, in models.RaffleInput) (*models.Raffle, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := s.fromInput(in)
	if err != nil {
		return nil, err
	}

	taken, err := s.DB.RaffleNumberTaken(ctx, next.RaffleNumber, id)
	if err != nil {
		return nil, fmt.Errorf("check raffle number: %v: %w", err, models.ErrStorage)
	}
	if taken {
		return nil, fmt.Errorf("raffle number %q already exists: %w", next.RaffleNumber, models.ErrValidation)
	}

	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.WinningNumbers = current.WinningNumbers
	if next.ImageFilename == "" {
		next.ImageFilename = current.ImageFilename
	}

	if err := s.DB.UpdateRaffle(ctx, next); err != nil {
		return nil, wrapLookup(id, err)
	}
	s.Logger.Info("RAFFLE", fmt.Sprintf("Updated raffle %d", id))
	return next, nil
}

// Delete removes the raffle with all its selections, then its image asset.
func (s *Service) Delete(ctx context.Context, id int64) error {
	raffle, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.DB.DeleteRaffle(ctx, id); err != nil {
		return wrapLookup(id, err)
	}

	if raffle.ImageFilename != "" && s.UploadDir != "" {
		path := filepath.Join(s.UploadDir, filepath.Base(raffle.ImageFilename))
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.Logger.Warn("RAFFLE", fmt.Sprintf("Raffle %d deleted but image %s was not removed: %v", id, path, err))
		}
	}

	s.Logger.Info("RAFFLE", fmt.Sprintf("Deleted raffle %d and its selections", id))
	return nil
}

func (s *Service) SetWinningNumbers(ctx context.Context, id int64, numbers []string) error {
	if err := s.DB.SetWinningNumbers(ctx, id, models.WinningNumbers(numbers)); err != nil {
		return wrapLookup(id, err)
	}
	return nil
}

func (s *Service) fromInput(in models.RaffleInput) (*models.Raffle, error) {
	var problems []string
	if strings.TrimSpace(in.RaffleNumber) == "" {
		problems = append(problems, "raffle_number is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(in.Prize) == "" {
		problems = append(problems, "prize is required")
	}
	if in.Price <= 0 {
		problems = append(problems, "price must be greater than zero")
	}
	drawDate, err := utils.ParseDrawDate(strings.TrimSpace(in.DrawDate))
	if err != nil {
		problems = append(problems, err.Error())
	}
	if !utils.ValidDrawTime(strings.TrimSpace(in.DrawTime)) {
		problems = append(problems, "draw_time must be HH:MM")
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%s: %w", strings.Join(problems, "; "), models.ErrValidation)
	}

	return &models.Raffle{
		RaffleNumber:        strings.TrimSpace(in.RaffleNumber),
		Name:                strings.TrimSpace(in.Name),
		Price:               in.Price,
		Prize:               strings.TrimSpace(in.Prize),
		Detail:              strings.TrimSpace(in.Detail),
		DrawDate:            drawDate,
		DrawTime:            strings.TrimSpace(in.DrawTime),
		ImageFilename:       strings.TrimSpace(in.ImageFilename),
		PaymentContactName:  strings.TrimSpace(in.PaymentContactName),
		PaymentContactPhone: strings.TrimSpace(in.PaymentContactPhone),
	}, nil
}

func wrapLookup(id int64, err error) error {
	if db.IsNoRows(err) {
		return fmt.Errorf("raffle %d: %w", id, models.ErrNotFound)
	}
	return fmt.Errorf("raffle %d: %v: %w", id, err, models.ErrStorage)
}
