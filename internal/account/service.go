package account

import (
	"context"
	"strings"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxHandleLength = 64

type Service interface {
	// RegisterAccount stores a new Active account. An empty role means user.
	RegisterAccount(ctx context.Context, handle string, role domain.Role) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}

type service struct {
	log  zerolog.Logger
	repo domain.AccountRepo
	now  func() time.Time
}

func NewService(log logger.Logger, repo domain.AccountRepo) Service {
	return &service{
		log:  log.With().Str("module", "account").Logger(),
		repo: repo,
		now:  time.Now,
	}
}

func (s *service) RegisterAccount(ctx context.Context, handle string, role domain.Role) (*domain.Account, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || len(handle) > maxHandleLength {
		return nil, errors.Wrap(domain.ErrInvalidInput, "handle must be 1-%d characters", maxHandleLength)
	}

	switch role {
	case "":
		role = domain.RoleUser
	case domain.RoleUser, domain.RoleModerator, domain.RoleAdmin:
	default:
		return nil, errors.Wrap(domain.ErrInvalidInput, "unknown role %q", role)
	}

	if _, err := s.repo.FindByHandle(ctx, handle); err == nil {
		return nil, errors.Wrap(domain.ErrConflict, "handle %q is taken", handle)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate account id")
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	account := domain.Account{
		ID:             id.String(),
		Handle:         handle,
		Role:           role,
		LifecycleState: domain.StateActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Store(ctx, account); err != nil {
		return nil, err
	}

	s.log.Info().Str("account_id", account.ID).Str("role", string(role)).Msg("account registered")

	return &account, nil
}

func (s *service) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.Wrap(domain.ErrNotFound, "account %s", id)
	}

	return s.repo.FindByID(ctx, id)
}
