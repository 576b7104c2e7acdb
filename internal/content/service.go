package content

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

type Service interface {
	CreatePost(ctx context.Context, accountID string, title string, body string) (*domain.Post, error)
	// CreateComment requires the target post to be Active as well as the author.
	CreateComment(ctx context.Context, accountID string, postID string, body string) (*domain.Comment, error)
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	GetComment(ctx context.Context, id string) (*domain.Comment, error)
}

type service struct {
	log      zerolog.Logger
	repo     domain.ContentRepo
	accounts domain.AccountRepo
	now      func() time.Time
}

func NewService(log logger.Logger, repo domain.ContentRepo, accounts domain.AccountRepo) Service {
	return &service{
		log:      log.With().Str("module", "content").Logger(),
		repo:     repo,
		accounts: accounts,
		now:      time.Now,
	}
}

// activeOwner loads the author and refuses soft deleted accounts.
func (s *service) activeOwner(ctx context.Context, accountID string) (*domain.Account, error) {
	owner, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if owner.LifecycleState != domain.StateActive {
		return nil, errors.Wrap(domain.ErrOwnerInactive, "account %s", accountID)
	}
	return owner, nil
}

func (s *service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *service) CreatePost(ctx context.Context, accountID string, title string, body string) (*domain.Post, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "post title is required")
	}
	if _, err := s.activeOwner(ctx, accountID); err != nil {
		return nil, err
	}

	now := s.timestamp()
	post := domain.Post{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Title:          title,
		Body:           body,
		LifecycleState: domain.StateActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.StorePost(ctx, post); err != nil {
		return nil, err
	}

	s.log.Debug().Str("post_id", post.ID).Str("account_id", accountID).Msg("post created")

	return &post, nil
}

func (s *service) CreateComment(ctx context.Context, accountID string, postID string, body string) (*domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "comment body is required")
	}
	if _, err := s.activeOwner(ctx, accountID); err != nil {
		return nil, err
	}

	post, err := s.repo.FindPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.LifecycleState != domain.StateActive {
		return nil, errors.Wrap(domain.ErrNotFound, "post %s", postID)
	}

	now := s.timestamp()
	comment := domain.Comment{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		PostID:         postID,
		Body:           body,
		LifecycleState: domain.StateActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.StoreComment(ctx, comment); err != nil {
		return nil, err
	}

	s.log.Debug().Str("comment_id", comment.ID).Str("post_id", postID).Str("account_id", accountID).Msg("comment created")

	return &comment, nil
}

func (s *service) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return s.repo.FindPost(ctx, id)
}

func (s *service) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	return s.repo.FindComment(ctx, id)
}
