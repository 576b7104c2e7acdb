package database

import (
	"context"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type AccountRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewAccountRepo(log logger.Logger, db *DB) domain.AccountRepo {
	return &AccountRepo{
		log: log.With().Str("repo", "account").Logger(),
		db:  db,
	}
}

func (r *AccountRepo) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	result := r.db.Get().WithContext(ctx).Where("id = ?", id).First(&account)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(domain.ErrNotFound, "account %s", id)
		}
		r.log.Error().Err(result.Error).Str("account_id", id).Msg("Failed to find account")
		return nil, errors.Wrap(result.Error, "failed to find account")
	}

	return &account, nil
}

func (r *AccountRepo) FindByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	var account domain.Account
	result := r.db.Get().WithContext(ctx).Where("handle = ?", handle).First(&account)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(domain.ErrNotFound, "account handle %s", handle)
		}
		r.log.Error().Err(result.Error).Str("handle", handle).Msg("Failed to find account by handle")
		return nil, errors.Wrap(result.Error, "failed to find account by handle")
	}

	return &account, nil
}

func (r *AccountRepo) Store(ctx context.Context, account domain.Account) error {
	account.DeactivatedAt = normalizedPtr(account.DeactivatedAt)

	result := r.db.Get().WithContext(ctx).Create(&account)
	if result.Error != nil {
		r.log.Error().Err(result.Error).Str("account_id", account.ID).Msg("Failed to store account")
		return errors.Wrap(result.Error, "failed to store account")
	}

	r.log.Debug().Str("account_id", account.ID).Msg("Successfully stored account")
	return nil
}
