package database

import (
	"context"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type ContentRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewContentRepo(log logger.Logger, db *DB) domain.ContentRepo {
	return &ContentRepo{
		log: log.With().Str("repo", "content").Logger(),
		db:  db,
	}
}

func normalizedPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := dbTime(*t)
	return &n
}

func (r *ContentRepo) StorePost(ctx context.Context, post domain.Post) error {
	post.DeletedAt = normalizedPtr(post.DeletedAt)

	if err := r.db.Get().WithContext(ctx).Create(&post).Error; err != nil {
		r.log.Error().Err(err).Str("post_id", post.ID).Msg("Failed to store post")
		return errors.Wrap(err, "failed to store post")
	}

	return nil
}

func (r *ContentRepo) StoreComment(ctx context.Context, comment domain.Comment) error {
	comment.DeletedAt = normalizedPtr(comment.DeletedAt)

	if err := r.db.Get().WithContext(ctx).Create(&comment).Error; err != nil {
		r.log.Error().Err(err).Str("comment_id", comment.ID).Msg("Failed to store comment")
		return errors.Wrap(err, "failed to store comment")
	}

	return nil
}

func (r *ContentRepo) FindPost(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if err := r.db.Get().WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(domain.ErrNotFound, "post %s", id)
		}
		return nil, errors.Wrap(err, "failed to find post")
	}

	return &post, nil
}

func (r *ContentRepo) FindComment(ctx context.Context, id string) (*domain.Comment, error) {
	var comment domain.Comment
	if err := r.db.Get().WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(domain.ErrNotFound, "comment %s", id)
		}
		return nil, errors.Wrap(err, "failed to find comment")
	}

	return &comment, nil
}
