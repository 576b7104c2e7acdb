package database

import (
	"context"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type kindTable struct {
	name        string
	tsColumn    string
	ownerColumn string
}

var kindTables = map[domain.EntityKind]kindTable{
	domain.KindAccount: {name: "accounts", tsColumn: "deactivated_at", ownerColumn: "id"},
	domain.KindPost:    {name: "posts", tsColumn: "deleted_at", ownerColumn: "account_id"},
	domain.KindComment: {name: "comments", tsColumn: "deleted_at", ownerColumn: "account_id"},
}

func tableFor(kind domain.EntityKind) (kindTable, error) {
	t, ok := kindTables[kind]
	if !ok {
		return kindTable{}, errors.Wrap(domain.ErrUnsupportedKind, "kind %q", kind)
	}
	return t, nil
}

func contentTableFor(kind domain.EntityKind) (kindTable, error) {
	if !kind.IsContent() {
		return kindTable{}, errors.Wrap(domain.ErrUnsupportedKind, "%q is not a content kind", kind)
	}
	return tableFor(kind)
}

// dbTime normalises timestamps before they reach the database. Postgres keeps
// microseconds and sqlite compares the stored text, so both need one precision
// and one zone for the conditional writes to match.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

type entityRow struct {
	ID             string     `gorm:"column:id"`
	OwnerID        string     `gorm:"column:owner_id"`
	LifecycleState string     `gorm:"column:lifecycle_state"`
	DeletedAt      *time.Time `gorm:"column:deleted_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (r entityRow) entity(kind domain.EntityKind) domain.Entity {
	e := domain.Entity{
		Kind:      kind,
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		State:     domain.LifecycleState(r.LifecycleState),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.DeletedAt != nil {
		t := r.DeletedAt.UTC()
		e.DeletedAt = &t
	}
	return e
}

// LifecycleStore implements domain.EntityStore. Single rows are written with
// conditional UPDATEs and sweeps with one set-based statement per table.
type LifecycleStore struct {
	log zerolog.Logger
	db  *DB
	tx  *gorm.DB
}

func NewLifecycleStore(log logger.Logger, db *DB) *LifecycleStore {
	return &LifecycleStore{
		log: log.With().Str("repo", "lifecycle").Logger(),
		db:  db,
	}
}

func (s *LifecycleStore) conn(ctx context.Context) *gorm.DB {
	if s.tx != nil {
		return s.tx.WithContext(ctx)
	}
	return s.db.Get().WithContext(ctx)
}

func (s *LifecycleStore) selectEntity(t kindTable) sq.SelectBuilder {
	return sq.Select(
		"id",
		t.ownerColumn+" AS owner_id",
		"lifecycle_state",
		t.tsColumn+" AS deleted_at",
		"updated_at",
	).From(t.name)
}

func (s *LifecycleStore) Get(ctx context.Context, kind domain.EntityKind, id string) (*domain.Entity, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query, args, err := s.selectEntity(t).Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	var rows []entityRow
	if err := s.conn(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Str("id", id).Msg("failed to get entity")
		return nil, errors.Wrap(err, "failed to get %s %s", kind, id)
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(domain.ErrNotFound, "%s %s", kind, id)
	}

	e := rows[0].entity(kind)
	return &e, nil
}

func (s *LifecycleStore) Save(ctx context.Context, next domain.Entity, prev domain.Entity) error {
	t, err := tableFor(next.Kind)
	if err != nil {
		return err
	}

	where := sq.Eq{
		"id":              prev.ID,
		"lifecycle_state": string(prev.State),
		t.tsColumn:        nullableTime(prev.DeletedAt),
	}

	query, args, err := sq.Update(t.name).
		Set("lifecycle_state", string(next.State)).
		Set(t.tsColumn, nullableTime(next.DeletedAt)).
		Set("updated_at", dbTime(next.UpdatedAt)).
		Where(where).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	res := s.conn(ctx).Exec(query, args...)
	if res.Error != nil {
		s.log.Error().Err(res.Error).Str("kind", string(next.Kind)).Str("id", next.ID).Msg("failed to save entity")
		return errors.Wrap(res.Error, "failed to save %s %s", next.Kind, next.ID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrap(domain.ErrConflict, "%s %s", next.Kind, next.ID)
	}

	return nil
}

// filterPredicate turns filter into a WHERE conjunction. It refuses an empty
// filter so a bulk statement can never touch every row of a table.
func filterPredicate(t kindTable, filter domain.ContentFilter) (sq.And, error) {
	if filter.State == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "bulk statements require a lifecycle state")
	}

	pred := sq.And{sq.Eq{"lifecycle_state": string(filter.State)}}

	if filter.DeletedAtOrBefore != nil {
		pred = append(pred, sq.LtOrEq{t.tsColumn: dbTime(*filter.DeletedAtOrBefore)})
	}
	if filter.DeletedAfter != nil {
		pred = append(pred, sq.Gt{t.tsColumn: dbTime(*filter.DeletedAfter)})
	}
	if filter.OwnerDeactivatedAtOrBefore != nil {
		owners, ownerArgs, err := sq.Select("id").
			From("accounts").
			Where(sq.Eq{"lifecycle_state": string(domain.StateSoftDeleted)}).
			Where(sq.LtOrEq{"deactivated_at": dbTime(*filter.OwnerDeactivatedAtOrBefore)}).
			ToSql()
		if err != nil {
			return nil, errors.Wrap(err, "error building owner subquery")
		}
		pred = append(pred, sq.Expr(t.ownerColumn+" IN ("+owners+")", ownerArgs...))
	}

	return pred, nil
}

func (s *LifecycleStore) BulkUpdateState(ctx context.Context, kind domain.EntityKind, filter domain.ContentFilter, state domain.LifecycleState, ts *time.Time) (int64, error) {
	t, err := contentTableFor(kind)
	if err != nil {
		return 0, err
	}

	pred, err := filterPredicate(t, filter)
	if err != nil {
		return 0, err
	}

	var updatedAt interface{} = sq.Expr("CURRENT_TIMESTAMP")
	if ts != nil {
		updatedAt = dbTime(*ts)
	}

	query, args, err := sq.Update(t.name).
		Set("lifecycle_state", string(state)).
		Set(t.tsColumn, nullableTime(ts)).
		Set("updated_at", updatedAt).
		Where(pred).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "error building query")
	}

	res := s.conn(ctx).Exec(query, args...)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to update %s", t.name)
	}

	return res.RowsAffected, nil
}

func (s *LifecycleStore) BulkDelete(ctx context.Context, kind domain.EntityKind, filter domain.ContentFilter) (int64, error) {
	t, err := contentTableFor(kind)
	if err != nil {
		return 0, err
	}

	pred, err := filterPredicate(t, filter)
	if err != nil {
		return 0, err
	}

	query, args, err := sq.Delete(t.name).Where(pred).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "error building query")
	}

	res := s.conn(ctx).Exec(query, args...)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to delete from %s", t.name)
	}

	return res.RowsAffected, nil
}

func (s *LifecycleStore) ListOwned(ctx context.Context, kind domain.EntityKind, ownerID string, filter domain.ContentFilter, afterID string, limit int) ([]domain.Entity, error) {
	t, err := contentTableFor(kind)
	if err != nil {
		return nil, err
	}

	pred, err := filterPredicate(t, filter)
	if err != nil {
		return nil, err
	}

	q := s.selectEntity(t).
		Where(sq.Eq{t.ownerColumn: ownerID}).
		Where(pred).
		OrderBy("id")
	if afterID != "" {
		q = q.Where(sq.Gt{"id": afterID})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	var rows []entityRow
	if err := s.conn(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list %s owned by %s", t.name, ownerID)
	}

	entities := make([]domain.Entity, 0, len(rows))
	for _, r := range rows {
		entities = append(entities, r.entity(kind))
	}

	return entities, nil
}

// Transaction runs fn against a store bound to one database transaction.
// Nested calls join the outer transaction.
func (s *LifecycleStore) Transaction(ctx context.Context, fn func(store domain.EntityStore) error) error {
	if s.tx != nil {
		return fn(s)
	}

	return s.db.Get().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&LifecycleStore{log: s.log, db: s.db, tx: tx})
	})
}
