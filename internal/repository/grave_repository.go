package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-archive-api/internal/models"
)

type graveTable struct {
	parent string
	graves string
	key    string
}

var graveTables = map[models.GraveTarget]graveTable{
	models.GraveTargetStudy: {parent: "studies", graves: "study_graves", key: "study_id"},
	models.GraveTargetFile:  {parent: "files", graves: "file_graves", key: "file_id"},
}

// GraveRepository persists moderation markers for studies and files.
type GraveRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewGraveRepository creates a new GraveRepository.
func NewGraveRepository(db *sqlx.DB) *GraveRepository {
	return &GraveRepository{db: db, now: time.Now}
}

// Apply moves the grave of the target record to its next state inside one transaction.
// The parent row and any existing grave are locked first. When the resulting grave is deleted,
// purge runs before commit and its failure rolls everything back.
// Returns sql.ErrNoRows for an unknown record and models.ErrGraveDeleted or
// models.ErrGraveUnpublished for rejected transitions.
func (r *GraveRepository) Apply(ctx context.Context, target models.GraveTarget, id, reason string, requestDelete bool, purge func() error) (grave models.Grave, err error) {
	table, ok := graveTables[target]
	if !ok {
		return models.Grave{}, fmt.Errorf("unknown grave target %q", target)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Grave{}, fmt.Errorf("begin grave transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var parentID string
	lockParent := fmt.Sprintf("SELECT id FROM %s WHERE id = $1 FOR UPDATE", table.parent)
	if err = tx.GetContext(ctx, &parentID, lockParent, id); err != nil {
		if err == sql.ErrNoRows {
			return models.Grave{}, err
		}
		return models.Grave{}, fmt.Errorf("lock %s: %w", table.parent, err)
	}

	var current *models.Grave
	var existing models.Grave
	lockGrave := fmt.Sprintf("SELECT reason, deleted, create_at FROM %s WHERE %s = $1 FOR UPDATE", table.graves, table.key)
	switch err = tx.GetContext(ctx, &existing, lockGrave, id); err {
	case nil:
		current = &existing
	case sql.ErrNoRows:
		err = nil
	default:
		return models.Grave{}, fmt.Errorf("lock grave: %w", err)
	}

	grave, err = models.NextGrave(current, reason, requestDelete, r.now().UTC())
	if err != nil {
		return grave, err
	}

	if current == nil {
		insert := fmt.Sprintf("INSERT INTO %s (%s, reason, deleted, create_at) VALUES ($1, $2, $3, $4)", table.graves, table.key)
		if _, err = tx.ExecContext(ctx, insert, id, grave.Reason, grave.Deleted, grave.CreateAt); err != nil {
			return models.Grave{}, fmt.Errorf("insert grave: %w", err)
		}
	} else {
		update := fmt.Sprintf("UPDATE %s SET reason = $2, deleted = $3 WHERE %s = $1", table.graves, table.key)
		if _, err = tx.ExecContext(ctx, update, id, grave.Reason, grave.Deleted); err != nil {
			return models.Grave{}, fmt.Errorf("update grave: %w", err)
		}
	}

	if grave.Deleted && purge != nil {
		if err = purge(); err != nil {
			return models.Grave{}, fmt.Errorf("purge stored files: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Grave{}, fmt.Errorf("commit grave: %w", err)
	}
	return grave, nil
}

// Find returns the grave of a record, or nil when it has none.
func (r *GraveRepository) Find(ctx context.Context, target models.GraveTarget, id string) (*models.Grave, error) {
	table, ok := graveTables[target]
	if !ok {
		return nil, fmt.Errorf("unknown grave target %q", target)
	}
	query := fmt.Sprintf("SELECT reason, deleted, create_at FROM %s WHERE %s = $1", table.graves, table.key)
	var grave models.Grave
	if err := r.db.GetContext(ctx, &grave, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find grave: %w", err)
	}
	return &grave, nil
}
