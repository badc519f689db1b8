package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nexuscloud/drivesync/internal/client/models"
	"github.com/nexuscloud/drivesync/internal/common"
	"github.com/nexuscloud/drivesync/internal/dbx"
)

const recordColumns = `id, kind, name, parent_id, owner_id, size, mime_type,
	child_count, color, created_at, updated_at, trashed, shared, starred,
	sync_state, sync_error`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, n *models.Node) error {
	return upsert(ctx, r.db, n)
}

// upsert writes one full row; running against a DBTX lets Replace reuse it
// inside a transaction.
func upsert(ctx context.Context, db dbx.DBTX, n *models.Node) error {
	query := `INSERT INTO records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			parent_id = excluded.parent_id,
			owner_id = excluded.owner_id,
			size = excluded.size,
			mime_type = excluded.mime_type,
			child_count = excluded.child_count,
			color = excluded.color,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			trashed = excluded.trashed,
			shared = excluded.shared,
			starred = excluded.starred,
			sync_state = excluded.sync_state,
			sync_error = excluded.sync_error
	`
	_, err := db.ExecContext(ctx, query,
		models.NormalizeID(n.ID), string(n.Kind), n.Name, models.NormalizeID(n.ParentID),
		n.OwnerID, n.Size, n.MimeType, n.ChildCount, n.Color,
		n.CreatedAt, n.UpdatedAt, n.Trashed, n.Shared, n.Starred,
		string(n.SyncState), n.SyncError)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, models.NormalizeID(id))
	if err != nil {
		return fmt.Errorf("failed to remove record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Node, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, models.NormalizeID(id))

	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) QueryByFolder(ctx context.Context, folderID string) ([]*models.Node, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE parent_id = ? AND trashed = 0 ORDER BY kind DESC, name`
	return r.queryNodes(ctx, query, models.NormalizeID(folderID))
}

func (r *SQLiteRepository) QueryTrashed(ctx context.Context) ([]*models.Node, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE trashed = 1 ORDER BY name`
	return r.queryNodes(ctx, query)
}

func (r *SQLiteRepository) QueryBySyncState(ctx context.Context, state models.SyncState) ([]*models.Node, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE sync_state = ? ORDER BY updated_at`
	return r.queryNodes(ctx, query, string(state))
}

func (r *SQLiteRepository) Replace(ctx context.Context, placeholderID string, authoritative *models.Node) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, models.NormalizeID(placeholderID)); err != nil {
			return fmt.Errorf("failed to remove placeholder: %w", err)
		}
		return upsert(ctx, tx, authoritative)
	})
}

func (r *SQLiteRepository) RecoverInterrupted(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_state = ? WHERE sync_state = ?`,
		string(models.StatePendingUpload), string(models.StateUploading))
	if err != nil {
		return 0, fmt.Errorf("failed to recover interrupted uploads: %w", err)
	}
	return result.RowsAffected()
}

func (r *SQLiteRepository) queryNodes(ctx context.Context, query string, args ...any) ([]*models.Node, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting records: %w", err)
	}
	defer rows.Close()

	var result []*models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*models.Node, error) {
	n := &models.Node{}
	var kind, state string
	err := s.Scan(&n.ID, &kind, &n.Name, &n.ParentID, &n.OwnerID, &n.Size,
		&n.MimeType, &n.ChildCount, &n.Color, &n.CreatedAt, &n.UpdatedAt,
		&n.Trashed, &n.Shared, &n.Starred, &state, &n.SyncError)
	if err != nil {
		return nil, err
	}
	n.Kind = models.Kind(kind)
	n.SyncState = models.SyncState(state)
	return n, nil
}
