package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/shared"
)

// ExportRepository records bulk export runs.
type ExportRepository struct {
	db DBTX
}

func NewExportRepository(db DBTX) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts a record, assigning an ID and timestamp when unset.
func (r *ExportRepository) Create(ctx context.Context, rec *models.ExportRecord) error {
	if rec.ID == "" {
		rec.ID = shared.GenerateID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exports (id, format, output_dir, total, succeeded, failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Format, rec.OutputDir, rec.Total, rec.Succeeded, rec.Failed, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}
	return nil
}

// List returns the most recent exports first, at most limit rows (0 for all).
func (r *ExportRepository) List(ctx context.Context, limit int) ([]models.ExportRecord, error) {
	query := `SELECT id, format, output_dir, total, succeeded, failed, created_at FROM exports ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	var out []models.ExportRecord
	for rows.Next() {
		var rec models.ExportRecord
		var created sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Format, &rec.OutputDir, &rec.Total, &rec.Succeeded, &rec.Failed, &created); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		rec.CreatedAt = created.Time
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate export rows: %w", err)
	}
	return out, nil
}
