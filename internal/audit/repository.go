package audit

import (
	"context"
	"fmt"

	"github.com/Sriharan2222/medlog/pkg/database"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// Repository appends audit entries to audit_logs
type Repository struct {
	db *database.DB
}

// NewRepository creates a new audit repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Write inserts one entry
func (r *Repository) Write(ctx context.Context, entry *types.AuditEntry) error {
	err := r.db.Track(ctx, "insert", "audit_logs", func(ctx context.Context) (int64, error) {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO audit_logs (id, user_id, action, entity, entity_id, details, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entry.ID,
			entry.UserID,
			entry.Action,
			entry.Entity,
			entry.EntityID,
			entry.Details,
			entry.CreatedAt,
		)
		if err != nil {
			return 0, err
		}
		return result.RowsAffected()
	})
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}
