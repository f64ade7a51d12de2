package repository

import (
	"context"

	syncdomain "mailmirror-backend/internal/mailsync/domain"

	"gorm.io/gorm"
)

// SyncRunRepository stores per-user import history
type SyncRunRepository interface {
	Record(ctx context.Context, run *syncdomain.SyncRun) error
	ListByUser(ctx context.Context, userID string, limit int) ([]syncdomain.SyncRun, error)
}

type syncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepository{
		db: db,
	}
}

func (r *syncRunRepository) Record(ctx context.Context, run *syncdomain.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// ListByUser returns the newest runs first
func (r *syncRunRepository) ListByUser(ctx context.Context, userID string, limit int) ([]syncdomain.SyncRun, error) {
	var runs []syncdomain.SyncRun
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
