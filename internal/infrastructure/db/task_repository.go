package db

import (
	"context"

	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/domain"
	"github.com/whutos/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type taskRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepository(db *gorm.DB, log *logger.Logger) ports.TaskRepository {
	return &taskRepository{db: db, log: log}
}

// Save upserts the task snapshot. Every transition mirrors the full task, so
// the latest write always carries the whole state.
func (r *taskRepository) Save(ctx context.Context, record *domain.TaskRecord) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(record).Error
	if err != nil {
		r.log.Errorw("task_repo_save_failed", "id", record.ID, "error", err)
		return err
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.TaskRecord, error) {
	var record domain.TaskRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		r.log.Errorw("task_repo_get_failed", "id", id, "error", err)
		return nil, err
	}
	return &record, nil
}

func (r *taskRepository) GetByUser(ctx context.Context, userID string, limit int) ([]domain.TaskRecord, error) {
	var records []domain.TaskRecord
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		r.log.Errorw("task_repo_list_failed", "user_id", userID, "error", err)
		return nil, err
	}
	return records, nil
}

func (r *taskRepository) GetTerminalByUser(ctx context.Context, userID string, limit int) ([]domain.TaskRecord, error) {
	var records []domain.TaskRecord
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []string{
			string(domain.TaskStatusCompleted),
			string(domain.TaskStatusFailed),
			string(domain.TaskStatusCancelled),
		}).
		Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		r.log.Errorw("task_repo_history_failed", "user_id", userID, "error", err)
		return nil, err
	}
	return records, nil
}
