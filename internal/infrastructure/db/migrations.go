package db

import (
	"github.com/whutos/backend/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.TaskRecord{}); err != nil {
		return err
	}
	return createCustomIndexes(db)
}

func createCustomIndexes(db *gorm.DB) error {
	// Composite index for the active/history task listings per user
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tasks_user_status
		ON tasks (user_id, status)
	`).Error
}
