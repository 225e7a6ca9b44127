package ports

import (
	"context"

	"github.com/whutos/backend/internal/domain"
)

// TaskRepository mirrors tasks to durable storage for history. The
// orchestration core functions without one; mirroring is best-effort.
type TaskRepository interface {
	Save(ctx context.Context, record *domain.TaskRecord) error
	GetByID(ctx context.Context, id string) (*domain.TaskRecord, error)
	GetByUser(ctx context.Context, userID string, limit int) ([]domain.TaskRecord, error)
	GetTerminalByUser(ctx context.Context, userID string, limit int) ([]domain.TaskRecord, error)
}
