package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/domain"
	"github.com/whutos/backend/internal/infrastructure/logger"
)

// EventsHandler streams task snapshots to the dashboard over a WebSocket.
// Delivery is best-effort: a slow consumer drops updates rather than
// blocking the state machine.
type EventsHandler struct {
	tasks  ports.TaskService
	logger *logger.Logger
}

func NewEventsHandler(tasks ports.TaskService, logger *logger.Logger) *EventsHandler {
	return &EventsHandler{tasks: tasks, logger: logger}
}

func (h *EventsHandler) Handle(c *websocket.Conn) {
	userID := c.Query("user_id")
	taskID := c.Query("task_id")

	updates := make(chan *domain.Task, 64)
	listener := func(task *domain.Task) {
		if userID != "" && task.UserID != userID {
			return
		}
		select {
		case updates <- task:
		default:
		}
	}

	var unsubscribe func()
	if taskID != "" {
		unsubscribe = h.tasks.Subscribe(taskID, listener)
	} else {
		unsubscribe = h.tasks.SubscribeAll(listener)
	}
	defer unsubscribe()

	h.logger.Infow("events_stream_opened", "user_id", userID, "task_id", taskID)

	// the read loop only exists to notice the peer going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.Infow("events_stream_closed", "user_id", userID, "task_id", taskID)
			return
		case task := <-updates:
			if err := c.WriteJSON(task); err != nil {
				h.logger.Warnw("events_stream_write_failed", "error", err)
				return
			}
		}
	}
}
