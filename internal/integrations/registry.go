package integrations

import (
	"context"
	"fmt"
	"sync"

	"github.com/whutos/backend/internal/domain"
	"github.com/whutos/backend/internal/infrastructure/logger"
)

// ToolHandler fetches from or mutates one provider and returns a normalized
// result. Handlers are supplied by the integration layer (Gmail, Calendar,
// Drive, Slack, Notion, TikTok Shop clients).
type ToolHandler func(ctx context.Context, params domain.JSONB) (domain.JSONB, error)

// Registry maps tool names to handlers and implements the executor boundary
// the orchestration core invokes steps through.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]ToolHandler
	logger   *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]ToolHandler),
		logger:   log,
	}
}

// Register adds a handler for a tool name. Re-registering replaces the
// previous handler so a reconnected integration can swap its client in.
func (r *Registry) Register(name string, handler ToolHandler) error {
	if name == "" || handler == nil {
		return fmt.Errorf("integrations: invalid tool registration")
	}
	r.mu.Lock()
	r.handlers[name] = handler
	r.mu.Unlock()
	return nil
}

// Has reports whether a handler is registered for the tool.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Execute runs the named tool. Unknown tools are an error the executor
// records on the step rather than a crash.
func (r *Registry) Execute(ctx context.Context, toolName string, params domain.JSONB, integrationID string) (domain.JSONB, error) {
	r.mu.RLock()
	handler, ok := r.handlers[toolName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("integrations: no handler for tool %q", toolName)
	}

	result, err := handler(ctx, params)
	if err != nil {
		r.logger.Warnw("tool_execute_failed", "tool", toolName, "integration_id", integrationID, "error", err)
		return nil, err
	}
	return result, nil
}
