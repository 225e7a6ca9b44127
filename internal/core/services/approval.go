package services

import (
	"sync"

	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/infrastructure/logger"
)

// ApprovalPolicy decides whether a step needs human confirmation before it
// runs. The config is operational tuning: mutable at runtime, never persisted.
type ApprovalPolicy struct {
	mu     sync.RWMutex
	cfg    ports.PolicyConfig
	logger *logger.Logger
}

func NewApprovalPolicy(cfg ports.PolicyConfig, log *logger.Logger) *ApprovalPolicy {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 20
	}
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 5
	}
	return &ApprovalPolicy{cfg: cfg, logger: log}
}

// NeedsApproval applies the precedence: an explicit never-approve entry wins,
// then always-approve, then default-safe true for anything unlisted.
func (p *ApprovalPolicy) NeedsApproval(toolName string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, name := range p.cfg.NeverApprove {
		if name == toolName {
			return false
		}
	}
	for _, name := range p.cfg.AlwaysApprove {
		if name == toolName {
			return true
		}
	}
	return true
}

// Snapshot returns a copy of the current config.
func (p *ApprovalPolicy) Snapshot() ports.PolicyConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cfg := p.cfg
	cfg.AlwaysApprove = append([]string(nil), p.cfg.AlwaysApprove...)
	cfg.NeverApprove = append([]string(nil), p.cfg.NeverApprove...)
	return cfg
}

// Update replaces the config. Zero bounds keep their previous values so a
// partial update cannot disable the limits.
func (p *ApprovalPolicy) Update(cfg ports.PolicyConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = p.cfg.MaxSteps
	}
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = p.cfg.MaxConcurrentTasks
	}
	p.cfg = cfg
	if p.logger != nil {
		p.logger.Infow("approval_policy_updated",
			"always_approve", cfg.AlwaysApprove,
			"never_approve", cfg.NeverApprove,
			"max_steps", cfg.MaxSteps,
			"max_concurrent_tasks", cfg.MaxConcurrentTasks,
		)
	}
}

// MaxSteps returns the current per-task step bound.
func (p *ApprovalPolicy) MaxSteps() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.MaxSteps
}

// MaxConcurrentTasks returns the current per-user active task bound.
func (p *ApprovalPolicy) MaxConcurrentTasks() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.MaxConcurrentTasks
}
