package services

import "errors"

// Task errors
var (
	ErrTaskNotFound      = errors.New("task: not found")
	ErrTaskTerminal      = errors.New("task: already in a terminal state")
	ErrStepNotFound      = errors.New("task: step not found")
	ErrStepsAlreadySet   = errors.New("task: steps already set")
	ErrInvalidTransition = errors.New("task: invalid transition")
	ErrTooManyTasks      = errors.New("task: concurrent task limit reached")
	ErrTooManySteps      = errors.New("task: step limit exceeded")
)

// Planner errors
var (
	ErrPlanningFailed = errors.New("planner: planning failed")
)

// Executor errors
var (
	ErrApprovalTimeout = errors.New("executor: approval timed out")
	ErrNoExecutor      = errors.New("executor: no tool executor configured")
)
