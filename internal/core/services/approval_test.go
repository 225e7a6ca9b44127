package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/infrastructure/logger"
)

func newTestPolicy() *ApprovalPolicy {
	return NewApprovalPolicy(ports.PolicyConfig{
		AlwaysApprove:      []string{"send_email", "delete_file"},
		NeverApprove:       []string{"fetch_emails", "fetch_calendar"},
		MaxSteps:           10,
		MaxConcurrentTasks: 3,
	}, logger.NewNop())
}

func TestNeedsApproval_Precedence(t *testing.T) {
	policy := NewApprovalPolicy(ports.PolicyConfig{
		AlwaysApprove: []string{"send_email", "fetch_emails"},
		NeverApprove:  []string{"fetch_emails"},
	}, logger.NewNop())

	tests := []struct {
		name string
		tool string
		want bool
	}{
		{"NeverApproveWins", "fetch_emails", false}, // listed in both; never wins
		{"AlwaysApprove", "send_email", true},
		{"UnlistedDefaultsToTrue", "create_calendar_event", true},
		{"UnknownToolDefaultsToTrue", "launch_rocket", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.NeedsApproval(tt.tool))
		})
	}
}

func TestPolicyUpdate_KeepsBoundsOnZero(t *testing.T) {
	policy := newTestPolicy()

	policy.Update(ports.PolicyConfig{
		NeverApprove: []string{"send_email"},
	})

	assert.False(t, policy.NeedsApproval("send_email"))
	assert.Equal(t, 10, policy.MaxSteps())
	assert.Equal(t, 3, policy.MaxConcurrentTasks())
}

func TestPolicySnapshot_IsACopy(t *testing.T) {
	policy := newTestPolicy()

	snap := policy.Snapshot()
	snap.NeverApprove[0] = "send_email"

	assert.True(t, policy.NeedsApproval("send_email"))
	assert.False(t, policy.NeedsApproval("fetch_emails"))
}

func TestPolicyDefaults(t *testing.T) {
	policy := NewApprovalPolicy(ports.PolicyConfig{}, logger.NewNop())

	assert.Equal(t, 20, policy.MaxSteps())
	assert.Equal(t, 5, policy.MaxConcurrentTasks())
}

func TestIsExternalAction(t *testing.T) {
	assert.True(t, IsExternalAction("send_email"))
	assert.True(t, IsExternalAction("delete_calendar_event"))
	assert.False(t, IsExternalAction("fetch_emails"))
	assert.False(t, IsExternalAction("no_such_tool"))
}
