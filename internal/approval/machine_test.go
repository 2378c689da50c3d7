package approval

import (
	"testing"

	"resource-tracker/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprove_TransitionTable(t *testing.T) {
	m := NewMachine(DefaultThreshold)
	low := decimal.NewFromInt(500)
	atThreshold := decimal.NewFromInt(10000)
	high := decimal.NewFromInt(15000)

	tests := []struct {
		name    string
		current model.RequestStatus
		actor   Actor
		total   decimal.Decimal
		want    Decision
		wantErr error
	}{
		{"manager low pending", model.RequestPending, ActorManager, low, Decision{Next: model.RequestApproved, RecordManager: true}, nil},
		{"manager at threshold", model.RequestPending, ActorManager, atThreshold, Decision{Next: model.RequestApproved, RecordManager: true}, nil},
		{"manager high pending", model.RequestPending, ActorManager, high, Decision{Next: model.RequestManagerApproved, RecordManager: true}, nil},
		{"admin low pending", model.RequestPending, ActorAdmin, low, Decision{Next: model.RequestApproved, RecordAdmin: true}, nil},
		{"admin high pending", model.RequestPending, ActorAdmin, high, Decision{}, ErrNeedsManagerApproval},
		{"admin high manager approved", model.RequestManagerApproved, ActorAdmin, high, Decision{Next: model.RequestApproved, RecordAdmin: true}, nil},
		{"admin low manager approved", model.RequestManagerApproved, ActorAdmin, low, Decision{}, ErrInvalidTransition},
		{"manager on manager approved", model.RequestManagerApproved, ActorManager, high, Decision{}, ErrAlreadyProcessed},
		{"manager on approved", model.RequestApproved, ActorManager, low, Decision{}, ErrAlreadyProcessed},
		{"manager on rejected", model.RequestRejected, ActorManager, low, Decision{}, ErrAlreadyProcessed},
		{"admin on approved", model.RequestApproved, ActorAdmin, low, Decision{}, ErrAlreadyProcessed},
		{"admin on rejected high", model.RequestRejected, ActorAdmin, high, Decision{}, ErrAlreadyProcessed},
		{"employee", model.RequestPending, Actor(model.RoleEmployee), low, Decision{}, ErrActorNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Approve(tt.current, tt.actor, tt.total)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReject(t *testing.T) {
	m := NewMachine(DefaultThreshold)

	d, err := m.Reject(model.RequestPending, ActorManager)
	require.NoError(t, err)
	assert.Equal(t, Decision{Next: model.RequestRejected, RecordManager: true, RestoreStock: true}, d)

	d, err = m.Reject(model.RequestManagerApproved, ActorAdmin)
	require.NoError(t, err)
	assert.Equal(t, Decision{Next: model.RequestRejected, RecordAdmin: true, RestoreStock: true}, d)

	_, err = m.Reject(model.RequestRejected, ActorAdmin)
	assert.ErrorIs(t, err, ErrAlreadyRejected)

	_, err = m.Reject(model.RequestApproved, ActorManager)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	_, err = m.Reject(model.RequestPending, Actor(model.RoleEmployee))
	assert.ErrorIs(t, err, ErrActorNotAllowed)
}

// A request above the threshold cannot reach approved without passing
// through manager_approved, whatever order the actors act in.
func TestHighValueNeverSkipsManagerTier(t *testing.T) {
	m := NewMachine(DefaultThreshold)
	high := decimal.RequireFromString("10000.01")
	actors := []Actor{ActorManager, ActorAdmin}

	var walk func(status model.RequestStatus, seen []model.RequestStatus, depth int)
	walk = func(status model.RequestStatus, seen []model.RequestStatus, depth int) {
		if depth > 4 {
			return
		}
		for _, a := range actors {
			d, err := m.Approve(status, a, high)
			if err != nil {
				continue
			}
			path := append(append([]model.RequestStatus{}, seen...), d.Next)
			if d.Next == model.RequestApproved {
				assert.Contains(t, path, model.RequestManagerApproved, "path %v", path)
			}
			walk(d.Next, path, depth+1)
		}
	}
	walk(model.RequestPending, []model.RequestStatus{model.RequestPending}, 0)
}

func TestAwaitingStatuses(t *testing.T) {
	m := NewMachine(DefaultThreshold)
	assert.Equal(t, []model.RequestStatus{model.RequestPending}, m.AwaitingStatuses(ActorManager))
	assert.ElementsMatch(t, []model.RequestStatus{model.RequestPending, model.RequestManagerApproved}, m.AwaitingStatuses(ActorAdmin))
	assert.Empty(t, m.AwaitingStatuses(Actor(model.RoleEmployee)))
}

func TestNewMachine_NegativeThresholdFallsBack(t *testing.T) {
	m := NewMachine(decimal.NewFromInt(-1))
	assert.True(t, m.Threshold().Equal(DefaultThreshold))
}
