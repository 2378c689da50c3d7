// Package approval holds the two-tier decision rules for stock write-off
// requests. It has no storage or transport dependencies: callers load the
// request, ask the Machine for a Decision and persist it themselves.
package approval

import (
	"errors"

	"resource-tracker/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultThreshold is the total value above which a manager approval is
// required before an admin can conclude the write-off.
var DefaultThreshold = decimal.NewFromInt(10000)

var (
	ErrAlreadyProcessed     = errors.New("request already processed")
	ErrAlreadyRejected      = errors.New("request already rejected")
	ErrNeedsManagerApproval = errors.New("requests above the approval threshold need manager approval first")
	ErrActorNotAllowed      = errors.New("role cannot decide on write-off requests")
	ErrInvalidTransition    = errors.New("invalid request status transition")
)

// Actor is the role acting on a request.
type Actor string

const (
	ActorManager Actor = model.RoleManager
	ActorAdmin   Actor = model.RoleAdmin
)

// Decision is the outcome of a successful evaluation.
type Decision struct {
	Next          model.RequestStatus
	RecordManager bool // store the actor as the request's manager approver
	RecordAdmin   bool // store the actor as the request's admin approver
	RestoreStock  bool // give the reserved quantity back to the resource
}

// Machine evaluates approve/reject actions against a fixed threshold.
type Machine struct {
	threshold decimal.Decimal
}

func NewMachine(threshold decimal.Decimal) *Machine {
	if threshold.IsNegative() {
		threshold = DefaultThreshold
	}
	return &Machine{threshold: threshold}
}

func (m *Machine) Threshold() decimal.Decimal {
	return m.threshold
}

// RequiresTwoTiers reports whether a request of this value must pass through
// manager_approved before it can be approved.
func (m *Machine) RequiresTwoTiers(total decimal.Decimal) bool {
	return total.GreaterThan(m.threshold)
}

// Approve evaluates an approval by actor on a request in status current.
func (m *Machine) Approve(current model.RequestStatus, actor Actor, total decimal.Decimal) (Decision, error) {
	switch actor {
	case ActorManager:
		if current != model.RequestPending {
			return Decision{}, ErrAlreadyProcessed
		}
		if m.RequiresTwoTiers(total) {
			return Decision{Next: model.RequestManagerApproved, RecordManager: true}, nil
		}
		return Decision{Next: model.RequestApproved, RecordManager: true}, nil

	case ActorAdmin:
		if current.Terminal() {
			return Decision{}, ErrAlreadyProcessed
		}
		if m.RequiresTwoTiers(total) {
			if current != model.RequestManagerApproved {
				return Decision{}, ErrNeedsManagerApproval
			}
			return Decision{Next: model.RequestApproved, RecordAdmin: true}, nil
		}
		if current != model.RequestPending {
			// manager_approved is only entered above the threshold
			return Decision{}, ErrInvalidTransition
		}
		return Decision{Next: model.RequestApproved, RecordAdmin: true}, nil
	}

	return Decision{}, ErrActorNotAllowed
}

// Reject evaluates a rejection. Rejecting an already rejected request returns
// ErrAlreadyRejected, which callers treat as a warning rather than a failure.
func (m *Machine) Reject(current model.RequestStatus, actor Actor) (Decision, error) {
	if actor != ActorManager && actor != ActorAdmin {
		return Decision{}, ErrActorNotAllowed
	}

	switch current {
	case model.RequestRejected:
		return Decision{}, ErrAlreadyRejected
	case model.RequestApproved:
		return Decision{}, ErrAlreadyProcessed
	case model.RequestPending, model.RequestManagerApproved:
		return Decision{
			Next:          model.RequestRejected,
			RecordManager: actor == ActorManager,
			RecordAdmin:   actor == ActorAdmin,
			RestoreStock:  true,
		}, nil
	}

	return Decision{}, ErrInvalidTransition
}

// AwaitingStatuses returns the statuses that still need a decision from actor.
func (m *Machine) AwaitingStatuses(actor Actor) []model.RequestStatus {
	switch actor {
	case ActorManager:
		return []model.RequestStatus{model.RequestPending}
	case ActorAdmin:
		return []model.RequestStatus{model.RequestPending, model.RequestManagerApproved}
	}
	return nil
}
