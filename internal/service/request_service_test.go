package service

import (
	"context"
	"errors"
	"testing"

	"resource-tracker/internal/approval"
	"resource-tracker/internal/events"
	"resource-tracker/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReservesStock(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Night vision goggles", 100, 10)

	res, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 5})
	require.NoError(t, err)

	assert.Equal(t, string(model.RequestPending), res.Status)
	assert.True(t, decimal.NewFromInt(500).Equal(res.TotalValue))
	assert.Equal(t, "Night vision goggles", res.ResourceName)
	assert.Equal(t, "Alfred Pennyworth", res.RequesterName)
	assert.Equal(t, 1, res.Version)
	assert.Equal(t, 5, env.quantity(t, resID))

	movements, err := env.repo.movements.ListByRequest(env.ctx, uuid.MustParse(res.ID))
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementReserve, movements[0].Kind)
	assert.Equal(t, -5, movements[0].QuantityChanged)
	assert.Equal(t, 5, movements[0].QuantityAfter)

	logs, err := env.repo.audit.ListByEntity(env.ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionRequestWriteOff, logs[0].Action)

	assert.Equal(t, []string{events.RequestCreated}, env.pub.types())
}

func TestCreateRejectsInvalidQuantity(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Grapple gun", 100, 10)

	for _, qty := range []int{0, -3, maxQuantity + 1} {
		_, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: qty})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Equal(t, 10, env.quantity(t, resID))
	assert.Zero(t, env.countRequests(t))
}

func TestCreateInsufficientStockLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Kevlar vest", 100, 3)

	_, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 5})
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 3, env.quantity(t, resID))
	assert.Zero(t, env.countRequests(t))
	assert.Empty(t, env.pub.types())
}

func TestCreateUnknownResource(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.requests.Create(env.ctx, env.employee, uuid.New(), CreateWriteOffRequest{Quantity: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateWholeStock(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Smoke pellets", 10, 4)

	_, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 4})
	require.NoError(t, err)
	assert.Zero(t, env.quantity(t, resID))

	_, err = env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 1})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestManagerApprovesLowValueRequest(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Radio", 100, 10)

	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 5})
	require.NoError(t, err)

	res, err := env.requests.Approve(env.ctx, env.manager, uuid.MustParse(created.ID))
	require.NoError(t, err)

	assert.Equal(t, string(model.RequestApproved), res.Status)
	require.NotNil(t, res.ManagerID)
	assert.Equal(t, env.manager.ID.String(), *res.ManagerID)
	assert.Nil(t, res.AdminID)
	assert.Equal(t, 2, res.Version)
	assert.Equal(t, 5, env.quantity(t, resID), "approval does not move stock again")
	assert.Equal(t, []string{events.RequestCreated, events.RequestApproved}, env.pub.types())
}

func TestThresholdBoundaryIsSingleTier(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Drone", 1000, 20)

	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 10})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(10000).Equal(created.TotalValue))

	res, err := env.requests.Approve(env.ctx, env.manager, uuid.MustParse(created.ID))
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestApproved), res.Status)
}

func TestHighValueNeedsBothTiers(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Armored car parts", 100, 200)

	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 150})
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)
	assert.Equal(t, 50, env.quantity(t, resID))

	res, err := env.requests.Approve(env.ctx, env.manager, id)
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestManagerApproved), res.Status)

	_, err = env.requests.Approve(env.ctx, env.manager, id)
	assert.ErrorIs(t, err, approval.ErrAlreadyProcessed)

	res, err = env.requests.Approve(env.ctx, env.admin, id)
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestApproved), res.Status)
	require.NotNil(t, res.ManagerID)
	require.NotNil(t, res.AdminID)
	assert.Equal(t, env.admin.ID.String(), *res.AdminID)
	assert.Equal(t, 50, env.quantity(t, resID))

	assert.Equal(t, []string{events.RequestCreated, events.RequestManagerApproved, events.RequestApproved}, env.pub.types())
}

func TestAdminCannotSkipManagerOnHighValue(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Armored car parts", 100, 200)

	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 150})
	require.NoError(t, err)

	_, err = env.requests.Approve(env.ctx, env.admin, uuid.MustParse(created.ID))
	require.ErrorIs(t, err, approval.ErrNeedsManagerApproval)

	req := env.request(t, created.ID)
	assert.Equal(t, model.RequestPending, req.Status)
	assert.Equal(t, 1, req.Version)
	assert.Nil(t, req.AdminID)
}

func TestAdminApprovesLowValueAlone(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Radio", 100, 10)

	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 2})
	require.NoError(t, err)

	res, err := env.requests.Approve(env.ctx, env.admin, uuid.MustParse(created.ID))
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestApproved), res.Status)
	assert.Nil(t, res.ManagerID)
	require.NotNil(t, res.AdminID)
}

func TestEmployeeCannotDecide(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Radio", 100, 10)
	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 2})
	require.NoError(t, err)

	_, err = env.requests.Approve(env.ctx, env.employee, uuid.MustParse(created.ID))
	assert.ErrorIs(t, err, approval.ErrActorNotAllowed)
	_, err = env.requests.Reject(env.ctx, env.employee, uuid.MustParse(created.ID))
	assert.ErrorIs(t, err, approval.ErrActorNotAllowed)
}

func TestDecideUnknownRequest(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.requests.Approve(env.ctx, env.manager, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.requests.Reject(env.ctx, env.manager, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectRestoresStockExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Batarang", 50, 10)

	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 5})
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	res, err := env.requests.Reject(env.ctx, env.manager, id)
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestRejected), res.Status)
	assert.Equal(t, 10, env.quantity(t, resID))

	_, err = env.requests.Reject(env.ctx, env.admin, id)
	assert.ErrorIs(t, err, approval.ErrAlreadyRejected)
	assert.Equal(t, 10, env.quantity(t, resID))

	_, err = env.requests.Approve(env.ctx, env.admin, id)
	assert.ErrorIs(t, err, approval.ErrAlreadyProcessed)

	movements, err := env.repo.movements.ListByRequest(env.ctx, id)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	sum := 0
	for _, m := range movements {
		sum += m.QuantityChanged
	}
	assert.Zero(t, sum)
	assert.Equal(t, model.MovementRestore, movements[1].Kind)
	assert.Equal(t, 10, movements[1].QuantityAfter)
}

func TestRejectAfterManagerApproval(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Armored car parts", 100, 200)

	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 150})
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	_, err = env.requests.Approve(env.ctx, env.manager, id)
	require.NoError(t, err)

	res, err := env.requests.Reject(env.ctx, env.admin, id)
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestRejected), res.Status)
	require.NotNil(t, res.AdminID)
	assert.Equal(t, 200, env.quantity(t, resID))
}

func TestApprovedRequestIsImmutable(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Radio", 100, 10)

	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 4})
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	_, err = env.requests.Approve(env.ctx, env.manager, id)
	require.NoError(t, err)

	_, err = env.requests.Reject(env.ctx, env.admin, id)
	assert.ErrorIs(t, err, approval.ErrAlreadyProcessed)
	_, err = env.requests.Approve(env.ctx, env.admin, id)
	assert.ErrorIs(t, err, approval.ErrAlreadyProcessed)

	assert.Equal(t, 6, env.quantity(t, resID))
	assert.Equal(t, model.RequestApproved, env.request(t, created.ID).Status)
}

func TestReservationInvariantHolds(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Flashbang", 100, 30)

	a, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 5})
	require.NoError(t, err)
	b, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 7})
	require.NoError(t, err)
	_, err = env.requests.Create(env.ctx, env.manager, resID, CreateWriteOffRequest{Quantity: 3})
	require.NoError(t, err)

	_, err = env.requests.Approve(env.ctx, env.manager, uuid.MustParse(a.ID))
	require.NoError(t, err)
	_, err = env.requests.Reject(env.ctx, env.manager, uuid.MustParse(b.ID))
	require.NoError(t, err)
	_, err = env.resources.Receive(env.ctx, env.employee, resID, 4)
	require.NoError(t, err)

	// quantity + open/approved reservations == initial + received
	reqs, _, err := env.requests.List(env.ctx, RequestListFilter{})
	require.NoError(t, err)
	reserved := 0
	for _, r := range reqs {
		if r.Status != string(model.RequestRejected) {
			reserved += r.Quantity
		}
	}
	assert.Equal(t, 30+4, env.quantity(t, resID)+reserved)

	movements, err := env.repo.movements.ListByResource(env.ctx, resID, 0)
	require.NoError(t, err)
	sum := 0
	for _, m := range movements {
		sum += m.QuantityChanged
	}
	assert.Equal(t, env.quantity(t, resID)-30, sum)
}

func TestListFiltersByStatus(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Radio", 100, 10)

	a, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 1})
	require.NoError(t, err)
	_, err = env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 1})
	require.NoError(t, err)
	_, err = env.requests.Approve(env.ctx, env.manager, uuid.MustParse(a.ID))
	require.NoError(t, err)

	all, total, err := env.requests.List(env.ctx, RequestListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	pending, total, err := env.requests.List(env.ctx, RequestListFilter{Status: string(model.RequestPending)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, pending, 1)
	assert.Equal(t, "Radio", pending[0].ResourceName)
}

func TestPendingCountPerRole(t *testing.T) {
	env := newTestEnv(t)
	cheap := env.createResource(t, "Radio", 100, 10)
	pricey := env.createResource(t, "Armored car parts", 100, 200)

	_, err := env.requests.Create(env.ctx, env.employee, cheap, CreateWriteOffRequest{Quantity: 1})
	require.NoError(t, err)
	high, err := env.requests.Create(env.ctx, env.employee, pricey, CreateWriteOffRequest{Quantity: 150})
	require.NoError(t, err)
	_, err = env.requests.Approve(env.ctx, env.manager, uuid.MustParse(high.ID))
	require.NoError(t, err)

	n, err := env.requests.PendingCount(env.ctx, model.RoleManager)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = env.requests.PendingCount(env.ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = env.requests.PendingCount(env.ctx, model.RoleEmployee)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStaleVersionIsRefused(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Radio", 100, 10)
	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 1})
	require.NoError(t, err)

	stale := env.request(t, created.ID)
	_, err = env.requests.Approve(env.ctx, env.manager, stale.ID)
	require.NoError(t, err)

	stale.Status = model.RequestRejected
	ok, err := env.repo.requests.UpdateDecision(env.ctx, stale, stale.Version)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.RequestApproved, env.request(t, created.ID).Status)
}

type fakeGuard struct {
	claimed  map[string]bool
	released []string
	err      error
}

func (g *fakeGuard) Claim(_ context.Context, scope, key string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	k := scope + "/" + key
	if g.claimed[k] {
		return false, nil
	}
	g.claimed[k] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, scope, key string) error {
	k := scope + "/" + key
	delete(g.claimed, k)
	g.released = append(g.released, k)
	return nil
}

func TestDuplicateSubmissionIsRefused(t *testing.T) {
	guard := &fakeGuard{claimed: map[string]bool{}}
	env := newTestEnvWithGuard(t, guard)
	resID := env.createResource(t, "Radio", 100, 10)

	req := CreateWriteOffRequest{Quantity: 2, IdempotencyKey: "form-1"}
	_, err := env.requests.Create(env.ctx, env.employee, resID, req)
	require.NoError(t, err)

	_, err = env.requests.Create(env.ctx, env.employee, resID, req)
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.Equal(t, 8, env.quantity(t, resID))
	assert.EqualValues(t, 1, env.countRequests(t))
}

func TestFailedSubmissionReleasesKey(t *testing.T) {
	guard := &fakeGuard{claimed: map[string]bool{}}
	env := newTestEnvWithGuard(t, guard)
	resID := env.createResource(t, "Radio", 100, 1)

	req := CreateWriteOffRequest{Quantity: 2, IdempotencyKey: "form-2"}
	_, err := env.requests.Create(env.ctx, env.employee, resID, req)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Len(t, guard.released, 1)

	_, err = env.resources.Receive(env.ctx, env.employee, resID, 5)
	require.NoError(t, err)
	_, err = env.requests.Create(env.ctx, env.employee, resID, req)
	assert.NoError(t, err)
}

func TestGuardOutageDoesNotBlockSubmissions(t *testing.T) {
	guard := &fakeGuard{claimed: map[string]bool{}, err: errors.New("redis down")}
	env := newTestEnvWithGuard(t, guard)
	resID := env.createResource(t, "Radio", 100, 10)

	_, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 1, IdempotencyKey: "k"})
	assert.NoError(t, err)
}
