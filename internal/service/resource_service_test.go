package service

import (
	"testing"

	"resource-tracker/internal/events"
	"resource-tracker/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) resourceDTO(name string, qty int) ResourceRequestDTO {
	return ResourceRequestDTO{
		Name:     name,
		TypeID:   e.typeID.String(),
		Location: "Batcave",
		Price:    "149.90",
		Quantity: qty,
	}
}

func TestCreateResourceRecordsReceipt(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.resources.Create(env.ctx, env.manager, env.resourceDTO("Utility belt", 12))
	require.NoError(t, err)

	assert.Equal(t, "Utility belt", res.Name)
	assert.Equal(t, model.ResourceStatusAvailable, res.Status)
	assert.Equal(t, 12, res.Quantity)
	assert.True(t, decimal.RequireFromString("149.90").Equal(res.Price))
	assert.NotEmpty(t, res.TypeName)
	assert.Nil(t, res.ImageURL)

	movements, err := env.repo.movements.ListByResource(env.ctx, uuid.MustParse(res.ID), 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementReceive, movements[0].Kind)
	assert.Equal(t, 12, movements[0].QuantityChanged)
}

func TestCreateResourceWithoutStock(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.resources.Create(env.ctx, env.manager, env.resourceDTO("Cape", 0))
	require.NoError(t, err)

	movements, err := env.repo.movements.ListByResource(env.ctx, uuid.MustParse(res.ID), 0)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestCreateResourceValidation(t *testing.T) {
	env := newTestEnv(t)

	dto := env.resourceDTO("Cowl", 1)
	dto.Price = "-1"
	_, err := env.resources.Create(env.ctx, env.manager, dto)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	dto = env.resourceDTO("Cowl", 1)
	dto.Price = "cheap"
	_, err = env.resources.Create(env.ctx, env.manager, dto)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	dto = env.resourceDTO("Cowl", 1)
	dto.TypeID = uuid.NewString()
	_, err = env.resources.Create(env.ctx, env.manager, dto)
	assert.ErrorIs(t, err, ErrInvalidResourceType)

	dto = env.resourceDTO("Cowl", -1)
	_, err = env.resources.Create(env.ctx, env.manager, dto)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	dto = env.resourceDTO("Cowl", maxQuantity+1)
	_, err = env.resources.Create(env.ctx, env.manager, dto)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateResourceKeepsQuantity(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.resources.Create(env.ctx, env.manager, env.resourceDTO("Tumbler tyre", 4))
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	dto := env.resourceDTO("Tumbler tyre (armored)", 999)
	dto.Status = "maintenance"
	dto.ImageURL = "https://images.unsplash.com/photo-1"
	updated, err := env.resources.Update(env.ctx, env.manager, id, dto)
	require.NoError(t, err)

	assert.Equal(t, "Tumbler tyre (armored)", updated.Name)
	assert.Equal(t, "maintenance", updated.Status)
	assert.Equal(t, 4, updated.Quantity)
	require.NotNil(t, updated.ImageURL)
	assert.Equal(t, "https://images.unsplash.com/photo-1", *updated.ImageURL)
}

func TestUpdateUnknownResource(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.resources.Update(env.ctx, env.manager, uuid.New(), env.resourceDTO("Ghost", 0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteResourceRefusedWhileInUse(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Bat-signal bulb", 100, 5)

	created, err := env.requests.Create(env.ctx, env.employee, resID, CreateWriteOffRequest{Quantity: 1})
	require.NoError(t, err)

	err = env.resources.Delete(env.ctx, env.admin, resID)
	assert.ErrorIs(t, err, ErrResourceInUse)

	_, err = env.requests.Approve(env.ctx, env.manager, uuid.MustParse(created.ID))
	require.NoError(t, err)

	require.NoError(t, env.resources.Delete(env.ctx, env.admin, resID))
	_, err = env.resources.Get(env.ctx, resID)
	assert.ErrorIs(t, err, ErrNotFound)

	// history still resolves the deleted resource
	req := env.request(t, created.ID)
	require.NotNil(t, req.Resource)
	assert.Equal(t, "Bat-signal bulb", req.Resource.Name)
}

func TestReceiveStock(t *testing.T) {
	env := newTestEnv(t)
	resID := env.createResource(t, "Rebreather", 80, 2)

	res, err := env.resources.Receive(env.ctx, env.employee, resID, 8)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Quantity)
	assert.Equal(t, []string{events.StockReceived}, env.pub.types())

	movements, err := env.repo.movements.ListByResource(env.ctx, resID, 1)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, 10, movements[0].QuantityAfter)

	_, err = env.resources.Receive(env.ctx, env.employee, resID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = env.resources.Receive(env.ctx, env.employee, resID, maxQuantity+1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = env.resources.Receive(env.ctx, env.employee, resID, maxQuantity)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, 10, env.quantity(t, resID))
	_, err = env.resources.Receive(env.ctx, env.employee, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListResourcesSearch(t *testing.T) {
	env := newTestEnv(t)
	env.createResource(t, "Batmobile", 100, 1)
	env.createResource(t, "Batwing", 100, 1)
	env.createResource(t, "Radio", 100, 1)

	res, total, err := env.resources.List(env.ctx, 1, 10, "bat")
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, res, 2)

	res, total, err = env.resources.List(env.ctx, 1, 2, "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, res, 2)
}

func TestSeedDefaultTypesIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.resources.SeedDefaultTypes(env.ctx))

	types, err := env.resources.ListTypes(env.ctx)
	require.NoError(t, err)
	assert.Len(t, types, len(DefaultResourceTypes))
}
