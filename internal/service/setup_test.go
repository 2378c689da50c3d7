package service

import (
	"context"
	"sync"
	"testing"

	"resource-tracker/internal/approval"
	"resource-tracker/internal/auth"
	"resource-tracker/internal/config"
	"resource-tracker/internal/database"
	"resource-tracker/internal/events"
	"resource-tracker/internal/model"
	"resource-tracker/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	ctx  context.Context
	db   *gorm.DB
	pub  *recordingPublisher
	repo struct {
		resources repository.ResourceRepository
		types     repository.ResourceTypeRepository
		requests  repository.RequestRepository
		movements repository.StockMovementRepository
		audit     repository.AuditRepository
		users     repository.UserRepository
		roles     repository.RoleRepository
	}
	tx        repository.TransactionManager
	requests  RequestService
	resources ResourceService
	users     UserService
	roles     RoleService
	dashboard DashboardService
	tokens    *auth.TokenManager

	employee Actor
	manager  Actor
	admin    Actor
	typeID   uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithGuard(t, nil)
}

func newTestEnvWithGuard(t *testing.T, guard SubmissionGuard) *testEnv {
	t.Helper()

	db, err := database.NewConnection(
		config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		gormlogger.Default.LogMode(gormlogger.Silent),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	env := &testEnv{ctx: context.Background(), db: db, pub: &recordingPublisher{}}
	env.repo.resources = repository.NewResourceRepository(db)
	env.repo.types = repository.NewResourceTypeRepository(db)
	env.repo.requests = repository.NewRequestRepository(db)
	env.repo.movements = repository.NewStockMovementRepository(db)
	env.repo.audit = repository.NewAuditRepository(db)
	env.repo.users = repository.NewUserRepository(db)
	env.repo.roles = repository.NewRoleRepository(db)
	env.tx = repository.NewTransactionManager(db)
	env.tokens = auth.NewTokenManager([]byte("test-secret"), 0)

	log := zap.NewNop()
	env.requests = NewRequestService(env.repo.resources, env.repo.requests, env.repo.movements, env.repo.audit,
		env.tx, approval.NewMachine(approval.DefaultThreshold), env.pub, guard, log)
	env.resources = NewResourceService(env.repo.resources, env.repo.types, env.repo.requests, env.repo.movements,
		env.repo.audit, env.tx, env.pub, log)
	env.users = NewUserService(env.repo.users, env.repo.roles, env.repo.audit, env.tx, env.tokens, log)
	env.roles = NewRoleService(env.repo.roles, env.tx)
	env.dashboard = NewDashboardService(env.repo.resources, env.repo.users, NewAuditService(env.repo.audit), env.requests)

	require.NoError(t, env.roles.SeedDefaultRolesAndPermissions(env.ctx))
	require.NoError(t, env.resources.SeedDefaultTypes(env.ctx))

	types, err := env.repo.types.List(env.ctx)
	require.NoError(t, err)
	require.NotEmpty(t, types)
	env.typeID = types[0].ID

	env.employee = env.createUser(t, "Alfred Pennyworth", "alfred", model.RoleEmployee, true)
	env.manager = env.createUser(t, "Lucius Fox", "lucius", model.RoleManager, true)
	env.admin = env.createUser(t, "Bruce Wayne", "bruce", model.RoleAdmin, true)
	return env
}

// createUser inserts a user directly, bypassing the service rules.
func (e *testEnv) createUser(t *testing.T, name, username, role string, approved bool) Actor {
	t.Helper()
	r, err := e.repo.roles.FindByName(e.ctx, role)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	u := &model.User{Name: name, Username: username, Password: string(hash), RoleID: r.ID, Approved: approved}
	require.NoError(t, e.repo.users.Create(e.ctx, u))
	return Actor{ID: u.ID, Name: name, Role: role}
}

func (e *testEnv) createResource(t *testing.T, name string, price int64, qty int) uuid.UUID {
	t.Helper()
	r := &model.Resource{
		Name:     name,
		TypeID:   e.typeID,
		Status:   model.ResourceStatusAvailable,
		Price:    decimal.NewFromInt(price),
		Quantity: qty,
	}
	require.NoError(t, e.repo.resources.Create(e.ctx, r))
	return r.ID
}

func (e *testEnv) quantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	r, err := e.repo.resources.FindByID(e.ctx, id)
	require.NoError(t, err)
	return r.Quantity
}

func (e *testEnv) request(t *testing.T, id string) *model.ResourceRequest {
	t.Helper()
	r, err := e.repo.requests.FindByID(e.ctx, uuid.MustParse(id))
	require.NoError(t, err)
	return r
}

func (e *testEnv) countRequests(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.ResourceRequest{}).Count(&n).Error)
	return n
}
