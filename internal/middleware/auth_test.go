package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"resource-tracker/internal/auth"
	"resource-tracker/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type loaderStub struct {
	calls int
	perms map[string][]string
}

func (l *loaderStub) load(_ context.Context, role string) ([]string, error) {
	l.calls++
	codes, ok := l.perms[role]
	if !ok {
		return nil, errors.New("role not found")
	}
	return codes, nil
}

// userStub plays the users table behind the session resolver.
type userStub struct {
	mu    sync.Mutex
	calls int
	users map[uuid.UUID]service.Actor
	err   error
}

func newUserStub() *userStub {
	return &userStub{users: map[uuid.UUID]service.Actor{}}
}

func (u *userStub) load(_ context.Context, id uuid.UUID) (service.Actor, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if u.err != nil {
		return service.Actor{}, u.err
	}
	a, ok := u.users[id]
	if !ok {
		return service.Actor{}, service.ErrSessionRevoked
	}
	return a, nil
}

func (u *userStub) set(a service.Actor) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users[a.ID] = a
}

func (u *userStub) remove(id uuid.UUID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.users, id)
}

// issue registers a user and returns a token for it.
func issue(t *testing.T, tokens *auth.TokenManager, users *userStub, name, role string) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	users.set(service.Actor{ID: id, Name: name, Role: role})
	token, _, err := tokens.Issue(id, name, role)
	require.NoError(t, err)
	return id, token
}

func newRouter(tokens *auth.TokenManager, sessions *SessionResolver, resolver *PermissionResolver) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()), Prometheus())
	protected := r.Group("", RequireSession(tokens, sessions))
	protected.GET("/whoami", func(c *gin.Context) {
		actor, _ := CurrentActor(c)
		c.String(http.StatusOK, actor.Name+"/"+actor.Role)
	})
	protected.POST("/baixas/:id/aprovar", resolver.RequirePermission("requests.decide"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireSession(t *testing.T) {
	tokens := auth.NewTokenManager([]byte("secret"), time.Hour)
	users := newUserStub()
	r := newRouter(tokens, NewSessionResolver(users.load, time.Minute), NewPermissionResolver((&loaderStub{}).load, time.Minute))

	_, token := issue(t, tokens, users, "Lucius Fox", "manager")

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Lucius Fox/manager", w.Body.String())
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"level":"danger"`)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Token "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("forged", func(t *testing.T) {
		forged, _, err := auth.NewTokenManager([]byte("other"), time.Hour).Issue(uuid.New(), "Joker", "admin")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	tokens := auth.NewTokenManager([]byte("secret"), time.Hour)
	loader := &loaderStub{perms: map[string][]string{
		"employee": {"stock.request"},
		"manager":  {"stock.request", "requests.decide"},
	}}
	users := newUserStub()
	r := newRouter(tokens, NewSessionResolver(users.load, time.Minute), NewPermissionResolver(loader.load, time.Minute))

	call := func(role string) int {
		_, token := issue(t, tokens, users, "someone", role)
		req := httptest.NewRequest(http.MethodPost, "/baixas/1/aprovar", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, call("manager"))
	assert.Equal(t, http.StatusForbidden, call("employee"))
	assert.Equal(t, http.StatusForbidden, call("riddler"))
}

func TestRequireSession_UsesStoredUser(t *testing.T) {
	tokens := auth.NewTokenManager([]byte("secret"), time.Hour)
	users := newUserStub()
	loader := &loaderStub{perms: map[string][]string{
		"employee": {"stock.request"},
		"manager":  {"stock.request", "requests.decide"},
	}}
	r := newRouter(tokens, NewSessionResolver(users.load, time.Minute), NewPermissionResolver(loader.load, time.Minute))

	approve := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/baixas/1/aprovar", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("role comes from the store", func(t *testing.T) {
		id, token := issue(t, tokens, users, "Lucius Fox", "manager")
		users.set(service.Actor{ID: id, Name: "Lucius Fox", Role: "employee"})
		assert.Equal(t, http.StatusForbidden, approve(token))
	})

	t.Run("removed user", func(t *testing.T) {
		id, token := issue(t, tokens, users, "Harvey Dent", "manager")
		users.remove(id)
		assert.Equal(t, http.StatusUnauthorized, approve(token))
	})

	t.Run("store failure", func(t *testing.T) {
		_, token := issue(t, tokens, users, "Selina Kyle", "manager")
		users.err = errors.New("connection refused")
		defer func() { users.err = nil }()
		assert.Equal(t, http.StatusInternalServerError, approve(token))
	})
}

func TestSessionResolver(t *testing.T) {
	users := newUserStub()
	resolver := NewSessionResolver(users.load, 30*time.Second)
	now := time.Now()
	resolver.now = func() time.Time { return now }

	id := uuid.New()
	users.set(service.Actor{ID: id, Name: "Lucius Fox", Role: "manager"})

	for i := 0; i < 3; i++ {
		a, err := resolver.Actor(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "manager", a.Role)
	}
	assert.Equal(t, 1, users.calls)

	users.set(service.Actor{ID: id, Name: "Lucius Fox", Role: "employee"})
	resolver.Forget(id)
	a, err := resolver.Actor(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "employee", a.Role)
	assert.Equal(t, 2, users.calls)

	users.remove(id)
	now = now.Add(time.Minute)
	_, err = resolver.Actor(context.Background(), id)
	assert.ErrorIs(t, err, service.ErrSessionRevoked)

	// misses are not cached
	_, err = resolver.Actor(context.Background(), id)
	assert.ErrorIs(t, err, service.ErrSessionRevoked)
	assert.Equal(t, 4, users.calls)
}

func TestPermissionResolverCaches(t *testing.T) {
	loader := &loaderStub{perms: map[string][]string{"manager": {"requests.decide"}}}
	resolver := NewPermissionResolver(loader.load, time.Minute)
	now := time.Now()
	resolver.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		perms, err := resolver.Permissions(context.Background(), "manager")
		require.NoError(t, err)
		assert.True(t, perms["requests.decide"])
	}
	assert.Equal(t, 1, loader.calls)

	now = now.Add(2 * time.Minute)
	_, err := resolver.Permissions(context.Background(), "manager")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)

	resolver.Clear("")
	_, err = resolver.Permissions(context.Background(), "manager")
	require.NoError(t, err)
	assert.Equal(t, 3, loader.calls)
}

func TestSessionCookie(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	SetSessionCookie(c, "tok", time.Now().Add(time.Hour), false)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Greater(t, cookies[0].MaxAge, 0)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	ClearSessionCookie(c, false)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}
