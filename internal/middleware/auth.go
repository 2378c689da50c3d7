package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"resource-tracker/internal/auth"
	"resource-tracker/internal/service"
	"resource-tracker/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const actorKey = "actor"

// SetSessionCookie stores the session token as an HttpOnly cookie.
func SetSessionCookie(c *gin.Context, token string, expires time.Time, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	maxAge := int(time.Until(expires).Seconds())
	c.SetCookie(auth.CookieName, token, maxAge, "/", "", secure, true)
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(c *gin.Context, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(auth.CookieName, "", -1, "/", "", secure, true)
}

// RequireSession validates the session token, then resolves the caller from
// the user store; the role comes from the database, not from the token. The
// cookie is tried first, then the Authorization header.
func RequireSession(tokens *auth.TokenManager, sessions *SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, cookieErr := c.Cookie(auth.CookieName)
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Please log in to continue"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		claims, err := tokens.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Session expired, please log in again"))
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
			return
		}

		actor, err := sessions.Actor(c.Request.Context(), userID)
		if errors.Is(err, service.ErrSessionRevoked) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Your account is no longer active, please log in again"))
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Something went wrong, please try again"))
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// CurrentActor returns the caller stored by RequireSession.
func CurrentActor(c *gin.Context) (service.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return service.Actor{}, false
	}
	actor, ok := v.(service.Actor)
	return actor, ok
}

// --- Session resolution ---

// SessionLoader returns the current state of a session user. It fails with
// service.ErrSessionRevoked when the user is gone or no longer approved.
type SessionLoader func(ctx context.Context, userID uuid.UUID) (service.Actor, error)

type sessionCacheEntry struct {
	actor     service.Actor
	expiresAt time.Time
}

// SessionResolver keeps session users in a short per-user TTL cache in front
// of the users table. Failed lookups are not cached.
type SessionResolver struct {
	load  SessionLoader
	ttl   time.Duration
	cache sync.Map // user id -> sessionCacheEntry
	now   func() time.Time
}

func NewSessionResolver(load SessionLoader, ttl time.Duration) *SessionResolver {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SessionResolver{load: load, ttl: ttl, now: time.Now}
}

// Actor returns the session user, from cache when fresh.
func (r *SessionResolver) Actor(ctx context.Context, userID uuid.UUID) (service.Actor, error) {
	if entry, ok := r.cache.Load(userID); ok {
		cached := entry.(sessionCacheEntry)
		if r.now().Before(cached.expiresAt) {
			return cached.actor, nil
		}
	}

	actor, err := r.load(ctx, userID)
	if err != nil {
		r.cache.Delete(userID)
		return service.Actor{}, err
	}
	r.cache.Store(userID, sessionCacheEntry{actor: actor, expiresAt: r.now().Add(r.ttl)})
	return actor, nil
}

// Forget drops the cached state of a user after it was changed or removed.
func (r *SessionResolver) Forget(userID uuid.UUID) {
	r.cache.Delete(userID)
}

// --- Permission-based middleware ---

// PermissionLoader returns the capability codes granted to a role.
type PermissionLoader func(ctx context.Context, role string) ([]string, error)

// permCacheEntry stores cached permission codes for a role with TTL
type permCacheEntry struct {
	codes     map[string]bool
	expiresAt time.Time
}

// PermissionResolver answers capability checks from a per-role TTL cache in
// front of the roles table.
type PermissionResolver struct {
	load  PermissionLoader
	ttl   time.Duration
	cache sync.Map // role name -> permCacheEntry
	now   func() time.Time
}

func NewPermissionResolver(load PermissionLoader, ttl time.Duration) *PermissionResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PermissionResolver{load: load, ttl: ttl, now: time.Now}
}

// Permissions returns the codes of role, from cache when fresh.
func (r *PermissionResolver) Permissions(ctx context.Context, role string) (map[string]bool, error) {
	if entry, ok := r.cache.Load(role); ok {
		cached := entry.(permCacheEntry)
		if r.now().Before(cached.expiresAt) {
			return cached.codes, nil
		}
	}

	codes, err := r.load(ctx, role)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(codes))
	for _, code := range codes {
		set[code] = true
	}
	r.cache.Store(role, permCacheEntry{codes: set, expiresAt: r.now().Add(r.ttl)})
	return set, nil
}

// Clear drops the cached codes of role, or of every role when role is empty.
func (r *PermissionResolver) Clear(role string) {
	if role != "" {
		r.cache.Delete(role)
		return
	}
	r.cache.Range(func(key, _ interface{}) bool {
		r.cache.Delete(key)
		return true
	})
}

// RequirePermission checks that the caller's role holds every required code.
// It must run after RequireSession.
func (r *PermissionResolver) RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Please log in to continue"))
			return
		}

		perms, err := r.Permissions(c.Request.Context(), actor.Role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: unknown role"))
			return
		}

		for _, required := range requiredPerms {
			if !perms[required] {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+required+"'"))
				return
			}
		}

		c.Next()
	}
}
