package handler

import (
	"errors"
	"net/http"
	"strings"

	"resource-tracker/internal/approval"
	"resource-tracker/internal/middleware"
	"resource-tracker/internal/service"
	"resource-tracker/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	badRequest = []error{
		service.ErrInvalidQuantity,
		service.ErrInvalidPrice,
		service.ErrInvalidResourceType,
		service.ErrInvalidRole,
	}
	conflict = []error{
		service.ErrInsufficientStock,
		service.ErrResourceInUse,
		service.ErrConcurrentModification,
		service.ErrDuplicateSubmission,
		service.ErrUsernameTaken,
		service.ErrAlreadyApproved,
		service.ErrCannotDeleteSelf,
		approval.ErrNeedsManagerApproval,
		approval.ErrAlreadyProcessed,
		approval.ErrInvalidTransition,
	}
	forbidden = []error{
		approval.ErrActorNotAllowed,
		service.ErrRoleNotAllowed,
	}
)

func matches(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case matches(err, badRequest):
		return http.StatusBadRequest
	case matches(err, conflict):
		return http.StatusConflict
	case matches(err, forbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a danger flash. Infrastructure failures are
// logged with their cause and reported without internals.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	msg := capitalize(err.Error())
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "Something went wrong, please try again"
	} else {
		log.Debug("request refused", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, response.Error(status, msg))
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}

// paramID parses a UUID path parameter, answering 400 when malformed.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// actor returns the session user set by middleware.RequireSession.
func actor(c *gin.Context) (service.Actor, bool) {
	a, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Please log in to continue"))
	}
	return a, ok
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
