package service

import (
	"encoding/json"
	"time"

	"resource-tracker/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

func (a Actor) ptr() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

// auditEntry builds an access log row for actor.
func auditEntry(actor Actor, action, entityID, entityName string, details interface{}) *model.AccessLog {
	payload, _ := json.Marshal(details)
	return &model.AccessLog{
		UserID:     actor.ptr(),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
