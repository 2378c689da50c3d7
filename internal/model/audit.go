package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionLogin  = "login"
	ActionLogout = "logout"

	ActionCreateResource = "create_resource"
	ActionUpdateResource = "update_resource"
	ActionDeleteResource = "delete_resource"
	ActionReceiveStock   = "receive_stock"

	// Write-off workflow actions
	ActionRequestWriteOff = "request_write_off"
	ActionApproveRequest  = "approve_request"
	ActionRejectRequest   = "reject_request"

	ActionCreateUser  = "create_user"
	ActionApproveUser = "approve_user"
	ActionUpdateUser  = "update_user"
	ActionDeleteUser  = "delete_user"
)

// AccessLog tracks Who, What, and When for every change made through the API
type AccessLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:text" json:"details"` // JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (l *AccessLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
