package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestStatus is the approval state of a write-off request
type RequestStatus string

const (
	RequestPending         RequestStatus = "pending"
	RequestManagerApproved RequestStatus = "manager_approved"
	RequestApproved        RequestStatus = "approved"
	RequestRejected        RequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// ResourceRequest is a stock write-off ("baixa") request. The quantity is
// reserved (taken out of the resource) when the request is created and only
// returned when the request is rejected.
type ResourceRequest struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ResourceID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"resource_id"`
	Resource    *Resource       `gorm:"foreignKey:ResourceID" json:"resource,omitempty"`
	RequestedBy uuid.UUID       `gorm:"type:uuid;not null;index" json:"requested_by"`
	Requester   *User           `gorm:"foreignKey:RequestedBy" json:"requester,omitempty"`
	Quantity    int             `gorm:"type:int;not null;check:quantity > 0" json:"quantity"`
	TotalValue  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_value"` // price x quantity at creation
	Status      RequestStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ManagerID   *uuid.UUID      `gorm:"type:uuid" json:"manager_id"`
	Manager     *User           `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	AdminID     *uuid.UUID      `gorm:"type:uuid" json:"admin_id"`
	Admin       *User           `gorm:"foreignKey:AdminID" json:"admin,omitempty"`
	Version     int             `gorm:"type:int;not null;default:1" json:"version"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (r *ResourceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Version == 0 {
		r.Version = 1
	}
	return nil
}
