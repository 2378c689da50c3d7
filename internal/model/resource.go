package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ResourceStatusAvailable is the status given to resources created without one.
const ResourceStatusAvailable = "available"

// ResourceType groups resources (equipment, vehicle, security device...)
type ResourceType struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *ResourceType) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Resource represents an inventory item. Quantity is the stock visible to new
// requests: pending requests have already been taken out of it.
type Resource struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	TypeID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"type_id"`
	Type        *ResourceType   `gorm:"foreignKey:TypeID" json:"type,omitempty"`
	Location    string          `gorm:"type:varchar(255)" json:"location"`
	Status      string          `gorm:"type:varchar(50);not null;index" json:"status"` // free text
	Price       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"price"`
	Quantity    int             `gorm:"type:int;not null;default:0;check:quantity >= 0" json:"quantity"`
	ImageURL    *string         `gorm:"type:text" json:"image_url"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// MovementKind Enum Simulation
type MovementKind string

const (
	MovementReserve MovementKind = "reserve" // write-off request created
	MovementRestore MovementKind = "restore" // write-off request rejected
	MovementReceive MovementKind = "receive" // inbound shipment
)

// StockMovement records every change to a resource quantity
type StockMovement struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ResourceID      uuid.UUID    `gorm:"type:uuid;not null;index" json:"resource_id"`
	RequestID       *uuid.UUID   `gorm:"type:uuid;index" json:"request_id"` // nil for inbound shipments
	Kind            MovementKind `gorm:"type:varchar(20);not null" json:"kind"`
	QuantityChanged int          `gorm:"type:int;not null" json:"quantity_changed"`
	QuantityAfter   int          `gorm:"type:int;not null" json:"quantity_after"`
	ActorID         *uuid.UUID   `gorm:"type:uuid;index" json:"actor_id"`
	CreatedAt       time.Time    `json:"created_at"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
