// Package domain contains persistence models for hospital billing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceStatus represents invoice payment lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// DiscountType represents how an invoice-level discount is applied.
type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// ItemType classifies the charge source behind a line item.
type ItemType string

const (
	ItemTypeRoom       ItemType = "room"
	ItemTypeMedication ItemType = "medication"
	ItemTypeLab        ItemType = "lab"
	ItemTypeCustom     ItemType = "custom"
)

// Invoice represents the bill for one admission. TotalAmount is derived
// from the line items and is never edited directly.
type Invoice struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	AdmissionID     snowflake.ID  `gorm:"not null;index" json:"admission_id"`
	InvoiceNumber   int64         `gorm:"not null;index" json:"invoice_number"`
	Status          InvoiceStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	TotalAmount     float64       `gorm:"type:numeric(12,2);not null;default:0" json:"total_amount"`
	DiscountType    DiscountType  `gorm:"type:text;not null;default:'none'" json:"discount_type"`
	DiscountValue   float64       `gorm:"type:numeric(12,2);not null;default:0" json:"discount_value"`
	IncludeTax      bool          `gorm:"not null;default:false" json:"include_tax"`
	TaxRate         float64       `gorm:"type:numeric(6,4);not null;default:0.18" json:"tax_rate"`
	PaidAmount      float64       `gorm:"type:numeric(12,2);not null;default:0" json:"paid_amount"`
	LastPaymentDate *time.Time    `gorm:"" json:"last_payment_date,omitempty"`
	PaymentNote     string        `gorm:"type:text" json:"payment_note,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// LineItem represents one billable line on an invoice. ReferenceID points at
// the originating charge-source record; at most one line item exists per
// (invoice_id, item_type, reference_id), which is what makes ledger sync
// idempotent. Custom items carry no reference and may repeat.
type LineItem struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvoiceID       snowflake.ID  `gorm:"not null;index" json:"invoice_id"`
	ItemType        ItemType      `gorm:"type:text;not null" json:"item_type"`
	ItemName        string        `gorm:"type:text;not null" json:"item_name"`
	ItemDescription string        `gorm:"type:text" json:"item_description,omitempty"`
	Quantity        float64       `gorm:"type:numeric(12,2);not null;default:1" json:"quantity"`
	UnitPrice       float64       `gorm:"type:numeric(12,2);not null;default:0" json:"unit_price"`
	TotalPrice      float64       `gorm:"type:numeric(12,2);not null;default:0" json:"total_price"`
	ReferenceID     *snowflake.ID `gorm:"index" json:"reference_id,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "invoice_line_items" }
