package domain

import (
	"context"
	"time"
)

// ListInvoiceRequest filters the invoice listing.
type ListInvoiceRequest struct {
	AdmissionID *string
	Status      *InvoiceStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListInvoiceResponse struct {
	Invoices []Invoice `json:"invoices"`
}

// InvoiceDetail bundles an invoice with its items and computed figures.
type InvoiceDetail struct {
	Invoice Invoice        `json:"invoice"`
	Items   []LineItem     `json:"items"`
	Totals  InvoiceFigures `json:"totals"`
}

// InvoiceFigures are the display-rounded outputs of the discount cascade.
type InvoiceFigures struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	TaxAmount      float64 `json:"tax_amount"`
	Payable        float64 `json:"payable"`
	Paid           float64 `json:"paid"`
	Balance        float64 `json:"balance"`
}

// RoomChargeEstimate is the priced occupancy history of one admission.
type RoomChargeEstimate struct {
	Charges []RoomCharge `json:"charges"`
	Total   float64      `json:"total"`
}

// SyncResult reports what one ledger sync pass changed. A category that
// could not be read is listed in Skipped and retried on the next sync.
type SyncResult struct {
	Inserted    int      `json:"inserted"`
	Skipped     []string `json:"skipped_categories,omitempty"`
	TotalAmount float64  `json:"total_amount"`
}

type CustomItemRequest struct {
	Name        string  `json:"item_name"`
	Description string  `json:"item_description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type UpdateItemRequest struct {
	Name        *string  `json:"item_name"`
	Description *string  `json:"item_description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
}

type DiscountRequest struct {
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue float64      `json:"discount_value"`
	IncludeTax    *bool        `json:"include_tax"`
	TaxRate       *float64     `json:"tax_rate"`
}

type PaymentRequest struct {
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`
}

// GenerateOptions control document composition and enrichment.
type GenerateOptions struct {
	IncludeReports   bool
	CollapseSummary  bool
	IncludeNarrative bool
}

// Document is the rendered, possibly merged, output payload.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service is the billing subsystem's behavioural surface.
type Service interface {
	CreateInvoice(ctx context.Context, admissionID string) (Invoice, error)
	GetByID(ctx context.Context, id string) (InvoiceDetail, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	DeleteInvoice(ctx context.Context, id string) error

	ComputeRoomCharges(ctx context.Context, admissionID string) (RoomChargeEstimate, error)
	SyncCharges(ctx context.Context, invoiceID string) (SyncResult, error)

	AddCustomItem(ctx context.Context, invoiceID string, req CustomItemRequest) (LineItem, error)
	UpdateItem(ctx context.Context, invoiceID, itemID string, req UpdateItemRequest) (LineItem, error)
	DeleteItem(ctx context.Context, invoiceID, itemID string) error

	SetDiscount(ctx context.Context, invoiceID string, req DiscountRequest) (Invoice, error)
	RecordPayment(ctx context.Context, invoiceID string, req PaymentRequest) (Invoice, error)
	PaymentReceipt(ctx context.Context, invoiceID string) (Document, error)

	GenerateDocument(ctx context.Context, invoiceID string, opts GenerateOptions) (Document, error)
	EmailDocument(ctx context.Context, invoiceID string, to []string, opts GenerateOptions) error
}
