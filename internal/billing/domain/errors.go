package domain

import "errors"

var (
	ErrInvoiceNotFound   = errors.New("invoice_not_found")
	ErrAdmissionNotFound = errors.New("admission_not_found")
	ErrLineItemNotFound  = errors.New("line_item_not_found")
	ErrInvalidInvoiceID  = errors.New("invalid_invoice_id")
	ErrInvalidItem       = errors.New("invalid_item")
	ErrInvalidDiscount   = errors.New("invalid_discount")
	ErrInvalidPayment    = errors.New("invalid_payment")
	ErrGenerationFailed  = errors.New("generation_failed")
)
