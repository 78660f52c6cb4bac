package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/medicore/medicore/internal/billing/domain"
	"github.com/medicore/medicore/internal/billing/finance"
	"github.com/medicore/medicore/internal/providers/receipt"
	"gorm.io/gorm"
)

func (s *Service) receiptData(invoice *domain.Invoice, facts *domain.AdmissionFacts, figures domain.InvoiceFigures) receipt.Data {
	data := receipt.Data{
		HospitalName:    s.hospital.Name,
		HospitalAddress: s.hospital.Address,
		HospitalEmail:   s.hospital.Email,
		LogoPath:        s.hospital.LogoPath,
		InvoiceNumber:   invoiceNumber(invoice.InvoiceNumber),
		PatientName:     facts.PatientName,
		AdmissionNo:     facts.AdmissionNumber,
		AmountPaid:      fmt.Sprintf("%.2f", figures.Paid),
		Balance:         fmt.Sprintf("%.2f", figures.Balance),
		Note:            invoice.PaymentNote,
	}
	if invoice.LastPaymentDate != nil {
		data.DatePaid = invoice.LastPaymentDate.Format("02 Jan 2006")
	}
	return data
}

func (s *Service) SetDiscount(ctx context.Context, invoiceID string, req domain.DiscountRequest) (domain.Invoice, error) {
	id, err := parseID(invoiceID)
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidInvoiceID
	}

	switch req.DiscountType {
	case domain.DiscountNone:
		if req.DiscountValue != 0 {
			return domain.Invoice{}, domain.ErrInvalidDiscount
		}
	case domain.DiscountPercentage:
		if req.DiscountValue < 0 || req.DiscountValue > 100 {
			return domain.Invoice{}, domain.ErrInvalidDiscount
		}
	case domain.DiscountFixed:
		if req.DiscountValue < 0 {
			return domain.Invoice{}, domain.ErrInvalidDiscount
		}
	default:
		return domain.Invoice{}, domain.ErrInvalidDiscount
	}
	if req.TaxRate != nil && (*req.TaxRate < 0 || *req.TaxRate > 1) {
		return domain.Invoice{}, domain.ErrInvalidDiscount
	}

	var updated domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoice(ctx, tx, id)
		if err != nil {
			return err
		}

		invoice.DiscountType = req.DiscountType
		invoice.DiscountValue = req.DiscountValue
		if req.IncludeTax != nil {
			invoice.IncludeTax = *req.IncludeTax
		}
		if req.TaxRate != nil {
			invoice.TaxRate = *req.TaxRate
		}

		// The payable amount moved, so the payment status may move too.
		totals := finance.ComputeForInvoice(*invoice)
		invoice.Status = finance.StatusFor(invoice.PaidAmount, totals.Payable)
		invoice.UpdatedAt = s.clock.Now()

		if err := tx.WithContext(ctx).Save(invoice).Error; err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logMutation(ctx, "discount.set", id)
	return updated, nil
}

func (s *Service) RecordPayment(ctx context.Context, invoiceID string, req domain.PaymentRequest) (domain.Invoice, error) {
	id, err := parseID(invoiceID)
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidInvoiceID
	}
	if req.Amount <= 0 {
		return domain.Invoice{}, domain.ErrInvalidPayment
	}

	var updated domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoice(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		invoice.PaidAmount += req.Amount
		invoice.LastPaymentDate = &now
		if note := strings.TrimSpace(req.Note); note != "" {
			invoice.PaymentNote = note
		}

		totals := finance.ComputeForInvoice(*invoice)
		invoice.Status = finance.StatusFor(invoice.PaidAmount, totals.Payable)
		invoice.UpdatedAt = now

		if err := tx.WithContext(ctx).Save(invoice).Error; err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logMutation(ctx, "payment.recorded", id)
	return updated, nil
}

func (s *Service) PaymentReceipt(ctx context.Context, invoiceID string) (domain.Document, error) {
	if s.receipts == nil {
		return domain.Document{}, errors.New("receipt generator is not configured")
	}

	id, err := parseID(invoiceID)
	if err != nil {
		return domain.Document{}, domain.ErrInvalidInvoiceID
	}

	invoice, err := s.loadInvoice(ctx, s.db, id)
	if err != nil {
		return domain.Document{}, err
	}
	if invoice.LastPaymentDate == nil {
		return domain.Document{}, domain.ErrInvalidPayment
	}

	facts, err := s.admissionFacts(ctx, s.db, invoice.AdmissionID)
	if err != nil {
		return domain.Document{}, err
	}

	figures := finance.ComputeForInvoice(*invoice).Rounded()
	data, err := s.receipts.Generate(ctx, s.receiptData(invoice, facts, figures))
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	return domain.Document{
		Filename:    fmt.Sprintf("receipt-%s.pdf", invoiceNumber(invoice.InvoiceNumber)),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}
