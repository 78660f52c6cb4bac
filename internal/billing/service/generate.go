package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/medicore/medicore/internal/billing/compose"
	"github.com/medicore/medicore/internal/billing/domain"
	"github.com/medicore/medicore/internal/billing/finance"
	"github.com/medicore/medicore/internal/billing/merge"
	"github.com/medicore/medicore/internal/providers/email"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GenerateDocument composes the invoice PDF. The ledger is synced first so
// the document always reflects the charge sources at the moment of
// generation, then finished lab reports are appended when requested.
func (s *Service) GenerateDocument(ctx context.Context, invoiceID string, opts domain.GenerateOptions) (domain.Document, error) {
	if _, err := s.SyncCharges(ctx, invoiceID); err != nil {
		return domain.Document{}, err
	}

	id, err := parseID(invoiceID)
	if err != nil {
		return domain.Document{}, domain.ErrInvalidInvoiceID
	}

	invoice, err := s.loadInvoice(ctx, s.db, id)
	if err != nil {
		return domain.Document{}, err
	}
	items, err := s.listItems(ctx, s.db, id)
	if err != nil {
		return domain.Document{}, err
	}
	facts, err := s.admissionFacts(ctx, s.db, invoice.AdmissionID)
	if err != nil {
		return domain.Document{}, err
	}

	input := s.composeInput(invoice, items, facts)
	composeOpts := compose.Options{CollapseSummary: opts.CollapseSummary}
	if opts.IncludeNarrative {
		composeOpts.Narrative = narrativeSections(facts)
	}

	data, err := compose.Compose(input, composeOpts)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	withReports := false
	if opts.IncludeReports && s.merger != nil {
		locations, err := s.reportLocations(ctx, invoice.AdmissionID)
		if err != nil {
			// Attachments are enrichment; the invoice itself stands alone.
			s.log.Warn("lab report lookup failed",
				zap.String("invoice_id", id.String()), zap.Error(err))
		} else if len(locations) > 0 {
			merged, err := s.merger.Merge(ctx, data, locations)
			if err != nil {
				return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
			}
			data = merged
			withReports = true
		}
	}

	filename := fmt.Sprintf("invoice-%s.pdf", invoiceNumber(invoice.InvoiceNumber))
	if withReports {
		filename = fmt.Sprintf("invoice-%s-with-reports.pdf", invoiceNumber(invoice.InvoiceNumber))
	}

	return domain.Document{
		Filename:    filename,
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

func (s *Service) EmailDocument(ctx context.Context, invoiceID string, to []string, opts domain.GenerateOptions) error {
	if s.email == nil {
		return errors.New("email provider is not configured")
	}

	doc, err := s.GenerateDocument(ctx, invoiceID, opts)
	if err != nil {
		return err
	}

	id, _ := parseID(invoiceID)
	invoice, err := s.loadInvoice(ctx, s.db, id)
	if err != nil {
		return err
	}
	facts, err := s.admissionFacts(ctx, s.db, invoice.AdmissionID)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s: Invoice %s", s.hospital.Name, invoiceNumber(invoice.InvoiceNumber))
	body := fmt.Sprintf(
		"<p>Dear %s,</p><p>Please find attached invoice %s for admission %s.</p><p>%s</p>",
		facts.PatientName,
		invoiceNumber(invoice.InvoiceNumber),
		facts.AdmissionNumber,
		s.hospital.Name,
	)
	err = s.email.SendWithAttachment(ctx, to, subject, body, emailAttachment(doc))
	if err != nil {
		return err
	}

	s.log.Info("invoice emailed",
		zap.String("invoice_id", id.String()),
		zap.Int("recipients", len(to)),
	)
	return nil
}

func (s *Service) composeInput(invoice *domain.Invoice, items []domain.LineItem, facts *domain.AdmissionFacts) compose.Input {
	figures := finance.ComputeForInvoice(*invoice).Rounded()

	composed := make([]compose.Item, 0, len(items))
	for _, item := range items {
		composed = append(composed, compose.Item{
			Category:    composeCategory(item.ItemType),
			Name:        item.ItemName,
			Description: item.ItemDescription,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.TotalPrice,
		})
	}

	return compose.Input{
		Identity: compose.Identity{
			Name:     s.hospital.Name,
			Address:  s.hospital.Address,
			Phone:    s.hospital.Phone,
			Email:    s.hospital.Email,
			LogoPath: s.hospital.LogoPath,
			Footer:   s.hospital.Footer,
		},
		Patient: compose.Patient{
			Name:            facts.PatientName,
			Gender:          facts.PatientGender,
			DateOfBirth:     facts.PatientDOB,
			Address:         facts.PatientAddress,
			AdmissionNumber: facts.AdmissionNumber,
			RoomLabel:       facts.RoomLabel,
			BedLabel:        facts.BedLabel,
			Clinician:       facts.Clinician,
			AdmittedAt:      facts.AdmittedAt,
		},
		InvoiceNumber: invoiceNumber(invoice.InvoiceNumber),
		BillDate:      invoice.CreatedAt,
		Items:         composed,
		Totals: compose.Totals{
			Subtotal:       figures.Subtotal,
			DiscountLabel:  discountLabel(invoice),
			DiscountAmount: figures.DiscountAmount,
			TaxLabel:       taxLabel(invoice),
			TaxAmount:      figures.TaxAmount,
			Payable:        figures.Payable,
			Paid:           figures.Paid,
			Balance:        figures.Balance,
		},
		GeneratedAt: s.clock.Now(),
	}
}

// reportLocations lists the stored PDFs of billed lab reports, in the same
// order their charges appear on the invoice.
func (s *Service) reportLocations(ctx context.Context, admissionID snowflake.ID) ([]merge.Location, error) {
	charges, err := s.labCharges(ctx, s.db, admissionID, true)
	if err != nil {
		return nil, err
	}

	locations := make([]merge.Location, 0, len(charges))
	for _, charge := range charges {
		if charge.ReportKey == "" {
			continue
		}
		locations = append(locations, merge.Location{StorageKey: charge.ReportKey})
	}
	return locations, nil
}

func (s *Service) admissionFacts(ctx context.Context, tx *gorm.DB, admissionID snowflake.ID) (*domain.AdmissionFacts, error) {
	var facts domain.AdmissionFacts
	err := tx.WithContext(ctx).Raw(
		`SELECT a.id AS admission_id,
		        a.admission_number,
		        p.name AS patient_name,
		        p.gender AS patient_gender,
		        p.date_of_birth AS patient_dob,
		        p.address AS patient_address,
		        a.room_label,
		        a.bed_label,
		        a.clinician,
		        a.diagnosis,
		        a.clinical_summary,
		        a.admitted_at
		 FROM admissions a
		 JOIN patients p ON p.id = a.patient_id
		 WHERE a.id = ?`,
		admissionID,
	).Scan(&facts).Error
	if err != nil {
		return nil, err
	}
	if facts.AdmissionID == 0 {
		return nil, domain.ErrAdmissionNotFound
	}
	return &facts, nil
}

func composeCategory(itemType domain.ItemType) compose.Category {
	switch itemType {
	case domain.ItemTypeRoom:
		return compose.CategoryRoom
	case domain.ItemTypeMedication:
		return compose.CategoryMedication
	case domain.ItemTypeLab:
		return compose.CategoryLab
	default:
		return compose.CategoryOther
	}
}

func narrativeSections(facts *domain.AdmissionFacts) []compose.NarrativeSection {
	var sections []compose.NarrativeSection
	if facts.Diagnosis != "" {
		sections = append(sections, compose.NarrativeSection{
			Title: "Diagnosis",
			Body:  facts.Diagnosis,
		})
	}
	if facts.ClinicalSummary != "" {
		sections = append(sections, compose.NarrativeSection{
			Title: "Clinical Summary",
			Body:  facts.ClinicalSummary,
		})
	}
	return sections
}

func discountLabel(invoice *domain.Invoice) string {
	if invoice.DiscountType == domain.DiscountPercentage {
		return fmt.Sprintf("%g%%", invoice.DiscountValue)
	}
	return ""
}

func taxLabel(invoice *domain.Invoice) string {
	if !invoice.IncludeTax {
		return ""
	}
	return fmt.Sprintf("%g%%", invoice.TaxRate*100)
}

func invoiceNumber(n int64) string {
	return fmt.Sprintf("INV-%06d", n)
}

func emailAttachment(doc domain.Document) email.Attachment {
	return email.Attachment{
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Data:        doc.Data,
	}
}
