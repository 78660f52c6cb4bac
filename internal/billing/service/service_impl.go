package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/medicore/medicore/internal/billing/domain"
	"github.com/medicore/medicore/internal/billing/finance"
	"github.com/medicore/medicore/internal/billing/merge"
	"github.com/medicore/medicore/internal/billing/synclock"
	"github.com/medicore/medicore/internal/clock"
	"github.com/medicore/medicore/internal/config"
	"github.com/medicore/medicore/internal/providers/email"
	"github.com/medicore/medicore/internal/providers/receipt"
	"github.com/medicore/medicore/internal/staffcontext"
	"github.com/medicore/medicore/pkg/db"
	"github.com/medicore/medicore/pkg/db/option"
	"github.com/medicore/medicore/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Locker   *synclock.Locker   `optional:"true"`
	Merger   *merge.Merger      `optional:"true"`
	Email    email.Provider     `optional:"true"`
	Receipts *receipt.Generator `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	invoiceRepo repository.Repository[domain.Invoice]
	itemRepo    repository.Repository[domain.LineItem]

	locker   invoiceLocker
	merger   *merge.Merger
	email    email.Provider
	receipts *receipt.Generator

	hospital config.HospitalConfig
	taxRate  float64
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billing.service"),
		genID: p.GenID,
		clock: p.Clock,

		invoiceRepo: repository.ProvideStore[domain.Invoice](p.DB),
		itemRepo:    repository.ProvideStore[domain.LineItem](p.DB),

		locker:   p.Locker,
		merger:   p.Merger,
		email:    p.Email,
		receipts: p.Receipts,

		hospital: p.Config.Hospital,
		taxRate:  p.Config.Billing.DefaultTaxRate,
	}
}

// invoiceNumberRetries bounds how often CreateInvoice recomputes a number
// after losing it to a concurrent create.
const invoiceNumberRetries = 2

func (s *Service) CreateInvoice(ctx context.Context, admissionID string) (domain.Invoice, error) {
	admID, err := parseID(admissionID)
	if err != nil {
		return domain.Invoice{}, domain.ErrAdmissionNotFound
	}

	var created domain.Invoice
	for attempt := 0; ; attempt++ {
		created, err = s.createInvoice(ctx, admID)
		if err == nil {
			break
		}
		// invoice_number is unique, so a concurrent create that took the
		// number this transaction computed surfaces as a key conflict.
		if db.IsDuplicateKeyErr(err) && attempt < invoiceNumberRetries {
			continue
		}
		return domain.Invoice{}, err
	}

	s.logMutation(ctx, "invoice.created", created.ID)
	return created, nil
}

func (s *Service) createInvoice(ctx context.Context, admID snowflake.ID) (domain.Invoice, error) {
	var created domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.admissionExists(ctx, tx, admID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrAdmissionNotFound
		}

		existing, err := s.invoiceRepo.WithTrx(tx).FindOne(ctx, &domain.Invoice{
			AdmissionID: admID,
			Status:      domain.InvoiceStatusPending,
		})
		if err != nil {
			return err
		}
		if existing != nil {
			created = *existing
			return nil
		}

		number, err := s.nextInvoiceNumber(ctx, tx)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		created = domain.Invoice{
			ID:            s.genID.Generate(),
			AdmissionID:   admID,
			InvoiceNumber: number,
			Status:        domain.InvoiceStatusPending,
			DiscountType:  domain.DiscountNone,
			TaxRate:       s.taxRate,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return s.invoiceRepo.WithTrx(tx).Create(ctx, &created)
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.InvoiceDetail, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.InvoiceDetail{}, domain.ErrInvalidInvoiceID
	}

	invoice, err := s.loadInvoice(ctx, s.db, invoiceID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}

	items, err := s.listItems(ctx, s.db, invoiceID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}

	return domain.InvoiceDetail{
		Invoice: *invoice,
		Items:   items,
		Totals:  finance.ComputeForInvoice(*invoice).Rounded(),
	}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	filter := &domain.Invoice{}
	if req.AdmissionID != nil {
		admID, err := parseID(*req.AdmissionID)
		if err != nil {
			return domain.ListInvoiceResponse{}, domain.ErrAdmissionNotFound
		}
		filter.AdmissionID = admID
	}
	if req.Status != nil {
		filter.Status = *req.Status
	}

	options := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			Allow:   map[string]bool{"created_at": true},
			Default: "created_at",
			Desc:    true,
		}),
	}
	if req.CreatedFrom != nil {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "created_at",
			Operator: option.GTE,
			Value:    *req.CreatedFrom,
		}))
	}
	if req.CreatedTo != nil {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "created_at",
			Operator: option.LTE,
			Value:    *req.CreatedTo,
		}))
	}

	items, err := s.invoiceRepo.Find(ctx, filter, options...)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	return domain.ListInvoiceResponse{Invoices: invoices}, nil
}

func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.ErrInvalidInvoiceID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadInvoice(ctx, tx, invoiceID); err != nil {
			return err
		}
		// Line items never outlive their invoice.
		if err := tx.WithContext(ctx).Exec(
			`DELETE FROM invoice_line_items WHERE invoice_id = ?`, invoiceID,
		).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Exec(
			`DELETE FROM invoices WHERE id = ?`, invoiceID,
		).Error
	})
	if err != nil {
		return err
	}

	s.logMutation(ctx, "invoice.deleted", invoiceID)
	return nil
}

func (s *Service) loadInvoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.WithTrx(tx).FindOne(ctx, &domain.Invoice{ID: id})
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) listItems(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := tx.WithContext(ctx).Raw(
		`SELECT id, invoice_id, item_type, item_name, item_description,
		        quantity, unit_price, total_price, reference_id, created_at, updated_at
		 FROM invoice_line_items
		 WHERE invoice_id = ?
		 ORDER BY created_at ASC, id ASC`,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) nextInvoiceNumber(ctx context.Context, tx *gorm.DB) (int64, error) {
	var next int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(invoice_number), 0) + 1 FROM invoices`,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Service) admissionExists(ctx context.Context, tx *gorm.DB, admissionID snowflake.ID) (bool, error) {
	var id snowflake.ID
	err := tx.WithContext(ctx).Raw(
		`SELECT id FROM admissions WHERE id = ?`, admissionID,
	).Scan(&id).Error
	if err != nil {
		return false, err
	}
	return id != 0, nil
}

// recomputeTotal re-derives the invoice total from the full current item
// set. Every mutation path ends here; the stored total is never edited
// directly.
func (s *Service) recomputeTotal(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (float64, error) {
	var total float64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_price), 0)
		 FROM invoice_line_items
		 WHERE invoice_id = ?`,
		invoiceID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}

	err = tx.WithContext(ctx).Exec(
		`UPDATE invoices SET total_amount = ?, updated_at = ? WHERE id = ?`,
		total,
		s.clock.Now(),
		invoiceID,
	).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// logMutation attributes a mutating ledger operation to the acting staff
// member; the audit subsystem itself lives outside billing.
func (s *Service) logMutation(ctx context.Context, action string, invoiceID snowflake.ID) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("invoice_id", invoiceID.String()),
	}
	if staffID, ok := staffcontext.StaffIDFromContext(ctx); ok {
		fields = append(fields, zap.String("staff_id", staffID.String()))
	}
	s.log.Info("ledger mutation", fields...)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New("empty id")
	}
	return id, nil
}
