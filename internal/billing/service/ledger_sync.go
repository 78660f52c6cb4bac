package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/medicore/medicore/internal/billing/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const syncLockTTL = 30 * time.Second

// invoiceLocker is satisfied by *synclock.Locker.
type invoiceLocker interface {
	TryLockInvoice(ctx context.Context, invoiceID snowflake.ID, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, invoiceID snowflake.ID, token string) error
}

// ComputeRoomCharges prices the occupancy history of an admission. Open
// segments are priced up to now. Partial days round up, with a one day
// minimum for same-day stays.
func (s *Service) ComputeRoomCharges(ctx context.Context, admissionID string) (domain.RoomChargeEstimate, error) {
	admID, err := parseID(admissionID)
	if err != nil {
		return domain.RoomChargeEstimate{}, domain.ErrAdmissionNotFound
	}

	exists, err := s.admissionExists(ctx, s.db, admID)
	if err != nil {
		return domain.RoomChargeEstimate{}, err
	}
	if !exists {
		return domain.RoomChargeEstimate{}, domain.ErrAdmissionNotFound
	}

	segments, err := s.occupancySegments(ctx, s.db, admID)
	if err != nil {
		return domain.RoomChargeEstimate{}, err
	}

	estimate := domain.RoomChargeEstimate{
		Charges: make([]domain.RoomCharge, 0, len(segments)),
	}
	now := s.clock.Now()
	for _, segment := range segments {
		charge := priceSegment(segment, now)
		estimate.Charges = append(estimate.Charges, charge)
		estimate.Total += charge.Amount
	}
	return estimate, nil
}

// SyncCharges pulls every billable charge-source record the invoice does
// not carry yet into the ledger and re-derives the stored total. Each
// source category is synced independently so one unreadable category does
// not block the others.
func (s *Service) SyncCharges(ctx context.Context, invoiceID string) (domain.SyncResult, error) {
	id, err := parseID(invoiceID)
	if err != nil {
		return domain.SyncResult{}, domain.ErrInvalidInvoiceID
	}

	// The uniqueness constraint keeps concurrent syncs safe; losing the
	// lock only costs duplicate work, so both failure modes proceed.
	token, acquired, err := s.locker.TryLockInvoice(ctx, id, syncLockTTL)
	switch {
	case err != nil:
		s.log.Warn("sync lock unavailable", zap.Error(err), zap.String("invoice_id", id.String()))
	case !acquired:
		s.log.Warn("sync lock held by a concurrent sync", zap.String("invoice_id", id.String()))
	}
	if acquired && token != "" {
		defer func() {
			if err := s.locker.Release(ctx, id, token); err != nil {
				s.log.Warn("sync lock release failed", zap.Error(err))
			}
		}()
	}

	var result domain.SyncResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoice(ctx, tx, id)
		if err != nil {
			return err
		}

		existing, err := s.referencedIDs(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		for _, category := range []struct {
			itemType domain.ItemType
			sync     func(context.Context, *gorm.DB, *domain.Invoice, map[refKey]bool, time.Time) (int, error)
		}{
			{domain.ItemTypeRoom, s.syncRoomCharges},
			{domain.ItemTypeMedication, s.syncMedicationCharges},
			{domain.ItemTypeLab, s.syncLabCharges},
		} {
			// Postgres aborts the whole transaction after any failed
			// statement. Each category runs under a savepoint so a
			// failure rolls back to here and the remaining categories
			// and the total rewrite still execute.
			sp := "sync_" + string(category.itemType)
			if err := tx.SavePoint(sp).Error; err != nil {
				return err
			}
			inserted, err := category.sync(ctx, tx, invoice, existing, now)
			if err != nil {
				if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
					return rbErr
				}
				s.log.Warn("charge category sync failed",
					zap.String("invoice_id", id.String()),
					zap.String("item_type", string(category.itemType)),
					zap.Error(err),
				)
				result.Skipped = append(result.Skipped, string(category.itemType))
				continue
			}
			result.Inserted += inserted
		}

		total, err := s.recomputeTotal(ctx, tx, id)
		if err != nil {
			return err
		}
		result.TotalAmount = total
		return nil
	})
	if err != nil {
		return domain.SyncResult{}, err
	}

	if result.Inserted > 0 {
		s.logMutation(ctx, "ledger.synced", id)
	}
	return result, nil
}

type refKey struct {
	itemType  domain.ItemType
	reference snowflake.ID
}

func (s *Service) referencedIDs(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (map[refKey]bool, error) {
	var rows []struct {
		ItemType    domain.ItemType
		ReferenceID snowflake.ID
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT item_type, reference_id
		 FROM invoice_line_items
		 WHERE invoice_id = ? AND reference_id IS NOT NULL`,
		invoiceID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	existing := make(map[refKey]bool, len(rows))
	for _, row := range rows {
		existing[refKey{itemType: row.ItemType, reference: row.ReferenceID}] = true
	}
	return existing, nil
}

func (s *Service) syncRoomCharges(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice, existing map[refKey]bool, now time.Time) (int, error) {
	segments, err := s.occupancySegments(ctx, tx, invoice.AdmissionID)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, segment := range segments {
		if existing[refKey{itemType: domain.ItemTypeRoom, reference: segment.ID}] {
			continue
		}
		charge := priceSegment(segment, now)
		if charge.Amount <= 0 {
			continue
		}
		n, err := s.insertSourceItem(ctx, tx, domain.LineItem{
			ID:              s.genID.Generate(),
			InvoiceID:       invoice.ID,
			ItemType:        domain.ItemTypeRoom,
			ItemName:        roomItemName(segment),
			ItemDescription: roomItemDescription(charge),
			Quantity:        float64(charge.Days),
			UnitPrice:       segment.RatePerDay,
			TotalPrice:      charge.Amount,
			ReferenceID:     refPtr(segment.ID),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

func (s *Service) syncMedicationCharges(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice, existing map[refKey]bool, now time.Time) (int, error) {
	var charges []domain.MedicationCharge
	err := tx.WithContext(ctx).Raw(
		`SELECT id, admission_id, name, price_per_unit, units_per_dose, doses_given
		 FROM medication_charges
		 WHERE admission_id = ?
		 ORDER BY id ASC`,
		invoice.AdmissionID,
	).Scan(&charges).Error
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, charge := range charges {
		if existing[refKey{itemType: domain.ItemTypeMedication, reference: charge.ID}] {
			continue
		}
		quantity := charge.UnitsPerDose * float64(charge.DosesGiven)
		total := charge.PricePerUnit * quantity
		if total <= 0 {
			continue
		}
		n, err := s.insertSourceItem(ctx, tx, domain.LineItem{
			ID:              s.genID.Generate(),
			InvoiceID:       invoice.ID,
			ItemType:        domain.ItemTypeMedication,
			ItemName:        charge.Name,
			ItemDescription: fmt.Sprintf("%g units per dose, %d doses", charge.UnitsPerDose, charge.DosesGiven),
			Quantity:        quantity,
			UnitPrice:       charge.PricePerUnit,
			TotalPrice:      total,
			ReferenceID:     refPtr(charge.ID),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

func (s *Service) syncLabCharges(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice, existing map[refKey]bool, now time.Time) (int, error) {
	charges, err := s.labCharges(ctx, tx, invoice.AdmissionID, true)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, charge := range charges {
		if existing[refKey{itemType: domain.ItemTypeLab, reference: charge.ID}] {
			continue
		}
		if charge.Price <= 0 {
			continue
		}
		n, err := s.insertSourceItem(ctx, tx, domain.LineItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			ItemType:    domain.ItemTypeLab,
			ItemName:    charge.TestName,
			Quantity:    1,
			UnitPrice:   charge.Price,
			TotalPrice:  charge.Price,
			ReferenceID: refPtr(charge.ID),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

// insertSourceItem inserts one source-backed line item. ON CONFLICT DO
// NOTHING backs the in-memory reference check, so a concurrent sync that
// slipped past it still cannot duplicate a charge.
func (s *Service) insertSourceItem(ctx context.Context, tx *gorm.DB, item domain.LineItem) (int, error) {
	res := tx.WithContext(ctx).Exec(
		`INSERT INTO invoice_line_items
		   (id, invoice_id, item_type, item_name, item_description,
		    quantity, unit_price, total_price, reference_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		item.ID, item.InvoiceID, item.ItemType, item.ItemName, item.ItemDescription,
		item.Quantity, item.UnitPrice, item.TotalPrice, item.ReferenceID,
		item.CreatedAt, item.UpdatedAt,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (s *Service) occupancySegments(ctx context.Context, tx *gorm.DB, admissionID snowflake.ID) ([]domain.OccupancySegment, error) {
	var segments []domain.OccupancySegment
	err := tx.WithContext(ctx).Raw(
		`SELECT id, admission_id, room_label, bed_label, rate_per_day, start_date, end_date
		 FROM room_occupancies
		 WHERE admission_id = ?
		 ORDER BY start_date ASC, id ASC`,
		admissionID,
	).Scan(&segments).Error
	if err != nil {
		return nil, err
	}
	return segments, nil
}

func (s *Service) labCharges(ctx context.Context, tx *gorm.DB, admissionID snowflake.ID, billedOnly bool) ([]domain.LabCharge, error) {
	query := `SELECT id, admission_id, test_name, price, billing_status, report_key
	          FROM lab_reports
	          WHERE admission_id = ?`
	args := []any{admissionID}
	if billedOnly {
		query += ` AND billing_status = ?`
		args = append(args, domain.LabBillingBilled)
	}
	query += ` ORDER BY id ASC`

	var charges []domain.LabCharge
	err := tx.WithContext(ctx).Raw(query, args...).Scan(&charges).Error
	if err != nil {
		return nil, err
	}
	return charges, nil
}

func priceSegment(segment domain.OccupancySegment, now time.Time) domain.RoomCharge {
	end := now
	if segment.EndDate != nil {
		end = *segment.EndDate
	}

	days := 0
	if end.After(segment.StartDate) {
		days = int(math.Ceil(end.Sub(segment.StartDate).Hours() / 24))
	}
	if days < 1 {
		days = 1
	}

	return domain.RoomCharge{
		Segment: segment,
		Days:    days,
		Amount:  float64(days) * segment.RatePerDay,
	}
}

func roomItemName(segment domain.OccupancySegment) string {
	if segment.BedLabel == "" {
		return fmt.Sprintf("Room %s", segment.RoomLabel)
	}
	return fmt.Sprintf("Room %s / Bed %s", segment.RoomLabel, segment.BedLabel)
}

func roomItemDescription(charge domain.RoomCharge) string {
	start := charge.Segment.StartDate.Format("02 Jan 2006")
	if charge.Segment.EndDate == nil {
		return fmt.Sprintf("%s to date, %d day(s)", start, charge.Days)
	}
	return fmt.Sprintf("%s to %s, %d day(s)", start, charge.Segment.EndDate.Format("02 Jan 2006"), charge.Days)
}

func refPtr(id snowflake.ID) *snowflake.ID {
	return &id
}
