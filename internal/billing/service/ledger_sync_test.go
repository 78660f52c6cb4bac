package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/medicore/medicore/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func seedOccupancy(t *testing.T, db *gorm.DB, node *snowflake.Node, admissionID snowflake.ID, rate float64, start time.Time, end *time.Time) snowflake.ID {
	t.Helper()
	id := node.Generate()
	require.NoError(t, db.Exec(
		`INSERT INTO room_occupancies
		   (id, admission_id, room_label, bed_label, rate_per_day, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, admissionID, "302-A", "B2", rate, start, end,
	).Error)
	return id
}

func seedMedication(t *testing.T, db *gorm.DB, node *snowflake.Node, admissionID snowflake.ID, name string, price, unitsPerDose float64, doses int64) snowflake.ID {
	t.Helper()
	id := node.Generate()
	require.NoError(t, db.Exec(
		`INSERT INTO medication_charges
		   (id, admission_id, name, price_per_unit, units_per_dose, doses_given)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, admissionID, name, price, unitsPerDose, doses,
	).Error)
	return id
}

func seedLabReport(t *testing.T, db *gorm.DB, node *snowflake.Node, admissionID snowflake.ID, name string, price float64, status domain.LabBillingStatus, reportKey string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	require.NoError(t, db.Exec(
		`INSERT INTO lab_reports
		   (id, admission_id, test_name, price, billing_status, report_key)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, admissionID, name, price, status, reportKey,
	).Error)
	return id
}

func TestSyncCharges_PullsEveryBillableCategory(t *testing.T) {
	svc, db, fc, node := setupService(t)
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)

	// Three full days in the ward, closed before now.
	start := fc.Now().Add(-96 * time.Hour)
	end := start.Add(72 * time.Hour)
	seedOccupancy(t, db, node, admissionID, 2500, start, &end)

	seedMedication(t, db, node, admissionID, "Ceftriaxone 1g", 180, 1, 6)
	seedMedication(t, db, node, admissionID, "Paracetamol 500mg", 2, 1, 0) // nothing given yet
	seedLabReport(t, db, node, admissionID, "Complete Blood Count", 450, domain.LabBillingBilled, "")
	seedLabReport(t, db, node, admissionID, "Blood Culture", 900, domain.LabBillingPending, "")

	invoice, err := svc.CreateInvoice(ctx, admissionID.String())
	require.NoError(t, err)

	result, err := svc.SyncCharges(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)
	assert.Empty(t, result.Skipped)
	// 3 days x 2500 + 6 x 180 + 450
	assert.InDelta(t, 9030.0, result.TotalAmount, 0.001)

	detail, err := svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.Len(t, detail.Items, 3)
	assert.InDelta(t, 9030.0, detail.Invoice.TotalAmount, 0.001)
}

func TestSyncCharges_SecondPassInsertsNothing(t *testing.T) {
	svc, db, fc, node := setupService(t)
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)

	start := fc.Now().Add(-48 * time.Hour)
	seedOccupancy(t, db, node, admissionID, 1800, start, nil)
	seedMedication(t, db, node, admissionID, "Amoxicillin 500mg", 12, 2, 9)
	seedLabReport(t, db, node, admissionID, "Chest X-Ray", 600, domain.LabBillingBilled, "")

	invoice, err := svc.CreateInvoice(ctx, admissionID.String())
	require.NoError(t, err)

	first, err := svc.SyncCharges(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)

	second, err := svc.SyncCharges(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, first.TotalAmount, second.TotalAmount)
	assert.Equal(t, int64(3), itemCount(t, db, invoice.ID))
}

func TestSyncCharges_NewSourceRowsAppendWithoutTouchingOldOnes(t *testing.T) {
	svc, db, _, node := setupService(t)
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)

	seedLabReport(t, db, node, admissionID, "Complete Blood Count", 450, domain.LabBillingBilled, "")

	invoice, err := svc.CreateInvoice(ctx, admissionID.String())
	require.NoError(t, err)

	_, err = svc.SyncCharges(ctx, invoice.ID.String())
	require.NoError(t, err)

	var beforeID snowflake.ID
	require.NoError(t, db.Raw(
		`SELECT id FROM invoice_line_items WHERE invoice_id = ?`, invoice.ID,
	).Scan(&beforeID).Error)

	seedLabReport(t, db, node, admissionID, "Liver Function Test", 750, domain.LabBillingBilled, "")

	result, err := svc.SyncCharges(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, int64(2), itemCount(t, db, invoice.ID))

	// The first item survived the second pass untouched.
	var stillThere int64
	require.NoError(t, db.Raw(
		`SELECT COUNT(*) FROM invoice_line_items WHERE id = ?`, beforeID,
	).Scan(&stillThere).Error)
	assert.Equal(t, int64(1), stillThere)
}

func TestSyncCharges_UnreadableCategoryIsSkippedNotFatal(t *testing.T) {
	svc, db, fc, node := setupService(t)
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)

	start := fc.Now().Add(-24 * time.Hour)
	seedOccupancy(t, db, node, admissionID, 2000, start, nil)
	seedLabReport(t, db, node, admissionID, "Urinalysis", 300, domain.LabBillingBilled, "")

	require.NoError(t, db.Exec(`DROP TABLE medication_charges`).Error)

	invoice, err := svc.CreateInvoice(ctx, admissionID.String())
	require.NoError(t, err)

	result, err := svc.SyncCharges(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, []string{"medication"}, result.Skipped)
	assert.InDelta(t, 2300.0, result.TotalAmount, 0.001)
	assert.Equal(t, int64(2), itemCount(t, db, invoice.ID))

	// The failed category did not poison the transaction for a later pass.
	again, err := svc.SyncCharges(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Inserted)
	assert.Equal(t, []string{"medication"}, again.Skipped)
}

type heldLocker struct{}

func (heldLocker) TryLockInvoice(context.Context, snowflake.ID, time.Duration) (string, bool, error) {
	return "", false, nil
}

func (heldLocker) Release(context.Context, snowflake.ID, string) error { return nil }

func TestSyncCharges_LockContentionProceedsWithWarning(t *testing.T) {
	svc, db, _, node := setupService(t)
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)
	seedLabReport(t, db, node, admissionID, "Urinalysis", 300, domain.LabBillingBilled, "")

	core, logs := observer.New(zap.WarnLevel)
	svc.log = zap.New(core)
	svc.locker = heldLocker{}

	invoice, err := svc.CreateInvoice(ctx, admissionID.String())
	require.NoError(t, err)

	result, err := svc.SyncCharges(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, logs.FilterMessage("sync lock held by a concurrent sync").Len())
}

func TestSyncCharges_UnknownInvoice(t *testing.T) {
	svc, _, _, node := setupService(t)

	_, err := svc.SyncCharges(context.Background(), node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestComputeRoomCharges_PartialDaysRoundUp(t *testing.T) {
	svc, db, fc, node := setupService(t)
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)

	// 2 days and 12 hours, closed segment: bills 3 days.
	start := fc.Now().Add(-60 * time.Hour)
	end := start.Add(60 * time.Hour)
	seedOccupancy(t, db, node, admissionID, 1500, start, &end)

	estimate, err := svc.ComputeRoomCharges(ctx, admissionID.String())
	require.NoError(t, err)
	require.Len(t, estimate.Charges, 1)
	assert.Equal(t, 3, estimate.Charges[0].Days)
	assert.InDelta(t, 4500.0, estimate.Total, 0.001)
}

func TestComputeRoomCharges_SameDayStayBillsOneDay(t *testing.T) {
	svc, db, fc, node := setupService(t)
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)

	start := fc.Now().Add(-2 * time.Hour)
	end := start
	seedOccupancy(t, db, node, admissionID, 1200, start, &end)

	estimate, err := svc.ComputeRoomCharges(ctx, admissionID.String())
	require.NoError(t, err)
	require.Len(t, estimate.Charges, 1)
	assert.Equal(t, 1, estimate.Charges[0].Days)
	assert.InDelta(t, 1200.0, estimate.Total, 0.001)
}

func TestComputeRoomCharges_OpenSegmentPricedToNow(t *testing.T) {
	svc, db, fc, node := setupService(t)
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)

	start := fc.Now().Add(-30 * time.Hour)
	seedOccupancy(t, db, node, admissionID, 1000, start, nil)

	estimate, err := svc.ComputeRoomCharges(ctx, admissionID.String())
	require.NoError(t, err)
	require.Len(t, estimate.Charges, 1)
	assert.Equal(t, 2, estimate.Charges[0].Days)

	// The running bill grows as the stay continues.
	fc.Advance(48 * time.Hour)
	estimate, err = svc.ComputeRoomCharges(ctx, admissionID.String())
	require.NoError(t, err)
	assert.Equal(t, 4, estimate.Charges[0].Days)
}

func TestComputeRoomCharges_UnknownAdmission(t *testing.T) {
	svc, _, _, node := setupService(t)

	_, err := svc.ComputeRoomCharges(context.Background(), node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrAdmissionNotFound)
}
