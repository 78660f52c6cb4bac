package service

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/medicore/medicore/internal/billing/domain"
	"github.com/medicore/medicore/internal/billing/merge"
	"github.com/medicore/medicore/internal/providers/email"
	"github.com/medicore/medicore/internal/providers/receipt"
	"github.com/medicore/medicore/internal/providers/storage"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingEmail struct {
	to         []string
	subject    string
	attachment email.Attachment
	sent       int
}

func (c *capturingEmail) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	c.to, c.subject = to, subject
	c.sent++
	return nil
}

func (c *capturingEmail) SendWithAttachment(ctx context.Context, to []string, subject, htmlBody string, att email.Attachment) error {
	c.to, c.subject, c.attachment = to, subject, att
	c.sent++
	return nil
}

func reportPDF(t *testing.T, text string) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(40, 10, text)
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func pageCount(t *testing.T, data []byte) int {
	t.Helper()
	n, err := api.PageCount(bytes.NewReader(data), nil)
	require.NoError(t, err)
	return n
}

func TestGenerateDocument_SyncsLedgerFirst(t *testing.T) {
	svc, db, fc, node := setupService(t)
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)

	start := fc.Now().Add(-48 * time.Hour)
	seedOccupancy(t, db, node, admissionID, 2500, start, nil)
	seedLabReport(t, db, node, admissionID, "Complete Blood Count", 450, domain.LabBillingBilled, "")

	invoice, err := svc.CreateInvoice(ctx, admissionID.String())
	require.NoError(t, err)

	doc, err := svc.GenerateDocument(ctx, invoice.ID.String(), domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "invoice-INV-000001.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))

	// Generation pulled the charge sources into the ledger on the way.
	assert.Equal(t, int64(2), itemCount(t, db, invoice.ID))
}

func TestGenerateDocument_AppendsBilledLabReports(t *testing.T) {
	svc, db, _, node := setupService(t)
	svc.merger = merge.New(storage.NoOpResolver{}, zap.NewNop())
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)

	report := reportPDF(t, "CBC report")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(report)
	}))
	defer srv.Close()

	seedLabReport(t, db, node, admissionID, "Complete Blood Count", 450, domain.LabBillingBilled, srv.URL+"/reports/cbc.pdf")

	invoice, err := svc.CreateInvoice(ctx, admissionID.String())
	require.NoError(t, err)

	plain, err := svc.GenerateDocument(ctx, invoice.ID.String(), domain.GenerateOptions{})
	require.NoError(t, err)

	enriched, err := svc.GenerateDocument(ctx, invoice.ID.String(), domain.GenerateOptions{IncludeReports: true})
	require.NoError(t, err)
	assert.Equal(t, "invoice-INV-000001-with-reports.pdf", enriched.Filename)
	assert.Equal(t, pageCount(t, plain.Data)+1, pageCount(t, enriched.Data))
}

func TestGenerateDocument_UnreachableReportStillProducesInvoice(t *testing.T) {
	svc, db, _, node := setupService(t)
	svc.merger = merge.New(storage.NoOpResolver{}, zap.NewNop())
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	seedLabReport(t, db, node, admissionID, "Blood Culture", 900, domain.LabBillingBilled, srv.URL+"/reports/culture.pdf")

	invoice, err := svc.CreateInvoice(ctx, admissionID.String())
	require.NoError(t, err)

	doc, err := svc.GenerateDocument(ctx, invoice.ID.String(), domain.GenerateOptions{IncludeReports: true})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))
}

func TestGenerateDocument_NarrativeAndCollapsedSummary(t *testing.T) {
	svc, db, _, node := setupService(t)
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)
	seedLabReport(t, db, node, admissionID, "Chest X-Ray", 600, domain.LabBillingBilled, "")

	invoice, err := svc.CreateInvoice(ctx, admissionID.String())
	require.NoError(t, err)

	plain, err := svc.GenerateDocument(ctx, invoice.ID.String(), domain.GenerateOptions{CollapseSummary: true})
	require.NoError(t, err)

	narrated, err := svc.GenerateDocument(ctx, invoice.ID.String(), domain.GenerateOptions{
		CollapseSummary:  true,
		IncludeNarrative: true,
	})
	require.NoError(t, err)
	assert.Equal(t, pageCount(t, plain.Data)+1, pageCount(t, narrated.Data))
}

func TestEmailDocument_SendsGeneratedAttachment(t *testing.T) {
	svc, db, _, node := setupService(t)
	mail := &capturingEmail{}
	svc.email = mail
	ctx := context.Background()
	admissionID := seedAdmission(t, db, node)
	seedLabReport(t, db, node, admissionID, "Urinalysis", 300, domain.LabBillingBilled, "")

	invoice, err := svc.CreateInvoice(ctx, admissionID.String())
	require.NoError(t, err)

	err = svc.EmailDocument(ctx, invoice.ID.String(), []string{"patient@example.com"}, domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, mail.sent)
	assert.Equal(t, []string{"patient@example.com"}, mail.to)
	assert.Contains(t, mail.subject, "INV-000001")
	assert.Equal(t, "invoice-INV-000001.pdf", mail.attachment.Filename)
	assert.True(t, bytes.HasPrefix(mail.attachment.Data, []byte("%PDF")))
}

func TestPaymentReceipt(t *testing.T) {
	svc, db, _, node := setupService(t)
	svc.receipts = receipt.New()
	ctx := context.Background()

	invoice, err := svc.CreateInvoice(ctx, seedAdmission(t, db, node).String())
	require.NoError(t, err)
	_, err = svc.AddCustomItem(ctx, invoice.ID.String(), domain.CustomItemRequest{
		Name: "Ward charges", Quantity: 1, UnitPrice: 2000,
	})
	require.NoError(t, err)

	// No payment yet, nothing to receipt.
	_, err = svc.PaymentReceipt(ctx, invoice.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidPayment)

	_, err = svc.RecordPayment(ctx, invoice.ID.String(), domain.PaymentRequest{Amount: 2000})
	require.NoError(t, err)

	doc, err := svc.PaymentReceipt(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "receipt-INV-000001.pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))
}
