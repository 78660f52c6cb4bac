package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingdomain "github.com/medicore/medicore/internal/billing/domain"
	"github.com/medicore/medicore/internal/config"
	"github.com/medicore/medicore/internal/staffcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBillingService struct {
	createCalls  int
	lastStaffID  snowflake.ID
	syncResult   billingdomain.SyncResult
	document     billingdomain.Document
	documentErr  error
	paymentErr   error
	emailedTo    []string
	generateOpts billingdomain.GenerateOptions
}

func (f *fakeBillingService) CreateInvoice(ctx context.Context, admissionID string) (billingdomain.Invoice, error) {
	f.createCalls++
	if staffID, ok := staffcontext.StaffIDFromContext(ctx); ok {
		f.lastStaffID = staffID
	}
	if admissionID == "404404" {
		return billingdomain.Invoice{}, billingdomain.ErrAdmissionNotFound
	}
	return billingdomain.Invoice{ID: snowflake.ID(77), InvoiceNumber: 12}, nil
}

func (f *fakeBillingService) GetByID(ctx context.Context, id string) (billingdomain.InvoiceDetail, error) {
	if id == "404404" {
		return billingdomain.InvoiceDetail{}, billingdomain.ErrInvoiceNotFound
	}
	return billingdomain.InvoiceDetail{
		Invoice: billingdomain.Invoice{ID: snowflake.ID(77)},
	}, nil
}

func (f *fakeBillingService) List(ctx context.Context, req billingdomain.ListInvoiceRequest) (billingdomain.ListInvoiceResponse, error) {
	return billingdomain.ListInvoiceResponse{Invoices: []billingdomain.Invoice{}}, nil
}

func (f *fakeBillingService) DeleteInvoice(ctx context.Context, id string) error { return nil }

func (f *fakeBillingService) ComputeRoomCharges(ctx context.Context, admissionID string) (billingdomain.RoomChargeEstimate, error) {
	return billingdomain.RoomChargeEstimate{}, nil
}

func (f *fakeBillingService) SyncCharges(ctx context.Context, invoiceID string) (billingdomain.SyncResult, error) {
	return f.syncResult, nil
}

func (f *fakeBillingService) AddCustomItem(ctx context.Context, invoiceID string, req billingdomain.CustomItemRequest) (billingdomain.LineItem, error) {
	if req.Quantity <= 0 {
		return billingdomain.LineItem{}, billingdomain.ErrInvalidItem
	}
	return billingdomain.LineItem{ID: snowflake.ID(5), ItemName: req.Name}, nil
}

func (f *fakeBillingService) UpdateItem(ctx context.Context, invoiceID, itemID string, req billingdomain.UpdateItemRequest) (billingdomain.LineItem, error) {
	return billingdomain.LineItem{}, billingdomain.ErrLineItemNotFound
}

func (f *fakeBillingService) DeleteItem(ctx context.Context, invoiceID, itemID string) error {
	return nil
}

func (f *fakeBillingService) SetDiscount(ctx context.Context, invoiceID string, req billingdomain.DiscountRequest) (billingdomain.Invoice, error) {
	if req.DiscountValue > 100 && req.DiscountType == billingdomain.DiscountPercentage {
		return billingdomain.Invoice{}, billingdomain.ErrInvalidDiscount
	}
	return billingdomain.Invoice{ID: snowflake.ID(77)}, nil
}

func (f *fakeBillingService) RecordPayment(ctx context.Context, invoiceID string, req billingdomain.PaymentRequest) (billingdomain.Invoice, error) {
	if f.paymentErr != nil {
		return billingdomain.Invoice{}, f.paymentErr
	}
	return billingdomain.Invoice{ID: snowflake.ID(77), Status: billingdomain.InvoiceStatusPartial}, nil
}

func (f *fakeBillingService) PaymentReceipt(ctx context.Context, invoiceID string) (billingdomain.Document, error) {
	return f.document, f.documentErr
}

func (f *fakeBillingService) GenerateDocument(ctx context.Context, invoiceID string, opts billingdomain.GenerateOptions) (billingdomain.Document, error) {
	f.generateOpts = opts
	return f.document, f.documentErr
}

func (f *fakeBillingService) EmailDocument(ctx context.Context, invoiceID string, to []string, opts billingdomain.GenerateOptions) error {
	f.emailedTo = to
	return nil
}

func setupServer(t *testing.T) (*Server, *fakeBillingService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := &fakeBillingService{
		document: billingdomain.Document{
			Filename:    "invoice-INV-000012.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.4 test"),
		},
	}

	srv := NewServer(ServerParams{
		Gin:        NewEngine(zap.NewNop()),
		Cfg:        config.Config{},
		GenID:      node,
		BillingSvc: fake,
	})
	return srv, fake
}

func do(srv *Server, method, path string, body []byte, staff bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if staff {
		req.Header.Set(staffHeader, "9001")
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestMutatingRoutesRequireStaffIdentity(t *testing.T) {
	srv, fake := setupServer(t)

	w := do(srv, http.MethodPost, "/api/v1/admissions/123/invoices", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, fake.createCalls)

	w = do(srv, http.MethodPost, "/api/v1/admissions/123/invoices", nil, true)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, fake.createCalls)
	assert.Equal(t, snowflake.ID(9001), fake.lastStaffID)
}

func TestNotFoundMapsTo404(t *testing.T) {
	srv, _ := setupServer(t)

	w := do(srv, http.MethodGet, "/api/v1/invoices/404404", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error.Type)
}

func TestDomainValidationMapsTo400(t *testing.T) {
	srv, _ := setupServer(t)

	body, _ := json.Marshal(billingdomain.CustomItemRequest{Name: "x", Quantity: 0})
	w := do(srv, http.MethodPost, "/api/v1/invoices/77/items", body, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error struct {
			Type   string `json:"type"`
			Errors []struct {
				Code string `json:"code"`
			} `json:"errors"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error.Type)
	require.Len(t, resp.Error.Errors, 1)
	assert.Equal(t, "invalid_item", resp.Error.Errors[0].Code)
}

func TestListInvoices_RejectsBadStatusFilter(t *testing.T) {
	srv, _ := setupServer(t)

	w := do(srv, http.MethodGet, "/api/v1/invoices?status=archived", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(srv, http.MethodGet, "/api/v1/invoices?status=paid", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetInvoiceDocument_RequiresStaffIdentity(t *testing.T) {
	srv, _ := setupServer(t)

	// Generation syncs the ledger before composing, so the route is
	// gated like the other mutating ones.
	w := do(srv, http.MethodGet, "/api/v1/invoices/77/document", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(srv, http.MethodGet, "/api/v1/invoices/77/document", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetInvoiceDocument_SetsDownloadHeaders(t *testing.T) {
	srv, fake := setupServer(t)

	w := do(srv, http.MethodGet, "/api/v1/invoices/77/document?include_reports=true&narrative=1", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="invoice-INV-000012.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	assert.True(t, fake.generateOpts.IncludeReports)
	assert.True(t, fake.generateOpts.IncludeNarrative)
	assert.False(t, fake.generateOpts.CollapseSummary)
}

func TestGetInvoiceDocument_GenerationFailureMapsTo502(t *testing.T) {
	srv, fake := setupServer(t)
	fake.documentErr = billingdomain.ErrGenerationFailed

	w := do(srv, http.MethodGet, "/api/v1/invoices/77/document", nil, true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRecordPayment_ReturnsReceiptReference(t *testing.T) {
	srv, _ := setupServer(t)

	body, _ := json.Marshal(billingdomain.PaymentRequest{Amount: 500})
	w := do(srv, http.MethodPost, "/api/v1/invoices/77/payments", body, true)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ReceiptURL string `json:"receipt_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "/api/v1/invoices/77/receipt", resp.ReceiptURL)
}

func TestEmailInvoice_RequiresRecipients(t *testing.T) {
	srv, fake := setupServer(t)

	w := do(srv, http.MethodPost, "/api/v1/invoices/77/send", []byte(`{"recipients":[]}`), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fake.emailedTo)

	w = do(srv, http.MethodPost, "/api/v1/invoices/77/send", []byte(`{"recipients":["patient@example.com"]}`), true)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"patient@example.com"}, fake.emailedTo)
}
