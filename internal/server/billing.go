package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingdomain "github.com/medicore/medicore/internal/billing/domain"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	admissionID := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(admissionID); err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid admission id"))
		return
	}

	invoice, err := s.billingSvc.CreateInvoice(c.Request.Context(), admissionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) ListInvoices(c *gin.Context) {
	req := billingdomain.ListInvoiceRequest{}

	if raw := strings.TrimSpace(c.Query("admission_id")); raw != "" {
		req.AdmissionID = &raw
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := billingdomain.InvoiceStatus(raw)
		switch status {
		case billingdomain.InvoiceStatusPending,
			billingdomain.InvoiceStatusPartial,
			billingdomain.InvoiceStatusPaid:
			req.Status = &status
		default:
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
	}
	if raw := strings.TrimSpace(c.Query("created_from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("created_from", "invalid_date", "expected RFC3339"))
			return
		}
		req.CreatedFrom = &from
	}
	if raw := strings.TrimSpace(c.Query("created_to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("created_to", "invalid_date", "expected RFC3339"))
			return
		}
		req.CreatedTo = &to
	}

	resp, err := s.billingSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	detail, err := s.billingSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.billingSvc.DeleteInvoice(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ComputeRoomCharges(c *gin.Context) {
	estimate, err := s.billingSvc.ComputeRoomCharges(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": estimate})
}

func (s *Server) SyncCharges(c *gin.Context) {
	result, err := s.billingSvc.SyncCharges(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) AddCustomItem(c *gin.Context) {
	var req billingdomain.CustomItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.billingSvc.AddCustomItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) UpdateItem(c *gin.Context) {
	var req billingdomain.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.billingSvc.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) DeleteItem(c *gin.Context) {
	if err := s.billingSvc.DeleteItem(c.Request.Context(), c.Param("id"), c.Param("itemId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) SetDiscount(c *gin.Context) {
	var req billingdomain.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	invoice, err := s.billingSvc.SetDiscount(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req billingdomain.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	invoice, err := s.billingSvc.RecordPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        invoice,
		"receipt_url": fmt.Sprintf("/api/v1/invoices/%s/receipt", invoice.ID.String()),
	})
}

func (s *Server) PaymentReceipt(c *gin.Context) {
	doc, err := s.billingSvc.PaymentReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeDocument(c, doc)
}

func (s *Server) GetInvoiceDocument(c *gin.Context) {
	opts := billingdomain.GenerateOptions{
		IncludeReports:   queryFlag(c, "include_reports"),
		CollapseSummary:  queryFlag(c, "collapse_summary"),
		IncludeNarrative: queryFlag(c, "narrative"),
	}

	doc, err := s.billingSvc.GenerateDocument(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeDocument(c, doc)
}

type emailDocumentRequest struct {
	Recipients      []string `json:"recipients"`
	IncludeReports  bool     `json:"include_reports"`
	CollapseSummary bool     `json:"collapse_summary"`
	Narrative       bool     `json:"narrative"`
}

func (s *Server) EmailInvoiceDocument(c *gin.Context) {
	var req emailDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if len(req.Recipients) == 0 {
		AbortWithError(c, newValidationError("recipients", "required", "at least one recipient is required"))
		return
	}

	err := s.billingSvc.EmailDocument(c.Request.Context(), c.Param("id"), req.Recipients, billingdomain.GenerateOptions{
		IncludeReports:   req.IncludeReports,
		CollapseSummary:  req.CollapseSummary,
		IncludeNarrative: req.Narrative,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func writeDocument(c *gin.Context, doc billingdomain.Document) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

func queryFlag(c *gin.Context, name string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(name))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
