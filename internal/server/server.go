package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/medicore/medicore/internal/billing"
	billingdomain "github.com/medicore/medicore/internal/billing/domain"
	"github.com/medicore/medicore/internal/clock"
	"github.com/medicore/medicore/internal/config"
	"github.com/medicore/medicore/internal/logger"
	"github.com/medicore/medicore/internal/migration"
	"github.com/medicore/medicore/internal/providers"
	"github.com/medicore/medicore/pkg/db"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	config.Module,
	logger.Module,
	clock.Module,
	db.Module,
	migration.Module,
	providers.Module,
	billing.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	genID      *snowflake.Node
	billingSvc billingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	GenID      *snowflake.Node
	BillingSvc billingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		genID:      p.GenID,
		billingSvc: p.BillingSvc,
	}

	svc.registerBillingRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerBillingRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Admissions --------
	api.POST("/admissions/:id/invoices", s.StaffRequired(), s.CreateInvoice)
	api.GET("/admissions/:id/room-charges", s.ComputeRoomCharges)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.DELETE("/invoices/:id", s.StaffRequired(), s.DeleteInvoice)
	api.POST("/invoices/:id/sync", s.StaffRequired(), s.SyncCharges)

	// -------- Line items --------
	api.POST("/invoices/:id/items", s.StaffRequired(), s.AddCustomItem)
	api.PATCH("/invoices/:id/items/:itemId", s.StaffRequired(), s.UpdateItem)
	api.DELETE("/invoices/:id/items/:itemId", s.StaffRequired(), s.DeleteItem)

	// -------- Discounts and payments --------
	api.PUT("/invoices/:id/discount", s.StaffRequired(), s.SetDiscount)
	api.POST("/invoices/:id/payments", s.StaffRequired(), s.RecordPayment)
	api.GET("/invoices/:id/receipt", s.PaymentReceipt)

	// -------- Documents --------
	// Generation syncs the ledger first, so it carries staff identity
	// like every other mutating route.
	api.GET("/invoices/:id/document", s.StaffRequired(), s.GetInvoiceDocument)
	api.POST("/invoices/:id/send", s.StaffRequired(), s.EmailInvoiceDocument)
}
