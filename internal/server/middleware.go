package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/medicore/medicore/internal/staffcontext"
	"go.uber.org/zap"
)

const staffHeader = "X-Staff-Id"

// RequestLogMiddleware emits one structured line per request.
func RequestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// StaffRequired gates mutating routes on a staff identity. Authentication
// itself lives at the gateway; this layer only carries the identity through
// for attribution.
func (s *Server) StaffRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(staffHeader))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		staffID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := staffcontext.WithStaffID(c.Request.Context(), int64(staffID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
