package server

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecotrail/emissiondesk/internal/sessionctx"
)

const (
	headerCompanyID = "X-Company-ID"
	headerRequestID = "X-Request-ID"
)

// CompanyContext resolves the acting company for the request and stores
// it on the request context. Requests without a resolvable company are
// rejected before they reach a handler.
func (s *Server) CompanyContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID := s.cfg.DefaultCompanyID
		if raw := c.GetHeader(headerCompanyID); raw != "" {
			id, err := snowflake.ParseString(raw)
			if err != nil {
				AbortWithError(c, newValidationError("company_id", "invalid_company", "invalid company id"))
				return
			}
			companyID = id.Int64()
		}

		if companyID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := sessionctx.WithCompanyID(c.Request.Context(), companyID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		c.Next()

		log.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
