package handlers

import (
	"context"
	"net/http"

	"github.com/apsdehal/go-logger"
	"github.com/gin-gonic/gin"
	"github.com/kareem-ic/paysim-sandbox/internal/ledger"
	"github.com/kareem-ic/paysim-sandbox/internal/payments"
	"github.com/kareem-ic/paysim-sandbox/internal/validation"
)

// Header names.
const (
	HeaderIdempotencyKey      = "X-Idempotency-Key"
	HeaderIdempotencyKeyShort = "Idempotency-Key"
	HeaderReplayed            = "Idempotent-Replayed"
)

// PaymentService is implemented by *payments.Engine.
type PaymentService interface {
	Authorize(ctx context.Context, idempotencyKey string, req payments.AuthorizeRequest) (*payments.Result, error)
	Capture(ctx context.Context, idempotencyKey string, req payments.CaptureRequest) (*payments.Result, error)
	Refund(ctx context.Context, idempotencyKey string, req payments.RefundRequest) (*payments.Result, error)
	Transaction(ctx context.Context, transactionID string) (*ledger.Transaction, error)
}

// RegisterPaymentRoutes registers the /payments routes.
func RegisterPaymentRoutes(r *gin.Engine, svc PaymentService, log *logger.Logger) {
	v := validation.New()
	g := r.Group("/payments")

	g.POST("/authorize", func(c *gin.Context) {
		key, ok := idempotencyKey(c)
		if !ok {
			return
		}
		var req validation.AuthorizeRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		res, err := svc.Authorize(c.Request.Context(), key, req.Engine())
		respond(c, log, res, err)
	})

	g.POST("/capture", func(c *gin.Context) {
		key, ok := idempotencyKey(c)
		if !ok {
			return
		}
		var req validation.CaptureRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		res, err := svc.Capture(c.Request.Context(), key, req.Engine())
		respond(c, log, res, err)
	})

	g.POST("/refund", func(c *gin.Context) {
		key, ok := idempotencyKey(c)
		if !ok {
			return
		}
		var req validation.RefundRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		res, err := svc.Refund(c.Request.Context(), key, req.Engine())
		respond(c, log, res, err)
	})

	g.GET("/:transaction_id", func(c *gin.Context) {
		tx, err := svc.Transaction(c.Request.Context(), c.Param("transaction_id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, tx)
	})
}

// idempotencyKey reads the key header, writing a 422 when it is absent.
func idempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if key == "" {
		key = c.GetHeader(HeaderIdempotencyKeyShort)
	}
	if key == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "missing_idempotency_key",
			"message": HeaderIdempotencyKey + " header is required",
		})
		return "", false
	}
	return key, true
}

func respond(c *gin.Context, log *logger.Logger, res *payments.Result, err error) {
	if err != nil {
		writeError(c, log, err)
		return
	}
	if res.Replayed {
		c.Header(HeaderReplayed, "true")
	}
	c.JSON(http.StatusOK, res.Payment)
}

func writeError(c *gin.Context, log *logger.Logger, err error) {
	kind := payments.KindOf(err)
	status := StatusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal storage error, retry with the same idempotency key"
	}
	c.JSON(status, gin.H{"error": kind.String(), "message": msg})
}

// StatusFor maps an engine error kind to its HTTP status.
func StatusFor(kind payments.Kind) int {
	switch kind {
	case payments.KindValidation:
		return http.StatusUnprocessableEntity
	case payments.KindNotFound:
		return http.StatusNotFound
	case payments.KindConflict, payments.KindInvalidState, payments.KindInProgress:
		return http.StatusConflict
	case payments.KindInvalidAmount:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
