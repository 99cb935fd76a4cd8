package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"booking-svc/gateway"
	"booking-svc/middleware"
	"booking-svc/models"
	"booking-svc/query"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	db             *sqlx.DB
	gateway        PaymentGateway
	gatewayTimeout time.Duration
	logger         *zap.Logger
}

func NewPaymentHandler(db *sqlx.DB, gw PaymentGateway, gatewayTimeout time.Duration, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{db: db, gateway: gw, gatewayTimeout: gatewayTimeout, logger: logger}
}

var paymentQueryFields = map[string]string{
	"id":            "id",
	"bookingId":     "booking_id",
	"status":        "status",
	"transactionId": "transaction_id",
	"amount":        "amount",
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
}

// SuccessPayment is the gateway success callback: payment goes PAID and the
// booking CONFIRMED, atomically. Payment status changes only ever happen
// here and in the sibling callbacks, never on direct client request.
func (h *PaymentHandler) SuccessPayment(c *gin.Context) {
	h.settle(c, models.PaymentStatusPaid, models.BookingStatusConfirmed,
		gin.H{"success": true, "message": "Payment completed successfully"})
}

// FailPayment marks the payment FAILED and the booking FAILED.
func (h *PaymentHandler) FailPayment(c *gin.Context) {
	h.settle(c, models.PaymentStatusFailed, models.BookingStatusFailed,
		gin.H{"success": false, "message": "Payment failed"})
}

// CancelPayment marks the payment CANCELLED and the booking CANCELLED.
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	h.settle(c, models.PaymentStatusCancelled, models.BookingStatusCancelled,
		gin.H{"success": false, "message": "Payment cancelled"})
}

func (h *PaymentHandler) settle(c *gin.Context, paymentStatus models.PaymentStatus, bookingStatus models.BookingStatus, response gin.H) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "SettlePayment")
	defer span.End()

	transactionID := c.Query("transactionId")
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transactionId is required"})
		return
	}
	span.SetAttributes(
		attribute.String("transaction_id", transactionID),
		attribute.String("payment.status", string(paymentStatus)),
	)

	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var payment models.Payment
	err = tx.GetContext(ctx, &payment,
		`UPDATE payments SET status = $1, updated_at = NOW() WHERE transaction_id = $2
		 RETURNING id, booking_id, status, transaction_id, amount, invoice_url, created_at, updated_at`,
		paymentStatus, transactionID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2",
		bookingStatus, payment.BookingID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update booking status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit payment settlement", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	committed = true

	middleware.RecordPaymentProcessed(string(paymentStatus))
	h.logger.Info("Payment settled",
		zap.String("transaction_id", transactionID),
		zap.String("status", string(paymentStatus)),
	)
	c.JSON(http.StatusOK, response)
}

// InitPayment re-issues a gateway session for an existing unpaid payment,
// e.g. after the tourist abandoned the first checkout page.
func (h *PaymentHandler) InitPayment(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "InitPayment")
	defer span.End()

	bookingID, err := strconv.Atoi(c.Param("bookingId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	var payment models.Payment
	err = h.db.GetContext(ctx, &payment,
		"SELECT id, booking_id, status, transaction_id, amount, invoice_url, created_at, updated_at FROM payments WHERE booking_id = $1",
		bookingID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found. You have not booked this tour"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if payment.Status != models.PaymentStatusUnpaid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment is already " + string(payment.Status)})
		return
	}

	var tourist models.User
	err = h.db.GetContext(ctx, &tourist,
		`SELECT u.id, u.name, u.email, u.phone, u.address
		 FROM users u JOIN bookings b ON b.tourist_id = u.id
		 WHERE b.id = $1`,
		bookingID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load tourist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	gwCtx, cancel := context.WithTimeout(ctx, h.gatewayTimeout)
	defer cancel()
	paymentURL, err := h.gateway.InitSession(gwCtx, gateway.SessionRequest{
		Amount:        payment.Amount,
		TransactionID: payment.TransactionID,
		Name:          tourist.Name,
		Email:         tourist.Email,
		Phone:         tourist.Phone,
		Address:       tourist.Address,
	})
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Payment gateway init failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"paymentUrl": paymentURL})
}

// ListPayments is admin-only.
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "ListPayments")
	defer span.End()

	opts := query.Options{
		Fields:     paymentQueryFields,
		Searchable: []string{"transactionId"},
	}
	spec := query.Compile(query.Params(c.Request.URL.Query()), opts)

	payments := []models.Payment{}
	meta, err := fetchList(ctx, h.db, "payments", spec, &payments)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list payments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments, "meta": meta})
}
