package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"booking-svc/gateway"
	"booking-svc/kafka"
	"booking-svc/middleware"
	"booking-svc/models"
	"booking-svc/query"

	"github.com/IBM/sarama"
	"github.com/doug-martin/goqu/v9"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentGateway is the slice of the gateway client the booking workflow needs.
type PaymentGateway interface {
	InitSession(ctx context.Context, req gateway.SessionRequest) (string, error)
}

type BookingHandler struct {
	db             *sqlx.DB
	gateway        PaymentGateway
	producer       sarama.SyncProducer
	topic          string
	gatewayTimeout time.Duration
	logger         *zap.Logger
}

func NewBookingHandler(db *sqlx.DB, gw PaymentGateway, producer sarama.SyncProducer, topic string, gatewayTimeout time.Duration, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		db:             db,
		gateway:        gw,
		producer:       producer,
		topic:          topic,
		gatewayTimeout: gatewayTimeout,
		logger:         logger,
	}
}

var bookingQueryFields = map[string]string{
	"id":            "id",
	"touristId":     "tourist_id",
	"guideId":       "guide_id",
	"tourListingId": "tour_listing_id",
	"status":        "status",
	"requestedDate": "requested_date",
	"groupSize":     "group_size",
	"totalPrice":    "total_price",
	"notes":         "notes",
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
}

const requestedDateLayout = "2006-01-02"

func newTransactionID() string {
	return fmt.Sprintf("tran_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}

// CreateBooking runs the whole creation workflow inside one database
// transaction: resolve listing and tourist, derive the price, insert the
// PENDING booking and its UNPAID payment, link them, initiate the gateway
// session and only then commit. Any failure on the way, the gateway call
// included, rolls everything back — callers either get the full
// {booking, payment, paymentUrl} result or no trace of the attempt.
//
// The gateway call happens inside the transaction on purpose: committing
// first would let readers observe bookings that never got a payment session.
// The cost (row locks held across a network call) is bounded by the gateway
// timeout.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "CreateBooking")
	defer span.End()

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestedDate, err := time.Parse(requestedDateLayout, req.RequestedDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid requestedDate, expected YYYY-MM-DD"})
		return
	}

	touristID := middleware.ActorID(c)
	span.SetAttributes(
		attribute.Int("tourist_id", touristID),
		attribute.Int("tour_listing_id", req.TourListingID),
		attribute.Int("group_size", req.GroupSize),
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

	var listing models.TourListing
	err = tx.GetContext(ctx, &listing,
		"SELECT id, guide_id, title, price, is_active FROM tour_listings WHERE id = $1",
		req.TourListingID,
	)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !listing.IsActive) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load listing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var tourist models.User
	err = tx.GetContext(ctx, &tourist,
		"SELECT id, name, email, phone, address FROM users WHERE id = $1",
		touristID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tourist not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load tourist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	groupSize := req.GroupSize
	if groupSize < 1 {
		groupSize = 1
	}
	totalPrice := listing.Price * float64(groupSize)
	transactionID := newTransactionID()

	var booking models.Booking
	err = tx.GetContext(ctx, &booking,
		`INSERT INTO bookings (tourist_id, guide_id, tour_listing_id, status, requested_date, group_size, total_price, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, tourist_id, guide_id, tour_listing_id, status, requested_date, group_size, total_price, notes, payment_id, completed_at, created_at, updated_at`,
		touristID, listing.GuideID, listing.ID, models.BookingStatusPending, requestedDate, groupSize, totalPrice, req.Notes,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create booking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var paymentID int
	err = tx.GetContext(ctx, &paymentID,
		`INSERT INTO payments (booking_id, status, transaction_id, amount)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		booking.ID, models.PaymentStatusUnpaid, transactionID, totalPrice,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE bookings SET payment_id = $1, updated_at = NOW() WHERE id = $2",
		paymentID, booking.ID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to link payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	booking.PaymentID = &paymentID

	gwCtx, cancel := context.WithTimeout(ctx, h.gatewayTimeout)
	defer cancel()
	paymentURL, err := h.gateway.InitSession(gwCtx, gateway.SessionRequest{
		Amount:        totalPrice,
		TransactionID: transactionID,
		Name:          tourist.Name,
		Email:         tourist.Email,
		Phone:         tourist.Phone,
		Address:       tourist.Address,
	})
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Payment gateway init failed, rolling back booking",
			zap.String("transaction_id", transactionID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable"})
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit booking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	committed = true

	span.SetAttributes(attribute.Int("booking.id", booking.ID))
	middleware.RecordBookingCreated()

	if h.producer != nil {
		event := models.BookingEvent{
			BookingID:     booking.ID,
			TouristID:     booking.TouristID,
			GuideID:       booking.GuideID,
			TourListingID: booking.TourListingID,
			Status:        booking.Status,
			TotalPrice:    booking.TotalPrice,
			TransactionID: transactionID,
			EventType:     "booking_created",
		}
		if err := kafka.PublishBookingEvent(ctx, h.producer, h.topic, event, h.logger); err != nil {
			h.logger.Error("Failed to publish booking_created event", zap.Error(err))
			// Don't fail the request, but log the error
		}
	}

	h.logger.Info("Booking created",
		zap.Int("booking_id", booking.ID),
		zap.String("transaction_id", transactionID),
	)
	c.JSON(http.StatusCreated, gin.H{"paymentUrl": paymentURL, "booking": booking})
}

// UpdateBooking patches a booking. Status changes go through the transition
// guard; a group-size change re-resolves the listing and recomputes the
// total price server-side.
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "UpdateBooking")
	defer span.End()

	bookingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	var req models.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.applyBookingPatch(c, ctx, bookingID, req)
}

// CancelBooking is UpdateBooking with a fixed CANCELLED target, enforced
// through the same guard.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "CancelBooking")
	defer span.End()

	bookingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	cancelled := string(models.BookingStatusCancelled)
	h.applyBookingPatch(c, ctx, bookingID, models.UpdateBookingRequest{Status: &cancelled})
}

func (h *BookingHandler) applyBookingPatch(c *gin.Context, ctx context.Context, bookingID int, req models.UpdateBookingRequest) {
	actorID := middleware.ActorID(c)
	role := middleware.ActorRole(c)

	var booking models.Booking
	err := h.db.GetContext(ctx, &booking,
		"SELECT id, tourist_id, guide_id, tour_listing_id, status, requested_date, group_size, total_price, notes, payment_id, completed_at, created_at, updated_at FROM bookings WHERE id = $1",
		bookingID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load booking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	record := goqu.Record{"updated_at": goqu.L("NOW()")}

	if req.Status != nil {
		target := models.BookingStatus(*req.Status)
		if err := models.AuthorizeTransition(booking.Status, target, role, actorID, &booking); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		record["status"] = string(target)
		if target == models.BookingStatusCompleted {
			record["completed_at"] = goqu.L("NOW()")
		}
	}

	if req.GroupSize != nil {
		groupSize := *req.GroupSize
		if groupSize < 1 {
			groupSize = 1
		}
		var price float64
		err := h.db.GetContext(ctx, &price,
			"SELECT price FROM tour_listings WHERE id = $1", booking.TourListingID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		if err != nil {
			h.logger.Error("Failed to load listing", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		record["group_size"] = groupSize
		record["total_price"] = price * float64(groupSize)
	}

	if req.RequestedDate != nil {
		requestedDate, err := time.Parse(requestedDateLayout, *req.RequestedDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid requestedDate, expected YYYY-MM-DD"})
			return
		}
		record["requested_date"] = requestedDate
	}

	if req.Notes != nil {
		record["notes"] = *req.Notes
	}

	updateSQL, args, err := goqu.Dialect("postgres").Update("bookings").Prepared(true).
		Set(record).
		Where(goqu.C("id").Eq(bookingID)).
		ToSQL()
	if err != nil {
		h.logger.Error("Failed to build update", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if _, err := h.db.ExecContext(ctx, updateSQL, args...); err != nil {
		h.logger.Error("Failed to update booking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	err = h.db.GetContext(ctx, &booking,
		"SELECT id, tourist_id, guide_id, tour_listing_id, status, requested_date, group_size, total_price, notes, payment_id, completed_at, created_at, updated_at FROM bookings WHERE id = $1",
		bookingID,
	)
	if err != nil {
		h.logger.Error("Failed to reload booking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if h.producer != nil && req.Status != nil {
		event := models.BookingEvent{
			BookingID:     booking.ID,
			TouristID:     booking.TouristID,
			GuideID:       booking.GuideID,
			TourListingID: booking.TourListingID,
			Status:        booking.Status,
			TotalPrice:    booking.TotalPrice,
			EventType:     "booking_" + strings.ToLower(string(booking.Status)),
		}
		if err := kafka.PublishBookingEvent(ctx, h.producer, h.topic, event, h.logger); err != nil {
			h.logger.Error("Failed to publish booking status event", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "GetBooking")
	defer span.End()

	bookingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}
	span.SetAttributes(attribute.Int("booking.id", bookingID))

	var detail models.BookingDetail
	err = h.db.GetContext(ctx, &detail,
		`SELECT b.id, b.tourist_id, b.guide_id, b.tour_listing_id, b.status, b.requested_date, b.group_size, b.total_price, b.notes, b.payment_id, b.completed_at, b.created_at, b.updated_at,
		        l.title AS listing_title, l.price AS listing_price,
		        u.name AS tourist_name, u.email AS tourist_email,
		        p.status AS pay_status, p.transaction_id, p.amount AS pay_amount
		 FROM bookings b
		 JOIN tour_listings l ON l.id = b.tour_listing_id
		 JOIN users u ON u.id = b.tourist_id
		 LEFT JOIN payments p ON p.id = b.payment_id
		 WHERE b.id = $1`,
		bookingID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get booking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, detail)
}

// ListBookings runs the shared query pipeline over bookings. The actor's
// role decides the scope predicate injected before anything user-supplied:
// guides see bookings they guide, tourists their own, admins everything.
// For non-admin actors the touristId/guideId parameters are reserved so the
// scope cannot be widened by naming someone else's identity.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "ListBookings")
	defer span.End()

	actorID := middleware.ActorID(c)
	role := middleware.ActorRole(c)

	opts := query.Options{
		Fields:     bookingQueryFields,
		Searchable: []string{"notes"},
		DateField:  "requestedDate",
	}
	switch role {
	case models.RoleGuide:
		opts.Base = append(opts.Base, goqu.C("guide_id").Eq(actorID))
	case models.RoleTourist:
		opts.Base = append(opts.Base, goqu.C("tourist_id").Eq(actorID))
	}
	if role != models.RoleAdmin {
		opts.Reserved = append(opts.Reserved, "touristId", "guideId")
	}

	spec := query.Compile(query.Params(c.Request.URL.Query()), opts)

	bookings := []models.Booking{}
	meta, err := fetchList(ctx, h.db, "bookings", spec, &bookings)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list bookings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bookings, "meta": meta})
}
