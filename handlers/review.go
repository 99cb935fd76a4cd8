package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"booking-svc/middleware"
	"booking-svc/models"
	"booking-svc/query"

	"github.com/doug-martin/goqu/v9"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ReviewHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewReviewHandler(db *sqlx.DB, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{db: db, logger: logger}
}

var reviewQueryFields = map[string]string{
	"id":        "id",
	"bookingId": "booking_id",
	"touristId": "tourist_id",
	"guideId":   "guide_id",
	"rating":    "rating",
	"comment":   "comment",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// CreateReview lets a tourist review their own completed booking. The
// guide's rating aggregates are recomputed in the same transaction.
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "CreateReview")
	defer span.End()

	var req models.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := middleware.ActorID(c)
	span.SetAttributes(attribute.Int("booking_id", req.BookingID))

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

	var booking models.Booking
	err = tx.GetContext(ctx, &booking,
		"SELECT id, tourist_id, guide_id, status FROM bookings WHERE id = $1",
		req.BookingID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load booking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if booking.TouristID != actorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Booking does not belong to user"})
		return
	}
	if booking.Status != models.BookingStatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot review before completion"})
		return
	}

	var review models.Review
	err = tx.GetContext(ctx, &review,
		`INSERT INTO reviews (booking_id, tourist_id, guide_id, rating, comment)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, booking_id, tourist_id, guide_id, rating, comment, created_at, updated_at`,
		booking.ID, actorID, booking.GuideID, req.Rating, req.Comment,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create review", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// Recompute the guide's aggregates from all their reviews.
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET
		   average_rating = (SELECT AVG(rating) FROM reviews WHERE guide_id = $1),
		   total_tours_given = (SELECT COUNT(*) FROM bookings WHERE guide_id = $1 AND status = 'COMPLETED'),
		   updated_at = NOW()
		 WHERE id = $1`,
		booking.GuideID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update guide rating", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit review", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	committed = true

	c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandler) ListReviews(c *gin.Context) {
	h.list(c, nil)
}

func (h *ReviewHandler) ListReviewsByGuide(c *gin.Context) {
	guideID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid guide ID"})
		return
	}
	h.list(c, []goqu.Expression{goqu.C("guide_id").Eq(guideID)})
}

func (h *ReviewHandler) ListReviewsByTourist(c *gin.Context) {
	touristID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tourist ID"})
		return
	}
	h.list(c, []goqu.Expression{goqu.C("tourist_id").Eq(touristID)})
}

func (h *ReviewHandler) list(c *gin.Context, base []goqu.Expression) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "ListReviews")
	defer span.End()

	opts := query.Options{
		Fields:     reviewQueryFields,
		Searchable: []string{"comment"},
		Base:       base,
	}
	spec := query.Compile(query.Params(c.Request.URL.Query()), opts)

	reviews := []models.Review{}
	meta, err := fetchList(ctx, h.db, "reviews", spec, &reviews)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list reviews", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reviews, "meta": meta})
}
