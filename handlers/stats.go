package handlers

import (
	"net/http"

	"booking-svc/middleware"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// StatsHandler serves the admin dashboard aggregates.
type StatsHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewStatsHandler(db *sqlx.DB, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{db: db, logger: logger}
}

type statusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

type statusRevenue struct {
	Status string  `db:"status" json:"status"`
	Count  int     `db:"count" json:"count"`
	Total  float64 `db:"total" json:"total"`
}

type roleCount struct {
	Role  string `db:"role" json:"role"`
	Count int    `db:"count" json:"count"`
}

type topListing struct {
	ID       int     `db:"id" json:"id"`
	Title    string  `db:"title" json:"title"`
	Bookings int     `db:"bookings" json:"bookings"`
	Revenue  float64 `db:"revenue" json:"revenue"`
}

func (h *StatsHandler) GetStats(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "GetStats")
	defer span.End()

	var bookings []statusCount
	if err := h.db.SelectContext(ctx, &bookings,
		"SELECT status, COUNT(*) AS count FROM bookings GROUP BY status ORDER BY status"); err != nil {
		h.fail(c, "Failed to aggregate bookings", err)
		return
	}

	var payments []statusRevenue
	if err := h.db.SelectContext(ctx, &payments,
		"SELECT status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total FROM payments GROUP BY status ORDER BY status"); err != nil {
		h.fail(c, "Failed to aggregate payments", err)
		return
	}

	var users []roleCount
	if err := h.db.SelectContext(ctx, &users,
		"SELECT role, COUNT(*) AS count FROM users GROUP BY role ORDER BY role"); err != nil {
		h.fail(c, "Failed to aggregate users", err)
		return
	}

	var listings []topListing
	if err := h.db.SelectContext(ctx, &listings,
		`SELECT l.id, l.title, COUNT(b.id) AS bookings, COALESCE(SUM(b.total_price), 0) AS revenue
		 FROM tour_listings l
		 JOIN bookings b ON b.tour_listing_id = l.id AND b.status IN ('CONFIRMED', 'COMPLETED')
		 GROUP BY l.id, l.title
		 ORDER BY bookings DESC, revenue DESC
		 LIMIT 5`); err != nil {
		h.fail(c, "Failed to aggregate listings", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookingsByStatus": bookings,
		"paymentsByStatus": payments,
		"usersByRole":      users,
		"topListings":      listings,
	})
}

func (h *StatsHandler) fail(c *gin.Context, msg string, err error) {
	traceID := middleware.GetTraceID(c.Request.Context())
	h.logger.Error(msg, zap.String("trace_id", traceID), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
