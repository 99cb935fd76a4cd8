package handlers

import (
	"context"
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
	"go.uber.org/zap"
)

type ListingHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewListingHandler(db *sqlx.DB, logger *zap.Logger) *ListingHandler {
	return &ListingHandler{db: db, logger: logger}
}

var listingQueryFields = map[string]string{
	"id":            "id",
	"guideId":       "guide_id",
	"title":         "title",
	"description":   "description",
	"category":      "category",
	"city":          "city",
	"country":       "country",
	"price":         "price",
	"duration":      "duration",
	"maxGroupSize":  "max_group_size",
	"isActive":      "is_active",
	"totalBookings": "total_bookings",
	"averageRating": "average_rating",
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
}

func (h *ListingHandler) CreateListing(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "CreateListing")
	defer span.End()

	var req models.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	maxGroupSize := req.MaxGroupSize
	if maxGroupSize < 1 {
		maxGroupSize = 1
	}

	var listing models.TourListing
	err := h.db.GetContext(ctx, &listing,
		`INSERT INTO tour_listings (guide_id, title, description, category, city, country, price, duration, max_group_size, meeting_point)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, guide_id, title, description, category, city, country, price, duration, max_group_size, meeting_point, is_active, total_bookings, average_rating, created_at, updated_at`,
		middleware.ActorID(c), req.Title, req.Description, req.Category, req.City, req.Country, req.Price, req.Duration, maxGroupSize, req.MeetingPoint,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create listing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// ListListings is public and only ever exposes active listings; the
// is_active predicate is injected ahead of anything user-supplied.
func (h *ListingHandler) ListListings(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "ListListings")
	defer span.End()

	opts := query.Options{
		Fields:     listingQueryFields,
		Searchable: []string{"title", "description", "city", "category"},
		Reserved:   []string{"isActive"},
		Base:       []goqu.Expression{goqu.C("is_active").Eq(true)},
	}
	spec := query.Compile(query.Params(c.Request.URL.Query()), opts)

	listings := []models.TourListing{}
	meta, err := fetchList(ctx, h.db, "tour_listings", spec, &listings)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list listings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": listings, "meta": meta})
}

func (h *ListingHandler) GetListing(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "GetListing")
	defer span.End()

	listingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	var listing models.TourListing
	err = h.db.GetContext(ctx, &listing,
		"SELECT id, guide_id, title, description, category, city, country, price, duration, max_group_size, meeting_point, is_active, total_bookings, average_rating, created_at, updated_at FROM tour_listings WHERE id = $1",
		listingID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get listing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) UpdateListing(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "UpdateListing")
	defer span.End()

	listingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	var req models.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, ok := h.loadOwnedListing(c, ctx, listingID)
	if !ok {
		return
	}

	record := goqu.Record{"updated_at": goqu.L("NOW()")}
	if req.Title != nil {
		record["title"] = *req.Title
	}
	if req.Description != nil {
		record["description"] = *req.Description
	}
	if req.Category != nil {
		record["category"] = *req.Category
	}
	if req.City != nil {
		record["city"] = *req.City
	}
	if req.Country != nil {
		record["country"] = *req.Country
	}
	if req.Price != nil {
		record["price"] = *req.Price
	}
	if req.Duration != nil {
		record["duration"] = *req.Duration
	}
	if req.MaxGroupSize != nil {
		record["max_group_size"] = *req.MaxGroupSize
	}
	if req.MeetingPoint != nil {
		record["meeting_point"] = *req.MeetingPoint
	}
	if req.IsActive != nil {
		record["is_active"] = *req.IsActive
	}

	updateSQL, args, err := goqu.Dialect("postgres").Update("tour_listings").Prepared(true).
		Set(record).
		Where(goqu.C("id").Eq(listing.ID)).
		ToSQL()
	if err != nil {
		h.logger.Error("Failed to build listing update", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if _, err := h.db.ExecContext(ctx, updateSQL, args...); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update listing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	err = h.db.GetContext(ctx, &listing,
		"SELECT id, guide_id, title, description, category, city, country, price, duration, max_group_size, meeting_point, is_active, total_bookings, average_rating, created_at, updated_at FROM tour_listings WHERE id = $1",
		listing.ID,
	)
	if err != nil {
		h.logger.Error("Failed to reload listing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, listing)
}

// DeleteListing deactivates instead of removing; bookings keep referencing
// the row.
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "DeleteListing")
	defer span.End()

	listingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	listing, ok := h.loadOwnedListing(c, ctx, listingID)
	if !ok {
		return
	}

	if _, err := h.db.ExecContext(ctx,
		"UPDATE tour_listings SET is_active = FALSE, updated_at = NOW() WHERE id = $1",
		listing.ID,
	); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to deactivate listing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Listing deactivated"})
}

func (h *ListingHandler) loadOwnedListing(c *gin.Context, ctx context.Context, listingID int) (models.TourListing, bool) {
	var listing models.TourListing
	err := h.db.GetContext(ctx, &listing,
		"SELECT id, guide_id, title, description, category, city, country, price, duration, max_group_size, meeting_point, is_active, total_bookings, average_rating, created_at, updated_at FROM tour_listings WHERE id = $1",
		listingID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return listing, false
	}
	if err != nil {
		h.logger.Error("Failed to load listing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return listing, false
	}

	role := middleware.ActorRole(c)
	if role != models.RoleAdmin && listing.GuideID != middleware.ActorID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not the owner"})
		return listing, false
	}
	return listing, true
}
