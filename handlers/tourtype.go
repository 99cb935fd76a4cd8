package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"booking-svc/models"
	"booking-svc/query"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type TourTypeHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewTourTypeHandler(db *sqlx.DB, logger *zap.Logger) *TourTypeHandler {
	return &TourTypeHandler{db: db, logger: logger}
}

var tourTypeQueryFields = map[string]string{
	"id":          "id",
	"name":        "name",
	"description": "description",
	"icon":        "icon",
	"isActive":    "is_active",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

func (h *TourTypeHandler) CreateTourType(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "CreateTourType")
	defer span.End()

	var req models.TourTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var tourType models.TourType
	err := h.db.GetContext(ctx, &tourType,
		`INSERT INTO tour_types (name, description, icon) VALUES ($1, $2, $3)
		 RETURNING id, name, description, icon, is_active, created_at, updated_at`,
		req.Name, req.Description, req.Icon,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create tour type", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, tourType)
}

func (h *TourTypeHandler) ListTourTypes(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "ListTourTypes")
	defer span.End()

	opts := query.Options{
		Fields:     tourTypeQueryFields,
		Searchable: []string{"name", "description", "icon"},
	}
	spec := query.Compile(query.Params(c.Request.URL.Query()), opts)

	tourTypes := []models.TourType{}
	meta, err := fetchList(ctx, h.db, "tour_types", spec, &tourTypes)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list tour types", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tourTypes, "meta": meta})
}

func (h *TourTypeHandler) GetTourType(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "GetTourType")
	defer span.End()

	tourTypeID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tour type ID"})
		return
	}

	var tourType models.TourType
	err = h.db.GetContext(ctx, &tourType,
		"SELECT id, name, description, icon, is_active, created_at, updated_at FROM tour_types WHERE id = $1",
		tourTypeID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tour type not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get tour type", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, tourType)
}

func (h *TourTypeHandler) UpdateTourType(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "UpdateTourType")
	defer span.End()

	tourTypeID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tour type ID"})
		return
	}

	var req models.TourTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var tourType models.TourType
	err = h.db.GetContext(ctx, &tourType,
		`UPDATE tour_types SET name = $1, description = $2, icon = $3, updated_at = NOW() WHERE id = $4
		 RETURNING id, name, description, icon, is_active, created_at, updated_at`,
		req.Name, req.Description, req.Icon, tourTypeID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tour type not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update tour type", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, tourType)
}

// DeleteTourType deactivates the tour type.
func (h *TourTypeHandler) DeleteTourType(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "DeleteTourType")
	defer span.End()

	tourTypeID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tour type ID"})
		return
	}

	result, err := h.db.ExecContext(ctx,
		"UPDATE tour_types SET is_active = FALSE, updated_at = NOW() WHERE id = $1",
		tourTypeID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to deactivate tour type", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tour type not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tour type deactivated"})
}
