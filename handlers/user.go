package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"booking-svc/middleware"
	"booking-svc/models"
	"booking-svc/query"

	"github.com/doug-martin/goqu/v9"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type UserHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewUserHandler(db *sqlx.DB, logger *zap.Logger) *UserHandler {
	return &UserHandler{db: db, logger: logger}
}

var userQueryFields = map[string]string{
	"id":              "id",
	"name":            "name",
	"email":           "email",
	"phone":           "phone",
	"address":         "address",
	"role":            "role",
	"isActive":        "is_active",
	"averageRating":   "average_rating",
	"totalToursGiven": "total_tours_given",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
}

// userColumns is the default projection; the password hash never leaves the
// table through a list.
var userColumns = []string{
	"id", "name", "email", "phone", "address", "role", "isActive",
	"averageRating", "totalToursGiven", "createdAt", "updatedAt",
}

// ListUsers is admin-only.
func (h *UserHandler) ListUsers(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "ListUsers")
	defer span.End()

	opts := query.Options{
		Fields:         userQueryFields,
		Searchable:     []string{"name", "email", "address"},
		DefaultColumns: userColumns,
	}
	spec := query.Compile(query.Params(c.Request.URL.Query()), opts)

	users := []models.User{}
	meta, err := fetchList(ctx, h.db, "users", spec, &users)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": users, "meta": meta})
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "GetProfile")
	defer span.End()

	var user models.User
	err := h.db.GetContext(ctx, &user,
		"SELECT id, name, email, phone, address, role, is_active, average_rating, total_tours_given, created_at, updated_at FROM users WHERE id = $1",
		middleware.ActorID(c),
	)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	ctx, span := otel.Tracer("booking-service").Start(c.Request.Context(), "UpdateProfile")
	defer span.End()

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := goqu.Record{"updated_at": goqu.L("NOW()")}
	if req.Name != nil {
		record["name"] = *req.Name
	}
	if req.Phone != nil {
		record["phone"] = *req.Phone
	}
	if req.Address != nil {
		record["address"] = *req.Address
	}

	updateSQL, args, err := goqu.Dialect("postgres").Update("users").Prepared(true).
		Set(record).
		Where(goqu.C("id").Eq(middleware.ActorID(c))).
		ToSQL()
	if err != nil {
		h.logger.Error("Failed to build profile update", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if _, err := h.db.ExecContext(ctx, updateSQL, args...); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.GetProfile(c)
}
