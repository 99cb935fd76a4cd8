package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"booking-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func setupAuthTest(t *testing.T) (sqlmock.Sqlmock, *gin.Engine, func()) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	db := sqlx.NewDb(mockDB, "sqlmock")

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewAuthHandler(db, []byte(testSecret), logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/register", handler.Register)
	router.POST("/auth/login", handler.Login)

	return mock, router, func() { db.Close() }
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "phone", "address", "role", "is_active",
		"average_rating", "total_tours_given", "created_at", "updated_at",
	})
}

func TestAuthHandler_Register_Success(t *testing.T) {
	mock, router, cleanup := setupAuthTest(t)
	defer cleanup()

	// Check if user exists (should return no rows)
	mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
		WithArgs("rahim@example.com").
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Rahim", "rahim@example.com", sqlmock.AnyArg(), "", "", string(models.RoleTourist)).
		WillReturnRows(userRows().
			AddRow(1, "Rahim", "rahim@example.com", "", "", models.RoleTourist, true, 0.0, 0, time.Now(), time.Now()))

	body, _ := json.Marshal(models.RegisterRequest{
		Name:     "Rahim",
		Email:    "rahim@example.com",
		Password: "password123",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Register_AdminRoleDemoted(t *testing.T) {
	mock, router, cleanup := setupAuthTest(t)
	defer cleanup()

	// Requesting ADMIN via self-registration falls back to TOURIST
	mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
		WithArgs("mallory@example.com").
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Mallory", "mallory@example.com", sqlmock.AnyArg(), "", "", string(models.RoleTourist)).
		WillReturnRows(userRows().
			AddRow(2, "Mallory", "mallory@example.com", "", "", models.RoleTourist, true, 0.0, 0, time.Now(), time.Now()))

	body, _ := json.Marshal(models.RegisterRequest{
		Name:     "Mallory",
		Email:    "mallory@example.com",
		Password: "password123",
		Role:     "ADMIN",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	mock, router, cleanup := setupAuthTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
		WithArgs("rahim@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	body, _ := json.Marshal(models.RegisterRequest{
		Name:     "Rahim",
		Email:    "rahim@example.com",
		Password: "password123",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Register_MissingName(t *testing.T) {
	mock, router, cleanup := setupAuthTest(t)
	defer cleanup()

	body, _ := json.Marshal(models.RegisterRequest{
		Email:    "rahim@example.com",
		Password: "password123",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls were made: %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	mock, router, cleanup := setupAuthTest(t)
	defer cleanup()

	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mock.ExpectQuery("SELECT id, name, email, password_hash, phone, address, role, is_active, average_rating, total_tours_given, created_at, updated_at FROM users WHERE email = \\$1").
		WithArgs("guide@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "password_hash", "phone", "address", "role", "is_active",
			"average_rating", "total_tours_given", "created_at", "updated_at",
		}).AddRow(20, "Karim", "guide@example.com", string(hashed), "", "", models.RoleGuide, true, 4.5, 12, time.Now(), time.Now()))

	body, _ := json.Marshal(models.LoginRequest{
		Email:    "guide@example.com",
		Password: "password123",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp models.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	// The issued token must carry the identity and role claims the auth
	// middleware reads back.
	token, err := jwt.Parse(resp.Token, func(t *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("Issued token does not verify: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["user_id"].(float64) != 20 {
		t.Errorf("Expected user_id claim 20, got %v", claims["user_id"])
	}
	if claims["role"].(string) != string(models.RoleGuide) {
		t.Errorf("Expected role claim GUIDE, got %v", claims["role"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	mock, router, cleanup := setupAuthTest(t)
	defer cleanup()

	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mock.ExpectQuery("SELECT id, name, email, password_hash, phone, address, role, is_active, average_rating, total_tours_given, created_at, updated_at FROM users WHERE email = \\$1").
		WithArgs("guide@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "password_hash", "phone", "address", "role", "is_active",
			"average_rating", "total_tours_given", "created_at", "updated_at",
		}).AddRow(20, "Karim", "guide@example.com", string(hashed), "", "", models.RoleGuide, true, 4.5, 12, time.Now(), time.Now()))

	body, _ := json.Marshal(models.LoginRequest{
		Email:    "guide@example.com",
		Password: "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Login_UnknownUser(t *testing.T) {
	mock, router, cleanup := setupAuthTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, name, email, password_hash, phone, address, role, is_active, average_rating, total_tours_given, created_at, updated_at FROM users WHERE email = \\$1").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	body, _ := json.Marshal(models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
