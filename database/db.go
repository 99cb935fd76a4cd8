package database

import (
	"fmt"

	"booking-svc/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(cfg *config.Config, logger *zap.Logger) (*sqlx.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := sqlx.Connect("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

// createSchema bootstraps the tables if they don't exist yet.
func createSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		phone VARCHAR(50) NOT NULL DEFAULT '',
		address VARCHAR(255) NOT NULL DEFAULT '',
		role VARCHAR(20) NOT NULL DEFAULT 'TOURIST',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		average_rating DECIMAL(3, 2) NOT NULL DEFAULT 0,
		total_tours_given INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tour_types (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon VARCHAR(255) NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tour_listings (
		id SERIAL PRIMARY KEY,
		guide_id INTEGER NOT NULL REFERENCES users(id),
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category VARCHAR(50) NOT NULL,
		city VARCHAR(100) NOT NULL,
		country VARCHAR(100) NOT NULL DEFAULT '',
		price DECIMAL(10, 2) NOT NULL,
		duration INTEGER NOT NULL DEFAULT 1,
		max_group_size INTEGER NOT NULL DEFAULT 1,
		meeting_point VARCHAR(255) NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		total_bookings INTEGER NOT NULL DEFAULT 0,
		average_rating DECIMAL(3, 2) NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tour_listings_guide ON tour_listings(guide_id);
	CREATE INDEX IF NOT EXISTS idx_tour_listings_city_category ON tour_listings(city, category);

	CREATE TABLE IF NOT EXISTS bookings (
		id SERIAL PRIMARY KEY,
		tourist_id INTEGER NOT NULL REFERENCES users(id),
		guide_id INTEGER NOT NULL REFERENCES users(id),
		tour_listing_id INTEGER NOT NULL REFERENCES tour_listings(id),
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		requested_date DATE NOT NULL,
		group_size INTEGER NOT NULL DEFAULT 1,
		total_price DECIMAL(10, 2) NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		payment_id INTEGER,
		completed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_bookings_tourist ON bookings(tourist_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_guide ON bookings(guide_id);

	CREATE TABLE IF NOT EXISTS payments (
		id SERIAL PRIMARY KEY,
		booking_id INTEGER NOT NULL REFERENCES bookings(id),
		status VARCHAR(20) NOT NULL DEFAULT 'UNPAID',
		transaction_id VARCHAR(255) UNIQUE NOT NULL,
		amount DECIMAL(10, 2) NOT NULL,
		invoice_url VARCHAR(512),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id SERIAL PRIMARY KEY,
		booking_id INTEGER NOT NULL REFERENCES bookings(id),
		tourist_id INTEGER NOT NULL REFERENCES users(id),
		guide_id INTEGER NOT NULL REFERENCES users(id),
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_guide ON reviews(guide_id);
	`

	_, err := db.Exec(schema)
	return err
}
