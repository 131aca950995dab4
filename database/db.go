package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(logger *zap.Logger) (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "localysdb")

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	coin_balance INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS businesses (
	id SERIAL PRIMARY KEY,
	owner_id INTEGER NOT NULL REFERENCES users(id),
	name VARCHAR(255) NOT NULL,
	category VARCHAR(100) NOT NULL DEFAULT '',
	avg_rating DECIMAL(3, 2) NOT NULL DEFAULT 0,
	review_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS business_locations (
	id SERIAL PRIMARY KEY,
	business_id INTEGER NOT NULL REFERENCES businesses(id),
	label VARCHAR(255) NOT NULL DEFAULT '',
	lat DOUBLE PRECISION NOT NULL,
	lng DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id SERIAL PRIMARY KEY,
	business_id INTEGER NOT NULL REFERENCES businesses(id),
	name VARCHAR(255) NOT NULL,
	price DECIMAL(10, 2) NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS videos (
	id SERIAL PRIMARY KEY,
	business_id INTEGER NOT NULL REFERENCES businesses(id),
	caption TEXT NOT NULL DEFAULT '',
	video_url TEXT NOT NULL,
	boost INTEGER NOT NULL DEFAULT 0,
	views INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS video_likes (
	video_id INTEGER NOT NULL REFERENCES videos(id),
	user_id INTEGER NOT NULL REFERENCES users(id),
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (video_id, user_id)
);

CREATE TABLE IF NOT EXISTS video_bookmarks (
	video_id INTEGER NOT NULL REFERENCES videos(id),
	user_id INTEGER NOT NULL REFERENCES users(id),
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (video_id, user_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id SERIAL PRIMARY KEY,
	video_id INTEGER NOT NULL REFERENCES videos(id),
	user_id INTEGER NOT NULL REFERENCES users(id),
	body TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id SERIAL PRIMARY KEY,
	sender_id INTEGER NOT NULL REFERENCES users(id),
	recipient_id INTEGER NOT NULL REFERENCES users(id),
	body TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	read_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reviews (
	id SERIAL PRIMARY KEY,
	business_id INTEGER NOT NULL REFERENCES businesses(id),
	user_id INTEGER NOT NULL REFERENCES users(id),
	rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	body TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS coupons (
	id SERIAL PRIMARY KEY,
	code VARCHAR(64) NOT NULL UNIQUE,
	discount_percent INTEGER NOT NULL CHECK (discount_percent BETWEEN 1 AND 100),
	expires_at TIMESTAMP,
	max_uses INTEGER,
	used_count INTEGER NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS cart_items (
	id SERIAL PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	item_id INTEGER NOT NULL REFERENCES items(id),
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	UNIQUE (user_id, item_id)
);

CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	kind VARCHAR(10) NOT NULL,
	user_id INTEGER NOT NULL REFERENCES users(id),
	item_id INTEGER REFERENCES items(id),
	business_id INTEGER REFERENCES businesses(id),
	quantity INTEGER NOT NULL DEFAULT 1,
	amount DECIMAL(10, 2) NOT NULL,
	original_amount DECIMAL(10, 2),
	coupon_code VARCHAR(64),
	discount_percent INTEGER,
	coin_amount INTEGER,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	stripe_session_id VARCHAR(255) NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (stripe_session_id, item_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS orders_coin_session
	ON orders (stripe_session_id) WHERE kind = 'coin';

CREATE TABLE IF NOT EXISTS notifications (
	id SERIAL PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	kind VARCHAR(50) NOT NULL,
	body TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
