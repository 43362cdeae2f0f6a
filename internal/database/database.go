// Package database provides the PostgreSQL-backed index of uploaded report
// files. The index is a convenience for lookups and ops tooling; the on-disk
// sidecar files remain authoritative, and the recommendation pipeline never
// touches the database.
package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
)

// Service represents a service that interacts with the database.
type Service interface {
	// Health returns a map of health status information.
	Health() map[string]string

	// Close terminates the database connection pool.
	Close()

	Queries() *Queries
}

type service struct {
	pool *pgxpool.Pool
	q    *Queries
}

var (
	database   = os.Getenv("NUTRIBOT_DB_DATABASE")
	password   = os.Getenv("NUTRIBOT_DB_PASSWORD")
	username   = os.Getenv("NUTRIBOT_DB_USERNAME")
	port       = os.Getenv("NUTRIBOT_DB_PORT")
	host       = os.Getenv("NUTRIBOT_DB_HOST")
	dbInstance *service
)

// NewService builds (or reuses) the connection pool and prepares the upload
// index schema. The caller decides whether a failure is fatal; running
// without the index is supported.
func NewService() (Service, error) {
	if dbInstance != nil {
		return dbInstance, nil
	}
	if host == "" || database == "" {
		return nil, fmt.Errorf("database is not configured (NUTRIBOT_DB_HOST/NUTRIBOT_DB_DATABASE unset)")
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", username, password, host, port, database)

	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	q := New(pool)
	if err := q.EnsureSchema(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to prepare upload index schema: %w", err)
	}

	dbInstance = &service{pool: pool, q: q}
	return dbInstance, nil
}

// Queries implements Service.
func (s *service) Queries() *Queries {
	return s.q
}

// Health checks the health of the database connection pool.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	poolStats := s.pool.Stat()
	stats["status"] = "up"
	stats["total_conns"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["max_conns"] = strconv.Itoa(int(poolStats.MaxConns()))
	stats["acquire_count"] = strconv.FormatInt(poolStats.AcquireCount(), 10)
	stats["acquire_duration_ms"] = strconv.FormatInt(poolStats.AcquireDuration().Milliseconds(), 10)

	if poolStats.AcquiredConns() > (poolStats.MaxConns() * 8 / 10) { // 80% capacity
		stats["message"] = "The database connection pool is experiencing heavy load."
	}

	return stats
}

// Close closes the database connection pool.
func (s *service) Close() {
	s.pool.Close()
}
