// Package sqlstore keeps cart slots in a relational table (PostgreSQL or MySQL).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"kahramana.bh/site/internal/cart"
)

// Dialect names a supported SQL flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// maxPayloadBytes matches the MEDIUMTEXT column limit with headroom for PostgreSQL.
const maxPayloadBytes = 4 << 20

func (d Dialect) driver() (string, error) {
	switch d {
	case Postgres:
		return "postgres", nil
	case MySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", d)
	}
}

func (d Dialect) upsert() string {
	if d == MySQL {
		return `INSERT INTO cart_slots (slot_key, payload, updated_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)`
	}
	return `INSERT INTO cart_slots (slot_key, payload, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (slot_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
}

// Open connects to the database named by dsn.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sqlx.DB, error) {
	driver, err := dialect.driver()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlstore: dsn is required")
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect %s: %w", dialect, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

type slotRow struct {
	Payload string `db:"payload"`
}

// Slot implements cart.Slot on the cart_slots table.
type Slot struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

var _ cart.Slot = (*Slot)(nil)

// NewSlot wraps an open connection.
func NewSlot(db *sqlx.DB, dialect Dialect) (*Slot, error) {
	if db == nil {
		return nil, errors.New("sqlstore: db is required")
	}
	if _, err := dialect.driver(); err != nil {
		return nil, err
	}
	return &Slot{db: db, dialect: dialect, now: time.Now}, nil
}

// Get reads the payload for key.
func (s *Slot) Get(ctx context.Context, key string) ([]byte, error) {
	var row slotRow
	query := s.db.Rebind(`SELECT payload FROM cart_slots WHERE slot_key = ?`)
	if err := s.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cart.ErrSlotEmpty
		}
		return nil, fmt.Errorf("sqlstore: get: %w", err)
	}
	return []byte(row.Payload), nil
}

// Put inserts or replaces the payload for key.
func (s *Slot) Put(ctx context.Context, key string, value []byte) error {
	if len(value) > maxPayloadBytes {
		return cart.ErrQuotaExceeded
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert(), key, string(value), s.now().UTC()); err != nil {
		return fmt.Errorf("sqlstore: put: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Slot) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
