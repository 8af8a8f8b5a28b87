package database

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipside-labs/flipside/models"
)

// DB is the trade journal. A nil DB is valid and records nothing, so the
// bot runs fine without a DATABASE_URL.
type DB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// New opens the PostgreSQL trade journal. Empty URL returns nil.
func New(databaseURL string) (*DB, error) {
	if databaseURL == "" {
		return nil, nil
	}

	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	if err := createTables(conn); err != nil {
		return nil, err
	}

	return &DB{
		conn:   conn,
		logger: log.With().Str("component", "database").Logger(),
	}, nil
}

func createTables(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL,
			asset TEXT NOT NULL,
			side TEXT NOT NULL,
			size DOUBLE PRECISION NOT NULL,
			shares DOUBLE PRECISION NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			entry_time TIMESTAMP NOT NULL,
			expiry TIMESTAMP NOT NULL,
			token_id TEXT,
			condition_id TEXT,
			spot_at_entry DOUBLE PRECISION,
			exit_price DOUBLE PRECISION,
			exit_time TIMESTAMP,
			exit_reason TEXT,
			pnl DOUBLE PRECISION
		)
	`)
	return err
}

// RecordEntry journals a freshly opened position.
func (db *DB) RecordEntry(pos *models.Position) {
	if db == nil {
		return
	}
	_, err := db.conn.Exec(`
		INSERT INTO trades (order_id, asset, side, size, shares, entry_price, entry_time, expiry, token_id, condition_id, spot_at_entry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pos.OrderID, pos.Asset, string(pos.Side), pos.Size, pos.Shares,
		pos.EntryPrice, pos.EntryTime, pos.Expiry, pos.TokenID, pos.ConditionID, pos.SpotAtEntry,
	)
	if err != nil {
		db.logger.Warn().Err(err).Str("order_id", pos.OrderID).Msg("failed to journal entry")
	}
}

// RecordExit updates the journal row with the closing leg.
func (db *DB) RecordExit(orderID string, exitPrice, pnl float64, reason string) {
	if db == nil {
		return
	}
	_, err := db.conn.Exec(`
		UPDATE trades SET exit_price = $1, exit_time = $2, exit_reason = $3, pnl = $4
		WHERE order_id = $5 AND exit_time IS NULL`,
		exitPrice, time.Now(), reason, pnl, orderID,
	)
	if err != nil {
		db.logger.Warn().Err(err).Str("order_id", orderID).Msg("failed to journal exit")
	}
}

// Close releases the connection pool.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	return db.conn.Close()
}
