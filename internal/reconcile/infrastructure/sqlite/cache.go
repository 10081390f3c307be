// Package sqlite provides the local fallback cache for draft inputs. The
// durable store is the upstream compute endpoint; this cache only has to
// survive restarts so a half-edited day is not lost.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	reconcile "cashdesk/internal/reconcile/domain"

	_ "modernc.org/sqlite" // register sqlite driver
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS draft_cache (
	day TEXT PRIMARY KEY,
	expenses_usd REAL NOT NULL DEFAULT 0,
	rollover_usd REAL NOT NULL DEFAULT 0,
	net_cash_usd REAL NOT NULL DEFAULT 0,
	commissions_usd REAL NOT NULL DEFAULT 0,
	previous_closing_usd REAL NOT NULL DEFAULT 0,
	company_cash_usd REAL NOT NULL DEFAULT 0,
	crypto_balance_usd REAL NOT NULL DEFAULT 0,
	pending_collection_usd REAL NOT NULL DEFAULT 0,
	current_cash_usd REAL NOT NULL DEFAULT 0,
	manual_override INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS engine_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const lastSelectedKey = "last_selected_day"

// Cache is the SQLite-backed per-date draft cache.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("draft cache: creating dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("draft cache: opening db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("draft cache: creating schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// DB exposes the underlying handle for gauge registration.
func (c *Cache) DB() *sql.DB {
	return c.db
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// PutDraft upserts the cached inputs for a day.
func (c *Cache) PutDraft(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) error {
	override := 0
	if manualOverride {
		override = 1
	}
	_, err := c.db.ExecContext(ctx, `INSERT OR REPLACE INTO draft_cache
		(day, expenses_usd, rollover_usd, net_cash_usd, commissions_usd,
		 previous_closing_usd, company_cash_usd, crypto_balance_usd,
		 pending_collection_usd, current_cash_usd, manual_override, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		day, in.ExpensesUSD, in.RolloverUSD, in.NetCashUSD, in.CommissionsUSD,
		in.PreviousClosingUSD, in.CompanyCashUSD, in.CryptoBalanceUSD,
		in.PendingCollectionUSD, in.CurrentCashUSD, override,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetDraft loads the cached inputs for a day. found is false when the day
// has never been cached.
func (c *Cache) GetDraft(ctx context.Context, day string) (in reconcile.Inputs, manualOverride, found bool, err error) {
	var override int
	err = c.db.QueryRowContext(ctx, `SELECT
		expenses_usd, rollover_usd, net_cash_usd, commissions_usd,
		previous_closing_usd, company_cash_usd, crypto_balance_usd,
		pending_collection_usd, current_cash_usd, manual_override
		FROM draft_cache WHERE day = ?`, day).Scan(
		&in.ExpensesUSD, &in.RolloverUSD, &in.NetCashUSD, &in.CommissionsUSD,
		&in.PreviousClosingUSD, &in.CompanyCashUSD, &in.CryptoBalanceUSD,
		&in.PendingCollectionUSD, &in.CurrentCashUSD, &override,
	)
	if err == sql.ErrNoRows {
		return reconcile.Inputs{}, false, false, nil
	}
	if err != nil {
		return reconcile.Inputs{}, false, false, err
	}
	return in, override != 0, true, nil
}

// DeleteDraft removes one day's cache entry.
func (c *Cache) DeleteDraft(ctx context.Context, day string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM draft_cache WHERE day = ?`, day)
	return err
}

// SetLastSelectedDay records the active day so it can be restored after a
// restart.
func (c *Cache) SetLastSelectedDay(ctx context.Context, day string) error {
	_, err := c.db.ExecContext(ctx, `INSERT OR REPLACE INTO engine_state (key, value) VALUES (?, ?)`,
		lastSelectedKey, day)
	return err
}

// LastSelectedDay returns the recorded active day, empty when none.
func (c *Cache) LastSelectedDay(ctx context.Context) (string, error) {
	var day string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM engine_state WHERE key = ?`, lastSelectedKey).Scan(&day)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return day, nil
}
