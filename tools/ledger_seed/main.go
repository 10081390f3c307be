// Seeds the Postgres expense and transaction ledgers with demo data so the
// reconciliation fetch actions and the currency summary rebuild have
// something to chew on locally. Data is deterministic per day.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const dayLayout = "2006-01-02"

var currencies = []string{"TRY", "USD", "USDT", "EUR"}

type config struct {
	dsn            string
	startDate      string
	days           int
	expensesPerDay int
	txnsPerDay     int
	createSchema   bool
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.days <= 0 {
		log.Fatal("days must be > 0")
	}

	start, err := parseStartDate(cfg.startDate)
	if err != nil {
		log.Fatalf("invalid start-date: %v", err)
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if cfg.createSchema {
		if err := createSchema(ctx, db); err != nil {
			log.Fatalf("create schema: %v", err)
		}
		log.Printf("schema ensured")
	}

	log.Printf("seeding ledgers: start=%s days=%d expenses/day=%d txns/day=%d",
		start.Format(dayLayout), cfg.days, cfg.expensesPerDay, cfg.txnsPerDay)
	if err := seedLedgers(ctx, db, start, cfg); err != nil {
		log.Fatalf("seed ledgers: %v", err)
	}
	log.Printf("ledger seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.startDate, "start-date", envOrDefault("START_DATE", ""), "start date (YYYY-MM-DD)")
	flag.IntVar(&cfg.days, "days", envOrInt("DAYS", 30), "number of days to seed")
	flag.IntVar(&cfg.expensesPerDay, "expenses-per-day", envOrInt("EXPENSES_PER_DAY", 6), "expense rows per day")
	flag.IntVar(&cfg.txnsPerDay, "txns-per-day", envOrInt("TXNS_PER_DAY", 20), "transaction rows per day")
	flag.BoolVar(&cfg.createSchema, "create-schema", envOrBool("CREATE_SCHEMA", true), "create tables when missing")
	flag.Parse()
	return cfg
}

func parseStartDate(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Now().UTC().AddDate(0, 0, -30).Truncate(24 * time.Hour), nil
	}
	parsed, err := time.Parse(dayLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			payment_date TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			category TEXT NOT NULL,
			amount_usd DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_transactions (
			id TEXT PRIMARY KEY,
			txn_date TIMESTAMPTZ NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			currency TEXT NOT NULL,
			commission DOUBLE PRECISION NOT NULL,
			category TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS currency_summaries (
			month TEXT NOT NULL,
			currency TEXT NOT NULL,
			carryover DOUBLE PRECISION NOT NULL,
			inflow DOUBLE PRECISION NOT NULL,
			outflow DOUBLE PRECISION NOT NULL,
			rate DOUBLE PRECISION NOT NULL,
			locked BOOLEAN NOT NULL,
			PRIMARY KEY (month, currency)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_payment_date ON expenses (payment_date)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_transactions_txn_date ON ledger_transactions (txn_date)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func seedLedgers(ctx context.Context, db *sql.DB, start time.Time, cfg config) error {
	expenseCategories := []string{"office", "payroll", "hosting", "marketing", "travel"}
	expenseStatuses := []string{"paid", "paid", "paid", "pending"}

	for d := 0; d < cfg.days; d++ {
		day := start.AddDate(0, 0, d)
		rng := rand.New(rand.NewSource(day.Unix()))

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		for i := 0; i < cfg.expensesPerDay; i++ {
			id := fmt.Sprintf("exp-%s-%03d", day.Format(dayLayout), i)
			ts := day.Add(time.Duration(8+rng.Intn(10)) * time.Hour)
			status := expenseStatuses[rng.Intn(len(expenseStatuses))]
			category := expenseCategories[rng.Intn(len(expenseCategories))]
			amount := 20 + rng.Float64()*480
			if _, err := tx.ExecContext(ctx, `
INSERT INTO expenses (id, payment_date, status, category, amount_usd)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET payment_date = $2, status = $3, category = $4, amount_usd = $5`,
				id, ts, status, category, amount); err != nil {
				_ = tx.Rollback()
				return err
			}
		}

		for i := 0; i < cfg.txnsPerDay; i++ {
			id := fmt.Sprintf("txn-%s-%04d", day.Format(dayLayout), i)
			ts := day.Add(time.Duration(rng.Intn(24)) * time.Hour)
			currency := currencies[rng.Intn(len(currencies))]
			category := "DEP"
			amount := 50 + rng.Float64()*2000
			if rng.Intn(3) == 0 {
				category = "WD"
				amount = -amount
			}
			commission := amount * 0.01
			if commission < 0 {
				commission = -commission
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO ledger_transactions (id, txn_date, amount, currency, commission, category)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET txn_date = $2, amount = $3, currency = $4, commission = $5, category = $6`,
				id, ts, amount, currency, commission, category); err != nil {
				_ = tx.Rollback()
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
