package interfaces

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	ledger "cashdesk/internal/ledger/domain"
)

// ImportReport summarizes one snapshot import.
type ImportReport struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ErrNoRows is returned when the workbook has no data rows.
var ErrNoRows = errors.New("ledger import: no data rows")

var dateLayouts = []string{"2006-01-02", "02.01.2006", "01-02-06", "2006-01-02 15:04:05"}

// ImportTransactionsXLSX reads an imported-ledger workbook from r and
// replaces the snapshot in the writer. Expected columns, first sheet,
// header row first: date, amount, currency, commission, category.
// Malformed rows are skipped and counted, not failed.
func ImportTransactionsXLSX(ctx context.Context, r io.Reader, writer ledger.TransactionWriter) (ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportReport{}, fmt.Errorf("ledger import: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ImportReport{}, ErrNoRows
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ImportReport{}, fmt.Errorf("ledger import: read rows: %w", err)
	}
	if len(rows) <= 1 {
		return ImportReport{}, ErrNoRows
	}

	var report ImportReport
	var txns []ledger.Transaction
	for i, row := range rows[1:] {
		txn, ok := parseRow(row, i)
		if !ok {
			report.Skipped++
			continue
		}
		txns = append(txns, txn)
	}
	if len(txns) == 0 {
		return report, ErrNoRows
	}

	if err := writer.ReplaceTransactions(ctx, txns); err != nil {
		return report, err
	}
	report.Imported = len(txns)
	return report, nil
}

func parseRow(row []string, index int) (ledger.Transaction, bool) {
	if len(row) < 3 {
		return ledger.Transaction{}, false
	}
	date, ok := parseDate(strings.TrimSpace(row[0]))
	if !ok {
		return ledger.Transaction{}, false
	}
	amount, err := parseAmount(row[1])
	if err != nil {
		return ledger.Transaction{}, false
	}
	currency := strings.ToUpper(strings.TrimSpace(row[2]))
	if currency == "" {
		return ledger.Transaction{}, false
	}

	var commission float64
	if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
		if commission, err = parseAmount(row[3]); err != nil {
			return ledger.Transaction{}, false
		}
	}
	category := "DEP"
	if len(row) > 4 && strings.TrimSpace(row[4]) != "" {
		category = strings.ToUpper(strings.TrimSpace(row[4]))
	}

	return ledger.Transaction{
		ID:         fmt.Sprintf("import-%s-%d", date.Format("20060102"), index),
		Date:       date,
		Amount:     amount,
		Currency:   currency,
		Commission: commission,
		Category:   category,
	}, true
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseAmount(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	return strconv.ParseFloat(cleaned, 64)
}
