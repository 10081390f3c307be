// Package http exposes the ledger import endpoint.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	ledger "cashdesk/internal/ledger/domain"
	"cashdesk/internal/ledger/interfaces"
)

const maxWorkbookBytes = 16 << 20

// Handler accepts ledger workbook uploads.
type Handler struct {
	writer ledger.TransactionWriter
}

// NewHandler constructs a handler.
func NewHandler(writer ledger.TransactionWriter) (*Handler, error) {
	if writer == nil {
		return nil, errors.New("ledger handler: nil transaction writer")
	}
	return &Handler{writer: writer}, nil
}

// ServeHTTP routes ledger endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/ledger/import" && r.Method == http.MethodPost {
		h.handleImport(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = http.MaxBytesReader(w, r.Body, maxWorkbookBytes)

	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		src = file
	}

	report, err := interfaces.ImportTransactionsXLSX(r.Context(), src, h.writer)
	if err != nil {
		if errors.Is(err, interfaces.ErrNoRows) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "import failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
