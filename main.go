package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"cashdesk/internal/coreapi"
	"cashdesk/internal/eventing"
	"cashdesk/internal/history/application"
	historyhttp "cashdesk/internal/history/interfaces/http"
	ledger "cashdesk/internal/ledger/domain"
	ledgermem "cashdesk/internal/ledger/infrastructure/memory"
	ledgerpg "cashdesk/internal/ledger/infrastructure/postgres"
	ledgerhttp "cashdesk/internal/ledger/interfaces/http"
	"cashdesk/internal/observability/metrics"
	"cashdesk/internal/rates"
	reconcileapp "cashdesk/internal/reconcile/application"
	coregw "cashdesk/internal/reconcile/infrastructure/core"
	"cashdesk/internal/reconcile/infrastructure/ledgerfeed"
	reconcilemem "cashdesk/internal/reconcile/infrastructure/memory"
	"cashdesk/internal/reconcile/infrastructure/sqlite"
	reconcilehttp "cashdesk/internal/reconcile/interfaces/http"
	summaryapp "cashdesk/internal/summary/application"
	summarymem "cashdesk/internal/summary/infrastructure/memory"
	summarypg "cashdesk/internal/summary/infrastructure/postgres"
	summaryhttp "cashdesk/internal/summary/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.New(os.Stdout, "cashdesk ", log.LstdFlags|log.LUTC)

	cfg, err := reconcileapp.LoadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	httpAddr := getenvDefault("CASHDESK_HTTP_ADDR", ":8080")
	databaseURL := getenvDefault("CASHDESK_DATABASE_URL", "")

	cache, err := sqlite.Open(cfg.CachePath)
	if err != nil {
		logger.Fatalf("cache error: %v", err)
	}
	defer cache.Close()

	metrics.Init(cache.DB(), logger)

	client, err := coreapi.NewClient(cfg.CoreBaseURL, cfg.CoreToken)
	if err != nil {
		logger.Fatalf("core client error: %v", err)
	}
	gateway, err := coregw.NewGateway(client)
	if err != nil {
		logger.Fatalf("core gateway error: %v", err)
	}
	bus := eventing.NewInMemoryBus()

	rateProvider, err := rates.NewProvider(client, logger,
		rates.WithFallback(cfg.FallbackRate), rates.WithPair(cfg.RatePair),
		rates.WithPublisher(bus))
	if err != nil {
		logger.Fatalf("rate provider error: %v", err)
	}

	// The ledgers live in Postgres when a DSN is configured; a single-user
	// desk without one runs on the in-memory read models (the importer still
	// feeds them).
	var (
		expenses    ledger.ExpenseReader
		txns        ledger.TransactionReader
		txnWriter   ledger.TransactionWriter
		summaryRepo summaryapp.Repository
	)
	if databaseURL != "" {
		db, err := sql.Open("pgx", databaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		defer db.Close()
		ledgerRepo := ledgerpg.NewRepository(db)
		expenses, txns, txnWriter = ledgerRepo, ledgerRepo, ledgerRepo
		summaryRepo = summarypg.NewSummaryRepository(db)
		logger.Printf("ledger storage: postgres")
	} else {
		ledgerRepo := ledgermem.NewRepository()
		expenses, txns, txnWriter = ledgerRepo, ledgerRepo, ledgerRepo
		summaryRepo = summarymem.NewSummaryRepository()
		logger.Printf("ledger storage: memory")
	}

	bus.Subscribe(eventing.EventTypeOf[eventing.DraftSaved](), func(_ context.Context, event any) error {
		evt, ok := event.(eventing.DraftSaved)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("draft saved day=%s autosave=%t", evt.Day, evt.Autosave)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[eventing.DraftCleared](), func(_ context.Context, event any) error {
		evt, ok := event.(eventing.DraftCleared)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("draft cleared day=%s", evt.Day)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[eventing.RecordDeleted](), func(_ context.Context, event any) error {
		evt, ok := event.(eventing.RecordDeleted)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("history record deleted day=%s", evt.Day)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[eventing.RateUpdated](), func(_ context.Context, event any) error {
		evt, ok := event.(eventing.RateUpdated)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("rate updated pair=%s rate=%.4f", evt.Pair, evt.Rate)
		return nil
	})

	feed, err := ledgerfeed.NewAdapter(expenses, txns)
	if err != nil {
		logger.Fatalf("ledger feed error: %v", err)
	}

	mirror := reconcileapp.NewMirror(cache, cfg.MirrorDebounce, logger)
	defer mirror.Close()

	draftService, err := reconcileapp.NewDraftService(
		reconcilemem.NewDraftRepository(), cache, gateway,
		feed, feed, rateProvider, bus, reconcileapp.SystemClock{}, mirror, logger)
	if err != nil {
		logger.Fatalf("draft service error: %v", err)
	}
	autosaver := reconcileapp.NewAutosaver(draftService, cfg.AutosaveEvery)
	go autosaver.Start(context.Background())

	// Restore the draft that was active before the last shutdown.
	if last, err := draftService.LastSelectedDay(context.Background()); err == nil && last != "" {
		if _, err := draftService.SelectDay(context.Background(), last); err != nil {
			logger.Printf("restore last selected day %s: %v", last, err)
		}
	}

	historyService, err := application.NewService(client, bus, nil, logger)
	if err != nil {
		logger.Fatalf("history service error: %v", err)
	}
	summaryService, err := summaryapp.NewService(summaryRepo, txns, logger)
	if err != nil {
		logger.Fatalf("summary service error: %v", err)
	}

	reconcileHandler, err := reconcilehttp.NewHandler(draftService, rateProvider)
	if err != nil {
		logger.Fatalf("reconcile handler error: %v", err)
	}
	historyHandler, err := historyhttp.NewHandler(historyService)
	if err != nil {
		logger.Fatalf("history handler error: %v", err)
	}
	summaryHandler, err := summaryhttp.NewHandler(summaryService)
	if err != nil {
		logger.Fatalf("summary handler error: %v", err)
	}
	importHandler, err := ledgerhttp.NewHandler(txnWriter)
	if err != nil {
		logger.Fatalf("import handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/reconciliation/history", historyHandler)
	mux.Handle("/api/v1/reconciliation/history/", historyHandler)
	mux.Handle("/api/v1/reconciliation/", reconcileHandler)
	mux.Handle("/api/v1/rate", reconcileHandler)
	mux.Handle("/api/v1/convert", reconcileHandler)
	mux.Handle("/api/v1/summary", summaryHandler)
	mux.Handle("/api/v1/summary/", summaryHandler)
	mux.Handle("/api/v1/ledger/import", importHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: httpAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", httpAddr)
	logger.Fatal(server.ListenAndServe())
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
