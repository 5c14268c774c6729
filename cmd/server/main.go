package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/realpay/supply-engine/internal/ledger"
	"github.com/realpay/supply-engine/internal/metrics"
	"github.com/realpay/supply-engine/internal/route"
	"github.com/realpay/supply-engine/internal/shipment"
	"github.com/realpay/supply-engine/internal/store"
)

func main() {
	// Local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Core state ---
	// Everything is in-memory and lost on restart. That is the deal.
	reg := store.NewRegistry()
	hub := shipment.NewHub()
	events := ledger.NewRecentEvents(ledger.DefaultEventCap)
	minter := ledger.NewSimClient()
	routes := route.NewBuilder(os.Getenv("OSRM_BASE_URL"))

	sim := shipment.NewSimulator(reg, hub, events, minter)
	if raw := os.Getenv("TICK_INTERVAL_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			sim.SetInterval(time.Duration(ms) * time.Millisecond)
		} else {
			slog.Warn("invalid TICK_INTERVAL_MS, using default", "value", raw)
		}
	}

	svc := shipment.NewService(reg, hub, events, sim, routes, minter)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"supply-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", svc.Ping)

		// WebSocket endpoint for the live position stream.
		r.Get("/ws", hub.HandleWS)

		// Shipment management.
		r.Get("/shipments", svc.ListShipments)
		r.Post("/shipments", svc.CreateShipment)
		r.Post("/shipments/seed", svc.SeedShipments)
		r.Post("/shipments/seed-secret", svc.SeedSecret)
		r.Get("/shipments/{shipmentID}", svc.GetShipment)
		r.Post("/shipments/{shipmentID}/status", svc.UpdateStatus)

		// Out-of-band GPS reports.
		r.Post("/gps/update", svc.UpdateGPS)

		// Custody receipts.
		r.Get("/receipts/recent", svc.RecentReceipts)
		r.Post("/checkpoint", svc.Checkpoint)
		r.Post("/register-batch", svc.RegisterBatch)

		// QR scanning simulation.
		r.Get("/secret-route/qr/{segmentIndex}", svc.SecretQR)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("supply-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down supply-engine...")
	sim.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("supply-engine stopped")
}
