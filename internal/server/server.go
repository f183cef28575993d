package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/family"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/handler"
	"github.com/dukerupert/larder/internal/inventory"
	"github.com/dukerupert/larder/internal/middleware"
	"github.com/dukerupert/larder/internal/port"
	"github.com/dukerupert/larder/internal/shopping"
	ws "github.com/dukerupert/larder/internal/websocket"
)

const (
	joinLimit  = 10
	joinWindow = time.Minute
)

// Config holds what New needs beyond the store.
type Config struct {
	Tokens       *auth.Tokens
	Publisher    feed.Publisher
	UrgentWindow time.Duration
}

type Server struct {
	store       port.Store
	tokens      *auth.Tokens
	hub         *ws.Hub
	snapshotter *ws.Snapshotter
	families    *family.Service
	familyH     *handler.FamilyHandler
	inventoryH  *handler.InventoryHandler
	shoppingH   *handler.ShoppingHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(store port.Store, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	families := family.NewService(store, cfg.Publisher, logger.With("component", "family"))
	invOpts := []inventory.Option{}
	if cfg.UrgentWindow > 0 {
		invOpts = append(invOpts, inventory.WithUrgentWindow(cfg.UrgentWindow))
	}
	inv := inventory.NewService(store, cfg.Publisher, logger.With("component", "inventory"), invOpts...)
	shop := shopping.NewService(store, inv, cfg.Publisher, logger.With("component", "shopping"))

	return &Server{
		store:       store,
		tokens:      cfg.Tokens,
		hub:         hub,
		snapshotter: ws.NewSnapshotter(hub, inv, shop, families, logger.With("component", "snapshot")),
		families:    families,
		familyH:     handler.NewFamilyHandler(families, logger.With("component", "family_handler")),
		inventoryH:  handler.NewInventoryHandler(inv, logger.With("component", "inventory_handler")),
		shoppingH:   handler.NewShoppingHandler(shop, inv, logger.With("component", "shopping_handler")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RunSnapshots pushes snapshots for changes until ctx is done.
func (s *Server) RunSnapshots(ctx context.Context, changes <-chan feed.Change) {
	s.snapshotter.Run(ctx, changes)
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens, s.families)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByUser, joinLimit, joinWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Profile and family routes
	mux.HandleFunc("GET /api/me", s.familyH.Me)
	mux.HandleFunc("PUT /api/me", s.familyH.UpdateMe)
	mux.HandleFunc("POST /api/families", s.familyH.Create)
	mux.HandleFunc("POST /api/families/join", s.rateLimitedHandler(s.familyH.Join))
	mux.HandleFunc("GET /api/family", s.familyH.Current)
	mux.HandleFunc("PUT /api/family", s.familyH.UpdateSettings)

	// Inventory routes
	mux.HandleFunc("GET /api/inventory", s.inventoryH.Snapshot)
	mux.HandleFunc("POST /api/inventory/batches", s.inventoryH.AddBatch)
	mux.HandleFunc("PUT /api/inventory/batches/{id}", s.inventoryH.EditBatch)
	mux.HandleFunc("DELETE /api/inventory/batches/{id}", s.inventoryH.DeleteBatch)
	mux.HandleFunc("POST /api/inventory/batches/{id}/adjust", s.inventoryH.Adjust)
	mux.HandleFunc("POST /api/inventory/batches/{id}/transfer", s.inventoryH.Transfer)
	mux.HandleFunc("POST /api/inventory/batches/{id}/setup", s.inventoryH.CompleteSetup)
	mux.HandleFunc("POST /api/inventory/consume", s.inventoryH.Consume)
	mux.HandleFunc("GET /api/inventory/group", s.inventoryH.Group)
	mux.HandleFunc("DELETE /api/inventory/group", s.inventoryH.DeleteGroup)
	mux.HandleFunc("PUT /api/inventory/group/threshold", s.inventoryH.SetThreshold)
	mux.HandleFunc("GET /api/inventory/owners", s.inventoryH.Owners)

	// Alert routes
	mux.HandleFunc("GET /api/alerts", s.inventoryH.Alerts)
	mux.HandleFunc("POST /api/alerts/{id}/accept", s.shoppingH.AcceptAlert)
	mux.HandleFunc("POST /api/alerts/{id}/dismiss", s.shoppingH.DismissAlert)

	// Shopping list routes
	mux.HandleFunc("GET /api/shopping", s.shoppingH.List)
	mux.HandleFunc("POST /api/shopping", s.shoppingH.QuickAdd)
	mux.HandleFunc("PUT /api/shopping/{id}", s.shoppingH.Update)
	mux.HandleFunc("DELETE /api/shopping/{id}", s.shoppingH.Delete)
	mux.HandleFunc("POST /api/shopping/checkout", s.shoppingH.Checkout)
	mux.HandleFunc("POST /api/shopping/scan", s.shoppingH.Scan)

	// Barcode library routes
	mux.HandleFunc("POST /api/barcodes", s.shoppingH.RegisterBarcode)
	mux.HandleFunc("GET /api/barcodes/{code}", s.shoppingH.LookupBarcode)
	mux.HandleFunc("GET /api/barcodes/{code}/stock", s.shoppingH.BarcodeStock)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.snapshotter, s.logger.With("component", "websocket")))
}
