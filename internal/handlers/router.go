package handlers

import (
	"net/http"

	"textback/internal/config"
	"textback/internal/db"
	"textback/internal/middleware"
	"textback/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	txRunner  db.TxRunner
	cfg       config.Config
	users     UserStore
	wallets   WalletStore
	txns      WalletTxnStore
	calls     CallLogStore
	customers PaymentCustomerStore
	billing   BillingProcessor
	payments  PaymentProcessor
	hub       *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, wallets WalletStore, txns WalletTxnStore, calls CallLogStore, customers PaymentCustomerStore, billing BillingProcessor, payments PaymentProcessor, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:  txRunner,
		cfg:       cfg,
		users:     users,
		wallets:   wallets,
		txns:      txns,
		calls:     calls,
		customers: customers,
		billing:   billing,
		payments:  payments,
		hub:       hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/wallet", h.GetWallet)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/wallet/transactions", h.ListTransactions)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Put("/wallet/auto-reload", h.SetAutoReload)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Put("/wallet/payment-method", h.SavePaymentMethod)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Put("/settings/features", h.UpdateFeatures)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/settings/vip-callers", h.AddVIPCaller)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/calls", h.ListCalls)

	router.Post("/webhooks/call", h.CallWebhook)
	router.Post("/webhooks/payment", h.PaymentWebhook)

	router.Get("/ws/balances", h.WSBalances)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
