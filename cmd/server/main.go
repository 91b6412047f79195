package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"textback/internal/config"
	"textback/internal/db"
	"textback/internal/enrich"
	"textback/internal/handlers"
	"textback/internal/notify"
	"textback/internal/payments"
	"textback/internal/pricing"
	"textback/internal/services"
	"textback/internal/store"
	"textback/internal/websocket"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.AppEnv == "development" {
		logger.SetFormatter(&logrus.TextFormatter{})
		logger.SetLevel(logrus.DebugLevel)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect database")
	}
	defer database.Close()

	users := store.NewUserStore(database)
	wallets := store.NewWalletStore(database)
	walletTxns := store.NewWalletTxnStore(database)
	callLogs := store.NewCallLogStore(database)
	alerts := store.NewAlertStore(database)
	paymentStore := store.NewPaymentStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	messenger := notify.NewSMSGateway(cfg.SMSGatewayURL, cfg.SMSAccountID, cfg.SMSAuthToken, logger)
	notifier := notify.NewNotifier(messenger, cfg.ServiceNumber, cfg.OpsWebhookURL, logger)
	var transcriber enrich.Transcriber
	if cfg.TranscribeURL != "" {
		transcriber = enrich.NewHTTPTranscriber(cfg.TranscribeURL, logger)
	}
	var responder enrich.Responder
	if cfg.ComposeURL != "" {
		responder = enrich.NewHTTPResponder(cfg.ComposeURL, logger)
	}
	charger := payments.NewStripeCharger(cfg.StripeKey, logger)

	ledger := services.NewLedgerService(txRunner, wallets, walletTxns, hub, logger)
	reloader := services.NewReloadService(wallets, walletTxns, paymentStore, ledger, charger, notifier, users, cfg.ReloadWindow, logger)
	paymentSvc := services.NewPaymentService(txRunner, paymentStore, ledger, wallets, users, notifier, cfg.BonusSchedule, logger)
	billing := services.NewBillingService(
		callLogs, users, wallets, alerts, ledger,
		pricing.NewCalculator(cfg.Pricing),
		messenger, transcriber, responder, notifier, reloader,
		services.BillingPolicy{
			MinBalanceCents:  cfg.MinBalanceCents,
			AlertLevelsCents: cfg.AlertLevelsCents,
			AlertCooldown:    cfg.AlertCooldown,
			ServiceNumber:    cfg.ServiceNumber,
		},
		logger,
	)

	handler := handlers.New(txRunner, cfg, users, wallets, walletTxns, callLogs, paymentStore, billing, paymentSvc, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("textback API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Shutdown error")
	}
}
