package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hilstonwill/contact-api/internal/api"
	"github.com/hilstonwill/contact-api/internal/config"
	"github.com/hilstonwill/contact-api/internal/contact"
	"github.com/hilstonwill/contact-api/internal/logging"
	"github.com/hilstonwill/contact-api/internal/observability/otelx"
	"github.com/hilstonwill/contact-api/internal/origin"
	"github.com/hilstonwill/contact-api/internal/outputs/email"
	"github.com/hilstonwill/contact-api/internal/outputs/email/smtp"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", getenv("CONTACT_CONFIG", "contact.yaml"), "path to optional YAML config file")
	envFile := flag.String("env-file", "", "extra .env file to load before reading the environment")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("failed to load env file: %v", err)
		}
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otelx.Init(ctx, logger, cfg.OTel)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	sender, err := smtp.NewSender(smtp.Config{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		Username:           cfg.SMTP.User,
		Password:           cfg.SMTP.Password,
		TLSMode:            cfg.SMTP.TLSMode,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		Timeout:            cfg.SMTP.Timeout,
	})
	if err != nil {
		logger.Error("failed to configure smtp", "error", err)
		os.Exit(1)
	}

	handler, err := contact.NewHandler(email.Traced(sender), contact.Config{
		From: cfg.Sender(),
		To:   cfg.Mail.To,
	})
	if err != nil {
		logger.Error("failed to build contact handler", "error", err)
		os.Exit(1)
	}

	origins := origin.NewPolicy(cfg.HTTP.AllowedOrigins)
	if origins.AllowsAny() {
		logger.Warn("cross-origin requests allowed from any origin")
	}

	server := api.NewServer(cfg.HTTP, handler, origins, logger)

	addr := net.JoinHostPort("", cfg.HTTP.Port)
	go func() {
		logger.Info("contact api listening",
			"addr", addr,
			"contact_paths", cfg.HTTP.ContactPaths,
			"smtp_host", cfg.SMTP.Host,
			"smtp_port", cfg.SMTP.Port,
			"smtp_tls", string(sender.Mode()),
		)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down http server", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}
	logger.Info("contact api stopped")
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
