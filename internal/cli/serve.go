package cli

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/orderset/internal/server"
)

var (
	serveListen    string
	serveLogLevel  string
	serveLogFormat string
	serveTLSCert   string
	serveTLSKey    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orderset HTTP server",
	Long: `Start the orderset HTTP server.

Reads are public. Every mutation needs the admin key, taken from admin_key in
the config file or the ORDERSET_ADMIN_KEY environment variable. Without a key
the server is read-only.

Examples:
  orderset serve
  orderset serve --listen 0.0.0.0:8730 --backend bbolt --data-dir /var/lib/orderset
  orderset serve --log-format text --log-level debug`,
	Run: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveListen, "listen", "", "Listen address (host:port), overrides the config")
	f.StringVar(&serveLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	f.StringVar(&serveLogFormat, "log-format", "", "Log format (json|text)")
	f.StringVar(&serveTLSCert, "tls-cert", os.Getenv("ORDERSET_TLS_CERT"), "TLS certificate file")
	f.StringVar(&serveTLSKey, "tls-key", os.Getenv("ORDERSET_TLS_KEY"), "TLS key file")
}

func runServe(_ *cobra.Command, _ []string) {
	cfg := loadConfig()
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	if serveLogLevel != "" {
		cfg.LogLevel = serveLogLevel
	}
	if serveLogFormat != "" {
		cfg.LogFormat = serveLogFormat
	}

	out := os.Stdout
	if cfg.LogFormat == "text" {
		out = os.Stderr
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, out)

	c, err := openContext(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to open storage", "error", err, "backend", cfg.Backend, "data_dir", cfg.DataDir)
		os.Exit(1)
	}
	defer c.Close()

	srvCfg := server.DefaultConfig()
	srvCfg.AdminKey = cfg.AdminKey
	srvCfg.RequestsPerMinute = cfg.RequestsPerMinute
	srvCfg.MaxRequestBody = cfg.MaxRequestBody
	if len(cfg.WebhookURLs) > 0 {
		srvCfg.Webhooks = server.NewWebhookNotifier(&server.WebhookConfig{
			URLs:   cfg.WebhookURLs,
			Secret: cfg.WebhookSecret,
		}, logger)
		logger.Info("webhooks configured", "count", len(cfg.WebhookURLs))
	}
	if cfg.AdminKey == "" {
		logger.Warn("no admin key configured, mutations are disabled")
	}

	h, handlerCleanup := server.Handler(c.Catalog, srvCfg, logger)
	defer handlerCleanup()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.Background() },
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting orderset server",
			"listen", cfg.Listen, "backend", cfg.Backend, "data_dir", cfg.DataDir,
			"collections", c.Catalog.Names())
		var err error
		if serveTLSCert != "" && serveTLSKey != "" {
			err = srv.ListenAndServeTLS(serveTLSCert, serveTLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	srvCfg.Webhooks.Wait()
	logger.Info("server stopped")
}
