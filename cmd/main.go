/*
Package main is the entry point for the chat server.

It loads configuration, initializes the global logging system, prepares TLS
material, starts the QUIC chat listener next to the optional admin HTTP server
and the observer feed, and shuts everything down gracefully on SIGINT or
SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"quichat/internal/app/chat"
	"quichat/internal/app/feed"
	"quichat/internal/app/session"
	"quichat/internal/configs"
	"quichat/internal/handler"
	"quichat/internal/pkg/certs"
	"quichat/internal/pkg/logx"
	"quichat/internal/transport"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Int("admin_port", cfg.AdminPort).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("max_name_bytes", cfg.MaxNameBytes).
		Int("max_message_bytes", cfg.MaxMessageBytes).
		Msg("Configuration loaded successfully")

	if err := run(cfg); err != nil {
		logx.Fatal(err, "Server stopped with error")
	}
	logx.Info("Server gracefully stopped.")
}

func run(cfg *configs.AppConfig) error {
	cert, generated, err := certs.LoadOrGenerate(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return err
	}
	if generated {
		logx.Warn("No TLS key pair configured, using a self-signed certificate")
		if cfg.CertOutFile != "" {
			if err := certs.WriteDER(cfg.CertOutFile, cert); err != nil {
				return err
			}
			logx.Info("Certificate written for clients", "path", cfg.CertOutFile)
		}
	}

	ln, err := transport.Listen(cfg.ListenAddr, certs.ServerConfig(cert), transport.Options{
		KeepAlive:   cfg.KeepAlive,
		IdleTimeout: cfg.IdleTimeout,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := chat.NewServer(session.NewStore(), chat.OptionsFromConfig(cfg))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Serve(gctx, ln)
	})

	if cfg.AdminPort != 0 {
		hub := feed.NewHub()
		server.Broadcaster().AddObserver(hub)
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})

		adminAddr := fmt.Sprintf(":%d", cfg.AdminPort)
		admin := &http.Server{
			Addr: adminAddr,
			Handler: handler.Router(gctx, &handler.AppDeps{
				Config: cfg,
				Server: server,
				Feed:   hub,
			}),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		g.Go(func() error {
			logx.Info(fmt.Sprintf("Admin API starting on http://localhost%s", adminAddr))
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			logx.Info("Received shutdown signal. Starting graceful shutdown...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return admin.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
