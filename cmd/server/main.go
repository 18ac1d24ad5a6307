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

	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/auth"
	"github.com/you/go-flight-aggregator/internal/config"
	"github.com/you/go-flight-aggregator/internal/httpx"
	"github.com/you/go-flight-aggregator/internal/logging"
	"github.com/you/go-flight-aggregator/internal/providers"
	"github.com/you/go-flight-aggregator/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	for _, key := range cfg.MissingCredentials() {
		log.Warn("credential not configured", zap.String("key", key))
	}

	opts := providers.OptionsFromConfig(cfg)
	airlabs := providers.NewAirLabs(cfg, opts, log)
	amadeus := providers.NewAmadeus(cfg, opts, log)
	defer airlabs.Close()
	defer amadeus.Close()

	// registration order breaks price ties
	prov := []providers.FlightProvider{airlabs, amadeus}
	searchSvc := service.NewSearchService(prov, cfg.SearchTimeout, log)

	publicMux := http.NewServeMux()
	publicMux.HandleFunc("/auth/login", auth.LoginHandler(cfg, log))
	publicMux.HandleFunc("/healthz", httpx.HealthHandler(searchSvc))

	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("/flights/search", httpx.SearchHandler(searchSvc))
	protectedMux.HandleFunc("/flights/routes", httpx.RoutesHandler(searchSvc))
	protectedMux.HandleFunc("/ws/routes", httpx.RoutesWSHandler(searchSvc, log))

	root := auth.JWTMiddleware(publicMux, protectedMux, cfg, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           root,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		tls := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
		log.Info("server listening", zap.String("addr", srv.Addr), zap.Bool("tls", tls),
			zap.Strings("providers", searchSvc.ProviderNames()))
		var err error
		if tls {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
