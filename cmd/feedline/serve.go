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

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/feedline/internal/client"
	"github.com/alphabot-ai/feedline/internal/fakeapi"
	httpapp "github.com/alphabot-ai/feedline/internal/http"
	"github.com/alphabot-ai/feedline/internal/logging"
	"github.com/alphabot-ai/feedline/internal/rate"
	"github.com/alphabot-ai/feedline/internal/view"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web front end",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var fakeAPIAddr string

var fakeAPICmd = &cobra.Command{
	Use:   "fakeapi",
	Short: "Run an in-memory social feed API for local development",
	Args:  cobra.NoArgs,
	RunE:  runFakeAPI,
}

func init() {
	fakeAPICmd.Flags().StringVar(&fakeAPIAddr, "addr", "127.0.0.1:8000", "listen address")
	rootCmd.AddCommand(serveCmd, fakeAPICmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	log, closer := logging.New(cfg.Log)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer kv.Close()
	sealer, err := sealerFor(cfg.Storage)
	if err != nil {
		return err
	}

	backend, err := view.NewHTML()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	api := client.New(cfg.APIURL, nil)
	api.HTTPClient.Timeout = cfg.APITimeout
	api.Log = log

	sessions := httpapp.NewSessions(httpapp.ControllerFactory(httpapp.Deps{
		KV:           kv,
		API:          api,
		Backend:      backend,
		Sealer:       sealer,
		StrictRender: cfg.StrictRender,
		Log:          log,
	}), cfg.CookieSecure)
	go sessions.RunSweeper(ctx, 10*time.Minute, 24*time.Hour, log)

	server := httpapp.NewServer(sessions, rate.NewMemory(), cfg, log)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return listen(ctx, httpServer, func() {
		log.Info("feedline listening", "addr", cfg.Addr, "api", cfg.APIURL, "storage", cfg.Storage.Driver)
	})
}

func runFakeAPI(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	log, closer := logging.New(cfg.Log)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              fakeAPIAddr,
		Handler:           fakeapi.New(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return listen(ctx, httpServer, func() {
		log.Info("fake API listening", "addr", fakeAPIAddr, "base_url", "http://"+fakeAPIAddr+"/api/")
	})
}

func listen(ctx context.Context, srv *http.Server, started func()) error {
	errCh := make(chan error, 1)
	go func() {
		started()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
