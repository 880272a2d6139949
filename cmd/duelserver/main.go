// Command duelserver runs the authoritative duel server: a WebSocket
// gateway over the room registry and the match engine, with card
// definitions and deck lists served by an external catalog.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/grandline/duelserver/internal/catalog"
	"github.com/grandline/duelserver/internal/config"
	"github.com/grandline/duelserver/internal/game"
	"github.com/grandline/duelserver/internal/gateway"
	"github.com/grandline/duelserver/internal/room"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("load config", zap.Error(err))
	}

	var logger *zap.Logger
	if cfg.LogDev {
		logger = zap.Must(zap.NewDevelopment())
	} else {
		logger = zap.Must(zap.NewProduction())
	}
	defer logger.Sync()

	scripts := game.NewScriptCatalog()
	if cfg.ScriptsFile != "" {
		scripts, err = game.LoadScriptsFile(cfg.ScriptsFile)
		if err != nil {
			logger.Fatal("load card scripts", zap.Error(err))
		}
		logger.Info("card scripts loaded", zap.String("file", cfg.ScriptsFile))
	}

	decks := catalog.New(cfg.CatalogURL, cfg.CatalogTimeout)

	var srv *gateway.Server
	reg := room.NewRegistry(decks, scripts, room.Options{
		ForfeitTimeout: cfg.ForfeitTimeout,
		TTL:            cfg.RoomTTL,
		OnChange:       func(roomID string) { srv.NotifyRoom(roomID) },
	}, logger)
	srv = gateway.New(reg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go reg.RunSweeper(ctx, cfg.SweepInterval)

	mux := http.NewServeMux()
	mux.Handle("/ws", srv)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("duel server listening",
		zap.String("addr", cfg.Addr),
		zap.String("catalog", cfg.CatalogURL))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
	logger.Info("duel server stopped")
}
