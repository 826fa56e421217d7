package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"level-indicator/internal/config"
	"level-indicator/internal/feed"
	"level-indicator/internal/history"
	"level-indicator/internal/indicator"
	"level-indicator/internal/levels"
	"level-indicator/internal/server"
	"level-indicator/internal/state"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Replay a bar history file and serve ranked levels over HTTP/websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("config") {
				configPath = config.Path(configPath)
			}
			return serve(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config.yaml")
	return cmd
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", configPath, err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	logger.Info("level-indicator starting",
		slog.Int("port", cfg.Port),
		slog.String("symbol", cfg.Symbol),
		slog.String("bars_file", cfg.BarsFile),
	)

	settings, err := cfg.Indicator.Settings()
	if err != nil {
		return err
	}
	bars, err := history.ReadBars(cfg.BarsFile)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	st := state.NewState(cfg.Symbol, time.Duration(cfg.AlertCooldownSeconds)*time.Second)
	store := history.NewStore()

	drv, err := indicator.New(store, settings, logger)
	if err != nil {
		return err
	}
	srv := server.NewHTTPServer(cfg, st, drv, logger)

	bf := feed.NewReplayFeed(bars, time.Duration(cfg.ReplayIntervalMs)*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go bf.Run(ctx, func(connected bool) {
		st.SetConnected(connected)
		srv.BroadcastStatus()
	})

	// Pipe feed → store → indicator → hub
	go func() {
		var watch levelWatch
		watch.fresh(drv.Ranking())
		for {
			select {
			case snap := <-bf.Updates():
				st.MarkBar()
				if err := store.Put(snap); err != nil {
					logger.Warn("bar rejected", slog.Int("bar", snap.Bar), slog.String("err", err.Error()))
					continue
				}
				if err := drv.OnBar(snap.Bar); err != nil {
					logger.Error("indicator", slog.Int("bar", snap.Bar), slog.String("err", err.Error()))
					srv.BroadcastError(err.Error())
					continue
				}
				now := time.Now()
				for _, e := range watch.fresh(drv.Ranking()) {
					if st.AllowAlert(st.Symbol(), e.Price, now) {
						srv.BroadcastAlert(e, now)
					}
				}
				srv.BroadcastLevels()
			case err := <-bf.Errors():
				if err != nil {
					logger.Error("bar feed error", slog.String("err", err.Error()))
					srv.BroadcastError(err.Error())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router(),
	}

	done := make(chan struct{})
	go func() {
		logger.Info("HTTP server listening", slog.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("err", err.Error()))
			cancel()
		}
		close(done)
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shCtx, shCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shCancel()

	_ = httpSrv.Shutdown(shCtx)
	bf.Close()
	<-done
	logger.Info("bye")
	return nil
}

// levelWatch reports levels that entered the top K since the previous bar.
// A settings change starts a new baseline instead of alerting on the whole
// reshuffled ranking.
type levelWatch struct {
	generation string
	prev       []levels.LevelEntry
}

func (w *levelWatch) fresh(generation string, top []levels.LevelEntry) []levels.LevelEntry {
	defer func() { w.generation, w.prev = generation, top }()
	if generation != w.generation {
		return nil
	}
	return indicator.NewEntries(w.prev, top)
}
