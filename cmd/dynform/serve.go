package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-dynform/internal/events"
	"github.com/goliatone/go-dynform/internal/metrics"
	"github.com/goliatone/go-dynform/internal/server"
	"github.com/goliatone/go-dynform/internal/store"
	"github.com/goliatone/go-dynform/internal/watch"
)

func serveCmd(g *globals) *cobra.Command {
	var (
		addr    string
		dataDir string
		watchF  string
		natsURL string
		noSeed  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the form API and HTML form",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.HTTP.Addr = addr
			}
			if flags.Changed("data") {
				cfg.Storage.DataDir = dataDir
			}
			if flags.Changed("watch") {
				cfg.Watch.File = watchF
			}
			if flags.Changed("nats") {
				cfg.NATS.URL = natsURL
			}
			if noSeed {
				cfg.Storage.SeedDefault = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(cfg.Storage.DataDir, store.WithLogger(logger))
			if err != nil {
				return err
			}
			if cfg.Storage.SeedDefault {
				if err := st.SeedDefault(ctx); err != nil {
					return err
				}
			}

			publisher, err := events.Connect(cfg.NATS.URL, logger)
			if err != nil {
				return err
			}

			srv, err := server.New(st.Schemas, st.Submissions,
				server.WithLogger(logger),
				server.WithHTTPConfig(cfg.HTTP),
				server.WithMetrics(metrics.New()),
				server.WithEvents(publisher),
				server.WithVersion(Version),
			)
			if err != nil {
				publisher.Close()
				return err
			}
			defer srv.Close()

			logger.Info("dynform ready", "version", Version, "addr", cfg.HTTP.Addr, "data", cfg.Storage.DataDir)

			var watcher *watch.Watcher
			if cfg.Watch.File != "" {
				watcher, err = watch.New(watch.Config{File: cfg.Watch.File, Debounce: cfg.Watch.Debounce, Logger: logger}, st.Schemas)
				if err != nil {
					return err
				}
			}

			group, gctx := errgroup.WithContext(ctx)
			group.Go(func() error {
				return srv.ListenAndServe(gctx)
			})
			if watcher != nil {
				group.Go(func() error {
					go func() {
						for range watcher.Results() {
						}
					}()
					return watcher.Run(gctx)
				})
			}
			if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("serve: %w", err)
			}
			logger.Info("dynform stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":5000", "Listen address")
	cmd.Flags().StringVar(&dataDir, "data", "data", "Data directory for the JSONL tables")
	cmd.Flags().StringVar(&watchF, "watch", "", "Schema file to republish whenever it changes")
	cmd.Flags().StringVar(&natsURL, "nats", "", "NATS URL for schema and submission events")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Do not seed the default registration schema")
	return cmd
}
