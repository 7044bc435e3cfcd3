package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/gov-agenda/internal/application"
	"github.com/example/gov-agenda/internal/digest"
	httptransport "github.com/example/gov-agenda/internal/http"
	"github.com/example/gov-agenda/internal/persistence/sqlite"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr     string
		noDigest bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Démarre l'API HTTP et le résumé quotidien",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Addr()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			storage, err := sqlite.Open(ctx, cfg.SQLiteDSN, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := storage.Close(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()
			if err := storage.Migrate(ctx); err != nil {
				return err
			}

			now := time.Now
			events := newEventRepositoryAdapter(storage)
			divisions := newDivisionRepositoryAdapter(storage)
			tasks := newTaskRepositoryAdapter(storage)

			eventService := application.NewEventService(events, application.CalendarSettings{
				Location: cfg.Location,
				DayStart: cfg.WorkDayStart,
				DayEnd:   cfg.WorkDayEnd,
				SlotStep: cfg.SlotStep,
			}, now, logger)
			taskService := application.NewTaskService(tasks, divisions, now, logger)
			divisionService := application.NewDivisionService(divisions, now, logger)

			router := httptransport.NewRouter(httptransport.RouterConfig{
				Events:         httptransport.NewEventHandler(eventService, cfg.Location, logger),
				Tasks:          httptransport.NewTaskHandler(taskService, cfg.Location, logger),
				Divisions:      httptransport.NewDivisionHandler(divisionService, logger),
				Me:             httptransport.NewMeHandler(logger),
				Health:         httptransport.NewHealthHandler(storage, logger),
				Logger:         logger,
				AllowedOrigins: cfg.CORSOrigins,
				RateLimit: httptransport.RateLimitConfig{
					RequestsPerSecond: cfg.RateLimitRPS,
					Burst:             cfg.RateLimitBurst,
				},
			})

			server := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("agenda API listening", "addr", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("failed to shutdown server", "error", err)
					return err
				}
				return nil
			})
			if !noDigest {
				job := digest.NewScheduler(events, cfg.DigestCron, cfg.Location, logger)
				g.Go(func() error { return job.Run(gctx) })
			}

			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, defaults to :<http_port>")
	cmd.Flags().BoolVar(&noDigest, "no-digest", false, "do not schedule the daily digest")
	return cmd
}
