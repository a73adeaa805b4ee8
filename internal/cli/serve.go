package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-bankfeeds/adapters/gojob"
	"github.com/goliatone/go-bankfeeds/adapters/gologger"
	"github.com/goliatone/go-bankfeeds/command"
	"github.com/goliatone/go-bankfeeds/inbound"
	banksync "github.com/goliatone/go-bankfeeds/sync"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive provider callbacks and run scheduled syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, flags, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if addr != "" {
				rt.File.Server.Addr = addr
			}
			return serve(ctx, rt)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, rt *Runtime) error {
	server := rt.File.Server
	logger := rt.Provider.GetLogger("bankfeeds.serve")

	dispatcher := inbound.NewDispatcher(inbound.NewSharedTokenVerifier(server.CallbackToken), inbound.NewInMemoryClaimStore())
	if err := inbound.RegisterCallbackHandlers(dispatcher, rt.Service); err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              server.Addr,
		Handler:           inbound.NewRouter(dispatcher, inbound.WithRouterLogger(rt.Provider.GetLogger("bankfeeds.inbound"))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	queue := gojob.NewMemoryQueue()
	queue.Logger = gologger.QueueLogger(rt.Provider, nil)
	accounts := rt.Stores.AccountStore()
	scheduler := banksync.NewScheduler(gojob.NewEnqueuerAdapter(queue), accounts)
	runner := banksync.NewRunner(rt.Service,
		banksync.WithConcurrency(server.Concurrency),
		banksync.WithRunnerLogger(rt.Provider.GetLogger("bankfeeds.sync")),
	)
	workerLogger := rt.Provider.GetLogger("bankfeeds.worker")
	worker := banksync.NewWorker(gojob.NewDequeuerAdapter(queue, gojob.RetryPolicy{}), accounts, runner,
		banksync.WithWorkerCount(server.Workers),
		banksync.WithWorkerLogger(workerLogger),
		banksync.WithWorkerHook(banksync.LoggingHook{Logger: workerLogger}),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("callback server listening", "addr", server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		return every(gctx, server.SyncInterval, func(ctx context.Context) {
			queued, err := scheduler.EnqueueAccounts(ctx, "")
			if err != nil {
				logger.Error("scheduling syncs failed", "error", err)
				return
			}
			logger.Debug("syncs scheduled", "queued", queued)
		})
	})
	if rt.Facade.Commands().ExpireBalanceChecks != nil && server.ExpireAfter > 0 {
		expire := rt.Facade.Commands().ExpireBalanceChecks
		g.Go(func() error {
			return every(gctx, server.SweepInterval, func(ctx context.Context) {
				msg := command.ExpireBalanceChecksMessage{Cutoff: time.Now().UTC().Add(-server.ExpireAfter)}
				if err := expire.Execute(ctx, msg); err != nil {
					logger.Error("expiring balance checks failed", "error", err)
				}
			})
		})
	}

	err := g.Wait()
	logger.Info("bankfeeds server stopped")
	return err
}

// every runs fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
