// Command sublarrd runs the subtitle acquisition engine: the wanted
// scanner, its filesystem watcher, the background job scheduler and the
// webhook/health/progress HTTP surface, all wired by internal/appctx.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abrechen2/sublarr/internal/appctx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := appctx.New()
	if err != nil {
		panic(err)
	}
	defer app.Close()

	log := app.Log

	schedCtx, schedCancel := context.WithCancel(ctx)
	defer schedCancel()
	go func() {
		if err := app.Scheduler.Serve(schedCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("scheduler supervisor exited")
		}
	}()

	if app.Watcher != nil {
		app.Watcher.Start()
	}

	httpSrv := &http.Server{
		Addr:    app.Config.ListenAddr,
		Handler: app.API,
	}
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("sublarrd listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server exited")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("sublarrd shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown")
	}
}
