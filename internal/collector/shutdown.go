package collector

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context cancelled on SIGTERM or SIGINT.
// The shutdown function, if any, runs before cancellation so components
// can flush. A second signal forces an immediate exit.
func SetupSignalHandler(shutdownFunc func(context.Context)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		log.Printf("[Signal] Received %v, shutting down...", sig)

		if shutdownFunc != nil {
			shutdownFunc(ctx)
		}
		cancel()

		sig = <-sigCh
		log.Printf("[Signal] Received second %v, forcing exit", sig)
		os.Exit(1)
	}()

	return ctx
}
