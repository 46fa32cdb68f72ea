// Command sqlmap runs a scripted workload of mapped statements against a
// database and reports how the namespace caches behaved.
//
// Usage:
//
//	sqlmap run --config sqlmap.yaml [--schema schema.sql] [--logger zap] [--log-level info]
//
// The configuration file declares the datasource, executor settings, caches,
// statements and the workload steps to run. See the config package.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
