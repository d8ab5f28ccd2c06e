// Command toolaudit reports which development tools contest teams used over
// time and flags submissions made from a tool that does not fit their language.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/toolaudit/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
