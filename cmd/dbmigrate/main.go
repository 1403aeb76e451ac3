// Command dbmigrate applies the database migrations of sessiongate.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/willemschots/sessiongate/internal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	cmd.Version = internal.BuildRevision

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
