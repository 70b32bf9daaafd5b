// Package main provides combatsim, the command line front end of the combat
// engine: it fights single encounters, validates content and serves a
// continuously fighting party with an optional HTTP inspector.
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
