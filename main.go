// gosam - a SAM v3 stream client for I2P.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gosam/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gosam: %v\n", err)
		os.Exit(1)
	}
}
