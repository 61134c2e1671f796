package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	tactlcmd "github.com/devtrack/TradingAgents/pkg/tactl/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// a .env in the working directory may carry TRADINGAGENTS_* settings
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := tactlcmd.DefaultConfig()
	if err := tactlcmd.Execute(ctx, cfg, args); err != nil {
		printError(cfg.ErrWriter, err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
