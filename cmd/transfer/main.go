// Command transfer runs a single token transfer and prints the registry's
// response.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/token-transfer/internal/app"
	"github.com/example/token-transfer/internal/config"
	"github.com/example/token-transfer/internal/failure"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		receiver   = flag.String("receiver", "", "receiving party id")
		amount     = flag.String("amount", "", "amount to transfer, as a decimal string")
		instrument = flag.String("instrument", "", "instrument id (defaults to INSTRUMENT_ID)")
		validity   = flag.Duration("validity", 0, "how long the transfer stays executable (defaults to TRANSFER_VALIDITY)")
		reason     = flag.String("reason", "", "reason recorded in transfer metadata")
		configPath = flag.String("config", os.Getenv("TRANSFER_CONFIG"), "TOML config file")
		timeout    = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if *receiver == "" || *amount == "" {
		fmt.Fprintln(os.Stderr, "-receiver and -amount are required")
		flag.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		return 1
	}
	defer a.Close()

	if a.TokenSource == nil {
		logger.Error("no credentials: set ACCESS_TOKEN or KEYCLOAK_*")
		return 2
	}

	in := a.Defaults
	in.Receiver = *receiver
	in.Amount = *amount
	if *instrument != "" {
		in.Instrument.ID = *instrument
	}
	if *validity != 0 {
		in.Validity = *validity
	}
	if *reason != "" {
		in.Reason = *reason
	}

	in.AccessToken, err = a.TokenSource.Token(ctx)
	if err != nil {
		logger.Error("login failed", "kind", failure.KindOf(err), "error", err)
		return 1
	}

	res, runErr := a.Runner.Run(ctx, in)
	if id, err := a.Record(ctx, in, res, runErr); err != nil {
		logger.Error("journal save failed", "error", err)
	} else if id != "" {
		logger.Info("journaled transfer", "record_id", id)
	}
	if runErr != nil {
		var submitErr *failure.RegistrySubmissionError
		if errors.As(runErr, &submitErr) {
			fmt.Fprintln(os.Stderr, submitErr.Body)
		}
		return 1
	}

	out := json.RawMessage(res.Response.Raw)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("write response", "error", err)
		return 1
	}
	return 0
}
