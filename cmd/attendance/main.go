package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/config"
	"schoolattend/internal/logging"
	"schoolattend/internal/store"
	"schoolattend/internal/validation"
)

func main() {
	cfg := config.Load()

	// the client talks to a person; only problems go to stderr
	logger, err := logging.New(cfg.Env, "warn")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	code := run(cfg, logger)
	_ = logger.Sync()
	os.Exit(code)
}

func run(cfg config.App, logger *zap.Logger) int {
	ctx := context.Background()
	kv, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logger.Error("open store", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error: could not open the attendance data store")
		return 1
	}
	defer kv.Close()

	validate := validation.New()
	repo := attendance.NewRepository(kv, auth.NewHasher(cfg.BcryptCost))
	cli := newCommandLine(
		auth.NewService(repo, validate, logger),
		attendance.NewService(repo, validate, logger),
		auth.NewSessionManager(kv, auth.SessionKey("")),
		os.Stdout,
	)
	if err := cli.authSvc.Bootstrap(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", userMessage(err))
		return 1
	}

	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintln(os.Stderr, "error:", userMessage(err))
		}
		return 1
	}
	return 0
}

// userMessage turns err into what the person at the terminal should read.
func userMessage(err error) string {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, store.ErrStorage):
		return "something went wrong reading or writing attendance data"
	default:
		return err.Error()
	}
}
