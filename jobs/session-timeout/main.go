package main

import (
	"context"
	"log/slog"
	"time"
)

const jobTimeout = 10 * time.Minute

func main() {
	slog.Info("Starting session timeout job")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	defer func() {
		if err := fieldEngine.Store.Close(context.Background()); err != nil {
			slog.Error("Error closing store", slog.String("error", err.Error()))
		}
	}()

	closed, err := fieldEngine.Sessions.CloseTimedOut(ctx)
	if err != nil {
		slog.Error("Failed to close timed out sessions", slog.String("error", err.Error()), slog.Int("closed", closed))
		return
	}

	slog.Info("Session timeout job completed", slog.Int("closed", closed), slog.String("duration", time.Since(start).String()))
}
