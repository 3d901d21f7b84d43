package main

import (
	"context"
	"time"

	"blockchain-explorer/internal/explorer"
	"blockchain-explorer/internal/logger"
)

// connectStartupWallet connects the configured wallet before the first
// refresh so the startup cycle already includes its activity.
func connectStartupWallet(ctx context.Context, ex *explorer.Explorer, address string) {
	if address == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	session, err := ex.ConnectWallet(ctx, address)
	if err != nil {
		logger.GetLogger().Error().
			Err(err).
			Str("address", address).
			Msg("Error connecting startup wallet")
		return
	}

	logger.GetLogger().Info().
		Str("address", session.Address).
		Str("balance", session.Balance).
		Int("incoming", len(session.Incoming)).
		Int("outgoing", len(session.Outgoing)).
		Msg("Startup wallet connected")
}
