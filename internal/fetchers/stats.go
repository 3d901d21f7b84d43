package fetchers

import (
	"context"

	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/rest"

	"github.com/rs/zerolog"
)

const statsPath = "/stats"

// StatsFetcher reads the aggregate network counters.
type StatsFetcher struct {
	client Getter
	logger *zerolog.Logger
}

func NewStatsFetcher(client Getter, logger *zerolog.Logger) *StatsFetcher {
	return &StatsFetcher{client: client, logger: logger}
}

// FetchStats returns the current counters; fields the upstream omits are 0.
func (s *StatsFetcher) FetchStats(ctx context.Context) (models.NetworkStats, error) {
	body, err := s.client.Get(ctx, statsPath, nil)
	if err != nil {
		return models.NetworkStats{}, err
	}

	obj, ok := body.(map[string]any)
	if !ok {
		return models.NetworkStats{}, &rest.DecodeError{URL: statsPath, Err: rest.ErrMissingData}
	}

	var stats models.NetworkStats
	if v, ok := lookup(obj, "totalTransactions", "transactions"); ok {
		stats.TotalTransactions = toUint64(v)
	}
	if v, ok := lookup(obj, "totalAccounts", "accounts"); ok {
		stats.TotalAccounts = toUint64(v)
	}
	if v, ok := lookup(obj, "totalBlocks", "blocks"); ok {
		stats.TotalBlocks = toUint64(v)
	}
	if v, ok := lookup(obj, "currentEpoch", "epoch"); ok {
		stats.CurrentEpoch = toUint64(v)
	}

	s.logger.Debug().
		Uint64("transactions", stats.TotalTransactions).
		Uint64("accounts", stats.TotalAccounts).
		Uint64("blocks", stats.TotalBlocks).
		Uint64("epoch", stats.CurrentEpoch).
		Msg("Fetched network stats")

	return stats, nil
}
