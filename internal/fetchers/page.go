package fetchers

import (
	"context"
	"net/url"
	"strconv"

	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/normalize"
	"blockchain-explorer/internal/rest"

	"github.com/rs/zerolog"
)

const transactionsPath = "/transactions"

// PageFetcher retrieves one page of the global transaction listing.
type PageFetcher struct {
	client     Getter
	normalizer *normalize.Normalizer
	logger     *zerolog.Logger
}

func NewPageFetcher(client Getter, normalizer *normalize.Normalizer, logger *zerolog.Logger) *PageFetcher {
	return &PageFetcher{client: client, normalizer: normalizer, logger: logger}
}

// FetchPage requests page (1-based) with the given size. A body that is not a
// list yields an empty slice and a *rest.DecodeError.
func (p *PageFetcher) FetchPage(ctx context.Context, page, size int) ([]models.TransactionRecord, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(size))
	query.Set("page", strconv.Itoa(page))

	body, err := p.client.Get(ctx, transactionsPath, query)
	if err != nil {
		return []models.TransactionRecord{}, err
	}

	list, ok := body.([]any)
	if !ok {
		return []models.TransactionRecord{}, &rest.DecodeError{URL: transactionsPath, Err: rest.ErrNotList}
	}

	records := normalizeList(p.normalizer, p.logger, list)

	p.logger.Debug().
		Int("page", page).
		Int("size", size).
		Int("records", len(records)).
		Msg("Fetched transactions page")

	return records, nil
}

func normalizeList(n *normalize.Normalizer, logger *zerolog.Logger, list []any) []models.TransactionRecord {
	records := make([]models.TransactionRecord, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			logger.Warn().
				Int("index", i).
				Msg("Skipping non-object transaction entry")
			continue
		}
		records = append(records, n.Transaction(obj))
	}
	return records
}
