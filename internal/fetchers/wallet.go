package fetchers

import (
	"context"
	"net/url"
	"sync"

	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/normalize"
	"blockchain-explorer/internal/rest"

	"github.com/rs/zerolog"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Activity is the result of one wallet refresh. A failed direction has an
// empty list and its error set; the other direction is unaffected.
type Activity struct {
	Incoming    []models.TransactionRecord
	Outgoing    []models.TransactionRecord
	IncomingErr error
	OutgoingErr error
}

// WalletFetcher reads balance and directional activity for one address.
type WalletFetcher struct {
	client     Getter
	normalizer *normalize.Normalizer
	logger     *zerolog.Logger
}

func NewWalletFetcher(client Getter, normalizer *normalize.Normalizer, logger *zerolog.Logger) *WalletFetcher {
	return &WalletFetcher{client: client, normalizer: normalizer, logger: logger}
}

func addressPath(addr string) string {
	return "/address/" + url.PathEscape(addr)
}

// FetchActivity fetches incoming and outgoing transactions concurrently.
func (w *WalletFetcher) FetchActivity(ctx context.Context, addr string) Activity {
	var (
		act Activity
		wg  sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		act.Incoming, act.IncomingErr = w.fetchDirection(ctx, addr, DirectionIncoming)
	}()
	go func() {
		defer wg.Done()
		act.Outgoing, act.OutgoingErr = w.fetchDirection(ctx, addr, DirectionOutgoing)
	}()
	wg.Wait()

	return act
}

func (w *WalletFetcher) fetchDirection(ctx context.Context, addr, direction string) ([]models.TransactionRecord, error) {
	path := addressPath(addr) + "/transactions"
	body, err := w.client.Get(ctx, path, url.Values{"type": {direction}})
	if err != nil {
		w.logger.Warn().
			Err(err).
			Str("address", addr).
			Str("direction", direction).
			Msg("Wallet activity fetch failed")
		return []models.TransactionRecord{}, err
	}

	obj, _ := body.(map[string]any)
	list, ok := obj["data"].([]any)
	if !ok {
		err := &rest.DecodeError{URL: path, Err: rest.ErrMissingData}
		w.logger.Warn().
			Err(err).
			Str("address", addr).
			Str("direction", direction).
			Msg("Wallet activity response malformed")
		return []models.TransactionRecord{}, err
	}

	return normalizeList(w.normalizer, w.logger, list), nil
}

// FetchBalance returns the converted balance of addr. A malformed or absent
// balance yields "0" without an error; only transport failures are returned.
func (w *WalletFetcher) FetchBalance(ctx context.Context, addr string) (string, error) {
	body, err := w.client.Get(ctx, addressPath(addr), nil)
	if err != nil {
		return normalize.ZeroBalance, err
	}

	return w.normalizer.Balance(findBalance(body)), nil
}

func findBalance(body any) any {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	if v, ok := lookup(obj, "balance"); ok {
		return v
	}
	for _, key := range []string{"data", "account"} {
		if nested, ok := obj[key].(map[string]any); ok {
			if v, ok := lookup(nested, "balance"); ok {
				return v
			}
		}
	}
	return nil
}
