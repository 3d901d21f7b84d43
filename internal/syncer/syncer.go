package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blockchain-explorer/internal/interfaces"
	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/projection"
	"blockchain-explorer/internal/rest"
	"blockchain-explorer/internal/store"

	"github.com/rs/zerolog"
)

// PageSource returns one page of normalized transactions.
type PageSource interface {
	FetchPage(ctx context.Context, page, size int) ([]models.TransactionRecord, error)
}

type Config struct {
	PageSize        int
	MaxPages        int
	DisplayPageSize int
	Network         models.NetworkName
	ExplorerBaseURL string
}

// Result describes one sync pass. Err is set when a page failed; records
// fetched before the failure are still committed. Added, Total and
// TotalPages are filled in by Commit.
type Result struct {
	Records    []models.TransactionRecord `json:"-"`
	Pages      int
	Fetched    int
	Added      int
	Total      int
	TotalPages int
	Err        error
}

// Engine walks the paginated listing. Sync only fetches; nothing reaches the
// store or the emitter until the caller commits the result.
type Engine struct {
	cfg     Config
	source  PageSource
	store   *store.Store
	emitter interfaces.EventEmitter
	logger  *zerolog.Logger
}

func NewEngine(cfg Config, source PageSource, st *store.Store, emitter interfaces.EventEmitter, logger *zerolog.Logger) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.DisplayPageSize <= 0 {
		cfg.DisplayPageSize = 10
	}
	return &Engine{cfg: cfg, source: source, store: st, emitter: emitter, logger: logger}
}

// Sync fetches pages 1..MaxPages until one comes back empty and returns the
// accumulated records without touching the store.
func (e *Engine) Sync(ctx context.Context) Result {
	var (
		res Result
		acc []models.TransactionRecord
	)

	for page := 1; page <= e.cfg.MaxPages; page++ {
		records, err := e.source.FetchPage(ctx, page, e.cfg.PageSize)
		if err != nil {
			if page > 1 && rest.IsDecodeError(err) {
				e.logger.Debug().
					Err(err).
					Int("page", page).
					Msg("Non-list page, treating as end of listing")
				break
			}
			res.Err = fmt.Errorf("page %d: %w", page, err)
			e.logger.Error().
				Err(err).
				Int("page", page).
				Msg("Sync aborted")
			break
		}
		res.Pages++

		if len(records) == 0 {
			break
		}
		acc = append(acc, records...)

		if page == e.cfg.MaxPages {
			e.logger.Warn().
				Int("maxPages", e.cfg.MaxPages).
				Msg("Sync stopped at page ceiling")
		}
	}

	res.Records = acc
	res.Fetched = len(acc)

	e.logger.Debug().
		Int("pages", res.Pages).
		Int("fetched", res.Fetched).
		Msg("Sync fetched")

	return res
}

// Commit merges the records of a finished Sync into the store and emits an
// event for each transaction the store had not seen.
func (e *Engine) Commit(res *Result) {
	added := e.store.Merge(res.Records)
	res.Added = len(added)
	res.Total = e.store.Len()
	res.TotalPages = projection.TotalPages(res.Total, e.cfg.DisplayPageSize)

	e.emit(added)

	e.logger.Info().
		Int("pages", res.Pages).
		Int("fetched", res.Fetched).
		Int("added", res.Added).
		Int("total", res.Total).
		Msg("Sync committed")
}

func (e *Engine) emit(added []models.TransactionRecord) {
	if e.emitter == nil {
		return
	}
	for _, rec := range added {
		if err := e.emitter.EmitEvent(e.event(rec)); err != nil {
			e.logger.Error().
				Err(err).
				Str("txHash", rec.ID).
				Msg("Failed to emit event for transaction")
		}
	}
}

func (e *Engine) event(rec models.TransactionRecord) models.TransactionEvent {
	ev := models.TransactionEvent{
		Network:     e.cfg.Network,
		TxHash:      rec.ID,
		From:        rec.From,
		To:          rec.To,
		Amount:      rec.Amount,
		Status:      rec.Status,
		Gas:         rec.Gas,
		FromShard:   rec.FromShard,
		ToShard:     rec.ToShard,
		ExplorerURL: ExplorerURL(e.cfg.ExplorerBaseURL, rec.ID),
	}
	if rec.Epoch > 0 {
		ev.Timestamp = time.Unix(rec.Epoch, 0).UTC()
	}
	return ev
}

// ExplorerURL links a transaction to the public explorer, or returns "" when no base is configured.
func ExplorerURL(base, txHash string) string {
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(base, "/"), txHash)
}
