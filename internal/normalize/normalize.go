package normalize

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
	"time"

	"blockchain-explorer/internal/models"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// Unknown replaces identifiers and timestamps the upstream left out.
	Unknown = "Unknown"
	// StatusPending is used when a record carries no status.
	StatusPending = "Pending"
	// ZeroAmount is the amount of a record whose value is absent or unparseable.
	ZeroAmount = "0.00"
	// ZeroBalance is the balance of a wallet whose balance is absent or unparseable.
	ZeroBalance = "0"

	// Decimals is the fixed-point precision of the native token.
	Decimals = 18

	TimestampLayout = "1/2/2006, 3:04:05 PM"
)

var (
	idKeys   = []string{"txHash", "hash", "id"}
	fromKeys = []string{"sender", "from"}
	toKeys   = []string{"receiver", "to", "recipient"}
)

// Normalizer maps loosely-shaped upstream objects onto models.TransactionRecord.
// It never fails; missing or malformed fields get a sentinel default.
type Normalizer struct {
	loc    *time.Location
	logger *zerolog.Logger
}

func New(loc *time.Location, logger *zerolog.Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Normalizer{loc: loc, logger: logger}
}

// Transaction normalizes one raw upstream object.
func (n *Normalizer) Transaction(raw map[string]any) models.TransactionRecord {
	rec := models.TransactionRecord{
		ID:     n.stringField(raw, idKeys, Unknown),
		From:   n.stringField(raw, fromKeys, Unknown),
		To:     n.stringField(raw, toKeys, Unknown),
		Status: n.stringField(raw, []string{"status"}, StatusPending),
	}

	if amount, ok := FormatBaseUnits(raw["value"]); ok {
		rec.Amount = amount
	} else {
		n.defaulted(rec.ID, "value", ZeroAmount)
		rec.Amount = ZeroAmount
	}

	if sec, ok := toInt64(raw["timestamp"]); ok {
		rec.Epoch = sec
		rec.Timestamp = n.FormatTimestamp(sec)
	} else {
		n.defaulted(rec.ID, "timestamp", Unknown)
		rec.Timestamp = Unknown
	}

	rec.Gas = n.intField(rec.ID, raw, "gasUsed")
	rec.FromShard = n.intField(rec.ID, raw, "fromShard")
	rec.ToShard = n.intField(rec.ID, raw, "toShard")

	return rec
}

// FormatTimestamp renders Unix seconds in the normalizer's display location.
func (n *Normalizer) FormatTimestamp(sec int64) string {
	return time.Unix(sec, 0).In(n.loc).Format(TimestampLayout)
}

// Balance converts a raw base-unit balance, falling back to ZeroBalance.
func (n *Normalizer) Balance(v any) string {
	if s, ok := FormatBaseUnits(v); ok {
		return s
	}
	n.logger.Debug().
		Interface("raw", v).
		Msg("Balance missing or malformed, using default")
	return ZeroBalance
}

func (n *Normalizer) stringField(raw map[string]any, keys []string, fallback string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	n.defaulted("", keys[0], fallback)
	return fallback
}

func (n *Normalizer) intField(id string, raw map[string]any, key string) int64 {
	if v, ok := toInt64(raw[key]); ok {
		return v
	}
	if _, present := raw[key]; present {
		n.defaulted(id, key, "0")
	}
	return 0
}

func (n *Normalizer) defaulted(id, field, value string) {
	n.logger.Debug().
		Str("txHash", id).
		Str("field", field).
		Str("default", value).
		Msg("Field missing or malformed, using default")
}

// FormatBaseUnits divides a base-unit integer by 10^18 and renders it with
// trailing zeros trimmed and at least one fractional digit. v may be a JSON
// number, a decimal string or a 0x-prefixed hex string.
func FormatBaseUnits(v any) (string, bool) {
	d, ok := ParseBaseUnits(v)
	if !ok {
		return "", false
	}
	s := d.Shift(-Decimals).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, true
}

// ParseBaseUnits reads a raw base-unit value without scaling it.
func ParseBaseUnits(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case json.Number:
		return parseDecimal(x.String())
	case string:
		s := strings.TrimSpace(x)
		if hexutil.Has0xPrefix(s) {
			b, err := hexutil.DecodeBig(s)
			if err != nil {
				return decimal.Decimal{}, false
			}
			return decimal.NewFromBigInt(b, 0), true
		}
		return parseDecimal(s)
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case *big.Int:
		if x == nil {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromBigInt(x, 0), true
	}
	return decimal.Decimal{}, false
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(x), true
	case int:
		return int64(x), true
	case int64:
		return x, true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}
