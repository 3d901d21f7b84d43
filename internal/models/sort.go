package models

import "strings"

// SortKey names a TransactionRecord column. The zero value means "no sort".
type SortKey string

const (
	SortNone      SortKey = ""
	SortID        SortKey = "id"
	SortFrom      SortKey = "from"
	SortTo        SortKey = "to"
	SortAmount    SortKey = "amount"
	SortTimestamp SortKey = "timestamp"
	SortStatus    SortKey = "status"
	SortGas       SortKey = "gas"
	SortFromShard SortKey = "fromShard"
	SortToShard   SortKey = "toShard"
)

var sortKeys = map[string]SortKey{
	"id":        SortID,
	"from":      SortFrom,
	"to":        SortTo,
	"amount":    SortAmount,
	"timestamp": SortTimestamp,
	"status":    SortStatus,
	"gas":       SortGas,
	"fromshard": SortFromShard,
	"toshard":   SortToShard,
}

// ParseSortKey resolves a column name case-insensitively.
func ParseSortKey(s string) (SortKey, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortNone, true
	}
	k, ok := sortKeys[s]
	return k, ok
}

type SortDirection string

const (
	Ascending  SortDirection = "ascending"
	Descending SortDirection = "descending"
)

type SortConfig struct {
	Key       SortKey       `json:"key"`
	Direction SortDirection `json:"direction"`
}

// Select returns the config produced by choosing key as the sort column.
// Choosing the current key while ascending flips to descending; anything else sorts ascending.
func (c SortConfig) Select(key SortKey) SortConfig {
	if c.Key == key && c.Direction == Ascending {
		return SortConfig{Key: key, Direction: Descending}
	}
	return SortConfig{Key: key, Direction: Ascending}
}
