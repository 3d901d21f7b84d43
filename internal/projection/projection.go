package projection

import (
	"sort"
	"strings"

	"blockchain-explorer/internal/models"
)

// Project sorts, filters and pages src without touching it. page is 1-based;
// a page outside the filtered range yields an empty slice.
func Project(src []models.TransactionRecord, term string, cfg models.SortConfig, page, size int) []models.TransactionRecord {
	if page < 1 || size <= 0 {
		return []models.TransactionRecord{}
	}

	rows := make([]models.TransactionRecord, len(src))
	copy(rows, src)

	Sort(rows, cfg)
	rows = Filter(rows, term)

	start := (page - 1) * size
	if start >= len(rows) {
		return []models.TransactionRecord{}
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}

	out := make([]models.TransactionRecord, end-start)
	copy(out, rows[start:end])
	return out
}

// Filter keeps records whose ID, From or To contains term, case-insensitively.
// An empty term keeps everything; whitespace is matched literally.
func Filter(records []models.TransactionRecord, term string) []models.TransactionRecord {
	if term == "" {
		return records
	}
	term = strings.ToLower(term)

	out := records[:0:0]
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.ID), term) ||
			strings.Contains(strings.ToLower(rec.From), term) ||
			strings.Contains(strings.ToLower(rec.To), term) {
			out = append(out, rec)
		}
	}
	return out
}

// Sort stable-sorts records in place by cfg. SortNone leaves the order as is.
func Sort(records []models.TransactionRecord, cfg models.SortConfig) {
	if cfg.Key == models.SortNone {
		return
	}

	cmp := comparator(records, cfg.Key)
	desc := cfg.Direction == models.Descending
	sort.Stable(&sorter{records: records, cmp: cmp, desc: desc})
}

type sorter struct {
	records []models.TransactionRecord
	cmp     func(a, b int) int
	desc    bool
}

func (s *sorter) Len() int { return len(s.records) }

func (s *sorter) Less(i, j int) bool {
	if s.desc {
		return s.cmp(i, j) > 0
	}
	return s.cmp(i, j) < 0
}

func (s *sorter) Swap(i, j int) {
	s.records[i], s.records[j] = s.records[j], s.records[i]
}

func comparator(records []models.TransactionRecord, key models.SortKey) func(a, b int) int {
	switch key {
	case models.SortID:
		return func(a, b int) int { return strings.Compare(records[a].ID, records[b].ID) }
	case models.SortFrom:
		return func(a, b int) int { return strings.Compare(records[a].From, records[b].From) }
	case models.SortTo:
		return func(a, b int) int { return strings.Compare(records[a].To, records[b].To) }
	case models.SortStatus:
		return func(a, b int) int { return strings.Compare(records[a].Status, records[b].Status) }
	case models.SortAmount:
		return func(a, b int) int { return strings.Compare(records[a].Amount, records[b].Amount) }
	case models.SortTimestamp:
		return func(a, b int) int { return strings.Compare(records[a].Timestamp, records[b].Timestamp) }
	case models.SortGas:
		return func(a, b int) int { return compareInt(records[a].Gas, records[b].Gas) }
	case models.SortFromShard:
		return func(a, b int) int { return compareInt(records[a].FromShard, records[b].FromShard) }
	case models.SortToShard:
		return func(a, b int) int { return compareInt(records[a].ToShard, records[b].ToShard) }
	}
	return func(a, b int) int { return 0 }
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// TotalPages returns ceil(n / size), or 0 when either is non-positive.
func TotalPages(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
