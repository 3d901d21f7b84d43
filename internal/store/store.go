package store

import (
	"sort"
	"sync"

	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/normalize"

	"github.com/axiomhq/hyperloglog"
)

// Store is the merged, deduplicated set of transaction records, kept in
// canonical order: newest first, ties broken by ID.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]models.TransactionRecord
	ordered  []models.TransactionRecord
	accounts *hyperloglog.Sketch
}

func New() *Store {
	return &Store{
		byID:     make(map[string]models.TransactionRecord),
		accounts: hyperloglog.New14(),
	}
}

// Merge upserts records by ID, later records winning over earlier ones and
// over what the store already holds. It returns the records whose ID was not
// present before.
func (s *Store) Merge(records []models.TransactionRecord) []models.TransactionRecord {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(records))
	var added []models.TransactionRecord
	for _, rec := range records {
		if _, exists := s.byID[rec.ID]; !exists && !seen[rec.ID] {
			seen[rec.ID] = true
			added = append(added, rec)
		}
		s.byID[rec.ID] = rec
		s.observe(rec.From)
		s.observe(rec.To)
	}

	// added must carry the final version of each new record
	for i := range added {
		added[i] = s.byID[added[i].ID]
	}

	s.ordered = make([]models.TransactionRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		s.ordered = append(s.ordered, rec)
	}
	SortCanonical(s.ordered)

	return added
}

func (s *Store) observe(addr string) {
	if addr == "" || addr == normalize.Unknown {
		return
	}
	s.accounts.Insert([]byte(addr))
}

// Snapshot returns a copy of the records in canonical order.
func (s *Store) Snapshot() []models.TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TransactionRecord, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func (s *Store) Get(id string) (models.TransactionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	return rec, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ObservedAccounts estimates the number of distinct sender and receiver
// addresses seen across all merged records.
func (s *Store) ObservedAccounts() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts.Estimate()
}

// SortCanonical orders records by timestamp descending, then ID ascending.
func SortCanonical(records []models.TransactionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Epoch != records[j].Epoch {
			return records[i].Epoch > records[j].Epoch
		}
		return records[i].ID < records[j].ID
	})
}
