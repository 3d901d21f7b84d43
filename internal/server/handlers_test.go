package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"blockchain-explorer/internal/explorer"
	"blockchain-explorer/internal/fetchers"
	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/scheduler"
	"blockchain-explorer/internal/store"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	knownHash    = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	walletHexKey = "0x95222290DD7278Aa3Ddd389Cc1E1d165CC4BAfe5"
)

type MockWallets struct{}

func (MockWallets) FetchBalance(context.Context, string) (string, error) { return "4.2", nil }

func (MockWallets) FetchActivity(context.Context, string) fetchers.Activity {
	return fetchers.Activity{
		Incoming: []models.TransactionRecord{{ID: "in"}},
		Outgoing: []models.TransactionRecord{},
	}
}

type MockRefresher struct {
	err error
	mu  sync.Mutex
	n   int
}

func (m *MockRefresher) Trigger(string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.n++
	return nil
}

func (m *MockRefresher) InFlight() bool { return false }

func setupTestRouter(t *testing.T) (http.Handler, *MockRefresher, *Hub) {
	t.Helper()
	logger := zerolog.New(nil)

	st := store.New()
	st.Merge([]models.TransactionRecord{
		{ID: knownHash, From: "erd1alice", To: "erd1bob", Amount: "1.0", Epoch: 3},
		{ID: "tx2", From: "erd1carol", To: "erd1alice", Amount: "2.0", Epoch: 2},
		{ID: "tx3", From: "erd1dave", To: "erd1erin", Amount: "0.5", Epoch: 1},
	})

	ex := explorer.New(explorer.Config{
		PageSize:        2,
		AddressHRPs:     []string{"one", "erd"},
		ExplorerBaseURL: "https://explorer.test",
	}, st, MockWallets{}, &logger)
	refresher := &MockRefresher{}
	ex.SetRefresher(refresher)

	hub := NewHub(nil, &logger)
	router := NewRouter(&logger, RouterDependencies{
		API:            NewAPIHandlers(ex, &logger),
		Hub:            hub,
		AllowedOrigins: []string{"https://app.test"},
	})
	return router, refresher, hub
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) pageResponse {
	t.Helper()
	var page pageResponse
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	return page
}

func TestListTransactions(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/transactions?page=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	page := decodePage(t, rec)
	if page.Page != 2 || page.TotalPages != 2 || len(page.Transactions) != 1 {
		t.Errorf("page = %+v", page)
	}
	if page.Transactions[0].ID != "tx3" || page.Transactions[0].ExplorerURL != "https://explorer.test/tx/tx3" {
		t.Errorf("row = %+v", page.Transactions[0])
	}

	rec = do(t, router, http.MethodGet, "/api/transactions?page=9", "")
	if page := decodePage(t, rec); len(page.Transactions) != 0 {
		t.Errorf("out-of-range page returned %d rows", len(page.Transactions))
	}

	rec = do(t, router, http.MethodGet, "/api/transactions?page=two", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-integer page status = %d, want 400", rec.Code)
	}
}

func TestGetTransaction(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "found", path: "/api/transactions/" + knownHash, want: http.StatusOK},
		{name: "not found", path: "/api/transactions/" + strings.Repeat("b", 64), want: http.StatusNotFound},
		{name: "short id found", path: "/api/transactions/tx2", want: http.StatusOK},
		{name: "short id not found", path: "/api/transactions/xyz", want: http.StatusNotFound},
		{name: "blank id", path: "/api/transactions/%20", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, router, http.MethodGet, tt.path, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSearchAndSort(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	do(t, router, http.MethodGet, "/api/transactions?page=2", "")

	rec := do(t, router, http.MethodPost, "/api/search", `{"term":"ALICE"}`)
	page := decodePage(t, rec)
	if page.Page != 1 || page.TotalRecords != 2 {
		t.Errorf("search page = %+v", page)
	}

	rec = do(t, router, http.MethodPost, "/api/sort", `{"key":"amount"}`)
	page = decodePage(t, rec)
	if page.Sort.Key != models.SortAmount || page.Sort.Direction != models.Ascending {
		t.Errorf("sort = %+v", page.Sort)
	}
	if page.Transactions[0].ID != knownHash {
		t.Errorf("first row = %s, want smallest amount among matches", page.Transactions[0].ID)
	}

	if rec := do(t, router, http.MethodPost, "/api/sort", `{"key":"nope"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid sort key status = %d, want 400", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/api/search", `{"term":1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/api/search", `{"query":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rec.Code)
	}
}

func TestRefresh(t *testing.T) {
	router, refresher, _ := setupTestRouter(t)

	if rec := do(t, router, http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}

	refresher.err = scheduler.ErrRefreshInFlight
	if rec := do(t, router, http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}

	refresher.err = scheduler.ErrStopped
	if rec := do(t, router, http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	if rec := do(t, router, http.MethodGet, "/api/refresh", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/refresh status = %d, want 405", rec.Code)
	}
}

func TestWalletLifecycle(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	if rec := do(t, router, http.MethodGet, "/api/wallet", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status before connect = %d, want 404", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/api/wallet", `{"address":"garbage"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid address status = %d, want 400", rec.Code)
	}

	rec := do(t, router, http.MethodPost, "/api/wallet", `{"address":"`+walletHexKey+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("connect status = %d: %s", rec.Code, rec.Body.String())
	}
	var session models.WalletSession
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.Address != walletHexKey || session.Balance != "4.2" || len(session.Incoming) != 1 {
		t.Errorf("session = %+v", session)
	}

	if rec := do(t, router, http.MethodGet, "/api/wallet", ""); rec.Code != http.StatusOK {
		t.Errorf("status after connect = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodDelete, "/api/wallet", ""); rec.Code != http.StatusNoContent {
		t.Errorf("disconnect status = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/api/wallet", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status after disconnect = %d, want 404", rec.Code)
	}
}

func TestStatsAndStatus(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/stats", "")
	var stats explorer.StatsView
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.MergedTransactions != 3 || stats.ObservedAccounts == 0 {
		t.Errorf("stats = %+v", stats)
	}

	rec = do(t, router, http.MethodGet, "/api/status", "")
	var status explorer.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Transactions.Loading {
		t.Error("transactions should still be loading before the first cycle")
	}
}

func TestCORS(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "https://app.test")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.test" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign preflight status = %d, want 403", rec.Code)
	}
}

func TestHub_Broadcast(t *testing.T) {
	router, _, hub := setupTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Broadcast(explorer.Summary{Reason: scheduler.ReasonManual, Total: 3})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var got explorer.Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Reason != scheduler.ReasonManual || got.Total != 3 {
		t.Errorf("summary = %+v", got)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Error("closed client was not removed")
	}
}
