package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	Reset()
	defer Reset()

	rec := httptest.NewRecorder()
	ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status before first sync = %d, want 503", rec.Code)
	}

	UpdateResource("transactions", nil)
	UpdateResource("stats", errors.New("stats down"))
	SetReady(true)

	rec = httptest.NewRecorder()
	ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status    string                    `json:"status"`
		Resources map[string]ResourceStatus `json:"resources"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "Ready" {
		t.Errorf("status = %q", body.Status)
	}
	if !body.Resources["transactions"].OK {
		t.Error("transactions should be OK")
	}
	if st := body.Resources["stats"]; st.OK || st.Error != "stats down" {
		t.Errorf("stats = %+v", st)
	}
}

func TestUpdateResource_Recovers(t *testing.T) {
	Reset()
	defer Reset()

	UpdateResource("wallet", errors.New("boom"))
	UpdateResource("wallet", nil)

	st := Resources()["wallet"]
	if !st.OK || st.Error != "" || st.LastSuccess.IsZero() {
		t.Errorf("wallet status = %+v, want recovered", st)
	}
}
