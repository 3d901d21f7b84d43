package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// ResourceStatus is the last known outcome of refreshing one upstream resource.
type ResourceStatus struct {
	Name        string    `json:"name"`
	OK          bool      `json:"ok"`
	Error       string    `json:"error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	LastAttempt time.Time `json:"last_attempt"`
}

var (
	isReady          int32
	resourceStatuses = make(map[string]*ResourceStatus)
	statusMutex      sync.RWMutex
)

func SetReady(ready bool) {
	if ready {
		atomic.StoreInt32(&isReady, 1)
	} else {
		atomic.StoreInt32(&isReady, 0)
	}
}

func IsReady() bool {
	return atomic.LoadInt32(&isReady) == 1
}

// UpdateResource records the outcome of a refresh attempt for name.
func UpdateResource(name string, err error) {
	statusMutex.Lock()
	defer statusMutex.Unlock()

	now := time.Now()
	st, ok := resourceStatuses[name]
	if !ok {
		st = &ResourceStatus{Name: name}
		resourceStatuses[name] = st
	}
	st.LastAttempt = now
	if err != nil {
		st.OK = false
		st.Error = err.Error()
		return
	}
	st.OK = true
	st.Error = ""
	st.LastSuccess = now
}

// Resources returns a copy of every recorded status.
func Resources() map[string]ResourceStatus {
	statusMutex.RLock()
	defer statusMutex.RUnlock()

	out := make(map[string]ResourceStatus, len(resourceStatuses))
	for name, st := range resourceStatuses {
		out[name] = *st
	}
	return out
}

// Reset clears readiness and all statuses.
func Reset() {
	statusMutex.Lock()
	defer statusMutex.Unlock()
	resourceStatuses = make(map[string]*ResourceStatus)
	SetReady(false)
}

func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	statusMutex.RLock()
	defer statusMutex.RUnlock()

	if len(resourceStatuses) == 0 || atomic.LoadInt32(&isReady) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready"))

		return
	}

	response := make(map[string]interface{})
	response["status"] = "Ready"
	response["resources"] = resourceStatuses

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
