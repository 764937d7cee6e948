package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/campusnet/academic-platform/internal/auth"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	authOutcomes map[string]int64
	latencyTotal map[string]time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		authOutcomes: make(map[string]int64),
		latencyTotal: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordAuth counts gate outcomes by state and error kind.
func (m *Metrics) RecordAuth(out auth.Outcome) {
	if m == nil {
		return
	}
	key := out.State.String()
	if out.Err != nil {
		key += "|" + string(auth.KindOf(out.Err))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authOutcomes[key]++
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests     map[string]int64 `json:"requests"`
	Errors       map[string]int64 `json:"errors"`
	AuthOutcomes map[string]int64 `json:"auth_outcomes"`
	AvgLatencyMS map[string]int64 `json:"avg_latency_ms"`
	Keys         []string         `json:"keys"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Requests:     map[string]int64{},
		Errors:       map[string]int64{},
		AuthOutcomes: map[string]int64{},
		AvgLatencyMS: map[string]int64{},
	}
	if m == nil {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		s.Requests[k] = v
		s.Keys = append(s.Keys, k)
		if v > 0 {
			s.AvgLatencyMS[k] = (m.latencyTotal[k] / time.Duration(v)).Milliseconds()
		}
	}
	for k, v := range m.errorCount {
		s.Errors[k] = v
	}
	for k, v := range m.authOutcomes {
		s.AuthOutcomes[k] = v
	}
	sort.Strings(s.Keys)
	return s
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
