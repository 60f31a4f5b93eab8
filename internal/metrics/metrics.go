package metrics

import (
	"maps"
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex         sync.RWMutex
	requests      map[string]int64
	served        map[string]int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	failedOver    map[string]bool
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64                     `json:"total_requests"`
	Uptime        time.Duration             `json:"uptime"`
	Clusters      map[string]ClusterMetrics `json:"clusters"`
	FailedOver    map[string]bool           `json:"failed_over"`
	StoreType     string                    `json:"store_type"`
}

type ClusterMetrics struct {
	Requests    int64         `json:"requests"`
	Served      int64         `json:"served"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		served:        make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		failedOver:    make(map[string]bool),
		startTime:     time.Now(),
	}
}

func (m *Metrics) IncrementRequests(cluster string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests[cluster]++
}

func (m *Metrics) RecordClusterServed(cluster string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.served[cluster]++
}

func (m *Metrics) RecordResponse(cluster string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[cluster] = append(m.responseTimes[cluster], duration)

	if len(m.responseTimes[cluster]) > 1000 {
		m.responseTimes[cluster] = m.responseTimes[cluster][1:]
	}

	if m.statusCodes[cluster] == nil {
		m.statusCodes[cluster] = make(map[int]int64)
	}
	m.statusCodes[cluster][statusCode]++
}

func (m *Metrics) UpdateFailedOver(cache string, failedOver bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failedOver[cache] = failedOver
}

func (m *Metrics) Snapshot(storeType string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:     time.Since(m.startTime),
		Clusters:   make(map[string]ClusterMetrics),
		FailedOver: make(map[string]bool, len(m.failedOver)),
		StoreType:  storeType,
	}

	for cache, failedOver := range m.failedOver {
		snap.FailedOver[cache] = failedOver
	}

	allClusters := make(map[string]bool)
	for cluster := range m.requests {
		allClusters[cluster] = true
	}
	for cluster := range m.served {
		allClusters[cluster] = true
	}
	for cluster := range m.responseTimes {
		allClusters[cluster] = true
	}

	for cluster := range allClusters {
		snap.TotalRequests += m.requests[cluster]

		cm := ClusterMetrics{
			Requests: m.requests[cluster],
			Served:   m.served[cluster],
			// Copied so the snapshot stays safe to read after the lock
			// is released while RecordResponse keeps writing.
			StatusCodes: maps.Clone(m.statusCodes[cluster]),
		}

		durations := m.responseTimes[cluster]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			cm.AvgResponse = average(sorted)
			cm.P50Response = percentile(sorted, 0.50)
			cm.P95Response = percentile(sorted, 0.95)
			cm.P99Response = percentile(sorted, 0.99)
		}

		snap.Clusters[cluster] = cm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
