package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// counters for /metrics, process wide
type counters struct {
	requests   atomic.Uint64
	inFlight   atomic.Int64
	ok         atomic.Uint64
	failed     atomic.Uint64
	screenings atomic.Uint64
	running    atomic.Int64
	screenFail atomic.Uint64
	reviews    atomic.Uint64
	started    time.Time
}

var stats = &counters{started: time.Now()}

// Snapshot is the JSON body served by MetricsHandler
type Snapshot struct {
	RequestsTotal      uint64      `json:"requests_total"`
	RequestsInProgress int64       `json:"requests_in_progress"`
	RequestsSuccess    uint64      `json:"requests_success"`
	RequestsFailed     uint64      `json:"requests_failed"`
	ScreeningsTotal    uint64      `json:"screenings_total"`
	ScreeningsRunning  int64       `json:"screenings_running"`
	ScreeningsFailed   uint64      `json:"screenings_failed"`
	ReviewsPublished   uint64      `json:"reviews_published"`
	UptimeSeconds      float64     `json:"uptime_seconds"`
	Goroutines         int         `json:"goroutines"`
	Memory             MemSnapshot `json:"memory"`
}

type MemSnapshot struct {
	AllocBytes uint64 `json:"alloc_bytes"`
	SysBytes   uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

// IncrementScreenings counts a submission and marks it running
func IncrementScreenings() {
	stats.screenings.Add(1)
	stats.running.Add(1)
}

// DoneScreening clears the running mark, counting a failure when ok is false
func DoneScreening(ok bool) {
	stats.running.Add(-1)
	if !ok {
		stats.screenFail.Add(1)
	}
}

func IncrementReviews() { stats.reviews.Add(1) }

func GetMetrics() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Snapshot{
		RequestsTotal:      stats.requests.Load(),
		RequestsInProgress: stats.inFlight.Load(),
		RequestsSuccess:    stats.ok.Load(),
		RequestsFailed:     stats.failed.Load(),
		ScreeningsTotal:    stats.screenings.Load(),
		ScreeningsRunning:  stats.running.Load(),
		ScreeningsFailed:   stats.screenFail.Load(),
		ReviewsPublished:   stats.reviews.Load(),
		UptimeSeconds:      time.Since(stats.started).Seconds(),
		Goroutines:         runtime.NumGoroutine(),
		Memory:             MemSnapshot{AllocBytes: m.Alloc, SysBytes: m.Sys, NumGC: m.NumGC},
	}
}

// MetricsMiddleware counts every request by outcome; 4xx and 5xx are failures
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats.requests.Add(1)
		stats.inFlight.Add(1)
		defer stats.inFlight.Add(-1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.statusCode < 400 {
			stats.ok.Add(1)
		} else {
			stats.failed.Add(1)
		}
	})
}

func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetMetrics())
}
