package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookupsTotal tracks lookups by decision
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagecache_lookups_total",
			Help: "Total number of page cache lookups by decision",
		},
		[]string{"state"}, // "hit", "stale", "miss"
	)

	// RefreshesScheduled tracks refresh units handed to a scheduler
	RefreshesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagecache_refreshes_scheduled_total",
			Help: "Total number of refresh units handed to a scheduler",
		},
		[]string{"scheduler"}, // "asynq", "local"
	)

	// RefreshesCoalesced tracks creates that joined an in-flight create for the same key
	RefreshesCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagecache_refreshes_coalesced_total",
			Help: "Total number of page creates coalesced into an in-flight create",
		},
	)

	// CreatesTotal tracks page creates by result
	CreatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagecache_creates_total",
			Help: "Total number of page creates by result",
		},
		[]string{"result"}, // "stored", "origin_error", "store_error"
	)

	// StoreErrors tracks cache store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagecache_store_errors_total",
			Help: "Total number of page store operation errors",
		},
		[]string{"operation"}, // "get", "put", "delete", "stat", "list", "clear"
	)
)
