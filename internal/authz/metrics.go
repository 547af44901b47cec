package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	cacheEventHit       = "hit"
	cacheEventMiss      = "miss"
	cacheEventLoadError = "load_error"

	buildOutcomeHit      = "cache_hit"
	buildOutcomeBuilt    = "built"
	buildOutcomeDegraded = "degraded"
)

var (
	// cacheEvents counts permission cache lookups by outcome.
	cacheEvents = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Name: "evalforge_permission_cache_events_total",
			Help: "Permission cache lookups, differentiated by outcome.",
		},
		[]string{"event"},
	)

	// contextBuilds counts auth context resolutions by outcome.
	contextBuilds = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Name: "evalforge_auth_context_builds_total",
			Help: "Auth context resolutions, differentiated by outcome.",
		},
		[]string{"outcome"},
	)
)
