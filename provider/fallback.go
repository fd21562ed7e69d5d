package provider

import (
	"time"

	"fundpilot/logger"
)

// Quality tags every enrichment value so downstream consumers can
// reason about confidence. Higher is fresher.
type Quality int

const (
	QualityDefault Quality = iota // neutral default value
	QualityStale                  // cache past its TTL
	QualityCached                 // cache within TTL
	QualityRealtime               // live API data
)

func (q Quality) String() string {
	switch q {
	case QualityRealtime:
		return "REALTIME"
	case QualityCached:
		return "CACHED"
	case QualityStale:
		return "STALE"
	default:
		return "DEFAULT"
	}
}

// DataResult is the uniform envelope of the three-tier fallback.
type DataResult[T any] struct {
	Data    T
	Quality Quality
	Source  string // api | db | default
}

// FetchWithFallback degrades live → cached → neutral default. liveFn
// returns the fresh value or an error; cachedFn returns the cached
// value plus its YYYY-MM-DD date; defaultFn builds the neutral value.
// Deterministic given its inputs, so each tier stays testable alone.
func FetchWithFallback[T any](
	name string,
	liveFn func() (T, error),
	cachedFn func() (T, string, bool),
	defaultFn func() T,
	ttl time.Duration,
	now time.Time,
) DataResult[T] {
	if liveFn != nil {
		data, err := liveFn()
		if err == nil {
			return DataResult[T]{Data: data, Quality: QualityRealtime, Source: "api"}
		}
		logger.Debugf("%s live fetch: %v", name, err)
	}

	if cachedFn != nil {
		if data, updatedAt, ok := cachedFn(); ok {
			quality := QualityStale
			if t, err := time.Parse("2006-01-02", updatedAt); err == nil && now.Sub(t) < ttl {
				quality = QualityCached
			}
			return DataResult[T]{Data: data, Quality: quality, Source: "db"}
		}
	}

	return DataResult[T]{Data: defaultFn(), Quality: QualityDefault, Source: "default"}
}
