package provider

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestFallbackPrefersLive(t *testing.T) {
	res := FetchWithFallback(
		"x",
		func() (int, error) { return 42, nil },
		func() (int, string, bool) { return 1, "2026-08-01", true },
		func() int { return 0 },
		24*time.Hour, testNow,
	)
	assert.Equal(t, 42, res.Data)
	assert.Equal(t, QualityRealtime, res.Quality)
	assert.Equal(t, "api", res.Source)
}

func TestFallbackUsesFreshCache(t *testing.T) {
	res := FetchWithFallback(
		"x",
		func() (int, error) { return 0, errors.New("api down") },
		func() (int, string, bool) { return 7, testNow.Format("2006-01-02"), true },
		func() int { return 0 },
		48*time.Hour, testNow,
	)
	assert.Equal(t, 7, res.Data)
	assert.Equal(t, QualityCached, res.Quality)
	assert.Equal(t, "db", res.Source)
}

func TestFallbackMarksStaleCache(t *testing.T) {
	res := FetchWithFallback(
		"x",
		func() (int, error) { return 0, errors.New("api down") },
		func() (int, string, bool) { return 7, "2026-06-01", true },
		func() int { return 0 },
		24*time.Hour, testNow,
	)
	assert.Equal(t, QualityStale, res.Quality)
}

func TestFallbackNeutralDefault(t *testing.T) {
	res := FetchWithFallback(
		"x",
		func() (int, error) { return 0, errors.New("api down") },
		func() (int, string, bool) { return 0, "", false },
		func() int { return -1 },
		24*time.Hour, testNow,
	)
	assert.Equal(t, -1, res.Data)
	assert.Equal(t, QualityDefault, res.Quality)
	assert.Equal(t, "default", res.Source)
}

func TestQualityStrings(t *testing.T) {
	assert.Equal(t, "REALTIME", QualityRealtime.String())
	assert.Equal(t, "CACHED", QualityCached.String())
	assert.Equal(t, "STALE", QualityStale.String())
	assert.Equal(t, "DEFAULT", QualityDefault.String())
}
