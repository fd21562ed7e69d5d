package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverFindsAllStrategies(t *testing.T) {
	names := Names()
	assert.ElementsMatch(t, []string{
		"macro_cycle", "manager_alpha", "mean_reversion",
		"momentum", "trend_following", "valuation",
	}, names)
}

func TestRegisterDuplicateName(t *testing.T) {
	err := Register("trend_following", 0.1, func() Strategy { return &TrendFollowing{} })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestRegisterWeightBounds(t *testing.T) {
	assert.Error(t, Register("bogus_weight", 1.5, func() Strategy { return &TrendFollowing{} }))
}

func TestDiscoverIsSorted(t *testing.T) {
	entries := Discover()
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Name, entries[i].Name)
	}
}

func TestFactoriesProduceNamedStrategies(t *testing.T) {
	for _, e := range Discover() {
		assert.Equal(t, e.Name, e.Factory().Name())
		assert.GreaterOrEqual(t, e.DefaultWeight, 0.0)
		assert.LessOrEqual(t, e.DefaultWeight, 1.0)
	}
}
