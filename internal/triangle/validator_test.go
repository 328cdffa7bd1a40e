package triangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func defaultValidator() Validator {
	return NewValidator(domain.NewStableSet(domain.DefaultStablecoins...))
}

func TestValidate_ForwardMiddleLeg(t *testing.T) {
	v := defaultValidator()
	for _, tc := range []struct{ x, y string }{{"BTC", "ETH"}, {"SOL", "BNB"}, {"XRP", "ADA"}} {
		active := domain.NewPairSet(tc.x+"/USDT", tc.x+"/"+tc.y, tc.y+"/USDT")

		cycle, ok := v.Validate(domain.Triangle{Stable: "USDT", X: tc.x, Y: tc.y}, active)

		require.True(t, ok, "%s/%s", tc.x, tc.y)
		assert.Equal(t, domain.Cycle{tc.x + "/USDT", tc.x + "/" + tc.y, tc.y + "/USDT"}, cycle)
		assert.Equal(t, "USDT", cycle.Stable())
	}
}

func TestValidate_ReverseMiddleLeg(t *testing.T) {
	v := defaultValidator()
	active := domain.NewPairSet("ETH/USDT", "BTC/ETH", "BTC/USDT")

	cycle, ok := v.Validate(domain.Triangle{Stable: "USDT", X: "ETH", Y: "BTC"}, active)

	require.True(t, ok)
	assert.Equal(t, domain.Cycle{"ETH/USDT", "BTC/ETH", "BTC/USDT"}, cycle)
}

func TestValidate_PrefersForwardMiddleLeg(t *testing.T) {
	v := defaultValidator()
	active := domain.NewPairSet("ETH/USDC", "ETH/BTC", "BTC/ETH", "BTC/USDC")

	cycle, ok := v.Validate(domain.Triangle{Stable: "USDC", X: "ETH", Y: "BTC"}, active)

	require.True(t, ok)
	assert.Equal(t, "ETH/BTC", cycle[1])
}

func TestValidate_NonStableStart(t *testing.T) {
	v := defaultValidator()
	active := domain.NewPairSet("ETH/BTC", "ETH/SOL", "SOL/BTC", "BTC/ETH")

	_, ok := v.Validate(domain.Triangle{Stable: "BTC", X: "ETH", Y: "SOL"}, active)

	assert.False(t, ok)
}

func TestValidate_MissingLeg(t *testing.T) {
	v := defaultValidator()
	full := []string{"BTC/USDT", "BTC/ETH", "ETH/USDT"}
	tri := domain.Triangle{Stable: "USDT", X: "BTC", Y: "ETH"}

	for drop := range full {
		var syms []string
		for i, s := range full {
			if i != drop {
				syms = append(syms, s)
			}
		}
		_, ok := v.Validate(tri, domain.NewPairSet(syms...))
		assert.False(t, ok, "missing %s", full[drop])
	}
}

func TestValidate_OpeningLegMustQuoteStable(t *testing.T) {
	v := defaultValidator()
	// USDT/BTC would sell the stablecoin as base; never accepted.
	active := domain.NewPairSet("USDT/BTC", "BTC/ETH", "ETH/USDT")

	_, ok := v.Validate(domain.Triangle{Stable: "USDT", X: "BTC", Y: "ETH"}, active)

	assert.False(t, ok)
}

func TestValidate_ClosingLegMustQuoteStable(t *testing.T) {
	v := defaultValidator()
	active := domain.NewPairSet("BTC/USDT", "BTC/ETH", "USDT/ETH")

	_, ok := v.Validate(domain.Triangle{Stable: "USDT", X: "BTC", Y: "ETH"}, active)

	assert.False(t, ok)
}

func TestValidate_DegenerateTriangles(t *testing.T) {
	v := defaultValidator()
	active := domain.NewPairSet("BTC/USDT", "USDC/USDT", "BTC/USDC")

	_, ok := v.Validate(domain.Triangle{Stable: "USDT", X: "BTC", Y: "BTC"}, active)
	assert.False(t, ok)

	_, ok = v.Validate(domain.Triangle{Stable: "USDT", X: "USDC", Y: "BTC"}, active)
	assert.False(t, ok)
}

func TestClosesAt(t *testing.T) {
	assert.True(t, closesAt(domain.Cycle{"A/USDT", "A/B", "B/USDT"}, "USDT"))
	assert.True(t, closesAt(domain.Cycle{"A/USDT", "B/A", "B/USDT"}, "USDT"))
	assert.False(t, closesAt(domain.Cycle{"A/USDT", "C/D", "B/USDT"}, "USDT"))
	assert.False(t, closesAt(domain.Cycle{"A/USDT", "A/B", "B/USDC"}, "USDT"))
	assert.False(t, closesAt(domain.Cycle{"A/USDT", "A-B", "B/USDT"}, "USDT"))
}
