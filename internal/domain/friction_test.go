package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriction_Slippage(t *testing.T) {
	f := Friction{SlippageBps: 2}
	assert.InDelta(t, 100.02, f.BuyPrice(100), 1e-9)
	assert.InDelta(t, 99.98, f.SellPrice(100), 1e-9)

	none := Friction{}
	assert.Equal(t, 100.0, none.BuyPrice(100))
	assert.Equal(t, 100.0, none.SellPrice(100))
}

func TestFriction_CommissionFor(t *testing.T) {
	assert.Equal(t, 0.0, Friction{Commission: CommissionNone, CommissionValue: 5}.CommissionFor(10))
	assert.Equal(t, 1.0, Friction{Commission: CommissionFlat, CommissionValue: 1}.CommissionFor(10))
	assert.Equal(t, 0.0, Friction{Commission: CommissionFlat, CommissionValue: 1}.CommissionFor(0))
	assert.InDelta(t, 0.05, Friction{Commission: CommissionPerShare, CommissionValue: 0.005}.CommissionFor(10), 1e-12)
}

func TestFriction_SharesFor(t *testing.T) {
	// sin comisión: floor(1000 / 33) = 30
	assert.Equal(t, int64(30), Friction{}.SharesFor(1000, 33))

	// flat: floor((1000 - 10) / 33) = 30
	assert.Equal(t, int64(30), Friction{Commission: CommissionFlat, CommissionValue: 10}.SharesFor(1000, 33))
	// flat that eats the last share: floor((1000 - 11) / 33) = 29
	assert.Equal(t, int64(29), Friction{Commission: CommissionFlat, CommissionValue: 11}.SharesFor(1000, 33))

	// per share: floor(1000 / 34) = 29
	assert.Equal(t, int64(29), Friction{Commission: CommissionPerShare, CommissionValue: 1}.SharesFor(1000, 33))

	assert.Equal(t, int64(0), Friction{}.SharesFor(10, 33))
	assert.Equal(t, int64(0), Friction{}.SharesFor(0, 33))
	assert.Equal(t, int64(0), Friction{Commission: CommissionFlat, CommissionValue: 50}.SharesFor(40, 1))
}

func TestFriction_SharesForNeverLevers(t *testing.T) {
	f := Friction{SlippageBps: 2, Commission: CommissionPerShare, CommissionValue: 0.01}
	for _, budget := range []float64{99.99, 1000, 12345.67, 1e6} {
		for _, px := range []float64{0.37, 9.99, 101.3, 4999} {
			n := f.SharesFor(budget, px)
			assert.LessOrEqual(t, float64(n)*px+f.CommissionFor(n), budget)
		}
	}
}

func TestParseCommissionModel(t *testing.T) {
	m, err := ParseCommissionModel("")
	require.NoError(t, err)
	assert.Equal(t, CommissionNone, m)

	m, err = ParseCommissionModel("per_share")
	require.NoError(t, err)
	assert.Equal(t, CommissionPerShare, m)

	_, err = ParseCommissionModel("tiered")
	assert.Error(t, err)
}
