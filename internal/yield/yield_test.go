package yield

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("weekly")
	require.NoError(t, err)
	assert.Equal(t, Weekly, p)
	assert.Equal(t, int64(52), p.PerYear())

	_, err = ParsePeriod("monthly")
	assert.Error(t, err)
}

func TestPeriodElapsed(t *testing.T) {
	assert.Equal(t, int64(0), Daily.Elapsed(start, start))
	assert.Equal(t, int64(0), Daily.Elapsed(start, start.Add(-48*time.Hour)))
	assert.Equal(t, int64(0), Daily.Elapsed(start, start.Add(23*time.Hour)))
	assert.Equal(t, int64(3), Daily.Elapsed(start, start.Add(75*time.Hour)))
	assert.Equal(t, int64(2), Weekly.Elapsed(start, start.AddDate(0, 0, 20)))
}

func TestAccrue(t *testing.T) {
	rate := decimal.NewFromInt(12)

	t.Run("full year daily", func(t *testing.T) {
		got := Accrue(100000, rate, Daily, 365)
		assert.True(t, got.Equal(decimal.NewFromInt(12000)), got.String())
	})

	t.Run("full year weekly", func(t *testing.T) {
		got := Accrue(100000, rate, Weekly, 52)
		assert.True(t, got.Equal(decimal.NewFromInt(12000)), got.String())
	})

	t.Run("no compounding", func(t *testing.T) {
		twoYears := Accrue(100000, rate, Daily, 730)
		assert.True(t, twoYears.Equal(decimal.NewFromInt(24000)), twoYears.String())
	})

	t.Run("zero inputs", func(t *testing.T) {
		assert.True(t, Accrue(0, rate, Daily, 10).IsZero())
		assert.True(t, Accrue(100000, decimal.Zero, Daily, 10).IsZero())
		assert.True(t, Accrue(100000, rate, Daily, 0).IsZero())
	})
}

func TestAccruedYield(t *testing.T) {
	rate := decimal.RequireFromString("12")
	lots := []Lot{
		{Units: 10, Cost: 100000, At: start},
		{Units: 5, Cost: 50000, At: start.AddDate(0, 0, 10)},
	}
	asOf := start.AddDate(0, 0, 30)

	// 100000*12*30/36500 = 986.30 and 50000*12*20/36500 = 328.76, floored once.
	assert.Equal(t, int64(1315), AccruedYield(lots, rate, Daily, asOf, nil))

	t.Run("idempotent", func(t *testing.T) {
		assert.Equal(t, AccruedYield(lots, rate, Daily, asOf, nil), AccruedYield(lots, rate, Daily, asOf, nil))
	})

	t.Run("capped at maturity", func(t *testing.T) {
		maturity := start.AddDate(0, 0, 10)
		// only the first lot has accrued: 100000*12*10/36500 = 328.76
		assert.Equal(t, int64(328), AccruedYield(lots, rate, Daily, asOf, &maturity))
	})

	t.Run("purchase in the future", func(t *testing.T) {
		assert.Equal(t, int64(0), AccruedYield(lots, rate, Daily, start.Add(-time.Hour), nil))
	})
}

func TestWeightedAverage(t *testing.T) {
	units, cost, avg := WeightedAverage([]Lot{
		{Units: 3, Cost: 30000},
		{Units: 1, Cost: 14000},
	})
	assert.Equal(t, int64(4), units)
	assert.Equal(t, int64(44000), cost)
	assert.Equal(t, int64(11000), avg)

	_, _, avg = WeightedAverage([]Lot{{Units: 3, Cost: 1000}})
	assert.Equal(t, int64(333), avg)

	_, _, avg = WeightedAverage([]Lot{{Units: 3, Cost: 1001}, {Units: 0, Cost: 1}})
	assert.Equal(t, int64(334), avg)

	units, _, avg = WeightedAverage(nil)
	assert.Zero(t, units)
	assert.Zero(t, avg)
}

func TestReconcileVolume(t *testing.T) {
	v := ReconcileVolume(100, []int64{10, 20, 5})
	assert.Equal(t, Volume{Sold: 35, Available: 65}, v)

	v = ReconcileVolume(10, []int64{8, 8})
	assert.Equal(t, Volume{Sold: 16, Available: 0, Oversold: true}, v)
}

func TestCost(t *testing.T) {
	cost, ok := Cost(10, 10000)
	assert.True(t, ok)
	assert.Equal(t, int64(100000), cost)

	_, ok = Cost(1<<24, 1<<40)
	assert.False(t, ok)
	_, ok = Cost(-1, 100)
	assert.False(t, ok)

	cost, ok = Cost(0, math.MaxInt64)
	assert.True(t, ok)
	assert.Zero(t, cost)
	cost, ok = Cost(1, math.MaxInt64)
	assert.True(t, ok)
	assert.Equal(t, int64(math.MaxInt64), cost)
}

func TestSummarize(t *testing.T) {
	s := Summarize(5000, []Position{
		{Symbol: "FGN26", Units: 10, TotalCost: 100000, CurrentPrice: 11000, AccruedYield: 700},
		{Symbol: "TBILL", Units: 2, TotalCost: 50000, CurrentPrice: 25000, AccruedYield: 300},
	})

	assert.Equal(t, int64(150000), s.TotalInvested)
	assert.Equal(t, int64(160000), s.CurrentValue)
	assert.Equal(t, int64(1000), s.AccruedYield)
	assert.Equal(t, int64(10000), s.UnrealizedGain)
	assert.Equal(t, int64(166000), s.NetWorth)
	assert.True(t, s.GainPercent.Equal(decimal.RequireFromString("6.67")), s.GainPercent.String())

	require.Len(t, s.Positions, 2)
	assert.Equal(t, int64(110000), s.Positions[0].CurrentValue)
	assert.True(t, s.Positions[0].GainPercent.Equal(decimal.NewFromInt(10)))
	assert.True(t, s.Positions[0].Allocation.Equal(decimal.RequireFromString("68.75")), s.Positions[0].Allocation.String())
	assert.True(t, s.Positions[1].GainPercent.IsZero())

	empty := Summarize(0, nil)
	assert.Empty(t, empty.Positions)
	assert.True(t, empty.GainPercent.IsZero())
}
