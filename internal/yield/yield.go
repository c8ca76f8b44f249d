// Package yield holds the platform's financial arithmetic: simple-interest
// accrual, weighted-average cost basis, portfolio aggregation and supply
// reconciliation. All amounts are kobo. Nothing here touches the database.
package yield

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Period is the accrual granularity.
type Period string

const (
	Daily  Period = "daily"
	Weekly Period = "weekly"
)

var hundred = decimal.NewFromInt(100)

// ParsePeriod accepts "daily" or "weekly".
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case Daily, Weekly:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown yield period %q", s)
}

// PerYear returns the number of periods in a year.
func (p Period) PerYear() int64 {
	if p == Weekly {
		return 52
	}
	return 365
}

// Length returns the wall-clock length of one period.
func (p Period) Length() time.Duration {
	if p == Weekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// Elapsed counts whole periods from start to end. Negative spans count as zero.
func (p Period) Elapsed(start, end time.Time) int64 {
	if !end.After(start) {
		return 0
	}
	return int64(end.Sub(start) / p.Length())
}

// Accrue returns principal × annualRate / periodsPerYear × periods, unrounded.
// annualRate is a percentage, so 12.5 means 12.5%.
func Accrue(principal int64, annualRate decimal.Decimal, p Period, periods int64) decimal.Decimal {
	if principal <= 0 || periods <= 0 || !annualRate.IsPositive() {
		return decimal.Zero
	}
	num := decimal.NewFromInt(principal).Mul(annualRate).Mul(decimal.NewFromInt(periods))
	return num.Div(hundred.Mul(decimal.NewFromInt(p.PerYear())))
}

// Lot is one purchase: units bought, kobo paid, and when.
type Lot struct {
	Units int64
	Cost  int64
	At    time.Time
}

// AccruedYield sums the accrual of every lot up to asOf, capped at maturity
// when one is set, and floors the total to whole kobo.
func AccruedYield(lots []Lot, annualRate decimal.Decimal, p Period, asOf time.Time, maturity *time.Time) int64 {
	if maturity != nil && asOf.After(*maturity) {
		asOf = *maturity
	}
	total := decimal.Zero
	for _, l := range lots {
		total = total.Add(Accrue(l.Cost, annualRate, p, p.Elapsed(l.At, asOf)))
	}
	return total.Floor().IntPart()
}

// WeightedAverage returns total units, total cost and the average unit cost
// rounded half-up to the kobo.
func WeightedAverage(lots []Lot) (units, cost, average int64) {
	for _, l := range lots {
		units += l.Units
		cost += l.Cost
	}
	if units <= 0 {
		return units, cost, 0
	}
	average = decimal.NewFromInt(cost).Div(decimal.NewFromInt(units)).Round(0).IntPart()
	return units, cost, average
}

// Cost returns units × price in kobo. ok is false when either side is
// negative or the product does not fit in an int64.
func Cost(units, price int64) (cost int64, ok bool) {
	if units < 0 || price < 0 {
		return 0, false
	}
	if units != 0 && price > math.MaxInt64/units {
		return 0, false
	}
	return units * price, true
}

// Volume is the reconciled supply position of one token.
type Volume struct {
	Sold      int64 `json:"sold"`
	Available int64 `json:"available"`
	Oversold  bool  `json:"oversold"`
}

// ReconcileVolume derives sold and available units from completed purchases.
func ReconcileVolume(supply int64, purchased []int64) Volume {
	var v Volume
	for _, u := range purchased {
		v.Sold += u
	}
	v.Available = supply - v.Sold
	if v.Available < 0 {
		v.Available = 0
		v.Oversold = true
	}
	return v
}
