// Package interest computes simple, non-compounding interest on a savings
// balance for the whole calendar months it was held.
package interest

import (
	"time"

	"github.com/shopspring/decimal"
)

var monthsPerYear = decimal.NewFromInt(12)

// Calculation is the accrual breakdown for a single withdrawal. It is produced
// fresh per request and never stored on its own.
type Calculation struct {
	StartingBalance decimal.Decimal `json:"starting_balance"`
	MonthsHeld      int             `json:"months_held"`
	MonthlyReturn   decimal.Decimal `json:"monthly_return"`
	YearlyReturn    decimal.Decimal `json:"yearly_return"`
	InterestEarned  decimal.Decimal `json:"interest_earned"`
	EndingBalance   decimal.Decimal `json:"ending_balance"`
}

// Calculate returns the simple interest earned by startingBalance between
// depositDate and withdrawalDate at yearlyReturn (a fraction, 0.05 = 5%).
//
// interestEarned = startingBalance × monthsHeld × yearlyReturn / 12
//
// yearlyReturn is not clamped; callers validate it. Nothing is rounded apart
// from the decimal division itself, so results can be stored as-is.
func Calculate(startingBalance decimal.Decimal, depositDate, withdrawalDate time.Time, yearlyReturn decimal.Decimal) Calculation {
	months := MonthsBetween(depositDate, withdrawalDate)

	// Divide last: balance × months × rate is exact, and only the final /12 can
	// produce a non-terminating expansion.
	interestEarned := startingBalance.
		Mul(decimal.NewFromInt(int64(months))).
		Mul(yearlyReturn).
		Div(monthsPerYear)

	return Calculation{
		StartingBalance: startingBalance,
		MonthsHeld:      months,
		MonthlyReturn:   yearlyReturn.Div(monthsPerYear),
		YearlyReturn:    yearlyReturn,
		InterestEarned:  interestEarned,
		EndingBalance:   startingBalance.Add(interestEarned),
	}
}

// MonthsBetween returns the number of whole calendar months from start to end,
// or 0 when end is before start.
//
// The month-boundary difference is reduced by one when end's day-of-month is
// earlier than start's, unless end is the last day of its month: Jan 31 to
// Feb 29 is one month, Jan 15 to Feb 14 is zero. Both dates are read as UTC
// calendar dates, whatever location they carry; time of day is ignored.
func MonthsBetween(start, end time.Time) int {
	sy, sm, sd := start.UTC().Date()
	ey, em, ed := end.UTC().Date()

	months := (ey-sy)*12 + int(em) - int(sm)
	if ed < sd && !isLastDayOfMonth(ey, em, ed) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func isLastDayOfMonth(year int, month time.Month, day int) bool {
	return day == daysIn(year, month)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month normalises to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Rounded returns a copy with every money value rounded to places, for
// display only.
func (c Calculation) Rounded(places int32) Calculation {
	c.StartingBalance = c.StartingBalance.Round(places)
	c.InterestEarned = c.InterestEarned.Round(places)
	c.EndingBalance = c.EndingBalance.Round(places)
	return c
}
