// Command interestcalc prints the simple-interest breakdown for a deposit held
// between two dates.
//
//	interestcalc -balance 1000000 -from 2024-01-01 -to 2024-04-01 -rate 0.06
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"deposito-ledger/interest"
	"deposito-ledger/model"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("interestcalc", flag.ContinueOnError)
	balance := fs.String("balance", "", "starting balance")
	from := fs.String("from", "", "deposit date, YYYY-MM-DD")
	to := fs.String("to", time.Now().Format(model.DateLayout), "withdrawal date, YYYY-MM-DD")
	rate := fs.String("rate", "", "yearly return as a fraction, e.g. 0.05")
	if err := fs.Parse(args); err != nil {
		return err
	}

	start, err := decimal.NewFromString(*balance)
	if err != nil || start.IsNegative() {
		return fmt.Errorf("-balance must be a non-negative number, got %q", *balance)
	}
	yearly, err := decimal.NewFromString(*rate)
	if err != nil || yearly.IsNegative() || yearly.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("-rate must be between 0 and 1, got %q", *rate)
	}
	deposit, err := time.Parse(model.DateLayout, *from)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	withdrawal, err := time.Parse(model.DateLayout, *to)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}

	calc := interest.Calculate(start, deposit, withdrawal, yearly).Rounded(2)
	printCalculation(out, calc)
	return nil
}

func printCalculation(out io.Writer, c interest.Calculation) {
	label := color.New(color.FgCyan).SprintFunc()
	value := color.New(color.Bold).SprintFunc()
	earned := color.New(color.FgGreen, color.Bold).SprintFunc()

	fmt.Fprintf(out, "%s %s\n", label("Starting balance:"), value("Rp "+c.StartingBalance.StringFixed(2)))
	fmt.Fprintf(out, "%s %s\n", label("Months held:     "), value(c.MonthsHeld))
	fmt.Fprintf(out, "%s %s\n", label("Yearly return:   "), value(c.YearlyReturn.Mul(decimal.NewFromInt(100)).String()+"%"))
	fmt.Fprintf(out, "%s %s\n", label("Monthly return:  "), value(c.MonthlyReturn.Mul(decimal.NewFromInt(100)).String()+"%"))
	fmt.Fprintf(out, "%s %s\n", label("Interest earned: "), earned("Rp "+c.InterestEarned.StringFixed(2)))
	fmt.Fprintf(out, "%s %s\n", label("Ending balance:  "), value("Rp "+c.EndingBalance.StringFixed(2)))
}
