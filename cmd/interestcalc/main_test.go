package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	color.NoColor = true

	t.Run("prints breakdown", func(t *testing.T) {
		var out bytes.Buffer

		err := run([]string{"-balance", "1000000", "-from", "2024-01-01", "-to", "2024-04-01", "-rate", "0.06"}, &out)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Months held:      3")
		assert.Contains(t, out.String(), "Interest earned:  Rp 15000.00")
		assert.Contains(t, out.String(), "Ending balance:   Rp 1015000.00")
	})

	t.Run("rounds for display", func(t *testing.T) {
		var out bytes.Buffer

		err := run([]string{"-balance", "1000", "-from", "2024-01-31", "-to", "2024-02-29", "-rate", "0.07"}, &out)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Interest earned:  Rp 5.83")
	})

	for name, args := range map[string][]string{
		"negative balance": {"-balance", "-1", "-from", "2024-01-01", "-rate", "0.05"},
		"rate above one":   {"-balance", "100", "-from", "2024-01-01", "-rate", "1.5"},
		"bad from date":    {"-balance", "100", "-from", "01/01/2024", "-rate", "0.05"},
		"missing rate":     {"-balance", "100", "-from", "2024-01-01"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, run(args, &bytes.Buffer{}))
		})
	}
}
