package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransactionJSON checks the wire shape of ledger entries.
func TestTransactionJSON(t *testing.T) {
	date := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("deposit omits interest fields", func(t *testing.T) {
		// Arrange
		tx := Transaction{
			ID:            "tx-1",
			AccountID:     "acc-1",
			Type:          TransactionTypeDeposit,
			Amount:        decimal.NewFromInt(500000),
			Date:          date,
			BalanceBefore: decimal.Zero,
			BalanceAfter:  decimal.NewFromInt(500000),
			CreatedAt:     date,
		}

		// Act
		data, err := json.Marshal(tx)
		require.NoError(t, err)

		// Assert
		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.NotContains(t, raw, "interest_earned")
		assert.NotContains(t, raw, "months_held")
		assert.Equal(t, "500000", raw["amount"])
		assert.Equal(t, "DEPOSIT", raw["type"])
	})

	t.Run("withdrawal keeps full interest precision", func(t *testing.T) {
		// Arrange
		interest, err := decimal.NewFromString("5833.3333333333333333")
		require.NoError(t, err)
		months := 1
		tx := Transaction{
			Type:           TransactionTypeWithdrawal,
			Amount:         decimal.NewFromInt(100),
			InterestEarned: &interest,
			MonthsHeld:     &months,
		}

		// Act
		data, err := json.Marshal(tx)
		require.NoError(t, err)
		var decoded Transaction
		require.NoError(t, json.Unmarshal(data, &decoded))

		// Assert
		require.NotNil(t, decoded.InterestEarned)
		require.NotNil(t, decoded.MonthsHeld)
		assert.True(t, interest.Equal(*decoded.InterestEarned), "got %s", decoded.InterestEarned)
		assert.Equal(t, 1, *decoded.MonthsHeld)
	})
}

func TestTransactionTypeValid(t *testing.T) {
	assert.True(t, TransactionTypeDeposit.Valid())
	assert.True(t, TransactionTypeWithdrawal.Valid())
	assert.False(t, TransactionType("TRANSFER").Valid())
	assert.False(t, TransactionType("").Valid())
}

func TestDepositoTypeRequestJSON(t *testing.T) {
	t.Run("yearly return accepts string and number", func(t *testing.T) {
		var fromString, fromNumber DepositoTypeRequest
		require.NoError(t, json.Unmarshal([]byte(`{"name":"Gold","yearly_return":"0.07"}`), &fromString))
		require.NoError(t, json.Unmarshal([]byte(`{"name":"Gold","yearly_return":0.07}`), &fromNumber))

		assert.True(t, decimal.RequireFromString("0.07").Equal(fromString.YearlyReturn))
		assert.True(t, decimal.RequireFromString("0.07").Equal(fromNumber.YearlyReturn))
	})

	t.Run("invalid yearly return", func(t *testing.T) {
		var req DepositoTypeRequest
		err := json.Unmarshal([]byte(`{"name":"Gold","yearly_return":"seven"}`), &req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "can't convert seven to decimal")
	})
}
