package workflows

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/upstream/pos"
)

func TestParseStoreName_SplitsTypeAndRestaurant(t *testing.T) {
	storeType, restaurant, ok := ParseStoreName("Хоз. товары (Central)")
	require.True(t, ok)
	assert.Equal(t, "Хоз. товары", storeType)
	assert.Equal(t, "Central", restaurant)
}

func TestParseStoreName_RejectsMalformedNames(t *testing.T) {
	_, _, ok := ParseStoreName("no parens here")
	assert.False(t, ok)
}

func TestAccountBalances_SkipsNullAmountRatherThanTreatingAsZero(t *testing.T) {
	rows := []pos.RawRecord{
		{"Account.Name": "Хоз. товары (Central)", "Amount": "-5.0"},
		{"Account.Name": "Хоз. товары (Central)", "Amount": nil},
		{"Account.Name": "Хоз. товары (Central)", "Amount": "-2.5"},
	}
	balances := accountBalances(rows)
	require.Contains(t, balances, "Хоз. товары (Central)")
	assert.True(t, balances["Хоз. товары (Central)"].Equal(decimal.NewFromFloat(-7.5)))
}

func TestAccountBalances_IgnoresRowsMissingAccountName(t *testing.T) {
	rows := []pos.RawRecord{{"Amount": "-5.0"}}
	balances := accountBalances(rows)
	assert.Empty(t, balances)
}
