package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		name           string
		price          string
		taxRate        string
		poolItem       bool
		wantBase       string
		wantCommission string
		wantTax        string
		wantSubtotal   string
	}{
		{
			name:           "retail no tax",
			price:          "100",
			taxRate:        "0",
			wantBase:       "75",
			wantCommission: "25",
			wantTax:        "0",
			wantSubtotal:   "100",
		},
		{
			name:           "pool no tax",
			price:          "100",
			taxRate:        "0",
			poolItem:       true,
			wantBase:       "90",
			wantCommission: "10",
			wantTax:        "0",
			wantSubtotal:   "100",
		},
		{
			name:           "retail 15% tax",
			price:          "115",
			taxRate:        "15",
			wantBase:       "75",
			wantCommission: "25",
			wantTax:        "15",
			wantSubtotal:   "100",
		},
		{
			name:           "pool 15% tax",
			price:          "115",
			taxRate:        "15",
			poolItem:       true,
			wantBase:       "90",
			wantCommission: "10",
			wantTax:        "15",
			wantSubtotal:   "100",
		},
		{
			name:           "awkward division rounds to cents",
			price:          "99.99",
			taxRate:        "15",
			wantBase:       "65.21",
			wantCommission: "21.74",
			wantTax:        "13.04",
			wantSubtotal:   "86.95",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decompose(d(tt.price), d(tt.taxRate), tt.poolItem)
			require.NoError(t, err)

			assert.True(t, d(tt.wantBase).Equal(got.BasePrice), "base: got %s", got.BasePrice)
			assert.True(t, d(tt.wantCommission).Equal(got.Commission), "commission: got %s", got.Commission)
			assert.True(t, d(tt.wantTax).Equal(got.Tax), "tax: got %s", got.Tax)
			assert.True(t, d(tt.wantSubtotal).Equal(got.SubtotalBeforeTax), "subtotal: got %s", got.SubtotalBeforeTax)
		})
	}
}

// The decomposition must never create or lose value: for any valid
// input, FinalPrice reconstructs the input price exactly.
func TestDecompose_RoundTrip(t *testing.T) {
	prices := []string{"0.01", "1", "9.99", "42.37", "100", "115", "999.99", "12345.67"}
	taxRates := []string{"0", "5", "14.5", "15", "20"}

	for _, p := range prices {
		for _, tr := range taxRates {
			for _, pool := range []bool{false, true} {
				got, err := Decompose(d(p), d(tr), pool)
				require.NoError(t, err)

				assert.True(t, d(p).Equal(got.FinalPrice),
					"price=%s taxRate=%s pool=%v: final %s", p, tr, pool, got.FinalPrice)
				sum := got.BasePrice.Add(got.Commission).Add(got.Tax)
				assert.True(t, d(p).Equal(sum),
					"price=%s taxRate=%s pool=%v: parts sum to %s", p, tr, pool, sum)
			}
		}
	}
}

func TestDecompose_CommissionTiering(t *testing.T) {
	retail, err := Decompose(d("100"), decimal.Zero, false)
	require.NoError(t, err)
	pool, err := Decompose(d("100"), decimal.Zero, true)
	require.NoError(t, err)

	assert.True(t, RetailRate.Equal(retail.CommissionRate))
	assert.True(t, PoolRate.Equal(pool.CommissionRate))
	assert.False(t, retail.CommissionRate.Equal(pool.CommissionRate))
}

func TestDecompose_ZeroTaxShortCircuit(t *testing.T) {
	got, err := Decompose(d("50"), decimal.Zero, false)
	require.NoError(t, err)

	assert.True(t, got.Tax.IsZero())
	assert.True(t, d("50").Equal(got.SubtotalBeforeTax))
}

func TestDecompose_RejectsNonPositivePrice(t *testing.T) {
	_, err := Decompose(decimal.Zero, decimal.Zero, false)
	require.ErrorIs(t, err, ErrNonPositivePrice)

	_, err = Decompose(d("-1"), decimal.Zero, false)
	require.ErrorIs(t, err, ErrNonPositivePrice)
}

func TestDecomposeTreehouse(t *testing.T) {
	got, err := DecomposeTreehouse(d("100"))
	require.NoError(t, err)

	// retail = 100/2 = 50, commission = 25% of 50 = 12.50, creator = 37.50
	assert.True(t, d("50").Equal(got.RetailPrice))
	assert.True(t, d("50").Equal(got.ProductionCost))
	assert.True(t, d("12.5").Equal(got.PlatformCommission))
	assert.True(t, d("37.5").Equal(got.CreatorEarnings))

	// creator earnings + production cost + commission = customer price
	sum := got.CreatorEarnings.Add(got.ProductionCost).Add(got.PlatformCommission)
	assert.True(t, got.CustomerPrice.Equal(sum))
}

func TestDecomposeTreehouse_RejectsNonPositivePrice(t *testing.T) {
	_, err := DecomposeTreehouse(decimal.Zero)
	require.ErrorIs(t, err, ErrNonPositivePrice)
}
