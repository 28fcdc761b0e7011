package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(100.50), USD)
		require.NoError(t, err)
		assert.Equal(t, USD, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(100.50)))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromFloat(100), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})
}

func TestNewMoneyFromString(t *testing.T) {
	t.Run("valid string", func(t *testing.T) {
		m, err := NewMoneyFromString("123.45", VES)
		require.NoError(t, err)
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(123.45)))
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number", VES)
		assert.Error(t, err)
	})
}

func TestNewMoneyUSDFromString(t *testing.T) {
	m, err := NewMoneyUSDFromString("199.99")
	require.NoError(t, err)
	assert.Equal(t, USD, m.Currency())
	assert.Equal(t, "199.99", m.StringFixed(2))
}

func TestZero(t *testing.T) {
	m := Zero(VES)
	assert.True(t, m.IsZero())
	assert.Equal(t, VES, m.Currency())

	usd := ZeroUSD()
	assert.True(t, usd.IsZero())
	assert.Equal(t, USD, usd.Currency())
}

func TestMoneyIsPositiveNegativeZero(t *testing.T) {
	positive := NewMoneyUSDFromFloat(100)
	negative := NewMoneyUSDFromFloat(-100)
	zero := ZeroUSD()

	assert.True(t, positive.IsPositive())
	assert.False(t, positive.IsNegative())
	assert.False(t, positive.IsZero())

	assert.False(t, negative.IsPositive())
	assert.True(t, negative.IsNegative())
	assert.False(t, negative.IsZero())

	assert.False(t, zero.IsPositive())
	assert.False(t, zero.IsNegative())
	assert.True(t, zero.IsZero())
}

func TestMoneyAdd(t *testing.T) {
	t.Run("adds same currency", func(t *testing.T) {
		m1 := NewMoneyUSDFromFloat(100.50)
		m2 := NewMoneyUSDFromFloat(50.25)
		result, err := m1.Add(m2)
		require.NoError(t, err)
		assert.True(t, result.Amount().Equal(decimal.NewFromFloat(150.75)))
	})

	t.Run("fails for different currencies", func(t *testing.T) {
		m1, _ := NewMoneyFromFloat(100, USD)
		m2, _ := NewMoneyFromFloat(50, VES)
		_, err := m1.Add(m2)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "different currencies")
	})
}

func TestMoneySubtract(t *testing.T) {
	t.Run("subtracts same currency", func(t *testing.T) {
		m1 := NewMoneyUSDFromFloat(100)
		m2 := NewMoneyUSDFromFloat(30.50)
		result, err := m1.Subtract(m2)
		require.NoError(t, err)
		assert.Equal(t, "69.50", result.StringFixed(2))
	})

	t.Run("fails for different currencies", func(t *testing.T) {
		m1, _ := NewMoneyFromFloat(100, USD)
		m2, _ := NewMoneyFromFloat(50, EUR)
		_, err := m1.Subtract(m2)
		assert.Error(t, err)
	})

	t.Run("can go negative", func(t *testing.T) {
		m1 := NewMoneyUSDFromFloat(10)
		m2 := NewMoneyUSDFromFloat(25)
		result, err := m1.Subtract(m2)
		require.NoError(t, err)
		assert.True(t, result.IsNegative())
	})
}

func TestMoneyMultiplyDivide(t *testing.T) {
	m := NewMoneyUSDFromFloat(10)

	doubled := m.Multiply(decimal.NewFromInt(2))
	assert.Equal(t, "20.00", doubled.StringFixed(2))

	tripled := m.MultiplyByInt(3)
	assert.Equal(t, "30.00", tripled.StringFixed(2))

	half, err := m.Divide(decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.Equal(t, "5.00", half.StringFixed(2))

	_, err = m.Divide(decimal.Zero)
	assert.Error(t, err)
}

func TestMoneyRoundCurrency(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"rounds half up", "10.005", "10.01"},
		{"rounds down below half", "10.004", "10.00"},
		{"exact amount unchanged", "250.00", "250.00"},
		{"many decimals", "33.33333", "33.33"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyUSDFromString(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.RoundCurrency().StringFixed(2))
		})
	}
}

func TestMoneyComparisons(t *testing.T) {
	small := NewMoneyUSDFromFloat(10)
	big := NewMoneyUSDFromFloat(20)

	lt, err := small.LessThan(big)
	require.NoError(t, err)
	assert.True(t, lt)

	gte, err := big.GreaterThanOrEqual(small)
	require.NoError(t, err)
	assert.True(t, gte)

	other, _ := NewMoneyFromFloat(10, VES)
	_, err = small.LessThan(other)
	assert.Error(t, err)

	assert.True(t, small.Equals(NewMoneyUSDFromFloat(10)))
	assert.False(t, small.Equals(other))
}

func TestMoneyNegateAbs(t *testing.T) {
	m := NewMoneyUSDFromFloat(42.50)
	neg := m.Negate()
	assert.True(t, neg.IsNegative())
	assert.True(t, neg.Abs().Equals(m))
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	m := NewMoneyUSDFromFloat(150.75)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"150.75","currency":"USD"}`, string(data))

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, m.Equals(decoded))
}

func TestMoneyScanValue(t *testing.T) {
	m := NewMoneyUSDFromFloat(99.99)
	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "99.99", v)

	var scanned Money
	require.NoError(t, scanned.Scan("99.99"))
	assert.Equal(t, DefaultCurrency, scanned.Currency())
	assert.Equal(t, "99.99", scanned.StringFixed(2))

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())

	assert.Error(t, scanned.Scan(12345))
}

func TestMoneyAllocate(t *testing.T) {
	t.Run("splits evenly", func(t *testing.T) {
		m := NewMoneyUSDFromFloat(100)
		parts, err := m.Allocate(4)
		require.NoError(t, err)
		require.Len(t, parts, 4)
		for _, p := range parts {
			assert.Equal(t, "25.00", p.StringFixed(2))
		}
	})

	t.Run("distributes remainder cents", func(t *testing.T) {
		m := NewMoneyUSDFromFloat(100)
		parts, err := m.Allocate(3)
		require.NoError(t, err)
		require.Len(t, parts, 3)

		total := ZeroUSD()
		for _, p := range parts {
			total = total.MustAdd(p)
		}
		assert.True(t, total.Equals(m))
	})

	t.Run("rejects non-positive parts", func(t *testing.T) {
		m := NewMoneyUSDFromFloat(100)
		_, err := m.Allocate(0)
		assert.Error(t, err)
	})
}

func TestMoneyCalculatePercentage(t *testing.T) {
	m := NewMoneyUSDFromFloat(200)
	p := m.CalculatePercentage(decimal.NewFromFloat(12.5))
	assert.Equal(t, "25.00", p.RoundCurrency().StringFixed(2))
}
