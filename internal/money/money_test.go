package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMajor(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		currency string
		want     int64
		wantErr  error
	}{
		{name: "two decimals", in: "249.70", currency: "zar", want: 24970},
		{name: "whole number", in: "100", currency: "usd", want: 10000},
		{name: "single decimal", in: "0.1", currency: "eur", want: 10},
		{name: "smallest unit", in: "0.01", currency: "ZAR", want: 1},
		{name: "zero decimal currency", in: "500", currency: "jpy", want: 500},
		{name: "fraction of a cent", in: "1.005", currency: "zar", wantErr: ErrPrecision},
		{name: "fraction of a yen", in: "1.5", currency: "jpy", wantErr: ErrPrecision},
		{name: "garbage", in: "ten", currency: "zar", wantErr: ErrInvalidAmount},
		{name: "too large", in: "92233720368547758.08", currency: "zar", wantErr: ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMajor(tt.in, tt.currency)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMinorNegativeKeepsSign(t *testing.T) {
	got, err := ToMinor(decimal.RequireFromString("-3.25"), "usd")
	require.NoError(t, err)
	assert.Equal(t, int64(-325), got)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "R249.70", Format(24970, "zar"))
	assert.Equal(t, "$0.01", Format(1, "USD"))
	assert.Equal(t, "-€12.00", Format(-1200, "eur"))
	assert.Equal(t, "¥500", Format(500, "jpy"))
	assert.Equal(t, "CHF 3.10", Format(310, "chf"))
	assert.Equal(t, "200.01", FormatMajor(20001, "zar"))
}

func TestAdd(t *testing.T) {
	sum, err := Add(20000, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20001), sum)

	_, err = Add(math.MaxInt64/2+1, math.MaxInt64/2+1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = Add(math.MinInt64, -1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
