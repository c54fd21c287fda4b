package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		amount   int64
		decimals uint8
		want     string
	}{
		{1_500_000, 6, "1.5"},
		{1, 6, "0.000001"},
		{0, 6, "0"},
		{42, 0, "42"},
	}
	for _, tt := range tests {
		got, err := FormatUnits(sdkmath.NewInt(tt.amount), tt.decimals)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := FormatUnits(sdkmath.NewInt(1), MaxDecimals+1)
	assert.ErrorIs(t, err, ErrInvalidPrecision)
	_, err = FormatUnits(sdkmath.Int{}, 6)
	assert.ErrorIs(t, err, ErrAmountNil)
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"whole", "12", "12000000", nil},
		{"fraction", "1.5", "1500000", nil},
		{"smallest unit", "0.000001", "1", nil},
		{"too precise", "0.0000001", "", ErrTooManyDecimals},
		{"negative", "-1", "", ErrAmountNegative},
		{"empty", "  ", "", ErrAmountNil},
		{"garbage", "abc", "", ErrConversionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnits(tt.input, 6)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount(" 1500000 ")
	require.NoError(t, err)
	assert.Equal(t, "1500000", got.String())

	_, err = ParseAmount("1.5")
	assert.ErrorIs(t, err, ErrConversionFailed)
	_, err = ParseAmount("-3")
	assert.ErrorIs(t, err, ErrAmountNegative)
	_, err = ParseAmount("")
	assert.ErrorIs(t, err, ErrAmountNil)
}
