package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrecision(t *testing.T) {
	t.Run("accepts configured range", func(t *testing.T) {
		p, err := NewPrecision(2)
		require.NoError(t, err)
		assert.Equal(t, int32(2), p.Places())
	})

	t.Run("rejects out of range", func(t *testing.T) {
		_, err := NewPrecision(-1)
		assert.Error(t, err)
		_, err = NewPrecision(5)
		assert.Error(t, err)
	})
}

func TestPrecision_Round(t *testing.T) {
	tests := []struct {
		name     string
		places   Precision
		input    string
		expected string
	}{
		{"half rounds to even down", 2, "10.125", "10.12"},
		{"half rounds to even up", 2, "10.135", "10.14"},
		{"non-half rounds normally", 2, "10.126", "10.13"},
		{"zero places", 0, "2.5", "2"},
		{"zero places odd", 0, "3.5", "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.places.Round(decimal.RequireFromString(tt.input))
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestPrecision_Percentage(t *testing.T) {
	p := DefaultPrecision
	got := p.Percentage(decimal.NewFromInt(1000), decimal.NewFromInt(5))
	assert.True(t, decimal.NewFromInt(50).Equal(got))

	got = p.Percentage(decimal.RequireFromString("333.33"), decimal.RequireFromString("2.5"))
	assert.True(t, decimal.RequireFromString("8.33").Equal(got), "got %s", got)
}

func TestNonNegativeAndMin(t *testing.T) {
	assert.True(t, NonNegative(decimal.NewFromInt(-3)).IsZero())
	assert.True(t, decimal.NewFromInt(3).Equal(NonNegative(decimal.NewFromInt(3))))
	assert.True(t, decimal.NewFromInt(2).Equal(Min(decimal.NewFromInt(2), decimal.NewFromInt(5))))
}
