package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTiers(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		wholesale string
		retail    string
	}{
		{"zero", "0", "0", "0"},
		{"integer", "1000", "1300", "2000"},
		{"cents", "1234.56", "1604.928", "2469.12"},
		{"sub peso", "0.01", "0.013", "0.02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := decimal.RequireFromString(tt.base)
			wholesale, retail := ComputeTiers(base)

			assert.True(t, wholesale.Equal(decimal.RequireFromString(tt.wholesale)), "wholesale = %s", wholesale)
			assert.True(t, retail.Equal(decimal.RequireFromString(tt.retail)), "retail = %s", retail)
			assert.True(t, retail.Equal(base.Mul(decimal.NewFromInt(2))))
		})
	}
}

func TestComputeTiersDisplayRounding(t *testing.T) {
	wholesale, retail := ComputeTiers(decimal.RequireFromString("1234.56"))

	assert.Equal(t, "1604.93", wholesale.StringFixed(2))
	assert.Equal(t, "2469.12", retail.StringFixed(2))
}

func TestNormalizePriceText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"with symbol and space", "$ 1.234,56", "1.234,56"},
		{"secondary price line", "$ 1.234,56\nantes $2.000", "1.234,56"},
		{"crlf", "$ 850,00\r\n$ 900,00", "850,00"},
		{"non breaking space", "$\u00a012.500", "12.500"},
		{"euro sign", "€ 10,5", "10,5"},
		{"surrounding whitespace", "  \n $ 99 \n", "99"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePriceText(tt.input))
		})
	}
}

func TestNormalizePriceTextIdempotent(t *testing.T) {
	inputs := []string{
		"$ 1.234,56\nantes $2.000",
		"1.234,56",
		"$ 99",
		"Consultar",
		"",
	}

	for _, input := range inputs {
		once := NormalizePriceText(input)
		assert.Equal(t, once, NormalizePriceText(once), "input %q", input)

		first, ok1 := ParsePrice(input)
		second, ok2 := ParsePrice(once)
		assert.Equal(t, ok1, ok2, "input %q", input)
		assert.True(t, first.Equal(second), "input %q", input)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"thousands and decimals", "$ 1.234,56", "1234.56", true},
		{"with old price line", "$ 1.234,56\nantes $2.000", "1234.56", true},
		{"thousands only", "$ 12.500", "12500", true},
		{"millions", "$1.234.567,8", "1234567.8", true},
		{"no grouping", "1234,56", "1234.56", true},
		{"integer", "$ 99", "99", true},
		{"negative", "-5,50", "-5.5", true},
		{"text", "Consultar", "0", false},
		{"empty", "", "0", false},
		{"symbol only", "$", "0", false},
		{"double comma", "1,2,3", "0", false},
		{"trailing dot", "1.", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok := ParsePrice(tt.input)
			require.Equal(t, tt.ok, ok)
			assert.True(t, value.Equal(decimal.RequireFromString(tt.expected)), "got %s", value)
		})
	}
}

func TestFormatARS(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1604.928", "$ 1.604,93"},
		{"2469.12", "$ 2.469,12"},
		{"99", "$ 99,00"},
		{"1234567.891", "$ 1.234.567,89"},
		{"0", "$ 0,00"},
		{"-5.5", "$ -5,50"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatARS(decimal.RequireFromString(tt.input)))
		})
	}
}
