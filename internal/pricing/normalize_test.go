package pricing

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"dot grouped thousands", "299.000", 299000},
		{"comma thousands dot decimal", "1,234.56", 1234.56},
		{"comma thousands only", "1,234", 1234},
		{"comma decimal", "12,5", 12.5},
		{"comma decimal two digits", "12,50", 12.5},
		{"empty", "", 0},
		{"garbage", "abc", 0},
		{"currency symbol prefix", "$1,299.99", 1299.99},
		{"dong suffix", "299.000₫", 299000},
		{"plain integer", "42", 42},
		{"plain decimal", "19.99", 19.99},
		{"multiple comma groups", "1,234,567", 1234567},
		{"multiple dot groups", "1.234.567", 1234567},
		{"embedded in text", "Price: 150.000 VND", 150000},
		{"only separators", ".,", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_AlwaysFiniteNonNegative(t *testing.T) {
	inputs := []string{
		"", "abc", "-500", "1e309", "....", ",,,,", "9999999999999999999999",
		"1,2,3,4", "0.00", "-0",
	}
	for _, in := range inputs {
		got := Normalize(in)
		if math.IsNaN(got) || math.IsInf(got, 0) || got < 0 {
			t.Errorf("Normalize(%q) = %v, want finite non-negative", in, got)
		}
	}
}

func TestMinePrice(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"grouped price in prose", "the item costs 1,299.50 at this shop", 1299.5},
		{"dot grouped", "gia ban 299.000 dong", 299000},
		{"no price", "out of stock, check back later", 0},
		{"bare number", "rated 4 stars", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinePrice(tt.in); got != tt.want {
				t.Errorf("MinePrice(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
