package money

import (
	"math"
	"testing"
)

func TestFinite(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"regular", 12.5, 12.5},
		{"negative", -3, -3},
		{"NaN", math.NaN(), 0},
		{"positive infinity", math.Inf(1), 0},
		{"negative infinity", math.Inf(-1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Finite(tt.in); got != tt.want {
				t.Errorf("Finite(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoundCents(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{2.275, 2.28},
		{2.2749, 2.27},
		{-1.005, -1.01},
		{27.27815, 27.28},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := RoundCents(tt.in); got != tt.want {
			t.Errorf("RoundCents(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCents(t *testing.T) {
	if got := Cents(12.99); got != 1299 {
		t.Errorf("Cents(12.99) = %d, want 1299", got)
	}
	if got := Cents(0.1 + 0.2); got != 30 {
		t.Errorf("Cents(0.1+0.2) = %d, want 30", got)
	}
	if got := Cents(-4.555); got != -456 {
		t.Errorf("Cents(-4.555) = %d, want -456", got)
	}
}

func TestSameCents(t *testing.T) {
	if !SameCents(6.50+6.49, 12.99) {
		t.Error("6.50 + 6.49 should equal 12.99 at cent level")
	}
	if SameCents(6.50+6.40, 12.99) {
		t.Error("6.50 + 6.40 should not equal 12.99")
	}
}

func TestSum(t *testing.T) {
	if got := Sum(0.1, 0.2, math.NaN()); got != 0.3 {
		t.Errorf("Sum = %v, want 0.3", got)
	}
	if got := Sum(); got != 0 {
		t.Errorf("empty Sum = %v, want 0", got)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		v      float64
		symbol string
		want   string
	}{
		{12.3, "$", "$12.30"},
		{-0.5, "€", "-€0.50"},
		{0, "£", "£0.00"},
		{2.275, "$", "$2.28"},
	}
	for _, tt := range tests {
		if got := Format(tt.v, tt.symbol); got != tt.want {
			t.Errorf("Format(%v, %q) = %q, want %q", tt.v, tt.symbol, got, tt.want)
		}
	}
}
