package safemath

import (
	"errors"
	"math"
	"testing"

	"github.com/beliefmarket/market-engine/internal/model"
)

func TestAdd(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr bool
	}{
		{"simple", 2, 3, 5, false},
		{"zero", 0, 0, 0, false},
		{"max plus zero", math.MaxUint64, 0, math.MaxUint64, false},
		{"overflow", math.MaxUint64, 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Add(tt.a, tt.b)
			if tt.wantErr {
				if !errors.Is(err, model.ErrArithmeticOverflow) {
					t.Fatalf("Add(%d, %d) err = %v, want overflow", tt.a, tt.b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Add(%d, %d) unexpected error: %v", tt.a, tt.b, err)
			}
			if got != tt.want {
				t.Errorf("Add(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSub(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr bool
	}{
		{"simple", 5, 3, 2, false},
		{"to zero", 7, 7, 0, false},
		{"underflow", 3, 5, 0, true},
		{"underflow from zero", 0, 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sub(tt.a, tt.b)
			if tt.wantErr {
				if !errors.Is(err, model.ErrArithmeticOverflow) {
					t.Fatalf("Sub(%d, %d) err = %v, want overflow", tt.a, tt.b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Sub(%d, %d) unexpected error: %v", tt.a, tt.b, err)
			}
			if got != tt.want {
				t.Errorf("Sub(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMul(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr bool
	}{
		{"simple", 6, 7, 42, false},
		{"by zero", math.MaxUint64, 0, 0, false},
		{"at limit", math.MaxUint64, 1, math.MaxUint64, false},
		{"overflow", math.MaxUint64, 2, 0, true},
		{"overflow large", 1 << 32, 1 << 32, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Mul(tt.a, tt.b)
			if tt.wantErr {
				if !errors.Is(err, model.ErrArithmeticOverflow) {
					t.Fatalf("Mul(%d, %d) err = %v, want overflow", tt.a, tt.b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Mul(%d, %d) unexpected error: %v", tt.a, tt.b, err)
			}
			if got != tt.want {
				t.Errorf("Mul(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDiv(t *testing.T) {
	got, err := Div(7, 2)
	if err != nil {
		t.Fatalf("Div(7, 2) unexpected error: %v", err)
	}
	if got != 3 {
		t.Errorf("Div(7, 2) = %d, want 3 (floor)", got)
	}

	if _, err := Div(1, 0); !errors.Is(err, model.ErrMarketCalculationError) {
		t.Errorf("Div(1, 0) err = %v, want calculation error", err)
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c uint64
		want    uint64
		wantErr error
	}{
		{"basis points", 1_000_000, 100, 10_000, 10_000, nil},
		{"floors", 7, 1, 2, 3, nil},
		{"percent", 10_000, 80, 100, 8_000, nil},
		// The intermediate product exceeds 64 bits but the quotient fits.
		{"wide intermediate", math.MaxUint64, 2, 4, math.MaxUint64 / 2, nil},
		{"zero divisor", 1, 1, 0, 0, model.ErrMarketCalculationError},
		{"quotient overflow", math.MaxUint64, math.MaxUint64, 1, 0, model.ErrArithmeticOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulDiv(tt.a, tt.b, tt.c)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("MulDiv(%d, %d, %d) err = %v, want %v", tt.a, tt.b, tt.c, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("MulDiv(%d, %d, %d) unexpected error: %v", tt.a, tt.b, tt.c, err)
			}
			if got != tt.want {
				t.Errorf("MulDiv(%d, %d, %d) = %d, want %d", tt.a, tt.b, tt.c, got, tt.want)
			}
		})
	}
}
