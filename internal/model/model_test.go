package model

import (
	"errors"
	"testing"
)

func validMarket() *Market {
	return &Market{
		Address:         "mkt:alice:1700003600",
		Creator:         "alice",
		NumOutcomes:     2,
		OutcomeLabels:   []string{"Yes", "No"},
		OutcomePools:    []uint64{100, 200},
		OutcomeShares:   []uint64{100, 200},
		Tags:            []string{"test"},
		TradingFeeBps:   100,
		ResolveAt:       1_700_003_600,
		WinningOutcome:  -1,
		AccumulatedFees: []uint64{0, 0},
		CreatedAt:       1_700_000_000,
	}
}

func TestMarketValidate(t *testing.T) {
	if err := validMarket().Validate(); err != nil {
		t.Fatalf("valid market rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Market)
		wantErr error
	}{
		{"one outcome", func(m *Market) { m.NumOutcomes = 1 }, ErrInvalidOutcomeCount},
		{"label length mismatch", func(m *Market) { m.OutcomeLabels = []string{"Yes"} }, ErrOutcomeCountMismatch},
		{"pool length mismatch", func(m *Market) { m.OutcomePools = []uint64{1} }, ErrOutcomeCountMismatch},
		{"zero fee", func(m *Market) { m.TradingFeeBps = 0 }, ErrInvalidTradingFee},
		{"shares without pool", func(m *Market) {
			m.OutcomePools[0] = 0
			m.OutcomeShares[0] = 1
		}, ErrInvalidMarketState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMarket()
			tt.mutate(m)
			if err := m.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMarketTotals(t *testing.T) {
	m := validMarket()
	if got := m.TotalPool(); got != 300 {
		t.Errorf("TotalPool = %d, want 300", got)
	}
	m.AccumulatedFees = []uint64{7, 11}
	if got := m.TotalFees(); got != 18 {
		t.Errorf("TotalFees = %d, want 18", got)
	}
}

func TestMarketWinner(t *testing.T) {
	m := validMarket()
	if _, ok := m.Winner(); ok {
		t.Error("unresolved market must have no winner")
	}
	m.Resolved = true
	m.WinningOutcome = 1
	winner, ok := m.Winner()
	if !ok || winner != 1 {
		t.Errorf("Winner = (%d, %v)", winner, ok)
	}
}

func TestUSDC(t *testing.T) {
	if got := USDC(1_000_000).String(); got != "1" {
		t.Errorf("USDC(1000000) = %s, want 1", got)
	}
	if got := USDC(1_234_567).String(); got != "1.234567" {
		t.Errorf("USDC(1234567) = %s, want 1.234567", got)
	}
	if got := USDC(0).String(); got != "0" {
		t.Errorf("USDC(0) = %s, want 0", got)
	}
}
