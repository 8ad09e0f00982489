package store

import (
	"context"
	"errors"
	"testing"

	"github.com/beliefmarket/market-engine/internal/model"
)

func testMarket(addr string, createdAt int64) *model.Market {
	return &model.Market{
		Address:        addr,
		Creator:        "alice",
		NumOutcomes:    2,
		OutcomeLabels:  []string{"Yes", "No"},
		OutcomePools:   []uint64{0, 0},
		OutcomeShares:  []uint64{0, 0},
		Tags:           []string{"test"},
		TradingFeeBps:  100,
		ResolveAt:      createdAt + 3600,
		WinningOutcome: -1,
		AccumulatedFees: []uint64{0, 0},
		CreatedAt:      createdAt,
	}
}

func TestGlobalStateLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetGlobalState(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("uninitialized get err = %v", err)
	}

	gs := &model.GlobalState{Authority: "authority", PlatformWallet: "platform"}
	if err := s.InitGlobalState(ctx, gs); err != nil {
		t.Fatal(err)
	}
	// The singleton is created at most once.
	if err := s.InitGlobalState(ctx, gs); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("re-init err = %v", err)
	}

	got, err := s.GetGlobalState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got.Paused = true
	if err := s.UpdateGlobalState(ctx, got); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetGlobalState(ctx)
	if !got.Paused {
		t.Error("update did not persist")
	}
}

func TestProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := &model.UserProfile{Owner: "alice", ReferralCode: "ALICE"}
	if err := s.CreateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateProfile(ctx, p); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate create err = %v", err)
	}

	got, err := s.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	got.Invitor = "bob"
	if err := s.UpdateProfile(ctx, got); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetProfile(ctx, "alice")
	if got.Invitor != "bob" {
		t.Error("update did not persist")
	}

	if _, err := s.GetProfile(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing profile err = %v", err)
	}
	if err := s.UpdateProfile(ctx, &model.UserProfile{Owner: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing err = %v", err)
	}
}

func TestMarketLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	m := testMarket("mkt:alice:1", 100)
	if err := s.CreateMarket(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateMarket(ctx, m); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate create err = %v", err)
	}

	got, err := s.GetMarket(ctx, "mkt:alice:1")
	if err != nil {
		t.Fatal(err)
	}

	// Returned records are copies; mutating one must not leak into the store.
	got.OutcomePools[0] = 999
	fresh, _ := s.GetMarket(ctx, "mkt:alice:1")
	if fresh.OutcomePools[0] != 0 {
		t.Error("returned market shares slices with the store")
	}

	got.OutcomePools[0] = 500
	if err := s.UpdateMarket(ctx, got); err != nil {
		t.Fatal(err)
	}
	fresh, _ = s.GetMarket(ctx, "mkt:alice:1")
	if fresh.OutcomePools[0] != 500 {
		t.Error("update did not persist")
	}

	if _, err := s.GetMarket(ctx, "mkt:ghost:1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing market err = %v", err)
	}
}

func TestListMarketsOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, m := range []*model.Market{
		testMarket("mkt:alice:1", 100),
		testMarket("mkt:alice:3", 300),
		testMarket("mkt:alice:2", 200),
	} {
		if err := s.CreateMarket(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	markets, err := s.ListMarkets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(markets) != 3 {
		t.Fatalf("len = %d", len(markets))
	}
	// Newest first.
	if markets[0].Address != "mkt:alice:3" || markets[2].Address != "mkt:alice:1" {
		t.Errorf("order = %s, %s, %s", markets[0].Address, markets[1].Address, markets[2].Address)
	}
}

func TestLedgerQueries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	entries := []model.LedgerEntry{
		{ID: "1", Operation: model.OpBuyOutcome, MarketAddress: "mkt:alice:1", Actor: "bob"},
		{ID: "2", Operation: model.OpSellOutcome, MarketAddress: "mkt:alice:1", Actor: "carol"},
		{ID: "3", Operation: model.OpBuyOutcome, MarketAddress: "mkt:alice:2", Actor: "bob"},
	}
	for i := range entries {
		if err := s.InsertLedgerEntry(ctx, &entries[i]); err != nil {
			t.Fatal(err)
		}
	}

	byMarket, err := s.GetLedgerEntriesByMarket(ctx, "mkt:alice:1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byMarket) != 2 {
		t.Errorf("market entries = %d, want 2", len(byMarket))
	}

	byActor, err := s.GetLedgerEntriesByActor(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(byActor) != 2 {
		t.Errorf("actor entries = %d, want 2", len(byActor))
	}
}
