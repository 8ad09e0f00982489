package trade

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/beliefmarket/market-engine/internal/custody"
	"github.com/beliefmarket/market-engine/internal/model"
	"github.com/beliefmarket/market-engine/internal/store"
)

const testNow = int64(1_700_000_000)

type testEnv struct {
	svc    *Service
	vault  *custody.MemoryVault
	router *chi.Mux
	now    int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	vault := custody.NewMemoryVault("usdc")
	svc := NewService(st, vault, "usdc", nil)

	env := &testEnv{svc: svc, vault: vault, now: testNow}
	svc.Now = func() int64 { return env.now }

	env.router = chi.NewRouter()
	env.router.Route("/api/v1", func(r chi.Router) {
		svc.Routes(r)
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) mustDo(t *testing.T, method, path string, body interface{}, wantStatus int, out interface{}) {
	t.Helper()
	w := e.do(t, method, path, body)
	if w.Code != wantStatus {
		t.Fatalf("%s %s = %d, want %d: %s", method, path, w.Code, wantStatus, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}

func (e *testEnv) fund(t *testing.T, account string, amount uint64) {
	t.Helper()
	if err := e.vault.Fund(context.Background(), account, account, amount); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) balance(t *testing.T, account string) uint64 {
	t.Helper()
	b, err := e.vault.Balance(context.Background(), account)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func (e *testEnv) bootstrap(t *testing.T) {
	t.Helper()
	e.mustDo(t, http.MethodPost, "/api/v1/global",
		InitializeGlobalRequest{Authority: "authority", PlatformWallet: "platform"},
		http.StatusCreated, nil)
	e.mustDo(t, http.MethodPost, "/api/v1/profiles",
		InitializeProfileRequest{Owner: "alice", ReferralCode: "ALICE"},
		http.StatusCreated, nil)
	e.fund(t, "alice", 10_000_000)
}

func (e *testEnv) createMarket(t *testing.T) string {
	t.Helper()
	var resp CreateMarketResponse
	e.mustDo(t, http.MethodPost, "/api/v1/markets", CreateMarketRequest{
		Creator:       "alice",
		NumOutcomes:   2,
		OutcomeLabels: []string{"Yes", "No"},
		Tags:          []string{"test"},
		TradingFeeBps: 100,
		ResolveAt:     testNow + 3600,
	}, http.StatusCreated, &resp)
	return resp.Market.Address
}

func TestInitializeGlobalOnce(t *testing.T) {
	env := newTestEnv(t)
	req := InitializeGlobalRequest{Authority: "authority", PlatformWallet: "platform"}

	env.mustDo(t, http.MethodPost, "/api/v1/global", req, http.StatusCreated, nil)

	w := env.do(t, http.MethodPost, "/api/v1/global", req)
	if w.Code != http.StatusConflict {
		t.Errorf("re-init = %d, want 409", w.Code)
	}
}

func TestMarketLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t)
	addr := env.createMarket(t)

	// Creation fee split: no invitor bound, so the invitor and referrer
	// shares fold into the platform's $2. The $1 peg funds the market vault.
	if got := env.balance(t, "alice"); got != 5_000_000 {
		t.Errorf("creator balance = %d, want 5000000", got)
	}
	if got := env.balance(t, "platform"); got != 4_000_000 {
		t.Errorf("platform balance = %d, want 4000000", got)
	}
	if got := env.balance(t, addr); got != 1_000_000 {
		t.Errorf("market vault = %d, want 1000000", got)
	}

	// Buy 1 USDC on outcome 0.
	env.fund(t, "bob", 2_000_000)
	var buyResp TradeResponse
	env.mustDo(t, http.MethodPost, "/api/v1/markets/"+addr+"/buy",
		BuyRequest{Buyer: "bob", OutcomeIndex: 0, Amount: 1_000_000},
		http.StatusOK, &buyResp)
	if buyResp.Shares != 990_000 || buyResp.Fee != 10_000 {
		t.Fatalf("buy = %+v", buyResp)
	}
	if got := env.balance(t, addr); got != 2_000_000 {
		t.Errorf("market vault after buy = %d, want 2000000", got)
	}

	var quotes []OutcomeOdds
	env.mustDo(t, http.MethodGet, "/api/v1/markets/"+addr+"/odds", nil, http.StatusOK, &quotes)
	if quotes[0].OddsBps != 10_000 || quotes[1].OddsBps != 0 {
		t.Errorf("odds = %+v", quotes)
	}

	// Resolution is time-gated.
	w := env.do(t, http.MethodPost, "/api/v1/markets/"+addr+"/resolve",
		ResolveRequest{Authority: "authority", WinningOutcome: 0})
	if w.Code != http.StatusConflict {
		t.Errorf("early resolve = %d, want 409", w.Code)
	}

	env.now = testNow + 3600
	w = env.do(t, http.MethodPost, "/api/v1/markets/"+addr+"/resolve",
		ResolveRequest{Authority: "mallory", WinningOutcome: 0})
	if w.Code != http.StatusForbidden {
		t.Errorf("non-authority resolve = %d, want 403", w.Code)
	}
	env.mustDo(t, http.MethodPost, "/api/v1/markets/"+addr+"/resolve",
		ResolveRequest{Authority: "authority", WinningOutcome: 0},
		http.StatusOK, nil)

	// Redeem all 990000 winning shares at the floor rate of 1.
	var redeemResp RedeemResponse
	env.mustDo(t, http.MethodPost, "/api/v1/markets/"+addr+"/redeem",
		RedeemRequest{Winner: "bob", Shares: 990_000},
		http.StatusOK, &redeemResp)
	if redeemResp.PerShare != 1 || redeemResp.Amount != 990_000 {
		t.Fatalf("redeem = %+v", redeemResp)
	}
	if got := env.balance(t, "bob"); got != 1_990_000 {
		t.Errorf("bob balance = %d, want 1990000", got)
	}

	// Creator peg claim, one-shot.
	var pegResp PegResponse
	env.mustDo(t, http.MethodPost, "/api/v1/markets/"+addr+"/peg",
		CallerRequest{Caller: "alice"}, http.StatusOK, &pegResp)
	if pegResp.Amount != 1_000_000 {
		t.Fatalf("peg = %+v", pegResp)
	}
	w = env.do(t, http.MethodPost, "/api/v1/markets/"+addr+"/peg", CallerRequest{Caller: "alice"})
	if w.Code != http.StatusConflict {
		t.Errorf("double peg claim = %d, want 409", w.Code)
	}

	// Fee withdrawal: 8000 accrued from the buy, split 80/10/10 with the
	// invitor share folding into platform.
	var feeResp FeeWithdrawalResponse
	env.mustDo(t, http.MethodPost, "/api/v1/markets/"+addr+"/fees",
		CallerRequest{Caller: "alice"}, http.StatusOK, &feeResp)
	if feeResp.Total != 8_000 || feeResp.CreatorShare != 6_400 || feeResp.PlatformShare != 1_600 {
		t.Fatalf("fees = %+v", feeResp)
	}
	w = env.do(t, http.MethodPost, "/api/v1/markets/"+addr+"/fees", CallerRequest{Caller: "alice"})
	if w.Code != http.StatusConflict {
		t.Errorf("double withdraw = %d, want 409", w.Code)
	}

	if got := env.balance(t, "alice"); got != 5_000_000+1_000_000+6_400 {
		t.Errorf("creator final balance = %d", got)
	}
	// Only the unaccrued fee residue remains in the vault.
	if got := env.balance(t, addr); got != 2_000 {
		t.Errorf("market vault residue = %d, want 2000", got)
	}

	var history []model.LedgerEntry
	env.mustDo(t, http.MethodGet, "/api/v1/markets/"+addr+"/history", nil, http.StatusOK, &history)
	if len(history) != 6 {
		t.Errorf("history entries = %d, want 6", len(history))
	}

	// Bob appears as the actor of his buy and his redemption.
	env.mustDo(t, http.MethodGet, "/api/v1/profiles/bob/history", nil, http.StatusOK, &history)
	if len(history) != 2 {
		t.Errorf("user history entries = %d, want 2", len(history))
	}
}

func TestCreateMarketRequiresProfile(t *testing.T) {
	env := newTestEnv(t)
	env.mustDo(t, http.MethodPost, "/api/v1/global",
		InitializeGlobalRequest{Authority: "authority", PlatformWallet: "platform"},
		http.StatusCreated, nil)
	env.fund(t, "nobody", 10_000_000)

	w := env.do(t, http.MethodPost, "/api/v1/markets", CreateMarketRequest{
		Creator:       "nobody",
		NumOutcomes:   2,
		OutcomeLabels: []string{"Yes", "No"},
		TradingFeeBps: 100,
		ResolveAt:     testNow + 3600,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("profileless create = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestCreateMarketRequiresFunding(t *testing.T) {
	env := newTestEnv(t)
	env.mustDo(t, http.MethodPost, "/api/v1/global",
		InitializeGlobalRequest{Authority: "authority", PlatformWallet: "platform"},
		http.StatusCreated, nil)
	env.mustDo(t, http.MethodPost, "/api/v1/profiles",
		InitializeProfileRequest{Owner: "alice", ReferralCode: "ALICE"},
		http.StatusCreated, nil)
	env.fund(t, "alice", model.MarketCreationFee-1)

	w := env.do(t, http.MethodPost, "/api/v1/markets", CreateMarketRequest{
		Creator:       "alice",
		NumOutcomes:   2,
		OutcomeLabels: []string{"Yes", "No"},
		TradingFeeBps: 100,
		ResolveAt:     testNow + 3600,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("underfunded create = %d, want 409", w.Code)
	}
	if got := env.balance(t, "alice"); got != model.MarketCreationFee-1 {
		t.Errorf("failed create moved funds: balance = %d", got)
	}
}

func TestInvitorShareRouting(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t)

	env.mustDo(t, http.MethodPost, "/api/v1/profiles/alice/invitor",
		SetInvitorRequest{Invitor: "bob"}, http.StatusOK, nil)

	// Write-once.
	w := env.do(t, http.MethodPost, "/api/v1/profiles/alice/invitor",
		SetInvitorRequest{Invitor: "carol"})
	if w.Code != http.StatusConflict {
		t.Errorf("rebind = %d, want 409", w.Code)
	}

	env.createMarket(t)
	if got := env.balance(t, "bob"); got != model.MarketFeeInvitorShare {
		t.Errorf("invitor creation share = %d, want %d", got, model.MarketFeeInvitorShare)
	}
	if got := env.balance(t, "platform"); got != model.MarketFeePlatformShare+model.MarketFeeReferrerShare {
		t.Errorf("platform creation share = %d", got)
	}
}

func TestPauseBlocksTrading(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t)
	addr := env.createMarket(t)
	env.fund(t, "bob", 1_000_000)

	env.mustDo(t, http.MethodPost, "/api/v1/global/pause",
		PauseRequest{Caller: "authority"}, http.StatusOK, nil)

	w := env.do(t, http.MethodPost, "/api/v1/markets/"+addr+"/buy",
		BuyRequest{Buyer: "bob", OutcomeIndex: 0, Amount: 1_000_000})
	if w.Code != http.StatusConflict {
		t.Errorf("paused buy = %d, want 409", w.Code)
	}

	env.mustDo(t, http.MethodPost, "/api/v1/global/unpause",
		PauseRequest{Caller: "authority"}, http.StatusOK, nil)
	env.mustDo(t, http.MethodPost, "/api/v1/markets/"+addr+"/buy",
		BuyRequest{Buyer: "bob", OutcomeIndex: 0, Amount: 1_000_000},
		http.StatusOK, nil)
}

func TestSellBeforeResolution(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t)
	addr := env.createMarket(t)
	env.fund(t, "bob", 1_000_000)
	env.mustDo(t, http.MethodPost, "/api/v1/markets/"+addr+"/buy",
		BuyRequest{Buyer: "bob", OutcomeIndex: 0, Amount: 1_000_000},
		http.StatusOK, nil)

	var sellResp TradeResponse
	env.mustDo(t, http.MethodPost, "/api/v1/markets/"+addr+"/sell",
		SellRequest{Seller: "bob", OutcomeIndex: 0, Shares: 100_000},
		http.StatusOK, &sellResp)
	// price 1: gross 100000, 1% fee 1000, net 99000.
	if sellResp.Fee != 1_000 || sellResp.Amount != 99_000 {
		t.Fatalf("sell = %+v", sellResp)
	}
	if got := env.balance(t, "bob"); got != 99_000 {
		t.Errorf("seller balance = %d, want 99000", got)
	}

	w := env.do(t, http.MethodPost, "/api/v1/markets/"+addr+"/sell",
		SellRequest{Seller: "bob", OutcomeIndex: 0, Shares: 10_000_000})
	if w.Code != http.StatusConflict {
		t.Errorf("oversell = %d, want 409", w.Code)
	}
}

func TestBuyUnknownMarket(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t)

	w := env.do(t, http.MethodPost, "/api/v1/markets/mkt:ghost:1/buy",
		BuyRequest{Buyer: "bob", OutcomeIndex: 0, Amount: 1_000_000})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown market buy = %d, want 404", w.Code)
	}
}

func TestListMarketsTagFilter(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t)
	env.createMarket(t)

	var markets []model.Market
	env.mustDo(t, http.MethodGet, "/api/v1/markets?tag=test", nil, http.StatusOK, &markets)
	if len(markets) != 1 {
		t.Errorf("tag=test markets = %d, want 1", len(markets))
	}
	env.mustDo(t, http.MethodGet, "/api/v1/markets?tag=other", nil, http.StatusOK, &markets)
	if len(markets) != 0 {
		t.Errorf("tag=other markets = %d, want 0", len(markets))
	}
}

func TestBuyValidation(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t)
	addr := env.createMarket(t)
	env.fund(t, "bob", 1_000_000)

	w := env.do(t, http.MethodPost, "/api/v1/markets/"+addr+"/buy",
		BuyRequest{Buyer: "bob", OutcomeIndex: 0, Amount: 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero amount = %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/markets/"+addr+"/buy",
		BuyRequest{Buyer: "bob", OutcomeIndex: 7, Amount: 1_000})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad outcome = %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/markets/"+addr+"/buy",
		BuyRequest{OutcomeIndex: 0, Amount: 1_000})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing buyer = %d, want 400", w.Code)
	}
}
