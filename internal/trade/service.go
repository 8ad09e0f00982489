// Package trade provides the HTTP handlers and business logic for the
// market engine: global administration, user profiles, market creation,
// parimutuel trading, resolution, redemption, and fee distribution.
//
// All monetary values are integer micro-USDC; responses carry display
// decimals alongside the raw units.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beliefmarket/market-engine/internal/custody"
	"github.com/beliefmarket/market-engine/internal/engine"
	"github.com/beliefmarket/market-engine/internal/metrics"
	"github.com/beliefmarket/market-engine/internal/model"
	"github.com/beliefmarket/market-engine/internal/referral"
	"github.com/beliefmarket/market-engine/internal/registry"
	"github.com/beliefmarket/market-engine/internal/store"
)

// Service handles market operations. A mutex serializes mutating
// operations so no two mutations of one record ever interleave
// (single-instance; for horizontal scaling, replace with distributed
// locking or database-level optimistic concurrency).
type Service struct {
	store store.Store
	vault custody.Vault
	asset string
	mu    sync.Mutex
	wsHub *WSHub // optional WebSocket hub for event broadcasts

	// Now supplies the current unix time; overridable in tests.
	Now func() int64
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, vault custody.Vault, asset string, hub *WSHub) *Service {
	return &Service{
		store: st,
		vault: vault,
		asset: asset,
		wsHub: hub,
		Now:   func() int64 { return time.Now().UTC().Unix() },
	}
}

// Routes mounts all operation endpoints on the given router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/global", s.InitializeGlobal)
	r.Get("/global", s.GetGlobal)
	r.Post("/global/pause", s.Pause)
	r.Post("/global/unpause", s.Unpause)

	r.Post("/profiles", s.InitializeProfile)
	r.Get("/profiles/{owner}", s.GetProfile)
	r.Post("/profiles/{owner}/invitor", s.SetInvitor)
	r.Get("/profiles/{owner}/history", s.GetUserHistory)

	r.Post("/markets", s.CreateMarket)
	r.Get("/markets", s.ListMarkets)
	r.Get("/markets/{address}", s.GetMarket)
	r.Get("/markets/{address}/odds", s.GetOdds)
	r.Get("/markets/{address}/history", s.GetMarketHistory)
	r.Post("/markets/{address}/buy", s.BuyOutcome)
	r.Post("/markets/{address}/sell", s.SellOutcome)
	r.Post("/markets/{address}/resolve", s.ResolveMarket)
	r.Post("/markets/{address}/redeem", s.RedeemWinnings)
	r.Post("/markets/{address}/peg", s.ClaimPeg)
	r.Post("/markets/{address}/fees", s.WithdrawFees)

	r.Get("/balances/{account}", s.GetBalance)
}

// --- Request/Response types ---

// InitializeGlobalRequest is the JSON body for POST /global.
type InitializeGlobalRequest struct {
	Authority      string `json:"authority"`
	PlatformWallet string `json:"platform_wallet"`
}

// PauseRequest identifies the caller of pause/unpause.
type PauseRequest struct {
	Caller string `json:"caller"`
}

// InitializeProfileRequest is the JSON body for POST /profiles.
type InitializeProfileRequest struct {
	Owner        string `json:"owner"`
	ReferralCode string `json:"referral_code"`
}

// SetInvitorRequest is the JSON body for POST /profiles/{owner}/invitor.
type SetInvitorRequest struct {
	Invitor string `json:"invitor"`
}

// CreateMarketRequest is the JSON body for POST /markets.
type CreateMarketRequest struct {
	Creator       string   `json:"creator"`
	NumOutcomes   int      `json:"num_outcomes"`
	OutcomeLabels []string `json:"outcome_labels"`
	Tags          []string `json:"tags"`
	TradingFeeBps uint16   `json:"trading_fee_bps"`
	ResolveAt     int64    `json:"resolve_at"`
}

// CreateMarketResponse returns the new market and the creation-fee split.
type CreateMarketResponse struct {
	Market      *model.Market   `json:"market"`
	CreationFee decimal.Decimal `json:"creation_fee_usdc"`
}

// BuyRequest is the JSON body for POST /markets/{address}/buy.
type BuyRequest struct {
	Buyer        string `json:"buyer"`
	OutcomeIndex int    `json:"outcome_index"`
	Amount       uint64 `json:"amount"`
}

// SellRequest is the JSON body for POST /markets/{address}/sell.
type SellRequest struct {
	Seller       string `json:"seller"`
	OutcomeIndex int    `json:"outcome_index"`
	Shares       uint64 `json:"shares"`
}

// TradeResponse is returned from buy and sell.
type TradeResponse struct {
	TradeID       string          `json:"trade_id"`
	MarketAddress string          `json:"market_address"`
	OutcomeIndex  int             `json:"outcome_index"`
	Amount        uint64          `json:"amount"`
	AmountUSDC    decimal.Decimal `json:"amount_usdc"`
	Fee           uint64          `json:"fee"`
	Shares        uint64          `json:"shares"`
	OddsBps       []uint64        `json:"odds_bps"`
}

// ResolveRequest is the JSON body for POST /markets/{address}/resolve.
type ResolveRequest struct {
	Authority      string `json:"authority"`
	WinningOutcome int    `json:"winning_outcome"`
}

// RedeemRequest is the JSON body for POST /markets/{address}/redeem.
type RedeemRequest struct {
	Winner string `json:"winner"`
	Shares uint64 `json:"shares"`
}

// RedeemResponse is returned from redeem.
type RedeemResponse struct {
	MarketAddress string          `json:"market_address"`
	Shares        uint64          `json:"shares"`
	PerShare      uint64          `json:"per_share"`
	Amount        uint64          `json:"amount"`
	AmountUSDC    decimal.Decimal `json:"amount_usdc"`
}

// CallerRequest identifies the caller of peg-claim and fee-withdraw.
type CallerRequest struct {
	Caller string `json:"caller"`
}

// PegResponse is returned from claim-peg.
type PegResponse struct {
	MarketAddress string          `json:"market_address"`
	Amount        uint64          `json:"amount"`
	AmountUSDC    decimal.Decimal `json:"amount_usdc"`
}

// FeeWithdrawalResponse reports the exact three-way fee split.
type FeeWithdrawalResponse struct {
	MarketAddress string          `json:"market_address"`
	Total         uint64          `json:"total"`
	TotalUSDC     decimal.Decimal `json:"total_usdc"`
	CreatorShare  uint64          `json:"creator_share"`
	InvitorShare  uint64          `json:"invitor_share"`
	PlatformShare uint64          `json:"platform_share"`
}

// OutcomeOdds is one outcome's quote in GET /markets/{address}/odds.
type OutcomeOdds struct {
	OutcomeIndex int    `json:"outcome_index"`
	OddsBps      uint64 `json:"odds_bps"`
	OutcomeLabel string `json:"outcome_label"`
}

// --- Global administration ---

// InitializeGlobal handles POST /api/v1/global. First call only.
func (s *Service) InitializeGlobal(w http.ResponseWriter, r *http.Request) {
	var req InitializeGlobalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Authority == "" || req.PlatformWallet == "" {
		writeError(w, "authority and platform_wallet are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gs := registry.New(req.Authority, req.PlatformWallet)
	ctx := r.Context()
	if err := s.store.InitGlobalState(ctx, gs); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			writeDomainError(w, model.ErrAlreadyInitialized)
			return
		}
		writeDomainError(w, err)
		return
	}
	// The platform wallet receives fee payouts; make sure custody knows it.
	if err := s.vault.Open(ctx, gs.PlatformWallet, gs.PlatformWallet); err != nil {
		slog.Warn("failed to open platform wallet account", "err", err)
	}

	s.record(ctx, model.OpInitializeGlobal, "", req.Authority, -1, 0, 0, 0)
	metrics.Paused.Set(0)
	slog.Info("global state initialized",
		"authority", gs.Authority,
		"platform_wallet", gs.PlatformWallet,
	)
	writeJSON(w, http.StatusCreated, gs)
}

// GetGlobal handles GET /api/v1/global.
func (s *Service) GetGlobal(w http.ResponseWriter, r *http.Request) {
	gs, err := s.store.GetGlobalState(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// Pause handles POST /api/v1/global/pause. Authority only.
func (s *Service) Pause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, true)
}

// Unpause handles POST /api/v1/global/unpause. Authority only.
func (s *Service) Unpause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, false)
}

func (s *Service) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	var req PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		writeError(w, "caller is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	gs, err := s.store.GetGlobalState(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	op := model.OpPause
	if paused {
		err = registry.Pause(gs, req.Caller)
	} else {
		err = registry.Unpause(gs, req.Caller)
		op = model.OpUnpause
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.UpdateGlobalState(ctx, gs); err != nil {
		writeDomainError(w, err)
		return
	}

	if paused {
		metrics.Paused.Set(1)
	} else {
		metrics.Paused.Set(0)
	}
	s.record(ctx, op, "", req.Caller, -1, 0, 0, 0)
	slog.Info("pause flag changed", "paused", paused, "caller", req.Caller)
	writeJSON(w, http.StatusOK, gs)
}

// --- Profiles ---

// InitializeProfile handles POST /api/v1/profiles. Once per user.
func (s *Service) InitializeProfile(w http.ResponseWriter, r *http.Request) {
	var req InitializeProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" {
		writeError(w, "owner is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := referral.NewProfile(req.Owner, req.ReferralCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ctx := r.Context()
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		writeDomainError(w, err)
		return
	}

	s.record(ctx, model.OpInitializeUser, "", req.Owner, -1, 0, 0, 0)
	slog.Info("profile initialized", "owner", req.Owner, "code", req.ReferralCode)
	writeJSON(w, http.StatusCreated, profile)
}

// GetProfile handles GET /api/v1/profiles/{owner}.
func (s *Service) GetProfile(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	profile, err := s.store.GetProfile(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// SetInvitor handles POST /api/v1/profiles/{owner}/invitor.
// The one-shot unset-to-bound invitor transition; the profile owner binds
// their own invitor, and must do so before creating markets for the
// referral share to apply.
func (s *Service) SetInvitor(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	var req SetInvitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Invitor == "" {
		writeError(w, "invitor is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	profile, err := s.store.GetProfile(ctx, owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := referral.BindInvitor(profile, req.Invitor); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		writeDomainError(w, err)
		return
	}

	s.record(ctx, model.OpSetInvitor, "", owner, -1, 0, 0, 0)
	slog.Info("invitor bound", "owner", owner, "invitor", req.Invitor)
	writeJSON(w, http.StatusOK, profile)
}

// --- Markets ---

// CreateMarket handles POST /api/v1/markets.
//
// The fixed 5 USDC creation fee is split at creation time: $2 platform,
// $1.80 invitor (folded into platform when unbound), $0.20 referrer
// (always folded, no referrer binding exists), and the $1 peg funded into
// the market's own vault so the later claim is backed by real deposits.
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Creator == "" {
		writeError(w, "creator is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	gs, err := s.store.GetGlobalState(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	profile, err := s.store.GetProfile(ctx, req.Creator)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDomainError(w, model.ErrProfileNotInitialized)
			return
		}
		writeDomainError(w, err)
		return
	}

	market, split, err := engine.CreateMarket(engine.CreateParams{
		Creator:       req.Creator,
		NumOutcomes:   req.NumOutcomes,
		OutcomeLabels: req.OutcomeLabels,
		Tags:          req.Tags,
		TradingFeeBps: req.TradingFeeBps,
		ResolveAt:     req.ResolveAt,
	}, gs, profile, s.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Creation fee must be fully funded before any of it moves.
	balance, err := s.vault.Balance(ctx, req.Creator)
	if err != nil || balance < model.MarketCreationFee {
		writeDomainError(w, model.ErrInsufficientFunds)
		return
	}

	// The market vault's authority is the market address itself — the
	// capability the engine holds for post-resolution payouts.
	if err := s.vault.Open(ctx, market.Address, market.Address); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	transfers := []custody.Transfer{
		{From: req.Creator, To: gs.PlatformWallet, Authorizer: req.Creator, Asset: s.asset, Amount: split.Platform},
		{From: req.Creator, To: market.Address, Authorizer: req.Creator, Asset: s.asset, Amount: split.Peg},
	}
	if split.Invitor > 0 {
		transfers = append(transfers, custody.Transfer{
			From: req.Creator, To: market.Invitor, Authorizer: req.Creator, Asset: s.asset, Amount: split.Invitor,
		})
	}
	if err := s.transferAll(ctx, transfers); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.store.CreateMarket(ctx, market); err != nil {
		writeDomainError(w, err)
		return
	}

	s.record(ctx, model.OpCreateMarket, market.Address, req.Creator, -1, model.MarketCreationFee, 0, 0)
	metrics.MarketsCreated.Inc()
	slog.Info("market created",
		"address", market.Address,
		"creator", market.Creator,
		"outcomes", market.NumOutcomes,
		"fee_bps", market.TradingFeeBps,
		"resolve_at", market.ResolveAt,
	)

	s.broadcast(WSMessage{Type: model.OpCreateMarket, MarketAddress: market.Address, Actor: market.Creator})
	writeJSON(w, http.StatusCreated, CreateMarketResponse{
		Market:      market,
		CreationFee: model.USDC(model.MarketCreationFee),
	})
}

// GetMarket handles GET /api/v1/markets/{address}.
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	market, err := s.store.GetMarket(r.Context(), addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// ListMarkets handles GET /api/v1/markets, optionally filtered by ?tag=.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}

	if tag := r.URL.Query().Get("tag"); tag != "" {
		filtered := []model.Market{}
		for _, m := range markets {
			for _, t := range m.Tags {
				if t == tag {
					filtered = append(filtered, m)
					break
				}
			}
		}
		markets = filtered
	}

	writeJSON(w, http.StatusOK, markets)
}

// GetOdds handles GET /api/v1/markets/{address}/odds.
// Read-only quote of all outcomes in basis points.
func (s *Service) GetOdds(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	market, err := s.store.GetMarket(r.Context(), addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	odds, err := engine.Odds(market)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	quotes := make([]OutcomeOdds, market.NumOutcomes)
	for i := range quotes {
		quotes[i] = OutcomeOdds{
			OutcomeIndex: i,
			OddsBps:      odds[i],
			OutcomeLabel: market.OutcomeLabels[i],
		}
	}
	writeJSON(w, http.StatusOK, quotes)
}

// GetMarketHistory handles GET /api/v1/markets/{address}/history.
// Returns the immutable operation ledger for the market.
func (s *Service) GetMarketHistory(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	entries, err := s.store.GetLedgerEntriesByMarket(r.Context(), addr)
	if err != nil {
		writeError(w, "failed to get market history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetUserHistory handles GET /api/v1/profiles/{owner}/history.
// All operations the user performed, across every market.
func (s *Service) GetUserHistory(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	entries, err := s.store.GetLedgerEntriesByActor(r.Context(), owner)
	if err != nil {
		writeError(w, "failed to get user history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Trading ---

// BuyOutcome handles POST /api/v1/markets/{address}/buy.
func (s *Service) BuyOutcome(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")

	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Buyer == "" {
		writeError(w, "buyer is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	gs, err := s.store.GetGlobalState(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	market, err := s.store.GetMarket(ctx, addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := engine.Buy(market, gs, req.OutcomeIndex, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// The full deposit (fee included) moves into the market vault.
	if err := s.vault.Transfer(ctx, custody.Transfer{
		From: req.Buyer, To: market.Address, Authorizer: req.Buyer, Asset: s.asset, Amount: req.Amount,
	}); err != nil {
		writeDomainError(w, model.ErrInsufficientFunds)
		return
	}

	if err := s.store.UpdateMarket(ctx, market); err != nil {
		writeError(w, "failed to update market state", http.StatusInternalServerError)
		return
	}

	entry := s.record(ctx, model.OpBuyOutcome, market.Address, req.Buyer, req.OutcomeIndex, req.Amount, result.Shares, result.Fee)
	metrics.TradesTotal.WithLabelValues("buy").Inc()
	metrics.TradeVolume.WithLabelValues("buy").Add(float64(req.Amount))

	odds, _ := engine.Odds(market)
	slog.Info("shares bought",
		"trade_id", entry.ID,
		"market", market.Address,
		"buyer", req.Buyer,
		"outcome", req.OutcomeIndex,
		"amount", model.USDC(req.Amount).String(),
		"fee", model.USDC(result.Fee).String(),
		"shares", result.Shares,
	)
	s.broadcast(WSMessage{
		Type:          model.OpBuyOutcome,
		MarketAddress: market.Address,
		Actor:         req.Buyer,
		OutcomeIndex:  req.OutcomeIndex,
		Amount:        model.USDC(req.Amount).String(),
		Shares:        decimal.NewFromUint64(result.Shares).String(),
		OddsBps:       odds,
	})

	writeJSON(w, http.StatusOK, TradeResponse{
		TradeID:       entry.ID,
		MarketAddress: market.Address,
		OutcomeIndex:  req.OutcomeIndex,
		Amount:        req.Amount,
		AmountUSDC:    model.USDC(req.Amount),
		Fee:           result.Fee,
		Shares:        result.Shares,
		OddsBps:       odds,
	})
}

// SellOutcome handles POST /api/v1/markets/{address}/sell.
func (s *Service) SellOutcome(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")

	var req SellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Seller == "" {
		writeError(w, "seller is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	gs, err := s.store.GetGlobalState(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	market, err := s.store.GetMarket(ctx, addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := engine.Sell(market, gs, req.OutcomeIndex, req.Shares)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Net proceeds leave the market vault under its own authority.
	if err := s.vault.Transfer(ctx, custody.Transfer{
		From: market.Address, To: req.Seller, Authorizer: market.Address, Asset: s.asset, Amount: result.Net,
	}); err != nil {
		writeDomainError(w, model.ErrInsufficientFunds)
		return
	}

	if err := s.store.UpdateMarket(ctx, market); err != nil {
		writeError(w, "failed to update market state", http.StatusInternalServerError)
		return
	}

	entry := s.record(ctx, model.OpSellOutcome, market.Address, req.Seller, req.OutcomeIndex, result.Net, req.Shares, result.Fee)
	metrics.TradesTotal.WithLabelValues("sell").Inc()
	metrics.TradeVolume.WithLabelValues("sell").Add(float64(result.Net))

	odds, _ := engine.Odds(market)
	slog.Info("shares sold",
		"trade_id", entry.ID,
		"market", market.Address,
		"seller", req.Seller,
		"outcome", req.OutcomeIndex,
		"shares", req.Shares,
		"net", model.USDC(result.Net).String(),
		"fee", model.USDC(result.Fee).String(),
	)
	s.broadcast(WSMessage{
		Type:          model.OpSellOutcome,
		MarketAddress: market.Address,
		Actor:         req.Seller,
		OutcomeIndex:  req.OutcomeIndex,
		Amount:        model.USDC(result.Net).String(),
		Shares:        decimal.NewFromUint64(req.Shares).String(),
		OddsBps:       odds,
	})

	writeJSON(w, http.StatusOK, TradeResponse{
		TradeID:       entry.ID,
		MarketAddress: market.Address,
		OutcomeIndex:  req.OutcomeIndex,
		Amount:        result.Net,
		AmountUSDC:    model.USDC(result.Net),
		Fee:           result.Fee,
		Shares:        req.Shares,
		OddsBps:       odds,
	})
}

// --- Resolution and settlement ---

// ResolveMarket handles POST /api/v1/markets/{address}/resolve.
// Authority only, time-gated, one-shot.
func (s *Service) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Authority == "" {
		writeError(w, "authority is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	gs, err := s.store.GetGlobalState(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	market, err := s.store.GetMarket(ctx, addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := engine.Resolve(market, gs, req.Authority, req.WinningOutcome, s.Now()); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.UpdateMarket(ctx, market); err != nil {
		writeError(w, "failed to update market state", http.StatusInternalServerError)
		return
	}

	s.record(ctx, model.OpResolveMarket, market.Address, req.Authority, req.WinningOutcome, 0, 0, 0)
	metrics.MarketsResolved.Inc()
	slog.Info("market resolved",
		"market", market.Address,
		"winning_outcome", req.WinningOutcome,
	)
	s.broadcast(WSMessage{
		Type:          model.OpResolveMarket,
		MarketAddress: market.Address,
		OutcomeIndex:  req.WinningOutcome,
	})
	writeJSON(w, http.StatusOK, market)
}

// RedeemWinnings handles POST /api/v1/markets/{address}/redeem.
func (s *Service) RedeemWinnings(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Winner == "" {
		writeError(w, "winner is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	gs, err := s.store.GetGlobalState(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	market, err := s.store.GetMarket(ctx, addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := engine.Redeem(market, gs, req.Shares)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.vault.Transfer(ctx, custody.Transfer{
		From: market.Address, To: req.Winner, Authorizer: market.Address, Asset: s.asset, Amount: result.Amount,
	}); err != nil {
		writeDomainError(w, model.ErrInsufficientFunds)
		return
	}

	if err := s.store.UpdateMarket(ctx, market); err != nil {
		writeError(w, "failed to update market state", http.StatusInternalServerError)
		return
	}

	s.record(ctx, model.OpRedeemWinnings, market.Address, req.Winner, market.WinningOutcome, result.Amount, req.Shares, 0)
	metrics.RedemptionsTotal.Inc()
	slog.Info("winnings redeemed",
		"market", market.Address,
		"winner", req.Winner,
		"shares", req.Shares,
		"amount", model.USDC(result.Amount).String(),
	)
	s.broadcast(WSMessage{
		Type:          model.OpRedeemWinnings,
		MarketAddress: market.Address,
		Actor:         req.Winner,
		Amount:        model.USDC(result.Amount).String(),
	})

	writeJSON(w, http.StatusOK, RedeemResponse{
		MarketAddress: market.Address,
		Shares:        req.Shares,
		PerShare:      result.PerShare,
		Amount:        result.Amount,
		AmountUSDC:    model.USDC(result.Amount),
	})
}

// ClaimPeg handles POST /api/v1/markets/{address}/peg.
// Returns the creator's refundable deposit after resolution. One-shot.
func (s *Service) ClaimPeg(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")

	var req CallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		writeError(w, "caller is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	gs, err := s.store.GetGlobalState(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	market, err := s.store.GetMarket(ctx, addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	amount, err := engine.ClaimPeg(market, gs, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.vault.Transfer(ctx, custody.Transfer{
		From: market.Address, To: market.Creator, Authorizer: market.Address, Asset: s.asset, Amount: amount,
	}); err != nil {
		writeDomainError(w, model.ErrInsufficientFunds)
		return
	}

	if err := s.store.UpdateMarket(ctx, market); err != nil {
		writeError(w, "failed to update market state", http.StatusInternalServerError)
		return
	}

	s.record(ctx, model.OpClaimPeg, market.Address, req.Caller, -1, amount, 0, 0)
	slog.Info("creator peg claimed",
		"market", market.Address,
		"creator", market.Creator,
		"amount", model.USDC(amount).String(),
	)
	s.broadcast(WSMessage{
		Type:          model.OpClaimPeg,
		MarketAddress: market.Address,
		Actor:         market.Creator,
		Amount:        model.USDC(amount).String(),
	})
	writeJSON(w, http.StatusOK, PegResponse{
		MarketAddress: market.Address,
		Amount:        amount,
		AmountUSDC:    model.USDC(amount),
	})
}

// WithdrawFees handles POST /api/v1/markets/{address}/fees.
// Splits accumulated trading fees 80/10/10 and pays each non-zero share.
func (s *Service) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")

	var req CallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		writeError(w, "caller is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	gs, err := s.store.GetGlobalState(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	market, err := s.store.GetMarket(ctx, addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	total := market.TotalFees()
	split, err := engine.WithdrawFees(market, gs)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	transfers := []custody.Transfer{}
	if split.Creator > 0 {
		transfers = append(transfers, custody.Transfer{
			From: market.Address, To: market.Creator, Authorizer: market.Address, Asset: s.asset, Amount: split.Creator,
		})
	}
	if split.Invitor > 0 {
		transfers = append(transfers, custody.Transfer{
			From: market.Address, To: market.Invitor, Authorizer: market.Address, Asset: s.asset, Amount: split.Invitor,
		})
	}
	if split.Platform > 0 {
		transfers = append(transfers, custody.Transfer{
			From: market.Address, To: gs.PlatformWallet, Authorizer: market.Address, Asset: s.asset, Amount: split.Platform,
		})
	}
	if err := s.transferAll(ctx, transfers); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.store.UpdateMarket(ctx, market); err != nil {
		writeError(w, "failed to update market state", http.StatusInternalServerError)
		return
	}

	s.record(ctx, model.OpWithdrawFees, market.Address, req.Caller, -1, total, 0, total)
	metrics.FeesWithdrawnTotal.Add(float64(total))
	slog.Info("fees withdrawn",
		"market", market.Address,
		"total", model.USDC(total).String(),
		"creator_share", split.Creator,
		"invitor_share", split.Invitor,
		"platform_share", split.Platform,
	)
	s.broadcast(WSMessage{
		Type:          model.OpWithdrawFees,
		MarketAddress: market.Address,
		Amount:        model.USDC(total).String(),
	})

	writeJSON(w, http.StatusOK, FeeWithdrawalResponse{
		MarketAddress: market.Address,
		Total:         total,
		TotalUSDC:     model.USDC(total),
		CreatorShare:  split.Creator,
		InvitorShare:  split.Invitor,
		PlatformShare: split.Platform,
	})
}

// GetBalance handles GET /api/v1/balances/{account}.
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	balance, err := s.vault.Balance(r.Context(), account)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":      account,
		"balance":      balance,
		"balance_usdc": model.USDC(balance),
	})
}

// --- Helpers ---

// transferAll issues custody transfers in order. The callers pre-validate
// funding, so a mid-sequence failure indicates a custody-layer fault.
func (s *Service) transferAll(ctx context.Context, transfers []custody.Transfer) error {
	for _, t := range transfers {
		if err := s.vault.Transfer(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// record appends an immutable ledger entry for a completed operation.
func (s *Service) record(ctx context.Context, op, market, actor string, outcome int, amount, shares, fee uint64) *model.LedgerEntry {
	entry := &model.LedgerEntry{
		ID:            uuid.New().String(),
		Operation:     op,
		MarketAddress: market,
		Actor:         actor,
		OutcomeIndex:  outcome,
		Amount:        amount,
		Shares:        shares,
		Fee:           fee,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.store.InsertLedgerEntry(ctx, entry); err != nil {
		slog.Error("failed to record ledger entry", "op", op, "err", err)
	}
	return entry
}

func (s *Service) broadcast(msg WSMessage) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeDomainError maps sentinel errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnauthorized),
		errors.Is(err, model.ErrUserNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrInvalidOutcomeCount),
		errors.Is(err, model.ErrOutcomeCountMismatch),
		errors.Is(err, model.ErrInvalidTradingFee),
		errors.Is(err, model.ErrInvalidOutcomeIndex),
		errors.Is(err, model.ErrInvalidResolutionTime),
		errors.Is(err, model.ErrStringTooLong),
		errors.Is(err, model.ErrReferralCodeInvalid),
		errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrArithmeticOverflow),
		errors.Is(err, model.ErrMarketCalculationError):
		return http.StatusBadRequest
	default:
		// Lifecycle, liquidity, and pause failures are conflicts with the
		// current record state.
		return http.StatusConflict
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
