package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/beliefmarket/market-engine/internal/safemath"
)

// MemoryVault implements Vault with in-memory balances. Used for testing
// and development; a production deployment fronts the real custody
// service instead.
type MemoryVault struct {
	asset string

	mu          sync.Mutex
	balances    map[string]uint64
	authorities map[string]string
}

// NewMemoryVault creates a vault for the given asset mint.
func NewMemoryVault(asset string) *MemoryVault {
	return &MemoryVault{
		asset:       asset,
		balances:    make(map[string]uint64),
		authorities: make(map[string]string),
	}
}

// Asset returns the configured asset mint.
func (v *MemoryVault) Asset() string {
	return v.asset
}

func (v *MemoryVault) Open(_ context.Context, account, authority string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.authorities[account]; ok && existing != authority {
		return fmt.Errorf("custody: account %s already opened with a different authority", account)
	}
	v.authorities[account] = authority
	return nil
}

func (v *MemoryVault) Transfer(_ context.Context, t Transfer) error {
	if t.Asset != v.asset {
		return ErrAssetMismatch
	}
	if t.Amount == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	authority, ok := v.authorities[t.From]
	if !ok || authority != t.Authorizer {
		return ErrUnauthorizedTransfer
	}
	if v.balances[t.From] < t.Amount {
		return ErrInsufficientBalance
	}
	credited, err := safemath.Add(v.balances[t.To], t.Amount)
	if err != nil {
		return ErrBalanceOverflow
	}

	v.balances[t.From] -= t.Amount
	v.balances[t.To] = credited
	return nil
}

func (v *MemoryVault) Balance(_ context.Context, account string) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[account], nil
}

// Fund credits an account directly. Test and development helper; real
// deposits arrive through the external custody service.
func (v *MemoryVault) Fund(ctx context.Context, account, authority string, amount uint64) error {
	if err := v.Open(ctx, account, authority); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	credited, err := safemath.Add(v.balances[account], amount)
	if err != nil {
		return ErrBalanceOverflow
	}
	v.balances[account] = credited
	return nil
}
