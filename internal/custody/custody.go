// Package custody defines the transfer collaborator the accounting core
// computes amounts for. The core decides how much must move and who
// authorizes it; custody actually holds and moves balances.
package custody

import (
	"context"
	"errors"
)

var (
	// ErrAssetMismatch is returned when a transfer declares an asset other
	// than the vault's configured stable-value asset.
	ErrAssetMismatch = errors.New("custody: asset does not match configured mint")

	// ErrUnauthorizedTransfer is returned when the authorizer does not
	// hold the source account's authority.
	ErrUnauthorizedTransfer = errors.New("custody: authorizer does not control source account")

	// ErrInsufficientBalance is returned when the source account cannot
	// cover the transfer.
	ErrInsufficientBalance = errors.New("custody: insufficient balance")

	// ErrBalanceOverflow is returned when crediting would wrap the
	// destination balance.
	ErrBalanceOverflow = errors.New("custody: balance overflow")
)

// Transfer is one requested movement of the stable-value asset.
type Transfer struct {
	From       string
	To         string
	Authorizer string
	Asset      string
	Amount     uint64
}

// Vault is the custody service contract. Implementations must reject
// transfers whose declared asset mismatches the configured mint, and
// transfers not signed off by the source account's authority.
type Vault interface {
	// Open registers an account with the identity allowed to move funds
	// out of it. Opening an existing account with the same authority is a
	// no-op; market vault accounts are opened by the engine, which then
	// holds their authority as a capability.
	Open(ctx context.Context, account, authority string) error

	// Transfer moves funds, all-or-nothing.
	Transfer(ctx context.Context, t Transfer) error

	// Balance returns an account's current balance. Unknown accounts have
	// balance zero.
	Balance(ctx context.Context, account string) (uint64, error)
}
