// Package registry holds the global program configuration: the
// administrative authority, the platform fee wallet, and the pause flag
// that gates every mutating operation.
package registry

import "github.com/beliefmarket/market-engine/internal/model"

// New builds the singleton global state. The store enforces that it is
// persisted at most once.
func New(authority, platformWallet string) *model.GlobalState {
	return &model.GlobalState{
		Authority:      authority,
		PlatformWallet: platformWallet,
		Paused:         false,
	}
}

// Authorized reports whether caller is the configured authority.
func Authorized(gs *model.GlobalState, caller string) bool {
	return caller == gs.Authority
}

// Guard fails with ErrProgramPaused when the pause flag is set. Every
// mutating operation checks this first.
func Guard(gs *model.GlobalState) error {
	if gs.Paused {
		return model.ErrProgramPaused
	}
	return nil
}

// Pause sets the pause flag. Authority only.
func Pause(gs *model.GlobalState, caller string) error {
	if !Authorized(gs, caller) {
		return model.ErrUnauthorized
	}
	gs.Paused = true
	return nil
}

// Unpause clears the pause flag. Authority only.
func Unpause(gs *model.GlobalState, caller string) error {
	if !Authorized(gs, caller) {
		return model.ErrUnauthorized
	}
	gs.Paused = false
	return nil
}
