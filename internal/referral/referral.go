// Package referral manages user profiles: the self-chosen referral code
// and the one-time invitor binding that market creation snapshots.
package referral

import "github.com/beliefmarket/market-engine/internal/model"

// NewProfile creates a profile for owner with the given referral code.
// The code must be 1-20 characters; the invitor starts unset.
func NewProfile(owner, referralCode string) (*model.UserProfile, error) {
	if referralCode == "" {
		return nil, model.ErrReferralCodeInvalid
	}
	if len(referralCode) > model.MaxReferralCodeLen {
		return nil, model.ErrStringTooLong
	}
	return &model.UserProfile{
		Owner:        owner,
		ReferralCode: referralCode,
	}, nil
}

// BindInvitor performs the single allowed unset-to-bound transition of the
// profile's invitor. A user cannot invite themselves, and a bound invitor
// can never be changed or cleared.
//
// Markets snapshot the creator's invitor at creation time, so this binding
// must happen before the user creates a market for the referral fee share
// to ever activate.
func BindInvitor(p *model.UserProfile, invitor string) error {
	if invitor == p.Owner {
		return model.ErrCannotInviteYourself
	}
	if p.HasInvitor() {
		return model.ErrInvitorAlreadySet
	}
	p.Invitor = invitor
	return nil
}
