// Package address derives the deterministic record keys used across the
// engine. A market's address is a stable function of (creator, resolveAt),
// a profile's of its owner; the rest of the system treats these as opaque
// keys.
package address

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Global is the address of the singleton global state record.
const Global = "global"

// marketRegex matches: mkt:{creator}:{resolveAtUnixSeconds}
// Example: mkt:alice:1767225600
var marketRegex = regexp.MustCompile(`^mkt:([A-Za-z0-9_.-]+):(\d+)$`)

var ErrInvalidMarketAddress = errors.New("address: invalid market address format")

// Market derives the unique market address for a creator and resolution
// time. One market exists per (creator, resolveAt) pair.
func Market(creator string, resolveAt int64) string {
	return fmt.Sprintf("mkt:%s:%d", creator, resolveAt)
}

// Profile derives the unique profile address for a user.
func Profile(owner string) string {
	return "usr:" + owner
}

// ParseMarket validates a market address and returns its components.
func ParseMarket(addr string) (creator string, resolveAt int64, err error) {
	matches := marketRegex.FindStringSubmatch(addr)
	if matches == nil {
		return "", 0, fmt.Errorf("%w: %s (expected mkt:{creator}:{unix})", ErrInvalidMarketAddress, addr)
	}
	resolveAt, err = strconv.ParseInt(matches[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s", ErrInvalidMarketAddress, addr)
	}
	return matches[1], resolveAt, nil
}
