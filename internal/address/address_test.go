package address

import (
	"errors"
	"testing"
)

func TestMarketRoundTrip(t *testing.T) {
	addr := Market("alice", 1_767_225_600)
	if addr != "mkt:alice:1767225600" {
		t.Fatalf("addr = %q", addr)
	}

	creator, resolveAt, err := ParseMarket(addr)
	if err != nil {
		t.Fatal(err)
	}
	if creator != "alice" || resolveAt != 1_767_225_600 {
		t.Errorf("parsed (%q, %d)", creator, resolveAt)
	}
}

func TestParseMarketInvalid(t *testing.T) {
	for _, addr := range []string{
		"",
		"alice",
		"usr:alice",
		"mkt:alice",
		"mkt::123",
		"mkt:alice:notatime",
		"mkt:alice:123:extra",
	} {
		if _, _, err := ParseMarket(addr); !errors.Is(err, ErrInvalidMarketAddress) {
			t.Errorf("ParseMarket(%q) err = %v, want invalid address", addr, err)
		}
	}
}

func TestProfile(t *testing.T) {
	if got := Profile("alice"); got != "usr:alice" {
		t.Errorf("Profile = %q", got)
	}
}
