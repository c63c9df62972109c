package confinement

import "testing"

func TestParseModeRoundTrip(t *testing.T) {
	for _, mode := range []Mode{NotApplicable, Complain, Enforce, Mixed, Kill, Invalid} {
		if got := ParseMode(mode.String()); got != mode {
			t.Errorf("ParseMode(%q) = %v, want %v", mode.String(), got, mode)
		}
	}
}

func TestParseModeUnknown(t *testing.T) {
	for _, s := range []string{"", "ENFORCE", "garbage"} {
		if got := ParseMode(s); got != Invalid {
			t.Errorf("ParseMode(%q) = %v, want Invalid", s, got)
		}
	}
}
