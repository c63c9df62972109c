// Package confinement defines the enforcement-mode fact consumed by the
// confinement primitives. The mode of an active security profile is computed
// elsewhere; this core only carries it around as an opaque input.
package confinement

// Mode is the enforcement level of an active security profile.
type Mode int

const (
	// NotApplicable means no profile applies to the process.
	NotApplicable Mode = iota
	// Complain means violations are logged but permitted.
	Complain
	// Enforce means violations are denied.
	Enforce
	// Mixed means parts of the profile enforce while others complain.
	Mixed
	// Kill means violations terminate the process.
	Kill
	// Invalid means the reported mode could not be interpreted.
	Invalid
)

func (m Mode) String() string {
	switch m {
	case NotApplicable:
		return "not-applicable"
	case Complain:
		return "complain"
	case Enforce:
		return "enforce"
	case Mixed:
		return "mixed"
	case Kill:
		return "kill"
	}
	return "invalid"
}

// State is the confinement fact as supplied by the external detector.
type State struct {
	Mode     Mode
	Confined bool
}

// ParseMode maps the textual representation of a mode back to its value.
// Unknown text yields Invalid, which callers treat as fatal.
func ParseMode(s string) Mode {
	switch s {
	case "not-applicable":
		return NotApplicable
	case "complain":
		return Complain
	case "enforce":
		return Enforce
	case "mixed":
		return Mixed
	case "kill":
		return Kill
	}
	return Invalid
}
