package privs

import (
	"strings"

	"github.com/moby/sys/capability"
	"github.com/sirupsen/logrus"

	"github.com/snapcore/confine/libconfine/fatal"
)

// Snapshot holds the kernel-reported capability bits of a process at one
// point in time. It is used for read-only assertions only; mutating the
// capability state goes through the dedicated ambient helpers.
type Snapshot struct {
	Permitted []capability.Cap
	Effective []capability.Cap
}

// Current reads the capability state of this process. Failure to read it is
// fatal: a launcher that cannot tell what it may do must not guess.
func Current() *Snapshot {
	caps, err := capability.NewPid2(0)
	fatal.Check(err, "cannot initialize capability state")
	fatal.Check(caps.Load(), "cannot read capability state")
	supported, err := capability.ListSupported()
	fatal.Check(err, "cannot enumerate supported capabilities")
	snap := &Snapshot{}
	for _, c := range supported {
		if caps.Get(capability.PERMITTED, c) {
			snap.Permitted = append(snap.Permitted, c)
		}
		if caps.Get(capability.EFFECTIVE, c) {
			snap.Effective = append(snap.Effective, c)
		}
	}
	return snap
}

func (s *Snapshot) permittedHas(c capability.Cap) bool {
	for _, have := range s.Permitted {
		if have == c {
			return true
		}
	}
	return false
}

func effectiveHas(c capability.Cap) bool {
	caps, err := capability.NewPid2(0)
	fatal.Check(err, "cannot initialize capability state")
	fatal.Check(caps.Load(), "cannot read capability state")
	return caps.Get(capability.EFFECTIVE, c)
}

// AssertCapabilities verifies that every required capability is in the
// permitted set of the given snapshot. Success is silent. On failure all
// missing capabilities are reported together with the full permitted set,
// and the process terminates.
func AssertCapabilities(snap *Snapshot, required ...capability.Cap) {
	var missing []string
	for _, c := range required {
		if !snap.permittedHas(c) {
			missing = append(missing, capName(c))
		}
	}
	if len(missing) > 0 {
		fatal.Dief("missing required capabilities: %s (permitted: %s)",
			strings.Join(missing, ", "), formatCaps(snap.Permitted))
	}
}

// SetAmbient raises the given capabilities in the ambient set so that they
// survive the exec boundary. The kernel only admits a capability into the
// ambient set when it is in both the permitted and the inheritable sets, and
// a setuid-root launcher starts with an empty inheritable set, so the
// inheritable bits are raised first. Failures are fatal.
func SetAmbient(caps ...capability.Cap) {
	state, err := capability.NewPid2(0)
	fatal.Check(err, "cannot initialize capability state")
	fatal.Check(state.Load(), "cannot read capability state")
	state.Set(capability.INHERITABLE, caps...)
	fatal.Check(state.Apply(capability.CAPS), "cannot raise inheritable capabilities")
	fatal.Check(capability.SetAmbient(true, caps...), "cannot raise ambient capabilities")
	logrus.Debugf("raised ambient capabilities: %s", formatCaps(caps))
}

// ResetAmbient clears the ambient capability set. Failures are fatal.
func ResetAmbient() {
	fatal.Check(capability.ResetAmbient(), "cannot reset ambient capabilities")
}

// DumpState logs the full capability state of this process at debug level.
func DumpState() {
	caps, err := capability.NewPid2(0)
	fatal.Check(err, "cannot initialize capability state")
	fatal.Check(caps.Load(), "cannot read capability state")
	for _, set := range []struct {
		name string
		typ  capability.CapType
	}{
		{"effective", capability.EFFECTIVE},
		{"permitted", capability.PERMITTED},
		{"inheritable", capability.INHERITABLE},
		{"bounding", capability.BOUNDING},
		{"ambient", capability.AMBIENT},
	} {
		logrus.Debugf("%s: %s", set.name, caps.StringCap(set.typ))
	}
}

// CapByName resolves a textual capability name such as "CAP_SYS_ADMIN".
func CapByName(name string) (capability.Cap, bool) {
	supported, err := capability.ListSupported()
	fatal.Check(err, "cannot enumerate supported capabilities")
	for _, c := range supported {
		if capName(c) == name {
			return c, true
		}
	}
	return 0, false
}

// String renders the snapshot for diagnostics.
func (s *Snapshot) String() string {
	return "permitted: " + formatCaps(s.Permitted) + "; effective: " + formatCaps(s.Effective)
}

func capName(c capability.Cap) string {
	return "CAP_" + strings.ToUpper(c.String())
}

func formatCaps(caps []capability.Cap) string {
	if len(caps) == 0 {
		return "none"
	}
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = capName(c)
	}
	return strings.Join(names, ", ")
}
