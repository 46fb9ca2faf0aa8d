package compselect

// A Version identifies a specific implementation's version. Ordering and
// restriction satisfaction are the responsibility of the external
// feed/provider layer (see [Dependency.Restrictions]); this module only
// recognizes the sentinel [DummyVersion] used by diagnostic-mode
// solving.
type Version string

// DummyVersion is the version reported by the dummy implementation that
// [ProblemBuilder] adds to every interface's candidate set in diagnostic
// mode. A real provider must never use this value.
const DummyVersion Version = "dummy"

// VersionCompare orders two [Version] values lexicographically. Only
// fixtures and tests call it; production restriction satisfaction and
// candidate ordering never do.
func VersionCompare(a, b Version) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
