// Package semverdep narrows OS-dependency compatibility merging to use
// version ranges instead of opaque string equality, when both sides of a
// comparison carry a parseable semantic version. Grounded on the teacher's
// internal/semver wrapper around Masterminds/semver, repurposed here for
// one job: comparing two OS dependency version strings.
package semverdep

import "github.com/Masterminds/semver/v3"

// Comparable reports whether both version strings parse as semantic
// versions. When false, callers fall back to plain string comparison.
func Comparable(a, b string) bool {
	_, errA := semver.NewVersion(a)
	_, errB := semver.NewVersion(b)
	return errA == nil && errB == nil
}

// Higher returns the greater of two parseable semantic versions. Callers
// must check Comparable first.
func Higher(a, b string) string {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil {
		return b
	}
	if errB != nil {
		return a
	}
	if va.GreaterThan(vb) {
		return a
	}
	return b
}
