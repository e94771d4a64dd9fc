// Package assert implements the single feature toggle spec.md §7 calls
// for: invariant checks that panic with file/line/function context in
// checked builds, and compile out entirely under the occa_unchecked
// build tag.
package assert

// Check panics with the caller-supplied message if cond is false. Build
// with -tags occa_unchecked to compile this down to a no-op (see
// assert_unchecked.go).
func Check(cond bool, format string, args ...any) {
	check(cond, format, args...)
}
