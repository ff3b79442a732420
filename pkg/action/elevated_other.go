//go:build !unix && !windows

package action

// IsElevated always reports false where privileges cannot be queried.
func IsElevated() bool { return false }
