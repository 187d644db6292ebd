//go:build !linux

package runner

// waitExited is unsupported here; the child is only marked reaped after Wait.
func waitExited(pid int) bool {
	return false
}
