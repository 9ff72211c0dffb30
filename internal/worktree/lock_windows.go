//go:build windows

package worktree

// lockPath on Windows is a no-op. Concurrent provisioning of the same
// branch is left to git's own index locking.
func lockPath(_ string) (unlock func(), err error) {
	return func() {}, nil
}
