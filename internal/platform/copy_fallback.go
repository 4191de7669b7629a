//go:build !linux && !darwin

package platform

// copyAccelerated has no accelerated tiers on this platform; the copy
// starts at the generic whole-file tier.
func copyAccelerated(_, _ string, _ int64) (int64, CopyMethod) {
	return 0, WholeFile
}
