//go:build !windows && !unix

package platform

func effectiveRoot() bool { return false }
