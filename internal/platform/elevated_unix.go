//go:build unix

package platform

import "golang.org/x/sys/unix"

func effectiveRoot() bool {
	return unix.Geteuid() == 0
}
