//go:build !unix

package artifact

import "errors"

func statfs(string) (uint64, uint64, error) {
	return 0, 0, errors.New("filesystem stats unsupported on this platform")
}
