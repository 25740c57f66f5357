//go:build !unix

package disk

import "errors"

var errUnsupported = errors.New("disk usage not supported on this platform")

func GetUsage(path string) (Usage, error) {
	return Usage{}, errUnsupported
}

func isStaleError(err error) bool {
	return false
}
