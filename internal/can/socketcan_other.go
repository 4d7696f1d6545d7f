//go:build !linux

package can

import "fmt"

func newSocketCAN(Options) (Channel, error) {
	return nil, fmt.Errorf("%w: socketcan is only available on Linux", ErrUnsupportedBackend)
}
