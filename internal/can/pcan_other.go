//go:build !windows

package can

import "fmt"

func newPCAN(Options) (Channel, error) {
	return nil, fmt.Errorf("%w: pcan requires PCANBasic.dll and is only available on Windows", ErrUnsupportedBackend)
}
