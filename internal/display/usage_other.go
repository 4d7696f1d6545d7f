//go:build !unix

package display

import "time"

// CPU time is not sampled on this platform
func processCPUTime() time.Duration {
	return 0
}
