package trace

import (
	"os"
	"runtime"
)

// canCreateRawSocket checks if we can create raw ICMP sockets.
func canCreateRawSocket() bool {
	if runtime.GOOS == "windows" {
		_, err := os.Open("\\\\.\\PHYSICALDRIVE0")
		return err == nil
	}
	return os.Getuid() == 0
}
