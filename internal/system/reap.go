package system

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Exit is a reaped child.
type Exit struct {
	Pid    int
	Status unix.WaitStatus
}

// Reap collects every exited child without blocking.
func Reap() []Exit {
	var exits []Exit
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || pid <= 0 {
			return exits
		}
		exits = append(exits, Exit{Pid: pid, Status: status})
	}
}
