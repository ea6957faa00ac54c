//go:build linux

package wake

import (
	"golang.org/x/sys/unix"
)

// eventfdNotifier backs Notifier with a Linux eventfd. Signal performs
// a non-blocking write of 1; Wait polls the fd until the counter is
// non-zero and then reads it, which the kernel resets to 0 on read,
// giving exactly the "coalesce excess signals" semantics Notifier
// promises.
type eventfdNotifier struct {
	fd int
}

func newNotifier() Notifier {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		// Fall back to the portable channel-based notifier rather
		// than fail Iso construction outright; this only happens on
		// kernels too old to support eventfd2.
		return newChanNotifier()
	}
	return &eventfdNotifier{fd: fd}
}

func (n *eventfdNotifier) Signal() {
	var buf [8]byte
	buf[0] = 1
	_, _ = unix.Write(n.fd, buf[:])
}

func (n *eventfdNotifier) Wait(done <-chan struct{}) {
	pfd := []unix.PollFd{{Fd: int32(n.fd), Events: unix.POLLIN}}
	for {
		select {
		case <-done:
			return
		default:
		}
		_, err := unix.Poll(pfd, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if pfd[0].Revents&unix.POLLIN != 0 {
			var buf [8]byte
			_, _ = unix.Read(n.fd, buf[:])
			return
		}
	}
}

func (n *eventfdNotifier) Close() error {
	return unix.Close(n.fd)
}
