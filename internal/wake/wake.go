// Package wake provides the cross-thread wakeup primitive used by the
// Iso event loop to observe file_trigger_async calls issued from
// worker goroutines (spec.md §4.1, §4.9; REDESIGN FLAGS "Cross-thread
// signaling"). The loop blocks on Wait until a worker calls Signal,
// exactly once per burst of signals delivered while it was asleep (the
// eventfd counter semantics collapse repeated signals the same way).
package wake

// Notifier is the minimal wakeup contract the Iso loop depends on. The
// Linux implementation backs it with an eventfd (golang.org/x/sys/unix),
// mirroring the real-syscall/stub split the teacher uses for io_uring
// (internal/uring/iouring_stub.go) and the per-OS wakeup files in the
// eventloop package of the wider retrieval pack.
type Notifier interface {
	// Signal wakes one pending Wait call. Safe to call from any
	// goroutine, any number of times; excess signals before a Wait
	// coalesce into a single wakeup.
	Signal()
	// Wait blocks until Signal has been called at least once since
	// the last Wait returned, or done is closed.
	Wait(done <-chan struct{})
	// Close releases the underlying OS resource, if any.
	Close() error
}

// New returns the platform-appropriate Notifier.
func New() Notifier {
	return newNotifier()
}
