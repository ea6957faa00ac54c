// Package glfw is the worker-thread driver exemplar: a singleton
// device file backed by one dedicated goroutine, standing in for a
// non-reentrant native library (GLFW) that must run its event loop on
// one thread for the process lifetime. Grounded on
// original_source/drivers/graphics/glfw_dev.c. Per spec.md, GLFW is in
// scope only as a thin interface-contract collaborator: this package
// proves the pattern (singleton enforcement, dedicated thread, async
// completion signaling) without linking an actual GLFW binding.
package glfw

import (
	"fmt"
	"sync/atomic"

	"github.com/kvothestack/upd"
)

// Name is the registry name of the GLFW device driver.
const Name = "upd.graphics.glfw.dev"

// busy enforces the single-instance rule the original expressed with
// atomic_flag glfw_busy_: a process may only ever have one live GLFW
// device, since the underlying library is not reentrant.
var busy atomic.Bool

// Request is one unit of work handed to the dedicated worker thread.
// It bypasses the generic request bus the way the original's
// gra_glfw_req_t did, since GLFW calls must run on their own thread
// and carry library-specific fields no other driver needs.
type Request struct {
	Op       string
	Err      error
	Callback func(*Request)
}

type ctx struct {
	file    *upd.File
	inbox   chan *Request
	results chan *Request
	worker  *upd.WorkerHandle
}

// Driver is the upd.graphics.glfw.dev driver. It accepts no request
// categories on the generic bus; all interaction goes through Submit.
type Driver struct{}

var _ upd.Driver = Driver{}

func (Driver) Name() string               { return Name }
func (Driver) Categories() []upd.Category { return nil }
func (Driver) Flags() upd.DriverFlags     { return upd.DriverFlagDedicatedThread }

// Init fails if a GLFW device already exists in this process.
func (Driver) Init(f *upd.File) bool {
	if !busy.CompareAndSwap(false, true) {
		f.Iso().Msgf("upd.graphics.glfw.dev: you cannot build two GLFW devices")
		return false
	}

	c := &ctx{
		file:    f,
		inbox:   make(chan *Request, 1),
		results: make(chan *Request, 1),
	}
	f.SetContext(c)

	f.Watch(func(_ *upd.File, ev upd.FileEvent) {
		if ev != upd.FileEventAsync {
			return
		}
		select {
		case req := <-c.results:
			if req.Callback != nil {
				req.Callback(req)
			}
		default:
		}
	})

	c.worker = f.Iso().StartThread(func(done <-chan struct{}) {
		runWorker(f, c, done)
	})
	return true
}

func (Driver) Deinit(f *upd.File) {
	c := f.Context().(*ctx)
	c.worker.Stop()
	close(c.inbox)
	busy.Store(false)
}

// Handle always rejects: every interaction with the GLFW thread goes
// through Submit, not the generic request bus.
func (Driver) Handle(req *upd.Request) bool {
	req.Result = upd.ResultInvalid
	return false
}

// Submit enqueues req for the dedicated worker thread. req.Callback
// fires later, on the loop thread, once the worker finishes and
// signals completion via TriggerAsync.
func Submit(f *upd.File, req *Request) {
	f.Context().(*ctx).inbox <- req
}

func runWorker(f *upd.File, c *ctx, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case req, ok := <-c.inbox:
			if !ok {
				return
			}
			req.Err = handleOp(req.Op)
			c.results <- req
			f.TriggerAsync()
		}
	}
}

// handleOp stands in for thread_handle_req_'s glfwCreateWindow/
// glfwDestroyWindow dispatch. No GLFW library is linked here; a real
// binding would call into it from exactly this point, still off the
// loop thread.
func handleOp(op string) error {
	switch op {
	case "gl3_init", "gl3_deinit":
		return nil
	default:
		return fmt.Errorf("glfw: unknown op %q", op)
	}
}
