package upd

import (
	"sync"

	"github.com/kvothestack/upd/internal/arena"
	"github.com/kvothestack/upd/internal/logging"
	"github.com/kvothestack/upd/internal/wake"
)

// IsoOptions configures a new Iso, following the teacher's
// functional-struct-plus-defaults pattern (DeviceParams/Options).
type IsoOptions struct {
	// Registry is the driver registry new files are created against.
	// A caller that wants drivers pre-registered before any file is
	// created should build its own Registry and pass it here.
	Registry *Registry
	// Logger receives Iso.Msg/Msgf diagnostics. Defaults to the
	// internal/logging package default logger.
	Logger *logging.Logger
}

// DefaultOptions returns the zero-configuration IsoOptions: a fresh
// empty Registry and the package default logger.
func DefaultOptions() IsoOptions {
	return IsoOptions{
		Registry: NewRegistry(),
		Logger:   logging.Default(),
	}
}

// Iso is one isolated machine: a file graph, a driver registry, a
// single logical event loop, and the scratch arena and wake plumbing
// that support it (spec.md §2 "Iso"). The zero value is not usable;
// construct with New.
type Iso struct {
	registry *Registry
	logger   *logging.Logger
	arena    *arena.Arena
	notifier wake.Notifier

	filesMu sync.Mutex
	files   map[FileID]*File
	nextID  FileID

	asyncMu    sync.Mutex
	asyncQueue []func()

	metrics Metrics

	exitMu   sync.Mutex
	exitCode int
	exiting  bool

	workersMu sync.Mutex
	workers   []*WorkerHandle
}

// New constructs an Iso. Passing the zero IsoOptions is equivalent to
// passing DefaultOptions().
func New(opts IsoOptions) *Iso {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Iso{
		registry: opts.Registry,
		logger:   opts.Logger,
		arena:    arena.New(),
		notifier: wake.New(),
		files:    make(map[FileID]*File),
	}
}

// Registry returns the Iso's driver registry.
func (iso *Iso) Registry() *Registry { return iso.registry }

// Metrics returns a point-in-time snapshot of the Iso's counters.
func (iso *Iso) Metrics() MetricsSnapshot { return iso.metrics.Snapshot() }

// NewFile allocates a fresh, never-before-used FileID, runs
// driver.Init against it, and (on success) inserts it into the Iso's
// file table with a refcount of 1 owned by the caller. The id is
// consumed even if Init fails, so a failed creation never frees an id
// for reuse (spec.md invariant).
func (iso *Iso) NewFile(driver Driver, param string) (*File, error) {
	iso.filesMu.Lock()
	id := iso.nextID
	iso.nextID++
	iso.filesMu.Unlock()

	f := &File{iso: iso, id: id, driver: driver, param: param, refcount: 1}
	if !driver.Init(f) {
		return nil, NewFileError("file_new", id, ResultAborted, "driver init failed: "+driver.Name())
	}

	iso.filesMu.Lock()
	iso.files[id] = f
	iso.filesMu.Unlock()

	iso.metrics.filesCreated.Add(1)
	return f, nil
}

// GetFile looks up a live file by id. A file mid-teardown (refcount
// reached zero, Deinit/DELETE in flight) is reported not-found.
func (iso *Iso) GetFile(id FileID) (*File, bool) {
	iso.filesMu.Lock()
	defer iso.filesMu.Unlock()
	f, ok := iso.files[id]
	if !ok || f.Deleting() {
		return nil, false
	}
	return f, true
}

func (iso *Iso) removeFile(id FileID) {
	iso.filesMu.Lock()
	delete(iso.files, id)
	iso.filesMu.Unlock()
	iso.metrics.filesDeleted.Add(1)
}

// Req dispatches req to its file's driver, after checking the driver
// actually serves req.Type's category. Returns whatever Driver.Handle
// returns; req.Result and any req.Callback invocation are the driver's
// responsibility from that point on.
func (iso *Iso) Req(req *Request) bool {
	if req.File == nil {
		req.complete(ResultInvalid)
		return false
	}
	cat := req.Type.Category()
	ok := false
	for _, c := range req.File.Driver().Categories() {
		if c == cat {
			ok = true
			break
		}
	}
	if !ok {
		req.complete(ResultInvalid)
		return false
	}
	iso.metrics.requests.Add(1)
	return req.File.Driver().Handle(req)
}

// scheduleAsync queues fn for execution on the loop thread and wakes
// it. Safe to call from any goroutine.
func (iso *Iso) scheduleAsync(fn func()) {
	iso.asyncMu.Lock()
	iso.asyncQueue = append(iso.asyncQueue, fn)
	iso.asyncMu.Unlock()
	iso.notifier.Signal()
}

func (iso *Iso) drainAsync() {
	iso.asyncMu.Lock()
	q := iso.asyncQueue
	iso.asyncQueue = nil
	iso.asyncMu.Unlock()
	for _, fn := range q {
		fn()
	}
}

// Run drives the event loop: it blocks until either done is closed or
// a worker thread signals async work via TriggerAsync, draining queued
// async callbacks each time it wakes. It returns when done is closed.
func (iso *Iso) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		iso.notifier.Wait(done)
		select {
		case <-done:
			return
		default:
		}
		iso.drainAsync()
	}
}

// Stack borrows n bytes of scratch space from the Iso's LIFO arena.
func (iso *Iso) Stack(n int) []byte { return iso.arena.Push(n) }

// Unstack returns scratch space borrowed via Stack. Returns must nest:
// the most recently borrowed slice must be the next one returned.
func (iso *Iso) Unstack(p []byte) { iso.arena.Pop(p) }

// Msg logs an informational diagnostic, key-value pairs following the
// message (internal/logging's structured-ish text format).
func (iso *Iso) Msg(msg string, args ...any) { iso.logger.Info(msg, args...) }

// Msgf logs a printf-style diagnostic, the shape drivers use for
// "upd.<name>: ..." lines.
func (iso *Iso) Msgf(format string, args ...any) { iso.logger.Infof(format, args...) }

// Exit records a process exit request. The embedding application
// decides what, if anything, to do about it; Iso itself never calls
// os.Exit.
func (iso *Iso) Exit(code int) {
	iso.exitMu.Lock()
	defer iso.exitMu.Unlock()
	if !iso.exiting {
		iso.exiting = true
		iso.exitCode = code
	}
}

// ExitStatus reports whether Exit was called and with what code.
func (iso *Iso) ExitStatus() (code int, exited bool) {
	iso.exitMu.Lock()
	defer iso.exitMu.Unlock()
	return iso.exitCode, iso.exiting
}

// WorkerHandle controls one dedicated worker goroutine started via
// Iso.StartThread (spec.md §5, the GLFW-exemplar pattern).
type WorkerHandle struct {
	done chan struct{}
	wg   sync.WaitGroup
}

// StartThread launches fn on its own goroutine, passing a done channel
// it should select on to know when to exit. The returned handle's Stop
// closes that channel and waits for fn to return.
func (iso *Iso) StartThread(fn func(done <-chan struct{})) *WorkerHandle {
	wh := &WorkerHandle{done: make(chan struct{})}
	wh.wg.Add(1)
	go func() {
		defer wh.wg.Done()
		fn(wh.done)
	}()

	iso.workersMu.Lock()
	iso.workers = append(iso.workers, wh)
	iso.workersMu.Unlock()
	return wh
}

// Stop signals fn to exit and waits for it to do so.
func (wh *WorkerHandle) Stop() {
	select {
	case <-wh.done:
	default:
		close(wh.done)
	}
	wh.wg.Wait()
}
