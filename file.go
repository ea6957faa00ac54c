package upd

import (
	"fmt"
	"sync"
)

// FileID uniquely and permanently identifies a file within an Iso. Ids
// are never recycled: once allocated, an id belongs to that file for
// the lifetime of the Iso, even after the file is deleted (spec.md §2
// invariant "no id recycling").
type FileID uint64

// RootFileID is the conventional id of the root directory. An Iso does
// not create it automatically; the first file an embedder creates
// receives id 0 and is expected to be a directory (see drivers/dir).
const RootFileID FileID = 0

// InvalidFileID marks the absence of a file reference.
const InvalidFileID FileID = ^FileID(0)

// FileEvent is delivered to watchers on Trigger/TriggerAsync.
type FileEvent int

const (
	// FileEventDelete fires exactly once, when a file's refcount drops
	// to zero, after Driver.Deinit has run and before the file is
	// removed from the Iso's table.
	FileEventDelete FileEvent = iota
	// FileEventUpdate fires whenever a driver considers its file's
	// content to have changed, e.g. a directory after ADD/RM.
	FileEventUpdate
	// FileEventAsync fires when a worker thread signals completion of
	// out-of-loop work via TriggerAsync; delivered on the loop thread.
	FileEventAsync
)

func (e FileEvent) String() string {
	switch e {
	case FileEventDelete:
		return "DELETE"
	case FileEventUpdate:
		return "UPDATE"
	case FileEventAsync:
		return "ASYNC"
	default:
		return fmt.Sprintf("FileEvent(%d)", int(e))
	}
}

// WatchFunc observes the events of one file. Unlike the original C
// upd_file_watch_t, there is no void* udata parameter: callers close
// over whatever state they need, which is the idiomatic Go shape for
// the same pattern.
type WatchFunc func(f *File, event FileEvent)

// Watch is the handle returned by File.Watch, passed back to
// File.Unwatch to cancel observation.
type Watch struct {
	id uint64
	cb WatchFunc
}

// LockCallback receives the Lock handle once its grant/deny outcome is
// known. The handle is always the same pointer Lock returned, so it is
// safe to stash in the callback's closure and reuse for Unlock.
type LockCallback func(l *Lock)

// Lock is one entry in a file's FIFO lock queue (spec.md §4.4).
type Lock struct {
	file      *File
	Exclusive bool
	Ok        bool
	UserData  any

	granted bool
	cb      LockCallback
}

// File is one node of the object graph: a driver instance plus the
// bookkeeping (refcount, watchers, lock queue) that is common to every
// driver (spec.md §2 "File").
type File struct {
	iso    *Iso
	id     FileID
	driver Driver
	param  string

	mu       sync.Mutex
	refcount int64
	deleting bool
	ctx      any

	watchers    []*Watch
	nextWatchID uint64
	lockQueue   []*Lock
}

func (f *File) ID() FileID      { return f.id }
func (f *File) Iso() *Iso       { return f.iso }
func (f *File) Driver() Driver  { return f.driver }
func (f *File) Param() string   { return f.param }
func (f *File) Context() any    { return f.ctx }
func (f *File) SetContext(c any) { f.ctx = c }

// Deleting reports whether the file is mid-teardown: its refcount has
// reached zero and Driver.Deinit/DELETE fan-out are in flight or done.
// GetFile treats a deleting file as not-found.
func (f *File) Deleting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleting
}

// Ref increments the file's refcount. Every Ref must be matched by
// exactly one Unref.
func (f *File) Ref() {
	f.mu.Lock()
	f.refcount++
	f.mu.Unlock()
}

// Unref decrements the file's refcount. When it reaches zero the file
// tears down: Driver.Deinit runs, a DELETE event fans out to every
// watcher registered at that instant, and the file is removed from its
// Iso's table. The id is never reused.
func (f *File) Unref() {
	f.mu.Lock()
	f.refcount--
	rc := f.refcount
	f.mu.Unlock()

	if rc > 0 {
		return
	}
	if rc < 0 {
		panic(fmt.Sprintf("upd: file %d refcount dropped below zero", f.id))
	}
	f.teardown()
}

func (f *File) teardown() {
	f.mu.Lock()
	f.deleting = true
	queued := f.lockQueue
	f.lockQueue = nil
	f.mu.Unlock()

	for _, l := range queued {
		if !l.granted && l.cb != nil {
			l.Ok = false
			l.cb(l)
		}
	}

	f.driver.Deinit(f)
	f.Trigger(FileEventDelete)

	f.iso.removeFile(f.id)
}

// Watch registers cb to observe this file's events. The returned
// handle is later passed to Unwatch.
func (f *File) Watch(cb WatchFunc) *Watch {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextWatchID++
	w := &Watch{id: f.nextWatchID, cb: cb}
	f.watchers = append(f.watchers, w)
	return w
}

// Unwatch cancels a previously registered watch.
func (f *File) Unwatch(w *Watch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ww := range f.watchers {
		if ww == w {
			f.watchers = append(f.watchers[:i], f.watchers[i+1:]...)
			return
		}
	}
}

// Trigger fans event out to every watcher registered at call time. The
// watcher list is snapshotted before dispatch, so a watch registered by
// one of the callbacks does not observe this same event (spec.md Open
// Question, resolved: mid-trigger registration is never retroactive).
func (f *File) Trigger(event FileEvent) {
	f.mu.Lock()
	snapshot := append([]*Watch(nil), f.watchers...)
	f.mu.Unlock()

	for _, w := range snapshot {
		w.cb(f, event)
	}
}

// TriggerAsync is the thread-safe counterpart of Trigger, for use from
// worker goroutines (spec.md §5). It hands the event off to the loop
// thread via the Iso's wake notifier rather than calling watcher
// callbacks inline.
func (f *File) TriggerAsync() {
	f.iso.scheduleAsync(func() {
		if f.Deleting() {
			return
		}
		f.Trigger(FileEventAsync)
	})
}

// Lock enqueues a lock request (spec.md §4.4). If the queue is empty,
// or the request can join the contiguous shared group at the queue
// front, cb fires before Lock returns; otherwise cb fires later, from
// whichever Unlock call vacates the front of the queue for it. The
// returned handle is stable across both cases and is what Unlock takes.
func (f *File) Lock(exclusive bool, udata any, cb LockCallback) *Lock {
	l := &Lock{file: f, Exclusive: exclusive, UserData: udata, cb: cb}
	f.mu.Lock()
	f.lockQueue = append(f.lockQueue, l)
	f.mu.Unlock()
	f.evaluateLocks()
	return l
}

// Unlock releases a lock. A granted lock frees its slot and the queue
// is re-evaluated for the next eligible waiters. A lock that was still
// queued (never granted) is cancelled and its callback, which has not
// fired yet, fires once with Ok=false.
func (f *File) Unlock(l *Lock) {
	f.mu.Lock()
	idx := -1
	for i, ll := range f.lockQueue {
		if ll == l {
			idx = i
			break
		}
	}
	if idx < 0 {
		f.mu.Unlock()
		return
	}
	wasGranted := l.granted
	f.lockQueue = append(f.lockQueue[:idx], f.lockQueue[idx+1:]...)
	f.mu.Unlock()

	if !wasGranted {
		l.Ok = false
		if l.cb != nil {
			l.cb(l)
		}
	}
	f.evaluateLocks()
}

// evaluateLocks grants every lock request eligible to run given the
// current queue front: an exclusive request must be alone at the
// front; a shared request joins every contiguous shared request ahead
// of it. It is idempotent and safe to call after any queue mutation.
func (f *File) evaluateLocks() {
	f.mu.Lock()
	queue := f.lockQueue
	if len(queue) == 0 {
		f.mu.Unlock()
		return
	}

	var toGrant []*Lock
	i := 0
	for i < len(queue) && queue[i].granted {
		i++
	}
	if i == 0 {
		// Nothing granted yet: the front of the queue decides.
		if queue[0].Exclusive {
			queue[0].granted, queue[0].Ok = true, true
			toGrant = append(toGrant, queue[0])
		} else {
			for i < len(queue) && !queue[i].Exclusive {
				queue[i].granted, queue[i].Ok = true, true
				toGrant = append(toGrant, queue[i])
				i++
			}
		}
	} else if !queue[i-1].Exclusive {
		// The currently granted front group is shared: extend it with
		// any new contiguous shared waiters.
		for i < len(queue) && !queue[i].Exclusive {
			queue[i].granted, queue[i].Ok = true, true
			toGrant = append(toGrant, queue[i])
			i++
		}
	}
	f.mu.Unlock()

	for _, l := range toGrant {
		if l.cb != nil {
			l.cb(l)
		}
	}
}
