// Package dir implements upd.dir, the directory driver: a named,
// insertion-ordered set of entries, each either strongly owned
// (refcounted) or weakly owned (watched, auto-removed on the target's
// DELETE). Grounded on original_source/src/driver/dir.c.
package dir

import (
	"sync"

	"github.com/kvothestack/upd"
)

// Name is the registry name of the directory driver.
const Name = "upd.dir"

type entry struct {
	name  string
	file  *upd.File
	weak  bool
	watch *upd.Watch
}

type dirCtx struct {
	mu      sync.Mutex
	file    *upd.File
	entries []*entry
}

// Driver is the upd.dir driver instance. It is stateless itself; all
// per-directory state lives in each File's Context.
type Driver struct{}

var _ upd.Driver = Driver{}

func (Driver) Name() string                { return Name }
func (Driver) Categories() []upd.Category  { return []upd.Category{upd.CategoryDir} }
func (Driver) Flags() upd.DriverFlags      { return 0 }

func (d Driver) Init(f *upd.File) bool {
	f.SetContext(&dirCtx{file: f})
	return true
}

func (d Driver) Deinit(f *upd.File) {
	ctx := f.Context().(*dirCtx)
	ctx.mu.Lock()
	entries := ctx.entries
	ctx.entries = nil
	ctx.mu.Unlock()

	for _, e := range entries {
		deleteEntry(e)
	}
}

func (d Driver) Handle(req *upd.Request) bool {
	ctx := req.File.Context().(*dirCtx)

	switch req.Type {
	case upd.ReqDirAccess:
		p := req.Payload.(*upd.DirAccess)
		*p = upd.DirAccess{List: true, Find: true, Add: true, Newdir: true, Rm: true}

	case upd.ReqDirList:
		p := req.Payload.(*upd.DirList)
		ctx.mu.Lock()
		p.Entries = make([]upd.DirEntry, len(ctx.entries))
		for i, e := range ctx.entries {
			p.Entries[i] = upd.DirEntry{Name: e.name, ID: e.file.ID()}
		}
		ctx.mu.Unlock()

	case upd.ReqDirFind:
		p := req.Payload.(*upd.DirFind)
		ctx.mu.Lock()
		var e *entry
		if p.File != nil {
			e = findByFile(ctx, p.File)
		} else {
			e = findByName(ctx, p.Name)
		}
		ctx.mu.Unlock()
		if e == nil {
			p.ID = upd.InvalidFileID
		} else {
			p.ID = e.file.ID()
		}

	case upd.ReqDirAdd:
		return d.handleAdd(req, ctx)

	case upd.ReqDirNewdir:
		return d.handleNewdir(req, ctx)

	case upd.ReqDirRm:
		return d.handleRm(req, ctx)

	default:
		req.Result = upd.ResultInvalid
		return false
	}

	req.Result = upd.ResultOK
	if req.Callback != nil {
		req.Callback(req)
	}
	return true
}

func (d Driver) handleAdd(req *upd.Request, ctx *dirCtx) bool {
	p := req.Payload.(*upd.DirAdd)
	if p.File == nil || !validateName(p.Name) {
		req.Result = upd.ResultAborted
		return false
	}

	ctx.mu.Lock()
	if findByName(ctx, p.Name) != nil {
		ctx.mu.Unlock()
		req.Result = upd.ResultAborted
		return false
	}
	e := newEntry(ctx, p.Name, p.File, p.Weak)
	ctx.entries = append(ctx.entries, e)
	ctx.mu.Unlock()

	req.Result = upd.ResultOK
	if req.Callback != nil {
		req.Callback(req)
	}
	ctx.file.Trigger(upd.FileEventUpdate)
	return true
}

func (d Driver) handleNewdir(req *upd.Request, ctx *dirCtx) bool {
	p := req.Payload.(*upd.DirNewdir)
	if !validateName(p.Name) {
		req.Result = upd.ResultInvalid
		return false
	}

	ctx.mu.Lock()
	collision := findByName(ctx, p.Name) != nil
	ctx.mu.Unlock()
	if collision {
		req.Result = upd.ResultAborted
		return false
	}

	child, err := ctx.file.Iso().NewFile(Driver{}, "")
	if err != nil {
		req.Result = upd.ResultNomem
		return false
	}

	ctx.mu.Lock()
	e := newEntry(ctx, p.Name, child, false)
	ctx.entries = append(ctx.entries, e)
	ctx.mu.Unlock()
	child.Unref() // drop the creation ref; the entry now owns the one it took.

	p.File = child
	req.Result = upd.ResultOK
	if req.Callback != nil {
		req.Callback(req)
	}
	ctx.file.Trigger(upd.FileEventUpdate)
	return true
}

func (d Driver) handleRm(req *upd.Request, ctx *dirCtx) bool {
	p := req.Payload.(*upd.DirRm)

	ctx.mu.Lock()
	idx := -1
	for i, e := range ctx.entries {
		if e.name == p.Name {
			idx = i
			break
		}
	}
	var removed *entry
	if idx >= 0 {
		removed = ctx.entries[idx]
		ctx.entries = append(ctx.entries[:idx], ctx.entries[idx+1:]...)
	}
	ctx.mu.Unlock()

	if removed == nil {
		req.Result = upd.ResultAborted
		return false
	}

	req.Result = upd.ResultOK
	if req.Callback != nil {
		req.Callback(req)
	}
	deleteEntry(removed)
	ctx.file.Trigger(upd.FileEventUpdate)
	return true
}

// newEntry builds an entry and, for weak ownership, registers a watch
// on the target that splices the entry back out of ctx.entries the
// instant the target is deleted (original_source's entry_watch_cb_).
func newEntry(ctx *dirCtx, name string, f *upd.File, weak bool) *entry {
	e := &entry{name: name, file: f, weak: weak}
	if weak {
		e.watch = f.Watch(func(_ *upd.File, ev upd.FileEvent) {
			if ev != upd.FileEventDelete {
				return
			}
			ctx.mu.Lock()
			for i, ee := range ctx.entries {
				if ee == e {
					ctx.entries = append(ctx.entries[:i], ctx.entries[i+1:]...)
					break
				}
			}
			ctx.mu.Unlock()
		})
	} else {
		f.Ref()
	}
	return e
}

func deleteEntry(e *entry) {
	if e.weak {
		e.file.Unwatch(e.watch)
	} else {
		e.file.Unref()
	}
}

func findByName(ctx *dirCtx, name string) *entry {
	for _, e := range ctx.entries {
		if e.name == name {
			return e
		}
	}
	return nil
}

// findByFile is DIR_FIND's reverse-lookup path (original_source's
// entry_find_by_file_): find the entry bound to a specific file,
// rather than to a name.
func findByFile(ctx *dirCtx, f *upd.File) *entry {
	for _, e := range ctx.entries {
		if e.file == f {
			return e
		}
	}
	return nil
}

// validateName rejects the empty name, ".", "..", "/", and any control
// byte (< 0x20, or 0x7f) — the same set original_source's
// upd_path_validate_name call sites guard against.
func validateName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b == '/' || b < 0x20 || b == 0x7f {
			return false
		}
	}
	return true
}
