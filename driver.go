package upd

import "sync"

// Category groups ReqType values, mirroring the high bits of the
// original upd_req_t.type (UPD_REQ_CAT_*). SPEC_FULL.md §4.3 replaces the
// bit-packed ABI with a closed Go sum type; Category survives as a
// routing/logging aid, not as a bitfield.
type Category int

const (
	CategoryStat Category = iota
	CategoryDir
	CategoryProg
	CategoryStream
	CategoryTensor
)

func (c Category) String() string {
	switch c {
	case CategoryStat:
		return "STAT"
	case CategoryDir:
		return "DIR"
	case CategoryProg:
		return "PROG"
	case CategoryStream:
		return "STREAM"
	case CategoryTensor:
		return "TENSOR"
	default:
		return "UNKNOWN"
	}
}

// ReqType names one request subtype. Category() reports which Payload
// struct the request carries.
type ReqType int

const (
	ReqStatAccess ReqType = iota

	ReqDirAccess
	ReqDirList
	ReqDirFind
	ReqDirAdd
	ReqDirNewdir
	ReqDirRm

	ReqProgAccess
	ReqProgExec

	ReqStreamAccess
	ReqStreamInput
	ReqStreamOutput

	ReqTensorAccess
	ReqTensorAlloc
	ReqTensorMeta
	ReqTensorData
	ReqTensorFlush
)

// Category reports the routing category of a request subtype.
func (t ReqType) Category() Category {
	switch {
	case t == ReqStatAccess:
		return CategoryStat
	case t >= ReqDirAccess && t <= ReqDirRm:
		return CategoryDir
	case t >= ReqProgAccess && t <= ReqProgExec:
		return CategoryProg
	case t >= ReqStreamAccess && t <= ReqStreamOutput:
		return CategoryStream
	case t >= ReqTensorAccess && t <= ReqTensorFlush:
		return CategoryTensor
	default:
		return CategoryStat
	}
}

func (t ReqType) String() string {
	switch t {
	case ReqStatAccess:
		return "STAT_ACCESS"
	case ReqDirAccess:
		return "DIR_ACCESS"
	case ReqDirList:
		return "DIR_LIST"
	case ReqDirFind:
		return "DIR_FIND"
	case ReqDirAdd:
		return "DIR_ADD"
	case ReqDirNewdir:
		return "DIR_NEWDIR"
	case ReqDirRm:
		return "DIR_RM"
	case ReqProgAccess:
		return "PROG_ACCESS"
	case ReqProgExec:
		return "PROG_EXEC"
	case ReqStreamAccess:
		return "STREAM_ACCESS"
	case ReqStreamInput:
		return "STREAM_INPUT"
	case ReqStreamOutput:
		return "STREAM_OUTPUT"
	case ReqTensorAccess:
		return "TENSOR_ACCESS"
	case ReqTensorAlloc:
		return "TENSOR_ALLOC"
	case ReqTensorMeta:
		return "TENSOR_META"
	case ReqTensorData:
		return "TENSOR_DATA"
	case ReqTensorFlush:
		return "TENSOR_FLUSH"
	default:
		return "UNKNOWN"
	}
}

// DriverFlags describes optional capabilities of a Driver, mirroring
// upd_driver_t's flags bitfield.
type DriverFlags uint32

const (
	// DriverFlagDedicatedThread marks drivers that run their work on a
	// worker goroutine of their own (spec.md §5; the GLFW exemplar in
	// drivers/glfw). It is descriptive only: Iso.Req does not read it,
	// and Handle is still called on the submitting goroutine.
	DriverFlagDedicatedThread DriverFlags = 1 << iota
)

// Driver implements one file kind's behavior: construction,
// destruction and request handling, per spec.md §2 "Driver". A single
// Driver value is shared by every File instance of that kind; per-file
// state lives in File.Context.
type Driver interface {
	// Name is the driver's registry name, e.g. "upd.dir".
	Name() string
	// Categories lists the request categories this driver accepts.
	Categories() []Category
	// Flags reports optional capabilities.
	Flags() DriverFlags
	// Init constructs per-file state for f, returning false to abort
	// file creation (the file is never inserted into the Iso's table).
	Init(f *File) bool
	// Deinit releases per-file state. Called exactly once, when f's
	// refcount reaches zero, before the DELETE event fans out.
	Deinit(f *File)
	// Handle services one request against f. It returns false if the
	// request was rejected outright (Req then reports unaccepted);
	// req.Result and any callback must still be set appropriately.
	Handle(req *Request) bool
}

// Registry maps driver names to instances, mirroring the teacher's
// Backend registry (internal/interfaces/backend.go) generalized from a
// handful of named backends to an open driver set.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry returns an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds a driver under its Name. It returns an error if the
// name is already taken.
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := d.Name()
	if _, exists := r.drivers[name]; exists {
		return NewError("registry_register", ResultInvalid, "driver already registered: "+name)
	}
	r.drivers[name] = d
	return nil
}

// Lookup returns the driver registered under name, if any.
func (r *Registry) Lookup(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	return d, ok
}
