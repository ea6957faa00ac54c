package upd

// Request is one call into a driver's Handle method. Payload holds
// exactly one of the subtype structs below, chosen by Type
// (SPEC_FULL.md §4.3: the original's tagged union of category+subtype
// integers becomes one Go struct per subtype). Payload is typed `any`,
// so the pairing is not checked by the compiler: each driver asserts
// the struct it expects for req.Type at run time (a DIR_ADD request
// must carry a *DirAdd).
type Request struct {
	File    *File
	Type    ReqType
	Payload any
	Result  Result

	// Callback, when set, is invoked by the driver once Result is
	// final. Synchronous drivers may call it before Handle returns;
	// asynchronous ones (e.g. a locked operation queued behind another
	// holder) call it later, from the loop thread.
	Callback func(req *Request)
}

func (req *Request) complete(result Result) {
	req.Result = result
	if req.Callback != nil {
		req.Callback(req)
	}
}

// DirAccess is the DIR_ACCESS payload: the driver reports which
// operations it supports by setting these fields before completing.
type DirAccess struct {
	List   bool
	Find   bool
	Add    bool
	Newdir bool
	Rm     bool
}

// DirEntry describes one named entry for DIR_LIST responses.
type DirEntry struct {
	Name string
	ID   FileID
}

// DirList is the DIR_LIST payload.
type DirList struct {
	Entries []DirEntry
}

// DirFind is the DIR_FIND payload: look up an entry either by Name or,
// for a reverse lookup, by File (original_source's entry_find_by_file_);
// exactly one of the two should be set on the way in. A lookup that
// finds nothing is not an error: it completes OK with ID left as
// InvalidFileID (spec.md §4.6/§7 — INVALID is reserved for a malformed
// request, not a soft miss).
type DirFind struct {
	Name string
	File *File
	ID   FileID
}

// DirAdd is the DIR_ADD payload: bind Name to File. Weak entries watch
// their target and auto-remove the entry on the target's DELETE; strong
// entries hold an extra ref on the target for as long as the entry
// exists (spec.md §4.6).
type DirAdd struct {
	Name string
	File *File
	Weak bool
}

// DirNewdir is the DIR_NEWDIR payload: create a new subdirectory named
// Name and bind it in one step. Result is the new directory's file.
type DirNewdir struct {
	Name string
	File *File
}

// DirRm is the DIR_RM payload: unbind Name.
type DirRm struct {
	Name string
}

// ProgAccess is the PROG_ACCESS payload: reports whether the file is
// executable via Exec.
type ProgAccess struct {
	Exec bool
}

// ProgExec is the PROG_EXEC payload: instantiate a fresh stream/session
// file for one execution. File receives the new instance on success.
type ProgExec struct {
	File *File
}

// StreamAccess is the STREAM_ACCESS payload.
type StreamAccess struct{}

// StreamInput is the STREAM_INPUT payload: Data is offered to the
// stream; Consumed reports how many leading bytes were actually
// parsed. The stream does not keep the bytes past Consumed: the caller
// holds on to them and submits them again with the next call.
type StreamInput struct {
	Data     []byte
	Consumed int
}

// StreamOutput is the STREAM_OUTPUT payload: Data receives whatever
// output has accumulated since the last call (an empty slice is a
// legal, non-error response).
type StreamOutput struct {
	Data []byte
}

// TensorType enumerates the element types ALLOC accepts, sized per
// original_source's tensor.c sizeof table.
type TensorType uint8

const (
	TensorU8 TensorType = iota
	TensorI8
	TensorU16
	TensorI16
	TensorU32
	TensorI32
	TensorU64
	TensorI64
	TensorF32
	TensorF64
)

// Sizeof returns the byte width of one tensor element.
func (t TensorType) Sizeof() int {
	switch t {
	case TensorU8, TensorI8:
		return 1
	case TensorU16, TensorI16:
		return 2
	case TensorU32, TensorI32, TensorF32:
		return 4
	case TensorU64, TensorI64, TensorF64:
		return 8
	default:
		return 0
	}
}

// TensorAlloc is the TENSOR_ALLOC payload: Type, Rank (≤ TensorMaxRank)
// and Dim describe the tensor's shape to allocate.
type TensorAlloc struct {
	Type TensorType
	Rank int
	Dim  [4]uint32
}

// TensorMeta is the TENSOR_META payload, reporting the shape and type
// of an already-allocated tensor. Inplace is true once the tensor has
// been allocated: this implementation never copies tensor storage out
// for a META request. Before any ALLOC, META reports the zero value.
type TensorMeta struct {
	Type    TensorType
	Rank    int
	Dim     [4]uint32
	Inplace bool
}

// TensorData is the TENSOR_DATA payload: the tensor's whole backing
// storage, handed back by reference (spec.md §4.11 — tensor storage is
// always exposed in place, never copied on this path).
type TensorData struct {
	Meta TensorMeta
	Data []byte
}

// TensorFlush is the TENSOR_FLUSH payload: signals that a prior
// TensorData write is visible to subsequent reads.
type TensorFlush struct{}
