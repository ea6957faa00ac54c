// Package tensor implements upd.tensor: a fixed-rank, in-place
// numeric buffer with ALLOC/META/DATA/FLUSH operations. Grounded on
// original_source/src/driver/tensor.c; fully implemented per
// SPEC_FULL.md §4.11 since the original contract is small and
// completely specified.
package tensor

import "github.com/kvothestack/upd"

// Name is the registry name of the tensor driver.
const Name = "upd.tensor"

type tensorCtx struct {
	meta upd.TensorMeta
	data []byte
}

// Driver is the upd.tensor driver instance.
type Driver struct{}

var _ upd.Driver = Driver{}

func (Driver) Name() string               { return Name }
func (Driver) Categories() []upd.Category { return []upd.Category{upd.CategoryTensor} }
func (Driver) Flags() upd.DriverFlags     { return 0 }

func (Driver) Init(f *upd.File) bool {
	f.SetContext(&tensorCtx{})
	return true
}

func (Driver) Deinit(f *upd.File) {
	f.SetContext(nil)
}

func (Driver) Handle(req *upd.Request) bool {
	ctx := req.File.Context().(*tensorCtx)

	switch req.Type {
	case upd.ReqTensorAlloc:
		p := req.Payload.(*upd.TensorAlloc)
		if p.Rank > upd.TensorMaxRank {
			req.Result = upd.ResultInvalid
			return false
		}

		n := p.Type.Sizeof()
		for i := 0; i < p.Rank; i++ {
			n *= int(p.Dim[i])
		}
		if n < 0 {
			req.Result = upd.ResultInvalid
			return false
		}

		ctx.data = make([]byte, n)
		ctx.meta = upd.TensorMeta{Type: p.Type, Rank: p.Rank, Dim: p.Dim, Inplace: true}

	case upd.ReqTensorMeta:
		p := req.Payload.(*upd.TensorMeta)
		*p = ctx.meta

	case upd.ReqTensorData:
		p := req.Payload.(*upd.TensorData)
		p.Meta = ctx.meta
		p.Data = ctx.data

	case upd.ReqTensorFlush:
		// No-op: storage is always in place, so there is nothing to
		// synchronize. Kept as an explicit request so callers have a
		// stable point to signal "my last write is now visible".

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
