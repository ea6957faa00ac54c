package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvothestack/upd"
)

func newTensor(t *testing.T) (*upd.Iso, *upd.File) {
	t.Helper()
	iso := upd.NewTestIso()
	f, err := iso.NewFile(Driver{}, "")
	require.NoError(t, err)
	return iso, f
}

func TestTensorAllocSizesBufferByRankAndType(t *testing.T) {
	iso, f := newTensor(t)

	req := &upd.Request{File: f, Type: upd.ReqTensorAlloc, Payload: &upd.TensorAlloc{
		Type: upd.TensorF32,
		Rank: 2,
		Dim:  [4]uint32{4, 8},
	}}
	require.True(t, iso.Req(req))

	data := &upd.Request{File: f, Type: upd.ReqTensorData, Payload: &upd.TensorData{}}
	require.True(t, iso.Req(data))
	assert.Len(t, data.Payload.(*upd.TensorData).Data, 4*8*4)
}

func TestTensorAllocRejectsRankAboveMax(t *testing.T) {
	iso, f := newTensor(t)

	req := &upd.Request{File: f, Type: upd.ReqTensorAlloc, Payload: &upd.TensorAlloc{
		Type: upd.TensorU8,
		Rank: upd.TensorMaxRank + 1,
		Dim:  [4]uint32{1, 1, 1, 1},
	}}
	accepted := iso.Req(req)
	assert.False(t, accepted)
	assert.Equal(t, upd.ResultInvalid, req.Result)
}

func TestTensorMetaReportsShape(t *testing.T) {
	iso, f := newTensor(t)

	require.True(t, iso.Req(&upd.Request{File: f, Type: upd.ReqTensorAlloc, Payload: &upd.TensorAlloc{
		Type: upd.TensorI16,
		Rank: 1,
		Dim:  [4]uint32{10},
	}}))

	meta := &upd.Request{File: f, Type: upd.ReqTensorMeta, Payload: &upd.TensorMeta{}}
	require.True(t, iso.Req(meta))
	m := meta.Payload.(*upd.TensorMeta)
	assert.Equal(t, upd.TensorI16, m.Type)
	assert.Equal(t, 1, m.Rank)
	assert.Equal(t, uint32(10), m.Dim[0])
	assert.True(t, m.Inplace)
}

func TestTensorDataIsInPlace(t *testing.T) {
	iso, f := newTensor(t)
	require.True(t, iso.Req(&upd.Request{File: f, Type: upd.ReqTensorAlloc, Payload: &upd.TensorAlloc{
		Type: upd.TensorU8,
		Rank: 1,
		Dim:  [4]uint32{4},
	}}))

	data1 := &upd.Request{File: f, Type: upd.ReqTensorData, Payload: &upd.TensorData{}}
	require.True(t, iso.Req(data1))
	buf := data1.Payload.(*upd.TensorData).Data
	buf[0] = 0xAB

	data2 := &upd.Request{File: f, Type: upd.ReqTensorData, Payload: &upd.TensorData{}}
	require.True(t, iso.Req(data2))
	assert.Equal(t, byte(0xAB), data2.Payload.(*upd.TensorData).Data[0])

	flush := &upd.Request{File: f, Type: upd.ReqTensorFlush, Payload: &upd.TensorFlush{}}
	assert.True(t, iso.Req(flush))
}

func TestTensorRejectsUnknownRequest(t *testing.T) {
	iso, f := newTensor(t)
	req := &upd.Request{File: f, Type: upd.ReqStatAccess, Payload: &upd.DirAccess{}}
	accepted := iso.Req(req)
	assert.False(t, accepted)
}
