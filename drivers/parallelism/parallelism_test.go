package parallelism

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvothestack/upd"
	"github.com/kvothestack/upd/drivers/dir"
)

// echoProgDriver/echoStreamDriver are a minimal PROG/STREAM pair used
// only by these tests: every byte written to the stream is echoed back
// on STREAM_OUTPUT, with the STREAM_INPUT handler triggering UPDATE
// synchronously, which exercises the same lock-queue re-entrancy the
// real parallelism session lifecycle relies on.
type echoProgDriver struct{}

func (echoProgDriver) Name() string               { return "test.echo.prog" }
func (echoProgDriver) Categories() []upd.Category { return []upd.Category{upd.CategoryProg} }
func (echoProgDriver) Flags() upd.DriverFlags     { return 0 }
func (echoProgDriver) Init(*upd.File) bool        { return true }
func (echoProgDriver) Deinit(*upd.File)           {}

func (echoProgDriver) Handle(req *upd.Request) bool {
	if req.Type != upd.ReqProgExec {
		req.Result = upd.ResultInvalid
		return false
	}
	f, err := req.File.Iso().NewFile(echoStreamDriver{}, "")
	if err != nil {
		req.Result = upd.ResultNomem
		return false
	}
	req.Payload.(*upd.ProgExec).File = f
	req.Result = upd.ResultOK
	if req.Callback != nil {
		req.Callback(req)
	}
	f.Unref()
	return true
}

type echoStreamDriver struct{}

func (echoStreamDriver) Name() string               { return "test.echo.stream" }
func (echoStreamDriver) Categories() []upd.Category { return []upd.Category{upd.CategoryStream} }
func (echoStreamDriver) Flags() upd.DriverFlags     { return 0 }

func (echoStreamDriver) Init(f *upd.File) bool {
	f.SetContext(&echoCtx{file: f})
	return true
}

func (echoStreamDriver) Deinit(*upd.File) {}

type echoCtx struct {
	file *upd.File
	buf  []byte
}

func (echoStreamDriver) Handle(req *upd.Request) bool {
	ctx := req.File.Context().(*echoCtx)
	switch req.Type {
	case upd.ReqStreamInput:
		p := req.Payload.(*upd.StreamInput)
		ctx.buf = append(ctx.buf, p.Data...)
		p.Consumed = len(p.Data)
		req.Result = upd.ResultOK
		if req.Callback != nil {
			req.Callback(req)
		}
		ctx.file.Trigger(upd.FileEventUpdate)
		return true

	case upd.ReqStreamOutput:
		p := req.Payload.(*upd.StreamOutput)
		p.Data = ctx.buf
		ctx.buf = nil
		req.Result = upd.ResultOK
		if req.Callback != nil {
			req.Callback(req)
		}
		return true

	default:
		req.Result = upd.ResultInvalid
		return false
	}
}

func frame(id uint16, payload []byte) []byte {
	f := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(f[0:2], id)
	binary.LittleEndian.PutUint16(f[2:4], uint16(len(payload)))
	copy(f[frameHeaderSize:], payload)
	return f
}

func parseFrames(t *testing.T, data []byte) map[uint16][]byte {
	t.Helper()
	out := map[uint16][]byte{}
	for len(data) >= frameHeaderSize {
		id := binary.LittleEndian.Uint16(data[0:2])
		sz := binary.LittleEndian.Uint16(data[2:4])
		whole := frameHeaderSize + int(sz)
		require.GreaterOrEqual(t, len(data), whole)
		out[id] = append(out[id], data[frameHeaderSize:whole]...)
		data = data[whole:]
	}
	return out
}

func setup(t *testing.T) (*upd.Iso, *upd.File) {
	t.Helper()
	iso := upd.NewTestIso()
	root, err := iso.NewFile(dir.Driver{}, "")
	require.NoError(t, err)

	echo, err := iso.NewFile(echoProgDriver{}, "")
	require.NoError(t, err)
	require.True(t, iso.Req(&upd.Request{File: root, Type: upd.ReqDirAdd, Payload: &upd.DirAdd{Name: "echo", File: echo}}))
	echo.Unref()

	mux, err := iso.NewFile(StreamDriver{}, "")
	require.NoError(t, err)
	return iso, mux
}

func sendInput(t *testing.T, iso *upd.Iso, mux *upd.File, data []byte) int {
	t.Helper()
	req := &upd.Request{File: mux, Type: upd.ReqStreamInput, Payload: &upd.StreamInput{Data: data}}
	require.True(t, iso.Req(req))
	return req.Payload.(*upd.StreamInput).Consumed
}

func readOutput(t *testing.T, iso *upd.Iso, mux *upd.File) []byte {
	t.Helper()
	req := &upd.Request{File: mux, Type: upd.ReqStreamOutput, Payload: &upd.StreamOutput{}}
	require.True(t, iso.Req(req))
	return req.Payload.(*upd.StreamOutput).Data
}

func TestSessionCreateEchoAndClose(t *testing.T) {
	iso, mux := setup(t)

	open := frame(1, []byte("echo"))
	consumed := sendInput(t, iso, mux, open)
	assert.Equal(t, len(open), consumed)

	data := frame(1, []byte("hello"))
	consumed = sendInput(t, iso, mux, data)
	assert.Equal(t, len(data), consumed)

	out := readOutput(t, iso, mux)
	frames := parseFrames(t, out)
	assert.Equal(t, []byte("hello"), frames[1])

	closeFrame := frame(1, nil)
	consumed = sendInput(t, iso, mux, closeFrame)
	assert.Equal(t, len(closeFrame), consumed)

	out = readOutput(t, iso, mux)
	frames = parseFrames(t, out)
	closePayload, ok := frames[1]
	require.True(t, ok)
	assert.Empty(t, closePayload)
}

func TestSessionUnresolvablePathClosesImmediately(t *testing.T) {
	iso, mux := setup(t)

	open := frame(7, []byte("does-not-exist"))
	sendInput(t, iso, mux, open)

	out := readOutput(t, iso, mux)
	frames := parseFrames(t, out)
	payload, ok := frames[7]
	require.True(t, ok, "an unresolvable path must still produce a close frame")
	assert.Empty(t, payload)
}

func TestSessionEmptyPayloadResolvesToRootAndFailsExec(t *testing.T) {
	iso, mux := setup(t)

	open := frame(3, nil)
	consumed := sendInput(t, iso, mux, open)
	assert.Equal(t, len(open), consumed)

	out := readOutput(t, iso, mux)
	frames := parseFrames(t, out)
	payload, ok := frames[3]
	require.True(t, ok, "a zero-length sid still attempts session creation and still closes")
	assert.Empty(t, payload)
}

func TestPartialFrameIsNotConsumed(t *testing.T) {
	iso, mux := setup(t)

	full := frame(1, []byte("echo"))
	partial := full[:len(full)-1]

	consumed := sendInput(t, iso, mux, partial)
	assert.Equal(t, 0, consumed)
}

func TestOutputFragmentsAboveFrameMax(t *testing.T) {
	iso := upd.NewTestIso()
	mux, err := iso.NewFile(StreamDriver{}, "")
	require.NoError(t, err)
	ctx := mux.Context().(*streamCtx)

	big := make([]byte, upd.OutputFrameMax+10)
	for i := range big {
		big[i] = byte(i)
	}
	ctx.pipeOutput(1, big)

	frames := parseFrames(t, ctx.outBuf)
	assert.Equal(t, big, frames[1])

	// Every individual frame in the fragmented output must respect the
	// u16 size field.
	raw := ctx.outBuf
	count := 0
	for len(raw) >= frameHeaderSize {
		sz := binary.LittleEndian.Uint16(raw[2:4])
		assert.LessOrEqual(t, int(sz), upd.OutputFrameMax)
		whole := frameHeaderSize + int(sz)
		raw = raw[whole:]
		count++
	}
	assert.Greater(t, count, 1, "a >64KiB payload must fragment into more than one frame")
}

func TestCloseFrameForUnknownSessionStillEmitsClose(t *testing.T) {
	iso, mux := setup(t)

	// A STREAM_INPUT for a sid the multiplexer has never seen is
	// indistinguishable, at the framing level, from an open request:
	// size 0 always routes into session creation, which resolves an
	// empty path to root and fails PROG_EXEC on it, producing a close
	// frame rather than a silent no-op.
	sendInput(t, iso, mux, frame(99, nil))
	out := readOutput(t, iso, mux)
	frames := parseFrames(t, out)
	_, ok := frames[99]
	assert.True(t, ok)
}
