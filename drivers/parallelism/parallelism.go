// Package parallelism implements upd.prog.parallelism: a PROG file
// that, on each PROG_EXEC, hands back a fresh multiplexed stream
// session. A single byte stream carries many concurrently-executing
// child programs, each addressed by a 16-bit session id and framed as
// little-endian `u16 sid, u16 size, payload`. Grounded on
// original_source/src/driver/prog/parallelism.c.
package parallelism

import (
	"encoding/binary"

	"github.com/kvothestack/upd"
)

// ProgName is the registry name of the parallelism program driver.
const ProgName = "upd.prog.parallelism"

// StreamName is the registry name of the hidden per-exec stream
// driver; embedders never create it directly, only via PROG_EXEC.
const StreamName = "upd.prog.parallelism.stream"

const frameHeaderSize = 4 // u16 sid + u16 size

// ProgDriver is the upd.prog.parallelism driver instance.
type ProgDriver struct{}

var _ upd.Driver = ProgDriver{}

func (ProgDriver) Name() string               { return ProgName }
func (ProgDriver) Categories() []upd.Category { return []upd.Category{upd.CategoryProg} }
func (ProgDriver) Flags() upd.DriverFlags     { return 0 }
func (ProgDriver) Init(*upd.File) bool        { return true }
func (ProgDriver) Deinit(*upd.File)           {}

func (ProgDriver) Handle(req *upd.Request) bool {
	switch req.Type {
	case upd.ReqProgAccess:
		req.Payload.(*upd.ProgAccess).Exec = true

	case upd.ReqProgExec:
		f, err := req.File.Iso().NewFile(StreamDriver{}, "")
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

// StreamDriver is the upd.prog.parallelism.stream driver instance: one
// multiplexer per PROG_EXEC, fanning STREAM_INPUT frames out to
// per-session child executions and STREAM_OUTPUT frames back in.
type StreamDriver struct{}

var _ upd.Driver = StreamDriver{}

func (StreamDriver) Name() string               { return StreamName }
func (StreamDriver) Categories() []upd.Category { return []upd.Category{upd.CategoryStream} }
func (StreamDriver) Flags() upd.DriverFlags     { return 0 }

func (StreamDriver) Init(f *upd.File) bool {
	f.SetContext(&streamCtx{file: f})
	return true
}

func (StreamDriver) Deinit(f *upd.File) {
	ctx := f.Context().(*streamCtx)
	for len(ctx.sessions) > 0 {
		ctx.deleteSession(ctx.sessions[0])
	}
}

func (StreamDriver) Handle(req *upd.Request) bool {
	ctx := req.File.Context().(*streamCtx)

	switch req.Type {
	case upd.ReqStreamAccess:
		// input/output both supported; no further fields to set.

	case upd.ReqStreamInput:
		p := req.Payload.(*upd.StreamInput)
		p.Consumed = ctx.handleInput(p.Data)

	case upd.ReqStreamOutput:
		p := req.Payload.(*upd.StreamOutput)
		p.Data = ctx.outBuf
		ctx.outBuf = nil
		req.Result = upd.ResultOK
		if req.Callback != nil {
			req.Callback(req)
		}
		return true

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

// sessionState names the position of a session in its lifecycle, per
// the state machine spec.md documents; it exists for diagnostics and
// tests, not for control flow (every transition below is driven by
// explicit callbacks, not by switching on this field).
type sessionState int

const (
	stateResolving sessionState = iota
	stateExecLocked
	stateExecuting
	stateRunning
	stateWriting
	stateReading
	stateClosed
)

type session struct {
	id    uint16
	ctx   *streamCtx
	state sessionState

	prog *upd.File
	io   *upd.File
	lock *upd.Lock
	watch *upd.Watch

	parsing int
	inBuf   []byte
}

type streamCtx struct {
	file     *upd.File
	sessions []*session
	outBuf   []byte
}

func (ctx *streamCtx) findSession(id uint16) *session {
	for _, ss := range ctx.sessions {
		if ss.id == id {
			return ss
		}
	}
	return nil
}

func (ctx *streamCtx) indexOfSession(target *session) int {
	for i, ss := range ctx.sessions {
		if ss == target {
			return i
		}
	}
	return -1
}

// handleInput parses as many complete frames as are present in data
// and dispatches each to its session (or to session creation, for an
// unseen sid), returning how many leading bytes were consumed. A
// trailing partial frame is left for the caller to re-submit once more
// bytes have arrived.
func (ctx *streamCtx) handleInput(data []byte) int {
	rem := data
	consumed := 0

	for len(rem) >= frameHeaderSize {
		id := binary.LittleEndian.Uint16(rem[0:2])
		sz := binary.LittleEndian.Uint16(rem[2:4])
		whole := frameHeaderSize + int(sz)
		if len(rem) < whole {
			break
		}
		payload := rem[frameHeaderSize:whole]

		ss := ctx.findSession(id)
		switch {
		case ss == nil:
			ctx.addSession(id, string(payload))
		case sz == 0:
			ctx.deleteSession(ss)
		case len(ss.inBuf)+len(payload) > upd.SessionBufferMax:
			ctx.file.Iso().Msgf("upd.prog.parallelism: session buffer allocation failure")
			ctx.deleteSession(ss)
		default:
			ss.inBuf = append(ss.inBuf, payload...)
			ctx.pumpInput(ss)
		}

		rem = rem[whole:]
		consumed += whole
	}
	return consumed
}

// emitClose writes a zero-length frame for id, the close sentinel every
// terminal path (successful or aborted) ends with.
func (ctx *streamCtx) emitClose(id uint16) {
	ctx.pipeOutput(id, nil)
}

// pipeOutput frames data for id and appends it to the output buffer,
// fragmenting anything bigger than a u16 can size into OutputFrameMax
// chunks (spec.md §4.7).
func (ctx *streamCtx) pipeOutput(id uint16, data []byte) {
	if len(data) > upd.OutputFrameMax {
		for len(data) > 0 {
			part := data
			if len(part) > upd.OutputFrameMax {
				part = part[:upd.OutputFrameMax]
			}
			ctx.pipeOutput(id, part)
			data = data[len(part):]
		}
		return
	}

	frame := make([]byte, frameHeaderSize+len(data))
	binary.LittleEndian.PutUint16(frame[0:2], id)
	binary.LittleEndian.PutUint16(frame[2:4], uint16(len(data)))
	copy(frame[frameHeaderSize:], data)

	if len(ctx.outBuf)+len(frame) > upd.OutputBufferMax {
		ctx.file.Iso().Msgf("upd.prog.parallelism: output buffer overflow")
		return
	}
	ctx.outBuf = append(ctx.outBuf, frame...)
	ctx.file.Trigger(upd.FileEventUpdate)
}
