package parallelism

import "github.com/kvothestack/upd"

// addSession resolves name to a program file, takes a shared lock on
// it, executes it, and (on success) registers the resulting stream as
// a running session under id. Every abort path ends in exactly one
// emitClose for id; a session that starts running emits its one close
// later, from deleteSession. ctx.file is held
// with an extra ref for the whole chain so the stream multiplexer
// itself cannot be torn down mid-resolution (original_source's
// stream_add_session_/session_find_cb_/session_lock_for_exec_cb_/
// session_exec_cb_ chain, collapsed into synchronous Go calls since
// this implementation's path resolver and lock manager only ever defer
// a callback when a lock is genuinely contended).
func (ctx *streamCtx) addSession(id uint16, name string) {
	if ctx.findSession(id) != nil {
		ctx.emitClose(id)
		return
	}

	ss := &session{id: id, ctx: ctx, state: stateResolving}
	ctx.file.Ref()

	pf := &upd.PathFind{Path: name}
	ctx.file.Iso().PathFindWithDup(pf)
	if pf.ResultFile == nil || pf.Remainder != "" {
		if pf.ResultFile != nil {
			pf.ResultFile.Unref()
		}
		ctx.emitClose(id)
		ctx.file.Unref()
		return
	}

	ss.prog = pf.ResultFile
	ss.state = stateExecLocked
	ss.prog.Lock(false, nil, func(l *upd.Lock) {
		ctx.onProgLocked(ss, l)
	})
}

// onProgLocked issues PROG_EXEC and takes ss.io's ref from inside the
// request's own Callback, before Handle's post-callback Unref of its
// creation ref runs — matching session_exec_cb_ taking its ref inside
// req->cb rather than after the handler has already dropped the file
// to zero and torn it down.
func (ctx *streamCtx) onProgLocked(ss *session, l *upd.Lock) {
	if !l.Ok {
		ss.prog.Unref()
		ctx.emitClose(ss.id)
		ctx.file.Unref()
		return
	}

	ss.state = stateExecuting
	req := &upd.Request{File: ss.prog, Type: upd.ReqProgExec, Payload: &upd.ProgExec{}}
	req.Callback = func(r *upd.Request) {
		if r.Result != upd.ResultOK {
			return
		}
		if f := r.Payload.(*upd.ProgExec).File; f != nil {
			f.Ref()
		}
	}
	accepted := ss.prog.Iso().Req(req)
	ss.prog.Unlock(l)

	if !accepted || req.Result != upd.ResultOK || req.Payload.(*upd.ProgExec).File == nil {
		ss.prog.Unref()
		ctx.emitClose(ss.id)
		ctx.file.Unref()
		return
	}

	ss.io = req.Payload.(*upd.ProgExec).File
	ss.watch = ss.io.Watch(func(_ *upd.File, ev upd.FileEvent) {
		if ev == upd.FileEventUpdate {
			ctx.onIOUpdate(ss)
		}
		// DELETE is not expected here: sessions own the only ref that
		// keeps ss.io alive, and release it from deleteSession.
	})

	ctx.sessions = append(ctx.sessions, ss)
	ss.state = stateRunning
	ctx.file.Unref()

	ctx.pumpInput(ss)
}

// pumpInput forwards ss's buffered input to its child program one
// write at a time, guarded by an exclusive lock on ss.io so a
// concurrently arriving output read cannot interleave with it.
func (ctx *streamCtx) pumpInput(ss *session) {
	if ss.parsing != 0 || len(ss.inBuf) == 0 {
		return
	}
	ss.parsing = len(ss.inBuf)
	ss.state = stateWriting

	ctx.file.Ref()
	ss.io.Lock(true, nil, func(l *upd.Lock) {
		ctx.onInputLocked(ss, l)
	})
}

func (ctx *streamCtx) onInputLocked(ss *session, l *upd.Lock) {
	if !l.Ok {
		ctx.deleteSession(ss)
		ctx.file.Unref()
		return
	}

	req := &upd.Request{File: ss.io, Type: upd.ReqStreamInput, Payload: &upd.StreamInput{Data: ss.inBuf}}
	accepted := ss.io.Iso().Req(req)
	ss.io.Unlock(l)

	if !accepted || req.Result != upd.ResultOK {
		ctx.deleteSession(ss)
		ctx.file.Unref()
		return
	}

	consumed := req.Payload.(*upd.StreamInput).Consumed
	retry := ss.parsing != len(ss.inBuf)

	ss.parsing = 0
	ss.inBuf = append(ss.inBuf[:0], ss.inBuf[consumed:]...)
	if ss.state != stateClosed {
		ss.state = stateRunning
	}

	if retry {
		ctx.pumpInput(ss)
	}
	ctx.file.Unref()
}

// onIOUpdate reacts to the child program's stream reporting new
// output: take an exclusive lock, drain it, pipe it to the multiplexed
// output buffer.
func (ctx *streamCtx) onIOUpdate(ss *session) {
	ctx.file.Ref()
	ss.state = stateReading
	ss.io.Lock(true, nil, func(l *upd.Lock) {
		ctx.onOutputLocked(ss, l)
	})
}

func (ctx *streamCtx) onOutputLocked(ss *session, l *upd.Lock) {
	if !l.Ok {
		ctx.deleteSession(ss)
		ctx.file.Unref()
		return
	}

	req := &upd.Request{File: ss.io, Type: upd.ReqStreamOutput, Payload: &upd.StreamOutput{}}
	accepted := ss.io.Iso().Req(req)

	if accepted && req.Result == upd.ResultOK {
		data := req.Payload.(*upd.StreamOutput).Data
		if len(data) > 0 {
			ctx.pipeOutput(ss.id, data)
		}
		if ss.state != stateClosed {
			ss.state = stateRunning
		}
	} else {
		ctx.deleteSession(ss)
	}

	ss.io.Unlock(l)
	ctx.file.Unref()
}

// deleteSession tears a session down: it is removed from ctx.sessions
// first so re-entrant lookups (e.g. from within the emitClose trigger)
// never see it, then its close frame is emitted, then its resources
// are released.
func (ctx *streamCtx) deleteSession(ss *session) {
	idx := ctx.indexOfSession(ss)
	if idx < 0 {
		return
	}
	ctx.sessions = append(ctx.sessions[:idx], ctx.sessions[idx+1:]...)
	ss.state = stateClosed

	ctx.emitClose(ss.id)

	if ss.watch != nil {
		ss.io.Unwatch(ss.watch)
	}
	ss.inBuf = nil
	if ss.io != nil {
		ss.io.Unref()
	}
	if ss.prog != nil {
		ss.prog.Unref()
	}
}
