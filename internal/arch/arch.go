// Package arch supplies the one piece spec.md treats as an external
// collaborator: an opaque per-fibre execution context with origin/create/
// destroy/switch operations. Go gives us no way to reach into another
// goroutine's machine stack the way ucontext_t or a hand-rolled setjmp
// trampoline would, so a Context here is a parked goroutine and Switch is
// a rendezvous over a pair of channels — the same technique Cadence's
// workflow dispatcher uses to keep goroutine-backed coroutines running
// one at a time in lock-step (coroutineState.yield/unblock/aboutToBlock).
//
// Exactly one side of the resume/kill channel pair is ever unblocked at
// once, so at most one Context's user code is ever actually executing —
// the single-threaded cooperative property the rest of this module
// depends on.
package arch

import "runtime"

// Context is the Go stand-in for fibre_arch: either the machine state of
// whichever goroutine called Origin, or a freshly spawned goroutine
// parked until its first Switch-in.
type Context struct {
	resume   chan struct{}
	kill     chan struct{}
	isOrigin bool
}

// Origin marks the calling goroutine's own point of execution as a
// context. No goroutine is spawned; the caller's own stack IS the
// context, and later Switch calls simply block in place on it.
func Origin() *Context {
	return &Context{resume: make(chan struct{}), kill: make(chan struct{}), isOrigin: true}
}

// Create allocates a new context whose first Switch-in begins executing
// fn. fn must never return normally — the caller (the fibre bootstrap
// trampoline) is expected to switch away for good before falling off the
// end; if it doesn't, that is a fatal usage error.
func Create(fn func()) *Context {
	c := &Context{resume: make(chan struct{}), kill: make(chan struct{})}
	go func() {
		select {
		case <-c.resume:
		case <-c.kill:
			return
		}
		fn()
		panic("arch: entry function returned without switching away")
	}()
	return c
}

// Destroy releases a context. For a context created by Create whose
// goroutine is currently parked (either never started, or blocked inside
// a Switch that will never be resumed because its fibre is complete),
// closing kill wakes it so its stack can actually be freed by the Go
// runtime rather than leaking a parked goroutine forever. Origin
// contexts never own a goroutine, so destroying one is a no-op — the
// same asymmetry fibre_arch_destroy has for is_origin contexts.
func Destroy(c *Context) {
	if c.isOrigin {
		return
	}
	close(c.kill)
}

// Switch transfers execution from src (the calling context) to dst,
// returning only once some later Switch targets src again. Identical
// source and destination short-circuit to a no-op, per the self-schedule
// guard spec.md requires of every selector built on top of this.
func Switch(dst, src *Context) {
	if dst == src {
		return
	}
	dst.resume <- struct{}{}
	select {
	case <-src.resume:
		return
	case <-src.kill:
		runtime.Goexit()
	}
}
