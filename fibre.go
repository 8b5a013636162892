package fibre

import (
	"sync"

	"fibrelib/internal/arch"
)

type asyncMethod uint32

// Async suspension methods. Values are part of the wire-stable ABI.
const (
	AsyncNone       asyncMethod = 0
	AsyncPoll       asyncMethod = 0x01
	AsyncFDReadable asyncMethod = 0x02
	AsyncCheckCB    asyncMethod = 0x04
)

type fibreFlags uint32

const (
	flagStarted fibreFlags = 1 << iota
	flagCompleted
)

// Fibre is a unit of cooperative execution: an entry function bound to
// its own execution context, tracked through uninitialized -> started ->
// completed. The zero value is not usable; construct with Create.
type Fibre struct {
	mu    sync.Mutex
	flags fibreFlags

	ctx      *arch.Context
	fn       func(arg any)
	fnArg    any
	host     *Host
	userData any

	// Async suspension record. Written by the fibre's own goroutine
	// immediately before it hands control to the dispatcher via
	// Host.Schedule, and read by the dispatcher only after that same
	// handoff resumes it — the channel rendezvous in internal/arch is
	// itself the happens-before edge. Every read and write of these
	// fields still takes mu, the same as flags and userData.
	async      asyncMethod
	asyncAbort bool
	asyncFD    int
	asyncCBArg any
	asyncCB    func(any) bool
}

// Create allocates a fibre bound to host, ready to run fn(arg) once
// scheduled but not yet started. userData is intentionally left at its
// zero value (nil) rather than pre-seeded, so a caller that reads it
// before calling SetUserData gets a visibly wrong answer instead of a
// silently plausible one.
func Create(host *Host, fn func(arg any), arg any) (*Fibre, error) {
	f := &Fibre{fn: fn, fnArg: arg, host: host}
	f.ctx = arch.Create(func() { f.bootstrap() })
	host.trackFibre(f)
	return f, nil
}

// bootstrap is the trampoline every fibre's context begins executing at.
// It must never return: after fn completes it implicitly schedules away,
// and a fibre that has completed is never chosen again, so this call
// blocks forever until the fibre is destroyed.
func (f *Fibre) bootstrap() {
	f.mu.Lock()
	if f.flags&(flagStarted|flagCompleted) != 0 {
		f.mu.Unlock()
		panic("fibre: bootstrap entered on an already-started fibre")
	}
	f.flags |= flagStarted
	f.mu.Unlock()

	f.host.logger().Debug("fibre starting", hostField(f.host), fibreField(f))
	f.fn(f.fnArg)

	f.mu.Lock()
	f.flags |= flagCompleted
	f.mu.Unlock()
	f.host.logger().Debug("fibre completed", hostField(f.host), fibreField(f))

	f.host.Schedule()
	panic("fibre: entry function returned past bootstrap")
}

// Recreate reinitialises a completed fibre for reuse: equivalent to
// Destroy followed by Create, but keeps the existing heap identity of f
// and preserves userData across the transition (left unspecified by
// spec.md's Open Question, resolved here as "unchanged" — see
// DESIGN.md).
func Recreate(f *Fibre, fn func(arg any), arg any) error {
	f.mu.Lock()
	if f.flags&flagCompleted == 0 {
		f.mu.Unlock()
		panic("fibre: recreate requires a completed fibre")
	}
	f.mu.Unlock()

	arch.Destroy(f.ctx)
	f.mu.Lock()
	f.flags = 0
	f.mu.Unlock()
	f.fn = fn
	f.fnArg = arg
	f.ctx = arch.Create(func() { f.bootstrap() })
	return nil
}

// Destroy releases a fibre. Allowed only when it was never invoked or
// has completed; destroying a started-but-not-completed fibre is a
// programmer bug.
func Destroy(f *Fibre) {
	f.mu.Lock()
	started := f.flags&flagStarted != 0
	completed := f.flags&flagCompleted != 0
	f.mu.Unlock()

	if started && !completed {
		panic("fibre: destroy of a started, not-completed fibre")
	}
	if completed {
		arch.Destroy(f.ctx)
	}
	f.host.untrackFibre(f)
}

// SetUserData attaches caller-defined data to f. The core never
// interprets it.
func (f *Fibre) SetUserData(d any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userData = d
}

// UserData returns whatever was last passed to SetUserData, or nil.
func (f *Fibre) UserData() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userData
}

// Started reports whether f's entry function has begun executing.
func (f *Fibre) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flags&flagStarted != 0
}

// Completed reports whether f's entry function has returned.
func (f *Fibre) Completed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flags&flagCompleted != 0
}
