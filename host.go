package fibre

import (
	mapset "github.com/deckarep/golang-set"
	"github.com/google/uuid"
	lock "github.com/viney-shih/go-lock"
	"go.uber.org/zap"
)

// Host is the Go stand-in for the C library's per-thread globals
// (tls_fibre: inited, sstack, async_atomic). It must be driven from a
// single goroutine at a time — typically one pinned with
// runtime.LockOSThread, mirroring the one-OS-thread assumption the C
// library gets for free from __thread storage. The guard mutex is a
// best-effort misuse detector, not a substitute for that discipline:
// it only catches two goroutines entering a Host method at the same
// instant, not arbitrary interleaving across a blocked switch (see
// guardEnter).
type Host struct {
	id  uuid.UUID
	log *zap.Logger

	guard lock.CASMutex

	sstack      *Selector
	asyncAtomic uint32
	finished    bool

	liveFibres mapset.Set
}

// NewHost constructs a Host ready for use — the Go analogue of
// fibre_init(), minus the -EALREADY case: since there is no hidden
// global to double-initialise, a second Host is simply a second value.
func NewHost(opts ...Option) *Host {
	h := &Host{
		id:         uuid.New(),
		log:        zap.NewNop(),
		guard:      lock.NewCASMutex(),
		liveFibres: mapset.NewSet(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log.Debug("host created", hostField(h))
	return h
}

// Finish tears down a Host — the Go analogue of fibre_finish(). It is
// fatal to call with a non-empty selector stack or a nonzero atomicity
// counter, and ErrAlready if the Host was already finished.
func (h *Host) Finish() error {
	release := h.guardEnter()
	defer release()

	if h.finished {
		return ErrAlready
	}
	if h.sstack != nil {
		panic("fibre: finish called with a non-empty selector stack")
	}
	if h.asyncAtomic != 0 {
		panic("fibre: finish called with a nonzero atomicity counter")
	}
	h.finished = true
	h.log.Debug("host finished", hostField(h))
	return nil
}

// guardEnter is a best-effort reentrancy check, not a mutual-exclusion
// lock held across a blocking handoff: a fibre that calls Schedule or
// ScheduleTo releases the guard before the underlying arch.Switch
// blocks (see Schedule/ScheduleTo below), because ownership of "who is
// allowed to touch this Host next" passes to whichever fibre the switch
// resumes, not to whoever is still parked mid-call. Holding the guard
// across that block would make the very next legitimate resumption look
// like concurrent misuse.
func (h *Host) guardEnter() func() {
	if !h.guard.TryLock() {
		panic("fibre: concurrent use of a Host from multiple goroutines")
	}
	return func() { h.guard.Unlock() }
}

// Push links sel onto the top of the selector stack and invokes its
// post_push hook. If post_push fails, the link is rolled back.
func (h *Host) Push(sel *Selector) error {
	release := h.guardEnter()
	defer release()

	sel.parent = h.sstack
	h.sstack = sel
	if err := sel.impl.postPush(); err != nil {
		h.sstack = sel.parent
		sel.parent = nil
		return err
	}
	sel.onStack = true
	h.log.Debug("selector pushed", hostField(h), zap.Stringer("selector", sel.id))
	return nil
}

// Pop invokes the top selector's pre_pop hook; on success it is
// unlinked and returned. ErrBusy leaves the stack unchanged.
func (h *Host) Pop() (*Selector, error) {
	release := h.guardEnter()
	defer release()

	sel := h.sstack
	if sel == nil {
		panic("fibre: pop on an empty selector stack")
	}
	if err := sel.impl.prePop(); err != nil {
		return nil, err
	}
	h.sstack = sel.parent
	sel.parent = nil
	sel.onStack = false
	h.log.Debug("selector popped", hostField(h), zap.Stringer("selector", sel.id))
	return sel, nil
}

// CanSwitchExplicit reports whether the top selector currently permits
// ScheduleTo.
func (h *Host) CanSwitchExplicit() bool {
	release := h.guardEnter()
	defer release()
	return h.topOrPanic().impl.canSwitchExplicit()
}

// CanSwitchImplicit reports whether the top selector currently permits
// Schedule.
func (h *Host) CanSwitchImplicit() bool {
	release := h.guardEnter()
	defer release()
	return h.topOrPanic().impl.canSwitchImplicit()
}

// ScheduleTo performs an explicit switch to f. Fatal if explicit
// switching is not currently permitted, if f belongs to a different
// Host, or if f has already completed.
func (h *Host) ScheduleTo(f *Fibre) {
	release := h.guardEnter()
	released := false
	defer func() {
		if !released {
			release()
		}
	}()

	top := h.topOrPanic()
	if f.host != h {
		panic("fibre: ScheduleTo target belongs to a different Host")
	}
	if !top.impl.canSwitchExplicit() {
		panic("fibre: explicit switching not permitted by the current selector")
	}
	if f.Completed() {
		panic("fibre: ScheduleTo target has already completed")
	}
	impl := top.impl
	h.log.Debug("schedule explicit", hostField(h), fibreField(f))
	released = true
	release()
	impl.schedule(f)
}

// Schedule performs an implicit switch, letting the top selector choose
// the destination. Fatal if implicit switching is not currently
// permitted (e.g. calling it from the origin fibre of an origin
// selector).
func (h *Host) Schedule() {
	release := h.guardEnter()
	released := false
	defer func() {
		if !released {
			release()
		}
	}()

	top := h.topOrPanic()
	if !top.impl.canSwitchImplicit() {
		panic("fibre: implicit switching not permitted here")
	}
	impl := top.impl
	h.log.Debug("schedule implicit", hostField(h))
	released = true
	release()
	impl.schedule(nil)
}

// GetCurrent returns the fibre the top selector considers current, or
// nil iff the caller is that selector's origin context.
func (h *Host) GetCurrent() *Fibre {
	release := h.guardEnter()
	defer release()
	return h.topOrPanic().impl.getCurrent()
}

func (h *Host) topOrPanic() *Selector {
	if h.sstack == nil {
		panic("fibre: no selector pushed on this Host")
	}
	return h.sstack
}

func (h *Host) logger() *zap.Logger {
	if h.log == nil {
		return zap.NewNop()
	}
	return h.log
}

func (h *Host) trackFibre(f *Fibre) {
	h.liveFibres.Add(f)
}

func (h *Host) untrackFibre(f *Fibre) {
	h.liveFibres.Remove(f)
}

// LiveFibreCount returns the number of fibres created against h that
// have not yet been destroyed — a debug/introspection aid, not part of
// the suspend/resume contract.
func (h *Host) LiveFibreCount() int {
	return h.liveFibres.Cardinality()
}
