package fibre

import "go.uber.org/zap"

// AsyncSetMask records, on the currently top-most selector, which
// suspension methods the layer that pushed it knows how to resume. Async
// capability is scoped to the top-most selector only — a nested selector
// that wants to inherit it must explicitly proxy.
func (h *Host) AsyncSetMask(mask uint32) {
	release := h.guardEnter()
	defer release()
	h.topOrPanic().asyncMask = mask
}

// AsyncAtomicityUp disables suspension until a matching AtomicityDown.
// Nested use is supported; intended to bracket critical sections that
// must not yield mid-operation, the same way disabling preemption would
// for OS threads.
func (h *Host) AsyncAtomicityUp() {
	release := h.guardEnter()
	defer release()
	h.asyncAtomic++
}

// AsyncAtomicityDown is fatal if the counter is already zero.
func (h *Host) AsyncAtomicityDown() {
	release := h.guardEnter()
	defer release()
	if h.asyncAtomic == 0 {
		panic("fibre: atomicity-down with a zero counter")
	}
	h.asyncAtomic--
}

// AsyncCanSuspend reports whether a suspend_* call for method would
// currently succeed: the atomicity counter is zero, a selector is
// pushed, that selector's mask includes method, and it currently
// permits implicit switching.
func (h *Host) AsyncCanSuspend(method uint32) bool {
	release := h.guardEnter()
	defer release()
	if h.asyncAtomic != 0 || h.sstack == nil {
		return false
	}
	if h.sstack.asyncMask&method == 0 {
		return false
	}
	return h.sstack.impl.canSwitchImplicit()
}

// suspend is the common body of the three suspend_* primitives: stamp
// the current fibre's suspension record, implicitly schedule away, and
// report whether the resumption was a normal one or an abort.
func (h *Host) suspend(method asyncMethod, stamp func(f *Fibre)) error {
	if !h.AsyncCanSuspend(uint32(method)) {
		panic("fibre: suspend called when AsyncCanSuspend would be false")
	}
	f := h.GetCurrent()
	if f == nil {
		panic("fibre: suspend called from the origin context, not a fibre")
	}

	f.mu.Lock()
	if f.async != AsyncNone {
		f.mu.Unlock()
		panic("fibre: suspend called on a fibre that is already suspended")
	}
	f.async = method
	f.asyncAbort = false
	stamp(f)
	f.mu.Unlock()

	h.logger().Debug("suspend", hostField(h), fibreField(f), zap.Uint32("method", uint32(method)))
	h.Schedule()
	h.logger().Debug("resume", hostField(h), fibreField(f))

	f.mu.Lock()
	f.async = AsyncNone
	aborted := f.asyncAbort
	f.mu.Unlock()

	if aborted {
		return ErrInterrupted
	}
	return nil
}

// SuspendPoll suspends the current fibre with no completion signal: the
// dispatcher may resume it whenever convenient, retry-loop style.
func (h *Host) SuspendPoll() error {
	return h.suspend(AsyncPoll, func(f *Fibre) {})
}

// SuspendFDReadable suspends the current fibre until the dispatcher
// observes fd readable (not guaranteed if the resumption was an abort).
func (h *Host) SuspendFDReadable(fd int) error {
	return h.suspend(AsyncFDReadable, func(f *Fibre) { f.asyncFD = fd })
}

// SuspendUseCB suspends the current fibre until the dispatcher's
// repeated calls to cb(arg) return true; the dispatcher promises to
// stop calling cb once it has returned true.
func (h *Host) SuspendUseCB(arg any, cb func(any) bool) error {
	return h.suspend(AsyncCheckCB, func(f *Fibre) {
		f.asyncCBArg = arg
		f.asyncCB = cb
	})
}

// AsyncType returns the suspension method a suspended fibre is waiting
// on, or AsyncNone if it is not suspended.
func AsyncType(f *Fibre) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint32(f.async)
}

// AsyncFDReadableOf extracts the fd a FD_READABLE-suspended fibre is
// waiting on. Fatal if f is not suspended on that method.
func AsyncFDReadableOf(f *Fibre) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.async != AsyncFDReadable {
		panic("fibre: AsyncFDReadableOf on a fibre not suspended on FD_READABLE")
	}
	return f.asyncFD
}

// AsyncUseCBOf extracts the (arg, cb) pair a CHECK_CB-suspended fibre
// registered. Fatal if f is not suspended on that method.
func AsyncUseCBOf(f *Fibre) (any, func(any) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.async != AsyncCheckCB {
		panic("fibre: AsyncUseCBOf on a fibre not suspended on CHECK_CB")
	}
	return f.asyncCBArg, f.asyncCB
}

// Abort sets the one-shot abort flag on a suspended fibre. It does not
// itself resume the fibre; it only arranges that its next normal
// resumption observes ErrInterrupted instead of nil. Fatal if f is not
// currently suspended.
func Abort(f *Fibre) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.async == AsyncNone {
		panic("fibre: abort on a fibre that is not suspended")
	}
	f.asyncAbort = true
	f.host.logger().Debug("abort", hostField(f.host), fibreField(f))
}
