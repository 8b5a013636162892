package fibre

import "errors"

// Sentinel errors mirroring the negative-errno returns of the original
// C API (spec.md §7). Fatal programmer-bug conditions are not among
// these: they panic instead, the idiomatic Go rendering of a debug-build
// assertion that the C library fires before aborting.
var (
	// ErrBusy is returned by (*Host).Pop while the popped selector's
	// current fibre is still set (-EBUSY).
	ErrBusy = errors.New("fibre: selector is busy, pop refused")

	// ErrAlready is returned by (*Host).Finish when the host has
	// already been finished (-EALREADY).
	ErrAlready = errors.New("fibre: host already finished")

	// ErrInterrupted is returned by the suspend family when the fibre
	// was resumed following Abort rather than normal completion
	// (-EINTR).
	ErrInterrupted = errors.New("fibre: async operation aborted")
)
