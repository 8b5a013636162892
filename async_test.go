package fibre_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibrelib"
)

// TestSuspendFDReadable exercises scenario 3: a fibre suspends waiting
// on a file descriptor, and the dispatcher resumes it once it decides
// the descriptor is ready.
func TestSuspendFDReadable(t *testing.T) {
	h := fibre.NewHost()

	var waiter *fibre.Fibre
	resumable := false
	sel := fibre.NewSchedulerSelector(func(arg any) *fibre.Fibre {
		if resumable && waiter != nil && !waiter.Completed() {
			return waiter
		}
		return nil
	}, nil, true)
	require.NoError(t, h.Push(sel))
	h.AsyncSetMask(uint32(fibre.AsyncFDReadable))

	const wantFD = 7
	var suspendErr error
	f, err := fibre.Create(h, func(arg any) {
		suspendErr = h.SuspendFDReadable(wantFD)
	}, nil)
	require.NoError(t, err)
	waiter = f

	h.ScheduleTo(f)
	assert.False(t, f.Completed())
	assert.Equal(t, uint32(fibre.AsyncFDReadable), fibre.AsyncType(f))
	assert.Equal(t, wantFD, fibre.AsyncFDReadableOf(f))

	resumable = true
	h.Schedule()
	assert.True(t, f.Completed())
	assert.NoError(t, suspendErr)

	fibre.Destroy(f)
	_, err = h.Pop()
	require.NoError(t, err)
}

// TestAbortDeliversInterrupted exercises scenario 4: Abort makes the
// next resumption of a suspended fibre observe ErrInterrupted.
func TestAbortDeliversInterrupted(t *testing.T) {
	h := fibre.NewHost()

	var waiter *fibre.Fibre
	resumable := false
	sel := fibre.NewSchedulerSelector(func(arg any) *fibre.Fibre {
		if resumable && waiter != nil && !waiter.Completed() {
			return waiter
		}
		return nil
	}, nil, true)
	require.NoError(t, h.Push(sel))
	h.AsyncSetMask(uint32(fibre.AsyncPoll))

	var suspendErr error
	f, err := fibre.Create(h, func(arg any) {
		suspendErr = h.SuspendPoll()
	}, nil)
	require.NoError(t, err)
	waiter = f

	h.ScheduleTo(f)
	assert.False(t, f.Completed())

	fibre.Abort(f)
	resumable = true
	h.Schedule()

	assert.True(t, f.Completed())
	assert.ErrorIs(t, suspendErr, fibre.ErrInterrupted)

	fibre.Destroy(f)
	_, err = h.Pop()
	require.NoError(t, err)
}

// TestAtomicityBlocksSuspend exercises scenario 5: while the atomicity
// counter is nonzero, AsyncCanSuspend must report false and suspending
// anyway is a programmer bug.
func TestAtomicityBlocksSuspend(t *testing.T) {
	h := fibre.NewHost()
	sel := fibre.NewOriginSelector()
	require.NoError(t, h.Push(sel))
	h.AsyncSetMask(uint32(fibre.AsyncPoll))

	f, err := fibre.Create(h, func(arg any) {
		h.AsyncAtomicityUp()
		assert.False(t, h.AsyncCanSuspend(uint32(fibre.AsyncPoll)))
		assert.Panics(t, func() { h.SuspendPoll() })
		h.AsyncAtomicityDown()
		assert.True(t, h.AsyncCanSuspend(uint32(fibre.AsyncPoll)))
	}, nil)
	require.NoError(t, err)

	h.ScheduleTo(f)
	assert.True(t, f.Completed())
	fibre.Destroy(f)
	_, err = h.Pop()
	require.NoError(t, err)
}

// TestUseCBSuspend exercises the CHECK_CB suspension method: the
// dispatcher polls a predicate until it returns true.
func TestUseCBSuspend(t *testing.T) {
	h := fibre.NewHost()

	var waiter *fibre.Fibre
	resumable := false
	sel := fibre.NewSchedulerSelector(func(arg any) *fibre.Fibre {
		if resumable && waiter != nil && !waiter.Completed() {
			return waiter
		}
		return nil
	}, nil, true)
	require.NoError(t, h.Push(sel))
	h.AsyncSetMask(uint32(fibre.AsyncCheckCB))

	ready := false
	var suspendErr error
	f, err := fibre.Create(h, func(arg any) {
		suspendErr = h.SuspendUseCB("token", func(a any) bool {
			return a == "token" && ready
		})
	}, nil)
	require.NoError(t, err)
	waiter = f

	h.ScheduleTo(f)
	assert.False(t, f.Completed())

	arg, cb := fibre.AsyncUseCBOf(f)
	assert.Equal(t, "token", arg)
	assert.False(t, cb(arg))

	ready = true
	assert.True(t, cb(arg))

	resumable = true
	h.Schedule()
	assert.True(t, f.Completed())
	assert.NoError(t, suspendErr)

	fibre.Destroy(f)
	_, err = h.Pop()
	require.NoError(t, err)
}
