package fibre_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibrelib"
)

// TestSchedulerSelectorRing drives a ring of 100 fibres under a single
// scheduler selector whose callback always advances to the next fibre,
// the stackful-coroutine-ring scenario spec.md §8 calls out as scenario 2.
func TestSchedulerSelectorRing(t *testing.T) {
	const n = 100
	const laps = 3
	h := fibre.NewHost()

	fibres := make([]*fibre.Fibre, n)
	next := 0
	completed := 0

	sel := fibre.NewSchedulerSelector(func(arg any) *fibre.Fibre {
		for completed < n {
			f := fibres[next]
			next = (next + 1) % n
			if !f.Completed() {
				return f
			}
		}
		return nil
	}, nil, false)
	require.NoError(t, h.Push(sel))

	for i := 0; i < n; i++ {
		f, err := fibre.Create(h, func(arg any) {
			for r := 0; r < laps; r++ {
				h.Schedule()
			}
			completed++
		}, nil)
		require.NoError(t, err)
		fibres[i] = f
	}

	h.Schedule()

	for _, f := range fibres {
		assert.True(t, f.Completed())
		fibre.Destroy(f)
	}
	_, err := h.Pop()
	require.NoError(t, err)
	fibre.Free(sel)
	assert.Equal(t, 0, h.LiveFibreCount())
}

// TestPopBusyWhileCurrent checks scenario 6: popping a selector whose
// current fibre is still set returns ErrBusy instead of corrupting the
// stack.
func TestPopBusyWhileCurrent(t *testing.T) {
	h := fibre.NewHost()
	sel := fibre.NewOriginSelector()
	require.NoError(t, h.Push(sel))

	f, err := fibre.Create(h, func(arg any) {
		_, popErr := h.Pop()
		assert.ErrorIs(t, popErr, fibre.ErrBusy)
		h.Schedule()
	}, nil)
	require.NoError(t, err)

	h.ScheduleTo(f)
	assert.False(t, f.Completed())

	h.ScheduleTo(f)
	assert.True(t, f.Completed())

	fibre.Destroy(f)
	_, err = h.Pop()
	require.NoError(t, err)
}

// TestExplicitSwitchDeniedByScheduler checks that a scheduler selector
// constructed with allowExplicit=false refuses ScheduleTo.
func TestExplicitSwitchDeniedByScheduler(t *testing.T) {
	h := fibre.NewHost()
	var target *fibre.Fibre
	picked := false
	sel := fibre.NewSchedulerSelector(func(arg any) *fibre.Fibre {
		if picked || target == nil || target.Completed() {
			return nil
		}
		picked = true
		return target
	}, nil, false)
	require.NoError(t, h.Push(sel))

	f, err := fibre.Create(h, func(arg any) {}, nil)
	require.NoError(t, err)
	target = f

	assert.False(t, h.CanSwitchExplicit())
	assert.Panics(t, func() { h.ScheduleTo(f) })

	h.Schedule()
	assert.True(t, f.Completed())
	fibre.Destroy(f)
	_, err = h.Pop()
	require.NoError(t, err)
}

// TestFinishRejectsNonEmptyStack checks Finish's fatal precondition.
func TestFinishRejectsNonEmptyStack(t *testing.T) {
	h := fibre.NewHost()
	sel := fibre.NewOriginSelector()
	require.NoError(t, h.Push(sel))
	assert.Panics(t, func() { h.Finish() })

	popped, err := h.Pop()
	require.NoError(t, err)
	fibre.Free(popped)
	require.NoError(t, h.Finish())
}

// TestFinishIsIdempotentOnlyOnce checks the -EALREADY mapping.
func TestFinishIsIdempotentOnlyOnce(t *testing.T) {
	h := fibre.NewHost()
	require.NoError(t, h.Finish())
	assert.ErrorIs(t, h.Finish(), fibre.ErrAlready)
}

// TestFreeBottomSelectorWhilePushedPanics checks that Free's on-stack
// check does not mistake a bottom-of-stack selector (parent == nil,
// same as a never-pushed one) for one that is safe to free. spec.md §3
// requires parent == nil at the bottom while the selector is still on
// the stack.
func TestFreeBottomSelectorWhilePushedPanics(t *testing.T) {
	h := fibre.NewHost()
	sel := fibre.NewOriginSelector()
	require.NoError(t, h.Push(sel))

	assert.Panics(t, func() { fibre.Free(sel) })

	popped, err := h.Pop()
	require.NoError(t, err)
	fibre.Free(popped)
	require.NoError(t, h.Finish())
}
