package fibre

import "github.com/google/uuid"

// selectorImpl is the capability set every concrete selector must
// implement — the Go interface standing in for the C vtable of
// post_push/pre_pop/can_switch_explicit/can_switch_implicit/schedule/
// get_current/destroy.
type selectorImpl interface {
	destroy()
	postPush() error
	prePop() error
	canSwitchExplicit() bool
	canSwitchImplicit() bool
	schedule(target *Fibre)
	getCurrent() *Fibre
}

// Selector is a policy object that decides whether explicit
// (target-named) and/or implicit (policy-chosen) scheduling is
// currently permitted, and which fibre to switch to when asked. It is
// opaque to callers beyond Push/Pop/Free; asyncMask is carried here
// (outside impl) exactly as in the C struct fibre_selector, since the
// mask belongs to the stack slot, not to any one selector
// implementation.
type Selector struct {
	id        uuid.UUID
	parent    *Selector
	onStack   bool
	impl      selectorImpl
	asyncMask uint32
}

// Free releases a selector. It must not currently be on any stack. Note
// that parent alone cannot answer that question: parent is null both
// for a selector that was never pushed and for one sitting at the
// bottom of a stack (spec.md §3), so onStack is tracked separately by
// Push/Pop.
func Free(s *Selector) {
	if s.onStack {
		panic("fibre: selector_free called on a selector still on a stack")
	}
	s.impl.destroy()
}
