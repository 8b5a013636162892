package fibre

import (
	"github.com/google/uuid"

	"fibrelib/internal/arch"
)

// schedulerSelector is the concrete selector grounded on
// original_source/src/sel_scheduler.c: a user-supplied callback picks
// the next fibre on every implicit schedule; explicit scheduling is
// gated by allowExplicit, fixed at construction.
//
// Unlike sel_scheduler.c, this selector's prePop destroys its captured
// origin context, matching originSelector structurally — on the Go
// side arch.Destroy is a no-op for an origin context either way, so
// this is cosmetic symmetry with sel_origin.c, not a leak fix; see
// DESIGN.md.
type schedulerSelector struct {
	origin        *arch.Context
	current       *Fibre
	cb            func(arg any) *Fibre
	cbArg         any
	allowExplicit bool
}

// NewSchedulerSelector constructs a scheduler selector
// (fibre_selector_scheduler). cb is invoked on every implicit schedule
// to choose the next fibre; a nil return means "return to the origin".
func NewSchedulerSelector(cb func(arg any) *Fibre, cbArg any, allowExplicit bool) *Selector {
	return &Selector{
		id: uuid.New(),
		impl: &schedulerSelector{
			cb:            cb,
			cbArg:         cbArg,
			allowExplicit: allowExplicit,
		},
	}
}

func (s *schedulerSelector) postPush() error {
	s.origin = arch.Origin()
	s.current = nil
	return nil
}

func (s *schedulerSelector) prePop() error {
	if s.current != nil {
		return ErrBusy
	}
	arch.Destroy(s.origin)
	return nil
}

func (s *schedulerSelector) canSwitchExplicit() bool { return s.allowExplicit }

func (s *schedulerSelector) canSwitchImplicit() bool { return true }

func (s *schedulerSelector) schedule(target *Fibre) {
	if target != nil && !s.allowExplicit {
		panic("fibre: explicit switching not permitted by this scheduler selector")
	}

	var src *arch.Context
	if s.current != nil {
		src = s.current.ctx
	} else {
		src = s.origin
	}

	f := target
	if f == nil {
		f = s.cb(s.cbArg)
	}

	var dst *arch.Context
	if f != nil {
		dst = f.ctx
		s.current = f
	} else {
		dst = s.origin
		s.current = nil
	}
	// arch.Switch no-ops when dst == src, which covers both "callback
	// returned the fibre that is already current" and "asked to return
	// to the origin while already there" — the self-schedule guard
	// spec.md §4.F and §9 call for, centralized in the arch layer so
	// every selector gets it for free.
	arch.Switch(dst, src)
}

func (s *schedulerSelector) getCurrent() *Fibre { return s.current }

func (s *schedulerSelector) destroy() {
	if s.current != nil {
		panic("fibre: scheduler selector destroyed while a fibre is current")
	}
}
