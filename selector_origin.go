package fibre

import (
	"github.com/google/uuid"

	"fibrelib/internal/arch"
)

// originSelector is the concrete selector grounded directly on
// original_source/src/sel_origin.c: one designated "origin" context
// (the goroutine that pushed this selector) is returned to on every
// implicit schedule; explicit scheduling is always allowed.
type originSelector struct {
	origin  *arch.Context
	current *Fibre
}

// NewOriginSelector constructs an origin selector (fibre_selector_origin).
func NewOriginSelector() *Selector {
	return &Selector{id: uuid.New(), impl: &originSelector{}}
}

func (o *originSelector) postPush() error {
	o.origin = arch.Origin()
	o.current = nil
	return nil
}

func (o *originSelector) prePop() error {
	if o.current != nil {
		return ErrBusy
	}
	arch.Destroy(o.origin)
	return nil
}

func (o *originSelector) canSwitchExplicit() bool { return true }

func (o *originSelector) canSwitchImplicit() bool { return o.current != nil }

func (o *originSelector) schedule(target *Fibre) {
	var src *arch.Context
	if o.current != nil {
		src = o.current.ctx
	} else {
		src = o.origin
	}

	var dst *arch.Context
	if target != nil {
		dst = target.ctx
		o.current = target
	} else {
		dst = o.origin
		o.current = nil
	}
	arch.Switch(dst, src)
}

func (o *originSelector) getCurrent() *Fibre { return o.current }

func (o *originSelector) destroy() {
	if o.current != nil {
		panic("fibre: origin selector destroyed while a fibre is current")
	}
}
