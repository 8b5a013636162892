package fibre

import (
	"fmt"

	"go.uber.org/zap"
)

func hostField(h *Host) zap.Field {
	return zap.Stringer("host", h.id)
}

// fibreField logs a fibre's identity as its pointer value, which is
// stable for the fibre's lifetime and good enough to correlate log
// lines without needing to allocate a UUID per fibre.
func fibreField(f *Fibre) zap.Field {
	return zap.String("fibre", fmt.Sprintf("%p", f))
}
