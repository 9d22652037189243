package libprocess

import (
	"github.com/go-delve/lpdbg/pkg/printer"
	"github.com/go-delve/lpdbg/pkg/proc"
)

// Register adds the three libprocess printers to r: process::ProcessManager,
// process::ProcessBase and process identities (process::UPID and the
// process::PID<T> instantiations). The entries take precedence over
// anything registered earlier.
func Register(r *printer.Registry, opts *Options) {
	r.RegisterPattern(upidPattern, func(v *proc.Variable) printer.Printer {
		return NewUPIDPrinter(v, opts)
	})
	r.Register(ProcessBaseType, func(v *proc.Variable) printer.Printer {
		return NewProcessPrinter(v, opts)
	})
	r.Register(ProcessManagerType, func(v *proc.Variable) printer.Printer {
		return NewProcessManagerPrinter(v, opts)
	})
}
