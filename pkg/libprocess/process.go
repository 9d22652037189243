package libprocess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
	"github.com/go-delve/lpdbg/pkg/logflags"
	"github.com/go-delve/lpdbg/pkg/proc"
	"github.com/go-delve/lpdbg/pkg/terminal/colorize"
)

// ProcessBaseType is the type tag of libprocess actors.
const ProcessBaseType = "process::ProcessBase"

// ProcessPrinter prints a process::ProcessBase: its id, whether it is
// managed by the process manager and its lifecycle state.
type ProcessPrinter struct {
	v    *proc.Variable
	opts *Options
}

// NewProcessPrinter returns a printer for the process v.
func NewProcessPrinter(v *proc.Variable, opts *Options) *ProcessPrinter {
	return &ProcessPrinter{v: v, opts: opts}
}

// String renders the process. The id, the managed flag and the state are
// read independently, a part that can not be read is left out.
func (p *ProcessPrinter) String() (string, error) {
	v, err := derefIfPointer(p.v)
	if err != nil {
		return "", err
	}
	if _, ok := v.RealType.(*godwarf.StructType); !ok {
		return "", fmt.Errorf("%s is not a process", v.TypeString())
	}

	var header []string
	if id, err := p.id(v); err == nil {
		header = append(header, "Process "+p.opts.style(colorize.KeyStyle, id))
	} else {
		p.omitted("pid", err)
	}
	if managed, err := p.managed(v); err == nil {
		if len(header) == 0 {
			header = append(header, "Process")
		}
		if managed {
			header = append(header, "(managed)")
		} else {
			header = append(header, "(not managed)")
		}
	} else {
		p.omitted("manage", err)
	}

	var lines []string
	if len(header) > 0 {
		lines = append(lines, strings.Join(header, " "))
	}
	if state, err := p.state(v); err == nil {
		lines = append(lines, p.opts.style(colorize.LabelStyle, "State: ")+state)
	} else {
		p.omitted("state", err)
	}
	return strings.Join(lines, "\n"), nil
}

func (p *ProcessPrinter) omitted(field string, err error) {
	if logflags.Libprocess() {
		logflags.LibprocessLogger().Debugf("process %#x: omitting %s: %v", p.v.Addr, field, err)
	}
}

func (p *ProcessPrinter) id(v *proc.Variable) (string, error) {
	pid, err := v.Field("pid")
	if err != nil {
		return "", err
	}
	return NewUPIDPrinter(pid, p.opts).BriefString()
}

func (p *ProcessPrinter) managed(v *proc.Variable) (bool, error) {
	manage, err := v.Field("manage")
	if err != nil {
		return false, err
	}
	return manage.AsBool()
}

// state reads ProcessBase::state, a std::atomic<State>. The integer is in
// the _M_i member of the atomic.
func (p *ProcessPrinter) state(v *proc.Variable) (string, error) {
	state, err := v.Field("state")
	if err != nil {
		return "", err
	}
	if state.HasField("_M_i") {
		if state, err = state.Field("_M_i"); err != nil {
			return "", err
		}
	}
	n, err := state.AsInt()
	if err != nil {
		return "", err
	}
	if et, ok := state.RealType.(*godwarf.EnumType); ok {
		if name, ok := et.Lookup(n); ok {
			return fmt.Sprintf("%s (%d)", name, n), nil
		}
	}
	return strconv.FormatInt(n, 10), nil
}

func derefIfPointer(v *proc.Variable) (*proc.Variable, error) {
	switch v.RealType.(type) {
	case *godwarf.PtrType, *godwarf.ReferenceType:
		return v.Deref()
	}
	return v, nil
}
