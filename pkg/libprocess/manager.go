package libprocess

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-delve/lpdbg/pkg/logflags"
	"github.com/go-delve/lpdbg/pkg/proc"
	"github.com/go-delve/lpdbg/pkg/terminal/colorize"
)

// ProcessManagerType is the type tag of the libprocess process manager.
const ProcessManagerType = "process::ProcessManager"

// ProcessManagerPrinter prints the process table of a
// process::ProcessManager, one line per process.
type ProcessManagerPrinter struct {
	v    *proc.Variable
	opts *Options
}

// NewProcessManagerPrinter returns a printer for the process manager v
// (or a pointer to it).
func NewProcessManagerPrinter(v *proc.Variable, opts *Options) *ProcessManagerPrinter {
	return &ProcessManagerPrinter{v: v, opts: opts}
}

// ProcessEntry is an element of the process table.
type ProcessEntry struct {
	Key     *proc.Variable // process::UPID
	Process *proc.Variable // process::ProcessBase*
}

// Table returns ProcessManager::processes, the std::_Hashtable behind the
// hashmap<UPID, ProcessBase*> of running processes.
func (p *ProcessManagerPrinter) Table() (*proc.Variable, error) {
	processes, err := p.v.Field("processes")
	if err != nil {
		return nil, err
	}
	return UnorderedMapTable(processes)
}

// Processes returns an iterator over the process table.
func (p *ProcessManagerPrinter) Processes() (*HashtableIterator, error) {
	table, err := p.Table()
	if err != nil {
		return nil, err
	}
	types, err := p.types()
	if err != nil {
		return nil, err
	}
	return NewHashtableIterator(types, table)
}

// Entries returns the entries of the process table in chain order. The
// entries read before an error are returned along with it.
func (p *ProcessManagerPrinter) Entries() ([]ProcessEntry, error) {
	it, err := p.Processes()
	if err != nil {
		return nil, err
	}
	var r []ProcessEntry
	for it.Next() {
		e, err := pairEntry(it.Value())
		if err != nil {
			return r, err
		}
		r = append(r, e)
	}
	return r, it.Err()
}

// KeyString returns the display form of the key of e, as used by String.
func (p *ProcessManagerPrinter) KeyString(e ProcessEntry) (string, error) {
	return p.formatKey(e.Key)
}

func (p *ProcessManagerPrinter) types() (TypeLookup, error) {
	if p.opts != nil && p.opts.Types != nil {
		return p.opts.Types, nil
	}
	if bi := p.v.BinInfo(); bi != nil {
		return bi, nil
	}
	return nil, fmt.Errorf("no debug information to resolve the types of %s", p.v)
}

// String renders a header with the number of processes the table claims
// to hold, followed by one line per entry of the table in node chain
// order.
func (p *ProcessManagerPrinter) String() (string, error) {
	table, err := p.Table()
	if err != nil {
		return "", err
	}
	count, err := ElementCount(table)
	if err != nil {
		return "", err
	}
	types, err := p.types()
	if err != nil {
		return "", err
	}
	it, err := NewHashtableIterator(types, table)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s with %s running processes\n",
		p.opts.style(colorize.TypeStyle, "ProcessManager"),
		p.opts.style(colorize.NumberStyle, strconv.FormatUint(count, 10)))

	max := 0
	if p.opts != nil {
		max = p.opts.MaxEntries
	}
	for it.Next() {
		if max > 0 && it.Count() > max {
			b.WriteString(" ... (truncated)\n")
			break
		}
		e, err := pairEntry(it.Value())
		if err != nil {
			return "", err
		}
		key, err := p.formatKey(e.Key)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " - %s at %s\n", p.opts.style(colorize.KeyStyle, key), formatAddress(e.Process))
	}
	if err := it.Err(); err != nil {
		if p.opts == nil || p.opts.ReadErrors != TruncateOnReadError {
			return "", err
		}
		fmt.Fprintf(&b, " ... %s\n", p.opts.style(colorize.ErrorStyle, chainError(err)))
	}
	if logflags.Libprocess() {
		logflags.LibprocessLogger().Debugf("process manager %#x: %d of %d processes listed", p.v.Addr, it.Count(), count)
	}
	return b.String(), nil
}

// chainError describes why the walk of the node chain stopped early.
func chainError(err error) string {
	var mre *proc.MemoryReadError
	if errors.As(err, &mre) {
		return fmt.Sprintf("(chain unreadable at %#x)", mre.Addr)
	}
	return fmt.Sprintf("(chain unreadable: %v)", err)
}

// pairEntry splits a std::pair element of the table.
func pairEntry(pair *proc.Variable) (ProcessEntry, error) {
	first, err := pair.Field("first")
	if err != nil {
		return ProcessEntry{}, err
	}
	second, err := pair.Field("second")
	if err != nil {
		return ProcessEntry{}, err
	}
	return ProcessEntry{Key: first, Process: second}, nil
}

// formatKey returns the display form of a table key: the brief identity
// for process ids, the contents for strings, the scalar value otherwise.
func (p *ProcessManagerPrinter) formatKey(key *proc.Variable) (string, error) {
	tag := key.TypeTag()
	switch {
	case isUPID(tag) && key.Kind == reflect.Struct:
		return NewUPIDPrinter(key, p.opts).BriefString()
	case isStdString(tag):
		s, _, err := ReadString(key, p.opts.maxStringLen())
		if err != nil {
			return "", err
		}
		return strconv.Quote(s), nil
	case key.Kind == reflect.Struct:
		return key.String(), nil
	}
	return key.FormatScalar()
}

// formatAddress returns the address of the process: the value of a
// pointer, the address of anything else.
func formatAddress(v *proc.Variable) string {
	if v.Kind == reflect.Ptr || v.Kind == reflect.UnsafePointer {
		addr, err := v.PointerValue()
		if err != nil {
			return "<unreadable>"
		}
		return fmt.Sprintf("%#x", addr)
	}
	return fmt.Sprintf("%#x", v.Addr)
}
