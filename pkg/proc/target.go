package proc

import (
	"errors"
	"io"

	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
)

// ErrTargetClosed is returned by operations on a Target after Close.
var ErrTargetClosed = errors.New("target closed")

// Target is an inspected program: the debug information of its
// executable paired with a source of its memory (a core file or a
// stopped live process). A Target never writes to that memory.
type Target struct {
	BinInfo *BinaryInfo
	mem     MemoryReader

	// Pid is the process id of a live target, 0 for core files.
	Pid int
	// CorePath is the path of the core file for post mortem targets.
	CorePath string

	closers []io.Closer
	closed  bool
}

// NewTarget returns a Target reading memory from mem. The closers are
// released, in order, by Close.
func NewTarget(bi *BinaryInfo, mem MemoryReader, closers ...io.Closer) *Target {
	return &Target{BinInfo: bi, mem: mem, closers: closers}
}

// Memory returns the memory of the target.
func (t *Target) Memory() MemoryReader {
	return t.mem
}

// NewVariable returns a view of the memory of t at addr as type typ.
func (t *Target) NewVariable(name string, addr uint64, typ godwarf.Type) *Variable {
	return NewVariable(name, addr, typ, t.BinInfo, t.mem)
}

// Global returns the global variable with the given fully qualified name.
func (t *Target) Global(name string) (*Variable, error) {
	if t.closed {
		return nil, ErrTargetClosed
	}
	addr, typ, err := t.BinInfo.FindGlobal(name)
	if err != nil {
		return nil, err
	}
	return t.NewVariable(name, addr, typ), nil
}

// Close releases the executable and the memory source.
func (t *Target) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	var firstErr error
	for _, c := range t.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := t.BinInfo.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
