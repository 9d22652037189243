package native

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/go-delve/lpdbg/pkg/logflags"
	"github.com/go-delve/lpdbg/pkg/proc"
)

// processMemory reads the memory of a live process with
// process_vm_readv, falling back to /proc/pid/mem when the system call is
// not available.
type processMemory struct {
	pid int
	mem *os.File
}

var _ proc.MemoryReader = &processMemory{}

func openProcessMemory(pid int) (*processMemory, error) {
	if err := unix.Kill(pid, 0); err != nil {
		return nil, fmt.Errorf("could not attach to pid %d: %v", pid, err)
	}
	return &processMemory{pid: pid}, nil
}

// ReadMemory reads len(buf) bytes at addr.
func (p *processMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	n, err := unix.ProcessVMReadv(p.pid, local, remote, 0)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, syscall.ENOSYS) && !errors.Is(err, syscall.EPERM) {
		return n, err
	}
	if logflags.Native() {
		logflags.NativeLogger().Debugf("process_vm_readv(%d, %#x): %v, using /proc/%d/mem", p.pid, addr, err, p.pid)
	}
	return p.readProcMem(buf, addr)
}

func (p *processMemory) readProcMem(buf []byte, addr uint64) (int, error) {
	if p.mem == nil {
		fh, err := os.Open(fmt.Sprintf("/proc/%d/mem", p.pid))
		if err != nil {
			return 0, err
		}
		p.mem = fh
	}
	return p.mem.ReadAt(buf, int64(addr))
}

// Close releases /proc/pid/mem if it was opened.
func (p *processMemory) Close() error {
	if p.mem == nil {
		return nil
	}
	err := p.mem.Close()
	p.mem = nil
	return err
}

func addressOf(buf []byte) uint64 {
	return uint64(uintptr(unsafe.Pointer(&buf[0])))
}
