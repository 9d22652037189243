// Package native reads the memory of a live process.
//
// The process must be stopped (for example by a debugger attached to it or
// with SIGSTOP) while it is inspected, nothing here stops it.
package native

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/go-delve/lpdbg/pkg/logflags"
	"github.com/go-delve/lpdbg/pkg/proc"
)

// ErrNativeBackendDisabled is returned on systems where live processes
// can not be inspected.
var ErrNativeBackendDisabled = errors.New("live process inspection is only supported on linux")

// _AT_ENTRY is the auxiliary vector entry holding the entry point.
const _AT_ENTRY = 9

// Attach returns a Target reading the memory of the process pid, whose
// executable is exePath. If exePath is empty the executable is found
// through /proc.
func Attach(pid int, exePath string) (*proc.Target, error) {
	if exePath == "" {
		exePath = fmt.Sprintf("/proc/%d/exe", pid)
	}
	mem, err := openProcessMemory(pid)
	if err != nil {
		return nil, err
	}
	bi := proc.NewBinaryInfo()
	if err := bi.LoadBinaryInfo(exePath); err != nil {
		mem.Close()
		return nil, err
	}
	if auxv, err := os.ReadFile(fmt.Sprintf("/proc/%d/auxv", pid)); err == nil {
		bi.SetStaticBaseFromEntry(entryPointFromAuxv(auxv, bi.PtrSize))
	} else if logflags.Native() {
		logflags.NativeLogger().Debugf("could not read auxv of %d: %v", pid, err)
	}
	t := proc.NewTarget(bi, mem, mem)
	t.Pid = pid
	return t, nil
}

func entryPointFromAuxv(auxv []byte, ptrSize int) uint64 {
	rd := bytes.NewReader(auxv)
	word := make([]byte, ptrSize)
	read := func() (uint64, bool) {
		if n, _ := rd.Read(word); n != len(word) {
			return 0, false
		}
		if ptrSize == 4 {
			return uint64(binary.LittleEndian.Uint32(word)), true
		}
		return binary.LittleEndian.Uint64(word), true
	}
	for {
		tag, ok := read()
		if !ok {
			return 0
		}
		val, ok := read()
		if !ok {
			return 0
		}
		if tag == _AT_ENTRY {
			return val
		}
	}
}
