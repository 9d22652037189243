package proc

import (
	"errors"
	"fmt"
	"testing"
)

// sliceMemory is a single mapped region starting at base.
type sliceMemory struct {
	base  uint64
	data  []byte
	reads int
}

func (m *sliceMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	m.reads++
	if addr < m.base || addr >= m.base+uint64(len(m.data)) {
		return 0, fmt.Errorf("address %#x not mapped", addr)
	}
	n := copy(buf, m.data[addr-m.base:])
	return n, nil
}

func TestReadMemoryShortRead(t *testing.T) {
	mem := &sliceMemory{base: 0x1000, data: make([]byte, 16)}
	buf := make([]byte, 8)
	if err := readMemory(mem, buf, 0x1000); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	err := readMemory(mem, buf, 0x100c)
	var mre *MemoryReadError
	if !errors.As(err, &mre) || !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected a short read, got %v", err)
	}
	if mre.Addr != 0x1010 || mre.Size != 4 {
		t.Fatalf("wrong error %v", mre)
	}

	err = readMemory(mem, buf, 0x2000)
	if !errors.As(err, &mre) || mre.Addr != 0x2000 {
		t.Fatalf("expected MemoryReadError at 0x2000, got %v", err)
	}

	if err := readMemory(mem, nil, 0x2000); err != nil {
		t.Fatalf("empty read failed: %v", err)
	}
}

// wrappingMemory fails every read with a MemoryReadError wrapped in
// another error, like readers that annotate the errors of the memory
// source they are built on.
type wrappingMemory struct{}

func (wrappingMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	return 0, fmt.Errorf("core file: %w", &MemoryReadError{Addr: addr, Size: len(buf), Err: ErrShortRead})
}

func TestReadMemoryWrappedError(t *testing.T) {
	err := readMemory(wrappingMemory{}, make([]byte, 8), 0x3000)
	if err == nil || err.Error() != "core file: "+(&MemoryReadError{Addr: 0x3000, Size: 8, Err: ErrShortRead}).Error() {
		t.Fatalf("unexpected error %v", err)
	}
	var mre *MemoryReadError
	if !errors.As(err, &mre) || errors.As(mre.Err, new(*MemoryReadError)) {
		t.Fatalf("MemoryReadError wrapped twice: %v", err)
	}
}

func TestCacheMemory(t *testing.T) {
	mem := &sliceMemory{base: 0x1000, data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}

	cached := cacheMemory(mem, 0x1002, 4)
	if _, ok := cached.(*memCache); !ok {
		t.Fatalf("region not cached: %T", cached)
	}
	reads := mem.reads
	buf := make([]byte, 2)
	if err := readMemory(cached, buf, 0x1003); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 4 || buf[1] != 5 || mem.reads != reads {
		t.Fatalf("read %v with %d target reads", buf, mem.reads-reads)
	}
	// Reads outside of the cached region go to the target.
	if err := readMemory(cached, buf, 0x1000); err != nil || buf[0] != 1 || mem.reads != reads+1 {
		t.Fatalf("read %v err %v", buf, err)
	}

	if cacheMemory(cached, 0x1003, 2) != cached {
		t.Fatal("nested cache created for a region already cached")
	}
	if c := cacheMemory(mem, 0x1006, 16); c != MemoryReader(mem) {
		t.Fatalf("unreadable region cached: %v", c)
	}
}

func TestCompositeMemory(t *testing.T) {
	mem := &sliceMemory{base: 0x1000, data: []byte{9, 9}}
	cm := &compositeMemory{realmem: mem, data: []byte{1, 2, 3, 4}}
	buf := make([]byte, 2)
	if _, err := cm.ReadMemory(buf, fakeAddress+2); err != nil || buf[0] != 3 || buf[1] != 4 {
		t.Fatalf("read %v err %v", buf, err)
	}
	if _, err := cm.ReadMemory(buf, 0x1000); err != nil || buf[0] != 9 {
		t.Fatalf("read %v err %v", buf, err)
	}
}
