// Package test contains the fixtures shared by the tests of lpdbg: a
// sparse fake memory image and synthetic debug information shaped like
// the one GCC emits for libstdc++ and libprocess.
package test

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sort"
	"testing"
)

// HeapBase is the address of the first allocation of NewFakeMemory.
const HeapBase = 0x10000000

// FakeMemory is a MemoryReader backed by disjoint byte slices. Reads
// that are not fully contained in one region fail.
type FakeMemory struct {
	regions []*fakeRegion
	next    uint64
	Reads   int // number of ReadMemory calls served
}

type fakeRegion struct {
	base uint64
	data []byte
}

// NewFakeMemory returns an empty memory image.
func NewFakeMemory() *FakeMemory {
	return &FakeMemory{next: HeapBase}
}

// ReadMemory implements proc.MemoryReader.
func (mem *FakeMemory) ReadMemory(data []byte, addr uint64) (int, error) {
	mem.Reads++
	r := mem.region(addr)
	if r == nil {
		return 0, fmt.Errorf("address %#x not mapped", addr)
	}
	off := addr - r.base
	if off+uint64(len(data)) > uint64(len(r.data)) {
		n := copy(data, r.data[off:])
		return n, fmt.Errorf("read of %d bytes at %#x crosses the end of the mapping", len(data), addr)
	}
	copy(data, r.data[off:])
	return len(data), nil
}

func (mem *FakeMemory) region(addr uint64) *fakeRegion {
	i := sort.Search(len(mem.regions), func(i int) bool {
		return mem.regions[i].base+uint64(len(mem.regions[i].data)) > addr
	})
	if i < len(mem.regions) && mem.regions[i].base <= addr {
		return mem.regions[i]
	}
	return nil
}

// Map maps size zeroed bytes at addr.
func (mem *FakeMemory) Map(addr uint64, size int) {
	mem.regions = append(mem.regions, &fakeRegion{base: addr, data: make([]byte, size)})
	sort.Slice(mem.regions, func(i, j int) bool { return mem.regions[i].base < mem.regions[j].base })
}

// Unmap removes the region containing addr.
func (mem *FakeMemory) Unmap(addr uint64) {
	for i, r := range mem.regions {
		if r.base <= addr && addr < r.base+uint64(len(r.data)) {
			mem.regions = append(mem.regions[:i], mem.regions[i+1:]...)
			return
		}
	}
}

// Alloc maps a new zeroed region of size bytes and returns its address.
// Allocations are separated by unmapped gaps so that reads past the end
// of an object fail.
func (mem *FakeMemory) Alloc(size int) uint64 {
	addr := mem.next
	mem.Map(addr, size)
	mem.next += (uint64(size) + 0x1f) &^ 0xf
	return addr
}

// Write copies data at addr, which must be mapped.
func (mem *FakeMemory) Write(addr uint64, data []byte) {
	r := mem.region(addr)
	if r == nil || addr-r.base+uint64(len(data)) > uint64(len(r.data)) {
		panic(fmt.Sprintf("write of %d bytes at %#x outside of mapped memory", len(data), addr))
	}
	copy(r.data[addr-r.base:], data)
}

// WriteUint64 writes v at addr in little endian byte order.
func (mem *FakeMemory) WriteUint64(addr, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	mem.Write(addr, buf[:])
}

// WriteUint32 writes v at addr in little endian byte order.
func (mem *FakeMemory) WriteUint32(addr uint64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	mem.Write(addr, buf[:])
}

// WriteUint16 writes v at addr in little endian byte order.
func (mem *FakeMemory) WriteUint16(addr uint64, v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	mem.Write(addr, buf[:])
}

// WriteBool writes v at addr as a single byte.
func (mem *FakeMemory) WriteBool(addr uint64, v bool) {
	b := byte(0)
	if v {
		b = 1
	}
	mem.Write(addr, []byte{b})
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(err error, t testing.TB, s string) {
	t.Helper()
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		t.Fatalf("failed assertion at %s:%d: %s - %s\n", file, line, s, err)
	}
}
