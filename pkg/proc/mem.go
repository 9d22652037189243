package proc

import (
	"errors"
	"fmt"
)

const cacheEnabled = true

// MemoryReader is like io.ReaderAt, but the offset is a uint64 so that it
// can address all of 64-bit memory.
type MemoryReader interface {
	// ReadMemory is just like io.ReaderAt.ReadAt.
	ReadMemory(buf []byte, addr uint64) (n int, err error)
}

// readMemory reads len(buf) bytes at addr, any failure (including a short
// read) is reported as a *MemoryReadError.
func readMemory(mem MemoryReader, buf []byte, addr uint64) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := mem.ReadMemory(buf, addr)
	if err != nil {
		var mre *MemoryReadError
		if errors.As(err, &mre) {
			return err
		}
		return &MemoryReadError{Addr: addr, Size: len(buf), Err: err}
	}
	if n < len(buf) {
		return &MemoryReadError{Addr: addr + uint64(n), Size: len(buf) - n, Err: ErrShortRead}
	}
	return nil
}

// memCache holds a copy of a contiguous region of target memory for the
// duration of a single structured read (for example one hashtable node).
type memCache struct {
	cacheAddr uint64
	cache     []byte
	mem       MemoryReader
}

func (m *memCache) contains(addr uint64, size int) bool {
	end := addr + uint64(size)
	return addr >= m.cacheAddr && end >= addr && end <= m.cacheAddr+uint64(len(m.cache))
}

func (m *memCache) ReadMemory(data []byte, addr uint64) (n int, err error) {
	if m.contains(addr, len(data)) {
		copy(data, m.cache[addr-m.cacheAddr:])
		return len(data), nil
	}

	return m.mem.ReadMemory(data, addr)
}

func (m *memCache) String() string {
	return fmt.Sprintf("cache[%#x, %#x)", m.cacheAddr, m.cacheAddr+uint64(len(m.cache)))
}

// cacheMemory reads size bytes at addr in a single request and returns a
// MemoryReader serving them from the copy. If the region is not readable
// in full mem is returned unchanged, reads will then fail (or succeed)
// individually.
func cacheMemory(mem MemoryReader, addr uint64, size int) MemoryReader {
	if !cacheEnabled {
		return mem
	}
	if size <= 0 {
		return mem
	}
	if cacheMem, isCache := mem.(*memCache); isCache {
		if cacheMem.contains(addr, size) {
			return mem
		}
		mem = cacheMem.mem
	}
	cache := make([]byte, size)
	if err := readMemory(mem, cache, addr); err != nil {
		return mem
	}
	return &memCache{addr, cache, mem}
}

// fakeAddress is the address used for values that only exist in the
// debugger, for example the pointer produced by evaluating (T*)0x1000.
const fakeAddress = 0xbeef0000

// compositeMemory serves the bytes of debugger-side values at
// fakeAddress and forwards every other read to the target.
type compositeMemory struct {
	realmem MemoryReader
	data    []byte
}

func (mem *compositeMemory) ReadMemory(data []byte, addr uint64) (int, error) {
	if addr >= fakeAddress && addr+uint64(len(data)) <= fakeAddress+uint64(len(mem.data)) {
		copy(data, mem.data[addr-fakeAddress:])
		return len(data), nil
	}
	return mem.realmem.ReadMemory(data, addr)
}
