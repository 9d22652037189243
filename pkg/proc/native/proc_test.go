package native

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEntryPointFromAuxv(t *testing.T) {
	var auxv bytes.Buffer
	for _, w := range []uint64{3, 0x400040, _AT_ENTRY, 0x401000, 0, 0} {
		binary.Write(&auxv, binary.LittleEndian, w)
	}
	if entry := entryPointFromAuxv(auxv.Bytes(), 8); entry != 0x401000 {
		t.Fatalf("entry point %#x", entry)
	}
	if entry := entryPointFromAuxv(auxv.Bytes()[:20], 8); entry != 0 {
		t.Fatalf("entry point of a truncated auxv %#x", entry)
	}
}
