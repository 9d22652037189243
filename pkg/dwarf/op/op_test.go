package op

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestExecuteStackProgram(t *testing.T) {
	var (
		instructions = []byte{byte(DW_OP_consts), 0x1c, byte(DW_OP_consts), 0x1c, byte(DW_OP_plus)}
		expected     = int64(56)
	)
	actual, _, err := ExecuteStackProgram(DwarfRegisters{}, instructions, 8, nil)
	if err != nil {
		t.Fatal(err)
	}

	if actual != expected {
		t.Fatalf("actual %d != expected %d", actual, expected)
	}
}

func TestAddrStaticBase(t *testing.T) {
	instructions := []byte{byte(DW_OP_addr), 0, 0x10, 0, 0, 0, 0, 0, 0}
	actual, _, err := ExecuteStackProgram(DwarfRegisters{StaticBase: 0x400000}, instructions, 8, nil)
	if err != nil {
		t.Fatal(err)
	}
	if actual != 0x401000 {
		t.Fatalf("got %#x", actual)
	}
}

func TestPlusUconst(t *testing.T) {
	actual, _, err := ExecuteStackProgram(DwarfRegisters{}, []byte{byte(DW_OP_lit0), byte(DW_OP_plus_uconst), 0x18}, 8, nil)
	if err != nil {
		t.Fatal(err)
	}
	if actual != 0x18 {
		t.Fatalf("got %#x", actual)
	}
}

func TestDeref(t *testing.T) {
	mem := func(buf []byte, addr uint64) (int, error) {
		binary.LittleEndian.PutUint64(buf, addr*2)
		return len(buf), nil
	}
	actual, _, err := ExecuteStackProgram(DwarfRegisters{}, []byte{byte(DW_OP_const1u), 0x20, byte(DW_OP_deref)}, 8, mem)
	if err != nil {
		t.Fatal(err)
	}
	if actual != 0x40 {
		t.Fatalf("got %#x", actual)
	}
}

func TestEmptyStack(t *testing.T) {
	if _, _, err := ExecuteStackProgram(DwarfRegisters{}, []byte{byte(DW_OP_plus)}, 8, nil); err != ErrEmptyStack {
		t.Fatalf("expected ErrEmptyStack, got %v", err)
	}
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, []byte{byte(DW_OP_addr), 0, 0x10, 0, 0, 0, 0, 0, 0, byte(DW_OP_lit0 + 3)}, 8)
	if got := strings.TrimSpace(buf.String()); got != "DW_OP_addr 0x1000 DW_OP_lit3" {
		t.Fatalf("got %q", got)
	}
}
