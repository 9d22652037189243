package dwarfbuilder

import (
	"bytes"
	"encoding/binary"

	"github.com/go-delve/lpdbg/pkg/dwarf/leb128"
	"github.com/go-delve/lpdbg/pkg/dwarf/op"
)

// LocationBlock returns a DWARF expression corresponding to the list of
// arguments. Opcodes are written as is, int and uint values as sleb128
// and uleb128 operands, Address values as 8 byte addresses.
func LocationBlock(args ...interface{}) []byte {
	var buf bytes.Buffer
	for _, arg := range args {
		switch x := arg.(type) {
		case op.Opcode:
			buf.WriteByte(byte(x))
		case int:
			leb128.EncodeSigned(&buf, int64(x))
		case uint:
			leb128.EncodeUnsigned(&buf, uint64(x))
		case Address:
			binary.Write(&buf, binary.LittleEndian, uint64(x))
		default:
			panic("unsupported value type")
		}
	}
	return buf.Bytes()
}

// AddrLocation returns the location expression of a global variable
// stored at addr.
func AddrLocation(addr uint64) []byte {
	return LocationBlock(op.DW_OP_addr, Address(addr))
}
