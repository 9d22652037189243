package op

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-delve/lpdbg/pkg/dwarf/leb128"
)

// Opcode represent a DWARF stack program instruction.
// See ./opcodes.go for the supported subset.
type Opcode byte

type stackfn func(Opcode, *context) error

// ReadMemoryFunc reads len(buf) bytes of target memory at addr.
type ReadMemoryFunc func(buf []byte, addr uint64) (int, error)

// DwarfRegisters holds the values a static location expression can refer to.
type DwarfRegisters struct {
	StaticBase uint64
	ByteOrder  binary.ByteOrder
}

type context struct {
	buf     *bytes.Buffer
	stack   []int64
	ptrSize int
	mem     ReadMemoryFunc
	value   bool

	DwarfRegisters
}

// ErrEmptyStack is returned when an instruction needs more operands than
// the stack holds.
var ErrEmptyStack = errors.New("empty OP stack")

// ExecuteStackProgram executes a DWARF location expression and returns the
// address it evaluates to. The second return value is true if the
// expression ended with DW_OP_stack_value, in which case the result is the
// value itself rather than its location. mem may be nil if the expression
// is not expected to dereference target memory.
func ExecuteStackProgram(regs DwarfRegisters, instructions []byte, ptrSize int, mem ReadMemoryFunc) (int64, bool, error) {
	if regs.ByteOrder == nil {
		regs.ByteOrder = binary.LittleEndian
	}
	ctxt := &context{
		buf:            bytes.NewBuffer(instructions),
		stack:          make([]int64, 0, 3),
		DwarfRegisters: regs,
		ptrSize:        ptrSize,
		mem:            mem,
	}

	for {
		opcodeByte, err := ctxt.buf.ReadByte()
		if err != nil {
			break
		}
		opcode := Opcode(opcodeByte)
		fn, ok := oplut[opcode]
		if !ok {
			return 0, false, fmt.Errorf("invalid instruction %#v", opcode)
		}

		if err := fn(opcode, ctxt); err != nil {
			return 0, false, err
		}
		if ctxt.value {
			break
		}
	}

	if len(ctxt.stack) == 0 {
		return 0, false, ErrEmptyStack
	}

	return ctxt.stack[len(ctxt.stack)-1], ctxt.value, nil
}

// PrettyPrint prints the DWARF stack program instructions to `out`.
func PrettyPrint(out io.Writer, instructions []byte, ptrSize int) {
	in := bytes.NewBuffer(instructions)

	for {
		opcode, err := in.ReadByte()
		if err != nil {
			break
		}
		if name, hasname := opcodeName[Opcode(opcode)]; hasname {
			io.WriteString(out, name)
			out.Write([]byte{' '})
		} else {
			fmt.Fprintf(out, "%#x ", opcode)
		}
		for _, arg := range opcodeArgs[Opcode(opcode)] {
			switch arg {
			case 's':
				n, _, _ := leb128.DecodeSigned(in)
				fmt.Fprintf(out, "%#x ", n)
			case 'u':
				n, _, _ := leb128.DecodeUnsigned(in)
				fmt.Fprintf(out, "%#x ", n)
			case 'a':
				x, _ := readUint(in.Next(ptrSize), binary.LittleEndian)
				fmt.Fprintf(out, "%#x ", x)
			default:
				x, _ := readUint(in.Next(int(arg-'0')), binary.LittleEndian)
				fmt.Fprintf(out, "%#x ", x)
			}
		}
	}
}

func readUint(buf []byte, order binary.ByteOrder) (uint64, error) {
	switch len(buf) {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(order.Uint16(buf)), nil
	case 4:
		return uint64(order.Uint32(buf)), nil
	case 8:
		return order.Uint64(buf), nil
	}
	return 0, fmt.Errorf("unsupported operand size %d", len(buf))
}

func (ctxt *context) pop() (int64, error) {
	if len(ctxt.stack) == 0 {
		return 0, ErrEmptyStack
	}
	v := ctxt.stack[len(ctxt.stack)-1]
	ctxt.stack = ctxt.stack[:len(ctxt.stack)-1]
	return v, nil
}

func addr(opcode Opcode, ctxt *context) error {
	buf := ctxt.buf.Next(ctxt.ptrSize)
	v, err := readUint(buf, ctxt.ByteOrder)
	if err != nil {
		return err
	}
	ctxt.stack = append(ctxt.stack, int64(v+ctxt.StaticBase))
	return nil
}

func deref(opcode Opcode, ctxt *context) error {
	a, err := ctxt.pop()
	if err != nil {
		return err
	}
	if ctxt.mem == nil {
		return errors.New("DW_OP_deref needs target memory")
	}
	buf := make([]byte, ctxt.ptrSize)
	if _, err := ctxt.mem(buf, uint64(a)); err != nil {
		return err
	}
	v, err := readUint(buf, ctxt.ByteOrder)
	if err != nil {
		return err
	}
	ctxt.stack = append(ctxt.stack, int64(v))
	return nil
}

func constnu(opcode Opcode, ctxt *context) error {
	n := int(opcodeArgs[opcode][0] - '0')
	v, err := readUint(ctxt.buf.Next(n), ctxt.ByteOrder)
	if err != nil {
		return err
	}
	ctxt.stack = append(ctxt.stack, int64(v))
	return nil
}

func constns(opcode Opcode, ctxt *context) error {
	n := int(opcodeArgs[opcode][0] - '0')
	v, err := readUint(ctxt.buf.Next(n), ctxt.ByteOrder)
	if err != nil {
		return err
	}
	switch n {
	case 1:
		ctxt.stack = append(ctxt.stack, int64(int8(v)))
	case 2:
		ctxt.stack = append(ctxt.stack, int64(int16(v)))
	case 4:
		ctxt.stack = append(ctxt.stack, int64(int32(v)))
	default:
		ctxt.stack = append(ctxt.stack, int64(v))
	}
	return nil
}

func constu(opcode Opcode, ctxt *context) error {
	num, _, err := leb128.DecodeUnsigned(ctxt.buf)
	if err != nil {
		return err
	}
	ctxt.stack = append(ctxt.stack, int64(num))
	return nil
}

func consts(opcode Opcode, ctxt *context) error {
	num, _, err := leb128.DecodeSigned(ctxt.buf)
	if err != nil {
		return err
	}
	ctxt.stack = append(ctxt.stack, num)
	return nil
}

func literal(opcode Opcode, ctxt *context) error {
	ctxt.stack = append(ctxt.stack, int64(opcode-DW_OP_lit0))
	return nil
}

func dup(opcode Opcode, ctxt *context) error {
	if len(ctxt.stack) == 0 {
		return ErrEmptyStack
	}
	ctxt.stack = append(ctxt.stack, ctxt.stack[len(ctxt.stack)-1])
	return nil
}

func drop(opcode Opcode, ctxt *context) error {
	_, err := ctxt.pop()
	return err
}

func plus(opcode Opcode, ctxt *context) error {
	if len(ctxt.stack) < 2 {
		return ErrEmptyStack
	}
	var (
		slen   = len(ctxt.stack)
		digits = ctxt.stack[slen-2 : slen]
		st     = ctxt.stack[:slen-2]
	)

	ctxt.stack = append(st, digits[0]+digits[1])
	return nil
}

func minus(opcode Opcode, ctxt *context) error {
	if len(ctxt.stack) < 2 {
		return ErrEmptyStack
	}
	slen := len(ctxt.stack)
	a, b := ctxt.stack[slen-2], ctxt.stack[slen-1]
	ctxt.stack = append(ctxt.stack[:slen-2], a-b)
	return nil
}

func plusuconsts(opcode Opcode, ctxt *context) error {
	if len(ctxt.stack) == 0 {
		return ErrEmptyStack
	}
	num, _, err := leb128.DecodeUnsigned(ctxt.buf)
	if err != nil {
		return err
	}
	ctxt.stack[len(ctxt.stack)-1] += int64(num)
	return nil
}

func stackvalue(opcode Opcode, ctxt *context) error {
	ctxt.value = true
	return nil
}
