package op

// Opcodes understood by this package. Only the subset that shows up in
// static data locations (globals and data member offsets) is supported.
const (
	DW_OP_addr        Opcode = 0x03
	DW_OP_deref       Opcode = 0x06
	DW_OP_const1u     Opcode = 0x08
	DW_OP_const1s     Opcode = 0x09
	DW_OP_const2u     Opcode = 0x0a
	DW_OP_const2s     Opcode = 0x0b
	DW_OP_const4u     Opcode = 0x0c
	DW_OP_const4s     Opcode = 0x0d
	DW_OP_const8u     Opcode = 0x0e
	DW_OP_const8s     Opcode = 0x0f
	DW_OP_constu      Opcode = 0x10
	DW_OP_consts      Opcode = 0x11
	DW_OP_dup         Opcode = 0x12
	DW_OP_drop        Opcode = 0x13
	DW_OP_minus       Opcode = 0x1c
	DW_OP_plus        Opcode = 0x22
	DW_OP_plus_uconst Opcode = 0x23
	DW_OP_lit0        Opcode = 0x30
	DW_OP_lit31       Opcode = 0x4f
	DW_OP_stack_value Opcode = 0x9f
)

var opcodeName = map[Opcode]string{
	DW_OP_addr:        "DW_OP_addr",
	DW_OP_deref:       "DW_OP_deref",
	DW_OP_const1u:     "DW_OP_const1u",
	DW_OP_const1s:     "DW_OP_const1s",
	DW_OP_const2u:     "DW_OP_const2u",
	DW_OP_const2s:     "DW_OP_const2s",
	DW_OP_const4u:     "DW_OP_const4u",
	DW_OP_const4s:     "DW_OP_const4s",
	DW_OP_const8u:     "DW_OP_const8u",
	DW_OP_const8s:     "DW_OP_const8s",
	DW_OP_constu:      "DW_OP_constu",
	DW_OP_consts:      "DW_OP_consts",
	DW_OP_dup:         "DW_OP_dup",
	DW_OP_drop:        "DW_OP_drop",
	DW_OP_minus:       "DW_OP_minus",
	DW_OP_plus:        "DW_OP_plus",
	DW_OP_plus_uconst: "DW_OP_plus_uconst",
	DW_OP_stack_value: "DW_OP_stack_value",
}

// opcodeArgs describes the immediate operands of each opcode:
// 'u' uleb128, 's' sleb128, '1'/'2'/'4'/'8' fixed size, 'a' address.
var opcodeArgs = map[Opcode]string{
	DW_OP_addr:        "a",
	DW_OP_const1u:     "1",
	DW_OP_const1s:     "1",
	DW_OP_const2u:     "2",
	DW_OP_const2s:     "2",
	DW_OP_const4u:     "4",
	DW_OP_const4s:     "4",
	DW_OP_const8u:     "8",
	DW_OP_const8s:     "8",
	DW_OP_constu:      "u",
	DW_OP_consts:      "s",
	DW_OP_plus_uconst: "u",
}

var oplut = map[Opcode]stackfn{
	DW_OP_addr:        addr,
	DW_OP_deref:       deref,
	DW_OP_const1u:     constnu,
	DW_OP_const1s:     constns,
	DW_OP_const2u:     constnu,
	DW_OP_const2s:     constns,
	DW_OP_const4u:     constnu,
	DW_OP_const4s:     constns,
	DW_OP_const8u:     constnu,
	DW_OP_const8s:     constns,
	DW_OP_constu:      constu,
	DW_OP_consts:      consts,
	DW_OP_dup:         dup,
	DW_OP_drop:        drop,
	DW_OP_minus:       minus,
	DW_OP_plus:        plus,
	DW_OP_plus_uconst: plusuconsts,
	DW_OP_stack_value: stackvalue,
}

func init() {
	for i := DW_OP_lit0; i <= DW_OP_lit31; i++ {
		oplut[i] = literal
		opcodeName[i] = "DW_OP_lit" + itoa(int(i-DW_OP_lit0))
	}
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
