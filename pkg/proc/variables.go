package proc

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
)

// Variable represents a typed view of target memory: an address and the
// DWARF type the memory at that address is interpreted as.
// A Variable holds no copy of the memory, every accessor reads the target.
type Variable struct {
	Addr      uint64
	Name      string
	DwarfType godwarf.Type
	RealType  godwarf.Type
	Kind      reflect.Kind

	mem MemoryReader
	bi  *BinaryInfo
}

// NewVariable returns a Variable of type dwarfType at addr.
func NewVariable(name string, addr uint64, dwarfType godwarf.Type, bi *BinaryInfo, mem MemoryReader) *Variable {
	v := &Variable{
		Name:      name,
		Addr:      addr,
		DwarfType: dwarfType,
		mem:       mem,
		bi:        bi,
	}

	v.RealType = godwarf.ResolveTypedef(v.DwarfType)
	if bi != nil {
		v.RealType = bi.Complete(v.RealType)
	}

	switch t := v.RealType.(type) {
	case *godwarf.PtrType:
		v.Kind = reflect.Ptr
		if _, isvoid := t.Type.(*godwarf.VoidType); isvoid {
			v.Kind = reflect.UnsafePointer
		}
	case *godwarf.ReferenceType:
		v.Kind = reflect.Ptr
	case *godwarf.StructType:
		v.Kind = reflect.Struct
	case *godwarf.ArrayType:
		v.Kind = reflect.Array
	case *godwarf.IntType, *godwarf.CharType:
		v.Kind = reflect.Int
	case *godwarf.UintType, *godwarf.UcharType, *godwarf.AddrType:
		v.Kind = reflect.Uint
	case *godwarf.EnumType:
		v.Kind = reflect.Int
	case *godwarf.FloatType:
		switch t.ByteSize {
		case 4:
			v.Kind = reflect.Float32
		case 8:
			v.Kind = reflect.Float64
		}
	case *godwarf.BoolType:
		v.Kind = reflect.Bool
	case *godwarf.FuncType:
		v.Kind = reflect.Func
	default:
		v.Kind = reflect.Invalid
	}

	return v
}

func (v *Variable) newVariable(name string, addr uint64, dwarfType godwarf.Type) *Variable {
	return NewVariable(name, addr, dwarfType, v.bi, v.mem)
}

// Mem returns the memory v is read from.
func (v *Variable) Mem() MemoryReader { return v.mem }

// BinInfo returns the debug information of the target v belongs to.
func (v *Variable) BinInfo() *BinaryInfo { return v.bi }

// TypeString returns the string representation
// of the type of this variable.
func (v *Variable) TypeString() string {
	if v.DwarfType != nil {
		return v.DwarfType.String()
	}
	return v.Kind.String()
}

// TypeTag returns the name used to select a printer for v: the name of
// its type after stripping typedefs, cv-qualifiers and one level of
// pointer or reference.
func (v *Variable) TypeTag() string {
	typ := v.RealType
	switch t := typ.(type) {
	case *godwarf.PtrType:
		typ = godwarf.ResolveTypedef(t.Type)
	case *godwarf.ReferenceType:
		typ = godwarf.ResolveTypedef(t.Type)
	}
	if typ == nil {
		return ""
	}
	return typ.Common().Name
}

func (v *Variable) toField(field *godwarf.StructField) *Variable {
	name := ""
	if v.Name != "" {
		name = fmt.Sprintf("%s.%s", v.Name, field.Name)
	}
	return v.newVariable(name, uint64(int64(v.Addr)+field.ByteOffset), field.Type)
}

// Field returns the data member called name of v. If v is a pointer or a
// reference it is dereferenced first. Members inherited from base classes
// are found by searching the bases depth first, in declaration order.
func (v *Variable) Field(name string) (*Variable, error) {
	structVar, err := v.maybeDereference()
	if err != nil {
		return nil, err
	}
	structVar.Name = v.Name
	st, ok := structVar.RealType.(*godwarf.StructType)
	if !ok {
		if v.Name == "" {
			return nil, fmt.Errorf("type %s is not a struct", structVar.TypeString())
		}
		return nil, fmt.Errorf("%s (type %s) is not a struct", v.Name, structVar.TypeString())
	}
	if r := structVar.structMember(st, name, make(map[*godwarf.StructType]bool)); r != nil {
		return r, nil
	}
	return nil, &NoFieldError{Type: st.String(), Field: name}
}

func (v *Variable) structMember(st *godwarf.StructType, name string, visited map[*godwarf.StructType]bool) *Variable {
	if visited[st] {
		return nil
	}
	visited[st] = true
	for _, field := range st.Field {
		if field.Name == name {
			return v.toField(field)
		}
	}
	// Check for inherited members only if the field was not a direct
	// member.
	for _, base := range st.Bases {
		if base.Virtual {
			continue
		}
		baseVar := v.toField(base)
		baseVar.Name = v.Name
		bst, ok := baseVar.RealType.(*godwarf.StructType)
		if !ok {
			continue
		}
		if r := baseVar.structMember(bst, name, visited); r != nil {
			return r
		}
	}
	return nil
}

// HasField reports whether v (or the value it points to) has a member
// called name.
func (v *Variable) HasField(name string) bool {
	st, ok := v.RealType.(*godwarf.StructType)
	if !ok {
		if p, isptr := v.RealType.(*godwarf.PtrType); isptr && v.bi != nil {
			st, ok = v.bi.Complete(godwarf.ResolveTypedef(p.Type)).(*godwarf.StructType)
		}
	}
	if !ok {
		return false
	}
	probe := NewVariable("", 0, st, v.bi, v.mem)
	return probe.structMember(st, name, make(map[*godwarf.StructType]bool)) != nil
}

// maybeDereference returns the value pointed to by v if v is a pointer or
// a reference, v itself otherwise.
func (v *Variable) maybeDereference() (*Variable, error) {
	switch v.RealType.(type) {
	case *godwarf.PtrType, *godwarf.ReferenceType:
		return v.Deref()
	default:
		return v, nil
	}
}

// Deref returns the value pointed to by v. A null pointer produces a
// *MemoryReadError wrapping ErrNilPointer.
func (v *Variable) Deref() (*Variable, error) {
	var elem godwarf.Type
	switch t := v.RealType.(type) {
	case *godwarf.PtrType:
		elem = t.Type
	case *godwarf.ReferenceType:
		elem = t.Type
	default:
		return nil, fmt.Errorf("%s (type %s) is not a pointer", v.Name, v.TypeString())
	}
	ptrval, err := v.PointerValue()
	if err != nil {
		return nil, err
	}
	if ptrval == 0 {
		return nil, &MemoryReadError{Addr: 0, Size: int(elem.Size()), Err: ErrNilPointer}
	}
	name := ""
	if v.Name != "" {
		name = "*" + v.Name
	}
	return v.newVariable(name, ptrval, elem), nil
}

// PointerValue returns the address stored in v, which must be a pointer
// or reference.
func (v *Variable) PointerValue() (uint64, error) {
	switch v.RealType.(type) {
	case *godwarf.PtrType, *godwarf.ReferenceType:
	default:
		return 0, fmt.Errorf("%s (type %s) is not a pointer", v.Name, v.TypeString())
	}
	return readUintRaw(v.mem, v.Addr, int64(v.ptrSize()), v.byteOrder())
}

// Cast returns a view of the memory of v as type typ.
func (v *Variable) Cast(typ godwarf.Type) *Variable {
	return v.newVariable(v.Name, v.Addr, typ)
}

// Reinterpret returns a view of the memory at addr as type typ, read from
// the same target as v.
func (v *Variable) Reinterpret(addr uint64, typ godwarf.Type) *Variable {
	return v.newVariable("", addr, typ)
}

// AsUint reads v as an unsigned integer.
func (v *Variable) AsUint() (uint64, error) {
	sz, err := v.scalarSize()
	if err != nil {
		return 0, err
	}
	return readUintRaw(v.mem, v.Addr, sz, v.byteOrder())
}

// AsInt reads v as a signed integer, enums are read as their underlying
// integer.
func (v *Variable) AsInt() (int64, error) {
	sz, err := v.scalarSize()
	if err != nil {
		return 0, err
	}
	return readIntRaw(v.mem, v.Addr, sz, v.byteOrder())
}

// AsBool reads v as a boolean, any non-zero byte is true.
func (v *Variable) AsBool() (bool, error) {
	n, err := v.AsUint()
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

func (v *Variable) scalarSize() (int64, error) {
	switch v.RealType.(type) {
	case *godwarf.StructType, *godwarf.ArrayType, *godwarf.VoidType, *godwarf.FuncType:
		return 0, fmt.Errorf("%s (type %s) is not a scalar", v.Name, v.TypeString())
	}
	sz := v.RealType.Size()
	switch sz {
	case 1, 2, 4, 8:
		return sz, nil
	}
	return 0, fmt.Errorf("%s (type %s) has unsupported size %d", v.Name, v.TypeString(), sz)
}

// TemplateArg returns the i-th template argument of the class template
// instantiation v belongs to.
func (v *Variable) TemplateArg(i int) (godwarf.Type, error) {
	return TemplateArg(v.RealType, i)
}

// TemplateArg returns the i-th template type argument of typ.
func TemplateArg(typ godwarf.Type, i int) (godwarf.Type, error) {
	st, ok := godwarf.ResolveTypedef(typ).(*godwarf.StructType)
	if !ok {
		return nil, &MalformedGenericTypeError{Type: typ.String(), Reason: "not a class template instantiation"}
	}
	if i < 0 || i >= len(st.TemplateParams) {
		return nil, &MalformedGenericTypeError{Type: st.String(), Reason: fmt.Sprintf("missing template argument %d", i)}
	}
	p := st.TemplateParams[i]
	if p.IsValue {
		return nil, &MalformedGenericTypeError{Type: st.String(), Reason: fmt.Sprintf("template argument %d (%s) is not a type", i, p.Name)}
	}
	return p.Type, nil
}

// ReadBytes reads n bytes starting at v.Addr.
func (v *Variable) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := readMemory(v.mem, buf, v.Addr); err != nil {
		return nil, err
	}
	return buf, nil
}

// Cached returns a copy of v reading from a snapshot of its own memory
// taken with a single read, if the whole object is readable. Reads outside
// of the object go back to the target.
func (v *Variable) Cached() *Variable {
	r := *v
	r.mem = cacheMemory(v.mem, v.Addr, int(v.RealType.Size()))
	return &r
}

func (v *Variable) ptrSize() int {
	if v.bi != nil {
		return v.bi.PtrSize
	}
	return 8
}

func (v *Variable) byteOrder() binary.ByteOrder {
	if v.bi != nil {
		return v.bi.ByteOrder
	}
	return binary.LittleEndian
}

// String returns a short description of v, used in error messages and by
// the default formatter.
func (v *Variable) String() string {
	var b strings.Builder
	if v.Name != "" {
		b.WriteString(v.Name)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "(%s) at %#x", v.TypeString(), v.Addr)
	return b.String()
}

func readIntRaw(mem MemoryReader, addr uint64, size int64, order binary.ByteOrder) (int64, error) {
	var n int64

	val := make([]byte, int(size))
	if err := readMemory(mem, val, addr); err != nil {
		return 0, err
	}

	switch size {
	case 1:
		n = int64(int8(val[0]))
	case 2:
		n = int64(int16(order.Uint16(val)))
	case 4:
		n = int64(int32(order.Uint32(val)))
	case 8:
		n = int64(order.Uint64(val))
	}

	return n, nil
}

func readUintRaw(mem MemoryReader, addr uint64, size int64, order binary.ByteOrder) (uint64, error) {
	var n uint64

	val := make([]byte, int(size))
	if err := readMemory(mem, val, addr); err != nil {
		return 0, err
	}

	switch size {
	case 1:
		n = uint64(val[0])
	case 2:
		n = uint64(order.Uint16(val))
	case 4:
		n = uint64(order.Uint32(val))
	case 8:
		n = order.Uint64(val)
	}

	return n, nil
}
