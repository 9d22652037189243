// Copyright 2009 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// DWARF type information structures, extended with the C++ constructs
// (base classes, template parameters, references) needed to walk
// libstdc++ and libprocess data structures.

package godwarf

import (
	"bytes"
	"debug/dwarf"
	"fmt"
	"strconv"

	"github.com/go-delve/lpdbg/pkg/dwarf/leb128"
	"github.com/go-delve/lpdbg/pkg/dwarf/op"
)

// Basic type encodings -- the value for AttrEncoding in a TagBaseType Entry.
const (
	encAddress      = 0x01
	encBoolean      = 0x02
	encFloat        = 0x04
	encSigned       = 0x05
	encSignedChar   = 0x06
	encUnsigned     = 0x07
	encUnsignedChar = 0x08
	encUTF          = 0x10
)

const (
	virtualityNone = 0
)

const cyclicalTypeStop = "<cyclical>" // guard value printed for types with a cyclical definition

type recCheck map[dwarf.Offset]struct{}

func (recCheck recCheck) acquire(off dwarf.Offset) (release func()) {
	if _, rec := recCheck[off]; rec {
		return nil
	}
	recCheck[off] = struct{}{}
	return func() {
		delete(recCheck, off)
	}
}

// A Type conventionally represents a pointer to any of the
// specific Type structures (CharType, StructType, etc.).
type Type interface {
	Common() *CommonType
	String() string
	Size() int64

	stringIntl(recCheck) string
	sizeIntl(recCheck) int64
}

// A CommonType holds fields common to multiple types.
// If a field is not known or not applicable for a given type,
// the zero value is used.
type CommonType struct {
	ByteSize int64        // size of value of this type, in bytes
	Name     string       // fully qualified name that can be used to refer to type
	Offset   dwarf.Offset // the offset at which this type was read
}

func (c *CommonType) Common() *CommonType { return c }

func (c *CommonType) Size() int64             { return c.ByteSize }
func (c *CommonType) sizeIntl(recCheck) int64 { return c.ByteSize }

// Basic types

// A BasicType holds fields common to all basic types.
type BasicType struct {
	CommonType
	BitSize   int64
	BitOffset int64
}

func (b *BasicType) Basic() *BasicType { return b }

func (t *BasicType) String() string { return t.stringIntl(nil) }

func (t *BasicType) stringIntl(recCheck) string {
	if t.Name != "" {
		return t.Name
	}
	return "?"
}

// A CharType represents a signed character type.
type CharType struct {
	BasicType
}

// A UcharType represents an unsigned character type.
type UcharType struct {
	BasicType
}

// An IntType represents a signed integer type.
type IntType struct {
	BasicType
}

// A UintType represents an unsigned integer type.
type UintType struct {
	BasicType
}

// A FloatType represents a floating point type.
type FloatType struct {
	BasicType
}

// A BoolType represents a boolean type.
type BoolType struct {
	BasicType
}

// An AddrType represents a machine address type.
type AddrType struct {
	BasicType
}

// An UnspecifiedType represents an implicit, unknown, ambiguous or
// nonexistent type, for example std::nullptr_t.
type UnspecifiedType struct {
	BasicType
}

// qualifiers

// A QualType represents a type that has the C/C++ "const", "restrict", or "volatile" qualifier.
type QualType struct {
	CommonType
	Qual string
	Type Type
}

func (t *QualType) String() string { return t.stringIntl(make(recCheck)) }

func (t *QualType) stringIntl(recCheck recCheck) string {
	release := recCheck.acquire(t.CommonType.Offset)
	if release == nil {
		return cyclicalTypeStop
	}
	defer release()
	return t.Type.stringIntl(recCheck) + " " + t.Qual
}

func (t *QualType) Size() int64 { return t.sizeIntl(make(recCheck)) }

func (t *QualType) sizeIntl(recCheck recCheck) int64 {
	release := recCheck.acquire(t.CommonType.Offset)
	if release == nil {
		return t.CommonType.ByteSize
	}
	defer release()
	return t.Type.sizeIntl(recCheck)
}

// An ArrayType represents a fixed size array type.
type ArrayType struct {
	CommonType
	Type          Type
	StrideBitSize int64 // if > 0, number of bits to hold each element
	Count         int64 // if == -1, an incomplete array, like char x[].
}

func (t *ArrayType) String() string { return t.stringIntl(make(recCheck)) }

func (t *ArrayType) stringIntl(recCheck recCheck) string {
	release := recCheck.acquire(t.CommonType.Offset)
	if release == nil {
		return cyclicalTypeStop
	}
	defer release()
	return t.Type.stringIntl(recCheck) + " [" + strconv.FormatInt(t.Count, 10) + "]"
}

func (t *ArrayType) Size() int64 { return t.sizeIntl(make(recCheck)) }

func (t *ArrayType) sizeIntl(recCheck recCheck) int64 {
	if t.CommonType.ByteSize > 0 {
		return t.CommonType.ByteSize
	}
	release := recCheck.acquire(t.CommonType.Offset)
	if release == nil {
		return t.CommonType.ByteSize
	}
	defer release()
	return t.Type.sizeIntl(recCheck) * t.Count
}

// A VoidType represents the C void type.
type VoidType struct {
	CommonType
}

func (t *VoidType) String() string { return t.stringIntl(nil) }

func (t *VoidType) stringIntl(recCheck) string { return "void" }

// A PtrType represents a pointer type.
type PtrType struct {
	CommonType
	Type Type
}

func (t *PtrType) String() string { return t.stringIntl(make(recCheck)) }

func (t *PtrType) stringIntl(recCheck recCheck) string {
	release := recCheck.acquire(t.CommonType.Offset)
	if release == nil {
		return cyclicalTypeStop
	}
	defer release()
	return t.Type.stringIntl(recCheck) + " *"
}

// A ReferenceType represents a C++ lvalue or rvalue reference.
type ReferenceType struct {
	CommonType
	Type   Type
	RValue bool
}

func (t *ReferenceType) String() string { return t.stringIntl(make(recCheck)) }

func (t *ReferenceType) stringIntl(recCheck recCheck) string {
	release := recCheck.acquire(t.CommonType.Offset)
	if release == nil {
		return cyclicalTypeStop
	}
	defer release()
	if t.RValue {
		return t.Type.stringIntl(recCheck) + " &&"
	}
	return t.Type.stringIntl(recCheck) + " &"
}

// A StructType represents a struct, union, or C++ class type.
type StructType struct {
	CommonType
	StructName     string // unqualified name, as written in DW_AT_name
	Kind           string // "struct", "union", or "class".
	Field          []*StructField
	Bases          []*StructField // direct base classes, in declaration order
	TemplateParams []*TemplateParam
	Incomplete     bool // if true, struct, union, class is declared but not defined
}

// A StructField represents a field in a struct, union, or C++ class type.
// Base class subobjects are also described by a StructField with Embedded
// set.
type StructField struct {
	Name       string
	Type       Type
	ByteOffset int64
	ByteSize   int64
	BitOffset  int64 // within the ByteSize bytes at ByteOffset
	BitSize    int64 // zero if not a bit field
	Embedded   bool
	Virtual    bool // virtual base, ByteOffset is meaningless
}

// A TemplateParam is a template argument of a class template
// instantiation. Type parameters have IsValue false and Type set to the
// argument. Value parameters have IsValue true, Type set to the type of
// the constant and Value set to its value.
type TemplateParam struct {
	Name    string
	Type    Type
	Value   int64
	IsValue bool
}

func (t *StructType) String() string { return t.stringIntl(make(recCheck)) }

func (t *StructType) stringIntl(recCheck recCheck) string {
	if t.Name != "" {
		return t.Name
	}
	return t.Defn(recCheck)
}

// Defn returns a description of the layout of t.
func (t *StructType) Defn(recCheck recCheck) string {
	if recCheck == nil {
		recCheck = make(map[dwarf.Offset]struct{})
	}
	release := recCheck.acquire(t.CommonType.Offset)
	if release == nil {
		return cyclicalTypeStop
	}
	defer release()
	s := t.Kind
	if t.StructName != "" {
		s += " " + t.StructName
	}
	if t.Incomplete {
		s += " /*incomplete*/"
		return s
	}
	for i, b := range t.Bases {
		if i == 0 {
			s += " :"
		} else {
			s += ","
		}
		s += " " + b.Type.stringIntl(recCheck)
	}
	s += " {"
	for i, f := range t.Field {
		if i > 0 {
			s += "; "
		}
		s += f.Name + " " + f.Type.stringIntl(recCheck)
		s += "@" + strconv.FormatInt(f.ByteOffset, 10)
		if f.BitSize > 0 {
			s += " : " + strconv.FormatInt(f.BitSize, 10)
			s += "@" + strconv.FormatInt(f.BitOffset, 10)
		}
	}
	s += "}"
	return s
}

// An EnumType represents an enumerated type.
// The only indication of its native integer type is its ByteSize
// (inside CommonType).
type EnumType struct {
	CommonType
	EnumName string
	Val      []*EnumValue
}

// An EnumValue represents a single enumeration value.
type EnumValue struct {
	Name string
	Val  int64
}

func (t *EnumType) String() string { return t.stringIntl(nil) }

func (t *EnumType) stringIntl(recCheck recCheck) string {
	if t.Name != "" {
		return t.Name
	}
	s := "enum {"
	for i, v := range t.Val {
		if i > 0 {
			s += "; "
		}
		s += v.Name + "=" + strconv.FormatInt(v.Val, 10)
	}
	s += "}"
	return s
}

// Lookup returns the name of the enumerator with value v.
func (t *EnumType) Lookup(v int64) (string, bool) {
	for _, ev := range t.Val {
		if ev.Val == v {
			return ev.Name, true
		}
	}
	return "", false
}

// A FuncType represents a function type.
type FuncType struct {
	CommonType
	ReturnType Type
	ParamType  []Type
}

func (t *FuncType) String() string { return t.stringIntl(make(recCheck)) }

func (t *FuncType) stringIntl(recCheck recCheck) string {
	release := recCheck.acquire(t.CommonType.Offset)
	if release == nil {
		return cyclicalTypeStop
	}
	defer release()
	s := "void"
	if t.ReturnType != nil {
		s = t.ReturnType.stringIntl(recCheck)
	}
	s += " ("
	for i, t := range t.ParamType {
		if i > 0 {
			s += ", "
		}
		s += t.stringIntl(recCheck)
	}
	s += ")"
	return s
}

// A DotDotDotType represents the variadic ... function parameter.
type DotDotDotType struct {
	CommonType
}

func (t *DotDotDotType) String() string { return t.stringIntl(nil) }

func (t *DotDotDotType) stringIntl(recCheck recCheck) string { return "..." }

// A TypedefType represents a named type.
type TypedefType struct {
	CommonType
	Type Type
}

func (t *TypedefType) String() string { return t.stringIntl(nil) }

func (t *TypedefType) stringIntl(recCheck recCheck) string { return t.Name }

func (t *TypedefType) Size() int64 { return t.sizeIntl(make(recCheck)) }

func (t *TypedefType) sizeIntl(recCheck recCheck) int64 {
	release := recCheck.acquire(t.CommonType.Offset)
	if release == nil {
		return t.CommonType.ByteSize
	}
	defer release()
	if t.Type == nil {
		return 0
	}
	return t.Type.sizeIntl(recCheck)
}

// An UnsupportedType is a placeholder returned in situations where we
// encounter a type that isn't supported.
type UnsupportedType struct {
	CommonType
	Tag dwarf.Tag
}

func (t *UnsupportedType) stringIntl(recCheck) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("(unsupported type %s)", t.Tag.String())
}

func (t *UnsupportedType) String() string { return t.stringIntl(nil) }

// NameTable maps the offset of a type entry to its fully qualified name
// (for example "process::ProcessBase" rather than "ProcessBase").
// Entries missing from the table fall back to their DW_AT_name.
type NameTable map[dwarf.Offset]string

// ReadType reads the type at off in the DWARF “info” section.
func ReadType(d *dwarf.Data, off dwarf.Offset, typeCache map[dwarf.Offset]Type, names NameTable) (Type, error) {
	return readType(d, "info", d.Reader(), off, typeCache, names, nil)
}

// ResolveTypedef strips typedefs and cv-qualifiers from typ.
func ResolveTypedef(typ Type) Type {
	for {
		switch tt := typ.(type) {
		case *TypedefType:
			typ = tt.Type
		case *QualType:
			typ = tt.Type
		default:
			return typ
		}
	}
}

type delayedSize struct {
	ct *CommonType // type that needs its size computed from ut
	ut Type        // underlying type
}

// readType reads a type from r at off of name using and updating a
// type cache, callers should pass nil to delayedSize, it is used for recursion.
func readType(d *dwarf.Data, name string, r *dwarf.Reader, off dwarf.Offset, typeCache map[dwarf.Offset]Type, names NameTable, delayedSizes *[]delayedSize) (Type, error) {
	if t, ok := typeCache[off]; ok {
		return t, nil
	}
	r.Seek(off)
	e, err := r.Next()
	if err != nil {
		return nil, err
	}
	addressSize := r.AddressSize()
	if e == nil || e.Offset != off {
		return nil, dwarf.DecodeError{Name: name, Offset: off, Err: "no type at offset"}
	}

	// If this is the root of the recursion, prepare to resolve typedef sizes
	// once the recursion is done. This must be done after the type graph is
	// constructed because it may need to resolve cycles in a different order
	// than readType encounters them.
	if delayedSizes == nil {
		var delayedSizeList []delayedSize
		defer func() {
			for _, ds := range delayedSizeList {
				ds.ct.ByteSize = ds.ut.Size()
			}
		}()
		delayedSizes = &delayedSizeList
	}

	// Parse type from dwarf.Entry.
	// Must always set typeCache[off] before calling
	// d.readType recursively, to handle circular types correctly.
	var typ Type

	nextDepth := 0

	// Get next child; set err if error happens.
	next := func() *dwarf.Entry {
		if !e.Children {
			return nil
		}
		// Only return direct children.
		// Skip over composite entries that happen to be nested
		// inside this one, C++ classes are full of them (nested
		// typedefs, member functions, nested classes).
		for {
			kid, err1 := r.Next()
			if err1 != nil {
				err = err1
				return nil
			}
			if kid == nil {
				err = dwarf.DecodeError{Name: name, Offset: e.Offset, Err: "unexpected end of children"}
				return nil
			}
			if kid.Tag == 0 {
				if nextDepth > 0 {
					nextDepth--
					continue
				}
				return nil
			}
			if kid.Children {
				nextDepth++
			}
			if nextDepth > 0 {
				continue
			}
			return kid
		}
	}

	// Get Type referred to by dwarf.Entry's attr.
	// Set err if error happens.  Not having a type is an error.
	typeOf := func(e *dwarf.Entry, attr dwarf.Attr) Type {
		tval := e.Val(attr)
		var t Type
		switch toff := tval.(type) {
		case dwarf.Offset:
			if t, err = readType(d, name, d.Reader(), toff, typeCache, names, delayedSizes); err != nil {
				return nil
			}
		case uint64:
			err = dwarf.DecodeError{Name: name, Offset: e.Offset, Err: "DWARFv4 section debug_types unsupported"}
			return nil
		default:
			// It appears that no Type means "void".
			return new(VoidType)
		}
		return t
	}

	// Qualified name of the entry being read.
	qualName := func() string {
		if n, ok := names[off]; ok {
			return n
		}
		n, _ := e.Val(dwarf.AttrName).(string)
		return n
	}

	switch e.Tag {
	case dwarf.TagArrayType:
		// Multi-dimensional array.  (DWARF v2 §5.4)
		// Attributes:
		//	AttrType:subtype [required]
		//	AttrStrideSize: distance in bits between each element of the array
		//	AttrStride: distance in bytes between each element of the array
		//	AttrByteSize: size of entire array
		// Children:
		//	TagSubrangeType giving one dimension.
		//	dimensions are in left to right order.
		t := new(ArrayType)
		t.Name, _ = e.Val(dwarf.AttrName).(string)
		typ = t
		typeCache[off] = t
		if t.Type = typeOf(e, dwarf.AttrType); err != nil {
			goto Error
		}
		if bytes, ok := e.Val(dwarf.AttrStride).(int64); ok {
			t.StrideBitSize = 8 * bytes
		} else if bits, ok := e.Val(dwarf.AttrStrideSize).(int64); ok {
			t.StrideBitSize = bits
		} else {
			t.StrideBitSize = 8 * t.Type.Size()
		}

		ndim := 0
		for kid := next(); kid != nil; kid = next() {
			switch kid.Tag {
			case dwarf.TagSubrangeType:
				count, ok := kid.Val(dwarf.AttrCount).(int64)
				if !ok {
					// GCC writes an upper bound instead.
					count, ok = kid.Val(dwarf.AttrUpperBound).(int64)
					if ok {
						count++
					} else {
						count = -1
					}
				}
				if ndim == 0 {
					t.Count = count
				} else {
					t.Type = &ArrayType{Type: t.Type, Count: count}
				}
				ndim++
			case dwarf.TagEnumerationType:
				err = dwarf.DecodeError{Name: name, Offset: kid.Offset, Err: "cannot handle enumeration type as array bound"}
				goto Error
			}
		}
		if ndim == 0 {
			t.Count = -1
		}

	case dwarf.TagBaseType:
		// Basic type.  (DWARF v2 §5.1)
		// Attributes:
		//	AttrName: name of base type in programming language of the compilation unit [required]
		//	AttrEncoding: encoding value for type (encFloat etc) [required]
		//	AttrByteSize: size of type in bytes [required]
		//	AttrBitOffset: for sub-byte types, size in bits
		//	AttrBitSize: for sub-byte types, bit offset of high order bit in the AttrByteSize bytes
		tname, _ := e.Val(dwarf.AttrName).(string)
		enc, ok := e.Val(dwarf.AttrEncoding).(int64)
		if !ok {
			err = dwarf.DecodeError{Name: name, Offset: e.Offset, Err: "missing encoding attribute for " + tname}
			goto Error
		}
		switch enc {
		default:
			err = dwarf.DecodeError{Name: name, Offset: e.Offset, Err: "unrecognized encoding attribute value"}
			goto Error

		case encAddress:
			typ = new(AddrType)
		case encBoolean:
			typ = new(BoolType)
		case encFloat:
			typ = new(FloatType)
		case encSigned:
			typ = new(IntType)
		case encUnsigned, encUTF:
			typ = new(UintType)
		case encSignedChar:
			typ = new(CharType)
		case encUnsignedChar:
			typ = new(UcharType)
		}
		typeCache[off] = typ
		t := typ.(interface {
			Basic() *BasicType
		}).Basic()
		t.Name = tname
		t.BitSize, _ = e.Val(dwarf.AttrBitSize).(int64)
		t.BitOffset, _ = e.Val(dwarf.AttrBitOffset).(int64)

	case dwarf.TagClassType, dwarf.TagStructType, dwarf.TagUnionType:
		// Structure, union, or class type.  (DWARF v2 §5.5)
		// Attributes:
		//	AttrName: name of struct, union, or class
		//	AttrByteSize: byte size [required]
		//	AttrDeclaration: if true, struct/union/class is incomplete
		// Children:
		//	TagMember to describe one member.
		//		AttrName: name of member [required]
		//		AttrType: type of member [required]
		//		AttrByteSize: size in bytes
		//		AttrBitOffset: bit offset within bytes for bit fields
		//		AttrBitSize: bit size for bit fields
		//		AttrDataMemberLoc: location within struct [required for struct, class]
		//		AttrDeclaration: static data member, not part of the layout
		//	TagInheritance to describe a base class.
		//		AttrType: base class [required]
		//		AttrDataMemberLoc: offset of the base subobject
		//		AttrVirtuality: set for virtual bases
		//	TagTemplateTypeParameter, TagTemplateValueParameter for the
		//	template arguments of a class template instantiation.
		t := new(StructType)
		typ = t
		typeCache[off] = typ
		switch e.Tag {
		case dwarf.TagClassType:
			t.Kind = "class"
		case dwarf.TagStructType:
			t.Kind = "struct"
		case dwarf.TagUnionType:
			t.Kind = "union"
		}
		t.Name = qualName()
		t.StructName, _ = e.Val(dwarf.AttrName).(string)
		t.Incomplete, _ = e.Val(dwarf.AttrDeclaration).(bool)
		t.Field = make([]*StructField, 0, 8)
		var lastFieldType Type
		var lastFieldBitOffset int64
		for kid := next(); kid != nil; kid = next() {
			switch kid.Tag {
			case dwarf.TagMember:
				if decl, _ := kid.Val(dwarf.AttrDeclaration).(bool); decl {
					continue
				}
				f := new(StructField)
				if f.Type = typeOf(kid, dwarf.AttrType); err != nil {
					goto Error
				}
				if f.ByteOffset, err = memberLocation(name, kid); err != nil {
					goto Error
				}
				haveBitOffset := false
				f.Name, _ = kid.Val(dwarf.AttrName).(string)
				f.ByteSize, _ = kid.Val(dwarf.AttrByteSize).(int64)
				f.BitOffset, haveBitOffset = kid.Val(dwarf.AttrBitOffset).(int64)
				f.BitSize, _ = kid.Val(dwarf.AttrBitSize).(int64)
				t.Field = append(t.Field, f)

				bito := f.BitOffset
				if !haveBitOffset {
					bito = f.ByteOffset * 8
				}
				if bito == lastFieldBitOffset && t.Kind != "union" && len(t.Field) > 1 {
					// Last field was zero width.  Fix array length.
					// (DWARF writes out 0-length arrays as if they were 1-length arrays.)
					zeroArray(lastFieldType)
				}
				lastFieldType = f.Type
				lastFieldBitOffset = bito

			case dwarf.TagInheritance:
				f := new(StructField)
				if f.Type = typeOf(kid, dwarf.AttrType); err != nil {
					goto Error
				}
				if f.ByteOffset, err = memberLocation(name, kid); err != nil {
					goto Error
				}
				f.Name = f.Type.String()
				f.Embedded = true
				if v, ok := kid.Val(dwarf.AttrVirtuality).(int64); ok && v != virtualityNone {
					f.Virtual = true
				}
				t.Bases = append(t.Bases, f)

			case dwarf.TagTemplateTypeParameter:
				p := new(TemplateParam)
				p.Name, _ = kid.Val(dwarf.AttrName).(string)
				if p.Type = typeOf(kid, dwarf.AttrType); err != nil {
					goto Error
				}
				t.TemplateParams = append(t.TemplateParams, p)

			case dwarf.TagTemplateValueParameter:
				p := new(TemplateParam)
				p.Name, _ = kid.Val(dwarf.AttrName).(string)
				p.IsValue = true
				if p.Type = typeOf(kid, dwarf.AttrType); err != nil {
					goto Error
				}
				switch v := kid.Val(dwarf.AttrConstValue).(type) {
				case int64:
					p.Value = v
				case bool:
					if v {
						p.Value = 1
					}
				}
				t.TemplateParams = append(t.TemplateParams, p)
			}
		}
		if t.Kind != "union" && len(t.Field) > 0 {
			b, ok := e.Val(dwarf.AttrByteSize).(int64)
			if ok && b*8 == lastFieldBitOffset {
				// Final field must be zero width.  Fix array length.
				zeroArray(lastFieldType)
			}
		}

	case dwarf.TagConstType, dwarf.TagVolatileType, dwarf.TagRestrictType:
		// Type modifier (DWARF v2 §5.2)
		// Attributes:
		//	AttrType: subtype
		t := new(QualType)
		t.Name, _ = e.Val(dwarf.AttrName).(string)
		typ = t
		typeCache[off] = t
		if t.Type = typeOf(e, dwarf.AttrType); err != nil {
			goto Error
		}
		switch e.Tag {
		case dwarf.TagConstType:
			t.Qual = "const"
		case dwarf.TagRestrictType:
			t.Qual = "restrict"
		case dwarf.TagVolatileType:
			t.Qual = "volatile"
		}

	case dwarf.TagEnumerationType:
		// Enumeration type (DWARF v2 §5.6)
		// Attributes:
		//	AttrName: enum name if any
		//	AttrByteSize: bytes required to represent largest value
		// Children:
		//	TagEnumerator:
		//		AttrName: name of constant
		//		AttrConstValue: value of constant
		t := new(EnumType)
		typ = t
		typeCache[off] = t
		t.Name = qualName()
		t.EnumName, _ = e.Val(dwarf.AttrName).(string)
		for kid := next(); kid != nil; kid = next() {
			if kid.Tag == dwarf.TagEnumerator {
				f := new(EnumValue)
				f.Name, _ = kid.Val(dwarf.AttrName).(string)
				f.Val, _ = kid.Val(dwarf.AttrConstValue).(int64)
				t.Val = append(t.Val, f)
			}
		}

	case dwarf.TagPointerType:
		// Type modifier (DWARF v2 §5.2)
		// Attributes:
		//	AttrType: subtype [not required!  void* has no AttrType]
		//	AttrAddrClass: address class [ignored]
		t := new(PtrType)
		t.Name, _ = e.Val(dwarf.AttrName).(string)
		typ = t
		typeCache[off] = t
		if e.Val(dwarf.AttrType) == nil {
			t.Type = &VoidType{}
			break
		}
		t.Type = typeOf(e, dwarf.AttrType)

	case dwarf.TagReferenceType, dwarf.TagRvalueReferenceType:
		t := new(ReferenceType)
		t.Name, _ = e.Val(dwarf.AttrName).(string)
		t.RValue = e.Tag == dwarf.TagRvalueReferenceType
		typ = t
		typeCache[off] = t
		t.Type = typeOf(e, dwarf.AttrType)

	case dwarf.TagSubroutineType:
		// Subroutine type.  (DWARF v2 §5.7)
		// Attributes:
		//	AttrType: type of return value if any
		//	AttrName: possible name of type [ignored]
		//	AttrPrototyped: whether used ANSI C prototype [ignored]
		// Children:
		//	TagFormalParameter: typed parameter
		//		AttrType: type of parameter
		//	TagUnspecifiedParameter: final ...
		t := new(FuncType)
		t.Name, _ = e.Val(dwarf.AttrName).(string)
		typ = t
		typeCache[off] = t
		if e.Val(dwarf.AttrType) != nil {
			if t.ReturnType = typeOf(e, dwarf.AttrType); err != nil {
				goto Error
			}
		}
		for kid := next(); kid != nil; kid = next() {
			var tkid Type
			switch kid.Tag {
			default:
				continue
			case dwarf.TagFormalParameter:
				if tkid = typeOf(kid, dwarf.AttrType); err != nil {
					goto Error
				}
			case dwarf.TagUnspecifiedParameters:
				tkid = &DotDotDotType{}
			}
			t.ParamType = append(t.ParamType, tkid)
		}

	case dwarf.TagTypedef:
		// Typedef (DWARF v2 §5.3)
		// Attributes:
		//	AttrName: name [required]
		//	AttrType: type definition [required]
		t := new(TypedefType)
		typ = t
		typeCache[off] = typ
		t.Name = qualName()
		t.Type = typeOf(e, dwarf.AttrType)

	case dwarf.TagUnspecifiedType:
		// Unspecified type (DWARF v3 §5.2)
		// Attributes:
		//      AttrName: name
		t := new(UnspecifiedType)
		typ = t
		typeCache[off] = t
		t.Name, _ = e.Val(dwarf.AttrName).(string)

	default:
		// This is some other type DIE that we're currently not
		// equipped to handle. Return an abstract "unsupported type"
		// object in such cases.
		t := new(UnsupportedType)
		typ = t
		typeCache[off] = t
		t.Tag = e.Tag
		t.Name, _ = e.Val(dwarf.AttrName).(string)
	}

	if err != nil {
		goto Error
	}

	typ.Common().Offset = off

	{
		b, ok := e.Val(dwarf.AttrByteSize).(int64)
		if !ok {
			b = -1
			switch t := typ.(type) {
			case *TypedefType:
				*delayedSizes = append(*delayedSizes, delayedSize{typ.Common(), t.Type})
			case *QualType:
				*delayedSizes = append(*delayedSizes, delayedSize{typ.Common(), t.Type})
			case *PtrType, *ReferenceType, *FuncType:
				b = int64(addressSize)
			case *StructType:
				if !t.Incomplete {
					// empty classes
					b = 0
				}
			}
		}
		typ.Common().ByteSize = b
	}
	return typ, nil

Error:
	// If the parse fails, take the type out of the cache
	// so that the next call with this offset doesn't hit
	// the cache and return success.
	delete(typeCache, off)
	return nil, err
}

// memberLocation decodes the DW_AT_data_member_location of a member or
// inheritance entry.
func memberLocation(name string, kid *dwarf.Entry) (int64, error) {
	switch loc := kid.Val(dwarf.AttrDataMemberLoc).(type) {
	case []byte:
		if len(loc) == 0 {
			// Empty exprloc.
			return 0, nil
		}
		r := bytes.NewBuffer(loc)
		opc, _ := r.ReadByte()
		switch op.Opcode(opc) {
		case op.DW_OP_plus_uconst:
			// Handle opcode sequence [DW_OP_plus_uconst <uleb128>]
			n, _, err := leb128.DecodeUnsigned(r)
			if err != nil {
				return 0, dwarf.DecodeError{Name: name, Offset: kid.Offset, Err: err.Error()}
			}
			return int64(n), nil
		case op.DW_OP_consts:
			// Handle opcode sequence [DW_OP_consts <sleb128> DW_OP_plus]
			n, _, err := leb128.DecodeSigned(r)
			if err != nil {
				return 0, dwarf.DecodeError{Name: name, Offset: kid.Offset, Err: err.Error()}
			}
			if opc, _ := r.ReadByte(); op.Opcode(opc) != op.DW_OP_plus {
				return 0, dwarf.DecodeError{Name: name, Offset: kid.Offset, Err: fmt.Sprintf("unexpected opcode 0x%x", opc)}
			}
			return n, nil
		default:
			return 0, dwarf.DecodeError{Name: name, Offset: kid.Offset, Err: fmt.Sprintf("unexpected opcode 0x%x", opc)}
		}
	case int64:
		return loc, nil
	}
	return 0, nil
}

func zeroArray(t Type) {
	for {
		at, ok := t.(*ArrayType)
		if !ok {
			break
		}
		at.Count = 0
		t = at.Type
	}
}
