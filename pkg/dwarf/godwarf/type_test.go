package godwarf_test

import (
	"debug/dwarf"
	"testing"

	"github.com/go-delve/lpdbg/pkg/dwarf/dwarfbuilder"
	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
	"github.com/go-delve/lpdbg/pkg/dwarf/op"
)

func TestReadClassWithBasesAndTemplateParams(t *testing.T) {
	b := dwarfbuilder.New()
	intoff := b.AddBaseType("int", dwarfbuilder.DW_ATE_signed, 4)
	booloff := b.AddBaseType("bool", dwarfbuilder.DW_ATE_boolean, 1)

	baseoff := b.AddStructType("Base", 8)
	b.AddMember("b", intoff, 0)
	b.AddMember("c", intoff, 4)
	b.TagClose()

	derivedoff := b.AddClassType("Derived<int, true>", 16)
	b.AddInheritance(baseoff, 0)
	b.AddTemplateTypeParam("T", intoff)
	b.AddTemplateValueParam("B", booloff, 1)
	b.AddStaticMember("count", intoff)
	b.AddMember("d", intoff, 8)
	b.TagOpen(dwarf.TagMember, "e")
	b.Attr(dwarf.AttrType, intoff)
	b.Attr(dwarf.AttrDataMemberLoc, dwarfbuilder.LocationBlock(op.DW_OP_plus_uconst, uint(12)))
	b.TagClose()
	b.AddTypedef("value_type", intoff)
	b.TagClose()

	d, err := b.Data()
	if err != nil {
		t.Fatal(err)
	}

	names := godwarf.NameTable{derivedoff: "ns::Derived<int, true>"}
	typ, err := godwarf.ReadType(d, derivedoff, make(map[dwarf.Offset]godwarf.Type), names)
	if err != nil {
		t.Fatal(err)
	}
	st, ok := typ.(*godwarf.StructType)
	if !ok {
		t.Fatalf("expected struct type, got %T", typ)
	}
	if st.Name != "ns::Derived<int, true>" || st.StructName != "Derived<int, true>" || st.Kind != "class" {
		t.Errorf("wrong names %q %q %q", st.Name, st.StructName, st.Kind)
	}
	if st.Size() != 16 {
		t.Errorf("wrong size %d", st.Size())
	}
	if len(st.Bases) != 1 || st.Bases[0].Type.String() != "Base" || !st.Bases[0].Embedded {
		t.Fatalf("wrong bases %#v", st.Bases)
	}
	if len(st.Field) != 2 {
		t.Fatalf("static member not skipped: %d fields", len(st.Field))
	}
	if st.Field[0].Name != "d" || st.Field[0].ByteOffset != 8 {
		t.Errorf("wrong field %#v", st.Field[0])
	}
	if st.Field[1].Name != "e" || st.Field[1].ByteOffset != 12 {
		t.Errorf("wrong exprloc field %#v", st.Field[1])
	}
	if len(st.TemplateParams) != 2 {
		t.Fatalf("wrong template params %#v", st.TemplateParams)
	}
	if p := st.TemplateParams[0]; p.IsValue || p.Name != "T" || p.Type.String() != "int" {
		t.Errorf("wrong type param %#v", p)
	}
	if p := st.TemplateParams[1]; !p.IsValue || p.Value != 1 {
		t.Errorf("wrong value param %#v", p)
	}
}

func TestReadSelfReferentialPointer(t *testing.T) {
	b := dwarfbuilder.New()
	nodeoff := b.AddStructType("node", 8)
	ptroff := b.AddPointerType("", nodeoff)
	b.AddMember("next", ptroff, 0)
	b.TagClose()

	d, err := b.Data()
	if err != nil {
		t.Fatal(err)
	}
	typ, err := godwarf.ReadType(d, nodeoff, make(map[dwarf.Offset]godwarf.Type), nil)
	if err != nil {
		t.Fatal(err)
	}
	st := typ.(*godwarf.StructType)
	ptr, ok := st.Field[0].Type.(*godwarf.PtrType)
	if !ok {
		t.Fatalf("wrong field type %T", st.Field[0].Type)
	}
	if ptr.Type != typ {
		t.Errorf("pointer does not point back to its struct")
	}
	if got := ptr.String(); got != "node *" {
		t.Errorf("got %q", got)
	}
}

func TestReadVoidPointer(t *testing.T) {
	b := dwarfbuilder.New()
	voidptroff := b.AddPointerType("", 0)
	countoff := b.AddClassType("count", 8)
	b.AddMember("_M_pi", voidptroff, 0)
	b.TagClose()

	d, err := b.Data()
	if err != nil {
		t.Fatal(err)
	}
	typ, err := godwarf.ReadType(d, countoff, make(map[dwarf.Offset]godwarf.Type), nil)
	if err != nil {
		t.Fatal(err)
	}
	ptr, ok := typ.(*godwarf.StructType).Field[0].Type.(*godwarf.PtrType)
	if !ok {
		t.Fatalf("wrong field type %T", typ.(*godwarf.StructType).Field[0].Type)
	}
	if _, isvoid := ptr.Type.(*godwarf.VoidType); !isvoid {
		t.Errorf("expected void pointer, got %T", ptr.Type)
	}
	if got := ptr.String(); got != "void *" {
		t.Errorf("got %q", got)
	}
}

func TestReadEnumAndTypedef(t *testing.T) {
	b := dwarfbuilder.New()
	enumoff := b.AddEnumType("State", 4,
		dwarfbuilder.Enumerator{Name: "BOTTOM", Val: 0},
		dwarfbuilder.Enumerator{Name: "READY", Val: 2})
	consttd := b.AddConstType(enumoff)
	tdoff := b.AddTypedef("state_t", consttd)

	d, err := b.Data()
	if err != nil {
		t.Fatal(err)
	}
	typ, err := godwarf.ReadType(d, tdoff, make(map[dwarf.Offset]godwarf.Type), nil)
	if err != nil {
		t.Fatal(err)
	}
	if typ.Size() != 4 {
		t.Errorf("typedef size not resolved: %d", typ.Size())
	}
	et, ok := godwarf.ResolveTypedef(typ).(*godwarf.EnumType)
	if !ok {
		t.Fatalf("ResolveTypedef returned %T", godwarf.ResolveTypedef(typ))
	}
	if n, ok := et.Lookup(2); !ok || n != "READY" {
		t.Errorf("Lookup(2) = %q %v", n, ok)
	}
	if _, ok := et.Lookup(7); ok {
		t.Errorf("Lookup(7) should fail")
	}
}
