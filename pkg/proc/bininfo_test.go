package proc_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
	"github.com/go-delve/lpdbg/pkg/proc"
	protest "github.com/go-delve/lpdbg/pkg/proc/test"
)

func TestLookupTypeQualifiedNames(t *testing.T) {
	lp := protest.NewLibprocess(t)
	for _, name := range []string{
		protest.UPIDType,
		protest.ProcessManagerType,
		protest.ProcessNodeType,
		protest.ProcessTableType,
		protest.ProcessHashmapType,
		protest.StringType,
		"process::network::inet::Address",
		"std::__detail::_Hash_node_base",
	} {
		typ, err := lp.BinInfo.LookupType(name)
		protest.AssertNoError(err, t, name)
		if _, ok := typ.(*godwarf.StructType); !ok {
			t.Errorf("%s: expected a struct type, got %T", name, typ)
			continue
		}
		if got := godwarf.NormalizeName(typ.Common().Name); got != godwarf.NormalizeName(name) {
			t.Errorf("%s: type has name %q", name, got)
		}
	}

	for _, name := range []string{"std::__cxx11::string", "process::ProcessBase::State", "chain::C::T"} {
		if _, err := lp.BinInfo.LookupType(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestLookupTypeNormalization(t *testing.T) {
	lp := protest.NewLibprocess(t)
	typ1, err := lp.BinInfo.LookupType(protest.ProcessPairType)
	protest.AssertNoError(err, t, "LookupType")
	typ2, err := lp.BinInfo.LookupType("std::pair<process::UPID const,process::ProcessBase *>")
	protest.AssertNoError(err, t, "LookupType")
	if typ1 != typ2 {
		t.Fatalf("different spellings produced different types: %v %v", typ1, typ2)
	}
}

func TestLookupTypeDefinitionWins(t *testing.T) {
	// process::ProcessBase is declared before it is defined.
	lp := protest.NewLibprocess(t)
	typ, err := lp.BinInfo.LookupType(protest.ProcessBaseType)
	protest.AssertNoError(err, t, "LookupType")
	st, ok := typ.(*godwarf.StructType)
	if !ok {
		t.Fatalf("unexpected type %T", typ)
	}
	if st.Incomplete {
		t.Fatal("declaration returned instead of the definition")
	}
	found := false
	for _, f := range st.Field {
		if f.Name == "pid" {
			found = true
		}
	}
	if !found {
		t.Fatalf("pid member missing from %s", st)
	}
}

func TestLookupTypeNotFound(t *testing.T) {
	lp := protest.NewLibprocess(t)
	for i := 0; i < 2; i++ { // the second lookup is served by the cache
		_, err := lp.BinInfo.LookupType("process::Nonexistent")
		var tnf *proc.TypeNotFoundError
		if !errors.As(err, &tnf) {
			t.Fatalf("expected TypeNotFoundError, got %v", err)
		}
		if tnf.Type != "process::Nonexistent" {
			t.Fatalf("wrong type in error: %q", tnf.Type)
		}
	}
}

func TestTypesMatching(t *testing.T) {
	lp := protest.NewLibprocess(t)
	got := lp.BinInfo.TypesMatching("chain::")
	tgt := []string{"chain::A", "chain::B", "chain::C", "chain::C::T", "chain::D"}
	if !reflect.DeepEqual(got, tgt) {
		t.Fatalf("expected %q got %q", tgt, got)
	}
	if got := lp.BinInfo.TypesMatching("nosuchnamespace::"); len(got) != 0 {
		t.Fatalf("unexpected matches %q", got)
	}
}

func TestGlobals(t *testing.T) {
	lp := protest.NewLibprocess(t)
	got := lp.BinInfo.Globals()
	tgt := []string{protest.IntTableSymbol, protest.ProcessManagerSymbol}
	if !reflect.DeepEqual(got, tgt) {
		t.Fatalf("expected %q got %q", tgt, got)
	}

	addr, typ, err := lp.BinInfo.FindGlobal(protest.ProcessManagerSymbol)
	protest.AssertNoError(err, t, "FindGlobal")
	if addr != protest.ProcessManagerAddr {
		t.Errorf("wrong address %#x", addr)
	}
	if _, ok := typ.(*godwarf.PtrType); !ok {
		t.Errorf("wrong type %T", typ)
	}

	_, _, err = lp.BinInfo.FindGlobal("process::nosuchglobal")
	var snf *proc.SymbolNotFoundError
	if !errors.As(err, &snf) {
		t.Fatalf("expected SymbolNotFoundError, got %v", err)
	}
}

func TestStaticBase(t *testing.T) {
	lp := protest.NewLibprocess(t)
	lp.BinInfo.SetStaticBase(0x1000)
	defer lp.BinInfo.SetStaticBase(0)
	addr, _, err := lp.BinInfo.FindGlobal(protest.IntTableSymbol)
	protest.AssertNoError(err, t, "FindGlobal")
	if addr != protest.IntTableAddr+0x1000 {
		t.Fatalf("static base not applied: %#x", addr)
	}
}
